package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"moneytrack/internal/core"
	"moneytrack/internal/log"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned for rules that do not exist or belong to another
// owner. Callers cannot distinguish the two cases, by contract.
var ErrNotFound = errors.New("rule not found")

// ErrStaleRule is returned when a conditional next-run advance finds the rule
// changed since it was read (edited or deleted mid-tick).
var ErrStaleRule = errors.New("rule changed since read")

const dateLayout = "2006-01-02"

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateRule persists a fully populated rule (id and next_run already set by
// the caller).
func (r *SQLiteRepository) CreateRule(ctx context.Context, rule core.ScheduleRule) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO schedule_rules
			(id, owner_id, title, kind, amount_cents, category, currency, frequency, day_of_month, month, next_run)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.ID, rule.OwnerID, rule.Title, string(rule.Kind), rule.Amount.Cents,
		rule.Category, rule.Currency, string(rule.Frequency), rule.DayOfMonth,
		rule.Month, rule.NextRun.Format(dateLayout))
	if err != nil {
		return fmt.Errorf("insert rule: %w", err)
	}

	slog.InfoContext(ctx, "Schedule rule saved",
		log.FieldRuleID, rule.ID,
		log.FieldOwnerID, rule.OwnerID,
		log.FieldFrequency, rule.Frequency,
		log.FieldNextRun, rule.NextRun.Format(dateLayout))

	return nil
}

// GetRule returns a rule scoped to its owner; ErrNotFound for absent or
// foreign ids.
func (r *SQLiteRepository) GetRule(ctx context.Context, ownerID, id string) (core.ScheduleRule, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, owner_id, title, kind, amount_cents, category, currency, frequency, day_of_month, month, next_run
		FROM schedule_rules
		WHERE id = ? AND owner_id = ?`, id, ownerID)

	rule, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ScheduleRule{}, ErrNotFound
	}
	if err != nil {
		return core.ScheduleRule{}, fmt.Errorf("get rule: %w", err)
	}
	return rule, nil
}

// UpdateRule replaces all user-settable fields plus next_run; the WHERE clause
// enforces ownership so a foreign id surfaces as ErrNotFound.
func (r *SQLiteRepository) UpdateRule(ctx context.Context, rule core.ScheduleRule) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE schedule_rules
		SET title = ?, kind = ?, amount_cents = ?, category = ?, currency = ?,
		    frequency = ?, day_of_month = ?, month = ?, next_run = ?,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND owner_id = ?`,
		rule.Title, string(rule.Kind), rule.Amount.Cents, rule.Category, rule.Currency,
		string(rule.Frequency), rule.DayOfMonth, rule.Month, rule.NextRun.Format(dateLayout),
		rule.ID, rule.OwnerID)
	if err != nil {
		return fmt.Errorf("update rule: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update rule rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteRule hard-deletes an owner's rule. Previously materialized ledger
// entries are independent records and are not touched.
func (r *SQLiteRepository) DeleteRule(ctx context.Context, ownerID, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM schedule_rules WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete rule rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	slog.InfoContext(ctx, "Schedule rule deleted", log.FieldRuleID, id, log.FieldOwnerID, ownerID)
	return nil
}

// ListRulesByOwner returns all of an owner's rules ordered by ascending
// next_run.
func (r *SQLiteRepository) ListRulesByOwner(ctx context.Context, ownerID string) ([]core.ScheduleRule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, owner_id, title, kind, amount_cents, category, currency, frequency, day_of_month, month, next_run
		FROM schedule_rules
		WHERE owner_id = ?
		ORDER BY next_run ASC, id ASC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	return collectRules(rows)
}

// ListDueRules returns every rule, across all owners, whose next_run has
// arrived as of the given day.
func (r *SQLiteRepository) ListDueRules(ctx context.Context, asOf time.Time) ([]core.ScheduleRule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, owner_id, title, kind, amount_cents, category, currency, frequency, day_of_month, month, next_run
		FROM schedule_rules
		WHERE next_run <= ?
		ORDER BY next_run ASC, id ASC`, core.DateOf(asOf).Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("list due rules: %w", err)
	}
	defer rows.Close()

	return collectRules(rows)
}

// AdvanceNextRun moves a rule's next_run forward, conditioned on the value the
// materializer read at the start of the fire-and-advance. A concurrent edit or
// delete makes the condition fail and surfaces as ErrStaleRule so the tick can
// skip the rule instead of clobbering the newer state.
func (r *SQLiteRepository) AdvanceNextRun(ctx context.Context, id string, from, to core.Date) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE schedule_rules
		SET next_run = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND next_run = ?`,
		to.Format(dateLayout), id, from.Format(dateLayout))
	if err != nil {
		return fmt.Errorf("advance next run: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("advance next run rows affected: %w", err)
	}
	if affected == 0 {
		return ErrStaleRule
	}
	return nil
}

// AppendEntry inserts one ledger entry. The ledger is append-only: there are
// no update or delete paths.
func (r *SQLiteRepository) AppendEntry(ctx context.Context, e core.LedgerEntry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO ledger_entries
			(id, owner_id, kind, category, amount_cents, currency, entry_date, description)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.OwnerID, string(e.Kind), e.Category, e.Amount.Cents,
		e.Currency, e.Date.Format(dateLayout), e.Description)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}

	slog.InfoContext(ctx, "Ledger entry saved",
		log.FieldEntryID, e.ID,
		log.FieldOwnerID, e.OwnerID,
		"kind", e.Kind,
		log.FieldAmountCents, e.Amount.Cents,
		"date", e.Date.Format(dateLayout))

	return nil
}

// ListEntriesByOwner returns an owner's ledger entries, newest first.
func (r *SQLiteRepository) ListEntriesByOwner(ctx context.Context, ownerID string) ([]core.LedgerEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, owner_id, kind, category, amount_cents, currency, entry_date, description
		FROM ledger_entries
		WHERE owner_id = ?
		ORDER BY entry_date DESC, created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []core.LedgerEntry
	for rows.Next() {
		var (
			e        core.LedgerEntry
			kind     string
			dateText string
		)
		if err := rows.Scan(&e.ID, &e.OwnerID, &kind, &e.Category, &e.Amount.Cents,
			&e.Currency, &dateText, &e.Description); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		e.Kind = core.Kind(kind)
		d, err := time.Parse(dateLayout, dateText)
		if err != nil {
			return nil, fmt.Errorf("parse entry date %q: %w", dateText, err)
		}
		e.Date = core.Date{Time: d}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger entries: %w", err)
	}
	return entries, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (core.ScheduleRule, error) {
	var (
		rule        core.ScheduleRule
		kind        string
		frequency   string
		nextRunText string
	)
	err := row.Scan(&rule.ID, &rule.OwnerID, &rule.Title, &kind, &rule.Amount.Cents,
		&rule.Category, &rule.Currency, &frequency, &rule.DayOfMonth, &rule.Month, &nextRunText)
	if err != nil {
		return core.ScheduleRule{}, err
	}

	rule.Kind = core.Kind(kind)
	rule.Frequency = core.Frequency(frequency)

	next, err := time.Parse(dateLayout, nextRunText)
	if err != nil {
		return core.ScheduleRule{}, fmt.Errorf("parse next_run %q: %w", nextRunText, err)
	}
	rule.NextRun = core.Date{Time: next}
	return rule, nil
}

func collectRules(rows *sql.Rows) ([]core.ScheduleRule, error) {
	var rules []core.ScheduleRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rules: %w", err)
	}
	return rules, nil
}
