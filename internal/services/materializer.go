package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"moneytrack/internal/core"
	"moneytrack/internal/log"
)

// ErrTickRunning is returned by RunTick when a previous tick has not finished.
var ErrTickRunning = errors.New("materializer tick already running")

// ScheduleSource is the slice of the repository the materializer reads rules
// from and advances them through.
type ScheduleSource interface {
	ListDueRules(ctx context.Context, asOf time.Time) ([]core.ScheduleRule, error)
	AdvanceNextRun(ctx context.Context, id string, from, to core.Date) error
}

// LedgerWriter appends realized entries. Satisfied by LedgerService.
type LedgerWriter interface {
	Append(ctx context.Context, e core.LedgerEntry) error
}

// TickResult aggregates what one scan did.
type TickResult struct {
	Checked int
	Fired   int
	Failed  int
}

// Materializer turns due schedule rules into ledger entries. One entry per due
// rule per tick: a rule that missed several periods drains one period per scan.
type Materializer struct {
	source ScheduleSource
	ledger LedgerWriter

	mu sync.Mutex
}

func NewMaterializer(source ScheduleSource, ledger LedgerWriter) *Materializer {
	return &Materializer{
		source: source,
		ledger: ledger,
	}
}

// RunTick scans all owners' rules due as of now's calendar day and fires each
// one. Per-rule failures are logged and counted, never fatal: a failed rule
// keeps its old next_run and is retried on the next tick. Ticks are
// serialized; a second caller gets ErrTickRunning instead of a double fire.
func (m *Materializer) RunTick(ctx context.Context, now time.Time) (TickResult, error) {
	if !m.mu.TryLock() {
		return TickResult{}, ErrTickRunning
	}
	defer m.mu.Unlock()

	due, err := m.source.ListDueRules(ctx, now)
	if err != nil {
		return TickResult{}, err
	}

	slog.InfoContext(ctx, "Materializer tick started",
		"due", len(due),
		"as_of", core.DateOf(now).Format("2006-01-02"))

	result := TickResult{Checked: len(due)}

	for _, rule := range due {
		if err := m.fireRule(ctx, rule); err != nil {
			result.Failed++
			slog.ErrorContext(ctx, "Failed to materialize rule",
				log.FieldRuleID, rule.ID,
				log.FieldOwnerID, rule.OwnerID,
				log.FieldNextRun, rule.NextRun.Format("2006-01-02"),
				log.FieldError, err)
			continue
		}
		result.Fired++
	}

	slog.InfoContext(ctx, "Materializer tick complete",
		log.FieldChecked, result.Checked,
		log.FieldFired, result.Fired,
		log.FieldFailed, result.Failed)

	return result, nil
}

// fireRule appends one ledger entry dated at the rule's due day, then advances
// next_run exactly one period past the fired day. The advance is conditional
// on the fired value: if the rule was edited or deleted while the entry was
// being written, the stale advance is dropped and the newer state wins.
func (m *Materializer) fireRule(ctx context.Context, rule core.ScheduleRule) error {
	entry := core.LedgerEntry{
		ID:          uuid.NewString(),
		OwnerID:     rule.OwnerID,
		Kind:        rule.Kind,
		Category:    rule.Category,
		Amount:      rule.Amount,
		Currency:    rule.Currency,
		Date:        rule.NextRun,
		Description: rule.Title,
	}

	if err := m.ledger.Append(ctx, entry); err != nil {
		return err
	}

	// Once the entry is committed the advance must land too, or the rule stays
	// due and the next tick writes the same occurrence again. Detach from the
	// caller's cancellation so a shutdown between the two writes cannot split
	// them.
	next := core.NextAfter(rule.Frequency, rule.DayOfMonth, rule.Month, rule.NextRun)
	if err := m.source.AdvanceNextRun(context.WithoutCancel(ctx), rule.ID, rule.NextRun, next); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Materialized ledger entry",
		log.FieldRuleID, rule.ID,
		log.FieldEntryID, entry.ID,
		log.FieldOwnerID, rule.OwnerID,
		log.FieldAmountCents, entry.Amount.Cents,
		"date", entry.Date.Format("2006-01-02"),
		log.FieldNextRun, next.Format("2006-01-02"))

	return nil
}
