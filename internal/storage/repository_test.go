package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"moneytrack/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func testRule(id, ownerID string, nextRun core.Date) core.ScheduleRule {
	return core.ScheduleRule{
		ID:         id,
		OwnerID:    ownerID,
		Title:      "Rent",
		Kind:       core.Expense,
		Amount:     core.Money{Cents: 95000},
		Category:   "housing",
		Currency:   "EUR",
		Frequency:  core.Monthly,
		DayOfMonth: 1,
		NextRun:    nextRun,
	}
}

func TestCreateAndGetRule(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	want := testRule("rule-1", "owner-1", core.NewDate(2024, 2, 1))
	if err := repo.CreateRule(ctx, want); err != nil {
		t.Fatalf("CreateRule: %v", err)
	}

	got, err := repo.GetRule(ctx, "owner-1", "rule-1")
	if err != nil {
		t.Fatalf("GetRule: %v", err)
	}
	if got != want {
		t.Errorf("GetRule = %+v, want %+v", got, want)
	}
}

func TestGetRule_OwnershipScoped(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	rule := testRule("rule-1", "owner-1", core.NewDate(2024, 2, 1))
	if err := repo.CreateRule(ctx, rule); err != nil {
		t.Fatalf("CreateRule: %v", err)
	}

	if _, err := repo.GetRule(ctx, "owner-2", "rule-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetRule with foreign owner = %v, want ErrNotFound", err)
	}
	if _, err := repo.GetRule(ctx, "owner-1", "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetRule with missing id = %v, want ErrNotFound", err)
	}
}

func TestUpdateRule(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	rule := testRule("rule-1", "owner-1", core.NewDate(2024, 2, 1))
	if err := repo.CreateRule(ctx, rule); err != nil {
		t.Fatalf("CreateRule: %v", err)
	}

	rule.Title = "Rent (new flat)"
	rule.Amount = core.Money{Cents: 110000}
	rule.DayOfMonth = 5
	rule.NextRun = core.NewDate(2024, 2, 5)
	if err := repo.UpdateRule(ctx, rule); err != nil {
		t.Fatalf("UpdateRule: %v", err)
	}

	got, err := repo.GetRule(ctx, "owner-1", "rule-1")
	if err != nil {
		t.Fatalf("GetRule: %v", err)
	}
	if got != rule {
		t.Errorf("after update got %+v, want %+v", got, rule)
	}

	foreign := rule
	foreign.OwnerID = "owner-2"
	if err := repo.UpdateRule(ctx, foreign); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateRule with foreign owner = %v, want ErrNotFound", err)
	}
}

func TestDeleteRule(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	rule := testRule("rule-1", "owner-1", core.NewDate(2024, 2, 1))
	if err := repo.CreateRule(ctx, rule); err != nil {
		t.Fatalf("CreateRule: %v", err)
	}

	if err := repo.DeleteRule(ctx, "owner-2", "rule-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteRule with foreign owner = %v, want ErrNotFound", err)
	}
	if err := repo.DeleteRule(ctx, "owner-1", "rule-1"); err != nil {
		t.Fatalf("DeleteRule: %v", err)
	}
	if _, err := repo.GetRule(ctx, "owner-1", "rule-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetRule after delete = %v, want ErrNotFound", err)
	}
	if err := repo.DeleteRule(ctx, "owner-1", "rule-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second DeleteRule = %v, want ErrNotFound", err)
	}
}

func TestListRulesByOwner_OrderedByNextRun(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	later := testRule("rule-later", "owner-1", core.NewDate(2024, 3, 15))
	sooner := testRule("rule-sooner", "owner-1", core.NewDate(2024, 2, 1))
	other := testRule("rule-other", "owner-2", core.NewDate(2024, 1, 1))
	for _, r := range []core.ScheduleRule{later, sooner, other} {
		if err := repo.CreateRule(ctx, r); err != nil {
			t.Fatalf("CreateRule(%s): %v", r.ID, err)
		}
	}

	rules, err := repo.ListRulesByOwner(ctx, "owner-1")
	if err != nil {
		t.Fatalf("ListRulesByOwner: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("got %d rules, want 2", len(rules))
	}
	if rules[0].ID != "rule-sooner" || rules[1].ID != "rule-later" {
		t.Errorf("order = [%s, %s], want [rule-sooner, rule-later]", rules[0].ID, rules[1].ID)
	}
}

func TestListDueRules(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	overdue := testRule("rule-overdue", "owner-1", core.NewDate(2024, 1, 10))
	dueToday := testRule("rule-due-today", "owner-2", core.NewDate(2024, 1, 20))
	future := testRule("rule-future", "owner-1", core.NewDate(2024, 1, 21))
	for _, r := range []core.ScheduleRule{overdue, dueToday, future} {
		if err := repo.CreateRule(ctx, r); err != nil {
			t.Fatalf("CreateRule(%s): %v", r.ID, err)
		}
	}

	asOf := time.Date(2024, time.January, 20, 14, 30, 0, 0, time.UTC)
	due, err := repo.ListDueRules(ctx, asOf)
	if err != nil {
		t.Fatalf("ListDueRules: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("got %d due rules, want 2", len(due))
	}
	if due[0].ID != "rule-overdue" || due[1].ID != "rule-due-today" {
		t.Errorf("due = [%s, %s], want [rule-overdue, rule-due-today]", due[0].ID, due[1].ID)
	}
}

func TestAdvanceNextRun(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	from := core.NewDate(2024, 1, 20)
	to := core.NewDate(2024, 2, 20)
	rule := testRule("rule-1", "owner-1", from)
	if err := repo.CreateRule(ctx, rule); err != nil {
		t.Fatalf("CreateRule: %v", err)
	}

	if err := repo.AdvanceNextRun(ctx, "rule-1", from, to); err != nil {
		t.Fatalf("AdvanceNextRun: %v", err)
	}
	got, err := repo.GetRule(ctx, "owner-1", "rule-1")
	if err != nil {
		t.Fatalf("GetRule: %v", err)
	}
	if !got.NextRun.Equal(to.Time) {
		t.Errorf("next run = %v, want %v", got.NextRun, to)
	}

	// The condition no longer matches once the row moved forward.
	if err := repo.AdvanceNextRun(ctx, "rule-1", from, to); !errors.Is(err, ErrStaleRule) {
		t.Errorf("stale AdvanceNextRun = %v, want ErrStaleRule", err)
	}
}

func TestAppendAndListEntries(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	older := core.LedgerEntry{
		ID:          "entry-older",
		OwnerID:     "owner-1",
		Kind:        core.Expense,
		Category:    "housing",
		Amount:      core.Money{Cents: 95000},
		Currency:    "EUR",
		Date:        core.NewDate(2024, 1, 1),
		Description: "Rent",
	}
	newer := older
	newer.ID = "entry-newer"
	newer.Date = core.NewDate(2024, 2, 1)
	foreign := older
	foreign.ID = "entry-foreign"
	foreign.OwnerID = "owner-2"

	for _, e := range []core.LedgerEntry{older, newer, foreign} {
		if err := repo.AppendEntry(ctx, e); err != nil {
			t.Fatalf("AppendEntry(%s): %v", e.ID, err)
		}
	}

	entries, err := repo.ListEntriesByOwner(ctx, "owner-1")
	if err != nil {
		t.Fatalf("ListEntriesByOwner: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].ID != "entry-newer" || entries[1].ID != "entry-older" {
		t.Errorf("order = [%s, %s], want [entry-newer, entry-older]", entries[0].ID, entries[1].ID)
	}
	if entries[1] != older {
		t.Errorf("round-tripped entry = %+v, want %+v", entries[1], older)
	}
}
