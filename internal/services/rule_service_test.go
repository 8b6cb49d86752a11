package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"moneytrack/internal/core"
	"moneytrack/internal/storage"
)

func newTestRuleService(t *testing.T, now time.Time) *RuleService {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	svc := NewRuleService(repo, "EUR")
	svc.now = func() time.Time { return now }
	return svc
}

func draftRule(owner string) core.ScheduleRule {
	return core.ScheduleRule{
		OwnerID:    owner,
		Title:      "Gym membership",
		Kind:       core.Expense,
		Amount:     core.Money{Cents: 4500},
		Category:   "health",
		Frequency:  core.Monthly,
		DayOfMonth: 15,
	}
}

func TestRuleServiceCreate(t *testing.T) {
	now := time.Date(2024, time.January, 10, 12, 0, 0, 0, time.UTC)
	svc := newTestRuleService(t, now)
	ctx := context.Background()

	created, err := svc.Create(ctx, draftRule("owner-1"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == "" {
		t.Error("expected generated id")
	}
	if created.Currency != "EUR" {
		t.Errorf("currency = %q, want base currency EUR", created.Currency)
	}
	if want := core.NewDate(2024, 1, 15); !created.NextRun.Equal(want.Time) {
		t.Errorf("next run = %v, want %v", created.NextRun, want)
	}

	got, err := svc.Get(ctx, "owner-1", created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != created {
		t.Errorf("persisted rule = %+v, want %+v", got, created)
	}
}

func TestRuleServiceCreate_DueTodayFiresOnNextTick(t *testing.T) {
	// A rule targeting today's day gets next_run = today, not next month.
	now := time.Date(2024, time.January, 15, 23, 0, 0, 0, time.UTC)
	svc := newTestRuleService(t, now)

	created, err := svc.Create(context.Background(), draftRule("owner-1"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if want := core.NewDate(2024, 1, 15); !created.NextRun.Equal(want.Time) {
		t.Errorf("next run = %v, want %v", created.NextRun, want)
	}
}

func TestRuleServiceCreate_Validation(t *testing.T) {
	svc := newTestRuleService(t, time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	tests := []struct {
		name    string
		mutate  func(*core.ScheduleRule)
		wantErr error
	}{
		{"empty title", func(r *core.ScheduleRule) { r.Title = "  " }, core.ErrEmptyTitle},
		{"day zero", func(r *core.ScheduleRule) { r.DayOfMonth = 0 }, core.ErrInvalidDay},
		{"day 32", func(r *core.ScheduleRule) { r.DayOfMonth = 32 }, core.ErrInvalidDay},
		{"negative amount", func(r *core.ScheduleRule) { r.Amount.Cents = -1 }, core.ErrInvalidAmount},
		{"bad kind", func(r *core.ScheduleRule) { r.Kind = "transfer" }, core.ErrInvalidKind},
		{"bad frequency", func(r *core.ScheduleRule) { r.Frequency = "weekly" }, core.ErrInvalidFrequency},
		{"yearly without month", func(r *core.ScheduleRule) { r.Frequency = core.Yearly; r.Month = 0 }, core.ErrInvalidMonth},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			draft := draftRule("owner-1")
			tt.mutate(&draft)
			if _, err := svc.Create(ctx, draft); !errors.Is(err, tt.wantErr) {
				t.Errorf("Create = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRuleServiceCreate_MonthIgnoredForMonthly(t *testing.T) {
	svc := newTestRuleService(t, time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC))

	draft := draftRule("owner-1")
	draft.Month = 7 // stray client value
	created, err := svc.Create(context.Background(), draft)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Month != 0 {
		t.Errorf("month = %d, want 0 for monthly rules", created.Month)
	}
}

func TestRuleServiceUpdate_ReanchorsNextRun(t *testing.T) {
	now := time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC)
	svc := newTestRuleService(t, now)
	ctx := context.Background()

	created, err := svc.Create(ctx, draftRule("owner-1"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Time passes; the edit recomputes next_run from the later clock even
	// though the stored value was still valid.
	svc.now = func() time.Time { return time.Date(2024, time.March, 20, 0, 0, 0, 0, time.UTC) }

	created.DayOfMonth = 5
	updated, err := svc.Update(ctx, created)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if want := core.NewDate(2024, 4, 5); !updated.NextRun.Equal(want.Time) {
		t.Errorf("next run = %v, want %v", updated.NextRun, want)
	}

	got, err := svc.Get(ctx, "owner-1", created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != updated {
		t.Errorf("persisted rule = %+v, want %+v", got, updated)
	}
}

func TestRuleServiceUpdate_OwnershipScoped(t *testing.T) {
	svc := newTestRuleService(t, time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	created, err := svc.Create(ctx, draftRule("owner-1"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	foreign := created
	foreign.OwnerID = "owner-2"
	if _, err := svc.Update(ctx, foreign); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Update with foreign owner = %v, want ErrNotFound", err)
	}
}

func TestRuleServiceDelete(t *testing.T) {
	svc := newTestRuleService(t, time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	created, err := svc.Create(ctx, draftRule("owner-1"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := svc.Delete(ctx, "owner-2", created.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Delete with foreign owner = %v, want ErrNotFound", err)
	}
	if err := svc.Delete(ctx, "owner-1", created.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.Get(ctx, "owner-1", created.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Get after delete = %v, want ErrNotFound", err)
	}
}

func TestCreateThenMaterializeFlow(t *testing.T) {
	// Full cycle against real storage: a monthly income rule created after its
	// day has passed this month waits until next month, fires exactly once on
	// its due day, and advances one period.
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	svc := NewRuleService(repo, "EUR")
	svc.now = func() time.Time { return time.Date(2024, time.January, 20, 9, 0, 0, 0, time.UTC) }

	created, err := svc.Create(context.Background(), core.ScheduleRule{
		OwnerID:    "owner-1",
		Title:      "Salary",
		Kind:       core.Income,
		Amount:     core.Money{Cents: 100000},
		Category:   "salary",
		Frequency:  core.Monthly,
		DayOfMonth: 15,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if want := core.NewDate(2024, 2, 15); !created.NextRun.Equal(want.Time) {
		t.Fatalf("next run = %v, want %v", created.NextRun, want)
	}

	ledger := NewLedgerService(repo, nil)
	m := NewMaterializer(repo, ledger)

	// Nothing due before the 15th.
	result, err := m.RunTick(context.Background(), time.Date(2024, time.February, 14, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("early tick: %v", err)
	}
	if result.Checked != 0 {
		t.Errorf("early tick checked %d, want 0", result.Checked)
	}

	result, err = m.RunTick(context.Background(), time.Date(2024, time.February, 15, 0, 30, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("due tick: %v", err)
	}
	if result.Fired != 1 {
		t.Fatalf("fired %d, want 1", result.Fired)
	}

	entries, err := repo.ListEntriesByOwner(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("ListEntriesByOwner: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.Kind != core.Income || e.Amount.Cents != 100000 || e.Description != "Salary" {
		t.Errorf("entry = %+v", e)
	}
	if !e.Date.Equal(core.NewDate(2024, 2, 15).Time) {
		t.Errorf("entry date = %v, want 2024-02-15", e.Date)
	}

	rule, err := repo.GetRule(context.Background(), "owner-1", created.ID)
	if err != nil {
		t.Fatalf("GetRule: %v", err)
	}
	if want := core.NewDate(2024, 3, 15); !rule.NextRun.Equal(want.Time) {
		t.Errorf("next run after fire = %v, want %v", rule.NextRun, want)
	}
}

func TestRuleServiceList_AscendingNextRun(t *testing.T) {
	svc := newTestRuleService(t, time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	late := draftRule("owner-1")
	late.Title = "Late"
	late.DayOfMonth = 28
	early := draftRule("owner-1")
	early.Title = "Early"
	early.DayOfMonth = 12

	if _, err := svc.Create(ctx, late); err != nil {
		t.Fatalf("Create(late): %v", err)
	}
	if _, err := svc.Create(ctx, early); err != nil {
		t.Fatalf("Create(early): %v", err)
	}

	rules, err := svc.List(ctx, "owner-1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("got %d rules, want 2", len(rules))
	}
	if rules[0].Title != "Early" || rules[1].Title != "Late" {
		t.Errorf("order = [%s, %s], want [Early, Late]", rules[0].Title, rules[1].Title)
	}
}
