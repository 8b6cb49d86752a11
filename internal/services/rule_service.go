package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"moneytrack/internal/core"
	"moneytrack/internal/log"
	"moneytrack/internal/storage"
)

// RuleService owns the lifecycle of schedule rules: validation, next-run
// computation and ownership-scoped persistence.
type RuleService struct {
	storage      *storage.SQLiteRepository
	baseCurrency string
	now          func() time.Time
}

func NewRuleService(storage *storage.SQLiteRepository, baseCurrency string) *RuleService {
	return &RuleService{
		storage:      storage,
		baseCurrency: baseCurrency,
		now:          time.Now,
	}
}

// Create validates the rule, assigns an id and computes the first next-run
// from the current day. A rule targeting today fires on the next tick.
func (s *RuleService) Create(ctx context.Context, rule core.ScheduleRule) (core.ScheduleRule, error) {
	rule.Title = strings.TrimSpace(rule.Title)
	if rule.Currency == "" {
		rule.Currency = s.baseCurrency
	}
	rule.Currency = strings.ToUpper(rule.Currency)
	if rule.Frequency == core.Monthly {
		rule.Month = 0
	}

	if err := rule.Validate(); err != nil {
		return core.ScheduleRule{}, err
	}

	rule.ID = uuid.NewString()
	rule.NextRun = core.NextOccurrence(rule.Frequency, rule.DayOfMonth, rule.Month, s.now())

	if err := s.storage.CreateRule(ctx, rule); err != nil {
		return core.ScheduleRule{}, fmt.Errorf("create rule: %w", err)
	}

	return rule, nil
}

// Update replaces every user-settable field of an owner's rule and re-anchors
// next-run to the current day. An edit always discards the stored next-run:
// changing the day or frequency of a rule means "from now on", never "catch up
// from where the old schedule left off".
func (s *RuleService) Update(ctx context.Context, rule core.ScheduleRule) (core.ScheduleRule, error) {
	if _, err := s.storage.GetRule(ctx, rule.OwnerID, rule.ID); err != nil {
		return core.ScheduleRule{}, err
	}

	rule.Title = strings.TrimSpace(rule.Title)
	if rule.Currency == "" {
		rule.Currency = s.baseCurrency
	}
	rule.Currency = strings.ToUpper(rule.Currency)
	if rule.Frequency == core.Monthly {
		rule.Month = 0
	}

	if err := rule.Validate(); err != nil {
		return core.ScheduleRule{}, err
	}

	rule.NextRun = core.NextOccurrence(rule.Frequency, rule.DayOfMonth, rule.Month, s.now())

	if err := s.storage.UpdateRule(ctx, rule); err != nil {
		return core.ScheduleRule{}, fmt.Errorf("update rule: %w", err)
	}

	slog.InfoContext(ctx, "Schedule rule updated",
		log.FieldRuleID, rule.ID,
		log.FieldOwnerID, rule.OwnerID,
		log.FieldNextRun, rule.NextRun.Format("2006-01-02"))

	return rule, nil
}

// Delete removes an owner's rule. Materialized ledger entries survive.
func (s *RuleService) Delete(ctx context.Context, ownerID, id string) error {
	return s.storage.DeleteRule(ctx, ownerID, id)
}

// Get returns a single rule scoped to its owner.
func (s *RuleService) Get(ctx context.Context, ownerID, id string) (core.ScheduleRule, error) {
	return s.storage.GetRule(ctx, ownerID, id)
}

// List returns an owner's rules ordered by ascending next-run.
func (s *RuleService) List(ctx context.Context, ownerID string) ([]core.ScheduleRule, error) {
	rules, err := s.storage.ListRulesByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	return rules, nil
}
