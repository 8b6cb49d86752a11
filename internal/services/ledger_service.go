package services

import (
	"context"
	"fmt"
	"log/slog"

	"moneytrack/internal/amqp"
	"moneytrack/internal/core"
	"moneytrack/internal/log"
	"moneytrack/internal/storage"
)

// LedgerService orchestrates ledger writes across SQLite and AMQP
type LedgerService struct {
	storage    *storage.SQLiteRepository
	amqpClient *amqp.Client
}

func NewLedgerService(storage *storage.SQLiteRepository, amqpClient *amqp.Client) *LedgerService {
	return &LedgerService{
		storage:    storage,
		amqpClient: amqpClient,
	}
}

// Append saves a ledger entry locally and publishes a notification message.
// The publish is best-effort: a broker outage never fails the write.
func (s *LedgerService) Append(ctx context.Context, e core.LedgerEntry) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("validate ledger entry: %w", err)
	}

	if err := s.storage.AppendEntry(ctx, e); err != nil {
		return fmt.Errorf("save ledger entry: %w", err)
	}

	if err := s.publishEntryMessage(ctx, e); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger entry message",
			log.FieldEntryID, e.ID, log.FieldError, err)
		// Don't fail the write - entry is saved locally
	}

	return nil
}

// List returns an owner's ledger entries, newest first.
func (s *LedgerService) List(ctx context.Context, ownerID string) ([]core.LedgerEntry, error) {
	entries, err := s.storage.ListEntriesByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	return entries, nil
}

func (s *LedgerService) publishEntryMessage(ctx context.Context, e core.LedgerEntry) error {
	if s.amqpClient == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping entry message")
		return nil
	}

	return s.amqpClient.PublishLedgerEntry(ctx, e)
}
