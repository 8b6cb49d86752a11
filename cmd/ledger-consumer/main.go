package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"moneytrack/internal/amqp"
	"moneytrack/internal/config"
	"moneytrack/internal/log"
)

// ledger-consumer drains the ledger entry queue and writes an audit line per
// materialized entry. Downstream systems (exports, notifications) hang off
// this queue; until they exist the consumer keeps the queue from growing
// unbounded.
func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.Config{
		Level:     log.ParseLevel(os.Getenv("LOG_LEVEL")),
		Component: log.ComponentConsumer,
	})
	log.SetDefault(logger)

	logger.Info("Starting ledger-consumer")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the consumer")
		os.Exit(1)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	consumeDone := make(chan error, 1)
	go func() {
		consumeDone <- amqpClient.ConsumeLedgerEntries(ctx, func(msg *amqp.LedgerEntryMessage) error {
			logger.Info("Ledger entry materialized",
				log.FieldEntryID, msg.ID,
				log.FieldOwnerID, msg.OwnerID,
				"entry_date", msg.EntryDate)
			return nil
		})
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
		// Give the in-flight delivery a moment to finish before closing
		// the connection.
		select {
		case <-consumeDone:
		case <-time.After(5 * time.Second):
			logger.Warn("Shutdown timeout reached")
		}
	case err := <-consumeDone:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", log.FieldError, err)
			os.Exit(1)
		}
	}
	logger.Info("Ledger-consumer shutdown complete")
}
