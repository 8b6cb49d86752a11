package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"moneytrack/internal/amqp"
	"moneytrack/internal/config"
	"moneytrack/internal/log"
	"moneytrack/internal/services"
	"moneytrack/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.Config{
		Level:     log.ParseLevel(os.Getenv("LOG_LEVEL")),
		Component: log.ComponentWorker,
	})
	log.SetDefault(logger)

	logger.Info("Starting scheduler-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository",
			log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without event publishing",
				log.FieldError, err)
			amqpClient = nil
		} else {
			defer amqpClient.Close()
			logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange)
		}
	} else {
		logger.Info("AMQP disabled - ledger events will not be published")
	}

	ledgerService := services.NewLedgerService(repo, amqpClient)
	materializer := services.NewMaterializer(repo, ledgerService)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Ticks run on their own context, not the signal one: a shutdown signal
	// must not cancel a tick that is halfway through writing entries. The
	// scheduler.Stop() drain below waits for the in-flight tick instead.
	runTick := func() {
		result, err := materializer.RunTick(context.Background(), time.Now())
		if err != nil {
			if errors.Is(err, services.ErrTickRunning) {
				logger.Warn("Tick skipped, previous tick still running")
				return
			}
			logger.Error("Materializer tick failed", log.FieldError, err)
			return
		}
		logger.Info("Materializer tick done",
			log.FieldChecked, result.Checked,
			log.FieldFired, result.Fired,
			log.FieldFailed, result.Failed)
	}

	scheduler := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cronLogger{logger}),
		cron.Recover(cronLogger{logger}),
	))
	if _, err := scheduler.AddFunc(cfg.TickSpec, runTick); err != nil {
		logger.Error("Failed to schedule tick", log.FieldError, err, "spec", cfg.TickSpec)
		os.Exit(1)
	}

	// Catch up immediately after downtime instead of waiting for the next
	// scheduled tick.
	if cfg.RunOnStartup {
		logger.Info("Running startup tick")
		runTick()
	}

	scheduler.Start()
	logger.Info("Scheduler started", "spec", cfg.TickSpec)

	<-ctx.Done()
	logger.Info("Shutdown signal received, waiting for in-flight tick")

	// Stop returns a context that ends when running jobs finish.
	drained := scheduler.Stop()
	select {
	case <-drained.Done():
		logger.Info("Scheduler-worker shutdown complete")
	case <-time.After(30 * time.Second):
		logger.Warn("Shutdown timeout reached")
	}
}

// cronLogger adapts our logger to the cron.Logger interface.
type cronLogger struct {
	logger *log.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.logger.Info(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.logger.Error(msg, append([]interface{}{log.FieldError, err}, keysAndValues...)...)
}
