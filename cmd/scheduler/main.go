/**
 * @description
 * This is the main entry point for the payout scheduler.
 * This service is a non-HTTP, long-running process that executes the payout
 * generation batch on a cron schedule. It initializes the configuration,
 * database connection, and the cron scheduler, then starts it.
 */
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"

	"github.com/fundmythesis/funding-service/internal/app"
	"github.com/fundmythesis/funding-service/internal/config"
	"github.com/fundmythesis/funding-service/internal/store"
	"github.com/fundmythesis/funding-service/pkg/paypalclient"
	fmrabbit "github.com/fundmythesis/funding-service/pkg/rabbitmq"
	"github.com/fundmythesis/funding-service/pkg/stripeclient"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// Load application configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	feeRate, err := decimal.NewFromString(cfg.PayoutFeeRate)
	if err != nil || feeRate.IsNegative() || feeRate.GreaterThan(decimal.NewFromInt(1)) {
		logger.Error("invalid payout fee rate", "value", cfg.PayoutFeeRate, "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// Establish database connection with connection pool configuration
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Error("unable to parse database URL", "error", err)
		os.Exit(1)
	}
	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statement caching to prevent conflicts
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Error("unable to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbpool.Close()
	logger.Info("database connection established")

	var producer app.Publisher
	rabbitProducer, err := fmrabbit.NewEventProducer(cfg.RabbitMQURL)
	if err != nil {
		logger.Warn("rabbitmq producer unavailable, payout events will not be published", "error", err)
		producer = &fmrabbit.NoopProducer{}
	} else {
		defer rabbitProducer.Close()
		producer = rabbitProducer
		logger.Info("rabbitmq producer connected")
	}

	// Initialize dependencies. The payout batch never talks to the payment
	// providers, but the service carries them for its other operations.
	repository := store.NewPostgresRepository(dbpool)
	stripeClient := stripeclient.NewClient(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
	paypalClient := paypalclient.NewClient(cfg.PayPalBaseURL, cfg.PayPalClientID, cfg.PayPalClientSecret, cfg.PayPalWebhookID)
	fundingService := app.NewService(
		repository,
		stripeClient,
		paypalClient,
		producer,
		feeRate,
		cfg.CheckoutSuccessURL,
		cfg.CheckoutCancelURL,
	)

	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger)))

	runPayouts := func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		created, err := fundingService.GeneratePayouts(jobCtx)
		if err != nil {
			logger.Error("payout batch failed", "error", err)
			return
		}
		logger.Info("payout batch finished", "created", created)
	}

	if _, err := c.AddFunc(cfg.PayoutJobSchedule, runPayouts); err != nil {
		logger.Error("failed to schedule payout job", "error", err)
		os.Exit(1)
	}
	logger.Info("scheduled payout job", "schedule", cfg.PayoutJobSchedule)

	c.Start()
	logger.Info("scheduler started")

	// Wait for termination signal to gracefully shut down
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutdown signal received, stopping scheduler")
	stopCtx := c.Stop()
	<-stopCtx.Done()
	logger.Info("scheduler stopped gracefully")
}
