package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lodgetix/reconcile/internal/cron"
	"github.com/lodgetix/reconcile/internal/matching"
	"github.com/lodgetix/reconcile/internal/payments"
	"github.com/lodgetix/reconcile/internal/pendingimports"
	"github.com/lodgetix/reconcile/internal/reconcile"
	"github.com/lodgetix/reconcile/internal/registrations"
	"github.com/lodgetix/reconcile/internal/staging"
	"github.com/lodgetix/reconcile/internal/tickets"
	"github.com/lodgetix/reconcile/pkg/config"
	"github.com/lodgetix/reconcile/pkg/db"
	"github.com/lodgetix/reconcile/pkg/logger"
	"github.com/lodgetix/reconcile/pkg/metrics"
	"github.com/lodgetix/reconcile/pkg/migrate"
	"github.com/lodgetix/reconcile/pkg/outbox"
	"github.com/lodgetix/reconcile/pkg/redis"
	"github.com/lodgetix/reconcile/pkg/square"
	"github.com/lodgetix/reconcile/pkg/stripe"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "reconcile-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "reconcile-worker"

	logg = logger.New(logger.Options{
		ServiceName: "reconcile-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, cfg.Flags, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	var squareClient *square.Client
	if cfg.Square.AccessToken != "" {
		squareClient, err = square.NewClient(context.Background(), cfg.Square, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap square client", err)
			os.Exit(1)
		}
	}

	var stripeClient *stripe.Client
	if cfg.Stripe.APIKey != "" {
		stripeClient, err = stripe.NewClient(context.Background(), cfg.Stripe, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap stripe client", err)
			os.Exit(1)
		}
	}

	registry := prometheus.NewRegistry()
	pipelineMetrics := metrics.NewPipelineMetrics(registry)
	cronMetrics := metrics.NewCronJobMetrics(registry)

	paymentImports := staging.NewPaymentImportRepository(dbClient.DB())
	registrationImports := staging.NewRegistrationImportRepository(dbClient.DB())
	paymentRepo := payments.NewRepository(dbClient.DB())
	registrationRepo := registrations.NewRepository(dbClient.DB())
	outboxRepo := outbox.NewRepository(dbClient.DB())
	outboxService := outbox.NewService(outboxRepo, logg)

	matcher, err := matching.NewMatcher(registrationImports, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create matcher", err)
		os.Exit(1)
	}
	transformer, err := tickets.NewTransformer(tickets.NewEventTicketRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create ticket transformer", err)
		os.Exit(1)
	}

	reconcileService, err := reconcile.NewService(reconcile.ServiceParams{
		Config:              cfg,
		Logger:              logg,
		DB:                  dbClient,
		PaymentImports:      paymentImports,
		RegistrationImports: registrationImports,
		Payments:            paymentRepo,
		Registrations:       registrationRepo,
		Tickets:             tickets.NewTicketRepository(dbClient.DB()),
		Matcher:             matcher,
		Transformer:         transformer,
		Outbox:              outboxService,
		Metrics:             pipelineMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reconcile service", err)
		os.Exit(1)
	}

	pendingService, err := pendingimports.NewService(pendingimports.ServiceParams{
		Config:              cfg,
		Logger:              logg,
		DB:                  dbClient,
		Pending:             pendingimports.NewRepository(dbClient.DB()),
		Failed:              pendingimports.NewFailedRegistrationRepository(dbClient.DB()),
		RegistrationImports: registrationImports,
		Payments:            paymentRepo,
		Promoter:            reconcileService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create pending imports service", err)
		os.Exit(1)
	}

	stagingParams := staging.ServiceParams{
		Config:        cfg,
		Logger:        logg,
		DB:            dbClient,
		Payments:      paymentImports,
		Registrations: registrationImports,
		Outbox:        outboxService,
		Pending:       pendingService,
		Metrics:       pipelineMetrics,
	}
	if squareClient != nil {
		stagingParams.Square = squareClient
	}
	if stripeClient != nil {
		stagingParams.Stripe = stripeClient
	}
	stagingService, err := staging.NewService(stagingParams)
	if err != nil {
		logg.Error(context.Background(), "failed to create staging service", err)
		os.Exit(1)
	}

	jobs := cron.NewRegistry()
	if squareClient != nil || stripeClient != nil {
		importJob, err := cron.NewGatewayImportJob(cron.GatewayImportJobParams{
			Logger:  logg,
			Staging: stagingService,
			Square:  squareClient != nil,
			Stripe:  stripeClient != nil,
		})
		if err != nil {
			logg.Error(context.Background(), "failed to create gateway import job", err)
			os.Exit(1)
		}
		jobs.Register(importJob)
	} else {
		logg.Warn(context.Background(), "no payment gateway configured; gateway import job disabled")
	}

	reconcileJob, err := cron.NewReconcileJob(cron.ReconcileJobParams{
		Logger:    logg,
		Reconcile: reconcileService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reconcile job", err)
		os.Exit(1)
	}
	jobs.Register(reconcileJob)

	orphanJob, err := cron.NewOrphanSweepJob(cron.OrphanSweepJobParams{
		Logger:    logg,
		Reconcile: reconcileService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create orphan sweep job", err)
		os.Exit(1)
	}
	jobs.Register(orphanJob)

	pendingJob, err := cron.NewPendingImportsJob(cron.PendingImportsJobParams{
		Logger:  logg,
		Pending: pendingService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create pending imports job", err)
		os.Exit(1)
	}
	jobs.Register(pendingJob)

	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		Repository: outboxRepo,
		Retention:  cfg.Reconcile.OutboxRetentionAge,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox retention job", err)
		os.Exit(1)
	}
	jobs.Register(retentionJob)

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("reconcile-sweep"), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create sweep lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: jobs,
		Lock:     lock,
		Metrics:  cronMetrics,
		Interval: cfg.Reconcile.SweepInterval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create sweep service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting reconcile worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "reconcile worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "reconcile worker shutting down gracefully")
}
