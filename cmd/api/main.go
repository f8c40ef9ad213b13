package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lodgetix/reconcile/api/routes"
	"github.com/lodgetix/reconcile/internal/invoices"
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
	"github.com/lodgetix/reconcile/pkg/pubsub"
	"github.com/lodgetix/reconcile/pkg/redis"
	"github.com/lodgetix/reconcile/pkg/square"
	"github.com/lodgetix/reconcile/pkg/stripe"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "api"

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	// Pub/Sub is only needed by the outbox publisher; the API wires it
	// for the readiness probe when a project is configured.
	var pubsubClient *pubsub.Client
	if cfg.GCP.ProjectID != "" {
		pubsubClient, err = pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap pubsub", err)
			os.Exit(1)
		}
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub client", err)
			}
		}()
	}

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

	paymentImports := staging.NewPaymentImportRepository(dbClient.DB())
	registrationImports := staging.NewRegistrationImportRepository(dbClient.DB())
	paymentRepo := payments.NewRepository(dbClient.DB())
	registrationRepo := registrations.NewRepository(dbClient.DB())
	ticketRepo := tickets.NewTicketRepository(dbClient.DB())
	eventTicketRepo := tickets.NewEventTicketRepository(dbClient.DB())
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	matcher, err := matching.NewMatcher(registrationImports, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create matcher", err)
		os.Exit(1)
	}
	transformer, err := tickets.NewTransformer(eventTicketRepo)
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
		Tickets:             ticketRepo,
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

	composer, err := invoices.NewComposer(cfg.Invoice)
	if err != nil {
		logg.Error(context.Background(), "failed to create invoice composer", err)
		os.Exit(1)
	}
	writer, err := invoices.NewWriter(invoices.WriterParams{
		Config:        cfg.Invoice,
		Logger:        logg,
		DB:            dbClient,
		Invoices:      invoices.NewRepository(dbClient.DB()),
		Ledger:        invoices.NewTransactionRepository(dbClient.DB()),
		Allocator:     invoices.NewAllocator(invoices.NewCounterRepository(dbClient.DB()), cfg.Invoice),
		Payments:      paymentRepo,
		Registrations: registrationRepo,
		Outbox:        outboxService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create invoice writer", err)
		os.Exit(1)
	}
	invoiceService, err := invoices.NewService(invoices.ServiceParams{
		Config:        cfg,
		Logger:        logg,
		Payments:      paymentRepo,
		Registrations: registrationRepo,
		Tickets:       ticketRepo,
		Composer:      composer,
		Writer:        writer,
		Metrics:       pipelineMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create invoice service", err)
		os.Exit(1)
	}

	routerParams := routes.RouterParams{
		Config:      cfg,
		Logger:      logg,
		Metrics:     registry,
		DB:          dbClient,
		Redis:       redisClient,
		Idempotency: redisClient,
		Staging:     stagingService,
		Reconcile:   reconcileService,
		Pending:     pendingService,
		Invoices:    invoiceService,
	}
	if pubsubClient != nil {
		routerParams.PubSub = pubsubClient
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(routerParams),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
