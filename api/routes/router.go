package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lodgetix/reconcile/api/controllers"
	"github.com/lodgetix/reconcile/api/middleware"
	"github.com/lodgetix/reconcile/internal/reconcile"
	"github.com/lodgetix/reconcile/pkg/config"
	"github.com/lodgetix/reconcile/pkg/logger"
)

// RouterParams wire the services and dependency pingers into the HTTP
// surface. Nil pingers are reported as skipped by the readiness check;
// nil services leave their routes unregistered.
type RouterParams struct {
	Config  *config.Config
	Logger  *logger.Logger
	Metrics prometheus.Gatherer

	DB     controllers.Pinger
	Redis  controllers.Pinger
	PubSub controllers.Pinger

	// Idempotency backs the X-Idempotency-Key guard on manual import
	// triggers. Nil disables the guard.
	Idempotency middleware.IdempotencyStore

	Staging   controllers.StagingService
	Reconcile reconcile.Service
	Pending   controllers.PendingSweeper
	Invoices  controllers.InvoiceService
}

// NewRouter assembles the reconcile API.
func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"database": params.DB,
			"redis":    params.Redis,
			"pubsub":   params.PubSub,
		}))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(params.Metrics, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		if params.Staging != nil {
			r.Route("/imports", func(r chi.Router) {
				r.Use(middleware.Idempotency(params.Idempotency, "imports", logg))
				r.Post("/square", controllers.ImportSquarePayments(params.Staging, logg))
				r.Post("/stripe", controllers.ImportStripeCharges(params.Staging, logg))
				r.Post("/registrations", controllers.IngestRegistrations(params.Staging, logg))
			})
		}

		if params.Reconcile != nil {
			r.Route("/reconcile", func(r chi.Router) {
				r.Post("/", controllers.ReconcilePayments(params.Reconcile, logg))
				r.Post("/payments/{paymentImportID}", controllers.ReconcilePayment(params.Reconcile, logg))
				r.Post("/orphans", controllers.SweepOrphans(params.Reconcile, logg))
			})
		}

		if params.Pending != nil {
			r.Post("/pending-imports/sweep", controllers.SweepPendingImports(params.Pending, logg))
		}

		if params.Invoices != nil {
			r.Route("/invoices", func(r chi.Router) {
				r.Post("/process", controllers.ProcessInvoices(params.Invoices, logg))
				r.Post("/process/{paymentID}", controllers.ProcessInvoice(params.Invoices, logg))
			})
		}
	})

	return r
}
