package routes

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lodgetix/reconcile/pkg/config"
	"github.com/lodgetix/reconcile/pkg/logger"
)

func testRouter() http.Handler {
	cfg := &config.Config{}
	cfg.App.Env = "test"
	cfg.App.CORSOrigins = "http://localhost:3000"
	return NewRouter(RouterParams{
		Config:  cfg,
		Logger:  logger.New(logger.Options{ServiceName: "api-test"}),
		Metrics: prometheus.NewRegistry(),
	})
}

func TestHealthLive(t *testing.T) {
	router := testRouter()
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("X-LodgeTix-Env"); got != "test" {
		t.Fatalf("expected env header, got %q", got)
	}
}

func TestHealthReadySkipsUnwiredDependencies(t *testing.T) {
	router := testRouter()
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 when every dependency is unwired, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestMetricsEndpointServes(t *testing.T) {
	router := testRouter()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestUnwiredServiceRoutesAre404(t *testing.T) {
	router := testRouter()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices/process", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unwired service, got %d", rec.Code)
	}
}
