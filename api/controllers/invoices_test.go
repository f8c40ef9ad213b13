package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lodgetix/reconcile/internal/invoices"
)

type stubInvoiceService struct {
	lastParams invoices.ProcessParams
	outcome    *invoices.PaymentOutcome
}

func (s *stubInvoiceService) ProcessInvoices(_ context.Context, params invoices.ProcessParams) (*invoices.ProcessSummary, error) {
	s.lastParams = params
	return &invoices.ProcessSummary{Total: 2, Processed: 2}, nil
}

func (s *stubInvoiceService) ProcessInvoice(_ context.Context, paymentID uuid.UUID, params invoices.ProcessParams) (*invoices.PaymentOutcome, error) {
	s.lastParams = params
	if s.outcome != nil {
		return s.outcome, nil
	}
	return &invoices.PaymentOutcome{
		PaymentID:             paymentID,
		CustomerInvoiceNumber: "LTIV-2508-0001",
		SupplierInvoiceNumber: "LTSP-2508-0001",
	}, nil
}

func TestProcessInvoicesParsesRunParameters(t *testing.T) {
	svc := &stubInvoiceService{}
	handler := ProcessInvoices(svc, nil)

	body := []byte(`{"dryRun": true, "dateFrom": "2025-08-01", "dateTo": "2025-08-31"}`)
	req := httptest.NewRequest(http.MethodPost, "/invoices/process", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !svc.lastParams.DryRun {
		t.Fatal("expected dryRun to pass through")
	}
	if svc.lastParams.DateFrom == nil || svc.lastParams.DateTo == nil {
		t.Fatal("expected both window bounds to be set")
	}
}

func TestProcessInvoicesAllowsEmptyBody(t *testing.T) {
	svc := &stubInvoiceService{}
	handler := ProcessInvoices(svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/invoices/process", nil)
	rec := httptest.NewRecorder()

	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestProcessInvoicesRejectsInvertedWindow(t *testing.T) {
	handler := ProcessInvoices(&stubInvoiceService{}, nil)

	body := []byte(`{"dateFrom": "2025-08-31", "dateTo": "2025-08-01"}`)
	req := httptest.NewRequest(http.MethodPost, "/invoices/process", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestProcessInvoiceRejectsBadPaymentID(t *testing.T) {
	handler := ProcessInvoice(&stubInvoiceService{}, nil)

	router := chi.NewRouter()
	router.Post("/invoices/process/{paymentID}", handler)

	req := httptest.NewRequest(http.MethodPost, "/invoices/process/not-a-uuid", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestProcessInvoiceReturnsOutcome(t *testing.T) {
	svc := &stubInvoiceService{}
	handler := ProcessInvoice(svc, nil)

	router := chi.NewRouter()
	router.Post("/invoices/process/{paymentID}", handler)

	req := httptest.NewRequest(http.MethodPost, "/invoices/process/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var envelope struct {
		Data invoices.PaymentOutcome `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data.CustomerInvoiceNumber != "LTIV-2508-0001" {
		t.Fatalf("unexpected invoice number %q", envelope.Data.CustomerInvoiceNumber)
	}
}

func TestProcessInvoiceSurfacesValidationBlock(t *testing.T) {
	svc := &stubInvoiceService{outcome: &invoices.PaymentOutcome{Error: "validation failed: customer.total: amounts disagree"}}
	handler := ProcessInvoice(svc, nil)

	router := chi.NewRouter()
	router.Post("/invoices/process/{paymentID}", handler)

	req := httptest.NewRequest(http.MethodPost, "/invoices/process/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
}
