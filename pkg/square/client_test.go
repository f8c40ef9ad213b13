package square

import (
	"errors"
	"net/http"
	"testing"
	"time"

	sq "github.com/square/square-go-sdk"
	sqcore "github.com/square/square-go-sdk/core"

	pkgerrors "github.com/lodgetix/reconcile/pkg/errors"
)

func TestListPaymentsRequestDefaultsLimit(t *testing.T) {
	req := listPaymentsRequest(ListPaymentsParams{})
	if req.Limit == nil {
		t.Fatal("expected default limit to be set")
	}
	if *req.Limit != defaultPageLimit {
		t.Fatalf("expected limit %d, got %d", defaultPageLimit, *req.Limit)
	}
	if req.LocationID != nil {
		t.Fatalf("expected blank location to be omitted, got %q", *req.LocationID)
	}
	if req.BeginTime != nil || req.EndTime != nil {
		t.Fatal("expected zero window to be omitted")
	}
}

func TestListPaymentsRequestFormatsWindow(t *testing.T) {
	begin := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 8, 15, 12, 30, 0, 0, time.UTC)
	req := listPaymentsRequest(ListPaymentsParams{
		LocationID: " LOC1 ",
		BeginTime:  begin,
		EndTime:    end,
		Limit:      25,
	})
	if req.Limit == nil || *req.Limit != 25 {
		t.Fatalf("expected limit 25, got %v", req.Limit)
	}
	if req.LocationID == nil || *req.LocationID != "LOC1" {
		t.Fatalf("expected trimmed location, got %v", req.LocationID)
	}
	if req.BeginTime == nil || *req.BeginTime != "2025-08-01T00:00:00Z" {
		t.Fatalf("unexpected begin time %v", req.BeginTime)
	}
	if req.EndTime == nil || *req.EndTime != "2025-08-15T12:30:00Z" {
		t.Fatalf("unexpected end time %v", req.EndTime)
	}
}

func TestRedact(t *testing.T) {
	c := &Client{}
	if out := c.redact("payment_token", "abc123"); out != "[REDACTED]" {
		t.Fatalf("expected redacted value, got %v", out)
	}
	// Non-sensitive keys should be preserved.
	if v := c.redact("status", "ok"); v != "ok" {
		t.Fatalf("unexpected redaction for safe key")
	}
}

func TestDomainCodeForStatus(t *testing.T) {
	tests := []struct {
		status int
		code   pkgerrors.Code
	}{
		{http.StatusNotFound, pkgerrors.CodeNotFound},
		{http.StatusConflict, pkgerrors.CodeConflict},
		{http.StatusBadRequest, pkgerrors.CodeValidation},
		{http.StatusUnprocessableEntity, pkgerrors.CodeStateConflict},
		{http.StatusTooManyRequests, pkgerrors.CodeValidation},
		{http.StatusInternalServerError, pkgerrors.CodeDependency},
	}
	for _, tt := range tests {
		if got := domainCodeForStatus(tt.status); got != tt.code {
			t.Fatalf("status %d expected %s got %s", tt.status, tt.code, got)
		}
	}
}

func TestMapSquareError(t *testing.T) {
	c := &Client{}
	table := []struct {
		name     string
		status   int
		payload  string
		wantCode pkgerrors.Code
	}{
		{
			name:     "not found",
			status:   http.StatusNotFound,
			payload:  `{"errors":[{"category":"INVALID_REQUEST_ERROR","code":"NOT_FOUND"}]}`,
			wantCode: pkgerrors.CodeNotFound,
		},
		{
			name:     "idempotency key reused",
			status:   http.StatusConflict,
			payload:  `{"errors":[{"category":"API_ERROR","code":"IDEMPOTENCY_KEY_REUSED"}]}`,
			wantCode: pkgerrors.CodeIdempotency,
		},
	}
	for _, tt := range table {
		err := sqcore.NewAPIError(tt.status, errors.New(tt.payload))
		mapped := c.mapSquareError(err, "operation")
		if mapped == nil {
			t.Fatalf("%s: expected error", tt.name)
		}
		typed := pkgerrors.As(mapped)
		if typed == nil {
			t.Fatalf("%s: result is not pkgerror", tt.name)
		}
		if typed.Code() != tt.wantCode {
			t.Fatalf("%s: expected code %s, got %s", tt.name, tt.wantCode, typed.Code())
		}
	}
}

func TestMapSquareErrorWrapsTransportFailures(t *testing.T) {
	c := &Client{}
	mapped := c.mapSquareError(errors.New("connection reset"), "list payments")
	typed := pkgerrors.As(mapped)
	if typed == nil {
		t.Fatal("expected pkgerror")
	}
	if typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency code, got %s", typed.Code())
	}
}

func TestExtractSquareErrors(t *testing.T) {
	c := &Client{}
	payload := `{"errors":[{"category":"API_ERROR","code":"BAD_REQUEST","detail":"oops"}]}`
	apiErr := sqcore.NewAPIError(http.StatusBadRequest, errors.New(payload))
	got := c.extractSquareErrors(apiErr)
	if len(got) != 1 {
		t.Fatalf("expected 1 error, got %d", len(got))
	}
	if got[0].GetCode() != sq.ErrorCodeBadRequest {
		t.Fatalf("unexpected error code %s", got[0].GetCode())
	}
}

func TestNormalizeEnv(t *testing.T) {
	if env, err := normalizeEnv(""); err != nil || env != sandboxEnv {
		t.Fatalf("expected empty env to default to sandbox, got %q err %v", env, err)
	}
	if env, err := normalizeEnv(" Production "); err != nil || env != productionEnv {
		t.Fatalf("expected normalized production, got %q err %v", env, err)
	}
	if _, err := normalizeEnv("staging"); err == nil {
		t.Fatal("expected error for unknown environment")
	}
}
