package controllers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/lodgetix/reconcile/api/responses"
	"github.com/lodgetix/reconcile/api/validators"
	"github.com/lodgetix/reconcile/internal/staging"
	pkgerrors "github.com/lodgetix/reconcile/pkg/errors"
	"github.com/lodgetix/reconcile/pkg/logger"
)

// StagingService is the slice of the staging surface the import
// endpoints drive.
type StagingService interface {
	ImportSquarePayments(ctx context.Context, window *staging.ImportWindow) (*staging.ImportSummary, error)
	ImportStripeCharges(ctx context.Context, window *staging.ImportWindow) (*staging.ImportSummary, error)
	IngestRegistrations(ctx context.Context, docs []staging.RegistrationDocument) (*staging.IngestSummary, error)
}

// ImportGatewayBody optionally narrows the pull to an explicit window.
// An empty body runs the configured lookback.
type ImportGatewayBody struct {
	DateFrom *string `json:"dateFrom" validate:"omitempty"`
	DateTo   *string `json:"dateTo" validate:"omitempty"`
}

// ImportSquarePayments triggers a Square pull over the requested window.
func ImportSquarePayments(svc StagingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		window, err := importWindowFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		summary, err := svc.ImportSquarePayments(r.Context(), window)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "square import failed"))
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

// ImportStripeCharges triggers a Stripe pull over the requested window.
func ImportStripeCharges(svc StagingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		window, err := importWindowFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		summary, err := svc.ImportStripeCharges(r.Context(), window)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "stripe import failed"))
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

func importWindowFromRequest(r *http.Request) (*staging.ImportWindow, error) {
	if r.ContentLength == 0 {
		return nil, nil
	}
	var body ImportGatewayBody
	if err := validators.DecodeJSONBody(r, &body); err != nil {
		return nil, err
	}
	if body.DateFrom == nil && body.DateTo == nil {
		return nil, nil
	}

	window := &staging.ImportWindow{}
	if body.DateFrom != nil {
		from, err := parseBodyTime("dateFrom", *body.DateFrom)
		if err != nil {
			return nil, err
		}
		window.Begin = *from
	}
	if body.DateTo != nil {
		to, err := parseBodyTime("dateTo", *body.DateTo)
		if err != nil {
			return nil, err
		}
		window.End = *to
	}
	if !window.Begin.IsZero() && !window.End.IsZero() && window.End.Before(window.Begin) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "dateFrom must precede dateTo")
	}
	return window, nil
}

// IngestRegistrationsBody carries raw registration documents. Each
// element keeps whatever shape the source system exported; field
// resolution happens during staging.
type IngestRegistrationsBody struct {
	Registrations []json.RawMessage `json:"registrations" validate:"required,min=1,max=500"`
}

// IngestRegistrations stages a batch of registration documents.
func IngestRegistrations(svc StagingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body IngestRegistrationsBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		docs := make([]staging.RegistrationDocument, 0, len(body.Registrations))
		for i, raw := range body.Registrations {
			var doc staging.RegistrationDocument
			if err := json.Unmarshal(raw, &doc); err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed registration document").
						WithDetails(map[string]any{"index": i}))
				return
			}
			docs = append(docs, doc)
		}

		summary, err := svc.IngestRegistrations(r.Context(), docs)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, summary)
	}
}
