package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lodgetix/reconcile/api/responses"
	"github.com/lodgetix/reconcile/api/validators"
	"github.com/lodgetix/reconcile/internal/invoices"
	pkgerrors "github.com/lodgetix/reconcile/pkg/errors"
	"github.com/lodgetix/reconcile/pkg/logger"
)

// InvoiceService is the slice of the invoice surface the endpoints
// drive.
type InvoiceService interface {
	ProcessInvoices(ctx context.Context, params invoices.ProcessParams) (*invoices.ProcessSummary, error)
	ProcessInvoice(ctx context.Context, paymentID uuid.UUID, params invoices.ProcessParams) (*invoices.PaymentOutcome, error)
}

// ProcessInvoicesBody mirrors the run parameters. All fields are
// optional; an empty body issues invoices for the whole backlog.
type ProcessInvoicesBody struct {
	DryRun            bool    `json:"dryRun"`
	Regenerate        bool    `json:"regenerate"`
	DateFrom          *string `json:"dateFrom,omitempty"`
	DateTo            *string `json:"dateTo,omitempty"`
	SpecificPaymentID *string `json:"specificPaymentId,omitempty" validate:"omitempty,uuid"`
}

// ProcessInvoices runs invoice issuance over payments awaiting invoices.
func ProcessInvoices(svc InvoiceService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body ProcessInvoicesBody
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &body); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		params, err := paramsFromBody(body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		summary, err := svc.ProcessInvoices(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

// ProcessInvoice issues (or regenerates) the invoice pair for one
// payment.
func ProcessInvoice(svc InvoiceService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		paymentID, err := uuid.Parse(chi.URLParam(r, "paymentID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "paymentID must be a valid uuid"))
			return
		}

		var body ProcessInvoicesBody
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &body); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		params, err := paramsFromBody(body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		outcome, err := svc.ProcessInvoice(r.Context(), paymentID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if outcome.Error != "" {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeStateConflict, outcome.Error))
			return
		}
		responses.WriteSuccess(w, outcome)
	}
}

func paramsFromBody(body ProcessInvoicesBody) (invoices.ProcessParams, error) {
	params := invoices.ProcessParams{
		DryRun:     body.DryRun,
		Regenerate: body.Regenerate,
	}
	if body.DateFrom != nil {
		from, err := parseBodyTime("dateFrom", *body.DateFrom)
		if err != nil {
			return params, err
		}
		params.DateFrom = from
	}
	if body.DateTo != nil {
		to, err := parseBodyTime("dateTo", *body.DateTo)
		if err != nil {
			return params, err
		}
		params.DateTo = to
	}
	if params.DateFrom != nil && params.DateTo != nil && params.DateTo.Before(*params.DateFrom) {
		return params, pkgerrors.New(pkgerrors.CodeValidation, "dateFrom must precede dateTo")
	}
	if body.SpecificPaymentID != nil {
		id, err := uuid.Parse(*body.SpecificPaymentID)
		if err != nil {
			return params, pkgerrors.New(pkgerrors.CodeValidation, "specificPaymentId must be a valid uuid")
		}
		params.PaymentID = &id
	}
	return params, nil
}

func parseBodyTime(field, raw string) (*time.Time, error) {
	value, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		// Allow bare dates too; the export tooling sends both shapes.
		value, err = time.Parse("2006-01-02", raw)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, field+" must be an RFC 3339 timestamp or YYYY-MM-DD date")
		}
	}
	return &value, nil
}
