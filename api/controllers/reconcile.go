package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lodgetix/reconcile/api/responses"
	"github.com/lodgetix/reconcile/internal/pendingimports"
	"github.com/lodgetix/reconcile/internal/reconcile"
	pkgerrors "github.com/lodgetix/reconcile/pkg/errors"
	"github.com/lodgetix/reconcile/pkg/logger"
)

// PendingSweeper rechecks queued registrations for late payments.
type PendingSweeper interface {
	Sweep(ctx context.Context) (*pendingimports.SweepSummary, error)
}

// ReconcilePayments runs one reconciliation pass over staged payments.
func ReconcilePayments(svc reconcile.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := svc.ProcessPayments(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

// ReconcilePayment reprocesses a single staged payment by id.
func ReconcilePayment(svc reconcile.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "paymentImportID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "paymentImportID must be a valid uuid"))
			return
		}
		status, err := svc.ProcessPayment(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{
			"payment_import_id": id.String(),
			"status":            status.String(),
		})
	}
}

// SweepOrphans flags staged registrations whose payment never arrived.
func SweepOrphans(svc reconcile.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := svc.SweepOrphans(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

// SweepPendingImports rechecks the pending queue for late payments.
func SweepPendingImports(svc PendingSweeper, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := svc.Sweep(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}
