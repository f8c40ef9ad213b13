package cron

import (
	"context"
	"fmt"

	"github.com/lodgetix/reconcile/internal/reconcile"
	"github.com/lodgetix/reconcile/pkg/logger"
)

type paymentProcessor interface {
	ProcessPayments(ctx context.Context) (*reconcile.Summary, error)
}

// ReconcileJobParams configure the reconciliation job.
type ReconcileJobParams struct {
	Logger    *logger.Logger
	Reconcile paymentProcessor
}

// NewReconcileJob builds the job that walks unprocessed staged payments
// through matching and promotion.
func NewReconcileJob(params ReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Reconcile == nil {
		return nil, fmt.Errorf("reconcile service required")
	}
	return &reconcileJob{logg: params.Logger, reconcile: params.Reconcile}, nil
}

type reconcileJob struct {
	logg      *logger.Logger
	reconcile paymentProcessor
}

func (j *reconcileJob) Name() string { return "reconcile-payments" }

func (j *reconcileJob) Run(ctx context.Context) error {
	summary, err := j.reconcile.ProcessPayments(ctx)
	if err != nil {
		return fmt.Errorf("process payments: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"processed":       summary.Processed,
		"imported":        summary.Imported,
		"skipped":         summary.Skipped,
		"failed_no_match": summary.FailedNoMatch,
		"failed":          summary.Failed,
		"pending":         summary.Pending,
	})
	j.logg.Info(logCtx, "reconcile pass complete")
	return nil
}
