package cron

import (
	"context"
	"fmt"

	"github.com/lodgetix/reconcile/internal/pendingimports"
	"github.com/lodgetix/reconcile/pkg/logger"
)

type pendingSweeper interface {
	Sweep(ctx context.Context) (*pendingimports.SweepSummary, error)
}

// PendingImportsJobParams configure the pending imports job.
type PendingImportsJobParams struct {
	Logger  *logger.Logger
	Pending pendingSweeper
}

// NewPendingImportsJob builds the job that rechecks queued registrations
// for late-arriving payments.
func NewPendingImportsJob(params PendingImportsJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Pending == nil {
		return nil, fmt.Errorf("pending imports service required")
	}
	return &pendingImportsJob{logg: params.Logger, pending: params.Pending}, nil
}

type pendingImportsJob struct {
	logg    *logger.Logger
	pending pendingSweeper
}

func (j *pendingImportsJob) Name() string { return "pending-imports" }

func (j *pendingImportsJob) Run(ctx context.Context) error {
	summary, err := j.pending.Sweep(ctx)
	if err != nil {
		return fmt.Errorf("sweep pending imports: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"checked":  summary.Checked,
		"promoted": summary.Promoted,
		"retried":  summary.Retried,
		"failed":   summary.Failed,
	})
	j.logg.Info(logCtx, "pending imports sweep complete")
	return nil
}
