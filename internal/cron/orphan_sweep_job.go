package cron

import (
	"context"
	"fmt"

	"github.com/lodgetix/reconcile/internal/reconcile"
	"github.com/lodgetix/reconcile/pkg/logger"
)

type orphanSweeper interface {
	SweepOrphans(ctx context.Context) (*reconcile.SweepSummary, error)
}

// OrphanSweepJobParams configure the orphan sweep job.
type OrphanSweepJobParams struct {
	Logger    *logger.Logger
	Reconcile orphanSweeper
}

// NewOrphanSweepJob builds the job that flags staged registrations whose
// payment never arrived inside the lookback window.
func NewOrphanSweepJob(params OrphanSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Reconcile == nil {
		return nil, fmt.Errorf("reconcile service required")
	}
	return &orphanSweepJob{logg: params.Logger, reconcile: params.Reconcile}, nil
}

type orphanSweepJob struct {
	logg      *logger.Logger
	reconcile orphanSweeper
}

func (j *orphanSweepJob) Name() string { return "orphan-sweep" }

func (j *orphanSweepJob) Run(ctx context.Context) error {
	summary, err := j.reconcile.SweepOrphans(ctx)
	if err != nil {
		return fmt.Errorf("sweep orphans: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"checked":  summary.Checked,
		"orphaned": summary.Orphaned,
		"retained": summary.Retained,
	})
	j.logg.Info(logCtx, "orphan sweep complete")
	return nil
}
