package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/auction-engine/pkg/logger"
)

const defaultLifecycleBatch = 200

// AuctionLifecycleJobParams configure the job that applies time-driven
// auction transitions (scheduled -> active, active -> ended).
type AuctionLifecycleJobParams struct {
	Logger     *logger.Logger
	Reconciler dueReconciler
	BatchSize  int
}

type dueReconciler interface {
	ReconcileDue(ctx context.Context, limit int) (int, error)
}

// NewAuctionLifecycleJob builds the lifecycle tick job.
func NewAuctionLifecycleJob(params AuctionLifecycleJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Reconciler == nil {
		return nil, fmt.Errorf("auction reconciler required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultLifecycleBatch
	}
	return &auctionLifecycleJob{
		logg:       params.Logger,
		reconciler: params.Reconciler,
		batch:      batch,
	}, nil
}

type auctionLifecycleJob struct {
	logg       *logger.Logger
	reconciler dueReconciler
	batch      int
}

func (j *auctionLifecycleJob) Name() string { return "auction-lifecycle" }

// Run reconciles one batch of due auctions. Auctions that failed are still due
// on the next tick, so the error is reported and nothing else is retried here.
func (j *auctionLifecycleJob) Run(ctx context.Context) error {
	applied, err := j.reconciler.ReconcileDue(ctx, j.batch)
	if applied > 0 {
		logCtx := j.logg.WithFields(ctx, map[string]any{
			"auctions_transitioned": applied,
			"batch_size":            j.batch,
		})
		j.logg.Info(logCtx, "auction lifecycle transitions applied")
	}
	if err != nil {
		return fmt.Errorf("reconcile due auctions: %w", err)
	}
	return nil
}
