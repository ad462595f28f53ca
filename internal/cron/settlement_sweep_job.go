package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/auction-engine/pkg/logger"
)

const defaultSweepBatch = 100

type SettlementSweepJobParams struct {
	Logger    *logger.Logger
	Settler   unsettledSweeper
	BatchSize int
}

type unsettledSweeper interface {
	SweepUnsettled(ctx context.Context, limit int) (int, error)
}

// NewSettlementSweepJob builds the job that settles ended auctions whose
// in-transaction settlement never landed.
func NewSettlementSweepJob(params SettlementSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Settler == nil {
		return nil, fmt.Errorf("settlement service required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultSweepBatch
	}
	return &settlementSweepJob{logg: params.Logger, settler: params.Settler, batch: batch}, nil
}

type settlementSweepJob struct {
	logg    *logger.Logger
	settler unsettledSweeper
	batch   int
}

func (j *settlementSweepJob) Name() string { return "auction-settlement-sweep" }

func (j *settlementSweepJob) Run(ctx context.Context) error {
	settled, err := j.settler.SweepUnsettled(ctx, j.batch)
	if settled > 0 {
		j.logg.Warn(j.logg.WithField(ctx, "settled", settled), "settled ended auctions missing a settlement row")
	}
	if err != nil {
		return fmt.Errorf("settlement sweep: %w", err)
	}
	return nil
}
