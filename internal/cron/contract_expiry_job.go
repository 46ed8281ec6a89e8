package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/rentstack/rentstack-backend/pkg/logger"
)

// contractSweeper is the slice of the contracts service this job needs.
type contractSweeper interface {
	SweepExpired(ctx context.Context, asOf time.Time) (int, error)
}

// ContractExpiryJobParams configures the contract expiry job.
type ContractExpiryJobParams struct {
	Logger    *logger.Logger
	Contracts contractSweeper
}

// NewContractExpiryJob constructs the job that transitions active
// contracts past their end date to expired.
func NewContractExpiryJob(params ContractExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Contracts == nil {
		return nil, fmt.Errorf("contracts service required")
	}
	return &contractExpiryJob{
		logg:      params.Logger,
		contracts: params.Contracts,
		now:       time.Now,
	}, nil
}

type contractExpiryJob struct {
	logg      *logger.Logger
	contracts contractSweeper
	now       func() time.Time
}

func (j *contractExpiryJob) Name() string { return "contract-expiry" }

func (j *contractExpiryJob) Run(ctx context.Context) error {
	expired, err := j.contracts.SweepExpired(ctx, j.now().UTC())
	if err != nil {
		return fmt.Errorf("sweep expired contracts: %w", err)
	}
	logCtx := j.logg.WithField(ctx, "expired", expired)
	j.logg.Info(logCtx, "contract expiry sweep complete")
	return nil
}
