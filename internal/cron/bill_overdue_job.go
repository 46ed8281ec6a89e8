package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/rentstack/rentstack-backend/pkg/logger"
)

// overdueSweeper is the slice of the billing service this job needs.
type overdueSweeper interface {
	SweepOverdue(ctx context.Context, asOf time.Time) (int64, error)
}

// BillOverdueJobParams configures the overdue sweep job.
type BillOverdueJobParams struct {
	Logger  *logger.Logger
	Billing overdueSweeper
}

// NewBillOverdueJob constructs the job that flags past-due bills.
func NewBillOverdueJob(params BillOverdueJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Billing == nil {
		return nil, fmt.Errorf("billing service required")
	}
	return &billOverdueJob{
		logg:    params.Logger,
		billing: params.Billing,
		now:     time.Now,
	}, nil
}

type billOverdueJob struct {
	logg    *logger.Logger
	billing overdueSweeper
	now     func() time.Time
}

func (j *billOverdueJob) Name() string { return "bill-overdue" }

func (j *billOverdueJob) Run(ctx context.Context) error {
	marked, err := j.billing.SweepOverdue(ctx, j.now().UTC())
	if err != nil {
		return fmt.Errorf("sweep overdue bills: %w", err)
	}
	logCtx := j.logg.WithField(ctx, "marked", marked)
	j.logg.Info(logCtx, "overdue sweep complete")
	return nil
}
