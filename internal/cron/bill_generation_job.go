package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/rentstack/rentstack-backend/internal/billing"
	"github.com/rentstack/rentstack-backend/pkg/logger"
)

// billGenerator is the slice of the billing service this job needs.
type billGenerator interface {
	GenerateMonthlyBills(ctx context.Context, billingMonth string, asOf time.Time) (int, error)
}

// BillGenerationJobParams configures the monthly bill generation job.
type BillGenerationJobParams struct {
	Logger  *logger.Logger
	Billing billGenerator
}

// NewBillGenerationJob constructs the job that materializes rent and
// utility bills for the current billing month.
func NewBillGenerationJob(params BillGenerationJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Billing == nil {
		return nil, fmt.Errorf("billing service required")
	}
	return &billGenerationJob{
		logg:    params.Logger,
		billing: params.Billing,
		now:     time.Now,
	}, nil
}

type billGenerationJob struct {
	logg    *logger.Logger
	billing billGenerator
	now     func() time.Time
}

func (j *billGenerationJob) Name() string { return "bill-generation" }

func (j *billGenerationJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	month := now.Format(billing.BillingMonthLayout)
	created, err := j.billing.GenerateMonthlyBills(ctx, month, now)
	if err != nil {
		return fmt.Errorf("generate bills for %s: %w", month, err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"billing_month": month, "created": created})
	j.logg.Info(logCtx, "bill generation complete")
	return nil
}
