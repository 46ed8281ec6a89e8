package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/rentstack/rentstack-backend/internal/notifications"
	"github.com/rentstack/rentstack-backend/pkg/db/models"
	"github.com/rentstack/rentstack-backend/pkg/logger"
)

const defaultReminderLeadDays = 3

// upcomingBillLister is the slice of the billing service this job needs.
type upcomingBillLister interface {
	UpcomingBills(ctx context.Context, dueOn time.Time) ([]models.Bill, error)
}

// BillReminderJobParams configures the due-date reminder job.
type BillReminderJobParams struct {
	Logger     *logger.Logger
	Billing    upcomingBillLister
	Dispatcher notifications.Dispatcher
	// LeadDays is how many days before the due date reminders go out.
	LeadDays int
}

// NewBillReminderJob constructs the job that notifies tenants about
// bills coming due.
func NewBillReminderJob(params BillReminderJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Billing == nil {
		return nil, fmt.Errorf("billing service required")
	}
	if params.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher required")
	}
	leadDays := params.LeadDays
	if leadDays <= 0 {
		leadDays = defaultReminderLeadDays
	}
	return &billReminderJob{
		logg:       params.Logger,
		billing:    params.Billing,
		dispatcher: params.Dispatcher,
		leadDays:   leadDays,
		now:        time.Now,
	}, nil
}

type billReminderJob struct {
	logg       *logger.Logger
	billing    upcomingBillLister
	dispatcher notifications.Dispatcher
	leadDays   int
	now        func() time.Time
}

func (j *billReminderJob) Name() string { return "bill-reminder" }

func (j *billReminderJob) Run(ctx context.Context) error {
	dueOn := j.now().UTC().AddDate(0, 0, j.leadDays)
	bills, err := j.billing.UpcomingBills(ctx, dueOn)
	if err != nil {
		return fmt.Errorf("query upcoming bills: %w", err)
	}

	var errs []error
	sent := 0
	for _, bill := range bills {
		reminder := notifications.BillReminder{
			BillID:       bill.ID,
			ContractID:   bill.ContractID,
			BillingMonth: bill.BillingMonth,
			Amount:       bill.Amount,
			DueDate:      bill.DueDate,
		}
		if err := j.dispatcher.SendBillReminder(ctx, reminder); err != nil {
			logCtx := j.logg.WithField(ctx, "bill_id", bill.ID)
			j.logg.Error(logCtx, "reminder dispatch failed", err)
			errs = append(errs, fmt.Errorf("bill %s: %w", bill.ID, err))
			continue
		}
		sent++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{"sent": sent, "failed": len(errs)})
	j.logg.Info(logCtx, "bill reminder loop complete")
	return multierr.Combine(errs...)
}
