package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rentstack/rentstack-backend/pkg/logger"
)

// BillReminder carries the facts a reminder message needs.
type BillReminder struct {
	BillID       uuid.UUID
	ContractID   uuid.UUID
	BillingMonth string
	Amount       decimal.Decimal
	DueDate      time.Time
}

// Dispatcher delivers outbound notifications. Implementations may push
// to email, SMS, or a message broker.
type Dispatcher interface {
	SendBillReminder(ctx context.Context, reminder BillReminder) error
}

// LogDispatcher writes notifications to the structured log. It stands in
// until a real delivery channel is wired up.
type LogDispatcher struct {
	logg *logger.Logger
}

// NewLogDispatcher constructs a log-backed dispatcher.
func NewLogDispatcher(logg *logger.Logger) (*LogDispatcher, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &LogDispatcher{logg: logg}, nil
}

func (d *LogDispatcher) SendBillReminder(ctx context.Context, reminder BillReminder) error {
	logCtx := d.logg.WithFields(ctx, map[string]any{
		"bill_id":       reminder.BillID,
		"contract_id":   reminder.ContractID,
		"billing_month": reminder.BillingMonth,
		"amount":        reminder.Amount.String(),
		"due_date":      reminder.DueDate.Format("2006-01-02"),
	})
	d.logg.Info(logCtx, "bill reminder")
	return nil
}
