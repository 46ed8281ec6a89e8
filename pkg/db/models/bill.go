package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rentstack/rentstack-backend/pkg/enums"
)

// Bill is one periodic charge on a contract. A null utility type means a
// rent bill. amount_paid and amount_remaining are derived from succeeded
// payments and never stored.
type Bill struct {
	ID            uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ContractID    uuid.UUID        `gorm:"column:contract_id;type:uuid;not null;uniqueIndex:idx_bill_period"`
	UtilityTypeID *uuid.UUID       `gorm:"column:utility_type_id;type:uuid;uniqueIndex:idx_bill_period"`
	Amount        decimal.Decimal  `gorm:"column:amount;type:numeric(10,2);not null"`
	BillingMonth  string           `gorm:"column:billing_month;not null;uniqueIndex:idx_bill_period;index"`
	DueDate       time.Time        `gorm:"column:due_date;type:date;not null;index"`
	Status        enums.BillStatus `gorm:"column:status;not null;default:'pending';index"`
	PaidOn        *time.Time       `gorm:"column:paid_on"`
	ExternalRef   *string          `gorm:"column:external_ref"`
	CreatedAt     time.Time        `gorm:"column:created_at;autoCreateTime;index"`
	UpdatedAt     time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// IsRent reports whether the bill charges base rent rather than a utility.
func (b Bill) IsRent() bool {
	return b.UtilityTypeID == nil
}
