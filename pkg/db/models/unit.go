package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rentstack/rentstack-backend/pkg/enums"
)

// Unit is a rentable apartment or space within a property.
type Unit struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PropertyID uuid.UUID `gorm:"column:property_id;type:uuid;not null"`
	UnitNo     string    `gorm:"column:unit_no;not null"`
	Floor      int       `gorm:"column:floor;not null;default:0"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// RentalTerms holds the current asking terms for a unit. Contracts freeze a
// copy of these at signing time; editing them later never touches existing
// contracts.
type RentalTerms struct {
	UnitID        uuid.UUID       `gorm:"column:unit_id;type:uuid;primaryKey"`
	AskingRent    decimal.Decimal `gorm:"column:asking_rent;type:numeric(10,2);not null"`
	MinimumRent   decimal.Decimal `gorm:"column:minimum_rent;type:numeric(10,2);not null"`
	AdvanceMonths int             `gorm:"column:advance_months;not null;default:2"`
	ServiceCharge decimal.Decimal `gorm:"column:service_charge;type:numeric(10,2);not null;default:0"`
	PaymentDueDay int             `gorm:"column:payment_due_day;not null;default:5"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName overrides the pluralized default.
func (RentalTerms) TableName() string {
	return "rental_terms"
}

// UtilityType names a billable utility (electricity, gas, water).
type UtilityType struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string    `gorm:"column:name;not null;uniqueIndex"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// UnitUtility configures how a utility is billed for one unit.
type UnitUtility struct {
	ID               uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UnitID           uuid.UUID                `gorm:"column:unit_id;type:uuid;not null;uniqueIndex:idx_unit_utility"`
	UtilityTypeID    uuid.UUID                `gorm:"column:utility_type_id;type:uuid;not null;uniqueIndex:idx_unit_utility"`
	BillingType      enums.UtilityBillingType `gorm:"column:billing_type;not null"`
	IsIncludedInRent bool                     `gorm:"column:is_included_in_rent;not null;default:false"`
	CreatedAt        time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName overrides the pluralized default.
func (UnitUtility) TableName() string {
	return "unit_utilities"
}
