package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rentstack/rentstack-backend/pkg/enums"
)

// RentalContract binds a unit to a tenant household for a period. Financial
// terms are frozen at signing; rows are never deleted so the financial
// history stays intact.
type RentalContract struct {
	ID                      uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UnitID                  uuid.UUID            `gorm:"column:unit_id;type:uuid;not null;index"`
	TenantHouseholdID       uuid.UUID            `gorm:"column:tenant_household_id;type:uuid;not null;index"`
	ContractFrom            time.Time            `gorm:"column:contract_from;type:date;not null;index"`
	ContractTo              time.Time            `gorm:"column:contract_to;type:date;not null;index"`
	RentAmountAtContract    decimal.Decimal      `gorm:"column:rent_amount_at_contract;type:numeric(10,2);not null"`
	ServiceChargeAtContract decimal.Decimal      `gorm:"column:service_charge_at_contract;type:numeric(10,2);not null;default:0"`
	AdvancePaidMonths       int                  `gorm:"column:advance_paid_months;not null;default:0"`
	PaymentDueDay           int                  `gorm:"column:payment_due_day;not null;default:5"`
	Status                  enums.ContractStatus `gorm:"column:status;not null;default:'active';index"`
	TerminatedAt            *time.Time           `gorm:"column:terminated_at"`
	TerminationReason       *string              `gorm:"column:termination_reason"`
	CreatedByID             uuid.UUID            `gorm:"column:created_by_id;type:uuid;not null"`
	CreatedAt               time.Time            `gorm:"column:created_at;autoCreateTime;index"`
	UpdatedAt               time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

// RentalContractAuthor grants a user management permissions scoped to one
// contract. The lifecycle service consults these flags before allowing a
// transition.
type RentalContractAuthor struct {
	ID           uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ContractID   uuid.UUID        `gorm:"column:contract_id;type:uuid;not null;uniqueIndex:idx_contract_author"`
	UserID       uuid.UUID        `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_contract_author"`
	Role         enums.AuthorRole `gorm:"column:role;not null"`
	CanApprove   bool             `gorm:"column:can_approve;not null;default:false"`
	CanTerminate bool             `gorm:"column:can_terminate;not null;default:false"`
	CanRenew     bool             `gorm:"column:can_renew;not null;default:false"`
	IsActive     bool             `gorm:"column:is_active;not null;default:true;index"`
	CreatedAt    time.Time        `gorm:"column:created_at;autoCreateTime"`
}

// RentalContractParticipant attaches additional households to a contract.
type RentalContractParticipant struct {
	ID          uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ContractID  uuid.UUID             `gorm:"column:contract_id;type:uuid;not null;uniqueIndex:idx_contract_participant"`
	HouseholdID uuid.UUID             `gorm:"column:household_id;type:uuid;not null;uniqueIndex:idx_contract_participant"`
	Role        enums.ParticipantRole `gorm:"column:role;not null"`
	CreatedAt   time.Time             `gorm:"column:created_at;autoCreateTime"`
}
