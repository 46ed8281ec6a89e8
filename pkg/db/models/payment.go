package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rentstack/rentstack-backend/pkg/enums"
)

// Payment is one logical payment attempt against a contract, optionally tied
// to a specific bill. The idempotency key uniquely identifies the attempt so
// retried submissions never double-apply funds.
type Payment struct {
	ID                uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ContractID        uuid.UUID             `gorm:"column:contract_id;type:uuid;not null;index"`
	BillID            *uuid.UUID            `gorm:"column:bill_id;type:uuid;index"`
	Amount            decimal.Decimal       `gorm:"column:amount;type:numeric(10,2);not null"`
	PaymentType       enums.PaymentType     `gorm:"column:payment_type;not null;index"`
	Provider          enums.PaymentProvider `gorm:"column:provider;not null;default:'stripe'"`
	ProviderPaymentID *string               `gorm:"column:provider_payment_id;uniqueIndex"`
	Status            enums.PaymentStatus   `gorm:"column:status;not null;default:'pending';index"`
	IdempotencyKey    string                `gorm:"column:idempotency_key;not null;uniqueIndex"`
	ReceivedByID      *uuid.UUID            `gorm:"column:received_by_id;type:uuid"`
	Metadata          json.RawMessage       `gorm:"column:metadata;type:jsonb"`
	CreatedAt         time.Time             `gorm:"column:created_at;autoCreateTime;index"`
	UpdatedAt         time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

// PaymentWebhook stores a raw inbound provider event. The unique event id
// makes delivery idempotent; processed flips to true at most once.
type PaymentWebhook struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Provider     string          `gorm:"column:provider;not null;index"`
	EventID      string          `gorm:"column:event_id;not null;uniqueIndex"`
	EventType    string          `gorm:"column:event_type;not null"`
	Payload      json.RawMessage `gorm:"column:payload;type:jsonb;not null"`
	Processed    bool            `gorm:"column:processed;not null;default:false;index"`
	ProcessedAt  *time.Time      `gorm:"column:processed_at"`
	ErrorMessage *string         `gorm:"column:error_message"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime;index"`
}
