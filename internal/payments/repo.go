package payments

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rentstack/rentstack-backend/pkg/db/models"
	"github.com/rentstack/rentstack-backend/pkg/enums"
	"github.com/rentstack/rentstack-backend/pkg/pagination"
)

// ListFilters narrows payment list queries.
type ListFilters struct {
	ContractID *uuid.UUID
	BillID     *uuid.UUID
	Status     *enums.PaymentStatus
	Provider   *enums.PaymentProvider
}

// StatusStat is one row of the per-status aggregate.
type StatusStat struct {
	Status enums.PaymentStatus `json:"status"`
	Count  int64               `json:"count"`
	Total  decimal.Decimal     `json:"total"`
}

// Repository defines persistence operations for payments and raw provider
// webhook events.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, payment *models.Payment) error
	FindByID(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error)
	FindByIDForUpdate(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*models.Payment, error)
	FindByProviderPaymentID(ctx context.Context, providerPaymentID string) (*models.Payment, error)
	List(ctx context.Context, filters ListFilters, limit int, cursor *pagination.Cursor) ([]models.Payment, error)
	Update(ctx context.Context, paymentID uuid.UUID, updates map[string]any) error
	StatusStats(ctx context.Context) ([]StatusStat, error)
	BillExists(ctx context.Context, billID uuid.UUID) (bool, error)

	CreateWebhook(ctx context.Context, webhook *models.PaymentWebhook) error
	FindWebhookByEventID(ctx context.Context, eventID string) (*models.PaymentWebhook, error)
	UpdateWebhook(ctx context.Context, webhookID uuid.UUID, updates map[string]any) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a payment repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repository) FindByID(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).First(&payment, "id = ?", paymentID).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&payment, "id = ?", paymentID).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) FindByIdempotencyKey(ctx context.Context, key string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).First(&payment, "idempotency_key = ?", key).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) FindByProviderPaymentID(ctx context.Context, providerPaymentID string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).First(&payment, "provider_payment_id = ?", providerPaymentID).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) List(ctx context.Context, filters ListFilters, limit int, cursor *pagination.Cursor) ([]models.Payment, error) {
	query := r.db.WithContext(ctx).Model(&models.Payment{})

	if filters.ContractID != nil {
		query = query.Where("contract_id = ?", *filters.ContractID)
	}
	if filters.BillID != nil {
		query = query.Where("bill_id = ?", *filters.BillID)
	}
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.Provider != nil {
		query = query.Where("provider = ?", *filters.Provider)
	}
	if cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	query = query.Order("created_at DESC").Order("id DESC").Limit(limit)

	var rows []models.Payment
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) Update(ctx context.Context, paymentID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ?", paymentID).
		Updates(updates).Error
}

func (r *repository) StatusStats(ctx context.Context) ([]StatusStat, error) {
	var raw []struct {
		Status string
		Count  int64
		Total  *string
	}
	if err := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Select("status, COUNT(*) AS count, SUM(amount) AS total").
		Group("status").
		Scan(&raw).Error; err != nil {
		return nil, err
	}

	stats := make([]StatusStat, 0, len(raw))
	for _, row := range raw {
		total := decimal.Zero
		if row.Total != nil {
			parsed, err := decimal.NewFromString(*row.Total)
			if err != nil {
				return nil, err
			}
			total = parsed
		}
		stats = append(stats, StatusStat{
			Status: enums.PaymentStatus(row.Status),
			Count:  row.Count,
			Total:  total,
		})
	}
	return stats, nil
}

func (r *repository) BillExists(ctx context.Context, billID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Bill{}).
		Where("id = ?", billID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) CreateWebhook(ctx context.Context, webhook *models.PaymentWebhook) error {
	return r.db.WithContext(ctx).Create(webhook).Error
}

func (r *repository) FindWebhookByEventID(ctx context.Context, eventID string) (*models.PaymentWebhook, error) {
	var webhook models.PaymentWebhook
	if err := r.db.WithContext(ctx).First(&webhook, "event_id = ?", eventID).Error; err != nil {
		return nil, err
	}
	return &webhook, nil
}

func (r *repository) UpdateWebhook(ctx context.Context, webhookID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.PaymentWebhook{}).
		Where("id = ?", webhookID).
		Updates(updates).Error
}
