package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rentstack/rentstack-backend/pkg/db/models"
	"github.com/rentstack/rentstack-backend/pkg/enums"
	"github.com/rentstack/rentstack-backend/pkg/pagination"
)

// ListFilters narrows bill list queries.
type ListFilters struct {
	ContractID   *uuid.UUID
	Status       *enums.BillStatus
	BillingMonth *string
}

// Repository defines persistence operations for bills. It also reads the
// contracts and payments tables for generation input and paid-sum derivation.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, bill *models.Bill) error
	FindByID(ctx context.Context, billID uuid.UUID) (*models.Bill, error)
	FindByIDForUpdate(ctx context.Context, billID uuid.UUID) (*models.Bill, error)
	FindByPeriod(ctx context.Context, contractID uuid.UUID, billingMonth string, utilityTypeID *uuid.UUID) (*models.Bill, error)

	List(ctx context.Context, filters ListFilters, limit int, cursor *pagination.Cursor) ([]models.Bill, error)
	ListDueOn(ctx context.Context, dueOn time.Time) ([]models.Bill, error)
	ListActiveContractsCovering(ctx context.Context, asOf time.Time) ([]models.RentalContract, error)

	MarkOverdueBefore(ctx context.Context, asOf time.Time) (int64, error)
	SumSucceededPayments(ctx context.Context, billID uuid.UUID) (decimal.Decimal, error)
	Update(ctx context.Context, billID uuid.UUID, updates map[string]any) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a billing repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, bill *models.Bill) error {
	return r.db.WithContext(ctx).Create(bill).Error
}

func (r *repository) FindByID(ctx context.Context, billID uuid.UUID) (*models.Bill, error) {
	var bill models.Bill
	if err := r.db.WithContext(ctx).First(&bill, "id = ?", billID).Error; err != nil {
		return nil, err
	}
	return &bill, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, billID uuid.UUID) (*models.Bill, error) {
	var bill models.Bill
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&bill, "id = ?", billID).Error; err != nil {
		return nil, err
	}
	return &bill, nil
}

func (r *repository) FindByPeriod(ctx context.Context, contractID uuid.UUID, billingMonth string, utilityTypeID *uuid.UUID) (*models.Bill, error) {
	query := r.db.WithContext(ctx).
		Where("contract_id = ? AND billing_month = ?", contractID, billingMonth)
	if utilityTypeID == nil {
		query = query.Where("utility_type_id IS NULL")
	} else {
		query = query.Where("utility_type_id = ?", *utilityTypeID)
	}

	var bill models.Bill
	if err := query.First(&bill).Error; err != nil {
		return nil, err
	}
	return &bill, nil
}

func (r *repository) List(ctx context.Context, filters ListFilters, limit int, cursor *pagination.Cursor) ([]models.Bill, error) {
	query := r.db.WithContext(ctx).Model(&models.Bill{})

	if filters.ContractID != nil {
		query = query.Where("contract_id = ?", *filters.ContractID)
	}
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.BillingMonth != nil {
		query = query.Where("billing_month = ?", *filters.BillingMonth)
	}
	if cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	query = query.Order("created_at DESC").Order("id DESC").Limit(limit)

	var rows []models.Bill
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListDueOn(ctx context.Context, dueOn time.Time) ([]models.Bill, error) {
	day := dueOn.Format("2006-01-02")
	var rows []models.Bill
	if err := r.db.WithContext(ctx).
		Where("date(due_date) = ? AND status IN ?", day, []enums.BillStatus{enums.BillStatusPending, enums.BillStatusPartial}).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListActiveContractsCovering(ctx context.Context, asOf time.Time) ([]models.RentalContract, error) {
	var rows []models.RentalContract
	if err := r.db.WithContext(ctx).
		Where("status = ? AND contract_from <= ? AND contract_to >= ?", enums.ContractStatusActive, asOf, asOf).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) MarkOverdueBefore(ctx context.Context, asOf time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Bill{}).
		Where("status = ? AND due_date < ?", enums.BillStatusPending, asOf).
		Update("status", enums.BillStatusOverdue)
	return result.RowsAffected, result.Error
}

func (r *repository) SumSucceededPayments(ctx context.Context, billID uuid.UUID) (decimal.Decimal, error) {
	var raw *string
	err := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Select("SUM(amount)").
		Where("bill_id = ? AND status = ?", billID, enums.PaymentStatusSucceeded).
		Scan(&raw).Error
	if err != nil {
		return decimal.Zero, err
	}
	if raw == nil {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(*raw)
}

func (r *repository) Update(ctx context.Context, billID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Bill{}).
		Where("id = ?", billID).
		Updates(updates).Error
}
