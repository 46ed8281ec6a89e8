package contracts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rentstack/rentstack-backend/pkg/db/models"
	"github.com/rentstack/rentstack-backend/pkg/enums"
	"github.com/rentstack/rentstack-backend/pkg/pagination"
)

// ListFilters narrows contract list queries.
type ListFilters struct {
	Status      *enums.ContractStatus
	UnitID      *uuid.UUID
	HouseholdID *uuid.UUID
}

// Repository defines persistence operations for rental contracts and their
// author/participant grants.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, contract *models.RentalContract) error
	CreateAuthor(ctx context.Context, author *models.RentalContractAuthor) error
	CreateParticipant(ctx context.Context, participant *models.RentalContractParticipant) error

	FindByID(ctx context.Context, contractID uuid.UUID) (*models.RentalContract, error)
	FindByIDForUpdate(ctx context.Context, contractID uuid.UUID) (*models.RentalContract, error)
	FindActiveByUnitForUpdate(ctx context.Context, unitID uuid.UUID) (*models.RentalContract, error)
	FindAuthor(ctx context.Context, contractID, userID uuid.UUID) (*models.RentalContractAuthor, error)

	List(ctx context.Context, filters ListFilters, limit int, cursor *pagination.Cursor) ([]models.RentalContract, error)
	ListActive(ctx context.Context) ([]models.RentalContract, error)
	ListActiveEndingBefore(ctx context.Context, cutoff time.Time) ([]models.RentalContract, error)
	ListAuthors(ctx context.Context, contractID uuid.UUID) ([]models.RentalContractAuthor, error)
	ListParticipants(ctx context.Context, contractID uuid.UUID) ([]models.RentalContractParticipant, error)

	Update(ctx context.Context, contractID uuid.UUID, updates map[string]any) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a contract repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, contract *models.RentalContract) error {
	return r.db.WithContext(ctx).Create(contract).Error
}

func (r *repository) CreateAuthor(ctx context.Context, author *models.RentalContractAuthor) error {
	return r.db.WithContext(ctx).Create(author).Error
}

func (r *repository) CreateParticipant(ctx context.Context, participant *models.RentalContractParticipant) error {
	return r.db.WithContext(ctx).Create(participant).Error
}

func (r *repository) FindByID(ctx context.Context, contractID uuid.UUID) (*models.RentalContract, error) {
	var contract models.RentalContract
	if err := r.db.WithContext(ctx).First(&contract, "id = ?", contractID).Error; err != nil {
		return nil, err
	}
	return &contract, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, contractID uuid.UUID) (*models.RentalContract, error) {
	var contract models.RentalContract
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&contract, "id = ?", contractID).Error; err != nil {
		return nil, err
	}
	return &contract, nil
}

func (r *repository) FindActiveByUnitForUpdate(ctx context.Context, unitID uuid.UUID) (*models.RentalContract, error) {
	var contract models.RentalContract
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("unit_id = ? AND status = ?", unitID, enums.ContractStatusActive).
		First(&contract).Error; err != nil {
		return nil, err
	}
	return &contract, nil
}

func (r *repository) FindAuthor(ctx context.Context, contractID, userID uuid.UUID) (*models.RentalContractAuthor, error) {
	var author models.RentalContractAuthor
	if err := r.db.WithContext(ctx).
		Where("contract_id = ? AND user_id = ?", contractID, userID).
		First(&author).Error; err != nil {
		return nil, err
	}
	return &author, nil
}

func (r *repository) List(ctx context.Context, filters ListFilters, limit int, cursor *pagination.Cursor) ([]models.RentalContract, error) {
	query := r.db.WithContext(ctx).Model(&models.RentalContract{})

	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.UnitID != nil {
		query = query.Where("unit_id = ?", *filters.UnitID)
	}
	if filters.HouseholdID != nil {
		query = query.Where("tenant_household_id = ?", *filters.HouseholdID)
	}
	if cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	query = query.Order("created_at DESC").Order("id DESC").Limit(limit)

	var rows []models.RentalContract
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListActive(ctx context.Context) ([]models.RentalContract, error) {
	var rows []models.RentalContract
	if err := r.db.WithContext(ctx).
		Where("status = ?", enums.ContractStatusActive).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListActiveEndingBefore(ctx context.Context, cutoff time.Time) ([]models.RentalContract, error) {
	var rows []models.RentalContract
	if err := r.db.WithContext(ctx).
		Where("status = ? AND contract_to < ?", enums.ContractStatusActive, cutoff).
		Order("contract_to ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListAuthors(ctx context.Context, contractID uuid.UUID) ([]models.RentalContractAuthor, error) {
	var rows []models.RentalContractAuthor
	if err := r.db.WithContext(ctx).
		Where("contract_id = ?", contractID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListParticipants(ctx context.Context, contractID uuid.UUID) ([]models.RentalContractParticipant, error) {
	var rows []models.RentalContractParticipant
	if err := r.db.WithContext(ctx).
		Where("contract_id = ?", contractID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) Update(ctx context.Context, contractID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.RentalContract{}).
		Where("id = ?", contractID).
		Updates(updates).Error
}
