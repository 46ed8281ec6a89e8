package properties

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rentstack/rentstack-backend/pkg/db/models"
)

// Repository exposes the reads the contract and billing services need,
// plus the minimal creates used by seeding and tests.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindUnit(ctx context.Context, unitID uuid.UUID) (*models.Unit, error)
	FindRentalTerms(ctx context.Context, unitID uuid.UUID) (*models.RentalTerms, error)
	ListUnitUtilities(ctx context.Context, unitID uuid.UUID) ([]models.UnitUtility, error)
	FindHousehold(ctx context.Context, householdID uuid.UUID) (*models.Household, error)
	FindUser(ctx context.Context, userID uuid.UUID) (*models.User, error)

	CreateLocation(ctx context.Context, location *models.Location) error
	CreateProperty(ctx context.Context, property *models.Property) error
	CreateUnit(ctx context.Context, unit *models.Unit) error
	CreateRentalTerms(ctx context.Context, terms *models.RentalTerms) error
	CreateUtilityType(ctx context.Context, utilityType *models.UtilityType) error
	CreateUnitUtility(ctx context.Context, unitUtility *models.UnitUtility) error
	CreateHousehold(ctx context.Context, household *models.Household) error
	CreateUser(ctx context.Context, user *models.User) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a property repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindUnit(ctx context.Context, unitID uuid.UUID) (*models.Unit, error) {
	var unit models.Unit
	if err := r.db.WithContext(ctx).First(&unit, "id = ?", unitID).Error; err != nil {
		return nil, err
	}
	return &unit, nil
}

func (r *repository) FindRentalTerms(ctx context.Context, unitID uuid.UUID) (*models.RentalTerms, error) {
	var terms models.RentalTerms
	if err := r.db.WithContext(ctx).First(&terms, "unit_id = ?", unitID).Error; err != nil {
		return nil, err
	}
	return &terms, nil
}

func (r *repository) ListUnitUtilities(ctx context.Context, unitID uuid.UUID) ([]models.UnitUtility, error) {
	var rows []models.UnitUtility
	if err := r.db.WithContext(ctx).
		Where("unit_id = ?", unitID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) FindHousehold(ctx context.Context, householdID uuid.UUID) (*models.Household, error) {
	var household models.Household
	if err := r.db.WithContext(ctx).First(&household, "id = ?", householdID).Error; err != nil {
		return nil, err
	}
	return &household, nil
}

func (r *repository) FindUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repository) CreateLocation(ctx context.Context, location *models.Location) error {
	return r.db.WithContext(ctx).Create(location).Error
}

func (r *repository) CreateProperty(ctx context.Context, property *models.Property) error {
	return r.db.WithContext(ctx).Create(property).Error
}

func (r *repository) CreateUnit(ctx context.Context, unit *models.Unit) error {
	return r.db.WithContext(ctx).Create(unit).Error
}

func (r *repository) CreateRentalTerms(ctx context.Context, terms *models.RentalTerms) error {
	return r.db.WithContext(ctx).Create(terms).Error
}

func (r *repository) CreateUtilityType(ctx context.Context, utilityType *models.UtilityType) error {
	return r.db.WithContext(ctx).Create(utilityType).Error
}

func (r *repository) CreateUnitUtility(ctx context.Context, unitUtility *models.UnitUtility) error {
	return r.db.WithContext(ctx).Create(unitUtility).Error
}

func (r *repository) CreateHousehold(ctx context.Context, household *models.Household) error {
	return r.db.WithContext(ctx).Create(household).Error
}

func (r *repository) CreateUser(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}
