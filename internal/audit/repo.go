package audit

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rentstack/rentstack-backend/pkg/db/models"
	"github.com/rentstack/rentstack-backend/pkg/pagination"
)

// Repository manages persistence for audit log rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *models.AuditLog) error
	ListByEntity(ctx context.Context, entityType string, entityID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.AuditLog, error)
	ListByActor(ctx context.Context, actorUserID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.AuditLog, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an audit repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, entry *models.AuditLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListByEntity(ctx context.Context, entityType string, entityID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.AuditLog, error) {
	query := r.db.WithContext(ctx).Model(&models.AuditLog{}).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID)
	return r.list(query, limit, cursor)
}

func (r *repository) ListByActor(ctx context.Context, actorUserID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.AuditLog, error) {
	query := r.db.WithContext(ctx).Model(&models.AuditLog{}).
		Where("actor_user_id = ?", actorUserID)
	return r.list(query, limit, cursor)
}

func (r *repository) list(query *gorm.DB, limit int, cursor *pagination.Cursor) ([]models.AuditLog, error) {
	if cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
	query = query.Order("created_at DESC").Order("id DESC").Limit(limit)

	var rows []models.AuditLog
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
