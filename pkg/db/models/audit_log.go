package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/rentstack/rentstack-backend/pkg/enums"
)

// AuditLog is an append-only record of a state change. Rows are never
// updated or deleted after creation.
type AuditLog struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	EntityType  string            `gorm:"column:entity_type;not null;index:idx_audit_entity"`
	EntityID    uuid.UUID         `gorm:"column:entity_id;type:uuid;not null;index:idx_audit_entity"`
	Action      enums.AuditAction `gorm:"column:action;not null;index"`
	Data        json.RawMessage   `gorm:"column:data;type:jsonb;not null"`
	ActorUserID *uuid.UUID        `gorm:"column:actor_user_id;type:uuid;index"`
	IPAddress   *string           `gorm:"column:ip_address"`
	UserAgent   *string           `gorm:"column:user_agent"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime;index"`
}
