package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rentstack/rentstack-backend/pkg/db/models"
	"github.com/rentstack/rentstack-backend/pkg/enums"
	pkgerrors "github.com/rentstack/rentstack-backend/pkg/errors"
	"github.com/rentstack/rentstack-backend/pkg/pagination"
)

// Service records and reads the append-only audit trail. Record is always
// called inside the caller's transaction so the audit row commits atomically
// with the change it describes.
type Service interface {
	Record(ctx context.Context, tx *gorm.DB, input RecordInput) (*models.AuditLog, error)
	ListByEntity(ctx context.Context, input ListByEntityInput) (*LogList, error)
	ListByActor(ctx context.Context, input ListByActorInput) (*LogList, error)
}

type service struct {
	repo Repository
}

// RecordInput captures the immutable data an audit entry requires.
type RecordInput struct {
	EntityType  string
	EntityID    uuid.UUID
	Action      enums.AuditAction
	Data        any
	ActorUserID *uuid.UUID
	IPAddress   *string
	UserAgent   *string
}

// ListByEntityInput selects the trail of one entity.
type ListByEntityInput struct {
	EntityType string
	EntityID   uuid.UUID
	pagination.Params
}

// ListByActorInput selects everything one user did.
type ListByActorInput struct {
	ActorUserID uuid.UUID
	pagination.Params
}

// LogList is a cursor page of audit entries.
type LogList struct {
	Items  []models.AuditLog `json:"items"`
	Cursor string            `json:"cursor"`
}

// ServiceParams bundles the dependencies required to build an audit service.
type ServiceParams struct {
	Repo Repository
}

// NewService wires an audit service with the provided repository.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("audit repository required")
	}
	return &service{repo: params.Repo}, nil
}

func (s *service) Record(ctx context.Context, tx *gorm.DB, input RecordInput) (*models.AuditLog, error) {
	if !IsKnownEntity(input.EntityType) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown audit entity type %q", input.EntityType))
	}
	if input.EntityID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "entity id required")
	}
	if !input.Action.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid audit action %q", input.Action))
	}

	data, err := json.Marshal(input.Data)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "marshal audit data")
	}

	entry := &models.AuditLog{
		EntityType:  input.EntityType,
		EntityID:    input.EntityID,
		Action:      input.Action,
		Data:        data,
		ActorUserID: input.ActorUserID,
		IPAddress:   input.IPAddress,
		UserAgent:   input.UserAgent,
	}

	if err := s.repo.WithTx(tx).Create(ctx, entry); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create audit entry")
	}
	return entry, nil
}

func (s *service) ListByEntity(ctx context.Context, input ListByEntityInput) (*LogList, error) {
	if !IsKnownEntity(input.EntityType) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown audit entity type %q", input.EntityType))
	}
	if input.EntityID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "entity id required")
	}

	cursor, err := pagination.ParseCursor(input.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse cursor")
	}

	limit := pagination.NormalizeLimit(input.Limit)
	rows, err := s.repo.ListByEntity(ctx, input.EntityType, input.EntityID, limit+1, cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list audit entries")
	}
	return buildLogList(rows, limit), nil
}

func (s *service) ListByActor(ctx context.Context, input ListByActorInput) (*LogList, error) {
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor user id required")
	}

	cursor, err := pagination.ParseCursor(input.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse cursor")
	}

	limit := pagination.NormalizeLimit(input.Limit)
	rows, err := s.repo.ListByActor(ctx, input.ActorUserID, limit+1, cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list audit entries")
	}
	return buildLogList(rows, limit), nil
}

func buildLogList(rows []models.AuditLog, limit int) *LogList {
	list := &LogList{Items: rows}
	if len(rows) > limit {
		list.Items = rows[:limit]
		last := list.Items[len(list.Items)-1]
		list.Cursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return list
}
