package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rentstack/rentstack-backend/pkg/db/models"
	"github.com/rentstack/rentstack-backend/pkg/enums"
	pkgerrors "github.com/rentstack/rentstack-backend/pkg/errors"
	"github.com/rentstack/rentstack-backend/pkg/pagination"
)

type fakeRepository struct {
	createFn       func(ctx context.Context, entry *models.AuditLog) error
	listByEntityFn func(ctx context.Context, entityType string, entityID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.AuditLog, error)
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository {
	return f
}

func (f *fakeRepository) Create(ctx context.Context, entry *models.AuditLog) error {
	if f.createFn != nil {
		return f.createFn(ctx, entry)
	}
	return nil
}

func (f *fakeRepository) ListByEntity(ctx context.Context, entityType string, entityID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.AuditLog, error) {
	if f.listByEntityFn != nil {
		return f.listByEntityFn(ctx, entityType, entityID, limit, cursor)
	}
	return nil, nil
}

func (f *fakeRepository) ListByActor(ctx context.Context, actorUserID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.AuditLog, error) {
	return nil, nil
}

func TestNewService_RequiresRepo(t *testing.T) {
	if _, err := NewService(ServiceParams{}); err == nil {
		t.Fatal("expected error when repository is missing")
	}
	if _, err := NewService(ServiceParams{Repo: &fakeRepository{}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestService_Record(t *testing.T) {
	repo := &fakeRepository{}
	svc, err := NewService(ServiceParams{Repo: repo})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	actor := uuid.New()
	input := RecordInput{
		EntityType:  EntityRentalContract,
		EntityID:    uuid.New(),
		Action:      enums.AuditActionCreate,
		Data:        map[string]any{"rent_amount": "1200.00"},
		ActorUserID: &actor,
	}

	var created *models.AuditLog
	repo.createFn = func(ctx context.Context, entry *models.AuditLog) error {
		created = entry
		return nil
	}

	got, err := svc.Record(context.Background(), nil, input)
	if err != nil {
		t.Fatalf("Record error: %v", err)
	}
	if created == nil {
		t.Fatal("expected repository create to be called")
	}
	if got.EntityType != EntityRentalContract {
		t.Fatalf("unexpected entity type %q", got.EntityType)
	}
	if got.Action != enums.AuditActionCreate {
		t.Fatalf("unexpected action %q", got.Action)
	}
	if string(got.Data) != `{"rent_amount":"1200.00"}` {
		t.Fatalf("unexpected data payload %s", got.Data)
	}
}

func TestService_RecordValidation(t *testing.T) {
	svc, err := NewService(ServiceParams{Repo: &fakeRepository{}})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	cases := []struct {
		name  string
		input RecordInput
	}{
		{
			name:  "unknown entity type",
			input: RecordInput{EntityType: "mystery", EntityID: uuid.New(), Action: enums.AuditActionCreate},
		},
		{
			name:  "missing entity id",
			input: RecordInput{EntityType: EntityBill, Action: enums.AuditActionCreate},
		},
		{
			name:  "invalid action",
			input: RecordInput{EntityType: EntityBill, EntityID: uuid.New(), Action: enums.AuditAction("explode")},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Record(context.Background(), nil, tc.input)
			var typed *pkgerrors.Error
			if !errors.As(err, &typed) || typed.Code() != pkgerrors.CodeValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestService_RecordRepoFailure(t *testing.T) {
	repo := &fakeRepository{
		createFn: func(ctx context.Context, entry *models.AuditLog) error {
			return errors.New("db down")
		},
	}
	svc, err := NewService(ServiceParams{Repo: repo})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	_, err = svc.Record(context.Background(), nil, RecordInput{
		EntityType: EntityPayment,
		EntityID:   uuid.New(),
		Action:     enums.AuditActionPayment,
	})
	var typed *pkgerrors.Error
	if !errors.As(err, &typed) || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestService_ListByEntityPagination(t *testing.T) {
	entityID := uuid.New()
	rows := make([]models.AuditLog, 0, 3)
	for i := 0; i < 3; i++ {
		rows = append(rows, models.AuditLog{ID: uuid.New(), EntityType: EntityBill, EntityID: entityID})
	}

	repo := &fakeRepository{
		listByEntityFn: func(ctx context.Context, entityType string, id uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.AuditLog, error) {
			if limit != 3 {
				t.Fatalf("expected buffered limit 3, got %d", limit)
			}
			return rows, nil
		},
	}
	svc, err := NewService(ServiceParams{Repo: repo})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	list, err := svc.ListByEntity(context.Background(), ListByEntityInput{
		EntityType: EntityBill,
		EntityID:   entityID,
		Params:     pagination.Params{Limit: 2},
	})
	if err != nil {
		t.Fatalf("ListByEntity error: %v", err)
	}
	if len(list.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(list.Items))
	}
	if list.Cursor == "" {
		t.Fatal("expected next cursor when more rows exist")
	}
}
