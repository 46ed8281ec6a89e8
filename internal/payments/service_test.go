package payments

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/rentstack/rentstack-backend/internal/audit"
	"github.com/rentstack/rentstack-backend/pkg/db/models"
	"github.com/rentstack/rentstack-backend/pkg/enums"
	pkgerrors "github.com/rentstack/rentstack-backend/pkg/errors"
	"github.com/rentstack/rentstack-backend/pkg/logger"
)

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeAudit struct {
	entries []audit.RecordInput
}

func (f *fakeAudit) Record(ctx context.Context, tx *gorm.DB, input audit.RecordInput) (*models.AuditLog, error) {
	f.entries = append(f.entries, input)
	return &models.AuditLog{}, nil
}

type fakeRecomputer struct {
	calls []uuid.UUID
	err   error
}

func (f *fakeRecomputer) RecomputeBillStatus(ctx context.Context, tx *gorm.DB, billID uuid.UUID, now time.Time) error {
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, billID)
	return nil
}

type fakePaymentRepo struct {
	Repository

	byKey      *models.Payment
	raceWinner *models.Payment
	keyLookups int
	payment    *models.Payment
	createErr  error
	created    *models.Payment
	updates    map[string]any
	billExists bool

	webhook        *models.PaymentWebhook
	webhookUpdates map[string]any
}

func (f *fakePaymentRepo) WithTx(tx *gorm.DB) Repository {
	return f
}

func (f *fakePaymentRepo) FindByIdempotencyKey(ctx context.Context, key string) (*models.Payment, error) {
	f.keyLookups++
	if f.byKey != nil {
		return f.byKey, nil
	}
	if f.raceWinner != nil && f.keyLookups > 1 {
		return f.raceWinner, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakePaymentRepo) Create(ctx context.Context, payment *models.Payment) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = payment
	return nil
}

func (f *fakePaymentRepo) BillExists(ctx context.Context, billID uuid.UUID) (bool, error) {
	return f.billExists, nil
}

func (f *fakePaymentRepo) FindByID(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	if f.payment == nil || f.payment.ID != paymentID {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *f.payment
	return &copied, nil
}

func (f *fakePaymentRepo) FindByIDForUpdate(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	return f.FindByID(ctx, paymentID)
}

func (f *fakePaymentRepo) FindByProviderPaymentID(ctx context.Context, providerPaymentID string) (*models.Payment, error) {
	if f.payment == nil || f.payment.ProviderPaymentID == nil || *f.payment.ProviderPaymentID != providerPaymentID {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *f.payment
	return &copied, nil
}

func (f *fakePaymentRepo) Update(ctx context.Context, paymentID uuid.UUID, updates map[string]any) error {
	f.updates = updates
	if f.payment != nil && f.payment.ID == paymentID {
		if status, ok := updates["status"].(enums.PaymentStatus); ok {
			f.payment.Status = status
		}
	}
	return nil
}

func (f *fakePaymentRepo) FindWebhookByEventID(ctx context.Context, eventID string) (*models.PaymentWebhook, error) {
	if f.webhook == nil || f.webhook.EventID != eventID {
		return nil, gorm.ErrRecordNotFound
	}
	return f.webhook, nil
}

func (f *fakePaymentRepo) CreateWebhook(ctx context.Context, webhook *models.PaymentWebhook) error {
	f.webhook = webhook
	return nil
}

func (f *fakePaymentRepo) UpdateWebhook(ctx context.Context, webhookID uuid.UUID, updates map[string]any) error {
	f.webhookUpdates = updates
	if f.webhook != nil && f.webhook.ID == webhookID {
		if processed, ok := updates["processed"].(bool); ok {
			f.webhook.Processed = processed
		}
		if msg, ok := updates["error_message"].(string); ok {
			f.webhook.ErrorMessage = &msg
		}
	}
	return nil
}

func newTestService(t *testing.T, repo *fakePaymentRepo, rec *fakeAudit, bills *fakeRecomputer) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo:    repo,
		Audit:   rec,
		Billing: bills,
		Tx:      fakeTxRunner{},
		Logger:  logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled, Output: io.Discard}),
	})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return svc
}

func validRecordInput() RecordPaymentInput {
	return RecordPaymentInput{
		ContractID:     uuid.New(),
		Amount:         decimal.RequireFromString("250.00"),
		PaymentType:    enums.PaymentTypeRent,
		Provider:       enums.PaymentProviderCash,
		IdempotencyKey: uuid.NewString(),
		ActorUserID:    uuid.New(),
	}
}

func TestService_Record(t *testing.T) {
	repo := &fakePaymentRepo{}
	rec := &fakeAudit{}
	svc := newTestService(t, repo, rec, &fakeRecomputer{})

	payment, err := svc.Record(context.Background(), validRecordInput())
	if err != nil {
		t.Fatalf("Record error: %v", err)
	}
	if payment.Status != enums.PaymentStatusPending {
		t.Fatalf("new payment should be pending, got %q", payment.Status)
	}
	if repo.created == nil {
		t.Fatal("expected payment to be persisted")
	}
	if len(rec.entries) != 1 || rec.entries[0].Action != enums.AuditActionCreate {
		t.Fatalf("expected create audit entry, got %+v", rec.entries)
	}
}

func TestService_RecordIdempotent(t *testing.T) {
	existing := &models.Payment{ID: uuid.New(), Status: enums.PaymentStatusSucceeded}
	repo := &fakePaymentRepo{byKey: existing}
	rec := &fakeAudit{}
	svc := newTestService(t, repo, rec, &fakeRecomputer{})

	payment, err := svc.Record(context.Background(), validRecordInput())
	if err != nil {
		t.Fatalf("Record error: %v", err)
	}
	if payment.ID != existing.ID {
		t.Fatal("expected the existing payment back")
	}
	if repo.created != nil {
		t.Fatal("no new payment should be created for a known key")
	}
	if len(rec.entries) != 0 {
		t.Fatal("no audit entry expected for an idempotent replay")
	}
}

func TestService_RecordDuplicateRace(t *testing.T) {
	winner := &models.Payment{ID: uuid.New(), Status: enums.PaymentStatusPending}
	repo := &fakePaymentRepo{createErr: errors.New(`duplicate key value violates unique constraint "idx_payments_idempotency_key"`)}
	svc := newTestService(t, repo, &fakeAudit{}, &fakeRecomputer{})

	// The winning row appears between the failed insert and the re-read.
	repo.raceWinner = winner

	payment, err := svc.Record(context.Background(), validRecordInput())
	if err != nil {
		t.Fatalf("Record error: %v", err)
	}
	if payment.ID != winner.ID {
		t.Fatal("expected the concurrent winner to be returned")
	}
	if repo.keyLookups != 2 {
		t.Fatalf("expected fast-path lookup plus re-read, got %d lookups", repo.keyLookups)
	}
}

func TestService_RecordValidation(t *testing.T) {
	svc := newTestService(t, &fakePaymentRepo{}, &fakeAudit{}, &fakeRecomputer{})

	cases := []struct {
		name   string
		mutate func(*RecordPaymentInput)
	}{
		{name: "missing contract", mutate: func(in *RecordPaymentInput) { in.ContractID = uuid.Nil }},
		{name: "missing idempotency key", mutate: func(in *RecordPaymentInput) { in.IdempotencyKey = "" }},
		{name: "zero amount", mutate: func(in *RecordPaymentInput) { in.Amount = decimal.Zero }},
		{name: "negative amount", mutate: func(in *RecordPaymentInput) { in.Amount = decimal.RequireFromString("-5") }},
		{name: "bad type", mutate: func(in *RecordPaymentInput) { in.PaymentType = "tip" }},
		{name: "bad provider", mutate: func(in *RecordPaymentInput) { in.Provider = "paypal" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := validRecordInput()
			tc.mutate(&input)
			_, err := svc.Record(context.Background(), input)
			typed := pkgerrors.As(err)
			if typed == nil || typed.Code() != pkgerrors.CodeValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestService_ApplyProviderResultSucceeded(t *testing.T) {
	billID := uuid.New()
	payment := &models.Payment{ID: uuid.New(), BillID: &billID, Status: enums.PaymentStatusPending}
	repo := &fakePaymentRepo{payment: payment}
	rec := &fakeAudit{}
	bills := &fakeRecomputer{}
	svc := newTestService(t, repo, rec, bills)

	providerID := "ch_123"
	got, err := svc.ApplyProviderResult(context.Background(), ApplyProviderResultInput{
		PaymentID:         payment.ID,
		NewStatus:         enums.PaymentStatusSucceeded,
		ProviderPaymentID: &providerID,
	})
	if err != nil {
		t.Fatalf("ApplyProviderResult error: %v", err)
	}
	if got.Status != enums.PaymentStatusSucceeded {
		t.Fatalf("status %q, want succeeded", got.Status)
	}
	if len(bills.calls) != 1 || bills.calls[0] != billID {
		t.Fatalf("expected bill recompute for %s, got %v", billID, bills.calls)
	}
	if len(rec.entries) != 1 || rec.entries[0].Action != enums.AuditActionPayment {
		t.Fatalf("expected payment audit entry, got %+v", rec.entries)
	}
}

func TestService_ApplyProviderResultRefund(t *testing.T) {
	billID := uuid.New()
	payment := &models.Payment{ID: uuid.New(), BillID: &billID, Status: enums.PaymentStatusSucceeded}
	repo := &fakePaymentRepo{payment: payment}
	rec := &fakeAudit{}
	bills := &fakeRecomputer{}
	svc := newTestService(t, repo, rec, bills)

	got, err := svc.ApplyProviderResult(context.Background(), ApplyProviderResultInput{
		PaymentID: payment.ID,
		NewStatus: enums.PaymentStatusRefunded,
	})
	if err != nil {
		t.Fatalf("ApplyProviderResult error: %v", err)
	}
	if got.Status != enums.PaymentStatusRefunded {
		t.Fatalf("status %q, want refunded", got.Status)
	}
	if len(bills.calls) != 1 {
		t.Fatal("refund must trigger a downward bill recompute")
	}
	if len(rec.entries) != 1 || rec.entries[0].Action != enums.AuditActionRefund {
		t.Fatalf("expected refund audit entry, got %+v", rec.entries)
	}
}

func TestService_ApplyProviderResultInvalidTransition(t *testing.T) {
	payment := &models.Payment{ID: uuid.New(), Status: enums.PaymentStatusFailed}
	repo := &fakePaymentRepo{payment: payment}
	svc := newTestService(t, repo, &fakeAudit{}, &fakeRecomputer{})

	_, err := svc.ApplyProviderResult(context.Background(), ApplyProviderResultInput{
		PaymentID: payment.ID,
		NewStatus: enums.PaymentStatusSucceeded,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict error, got %v", err)
	}
}

func TestService_ApplyProviderResultSameStatusNoop(t *testing.T) {
	payment := &models.Payment{ID: uuid.New(), Status: enums.PaymentStatusSucceeded}
	repo := &fakePaymentRepo{payment: payment}
	rec := &fakeAudit{}
	svc := newTestService(t, repo, rec, &fakeRecomputer{})

	_, err := svc.ApplyProviderResult(context.Background(), ApplyProviderResultInput{
		PaymentID: payment.ID,
		NewStatus: enums.PaymentStatusSucceeded,
	})
	if err != nil {
		t.Fatalf("ApplyProviderResult error: %v", err)
	}
	if repo.updates != nil || len(rec.entries) != 0 {
		t.Fatal("re-delivering the same result must be a no-op")
	}
}

func webhookEvent(t *testing.T, paymentID uuid.UUID, status string) IngestWebhookInput {
	t.Helper()
	payload, err := json.Marshal(map[string]string{
		"payment_id":          paymentID.String(),
		"provider_payment_id": "ch_987",
		"status":              status,
	})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return IngestWebhookInput{
		EventID:   "evt_" + uuid.NewString(),
		Provider:  "stripe",
		EventType: "payment_intent.succeeded",
		Payload:   payload,
	}
}

func TestService_IngestWebhook(t *testing.T) {
	payment := &models.Payment{ID: uuid.New(), Status: enums.PaymentStatusPending}
	repo := &fakePaymentRepo{payment: payment}
	rec := &fakeAudit{}
	svc := newTestService(t, repo, rec, &fakeRecomputer{})

	if err := svc.IngestWebhook(context.Background(), webhookEvent(t, payment.ID, "succeeded")); err != nil {
		t.Fatalf("IngestWebhook error: %v", err)
	}
	if payment.Status != enums.PaymentStatusSucceeded {
		t.Fatalf("payment status %q, want succeeded", payment.Status)
	}
	if repo.webhook == nil || !repo.webhook.Processed {
		t.Fatal("webhook must be stored and marked processed")
	}
}

func TestService_IngestWebhookProcessedNoop(t *testing.T) {
	payment := &models.Payment{ID: uuid.New(), Status: enums.PaymentStatusPending}
	event := webhookEvent(t, payment.ID, "succeeded")
	repo := &fakePaymentRepo{
		payment: payment,
		webhook: &models.PaymentWebhook{ID: uuid.New(), EventID: event.EventID, Processed: true},
	}
	svc := newTestService(t, repo, &fakeAudit{}, &fakeRecomputer{})

	if err := svc.IngestWebhook(context.Background(), event); err != nil {
		t.Fatalf("IngestWebhook error: %v", err)
	}
	if payment.Status != enums.PaymentStatusPending {
		t.Fatal("a processed event must not touch the payment again")
	}
}

func TestService_IngestWebhookFailureKeepsUnprocessed(t *testing.T) {
	// Event references a payment that does not exist.
	repo := &fakePaymentRepo{}
	svc := newTestService(t, repo, &fakeAudit{}, &fakeRecomputer{})

	err := svc.IngestWebhook(context.Background(), webhookEvent(t, uuid.New(), "succeeded"))
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found error, got %v", err)
	}
	if repo.webhook == nil {
		t.Fatal("raw event must still be persisted")
	}
	if repo.webhook.Processed {
		t.Fatal("failed event must stay unprocessed")
	}
	if repo.webhook.ErrorMessage == nil {
		t.Fatal("failure must store an error message")
	}
}

func TestService_RetryWebhook(t *testing.T) {
	payment := &models.Payment{ID: uuid.New(), Status: enums.PaymentStatusPending}
	payload, _ := json.Marshal(map[string]string{"payment_id": payment.ID.String(), "status": "succeeded"})
	repo := &fakePaymentRepo{
		payment: payment,
		webhook: &models.PaymentWebhook{ID: uuid.New(), EventID: "evt_retry", Payload: payload},
	}
	svc := newTestService(t, repo, &fakeAudit{}, &fakeRecomputer{})

	if err := svc.RetryWebhook(context.Background(), "evt_retry"); err != nil {
		t.Fatalf("RetryWebhook error: %v", err)
	}
	if payment.Status != enums.PaymentStatusSucceeded {
		t.Fatalf("payment status %q, want succeeded", payment.Status)
	}
	if !repo.webhook.Processed {
		t.Fatal("retried event must be marked processed")
	}
}
