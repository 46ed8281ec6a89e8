package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/rentstack/rentstack-backend/internal/audit"
	pkgdb "github.com/rentstack/rentstack-backend/pkg/db"
	"github.com/rentstack/rentstack-backend/pkg/db/models"
	"github.com/rentstack/rentstack-backend/pkg/enums"
	pkgerrors "github.com/rentstack/rentstack-backend/pkg/errors"
	"github.com/rentstack/rentstack-backend/pkg/logger"
	"github.com/rentstack/rentstack-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type auditRecorder interface {
	Record(ctx context.Context, tx *gorm.DB, input audit.RecordInput) (*models.AuditLog, error)
}

// billRecomputer re-derives a bill's status after money moves.
type billRecomputer interface {
	RecomputeBillStatus(ctx context.Context, tx *gorm.DB, billID uuid.UUID, now time.Time) error
}

// Service defines the payment reconciliation operations.
type Service interface {
	Record(ctx context.Context, input RecordPaymentInput) (*models.Payment, error)
	ApplyProviderResult(ctx context.Context, input ApplyProviderResultInput) (*models.Payment, error)
	IngestWebhook(ctx context.Context, input IngestWebhookInput) error
	RetryWebhook(ctx context.Context, eventID string) error

	Get(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error)
	List(ctx context.Context, input ListPaymentsInput) (*PaymentList, error)
	Statistics(ctx context.Context) (*Statistics, error)
}

type service struct {
	repo  Repository
	audit auditRecorder
	bills billRecomputer
	tx    txRunner
	logg  *logger.Logger
}

// RecordPaymentInput captures a new payment attempt. The idempotency key is
// mandatory; resubmitting the same key returns the original row unchanged.
type RecordPaymentInput struct {
	ContractID     uuid.UUID
	BillID         *uuid.UUID
	Amount         decimal.Decimal
	PaymentType    enums.PaymentType
	Provider       enums.PaymentProvider
	IdempotencyKey string
	ReceivedByID   *uuid.UUID
	Metadata       json.RawMessage
	ActorUserID    uuid.UUID
	ActorIP        *string
	ActorUserAgent *string
}

// ApplyProviderResultInput settles a payment with the provider's verdict.
type ApplyProviderResultInput struct {
	PaymentID         uuid.UUID
	NewStatus         enums.PaymentStatus
	ProviderPaymentID *string
	ActorUserID       *uuid.UUID
}

// IngestWebhookInput carries one raw provider event.
type IngestWebhookInput struct {
	EventID   string
	Provider  string
	EventType string
	Payload   json.RawMessage
}

// ListPaymentsInput selects a page of payments.
type ListPaymentsInput struct {
	Filters ListFilters
	pagination.Params
}

// PaymentList is a cursor page of payments.
type PaymentList struct {
	Items  []models.Payment `json:"items"`
	Cursor string           `json:"cursor"`
}

// Statistics aggregates payment totals per status.
type Statistics struct {
	TotalCollected decimal.Decimal `json:"total_collected"`
	ByStatus       []StatusStat    `json:"by_status"`
}

// webhookPayload is the minimal shape every supported provider event carries.
type webhookPayload struct {
	PaymentID         string `json:"payment_id"`
	ProviderPaymentID string `json:"provider_payment_id"`
	Status            string `json:"status"`
}

// ServiceParams bundles the dependencies required to build a payment service.
type ServiceParams struct {
	Repo    Repository
	Audit   auditRecorder
	Billing billRecomputer
	Tx      txRunner
	Logger  *logger.Logger
}

// NewService constructs a payment reconciliation service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("payments repository is required")
	}
	if params.Audit == nil {
		return nil, fmt.Errorf("audit recorder is required")
	}
	if params.Billing == nil {
		return nil, fmt.Errorf("bill recomputer is required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner is required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &service{
		repo:  params.Repo,
		audit: params.Audit,
		bills: params.Billing,
		tx:    params.Tx,
		logg:  params.Logger,
	}, nil
}

func (s *service) Record(ctx context.Context, input RecordPaymentInput) (*models.Payment, error) {
	if input.ContractID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "contract id required")
	}
	if input.IdempotencyKey == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "idempotency key required")
	}
	if !input.Amount.GreaterThan(decimal.Zero) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if !input.PaymentType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment type %q", input.PaymentType))
	}
	if !input.Provider.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment provider %q", input.Provider))
	}

	if existing, err := s.repo.FindByIdempotencyKey(ctx, input.IdempotencyKey); err == nil {
		return existing, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup idempotency key")
	}

	var payment *models.Payment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if input.BillID != nil {
			exists, err := repo.BillExists(ctx, *input.BillID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check bill")
			}
			if !exists {
				return pkgerrors.New(pkgerrors.CodeNotFound, "bill not found")
			}
		}

		payment = &models.Payment{
			ID:             uuid.New(),
			ContractID:     input.ContractID,
			BillID:         input.BillID,
			Amount:         input.Amount,
			PaymentType:    input.PaymentType,
			Provider:       input.Provider,
			Status:         enums.PaymentStatusPending,
			IdempotencyKey: input.IdempotencyKey,
			ReceivedByID:   input.ReceivedByID,
			Metadata:       input.Metadata,
		}
		if err := repo.Create(ctx, payment); err != nil {
			if pkgdb.IsUniqueViolation(err, "") {
				return errDuplicateKey
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
		}

		actor := input.ActorUserID
		var actorRef *uuid.UUID
		if actor != uuid.Nil {
			actorRef = &actor
		}
		_, err := s.audit.Record(ctx, tx, audit.RecordInput{
			EntityType:  audit.EntityPayment,
			EntityID:    payment.ID,
			Action:      enums.AuditActionCreate,
			Data:        paymentSnapshot(payment),
			ActorUserID: actorRef,
			IPAddress:   input.ActorIP,
			UserAgent:   input.ActorUserAgent,
		})
		return err
	})
	if errors.Is(err, errDuplicateKey) {
		// A concurrent request with the same key won the insert.
		winner, readErr := s.repo.FindByIdempotencyKey(ctx, input.IdempotencyKey)
		if readErr != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, readErr, "re-read payment after duplicate key")
		}
		return winner, nil
	}
	if err != nil {
		return nil, err
	}
	return payment, nil
}

var errDuplicateKey = errors.New("duplicate idempotency key")

func (s *service) ApplyProviderResult(ctx context.Context, input ApplyProviderResultInput) (*models.Payment, error) {
	if input.PaymentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	if !input.NewStatus.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment status %q", input.NewStatus))
	}

	var payment *models.Payment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		var err error
		payment, err = repo.FindByIDForUpdate(ctx, input.PaymentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
		}
		if payment.Status == input.NewStatus {
			return nil
		}
		if !payment.Status.CanTransitionTo(input.NewStatus) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("payment cannot move from %q to %q", payment.Status, input.NewStatus))
		}

		updates := map[string]any{"status": input.NewStatus}
		if input.ProviderPaymentID != nil {
			updates["provider_payment_id"] = *input.ProviderPaymentID
		}
		if err := repo.Update(ctx, payment.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment")
		}
		payment.Status = input.NewStatus
		if input.ProviderPaymentID != nil {
			payment.ProviderPaymentID = input.ProviderPaymentID
		}

		switch input.NewStatus {
		case enums.PaymentStatusSucceeded:
			if payment.BillID != nil {
				if err := s.bills.RecomputeBillStatus(ctx, tx, *payment.BillID, time.Now().UTC()); err != nil {
					return err
				}
			}
			if _, err := s.audit.Record(ctx, tx, audit.RecordInput{
				EntityType:  audit.EntityPayment,
				EntityID:    payment.ID,
				Action:      enums.AuditActionPayment,
				Data:        paymentSnapshot(payment),
				ActorUserID: input.ActorUserID,
			}); err != nil {
				return err
			}
		case enums.PaymentStatusRefunded:
			if payment.BillID != nil {
				if err := s.bills.RecomputeBillStatus(ctx, tx, *payment.BillID, time.Now().UTC()); err != nil {
					return err
				}
			}
			if _, err := s.audit.Record(ctx, tx, audit.RecordInput{
				EntityType:  audit.EntityPayment,
				EntityID:    payment.ID,
				Action:      enums.AuditActionRefund,
				Data:        paymentSnapshot(payment),
				ActorUserID: input.ActorUserID,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// IngestWebhook persists a raw provider event and applies its result to the
// referenced payment. Delivery is at-most-once per event id: an already
// processed event is a no-op success, a failed one keeps processed=false and
// stores the error for the manual retry trigger.
func (s *service) IngestWebhook(ctx context.Context, input IngestWebhookInput) error {
	if input.EventID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "event id required")
	}
	if input.Provider == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "provider required")
	}
	if len(input.Payload) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "payload required")
	}

	webhook, err := s.repo.FindWebhookByEventID(ctx, input.EventID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup webhook event")
		}
		webhook = &models.PaymentWebhook{
			ID:        uuid.New(),
			Provider:  input.Provider,
			EventID:   input.EventID,
			EventType: input.EventType,
			Payload:   input.Payload,
		}
		if err := s.repo.CreateWebhook(ctx, webhook); err != nil {
			if pkgdb.IsUniqueViolation(err, "") {
				webhook, err = s.repo.FindWebhookByEventID(ctx, input.EventID)
				if err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "re-read webhook after duplicate event")
				}
			} else {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist webhook event")
			}
		}
	}
	if webhook.Processed {
		return nil
	}

	return s.processWebhook(ctx, webhook)
}

// RetryWebhook re-runs a stored event that previously failed.
func (s *service) RetryWebhook(ctx context.Context, eventID string) error {
	if eventID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "event id required")
	}
	webhook, err := s.repo.FindWebhookByEventID(ctx, eventID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "webhook event not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup webhook event")
	}
	if webhook.Processed {
		return nil
	}
	return s.processWebhook(ctx, webhook)
}

func (s *service) processWebhook(ctx context.Context, webhook *models.PaymentWebhook) error {
	applyErr := s.applyWebhook(ctx, webhook)
	if applyErr != nil {
		msg := applyErr.Error()
		if updateErr := s.repo.UpdateWebhook(ctx, webhook.ID, map[string]any{"error_message": msg}); updateErr != nil {
			s.logg.Error(ctx, "storing webhook error message failed", updateErr)
		}
		return applyErr
	}

	now := time.Now().UTC()
	if err := s.repo.UpdateWebhook(ctx, webhook.ID, map[string]any{
		"processed":     true,
		"processed_at":  now,
		"error_message": nil,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark webhook processed")
	}
	return nil
}

func (s *service) applyWebhook(ctx context.Context, webhook *models.PaymentWebhook) error {
	var payload webhookPayload
	if err := json.Unmarshal(webhook.Payload, &payload); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode webhook payload")
	}

	status, err := enums.ParsePaymentStatus(payload.Status)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "webhook payment status")
	}

	payment, err := s.resolvePayment(ctx, payload)
	if err != nil {
		return err
	}

	var providerPaymentID *string
	if payload.ProviderPaymentID != "" {
		providerPaymentID = &payload.ProviderPaymentID
	}
	_, err = s.ApplyProviderResult(ctx, ApplyProviderResultInput{
		PaymentID:         payment.ID,
		NewStatus:         status,
		ProviderPaymentID: providerPaymentID,
	})
	return err
}

func (s *service) resolvePayment(ctx context.Context, payload webhookPayload) (*models.Payment, error) {
	if payload.PaymentID != "" {
		paymentID, err := uuid.Parse(payload.PaymentID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "webhook payment id")
		}
		payment, err := s.repo.FindByID(ctx, paymentID)
		if err == nil {
			return payment, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
		}
	}
	if payload.ProviderPaymentID != "" {
		payment, err := s.repo.FindByProviderPaymentID(ctx, payload.ProviderPaymentID)
		if err == nil {
			return payment, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment by provider id")
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "webhook references no known payment")
}

func (s *service) Get(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	if paymentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	payment, err := s.repo.FindByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	return payment, nil
}

func (s *service) List(ctx context.Context, input ListPaymentsInput) (*PaymentList, error) {
	cursor, err := pagination.ParseCursor(input.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse cursor")
	}
	if input.Filters.Status != nil && !input.Filters.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment status %q", *input.Filters.Status))
	}

	limit := pagination.NormalizeLimit(input.Limit)
	rows, err := s.repo.List(ctx, input.Filters, limit+1, cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payments")
	}

	list := &PaymentList{Items: rows}
	if len(rows) > limit {
		list.Items = rows[:limit]
		last := list.Items[len(list.Items)-1]
		list.Cursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return list, nil
}

func (s *service) Statistics(ctx context.Context) (*Statistics, error) {
	stats, err := s.repo.StatusStats(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "aggregate payments")
	}

	out := &Statistics{TotalCollected: decimal.Zero, ByStatus: stats}
	for _, stat := range stats {
		if stat.Status == enums.PaymentStatusSucceeded {
			out.TotalCollected = out.TotalCollected.Add(stat.Total)
		}
	}
	return out, nil
}

func paymentSnapshot(payment *models.Payment) map[string]any {
	snapshot := map[string]any{
		"contract_id":     payment.ContractID,
		"amount":          payment.Amount.String(),
		"payment_type":    payment.PaymentType,
		"provider":        payment.Provider,
		"status":          payment.Status,
		"idempotency_key": payment.IdempotencyKey,
	}
	if payment.BillID != nil {
		snapshot["bill_id"] = *payment.BillID
	}
	if payment.ProviderPaymentID != nil {
		snapshot["provider_payment_id"] = *payment.ProviderPaymentID
	}
	return snapshot
}
