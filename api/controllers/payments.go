package controllers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rentstack/rentstack-backend/api/responses"
	"github.com/rentstack/rentstack-backend/api/validators"
	"github.com/rentstack/rentstack-backend/internal/payments"
	"github.com/rentstack/rentstack-backend/pkg/db/models"
	"github.com/rentstack/rentstack-backend/pkg/enums"
	pkgerrors "github.com/rentstack/rentstack-backend/pkg/errors"
	"github.com/rentstack/rentstack-backend/pkg/logger"
	"github.com/rentstack/rentstack-backend/pkg/pagination"
)

type paymentRecordRequest struct {
	ContractID     string          `json:"contract_id" validate:"required"`
	BillID         *string         `json:"bill_id"`
	Amount         string          `json:"amount" validate:"required"`
	PaymentType    string          `json:"payment_type" validate:"required"`
	Provider       string          `json:"provider" validate:"required"`
	IdempotencyKey string          `json:"idempotency_key" validate:"required,min=8,max=128"`
	Metadata       json.RawMessage `json:"metadata"`
}

func (req paymentRecordRequest) toInput() (payments.RecordPaymentInput, error) {
	contractID, err := uuid.Parse(strings.TrimSpace(req.ContractID))
	if err != nil {
		return payments.RecordPaymentInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid contract_id")
	}

	var billID *uuid.UUID
	if req.BillID != nil && strings.TrimSpace(*req.BillID) != "" {
		parsed, err := uuid.Parse(strings.TrimSpace(*req.BillID))
		if err != nil {
			return payments.RecordPaymentInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid bill_id")
		}
		billID = &parsed
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil {
		return payments.RecordPaymentInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid amount")
	}

	paymentType, err := enums.ParsePaymentType(strings.TrimSpace(req.PaymentType))
	if err != nil {
		return payments.RecordPaymentInput{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment type")
	}
	provider, err := enums.ParsePaymentProvider(strings.TrimSpace(req.Provider))
	if err != nil {
		return payments.RecordPaymentInput{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment provider")
	}

	return payments.RecordPaymentInput{
		ContractID:     contractID,
		BillID:         billID,
		Amount:         amount,
		PaymentType:    paymentType,
		Provider:       provider,
		IdempotencyKey: strings.TrimSpace(req.IdempotencyKey),
		Metadata:       req.Metadata,
	}, nil
}

// PaymentRecord registers a payment attempt against a contract.
func PaymentRecord(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		who, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload paymentRecordRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input.ActorUserID = who.UserID
		input.ReceivedByID = &who.UserID
		input.ActorIP = who.IP
		input.ActorUserAgent = who.UserAgent

		created, err := svc.Record(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, paymentResponseFromModel(created))
	}
}

type providerResultRequest struct {
	Status            string  `json:"status" validate:"required"`
	ProviderPaymentID *string `json:"provider_payment_id"`
}

// PaymentApplyProviderResult settles a payment with the provider's verdict.
func PaymentApplyProviderResult(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		who, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		paymentID, err := uuid.Parse(chi.URLParam(r, "paymentId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment id"))
			return
		}

		var payload providerResultRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status, err := enums.ParsePaymentStatus(strings.TrimSpace(payload.Status))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment status"))
			return
		}

		updated, err := svc.ApplyProviderResult(r.Context(), payments.ApplyProviderResultInput{
			PaymentID:         paymentID,
			NewStatus:         status,
			ProviderPaymentID: payload.ProviderPaymentID,
			ActorUserID:       &who.UserID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, paymentResponseFromModel(updated))
	}
}

// PaymentGet returns one payment by id.
func PaymentGet(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		paymentID, err := uuid.Parse(chi.URLParam(r, "paymentId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment id"))
			return
		}

		payment, err := svc.Get(r.Context(), paymentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, paymentResponseFromModel(payment))
	}
}

// PaymentList returns a cursor page of payments with optional filters.
func PaymentList(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := payments.ListPaymentsInput{
			Params: pagination.Params{
				Limit:  limit,
				Cursor: r.URL.Query().Get("cursor"),
			},
		}

		if input.Filters.ContractID, err = validators.ParseQueryUUID(r, "contract_id"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if input.Filters.BillID, err = validators.ParseQueryUUID(r, "bill_id"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParsePaymentStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			input.Filters.Status = &status
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("provider")); raw != "" {
			provider, err := enums.ParsePaymentProvider(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid provider"))
				return
			}
			input.Filters.Provider = &provider
		}

		page, err := svc.List(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]paymentResponse, 0, len(page.Items))
		for i := range page.Items {
			items = append(items, paymentResponseFromModel(&page.Items[i]))
		}
		responses.WriteSuccess(w, paymentListResponse{Items: items, Cursor: page.Cursor})
	}
}

// PaymentStatistics aggregates totals per payment status.
func PaymentStatistics(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		stats, err := svc.Statistics(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		byStatus := make([]paymentStatResponse, 0, len(stats.ByStatus))
		for _, stat := range stats.ByStatus {
			byStatus = append(byStatus, paymentStatResponse{
				Status: stat.Status,
				Count:  stat.Count,
				Total:  stat.Total.StringFixed(2),
			})
		}
		responses.WriteSuccess(w, paymentStatisticsResponse{
			TotalCollected: stats.TotalCollected.StringFixed(2),
			ByStatus:       byStatus,
		})
	}
}

type paymentResponse struct {
	ID                uuid.UUID             `json:"id"`
	ContractID        uuid.UUID             `json:"contract_id"`
	BillID            *uuid.UUID            `json:"bill_id,omitempty"`
	Amount            string                `json:"amount"`
	PaymentType       enums.PaymentType     `json:"payment_type"`
	Provider          enums.PaymentProvider `json:"provider"`
	ProviderPaymentID *string               `json:"provider_payment_id,omitempty"`
	Status            enums.PaymentStatus   `json:"status"`
	IdempotencyKey    string                `json:"idempotency_key"`
	ReceivedByID      *uuid.UUID            `json:"received_by_id,omitempty"`
	Metadata          json.RawMessage       `json:"metadata,omitempty"`
	CreatedAt         time.Time             `json:"created_at"`
	UpdatedAt         time.Time             `json:"updated_at"`
}

type paymentListResponse struct {
	Items  []paymentResponse `json:"items"`
	Cursor string            `json:"cursor,omitempty"`
}

type paymentStatResponse struct {
	Status enums.PaymentStatus `json:"status"`
	Count  int64               `json:"count"`
	Total  string              `json:"total"`
}

type paymentStatisticsResponse struct {
	TotalCollected string                `json:"total_collected"`
	ByStatus       []paymentStatResponse `json:"by_status"`
}

func paymentResponseFromModel(m *models.Payment) paymentResponse {
	return paymentResponse{
		ID:                m.ID,
		ContractID:        m.ContractID,
		BillID:            m.BillID,
		Amount:            m.Amount.StringFixed(2),
		PaymentType:       m.PaymentType,
		Provider:          m.Provider,
		ProviderPaymentID: m.ProviderPaymentID,
		Status:            m.Status,
		IdempotencyKey:    m.IdempotencyKey,
		ReceivedByID:      m.ReceivedByID,
		Metadata:          m.Metadata,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}
