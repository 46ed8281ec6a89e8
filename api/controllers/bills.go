package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rentstack/rentstack-backend/api/responses"
	"github.com/rentstack/rentstack-backend/api/validators"
	"github.com/rentstack/rentstack-backend/internal/billing"
	"github.com/rentstack/rentstack-backend/pkg/db/models"
	"github.com/rentstack/rentstack-backend/pkg/enums"
	pkgerrors "github.com/rentstack/rentstack-backend/pkg/errors"
	"github.com/rentstack/rentstack-backend/pkg/logger"
	"github.com/rentstack/rentstack-backend/pkg/pagination"
)

// BillGet returns one bill with derived payment amounts.
func BillGet(svc billing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		billID, err := uuid.Parse(chi.URLParam(r, "billId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid bill id"))
			return
		}

		detail, err := svc.Get(r.Context(), billID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, billDetailResponseFromModel(detail))
	}
}

// BillList returns a cursor page of bills with optional filters.
func BillList(svc billing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := billing.ListBillsInput{
			Params: pagination.Params{
				Limit:  limit,
				Cursor: r.URL.Query().Get("cursor"),
			},
		}

		if input.Filters.ContractID, err = validators.ParseQueryUUID(r, "contract_id"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseBillStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			input.Filters.Status = &status
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("billing_month")); raw != "" {
			if _, err := time.Parse(billing.BillingMonthLayout, raw); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid billing_month"))
				return
			}
			input.Filters.BillingMonth = &raw
		}

		page, err := svc.List(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]billResponse, 0, len(page.Items))
		for i := range page.Items {
			items = append(items, billResponseFromModel(&page.Items[i]))
		}
		responses.WriteSuccess(w, billListResponse{Items: items, Cursor: page.Cursor})
	}
}

type billSetAmountRequest struct {
	Amount string `json:"amount" validate:"required"`
}

// BillSetAmount updates a utility bill once the metered charge is known.
func BillSetAmount(svc billing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		who, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		billID, err := uuid.Parse(chi.URLParam(r, "billId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid bill id"))
			return
		}

		var payload billSetAmountRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		amount, err := decimal.NewFromString(strings.TrimSpace(payload.Amount))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid amount"))
			return
		}

		updated, err := svc.SetUtilityBillAmount(r.Context(), billing.SetAmountInput{
			BillID:         billID,
			Amount:         amount,
			ActorUserID:    who.UserID,
			ActorIP:        who.IP,
			ActorUserAgent: who.UserAgent,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, billResponseFromModel(updated))
	}
}

type billResponse struct {
	ID            uuid.UUID        `json:"id"`
	ContractID    uuid.UUID        `json:"contract_id"`
	UtilityTypeID *uuid.UUID       `json:"utility_type_id,omitempty"`
	Amount        string           `json:"amount"`
	BillingMonth  string           `json:"billing_month"`
	DueDate       string           `json:"due_date"`
	Status        enums.BillStatus `json:"status"`
	PaidOn        *time.Time       `json:"paid_on,omitempty"`
	ExternalRef   *string          `json:"external_ref,omitempty"`
	IsRent        bool             `json:"is_rent"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

type billDetailResponse struct {
	billResponse
	AmountPaid      string `json:"amount_paid"`
	AmountRemaining string `json:"amount_remaining"`
	IsOverdue       bool   `json:"is_overdue"`
}

type billListResponse struct {
	Items  []billResponse `json:"items"`
	Cursor string         `json:"cursor,omitempty"`
}

func billResponseFromModel(m *models.Bill) billResponse {
	return billResponse{
		ID:            m.ID,
		ContractID:    m.ContractID,
		UtilityTypeID: m.UtilityTypeID,
		Amount:        m.Amount.StringFixed(2),
		BillingMonth:  m.BillingMonth,
		DueDate:       m.DueDate.Format(dateLayout),
		Status:        m.Status,
		PaidOn:        m.PaidOn,
		ExternalRef:   m.ExternalRef,
		IsRent:        m.IsRent(),
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func billDetailResponseFromModel(detail *billing.BillDetail) billDetailResponse {
	return billDetailResponse{
		billResponse:    billResponseFromModel(&detail.Bill),
		AmountPaid:      detail.AmountPaid.StringFixed(2),
		AmountRemaining: detail.AmountRemaining.StringFixed(2),
		IsOverdue:       detail.IsOverdue,
	}
}
