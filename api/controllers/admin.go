package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rentstack/rentstack-backend/api/responses"
	"github.com/rentstack/rentstack-backend/api/validators"
	"github.com/rentstack/rentstack-backend/internal/billing"
	"github.com/rentstack/rentstack-backend/internal/contracts"
	"github.com/rentstack/rentstack-backend/internal/payments"
	pkgerrors "github.com/rentstack/rentstack-backend/pkg/errors"
	"github.com/rentstack/rentstack-backend/pkg/logger"
)

type adminGenerateBillsRequest struct {
	// BillingMonth defaults to the current month when omitted.
	BillingMonth string `json:"billing_month"`
}

// AdminGenerateBills triggers bill generation outside the cron schedule.
func AdminGenerateBills(svc billing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		var payload adminGenerateBillsRequest
		if r.Body != nil && r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		now := time.Now().UTC()
		month := strings.TrimSpace(payload.BillingMonth)
		if month == "" {
			month = now.Format(billing.BillingMonthLayout)
		}

		created, err := svc.GenerateMonthlyBills(r.Context(), month, now)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"billing_month": month, "created": created})
	}
}

// AdminSweepOverdue flags past-due bills outside the cron schedule.
func AdminSweepOverdue(svc billing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		marked, err := svc.SweepOverdue(r.Context(), time.Now().UTC())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"marked": marked})
	}
}

// AdminSweepExpiredContracts expires ended contracts outside the cron schedule.
func AdminSweepExpiredContracts(svc contracts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "contract service unavailable"))
			return
		}

		expired, err := svc.SweepExpired(r.Context(), time.Now().UTC())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"expired": expired})
	}
}

// AdminRetryWebhook reprocesses a stored provider event that failed.
func AdminRetryWebhook(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		eventID := strings.TrimSpace(chi.URLParam(r, "eventId"))
		if eventID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "event id is required"))
			return
		}

		if err := svc.RetryWebhook(r.Context(), eventID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"event_id": eventID, "retried": true})
	}
}
