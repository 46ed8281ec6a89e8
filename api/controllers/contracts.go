package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rentstack/rentstack-backend/api/responses"
	"github.com/rentstack/rentstack-backend/api/validators"
	"github.com/rentstack/rentstack-backend/internal/contracts"
	"github.com/rentstack/rentstack-backend/pkg/db/models"
	"github.com/rentstack/rentstack-backend/pkg/enums"
	pkgerrors "github.com/rentstack/rentstack-backend/pkg/errors"
	"github.com/rentstack/rentstack-backend/pkg/logger"
	"github.com/rentstack/rentstack-backend/pkg/pagination"
)

const dateLayout = "2006-01-02"

type contractCreateRequest struct {
	UnitID            string `json:"unit_id" validate:"required"`
	TenantHouseholdID string `json:"tenant_household_id" validate:"required"`
	ContractFrom      string `json:"contract_from" validate:"required"`
	ContractTo        string `json:"contract_to" validate:"required"`
	AdvancePaidMonths int    `json:"advance_paid_months" validate:"min=0,max=24"`
}

func (req contractCreateRequest) toInput() (contracts.CreateContractInput, error) {
	unitID, err := uuid.Parse(strings.TrimSpace(req.UnitID))
	if err != nil {
		return contracts.CreateContractInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid unit_id")
	}
	householdID, err := uuid.Parse(strings.TrimSpace(req.TenantHouseholdID))
	if err != nil {
		return contracts.CreateContractInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid tenant_household_id")
	}
	from, err := time.Parse(dateLayout, strings.TrimSpace(req.ContractFrom))
	if err != nil {
		return contracts.CreateContractInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid contract_from")
	}
	to, err := time.Parse(dateLayout, strings.TrimSpace(req.ContractTo))
	if err != nil {
		return contracts.CreateContractInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid contract_to")
	}

	return contracts.CreateContractInput{
		UnitID:            unitID,
		TenantHouseholdID: householdID,
		ContractFrom:      from,
		ContractTo:        to,
		AdvancePaidMonths: req.AdvancePaidMonths,
	}, nil
}

// ContractCreate signs a new rental contract on a unit.
func ContractCreate(svc contracts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "contract service unavailable"))
			return
		}

		who, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload contractCreateRequest
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
		input.ActorIP = who.IP
		input.ActorUserAgent = who.UserAgent

		created, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, contractResponseFromModel(created))
	}
}

// ContractGet returns one contract by id.
func ContractGet(svc contracts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "contract service unavailable"))
			return
		}

		contractID, err := uuid.Parse(chi.URLParam(r, "contractId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid contract id"))
			return
		}

		contract, err := svc.Get(r.Context(), contractID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, contractResponseFromModel(contract))
	}
}

// ContractList returns a cursor page of contracts with optional filters.
func ContractList(svc contracts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "contract service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := contracts.ListContractsInput{
			Params: pagination.Params{
				Limit:  limit,
				Cursor: r.URL.Query().Get("cursor"),
			},
		}

		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseContractStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			input.Filters.Status = &status
		}
		if input.Filters.UnitID, err = validators.ParseQueryUUID(r, "unit_id"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if input.Filters.HouseholdID, err = validators.ParseQueryUUID(r, "household_id"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.List(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]contractResponse, 0, len(page.Items))
		for i := range page.Items {
			items = append(items, contractResponseFromModel(&page.Items[i]))
		}
		responses.WriteSuccess(w, contractListResponse{Items: items, Cursor: page.Cursor})
	}
}

// ContractListActive returns every currently active contract, unpaginated.
func ContractListActive(svc contracts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "contract service unavailable"))
			return
		}

		active, err := svc.ListActive(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]contractResponse, 0, len(active))
		for i := range active {
			items = append(items, contractResponseFromModel(&active[i]))
		}
		responses.WriteSuccess(w, contractListResponse{Items: items})
	}
}

type contractTerminateRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=500"`
}

// ContractTerminate ends an active contract early.
func ContractTerminate(svc contracts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "contract service unavailable"))
			return
		}

		who, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		contractID, err := uuid.Parse(chi.URLParam(r, "contractId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid contract id"))
			return
		}

		var payload contractTerminateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		terminated, err := svc.Terminate(r.Context(), contracts.TerminateContractInput{
			ContractID:     contractID,
			Reason:         strings.TrimSpace(payload.Reason),
			ActorUserID:    who.UserID,
			ActorIP:        who.IP,
			ActorUserAgent: who.UserAgent,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, contractResponseFromModel(terminated))
	}
}

// ContractAuthors lists the management grants on a contract.
func ContractAuthors(svc contracts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "contract service unavailable"))
			return
		}

		contractID, err := uuid.Parse(chi.URLParam(r, "contractId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid contract id"))
			return
		}

		authors, err := svc.Authors(r.Context(), contractID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]contractAuthorResponse, 0, len(authors))
		for _, author := range authors {
			items = append(items, contractAuthorResponse{
				ID:           author.ID,
				ContractID:   author.ContractID,
				UserID:       author.UserID,
				Role:         author.Role,
				CanApprove:   author.CanApprove,
				CanTerminate: author.CanTerminate,
				CanRenew:     author.CanRenew,
				IsActive:     author.IsActive,
				CreatedAt:    author.CreatedAt,
			})
		}
		responses.WriteSuccess(w, items)
	}
}

// ContractParticipants lists the households attached to a contract.
func ContractParticipants(svc contracts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "contract service unavailable"))
			return
		}

		contractID, err := uuid.Parse(chi.URLParam(r, "contractId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid contract id"))
			return
		}

		participants, err := svc.Participants(r.Context(), contractID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]contractParticipantResponse, 0, len(participants))
		for _, participant := range participants {
			items = append(items, contractParticipantResponse{
				ID:          participant.ID,
				ContractID:  participant.ContractID,
				HouseholdID: participant.HouseholdID,
				Role:        participant.Role,
				CreatedAt:   participant.CreatedAt,
			})
		}
		responses.WriteSuccess(w, items)
	}
}

type contractResponse struct {
	ID                      uuid.UUID            `json:"id"`
	UnitID                  uuid.UUID            `json:"unit_id"`
	TenantHouseholdID       uuid.UUID            `json:"tenant_household_id"`
	ContractFrom            string               `json:"contract_from"`
	ContractTo              string               `json:"contract_to"`
	RentAmountAtContract    string               `json:"rent_amount_at_contract"`
	ServiceChargeAtContract string               `json:"service_charge_at_contract"`
	AdvancePaidMonths       int                  `json:"advance_paid_months"`
	PaymentDueDay           int                  `json:"payment_due_day"`
	Status                  enums.ContractStatus `json:"status"`
	TerminatedAt            *time.Time           `json:"terminated_at,omitempty"`
	TerminationReason       *string              `json:"termination_reason,omitempty"`
	CreatedByID             uuid.UUID            `json:"created_by_id"`
	CreatedAt               time.Time            `json:"created_at"`
	UpdatedAt               time.Time            `json:"updated_at"`
}

type contractListResponse struct {
	Items  []contractResponse `json:"items"`
	Cursor string             `json:"cursor,omitempty"`
}

type contractAuthorResponse struct {
	ID           uuid.UUID        `json:"id"`
	ContractID   uuid.UUID        `json:"contract_id"`
	UserID       uuid.UUID        `json:"user_id"`
	Role         enums.AuthorRole `json:"role"`
	CanApprove   bool             `json:"can_approve"`
	CanTerminate bool             `json:"can_terminate"`
	CanRenew     bool             `json:"can_renew"`
	IsActive     bool             `json:"is_active"`
	CreatedAt    time.Time        `json:"created_at"`
}

type contractParticipantResponse struct {
	ID          uuid.UUID             `json:"id"`
	ContractID  uuid.UUID             `json:"contract_id"`
	HouseholdID uuid.UUID             `json:"household_id"`
	Role        enums.ParticipantRole `json:"role"`
	CreatedAt   time.Time             `json:"created_at"`
}

func contractResponseFromModel(m *models.RentalContract) contractResponse {
	return contractResponse{
		ID:                      m.ID,
		UnitID:                  m.UnitID,
		TenantHouseholdID:       m.TenantHouseholdID,
		ContractFrom:            m.ContractFrom.Format(dateLayout),
		ContractTo:              m.ContractTo.Format(dateLayout),
		RentAmountAtContract:    m.RentAmountAtContract.StringFixed(2),
		ServiceChargeAtContract: m.ServiceChargeAtContract.StringFixed(2),
		AdvancePaidMonths:       m.AdvancePaidMonths,
		PaymentDueDay:           m.PaymentDueDay,
		Status:                  m.Status,
		TerminatedAt:            m.TerminatedAt,
		TerminationReason:       m.TerminationReason,
		CreatedByID:             m.CreatedByID,
		CreatedAt:               m.CreatedAt,
		UpdatedAt:               m.UpdatedAt,
	}
}
