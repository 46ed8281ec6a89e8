package controllers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rentstack/rentstack-backend/api/responses"
	"github.com/rentstack/rentstack-backend/api/validators"
	"github.com/rentstack/rentstack-backend/internal/audit"
	"github.com/rentstack/rentstack-backend/pkg/db/models"
	"github.com/rentstack/rentstack-backend/pkg/enums"
	pkgerrors "github.com/rentstack/rentstack-backend/pkg/errors"
	"github.com/rentstack/rentstack-backend/pkg/logger"
	"github.com/rentstack/rentstack-backend/pkg/pagination"
)

// AuditTrail returns the audit entries for one entity, newest first.
func AuditTrail(svc audit.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "audit service unavailable"))
			return
		}

		entityType := strings.TrimSpace(r.URL.Query().Get("entity_type"))
		if entityType == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "entity_type is required"))
			return
		}
		entityID, err := validators.ParseQueryUUID(r, "entity_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if entityID == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "entity_id is required"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListByEntity(r.Context(), audit.ListByEntityInput{
			EntityType: entityType,
			EntityID:   *entityID,
			Params: pagination.Params{
				Limit:  limit,
				Cursor: r.URL.Query().Get("cursor"),
			},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, auditListResponseFromPage(page))
	}
}

// AuditActorTrail returns everything one user did, newest first.
func AuditActorTrail(svc audit.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "audit service unavailable"))
			return
		}

		actorID, err := uuid.Parse(chi.URLParam(r, "userId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListByActor(r.Context(), audit.ListByActorInput{
			ActorUserID: actorID,
			Params: pagination.Params{
				Limit:  limit,
				Cursor: r.URL.Query().Get("cursor"),
			},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, auditListResponseFromPage(page))
	}
}

type auditLogResponse struct {
	ID          uuid.UUID         `json:"id"`
	EntityType  string            `json:"entity_type"`
	EntityID    uuid.UUID         `json:"entity_id"`
	Action      enums.AuditAction `json:"action"`
	Data        json.RawMessage   `json:"data"`
	ActorUserID *uuid.UUID        `json:"actor_user_id,omitempty"`
	IPAddress   *string           `json:"ip_address,omitempty"`
	UserAgent   *string           `json:"user_agent,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

type auditListResponse struct {
	Items  []auditLogResponse `json:"items"`
	Cursor string             `json:"cursor,omitempty"`
}

func auditListResponseFromPage(page *audit.LogList) auditListResponse {
	items := make([]auditLogResponse, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, auditLogResponseFromModel(&page.Items[i]))
	}
	return auditListResponse{Items: items, Cursor: page.Cursor}
}

func auditLogResponseFromModel(m *models.AuditLog) auditLogResponse {
	return auditLogResponse{
		ID:          m.ID,
		EntityType:  m.EntityType,
		EntityID:    m.EntityID,
		Action:      m.Action,
		Data:        m.Data,
		ActorUserID: m.ActorUserID,
		IPAddress:   m.IPAddress,
		UserAgent:   m.UserAgent,
		CreatedAt:   m.CreatedAt,
	}
}
