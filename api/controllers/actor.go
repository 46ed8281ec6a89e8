package controllers

import (
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/rentstack/rentstack-backend/api/middleware"
	pkgerrors "github.com/rentstack/rentstack-backend/pkg/errors"
)

// actor identifies who performed a request, for audit attribution.
type actor struct {
	UserID    uuid.UUID
	IP        *string
	UserAgent *string
}

func actorFromRequest(r *http.Request) (actor, error) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		return actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	uid, err := uuid.Parse(userID)
	if err != nil {
		return actor{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id")
	}

	result := actor{UserID: uid}
	if ip := clientIP(r); ip != "" {
		result.IP = &ip
	}
	if ua := strings.TrimSpace(r.UserAgent()); ua != "" {
		result.UserAgent = &ua
	}
	return result, nil
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}
