package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rentstack/rentstack-backend/api/controllers"
	webhookcontrollers "github.com/rentstack/rentstack-backend/api/controllers/webhooks"
	"github.com/rentstack/rentstack-backend/api/middleware"
	"github.com/rentstack/rentstack-backend/internal/audit"
	"github.com/rentstack/rentstack-backend/internal/billing"
	"github.com/rentstack/rentstack-backend/internal/contracts"
	"github.com/rentstack/rentstack-backend/internal/payments"
	providerwebhook "github.com/rentstack/rentstack-backend/internal/webhooks/provider"
	"github.com/rentstack/rentstack-backend/pkg/config"
	"github.com/rentstack/rentstack-backend/pkg/db"
	"github.com/rentstack/rentstack-backend/pkg/logger"
	"github.com/rentstack/rentstack-backend/pkg/redis"
)

// RouterParams bundles everything the HTTP surface depends on.
type RouterParams struct {
	Config       *config.Config
	Logger       *logger.Logger
	DB           db.Pinger
	Redis        *redis.Client
	Contracts    contracts.Service
	Billing      billing.Service
	Payments     payments.Service
	Audit        audit.Service
	WebhookGuard *providerwebhook.IdempotencyGuard
}

// NewRouter assembles the API route tree.
func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, params.DB, params.Redis))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/payments", webhookcontrollers.PaymentWebhook(params.Payments, params.WebhookGuard, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/contracts", func(r chi.Router) {
			r.Get("/", controllers.ContractList(params.Contracts, logg))
			r.Post("/", controllers.ContractCreate(params.Contracts, logg))
			r.Get("/active", controllers.ContractListActive(params.Contracts, logg))
			r.Get("/{contractId}", controllers.ContractGet(params.Contracts, logg))
			r.Post("/{contractId}/terminate", controllers.ContractTerminate(params.Contracts, logg))
			r.Get("/{contractId}/authors", controllers.ContractAuthors(params.Contracts, logg))
			r.Get("/{contractId}/participants", controllers.ContractParticipants(params.Contracts, logg))
		})

		r.Route("/bills", func(r chi.Router) {
			r.Get("/", controllers.BillList(params.Billing, logg))
			r.Get("/{billId}", controllers.BillGet(params.Billing, logg))
			r.Patch("/{billId}/amount", controllers.BillSetAmount(params.Billing, logg))
		})

		r.Route("/payments", func(r chi.Router) {
			r.Get("/", controllers.PaymentList(params.Payments, logg))
			r.Post("/", controllers.PaymentRecord(params.Payments, logg))
			r.Get("/statistics", controllers.PaymentStatistics(params.Payments, logg))
			r.Get("/{paymentId}", controllers.PaymentGet(params.Payments, logg))
			r.Post("/{paymentId}/provider-result", controllers.PaymentApplyProviderResult(params.Payments, logg))
		})

		r.Route("/audit", func(r chi.Router) {
			r.Get("/", controllers.AuditTrail(params.Audit, logg))
			r.Get("/actors/{userId}", controllers.AuditActorTrail(params.Audit, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole("admin", logg))

		r.Post("/billing/generate", controllers.AdminGenerateBills(params.Billing, logg))
		r.Post("/billing/sweep-overdue", controllers.AdminSweepOverdue(params.Billing, logg))
		r.Post("/contracts/sweep-expired", controllers.AdminSweepExpiredContracts(params.Contracts, logg))
		r.Post("/webhooks/{eventId}/retry", controllers.AdminRetryWebhook(params.Payments, logg))
	})

	return r
}
