package payments

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	pkgdb "github.com/rentstack/rentstack-backend/pkg/db"
	"github.com/rentstack/rentstack-backend/pkg/db/models"
	"github.com/rentstack/rentstack-backend/pkg/enums"
)

func setupPaymentsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	payments := `
CREATE TABLE IF NOT EXISTS payments (
  id TEXT PRIMARY KEY,
  contract_id TEXT NOT NULL,
  bill_id TEXT,
  amount TEXT NOT NULL,
  payment_type TEXT NOT NULL,
  provider TEXT NOT NULL DEFAULT 'stripe',
  provider_payment_id TEXT UNIQUE,
  status TEXT NOT NULL DEFAULT 'pending',
  idempotency_key TEXT NOT NULL UNIQUE,
  received_by_id TEXT,
  metadata TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	webhooks := `
CREATE TABLE IF NOT EXISTS payment_webhooks (
  id TEXT PRIMARY KEY,
  provider TEXT NOT NULL,
  event_id TEXT NOT NULL UNIQUE,
  event_type TEXT NOT NULL,
  payload TEXT NOT NULL,
  processed INTEGER NOT NULL DEFAULT 0,
  processed_at DATETIME,
  error_message TEXT,
  created_at DATETIME
);`
	bills := `
CREATE TABLE IF NOT EXISTS bills (
  id TEXT PRIMARY KEY,
  contract_id TEXT NOT NULL,
  utility_type_id TEXT,
  amount TEXT NOT NULL,
  billing_month TEXT NOT NULL,
  due_date DATETIME NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  paid_on DATETIME,
  external_ref TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`

	for _, ddl := range []string{payments, webhooks, bills} {
		require.NoError(t, db.Exec(ddl).Error)
	}
	return db
}

func seedPayment(t *testing.T, repo Repository, amount string, status enums.PaymentStatus) *models.Payment {
	t.Helper()
	payment := &models.Payment{
		ID:             uuid.New(),
		ContractID:     uuid.New(),
		Amount:         decimal.RequireFromString(amount),
		PaymentType:    enums.PaymentTypeRent,
		Provider:       enums.PaymentProviderCash,
		Status:         status,
		IdempotencyKey: uuid.NewString(),
		CreatedAt:      time.Now().UTC(),
	}
	require.NoError(t, repo.Create(context.Background(), payment))
	return payment
}

func TestRepository_IdempotencyKeyUnique(t *testing.T) {
	db := setupPaymentsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	first := seedPayment(t, repo, "100.00", enums.PaymentStatusPending)

	found, err := repo.FindByIdempotencyKey(ctx, first.IdempotencyKey)
	require.NoError(t, err)
	require.Equal(t, first.ID, found.ID)

	dup := &models.Payment{
		ID:             uuid.New(),
		ContractID:     first.ContractID,
		Amount:         decimal.RequireFromString("100.00"),
		PaymentType:    enums.PaymentTypeRent,
		Provider:       enums.PaymentProviderCash,
		Status:         enums.PaymentStatusPending,
		IdempotencyKey: first.IdempotencyKey,
	}
	err = repo.Create(ctx, dup)
	require.Error(t, err)
	require.True(t, pkgdb.IsUniqueViolation(err, ""))
}

func TestRepository_StatusStats(t *testing.T) {
	db := setupPaymentsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	seedPayment(t, repo, "100.00", enums.PaymentStatusSucceeded)
	seedPayment(t, repo, "250.00", enums.PaymentStatusSucceeded)
	seedPayment(t, repo, "75.00", enums.PaymentStatusFailed)

	stats, err := repo.StatusStats(ctx)
	require.NoError(t, err)

	byStatus := map[enums.PaymentStatus]StatusStat{}
	for _, stat := range stats {
		byStatus[stat.Status] = stat
	}
	require.EqualValues(t, 2, byStatus[enums.PaymentStatusSucceeded].Count)
	require.True(t, byStatus[enums.PaymentStatusSucceeded].Total.Equal(decimal.RequireFromString("350.00")),
		"got %s", byStatus[enums.PaymentStatusSucceeded].Total)
	require.EqualValues(t, 1, byStatus[enums.PaymentStatusFailed].Count)
}

func TestRepository_Webhooks(t *testing.T) {
	db := setupPaymentsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	webhook := &models.PaymentWebhook{
		ID:        uuid.New(),
		Provider:  "stripe",
		EventID:   "evt_1",
		EventType: "payment_intent.succeeded",
		Payload:   json.RawMessage(`{"status":"succeeded"}`),
	}
	require.NoError(t, repo.CreateWebhook(ctx, webhook))

	found, err := repo.FindWebhookByEventID(ctx, "evt_1")
	require.NoError(t, err)
	require.False(t, found.Processed)

	now := time.Now().UTC()
	require.NoError(t, repo.UpdateWebhook(ctx, webhook.ID, map[string]any{
		"processed":    true,
		"processed_at": now,
	}))

	found, err = repo.FindWebhookByEventID(ctx, "evt_1")
	require.NoError(t, err)
	require.True(t, found.Processed)
	require.NotNil(t, found.ProcessedAt)

	// Duplicate event ids are rejected by the unique index.
	err = repo.CreateWebhook(ctx, &models.PaymentWebhook{
		ID:        uuid.New(),
		Provider:  "stripe",
		EventID:   "evt_1",
		EventType: "payment_intent.succeeded",
		Payload:   json.RawMessage(`{}`),
	})
	require.Error(t, err)
	require.True(t, pkgdb.IsUniqueViolation(err, ""))
}

func TestRepository_BillExists(t *testing.T) {
	db := setupPaymentsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	bill := &models.Bill{
		ID:           uuid.New(),
		ContractID:   uuid.New(),
		Amount:       decimal.RequireFromString("10.00"),
		BillingMonth: "2026-01",
		DueDate:      time.Now(),
		Status:       enums.BillStatusPending,
	}
	require.NoError(t, db.Create(bill).Error)

	exists, err := repo.BillExists(ctx, bill.ID)
	require.NoError(t, err)
	require.True(t, exists)

	exists, err = repo.BillExists(ctx, uuid.New())
	require.NoError(t, err)
	require.False(t, exists)
}
