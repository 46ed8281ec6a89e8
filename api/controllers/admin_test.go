package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAdminGenerateBillsDefaultsToCurrentMonth(t *testing.T) {
	var gotMonth string
	svc := &testBillingService{
		generateFn: func(ctx context.Context, billingMonth string, asOf time.Time) (int, error) {
			gotMonth = billingMonth
			return 4, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/billing/generate", nil)
	resp := httptest.NewRecorder()
	AdminGenerateBills(svc, testControllerLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	if want := time.Now().UTC().Format("2006-01"); gotMonth != want {
		t.Fatalf("expected month %s, got %s", want, gotMonth)
	}

	var envelope struct {
		Data struct {
			BillingMonth string `json:"billing_month"`
			Created      int    `json:"created"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data.Created != 4 {
		t.Fatalf("expected 4 created, got %d", envelope.Data.Created)
	}
}

func TestAdminGenerateBillsHonorsExplicitMonth(t *testing.T) {
	var gotMonth string
	svc := &testBillingService{
		generateFn: func(ctx context.Context, billingMonth string, asOf time.Time) (int, error) {
			gotMonth = billingMonth
			return 0, nil
		},
	}

	body, _ := json.Marshal(map[string]string{"billing_month": "2026-01"})
	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/billing/generate", bytes.NewReader(body))
	resp := httptest.NewRecorder()
	AdminGenerateBills(svc, testControllerLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	if gotMonth != "2026-01" {
		t.Fatalf("expected 2026-01, got %s", gotMonth)
	}
}

func TestAdminSweepOverdue(t *testing.T) {
	svc := &testBillingService{
		sweepFn: func(ctx context.Context, asOf time.Time) (int64, error) {
			return 7, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/billing/sweep-overdue", nil)
	resp := httptest.NewRecorder()
	AdminSweepOverdue(svc, testControllerLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}

	var envelope struct {
		Data struct {
			Marked int64 `json:"marked"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data.Marked != 7 {
		t.Fatalf("expected 7 marked, got %d", envelope.Data.Marked)
	}
}

func TestAdminRetryWebhook(t *testing.T) {
	var gotEventID string
	svc := &testPaymentsService{
		retryFn: func(ctx context.Context, eventID string) error {
			gotEventID = eventID
			return nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/webhooks/evt_42/retry", nil)
	req = addRouteParam(req, "eventId", "evt_42")
	resp := httptest.NewRecorder()
	AdminRetryWebhook(svc, testControllerLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	if gotEventID != "evt_42" {
		t.Fatalf("expected evt_42, got %s", gotEventID)
	}
}
