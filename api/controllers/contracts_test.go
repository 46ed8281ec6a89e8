package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rentstack/rentstack-backend/api/middleware"
	"github.com/rentstack/rentstack-backend/internal/contracts"
	"github.com/rentstack/rentstack-backend/pkg/db/models"
	"github.com/rentstack/rentstack-backend/pkg/enums"
	"github.com/rentstack/rentstack-backend/pkg/logger"
)

type testContractsService struct {
	createFn    func(ctx context.Context, input contracts.CreateContractInput) (*models.RentalContract, error)
	terminateFn func(ctx context.Context, input contracts.TerminateContractInput) (*models.RentalContract, error)
	getFn       func(ctx context.Context, contractID uuid.UUID) (*models.RentalContract, error)
	listFn      func(ctx context.Context, input contracts.ListContractsInput) (*contracts.ContractList, error)
}

func (s *testContractsService) Create(ctx context.Context, input contracts.CreateContractInput) (*models.RentalContract, error) {
	if s.createFn != nil {
		return s.createFn(ctx, input)
	}
	return nil, nil
}

func (s *testContractsService) Terminate(ctx context.Context, input contracts.TerminateContractInput) (*models.RentalContract, error) {
	if s.terminateFn != nil {
		return s.terminateFn(ctx, input)
	}
	return nil, nil
}

func (s *testContractsService) SweepExpired(ctx context.Context, asOf time.Time) (int, error) {
	return 0, nil
}

func (s *testContractsService) Get(ctx context.Context, contractID uuid.UUID) (*models.RentalContract, error) {
	if s.getFn != nil {
		return s.getFn(ctx, contractID)
	}
	return nil, nil
}

func (s *testContractsService) List(ctx context.Context, input contracts.ListContractsInput) (*contracts.ContractList, error) {
	if s.listFn != nil {
		return s.listFn(ctx, input)
	}
	return &contracts.ContractList{}, nil
}

func (s *testContractsService) ListActive(ctx context.Context) ([]models.RentalContract, error) {
	return nil, nil
}

func (s *testContractsService) Authors(ctx context.Context, contractID uuid.UUID) ([]models.RentalContractAuthor, error) {
	return nil, nil
}

func (s *testContractsService) Participants(ctx context.Context, contractID uuid.UUID) ([]models.RentalContractParticipant, error) {
	return nil, nil
}

func testControllerLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func sampleContract() *models.RentalContract {
	return &models.RentalContract{
		ID:                   uuid.New(),
		UnitID:               uuid.New(),
		TenantHouseholdID:    uuid.New(),
		ContractFrom:         time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		ContractTo:           time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
		RentAmountAtContract: decimal.RequireFromString("1200.00"),
		PaymentDueDay:        5,
		Status:               enums.ContractStatusActive,
		CreatedByID:          uuid.New(),
	}
}

func TestContractCreateSuccess(t *testing.T) {
	userID := uuid.New()
	contract := sampleContract()
	var captured contracts.CreateContractInput
	svc := &testContractsService{
		createFn: func(ctx context.Context, input contracts.CreateContractInput) (*models.RentalContract, error) {
			captured = input
			return contract, nil
		},
	}

	body, _ := json.Marshal(map[string]any{
		"unit_id":             contract.UnitID.String(),
		"tenant_household_id": contract.TenantHouseholdID.String(),
		"contract_from":       "2026-01-01",
		"contract_to":         "2026-12-31",
		"advance_paid_months": 2,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/contracts", bytes.NewReader(body))
	req = req.WithContext(middleware.WithUserID(req.Context(), userID.String()))

	resp := httptest.NewRecorder()
	ContractCreate(svc, testControllerLogger())(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	if captured.ActorUserID != userID {
		t.Fatalf("expected actor %s, got %s", userID, captured.ActorUserID)
	}
	if captured.AdvancePaidMonths != 2 {
		t.Fatalf("expected 2 advance months, got %d", captured.AdvancePaidMonths)
	}

	var envelope struct {
		Data contractResponse `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data.RentAmountAtContract != "1200.00" {
		t.Fatalf("expected frozen rent in response, got %s", envelope.Data.RentAmountAtContract)
	}
	if envelope.Data.ContractFrom != "2026-01-01" {
		t.Fatalf("unexpected contract_from %s", envelope.Data.ContractFrom)
	}
}

func TestContractCreateRequiresUser(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/contracts", bytes.NewReader([]byte(`{}`)))
	resp := httptest.NewRecorder()
	ContractCreate(&testContractsService{}, testControllerLogger())(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestContractCreateRejectsBadDates(t *testing.T) {
	userID := uuid.New()
	body, _ := json.Marshal(map[string]any{
		"unit_id":             uuid.NewString(),
		"tenant_household_id": uuid.NewString(),
		"contract_from":       "January 1st",
		"contract_to":         "2026-12-31",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/contracts", bytes.NewReader(body))
	req = req.WithContext(middleware.WithUserID(req.Context(), userID.String()))
	resp := httptest.NewRecorder()
	ContractCreate(&testContractsService{}, testControllerLogger())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestContractTerminateSuccess(t *testing.T) {
	userID := uuid.New()
	contract := sampleContract()
	contract.Status = enums.ContractStatusTerminated
	var captured contracts.TerminateContractInput
	svc := &testContractsService{
		terminateFn: func(ctx context.Context, input contracts.TerminateContractInput) (*models.RentalContract, error) {
			captured = input
			return contract, nil
		},
	}

	body, _ := json.Marshal(map[string]string{"reason": "tenant moved out"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/contracts/"+contract.ID.String()+"/terminate", bytes.NewReader(body))
	req = req.WithContext(middleware.WithUserID(req.Context(), userID.String()))
	req = addRouteParam(req, "contractId", contract.ID.String())

	resp := httptest.NewRecorder()
	ContractTerminate(svc, testControllerLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	if captured.ContractID != contract.ID {
		t.Fatalf("unexpected contract id %s", captured.ContractID)
	}
	if captured.Reason != "tenant moved out" {
		t.Fatalf("unexpected reason %q", captured.Reason)
	}
}

func TestContractGetInvalidID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/contracts/nope", nil)
	req = addRouteParam(req, "contractId", "nope")
	resp := httptest.NewRecorder()
	ContractGet(&testContractsService{}, testControllerLogger())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestContractListPassesFilters(t *testing.T) {
	var captured contracts.ListContractsInput
	svc := &testContractsService{
		listFn: func(ctx context.Context, input contracts.ListContractsInput) (*contracts.ContractList, error) {
			captured = input
			return &contracts.ContractList{Items: []models.RentalContract{*sampleContract()}, Cursor: "next"}, nil
		},
	}

	unitID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/contracts?status=active&unit_id="+unitID.String()+"&limit=10", nil)
	resp := httptest.NewRecorder()
	ContractList(svc, testControllerLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	if captured.Filters.Status == nil || *captured.Filters.Status != enums.ContractStatusActive {
		t.Fatal("expected status filter")
	}
	if captured.Filters.UnitID == nil || *captured.Filters.UnitID != unitID {
		t.Fatal("expected unit filter")
	}
	if captured.Limit != 10 {
		t.Fatalf("expected limit 10, got %d", captured.Limit)
	}

	var envelope struct {
		Data contractListResponse `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data.Cursor != "next" {
		t.Fatalf("expected cursor, got %q", envelope.Data.Cursor)
	}
}

func addRouteParam(req *http.Request, key, value string) *http.Request {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}
