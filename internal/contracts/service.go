package contracts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rentstack/rentstack-backend/internal/audit"
	"github.com/rentstack/rentstack-backend/internal/properties"
	pkgdb "github.com/rentstack/rentstack-backend/pkg/db"
	"github.com/rentstack/rentstack-backend/pkg/db/models"
	"github.com/rentstack/rentstack-backend/pkg/enums"
	pkgerrors "github.com/rentstack/rentstack-backend/pkg/errors"
	"github.com/rentstack/rentstack-backend/pkg/logger"
	"github.com/rentstack/rentstack-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type auditRecorder interface {
	Record(ctx context.Context, tx *gorm.DB, input audit.RecordInput) (*models.AuditLog, error)
}

// Service defines the contract lifecycle operations.
type Service interface {
	Create(ctx context.Context, input CreateContractInput) (*models.RentalContract, error)
	Terminate(ctx context.Context, input TerminateContractInput) (*models.RentalContract, error)
	SweepExpired(ctx context.Context, asOf time.Time) (int, error)

	Get(ctx context.Context, contractID uuid.UUID) (*models.RentalContract, error)
	List(ctx context.Context, input ListContractsInput) (*ContractList, error)
	ListActive(ctx context.Context) ([]models.RentalContract, error)
	Authors(ctx context.Context, contractID uuid.UUID) ([]models.RentalContractAuthor, error)
	Participants(ctx context.Context, contractID uuid.UUID) ([]models.RentalContractParticipant, error)
}

type service struct {
	repo  Repository
	props properties.Repository
	audit auditRecorder
	tx    txRunner
	logg  *logger.Logger
}

// CreateContractInput captures a contract signing request. Financial terms
// are not accepted from the caller; they are frozen from the unit's current
// rental terms inside the transaction.
type CreateContractInput struct {
	UnitID            uuid.UUID
	TenantHouseholdID uuid.UUID
	ContractFrom      time.Time
	ContractTo        time.Time
	AdvancePaidMonths int
	ActorUserID       uuid.UUID
	ActorIP           *string
	ActorUserAgent    *string
}

// TerminateContractInput captures an early termination request.
type TerminateContractInput struct {
	ContractID     uuid.UUID
	Reason         string
	ActorUserID    uuid.UUID
	ActorIP        *string
	ActorUserAgent *string
}

// ListContractsInput selects a page of contracts.
type ListContractsInput struct {
	Filters ListFilters
	pagination.Params
}

// ContractList is a cursor page of contracts.
type ContractList struct {
	Items  []models.RentalContract `json:"items"`
	Cursor string                  `json:"cursor"`
}

// ServiceParams bundles the dependencies required to build a contract service.
type ServiceParams struct {
	Repo       Repository
	Properties properties.Repository
	Audit      auditRecorder
	Tx         txRunner
	Logger     *logger.Logger
}

// NewService constructs a contract lifecycle service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("contracts repository is required")
	}
	if params.Properties == nil {
		return nil, fmt.Errorf("properties repository is required")
	}
	if params.Audit == nil {
		return nil, fmt.Errorf("audit recorder is required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner is required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &service{
		repo:  params.Repo,
		props: params.Properties,
		audit: params.Audit,
		tx:    params.Tx,
		logg:  params.Logger,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateContractInput) (*models.RentalContract, error) {
	if input.UnitID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit id required")
	}
	if input.TenantHouseholdID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant household id required")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !input.ContractTo.After(input.ContractFrom) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "contract end date must be after start date")
	}
	if input.AdvancePaidMonths < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "advance paid months cannot be negative")
	}

	var contract *models.RentalContract
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		props := s.props.WithTx(tx)

		if _, err := props.FindUnit(ctx, input.UnitID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "unit not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load unit")
		}
		terms, err := props.FindRentalTerms(ctx, input.UnitID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "unit has no rental terms")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load rental terms")
		}
		if _, err := props.FindHousehold(ctx, input.TenantHouseholdID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "household not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load household")
		}

		if _, err := repo.FindActiveByUnitForUpdate(ctx, input.UnitID); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "unit already has an active contract")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check active contract")
		}

		contract = &models.RentalContract{
			ID:                      uuid.New(),
			UnitID:                  input.UnitID,
			TenantHouseholdID:       input.TenantHouseholdID,
			ContractFrom:            input.ContractFrom,
			ContractTo:              input.ContractTo,
			RentAmountAtContract:    terms.AskingRent,
			ServiceChargeAtContract: terms.ServiceCharge,
			AdvancePaidMonths:       input.AdvancePaidMonths,
			PaymentDueDay:           terms.PaymentDueDay,
			Status:                  enums.ContractStatusActive,
			CreatedByID:             input.ActorUserID,
		}
		if err := repo.Create(ctx, contract); err != nil {
			if pkgdb.IsUniqueViolation(err, "idx_rental_contracts_one_active") {
				return pkgerrors.New(pkgerrors.CodeConflict, "unit already has an active contract")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create contract")
		}

		author := &models.RentalContractAuthor{
			ID:           uuid.New(),
			ContractID:   contract.ID,
			UserID:       input.ActorUserID,
			Role:         enums.AuthorRolePrimary,
			CanApprove:   true,
			CanTerminate: true,
			CanRenew:     true,
			IsActive:     true,
		}
		if err := repo.CreateAuthor(ctx, author); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create author grant")
		}

		participant := &models.RentalContractParticipant{
			ID:          uuid.New(),
			ContractID:  contract.ID,
			HouseholdID: input.TenantHouseholdID,
			Role:        enums.ParticipantRolePrimary,
		}
		if err := repo.CreateParticipant(ctx, participant); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create participant")
		}

		_, err = s.audit.Record(ctx, tx, audit.RecordInput{
			EntityType:  audit.EntityRentalContract,
			EntityID:    contract.ID,
			Action:      enums.AuditActionCreate,
			Data:        contractSnapshot(contract),
			ActorUserID: &input.ActorUserID,
			IPAddress:   input.ActorIP,
			UserAgent:   input.ActorUserAgent,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return contract, nil
}

func (s *service) Terminate(ctx context.Context, input TerminateContractInput) (*models.RentalContract, error) {
	if input.ContractID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "contract id required")
	}
	if input.Reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "termination reason required")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	var contract *models.RentalContract
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		author, err := repo.FindAuthor(ctx, input.ContractID, input.ActorUserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeForbidden, "not authorized to terminate this contract")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load author grant")
		}
		if !author.IsActive || !author.CanTerminate {
			return pkgerrors.New(pkgerrors.CodeForbidden, "not authorized to terminate this contract")
		}

		contract, err = repo.FindByIDForUpdate(ctx, input.ContractID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "contract not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load contract")
		}
		if contract.Status != enums.ContractStatusActive {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot terminate contract in status %q", contract.Status))
		}

		now := time.Now().UTC()
		updates := map[string]any{
			"status":             enums.ContractStatusTerminated,
			"terminated_at":      now,
			"termination_reason": input.Reason,
		}
		if err := repo.Update(ctx, contract.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update contract")
		}
		contract.Status = enums.ContractStatusTerminated
		contract.TerminatedAt = &now
		contract.TerminationReason = &input.Reason

		_, err = s.audit.Record(ctx, tx, audit.RecordInput{
			EntityType:  audit.EntityRentalContract,
			EntityID:    contract.ID,
			Action:      enums.AuditActionTerminate,
			Data:        contractSnapshot(contract),
			ActorUserID: &input.ActorUserID,
			IPAddress:   input.ActorIP,
			UserAgent:   input.ActorUserAgent,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return contract, nil
}

// SweepExpired marks active contracts whose end date has passed. Each
// contract transitions in its own transaction so one failure does not block
// the rest of the batch.
func (s *service) SweepExpired(ctx context.Context, asOf time.Time) (int, error) {
	candidates, err := s.repo.ListActiveEndingBefore(ctx, asOf)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list expiring contracts")
	}

	expired := 0
	for _, candidate := range candidates {
		candidateCtx := s.logg.WithContractID(ctx, candidate.ID.String())
		transitioned := false
		err := s.tx.WithTx(candidateCtx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			contract, err := repo.FindByIDForUpdate(candidateCtx, candidate.ID)
			if err != nil {
				return err
			}
			if contract.Status != enums.ContractStatusActive || !contract.ContractTo.Before(asOf) {
				return nil
			}
			if err := repo.Update(candidateCtx, contract.ID, map[string]any{"status": enums.ContractStatusExpired}); err != nil {
				return err
			}
			contract.Status = enums.ContractStatusExpired
			if _, err := s.audit.Record(candidateCtx, tx, audit.RecordInput{
				EntityType: audit.EntityRentalContract,
				EntityID:   contract.ID,
				Action:     enums.AuditActionUpdate,
				Data:       contractSnapshot(contract),
			}); err != nil {
				return err
			}
			transitioned = true
			return nil
		})
		if err != nil {
			s.logg.Error(candidateCtx, "contract expiry failed, continuing batch", err)
			continue
		}
		if transitioned {
			expired++
		}
	}
	return expired, nil
}

func (s *service) Get(ctx context.Context, contractID uuid.UUID) (*models.RentalContract, error) {
	if contractID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "contract id required")
	}
	contract, err := s.repo.FindByID(ctx, contractID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "contract not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load contract")
	}
	return contract, nil
}

func (s *service) List(ctx context.Context, input ListContractsInput) (*ContractList, error) {
	cursor, err := pagination.ParseCursor(input.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse cursor")
	}
	if input.Filters.Status != nil && !input.Filters.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid contract status %q", *input.Filters.Status))
	}

	limit := pagination.NormalizeLimit(input.Limit)
	rows, err := s.repo.List(ctx, input.Filters, limit+1, cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list contracts")
	}

	list := &ContractList{Items: rows}
	if len(rows) > limit {
		list.Items = rows[:limit]
		last := list.Items[len(list.Items)-1]
		list.Cursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return list, nil
}

func (s *service) ListActive(ctx context.Context) ([]models.RentalContract, error) {
	rows, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list active contracts")
	}
	return rows, nil
}

func (s *service) Authors(ctx context.Context, contractID uuid.UUID) ([]models.RentalContractAuthor, error) {
	if contractID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "contract id required")
	}
	rows, err := s.repo.ListAuthors(ctx, contractID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list contract authors")
	}
	return rows, nil
}

func (s *service) Participants(ctx context.Context, contractID uuid.UUID) ([]models.RentalContractParticipant, error) {
	if contractID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "contract id required")
	}
	rows, err := s.repo.ListParticipants(ctx, contractID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list contract participants")
	}
	return rows, nil
}

func contractSnapshot(contract *models.RentalContract) map[string]any {
	snapshot := map[string]any{
		"unit_id":                    contract.UnitID,
		"tenant_household_id":        contract.TenantHouseholdID,
		"contract_from":              contract.ContractFrom.Format("2006-01-02"),
		"contract_to":                contract.ContractTo.Format("2006-01-02"),
		"rent_amount_at_contract":    contract.RentAmountAtContract.String(),
		"service_charge_at_contract": contract.ServiceChargeAtContract.String(),
		"advance_paid_months":        contract.AdvancePaidMonths,
		"payment_due_day":            contract.PaymentDueDay,
		"status":                     contract.Status,
	}
	if contract.TerminationReason != nil {
		snapshot["termination_reason"] = *contract.TerminationReason
	}
	return snapshot
}
