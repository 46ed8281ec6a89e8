package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/rentstack/rentstack-backend/internal/audit"
	"github.com/rentstack/rentstack-backend/internal/properties"
	"github.com/rentstack/rentstack-backend/pkg/config"
	pkgdb "github.com/rentstack/rentstack-backend/pkg/db"
	"github.com/rentstack/rentstack-backend/pkg/db/models"
	"github.com/rentstack/rentstack-backend/pkg/enums"
	pkgerrors "github.com/rentstack/rentstack-backend/pkg/errors"
	"github.com/rentstack/rentstack-backend/pkg/logger"
	"github.com/rentstack/rentstack-backend/pkg/pagination"
)

// BillingMonthLayout is the canonical YYYY-MM period key format.
const BillingMonthLayout = "2006-01"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type auditRecorder interface {
	Record(ctx context.Context, tx *gorm.DB, input audit.RecordInput) (*models.AuditLog, error)
}

// Service defines the billing engine operations.
type Service interface {
	GenerateMonthlyBills(ctx context.Context, billingMonth string, asOf time.Time) (int, error)
	SweepOverdue(ctx context.Context, asOf time.Time) (int64, error)
	RecomputeBillStatus(ctx context.Context, tx *gorm.DB, billID uuid.UUID, now time.Time) error
	UpcomingBills(ctx context.Context, dueOn time.Time) ([]models.Bill, error)
	SetUtilityBillAmount(ctx context.Context, input SetAmountInput) (*models.Bill, error)

	Get(ctx context.Context, billID uuid.UUID) (*BillDetail, error)
	List(ctx context.Context, input ListBillsInput) (*BillList, error)
}

type service struct {
	repo      Repository
	props     properties.Repository
	audit     auditRecorder
	tx        txRunner
	logg      *logger.Logger
	dueDayCap int
}

// SetAmountInput updates a utility bill once the metered charge is known.
type SetAmountInput struct {
	BillID         uuid.UUID
	Amount         decimal.Decimal
	ActorUserID    uuid.UUID
	ActorIP        *string
	ActorUserAgent *string
}

// ListBillsInput selects a page of bills.
type ListBillsInput struct {
	Filters ListFilters
	pagination.Params
}

// BillList is a cursor page of bills.
type BillList struct {
	Items  []models.Bill `json:"items"`
	Cursor string        `json:"cursor"`
}

// BillDetail is a bill with its payment-derived fields.
type BillDetail struct {
	models.Bill
	AmountPaid      decimal.Decimal `json:"amount_paid"`
	AmountRemaining decimal.Decimal `json:"amount_remaining"`
	IsOverdue       bool            `json:"is_overdue"`
}

// ServiceParams bundles the dependencies required to build a billing service.
type ServiceParams struct {
	Repo       Repository
	Properties properties.Repository
	Audit      auditRecorder
	Tx         txRunner
	Logger     *logger.Logger
	Config     config.BillingConfig
}

// NewService constructs a billing engine service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("billing repository is required")
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
	dueDayCap := params.Config.DueDayCap
	if dueDayCap <= 0 || dueDayCap > 28 {
		dueDayCap = 28
	}
	return &service{
		repo:      params.Repo,
		props:     params.Properties,
		audit:     params.Audit,
		tx:        params.Tx,
		logg:      params.Logger,
		dueDayCap: dueDayCap,
	}, nil
}

// GenerateMonthlyBills creates the rent bill plus one zero-amount bill per
// chargeable unit utility for every contract covering asOf. Generation is
// get-or-create keyed on (contract, month, utility), so re-runs fill gaps
// without duplicating. Each contract runs in its own transaction.
func (s *service) GenerateMonthlyBills(ctx context.Context, billingMonth string, asOf time.Time) (int, error) {
	month, err := time.Parse(BillingMonthLayout, billingMonth)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid billing month, want YYYY-MM")
	}

	contracts, err := s.repo.ListActiveContractsCovering(ctx, asOf)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list active contracts")
	}

	ctx = s.logg.WithBillingMonth(ctx, billingMonth)
	created := 0
	for _, contract := range contracts {
		contractCtx := s.logg.WithContractID(ctx, contract.ID.String())
		n, err := s.generateForContract(contractCtx, contract, billingMonth, month)
		if err != nil {
			s.logg.Error(contractCtx, "bill generation failed for contract, continuing batch", err)
			continue
		}
		created += n
	}
	return created, nil
}

func (s *service) generateForContract(ctx context.Context, contract models.RentalContract, billingMonth string, month time.Time) (int, error) {
	created := 0
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		props := s.props.WithTx(tx)
		dueDate := s.dueDateFor(contract.PaymentDueDay, month)

		madeRent, err := s.ensureBill(ctx, repo, tx, &models.Bill{
			ID:           uuid.New(),
			ContractID:   contract.ID,
			Amount:       contract.RentAmountAtContract,
			BillingMonth: billingMonth,
			DueDate:      dueDate,
			Status:       enums.BillStatusPending,
		})
		if err != nil {
			return err
		}
		if madeRent {
			created++
		}

		utilities, err := props.ListUnitUtilities(ctx, contract.UnitID)
		if err != nil {
			return fmt.Errorf("list unit utilities: %w", err)
		}
		for _, utility := range utilities {
			if utility.IsIncludedInRent {
				continue
			}
			utilityTypeID := utility.UtilityTypeID
			made, err := s.ensureBill(ctx, repo, tx, &models.Bill{
				ID:            uuid.New(),
				ContractID:    contract.ID,
				UtilityTypeID: &utilityTypeID,
				Amount:        decimal.Zero,
				BillingMonth:  billingMonth,
				DueDate:       dueDate,
				Status:        enums.BillStatusPending,
			})
			if err != nil {
				return err
			}
			if made {
				created++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}

// ensureBill is the get-or-create step. A unique violation means a concurrent
// generator won the insert, which counts as already existing.
func (s *service) ensureBill(ctx context.Context, repo Repository, tx *gorm.DB, bill *models.Bill) (bool, error) {
	_, err := repo.FindByPeriod(ctx, bill.ContractID, bill.BillingMonth, bill.UtilityTypeID)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, fmt.Errorf("find bill by period: %w", err)
	}

	if err := repo.Create(ctx, bill); err != nil {
		if pkgdb.IsUniqueViolation(err, "idx_bill_period") {
			return false, nil
		}
		return false, fmt.Errorf("create bill: %w", err)
	}

	if _, err := s.audit.Record(ctx, tx, audit.RecordInput{
		EntityType: audit.EntityBill,
		EntityID:   bill.ID,
		Action:     enums.AuditActionCreate,
		Data:       billSnapshot(bill),
	}); err != nil {
		return false, err
	}
	return true, nil
}

func (s *service) dueDateFor(paymentDueDay int, month time.Time) time.Time {
	day := paymentDueDay
	if day > s.dueDayCap {
		day = s.dueDayCap
	}
	if day < 1 {
		day = 1
	}
	return time.Date(month.Year(), month.Month(), day, 0, 0, 0, 0, time.UTC)
}

// SweepOverdue bulk-marks pending bills past their due date. One UPDATE, no
// per-row loop; re-running is a no-op.
func (s *service) SweepOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	count, err := s.repo.MarkOverdueBefore(ctx, asOf)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark overdue bills")
	}
	return count, nil
}

// RecomputeBillStatus re-derives a bill's status from the sum of succeeded
// payments, inside the caller's transaction.
func (s *service) RecomputeBillStatus(ctx context.Context, tx *gorm.DB, billID uuid.UUID, now time.Time) error {
	repo := s.repo.WithTx(tx)

	bill, err := repo.FindByIDForUpdate(ctx, billID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "bill not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load bill")
	}

	paid, err := repo.SumSucceededPayments(ctx, billID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum succeeded payments")
	}

	status, paidOn := deriveStatus(bill, paid, now)
	if status == bill.Status {
		return nil
	}

	updates := map[string]any{"status": status, "paid_on": paidOn}
	if err := repo.Update(ctx, billID, updates); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update bill status")
	}
	return nil
}

func deriveStatus(bill *models.Bill, paid decimal.Decimal, now time.Time) (enums.BillStatus, *time.Time) {
	switch {
	case paid.GreaterThanOrEqual(bill.Amount) && bill.Amount.GreaterThan(decimal.Zero):
		if bill.Status == enums.BillStatusPaid {
			return enums.BillStatusPaid, bill.PaidOn
		}
		ts := now.UTC()
		return enums.BillStatusPaid, &ts
	case paid.GreaterThan(decimal.Zero):
		return enums.BillStatusPartial, nil
	default:
		// A zero sum only restores pending after a downward recompute
		// (refund). An unpaid overdue bill keeps its overdue mark.
		if bill.Status == enums.BillStatusOverdue {
			return enums.BillStatusOverdue, nil
		}
		return enums.BillStatusPending, nil
	}
}

// UpcomingBills returns unpaid bills due on the given day, for reminders.
func (s *service) UpcomingBills(ctx context.Context, dueOn time.Time) ([]models.Bill, error) {
	rows, err := s.repo.ListDueOn(ctx, dueOn)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list bills due")
	}
	return rows, nil
}

// SetUtilityBillAmount fills in a metered utility charge once the landlord
// knows it. Paid bills are immutable.
func (s *service) SetUtilityBillAmount(ctx context.Context, input SetAmountInput) (*models.Bill, error) {
	if input.BillID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bill id required")
	}
	if input.Amount.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount cannot be negative")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	var bill *models.Bill
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		var err error
		bill, err = repo.FindByIDForUpdate(ctx, input.BillID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "bill not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load bill")
		}
		if bill.IsRent() {
			return pkgerrors.New(pkgerrors.CodeValidation, "rent bill amounts are frozen at contract signing")
		}
		if bill.Status == enums.BillStatusPaid {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cannot change the amount of a paid bill")
		}

		if err := repo.Update(ctx, bill.ID, map[string]any{"amount": input.Amount}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update bill amount")
		}
		bill.Amount = input.Amount

		if err := s.RecomputeBillStatus(ctx, tx, bill.ID, time.Now().UTC()); err != nil {
			return err
		}

		_, err = s.audit.Record(ctx, tx, audit.RecordInput{
			EntityType:  audit.EntityBill,
			EntityID:    bill.ID,
			Action:      enums.AuditActionUpdate,
			Data:        billSnapshot(bill),
			ActorUserID: &input.ActorUserID,
			IPAddress:   input.ActorIP,
			UserAgent:   input.ActorUserAgent,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return bill, nil
}

func (s *service) Get(ctx context.Context, billID uuid.UUID) (*BillDetail, error) {
	if billID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bill id required")
	}

	bill, err := s.repo.FindByID(ctx, billID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "bill not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load bill")
	}

	paid, err := s.repo.SumSucceededPayments(ctx, billID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum succeeded payments")
	}

	remaining := bill.Amount.Sub(paid)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	return &BillDetail{
		Bill:            *bill,
		AmountPaid:      paid,
		AmountRemaining: remaining,
		IsOverdue:       bill.Status == enums.BillStatusOverdue,
	}, nil
}

func (s *service) List(ctx context.Context, input ListBillsInput) (*BillList, error) {
	cursor, err := pagination.ParseCursor(input.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse cursor")
	}
	if input.Filters.Status != nil && !input.Filters.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid bill status %q", *input.Filters.Status))
	}

	limit := pagination.NormalizeLimit(input.Limit)
	rows, err := s.repo.List(ctx, input.Filters, limit+1, cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list bills")
	}

	list := &BillList{Items: rows}
	if len(rows) > limit {
		list.Items = rows[:limit]
		last := list.Items[len(list.Items)-1]
		list.Cursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return list, nil
}

func billSnapshot(bill *models.Bill) map[string]any {
	snapshot := map[string]any{
		"contract_id":   bill.ContractID,
		"amount":        bill.Amount.String(),
		"billing_month": bill.BillingMonth,
		"due_date":      bill.DueDate.Format("2006-01-02"),
		"status":        bill.Status,
	}
	if bill.UtilityTypeID != nil {
		snapshot["utility_type_id"] = *bill.UtilityTypeID
	}
	return snapshot
}
