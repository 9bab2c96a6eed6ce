package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrLoanNotFound             = errors.New("loan not found")
	ErrLoanTermInvalid          = errors.New("term must be at least 1 month")
	ErrLoanPaymentDayInvalid    = errors.New("payment day must be between 1 and 28")
	ErrLoanStatusInvalid        = errors.New("unknown loan status")
	ErrLoanTransitionInvalid    = errors.New("status transition not allowed")
	ErrLoanBorrowerRequired     = errors.New("borrower is required")
	ErrLoanPropertyRequired     = errors.New("property is required")
	ErrLoanRateInvalid          = errors.New("interest rate must be positive")
	ErrLoanCommissionNegative   = errors.New("commission rate must not be negative")
)

// LoanStatus is the lifecycle state of a loan. Transitions are operator-driven:
// any non-terminal status may move to any other status, except that defaulted is
// only reachable from current or overdue.
type LoanStatus string

const (
	LoanStatusDraft       LoanStatus = "draft"
	LoanStatusReview      LoanStatus = "review"
	LoanStatusFundraising LoanStatus = "fundraising"
	LoanStatusFunded      LoanStatus = "funded"
	LoanStatusDisbursed   LoanStatus = "disbursed"
	LoanStatusCurrent     LoanStatus = "current"
	LoanStatusOverdue     LoanStatus = "overdue"
	LoanStatusPaidOff     LoanStatus = "paid_off"
	LoanStatusDefaulted   LoanStatus = "defaulted"
	LoanStatusCancelled   LoanStatus = "cancelled"
	LoanStatusDeleted     LoanStatus = "deleted"
)

// Valid reports whether s is one of the known statuses.
func (s LoanStatus) Valid() bool {
	switch s {
	case LoanStatusDraft, LoanStatusReview, LoanStatusFundraising, LoanStatusFunded,
		LoanStatusDisbursed, LoanStatusCurrent, LoanStatusOverdue, LoanStatusPaidOff,
		LoanStatusDefaulted, LoanStatusCancelled, LoanStatusDeleted:
		return true
	}
	return false
}

// Terminal reports whether a loan in this status accepts further transitions.
func (s LoanStatus) Terminal() bool {
	switch s {
	case LoanStatusPaidOff, LoanStatusDefaulted, LoanStatusCancelled, LoanStatusDeleted:
		return true
	}
	return false
}

// Closed reports whether the ledger must reject new postings for this status.
// Defaulted loans still accept postings: recoveries on a defaulted loan are real.
func (s LoanStatus) Closed() bool {
	return s == LoanStatusCancelled || s == LoanStatusDeleted
}

// Loan is the owning aggregate: all mutation of funded amount, balances, and
// status funnels through the services, never through callers writing fields.
// Rates are persisted annualized; the API works in monthly rates.
type Loan struct {
	ID                 uuid.UUID        `json:"id"`
	LoanCode           string           `json:"loanCode"`
	BorrowerID         uuid.UUID        `json:"borrowerId"`
	PropertyID         uuid.UUID        `json:"propertyId"`
	RequestedAmount    decimal.Decimal  `json:"requestedAmount"`
	FundedAmount       decimal.Decimal  `json:"fundedAmount"`
	DisbursedAmount    decimal.Decimal  `json:"disbursedAmount"`
	CurrentBalance     decimal.Decimal  `json:"currentBalance"`
	AnnualInterestRate decimal.Decimal  `json:"annualInterestRate"`
	CommissionRate     decimal.Decimal  `json:"commissionRate"`     // annualized platform commission
	InvestorReturnRate decimal.Decimal  `json:"investorReturnRate"` // annualized, total minus commission
	TermMonths         int32            `json:"termMonths"`
	PaymentDay         int32            `json:"paymentDay"`
	ApplicationDate    time.Time        `json:"applicationDate"`
	FundingDeadline    *time.Time       `json:"fundingDeadline,omitempty"`
	DisbursementDate   *time.Time       `json:"disbursementDate,omitempty"`
	StartDate          *time.Time       `json:"startDate,omitempty"`
	MaturityDate       *time.Time       `json:"maturityDate,omitempty"`
	Status             LoanStatus       `json:"status"`
	LTVRatio           *decimal.Decimal `json:"ltvRatio,omitempty"`
	Notes              *string          `json:"notes,omitempty"`
	CreatedBy          *uuid.UUID       `json:"createdBy,omitempty"`
	CreatedAt          time.Time        `json:"createdAt"`
	UpdatedAt          time.Time        `json:"updatedAt"`
}

func (l *Loan) Validate() error {
	if l.BorrowerID == uuid.Nil {
		return ErrLoanBorrowerRequired
	}
	if l.PropertyID == uuid.Nil {
		return ErrLoanPropertyRequired
	}
	if l.RequestedAmount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}
	if l.TermMonths < 1 {
		return ErrLoanTermInvalid
	}
	if l.PaymentDay < 1 || l.PaymentDay > 28 {
		return ErrLoanPaymentDayInvalid
	}
	if l.AnnualInterestRate.LessThanOrEqual(decimal.Zero) {
		return ErrLoanRateInvalid
	}
	if l.CommissionRate.IsNegative() {
		return ErrLoanCommissionNegative
	}
	if l.CommissionRate.GreaterThanOrEqual(l.AnnualInterestRate) {
		return ErrRateConfiguration
	}
	if !l.Status.Valid() {
		return ErrLoanStatusInvalid
	}
	return nil
}

// RemainingCapacity returns how much of the requested amount is still open to
// investor commitments.
func (l *Loan) RemainingCapacity() decimal.Decimal {
	return l.RequestedAmount.Sub(l.FundedAmount)
}

// CanTransitionTo validates a status change without applying it.
func (l *Loan) CanTransitionTo(next LoanStatus) error {
	if !next.Valid() {
		return ErrLoanStatusInvalid
	}
	if l.Status.Terminal() {
		return ErrLoanTransitionInvalid
	}
	if next == LoanStatusDefaulted && l.Status != LoanStatusCurrent && l.Status != LoanStatusOverdue {
		return ErrLoanTransitionInvalid
	}
	return nil
}

// ApplyStatus applies a validated transition. Entering disbursed is the only
// transition with attached business logic: an unset disbursed amount and
// balance are initialized to the full requested principal.
func (l *Loan) ApplyStatus(next LoanStatus) error {
	if err := l.CanTransitionTo(next); err != nil {
		return err
	}
	l.Status = next
	if next == LoanStatusDisbursed {
		if l.DisbursedAmount.IsZero() {
			l.DisbursedAmount = l.RequestedAmount
		}
		if l.CurrentBalance.IsZero() {
			l.CurrentBalance = l.RequestedAmount
		}
	}
	return nil
}

type LoanRepository interface {
	Create(ctx context.Context, loan *Loan) (*Loan, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Loan, error)
	GetByCode(ctx context.Context, code string) (*Loan, error)
	List(ctx context.Context, statuses []LoanStatus) ([]*Loan, error)
	Update(ctx context.Context, loan *Loan) (*Loan, error)
}
