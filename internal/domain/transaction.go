package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrTransactionNotFound       = errors.New("transaction not found")
	ErrTransactionTypeInvalid    = errors.New("unknown transaction type")
	ErrTransactionStatusInvalid  = errors.New("unknown transaction status")
	ErrPortionBreakdownInvalid   = errors.New("portion breakdown exceeds transaction amount")
	ErrEditReasonRequired        = errors.New("an edit reason is required to correct a transaction")
	ErrTransactionLoanIDRequired = errors.New("transaction must reference a loan")
)

// TransactionType enumerates every kind of money movement the ledger records.
type TransactionType string

const (
	TransactionTypeInvestorDeposit    TransactionType = "investor_deposit"
	TransactionTypeLoanDisbursement   TransactionType = "loan_disbursement"
	TransactionTypeInterestPayment    TransactionType = "interest_payment"
	TransactionTypePrincipalPayment   TransactionType = "principal_payment"
	TransactionTypeFullPayment        TransactionType = "full_payment"
	TransactionTypeLateFee            TransactionType = "late_fee"
	TransactionTypeInvestorReturn     TransactionType = "investor_return"
	TransactionTypeCapitalReturn      TransactionType = "capital_return"
	TransactionTypeProyectyCommission TransactionType = "proyecty_commission"
	TransactionTypeAdjustment         TransactionType = "adjustment"
	TransactionTypeRefund             TransactionType = "refund"
)

// Valid reports whether t is one of the known types.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeInvestorDeposit, TransactionTypeLoanDisbursement,
		TransactionTypeInterestPayment, TransactionTypePrincipalPayment,
		TransactionTypeFullPayment, TransactionTypeLateFee,
		TransactionTypeInvestorReturn, TransactionTypeCapitalReturn,
		TransactionTypeProyectyCommission, TransactionTypeAdjustment,
		TransactionTypeRefund:
		return true
	}
	return false
}

// Payment reports whether entries of this type carry a borrower payment whose
// interest/principal/commission breakdown must stay within the amount.
func (t TransactionType) Payment() bool {
	switch t {
	case TransactionTypeInterestPayment, TransactionTypePrincipalPayment,
		TransactionTypeFullPayment, TransactionTypeLateFee:
		return true
	}
	return false
}

// TransactionStatus of a ledger entry.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusReversed  TransactionStatus = "reversed"
	TransactionStatusCancelled TransactionStatus = "cancelled"
)

func (s TransactionStatus) Valid() bool {
	switch s {
	case TransactionStatusPending, TransactionStatusCompleted,
		TransactionStatusReversed, TransactionStatusCancelled:
		return true
	}
	return false
}

// PaymentMethod values mirror what the console offers the operator.
const (
	PaymentMethodTransfer  = "transfer"
	PaymentMethodCash      = "cash"
	PaymentMethodCheck     = "check"
	PaymentMethodNequi     = "nequi"
	PaymentMethodDaviplata = "daviplata"
	PaymentMethodOther     = "other"
)

// Transaction is an immutable, append-only ledger entry tied to exactly one
// loan. The only sanctioned mutation is the correction flow, which preserves
// the original amount and records who edited it, when, and why.
type Transaction struct {
	ID                uuid.UUID         `json:"id"`
	TransactionCode   string            `json:"transactionCode"`
	LoanID            uuid.UUID         `json:"loanId"`
	InvestmentID      *uuid.UUID        `json:"investmentId,omitempty"`
	UserID            *uuid.UUID        `json:"userId,omitempty"`
	Type              TransactionType   `json:"transactionType"`
	Amount            decimal.Decimal   `json:"amount"`
	InterestPortion   decimal.Decimal   `json:"interestPortion"`
	PrincipalPortion  decimal.Decimal   `json:"principalPortion"`
	CommissionPortion decimal.Decimal   `json:"commissionPortion"`
	LoanBalanceAfter  *decimal.Decimal  `json:"loanBalanceAfter,omitempty"`
	PaymentMethod     *string           `json:"paymentMethod,omitempty"`
	PaymentReference  *string           `json:"paymentReference,omitempty"`
	PaymentDate       time.Time         `json:"paymentDate"`
	Status            TransactionStatus `json:"status"`
	Description       *string           `json:"description,omitempty"`
	ReceiptURL        *string           `json:"receiptUrl,omitempty"`
	IsEdited          bool              `json:"isEdited"`
	OriginalAmount    *decimal.Decimal  `json:"originalAmount,omitempty"`
	EditReason        *string           `json:"editReason,omitempty"`
	EditedAt          *time.Time        `json:"editedAt,omitempty"`
	EditedBy          *uuid.UUID        `json:"editedBy,omitempty"`
	CreatedBy         *uuid.UUID        `json:"createdBy,omitempty"`
	CreatedAt         time.Time         `json:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`
}

func (t *Transaction) Validate() error {
	if t.LoanID == uuid.Nil {
		return ErrTransactionLoanIDRequired
	}
	if !t.Type.Valid() {
		return ErrTransactionTypeInvalid
	}
	if !t.Status.Valid() {
		return ErrTransactionStatusInvalid
	}
	if t.Amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}
	if t.InterestPortion.IsNegative() || t.PrincipalPortion.IsNegative() || t.CommissionPortion.IsNegative() {
		return ErrPortionBreakdownInvalid
	}
	if t.Type.Payment() {
		portions := t.InterestPortion.Add(t.PrincipalPortion).Add(t.CommissionPortion)
		if portions.GreaterThan(t.Amount) {
			return ErrPortionBreakdownInvalid
		}
	}
	return nil
}

// TransactionFilter narrows global ledger listings.
type TransactionFilter struct {
	Type   *TransactionType
	Status *TransactionStatus
	UserID *uuid.UUID
}

// LedgerTotals aggregates completed payment portions for one loan.
type LedgerTotals struct {
	TotalInterestPaid  decimal.Decimal `json:"totalInterestPaid"`
	TotalPrincipalPaid decimal.Decimal `json:"totalPrincipalPaid"`
	TotalCommission    decimal.Decimal `json:"totalCommission"`
}

// TransactionRepository is the ledger store. Entries are appended, never
// deleted; per-loan listings are ordered by payment date with insertion order
// as the tie-break.
type TransactionRepository interface {
	Create(ctx context.Context, transaction *Transaction) (*Transaction, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error)
	GetByLoanID(ctx context.Context, loanID uuid.UUID) ([]*Transaction, error)
	List(ctx context.Context, filter TransactionFilter) ([]*Transaction, error)
	UpdateCorrection(ctx context.Context, transaction *Transaction) (*Transaction, error)
	UpdateReceiptURL(ctx context.Context, id uuid.UUID, receiptURL string) (*Transaction, error)
	SumPortionsByLoan(ctx context.Context, loanID uuid.UUID) (*LedgerTotals, error)
}
