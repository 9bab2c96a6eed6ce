package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrInvestmentNotFound = errors.New("investment not found")

// InvestmentStatus tracks a commitment from pledge to completion.
type InvestmentStatus string

const (
	InvestmentStatusCommitted   InvestmentStatus = "committed"
	InvestmentStatusTransferred InvestmentStatus = "transferred"
	InvestmentStatusActive      InvestmentStatus = "active"
	InvestmentStatusCompleted   InvestmentStatus = "completed"
	InvestmentStatusCancelled   InvestmentStatus = "cancelled"
)

// Investment is one investor's capital commitment toward funding a loan.
// The sum of non-cancelled committed amounts never exceeds the loan's
// requested amount; the investment service serializes that check per loan.
type Investment struct {
	ID                uuid.UUID        `json:"id"`
	LoanID            uuid.UUID        `json:"loanId"`
	InvestorID        uuid.UUID        `json:"investorId"`
	CommittedAmount   decimal.Decimal  `json:"committedAmount"`
	TransferredAmount decimal.Decimal  `json:"transferredAmount"`
	Status            InvestmentStatus `json:"status"`
	CommitmentDate    time.Time        `json:"commitmentDate"`
	TransferDate      *time.Time       `json:"transferDate,omitempty"`
	CreatedBy         *uuid.UUID       `json:"createdBy,omitempty"`
	CreatedAt         time.Time        `json:"createdAt"`
	UpdatedAt         time.Time        `json:"updatedAt"`
}

func (i *Investment) Validate() error {
	if i.LoanID == uuid.Nil {
		return ErrLoanNotFound
	}
	if i.InvestorID == uuid.Nil {
		return ErrUserNotFound
	}
	if i.CommittedAmount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}
	return nil
}

// Counts reports whether the commitment occupies loan capacity.
func (i *Investment) Counts() bool {
	return i.Status != InvestmentStatusCancelled
}

// ParticipationPercentage is the investor's share of the requested amount.
func (i *Investment) ParticipationPercentage(requestedAmount decimal.Decimal) decimal.Decimal {
	if requestedAmount.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	return i.CommittedAmount.Div(requestedAmount).Mul(decimal.NewFromInt(100)).Round(1)
}

type InvestmentRepository interface {
	Create(ctx context.Context, investment *Investment) (*Investment, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Investment, error)
	GetByLoanID(ctx context.Context, loanID uuid.UUID) ([]*Investment, error)
	UpdateAmount(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (*Investment, error)
	Delete(ctx context.Context, id uuid.UUID) error
	CountByLoanID(ctx context.Context, loanID uuid.UUID) (int64, error)
}
