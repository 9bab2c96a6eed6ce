package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/proyecty/proyecty-backend/internal/domain"
	"github.com/proyecty/proyecty-backend/internal/util"
	"github.com/shopspring/decimal"
)

// DistributionService splits a collected interest payment into a platform
// commission entry and an investor return entry.
type DistributionService struct {
	transactionRepo domain.TransactionRepository
}

// NewDistributionService creates a new DistributionService
func NewDistributionService(transactionRepo domain.TransactionRepository) *DistributionService {
	return &DistributionService{transactionRepo: transactionRepo}
}

// Distribute synthesizes the proyecty_commission and investor_return ledger
// entries for a committed interest payment. Non-interest entries and loans
// with a zero total rate produce no children. Each share is rounded half away
// from zero on its own; the two shares may drift from the collected amount by
// one unit of currency, which is accepted.
//
// The caller must have durably committed the payment before calling; the
// children need no ordering relative to each other.
func (s *DistributionService) Distribute(ctx context.Context, loan *domain.Loan, payment *domain.Transaction) ([]*domain.Transaction, error) {
	if payment.Type != domain.TransactionTypeInterestPayment {
		return nil, nil
	}
	if loan.AnnualInterestRate.IsZero() {
		return nil, nil
	}

	commissionShare := payment.Amount.Mul(loan.CommissionRate).Div(loan.AnnualInterestRate).Round(0)
	investorShare := payment.Amount.Mul(loan.InvestorReturnRate).Div(loan.AnnualInterestRate).Round(0)

	monthlyCommission := AnnualToMonthly(loan.CommissionRate).Round(2)
	monthlyInvestor := AnnualToMonthly(loan.InvestorReturnRate).Round(2)

	entries := make([]*domain.Transaction, 0, 2)

	if commissionShare.GreaterThan(decimal.Zero) {
		desc := fmt.Sprintf("Proyecty commission (%s%% monthly) on interest payment %s",
			monthlyCommission.StringFixed(2), payment.TransactionCode)
		entries = append(entries, s.childEntry(loan, payment, domain.TransactionTypeProyectyCommission, commissionShare, desc))
	}
	if investorShare.GreaterThan(decimal.Zero) {
		desc := fmt.Sprintf("Investor return (%s%% monthly) on interest payment %s",
			monthlyInvestor.StringFixed(2), payment.TransactionCode)
		entries = append(entries, s.childEntry(loan, payment, domain.TransactionTypeInvestorReturn, investorShare, desc))
	}

	created := make([]*domain.Transaction, 0, len(entries))
	for _, entry := range entries {
		saved, err := s.transactionRepo.Create(ctx, entry)
		if err != nil {
			return created, fmt.Errorf("failed to create %s entry: %w", entry.Type, err)
		}
		created = append(created, saved)
	}
	return created, nil
}

func (s *DistributionService) childEntry(loan *domain.Loan, payment *domain.Transaction, typ domain.TransactionType, amount decimal.Decimal, description string) *domain.Transaction {
	now := time.Now().UTC()
	return &domain.Transaction{
		ID:              uuid.New(),
		TransactionCode: util.NewTransactionCode(),
		LoanID:          loan.ID,
		Type:            typ,
		Amount:          amount,
		PaymentDate:     payment.PaymentDate,
		Status:          domain.TransactionStatusCompleted,
		Description:     &description,
		CreatedBy:       payment.CreatedBy,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}
