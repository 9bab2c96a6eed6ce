package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/proyecty/proyecty-backend/internal/domain"
	"github.com/proyecty/proyecty-backend/internal/websocket"
	"github.com/shopspring/decimal"
)

// InvestmentService is the investment book: it tracks capital commitments
// against a loan's requested amount. Capacity checks and funded-amount
// updates are serialized per loan so two concurrent commitments cannot both
// pass against a stale read.
type InvestmentService struct {
	investmentRepo domain.InvestmentRepository
	loanRepo       domain.LoanRepository
	userRepo       domain.UserRepository
	locker         *LoanLocker
	eventPublisher websocket.EventPublisher
}

// NewInvestmentService creates a new InvestmentService
func NewInvestmentService(
	investmentRepo domain.InvestmentRepository,
	loanRepo domain.LoanRepository,
	userRepo domain.UserRepository,
	locker *LoanLocker,
) *InvestmentService {
	return &InvestmentService{
		investmentRepo: investmentRepo,
		loanRepo:       loanRepo,
		userRepo:       userRepo,
		locker:         locker,
	}
}

// SetEventPublisher sets the publisher for realtime console updates
func (s *InvestmentService) SetEventPublisher(publisher websocket.EventPublisher) {
	s.eventPublisher = publisher
}

func (s *InvestmentService) publishEvent(event websocket.Event) {
	if s.eventPublisher != nil {
		s.eventPublisher.Publish(event)
	}
}

// AddInvestment commits an investor's capital to a loan. It fails with
// domain.ErrCapacityExceeded when the amount does not fit the remaining
// capacity, and never applies a partial mutation.
func (s *InvestmentService) AddInvestment(ctx context.Context, loanID, investorID uuid.UUID, amount decimal.Decimal) (*domain.Investment, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, domain.ErrInvalidAmount
	}

	unlock := s.locker.Lock(loanID)
	defer unlock()

	loan, err := s.loanRepo.GetByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if loan.Status.Closed() {
		return nil, domain.ErrLoanClosed
	}

	investor, err := s.userRepo.GetByID(ctx, investorID)
	if err != nil {
		return nil, err
	}

	if amount.GreaterThan(loan.RemainingCapacity()) {
		return nil, domain.ErrCapacityExceeded
	}

	now := time.Now().UTC()
	investment := &domain.Investment{
		ID:                uuid.New(),
		LoanID:            loan.ID,
		InvestorID:        investor.ID,
		CommittedAmount:   amount,
		TransferredAmount: decimal.Zero,
		Status:            domain.InvestmentStatusCommitted,
		CommitmentDate:    now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := investment.Validate(); err != nil {
		return nil, err
	}

	created, err := s.investmentRepo.Create(ctx, investment)
	if err != nil {
		return nil, err
	}

	loan.FundedAmount = loan.FundedAmount.Add(amount)
	if _, err := s.loanRepo.Update(ctx, loan); err != nil {
		return nil, err
	}

	s.publishEvent(websocket.InvestmentCreated(created))
	return created, nil
}

// EditInvestmentAmount changes a commitment, re-validating capacity against
// the sum of the other non-cancelled investments before applying.
func (s *InvestmentService) EditInvestmentAmount(ctx context.Context, investmentID uuid.UUID, newAmount decimal.Decimal) (*domain.Investment, error) {
	if newAmount.LessThanOrEqual(decimal.Zero) {
		return nil, domain.ErrInvalidAmount
	}

	investment, err := s.investmentRepo.GetByID(ctx, investmentID)
	if err != nil {
		return nil, err
	}

	unlock := s.locker.Lock(investment.LoanID)
	defer unlock()

	loan, err := s.loanRepo.GetByID(ctx, investment.LoanID)
	if err != nil {
		return nil, err
	}

	others, err := s.committedExcluding(ctx, loan.ID, investment.ID)
	if err != nil {
		return nil, err
	}
	if newAmount.GreaterThan(loan.RequestedAmount.Sub(others)) {
		return nil, domain.ErrCapacityExceeded
	}

	updated, err := s.investmentRepo.UpdateAmount(ctx, investment.ID, newAmount)
	if err != nil {
		return nil, err
	}

	loan.FundedAmount = others.Add(newAmount)
	if _, err := s.loanRepo.Update(ctx, loan); err != nil {
		return nil, err
	}

	s.publishEvent(websocket.InvestmentUpdated(updated))
	return updated, nil
}

// RemoveInvestment deletes a commitment and recomputes the loan's funded
// amount from the remaining non-cancelled investments. Full recomputation,
// not a decrement, so concurrent edits cannot leave drift behind.
func (s *InvestmentService) RemoveInvestment(ctx context.Context, investmentID uuid.UUID) error {
	investment, err := s.investmentRepo.GetByID(ctx, investmentID)
	if err != nil {
		return err
	}

	unlock := s.locker.Lock(investment.LoanID)
	defer unlock()

	loan, err := s.loanRepo.GetByID(ctx, investment.LoanID)
	if err != nil {
		return err
	}

	if err := s.investmentRepo.Delete(ctx, investment.ID); err != nil {
		return err
	}

	remaining, err := s.committedExcluding(ctx, loan.ID, investment.ID)
	if err != nil {
		return err
	}
	loan.FundedAmount = remaining
	if _, err := s.loanRepo.Update(ctx, loan); err != nil {
		return err
	}

	s.publishEvent(websocket.InvestmentDeleted(investment))
	return nil
}

// GetInvestmentsByLoan lists a loan's investments
func (s *InvestmentService) GetInvestmentsByLoan(ctx context.Context, loanID uuid.UUID) ([]*domain.Investment, error) {
	if _, err := s.loanRepo.GetByID(ctx, loanID); err != nil {
		return nil, err
	}
	return s.investmentRepo.GetByLoanID(ctx, loanID)
}

// committedExcluding sums non-cancelled committed amounts for a loan,
// skipping the given investment.
func (s *InvestmentService) committedExcluding(ctx context.Context, loanID, excludeID uuid.UUID) (decimal.Decimal, error) {
	investments, err := s.investmentRepo.GetByLoanID(ctx, loanID)
	if err != nil {
		return decimal.Zero, err
	}
	sum := decimal.Zero
	for _, inv := range investments {
		if inv.ID == excludeID || !inv.Counts() {
			continue
		}
		sum = sum.Add(inv.CommittedAmount)
	}
	return sum, nil
}
