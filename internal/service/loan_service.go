package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/proyecty/proyecty-backend/internal/domain"
	"github.com/proyecty/proyecty-backend/internal/util"
	"github.com/proyecty/proyecty-backend/internal/websocket"
	"github.com/shopspring/decimal"
)

// LoanService owns the loan aggregate: creation, lifecycle transitions, and
// the derived summary every console screen reads. Callers never write funded
// amounts or balances directly.
type LoanService struct {
	loanRepo        domain.LoanRepository
	propertyRepo    domain.PropertyRepository
	userRepo        domain.UserRepository
	investmentRepo  domain.InvestmentRepository
	transactionRepo domain.TransactionRepository
	locker          *LoanLocker
	eventPublisher  websocket.EventPublisher
}

// NewLoanService creates a new LoanService
func NewLoanService(
	loanRepo domain.LoanRepository,
	propertyRepo domain.PropertyRepository,
	userRepo domain.UserRepository,
	investmentRepo domain.InvestmentRepository,
	transactionRepo domain.TransactionRepository,
	locker *LoanLocker,
) *LoanService {
	return &LoanService{
		loanRepo:        loanRepo,
		propertyRepo:    propertyRepo,
		userRepo:        userRepo,
		investmentRepo:  investmentRepo,
		transactionRepo: transactionRepo,
		locker:          locker,
	}
}

// SetEventPublisher sets the publisher for realtime console updates
func (s *LoanService) SetEventPublisher(publisher websocket.EventPublisher) {
	s.eventPublisher = publisher
}

func (s *LoanService) publishEvent(event websocket.Event) {
	if s.eventPublisher != nil {
		s.eventPublisher.Publish(event)
	}
}

// CreateLoanInput carries the terms the operator enters. Rates are monthly,
// the way the console works; the service annualizes them for storage.
type CreateLoanInput struct {
	BorrowerID            uuid.UUID
	PropertyID            uuid.UUID
	RequestedAmount       decimal.Decimal
	MonthlyInterestRate   decimal.Decimal
	MonthlyCommissionRate decimal.Decimal
	TermMonths            int32
	PaymentDay            int32
	FundingDeadline       *time.Time
	Notes                 *string
	CreatedBy             *uuid.UUID
}

// CreateLoan validates terms, derives the investor rate and LTV, and creates
// the loan in draft with zero balances. Nothing is written on validation
// failure.
func (s *LoanService) CreateLoan(ctx context.Context, input CreateLoanInput) (*domain.Loan, error) {
	if input.RequestedAmount.LessThanOrEqual(decimal.Zero) {
		return nil, domain.ErrInvalidAmount
	}
	if input.MonthlyCommissionRate.GreaterThanOrEqual(input.MonthlyInterestRate) {
		return nil, domain.ErrRateConfiguration
	}

	borrower, err := s.userRepo.GetByID(ctx, input.BorrowerID)
	if err != nil {
		return nil, err
	}
	property, err := s.propertyRepo.GetByID(ctx, input.PropertyID)
	if err != nil {
		return nil, err
	}

	monthlyInvestorRate := input.MonthlyInterestRate.Sub(input.MonthlyCommissionRate)

	now := time.Now().UTC()
	loan := &domain.Loan{
		ID:                 uuid.New(),
		LoanCode:           util.NewLoanCode(),
		BorrowerID:         borrower.ID,
		PropertyID:         property.ID,
		RequestedAmount:    input.RequestedAmount,
		FundedAmount:       decimal.Zero,
		DisbursedAmount:    decimal.Zero,
		CurrentBalance:     decimal.Zero,
		AnnualInterestRate: MonthlyToAnnual(input.MonthlyInterestRate),
		CommissionRate:     MonthlyToAnnual(input.MonthlyCommissionRate),
		InvestorReturnRate: MonthlyToAnnual(monthlyInvestorRate),
		TermMonths:         input.TermMonths,
		PaymentDay:         input.PaymentDay,
		ApplicationDate:    now,
		FundingDeadline:    input.FundingDeadline,
		Status:             domain.LoanStatusDraft,
		Notes:              input.Notes,
		CreatedBy:          input.CreatedBy,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if property.AppraisalValue != nil {
		if ltv, ok := LTV(input.RequestedAmount, *property.AppraisalValue); ok {
			loan.LTVRatio = &ltv
		}
	}

	if err := loan.Validate(); err != nil {
		return nil, err
	}

	created, err := s.loanRepo.Create(ctx, loan)
	if err != nil {
		return nil, err
	}

	s.publishEvent(websocket.LoanCreated(created))
	return created, nil
}

// GetLoan retrieves a loan by ID
func (s *LoanService) GetLoan(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	return s.loanRepo.GetByID(ctx, id)
}

// ListLoans retrieves loans, optionally narrowed to the given statuses
func (s *LoanService) ListLoans(ctx context.Context, statuses []domain.LoanStatus) ([]*domain.Loan, error) {
	return s.loanRepo.List(ctx, statuses)
}

// ChangeStatus applies an operator-driven lifecycle transition. Entering
// disbursed initializes the disbursed amount and outstanding balance to the
// requested principal when unset, and stamps the disbursement, start, and
// maturity dates.
func (s *LoanService) ChangeStatus(ctx context.Context, loanID uuid.UUID, next domain.LoanStatus) (*domain.Loan, error) {
	unlock := s.locker.Lock(loanID)
	defer unlock()

	loan, err := s.loanRepo.GetByID(ctx, loanID)
	if err != nil {
		return nil, err
	}

	if err := loan.ApplyStatus(next); err != nil {
		return nil, err
	}

	if next == domain.LoanStatusDisbursed && loan.DisbursementDate == nil {
		now := time.Now().UTC()
		maturity := util.MaturityDate(now, int(loan.TermMonths), int(loan.PaymentDay))
		loan.DisbursementDate = &now
		loan.StartDate = &now
		loan.MaturityDate = &maturity
	}

	updated, err := s.loanRepo.Update(ctx, loan)
	if err != nil {
		return nil, err
	}

	s.publishEvent(websocket.LoanUpdated(updated))
	return updated, nil
}

// LoanSummary is the derived read model behind the loan detail screen.
type LoanSummary struct {
	Loan                  *domain.Loan         `json:"loan"`
	BorrowerName          string               `json:"borrowerName"`
	PropertyName          string               `json:"propertyName"`
	FundingProgress       decimal.Decimal      `json:"fundingProgress"`
	LTVRatio              *decimal.Decimal     `json:"ltvRatio,omitempty"`
	MonthlyInterestRate   decimal.Decimal      `json:"monthlyInterestRate"`
	MonthlyCommissionRate decimal.Decimal      `json:"monthlyCommissionRate"`
	MonthlyInvestorRate   decimal.Decimal      `json:"monthlyInvestorRate"`
	AnnualInterestRate    decimal.Decimal      `json:"annualInterestRate"`
	InvestorCount         int64                `json:"investorCount"`
	Totals                *domain.LedgerTotals `json:"totals"`
}

// GetLoanSummary assembles the balance, funding progress, LTV, and rates for
// one loan.
func (s *LoanService) GetLoanSummary(ctx context.Context, loanID uuid.UUID) (*LoanSummary, error) {
	loan, err := s.loanRepo.GetByID(ctx, loanID)
	if err != nil {
		return nil, err
	}

	borrower, err := s.userRepo.GetByID(ctx, loan.BorrowerID)
	if err != nil {
		return nil, err
	}
	property, err := s.propertyRepo.GetByID(ctx, loan.PropertyID)
	if err != nil {
		return nil, err
	}

	investorCount, err := s.investmentRepo.CountByLoanID(ctx, loan.ID)
	if err != nil {
		return nil, err
	}
	totals, err := s.transactionRepo.SumPortionsByLoan(ctx, loan.ID)
	if err != nil {
		return nil, err
	}

	return &LoanSummary{
		Loan:                  loan,
		BorrowerName:          borrower.FullName,
		PropertyName:          property.PropertyName,
		FundingProgress:       FundingProgress(loan.FundedAmount, loan.RequestedAmount),
		LTVRatio:              loan.LTVRatio,
		MonthlyInterestRate:   AnnualToMonthly(loan.AnnualInterestRate).Round(2),
		MonthlyCommissionRate: AnnualToMonthly(loan.CommissionRate).Round(2),
		MonthlyInvestorRate:   AnnualToMonthly(loan.InvestorReturnRate).Round(2),
		AnnualInterestRate:    loan.AnnualInterestRate,
		InvestorCount:         investorCount,
		Totals:                totals,
	}, nil
}
