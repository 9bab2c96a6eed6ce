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

// TransactionService guards the ledger: it validates postings against the
// loan's lifecycle, appends entries, keeps the outstanding balance consistent
// with ledger history, and hands interest collections to the distribution
// engine. Balance updates are serialized per loan.
type TransactionService struct {
	transactionRepo domain.TransactionRepository
	loanRepo        domain.LoanRepository
	userRepo        domain.UserRepository
	distribution    *DistributionService
	locker          *LoanLocker
	eventPublisher  websocket.EventPublisher
}

// NewTransactionService creates a new TransactionService
func NewTransactionService(
	transactionRepo domain.TransactionRepository,
	loanRepo domain.LoanRepository,
	userRepo domain.UserRepository,
	distribution *DistributionService,
	locker *LoanLocker,
) *TransactionService {
	return &TransactionService{
		transactionRepo: transactionRepo,
		loanRepo:        loanRepo,
		userRepo:        userRepo,
		distribution:    distribution,
		locker:          locker,
	}
}

// SetEventPublisher sets the publisher for realtime console updates
func (s *TransactionService) SetEventPublisher(publisher websocket.EventPublisher) {
	s.eventPublisher = publisher
}

func (s *TransactionService) publishEvent(event websocket.Event) {
	if s.eventPublisher != nil {
		s.eventPublisher.Publish(event)
	}
}

// RecordTransactionInput carries one ledger posting from the operator.
type RecordTransactionInput struct {
	Type              domain.TransactionType
	Amount            decimal.Decimal
	InterestPortion   decimal.Decimal
	PrincipalPortion  decimal.Decimal
	CommissionPortion decimal.Decimal
	PaymentMethod     *string
	PaymentReference  *string
	PaymentDate       *time.Time
	Description       *string
	UserID            *uuid.UUID
	CreatedBy         *uuid.UUID
}

// RecordTransaction validates and appends one ledger entry, applies its
// balance effects, and synthesizes distribution children for interest
// collections. Validation happens before any write; a loan in cancelled or
// deleted rejects the posting with domain.ErrLoanClosed.
func (s *TransactionService) RecordTransaction(ctx context.Context, loanID uuid.UUID, input RecordTransactionInput) (*domain.Transaction, error) {
	now := time.Now().UTC()
	paymentDate := now
	if input.PaymentDate != nil {
		paymentDate = *input.PaymentDate
	}

	transaction := &domain.Transaction{
		ID:                uuid.New(),
		TransactionCode:   util.NewTransactionCode(),
		LoanID:            loanID,
		UserID:            input.UserID,
		Type:              input.Type,
		Amount:            input.Amount,
		InterestPortion:   input.InterestPortion,
		PrincipalPortion:  input.PrincipalPortion,
		CommissionPortion: input.CommissionPortion,
		PaymentMethod:     input.PaymentMethod,
		PaymentReference:  input.PaymentReference,
		PaymentDate:       paymentDate,
		Status:            domain.TransactionStatusCompleted,
		Description:       input.Description,
		CreatedBy:         input.CreatedBy,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	applyDefaultPortions(transaction)

	if err := transaction.Validate(); err != nil {
		return nil, err
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

	if err := s.applyBalanceEffects(loan, transaction); err != nil {
		return nil, err
	}
	balanceAfter := loan.CurrentBalance
	transaction.LoanBalanceAfter = &balanceAfter

	// Ledger append first: the loan record is only updated once the entry is
	// durably committed, and the distribution children only after that.
	created, err := s.transactionRepo.Create(ctx, transaction)
	if err != nil {
		return nil, err
	}

	if _, err := s.loanRepo.Update(ctx, loan); err != nil {
		return nil, err
	}

	if _, err := s.distribution.Distribute(ctx, loan, created); err != nil {
		return nil, err
	}

	s.publishEvent(websocket.TransactionCreated(created))
	return created, nil
}

// applyDefaultPortions fills the breakdown the console leaves implicit: a
// plain interest payment is all interest, a plain principal payment all
// principal.
func applyDefaultPortions(t *domain.Transaction) {
	switch t.Type {
	case domain.TransactionTypeInterestPayment:
		if t.InterestPortion.IsZero() && t.PrincipalPortion.IsZero() && t.CommissionPortion.IsZero() {
			t.InterestPortion = t.Amount
		}
	case domain.TransactionTypePrincipalPayment:
		if t.InterestPortion.IsZero() && t.PrincipalPortion.IsZero() && t.CommissionPortion.IsZero() {
			t.PrincipalPortion = t.Amount
		}
	}
}

// applyBalanceEffects mutates the in-memory loan according to the posting.
// Interest payments never touch the outstanding principal.
func (s *TransactionService) applyBalanceEffects(loan *domain.Loan, t *domain.Transaction) error {
	switch t.Type {
	case domain.TransactionTypeLoanDisbursement:
		loan.DisbursedAmount = t.Amount
		loan.CurrentBalance = loan.RequestedAmount
		if loan.Status != domain.LoanStatusDisbursed && !loan.Status.Terminal() {
			if err := loan.ApplyStatus(domain.LoanStatusDisbursed); err != nil {
				return err
			}
			if loan.DisbursementDate == nil {
				now := time.Now().UTC()
				maturity := util.MaturityDate(now, int(loan.TermMonths), int(loan.PaymentDay))
				loan.DisbursementDate = &now
				loan.StartDate = &now
				loan.MaturityDate = &maturity
			}
		}
	case domain.TransactionTypePrincipalPayment, domain.TransactionTypeFullPayment:
		newBalance := loan.CurrentBalance.Sub(t.PrincipalPortion)
		if newBalance.IsNegative() {
			newBalance = decimal.Zero
		}
		loan.CurrentBalance = newBalance
		if newBalance.IsZero() && !loan.Status.Terminal() {
			if err := loan.ApplyStatus(domain.LoanStatusPaidOff); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecalculateBalance re-derives the outstanding balance and disbursed amount
// from the full ledger. The derivation is idempotent: running it twice in a
// row yields the same loan state.
func (s *TransactionService) RecalculateBalance(ctx context.Context, loanID uuid.UUID) (*domain.Loan, error) {
	unlock := s.locker.Lock(loanID)
	defer unlock()

	loan, err := s.loanRepo.GetByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	return s.recalculateLocked(ctx, loan)
}

// recalculateLocked walks the ledger in payment-date order and replays
// balance effects. The caller must hold the loan's lock.
func (s *TransactionService) recalculateLocked(ctx context.Context, loan *domain.Loan) (*domain.Loan, error) {
	ledger, err := s.transactionRepo.GetByLoanID(ctx, loan.ID)
	if err != nil {
		return nil, err
	}

	balance := decimal.Zero
	disbursed := decimal.Zero
	for _, entry := range ledger {
		if entry.Status != domain.TransactionStatusCompleted {
			continue
		}
		switch entry.Type {
		case domain.TransactionTypeLoanDisbursement:
			balance = loan.RequestedAmount
			disbursed = entry.Amount
		case domain.TransactionTypePrincipalPayment, domain.TransactionTypeFullPayment:
			balance = balance.Sub(entry.PrincipalPortion)
			if balance.IsNegative() {
				balance = decimal.Zero
			}
		}
	}

	loan.CurrentBalance = balance
	loan.DisbursedAmount = disbursed
	return s.loanRepo.Update(ctx, loan)
}

// CorrectTransaction applies the one sanctioned mutation to a ledger entry:
// an amount correction that preserves the original amount and records the
// reason, editor, and timestamp, then re-derives the loan balance from the
// full ledger.
func (s *TransactionService) CorrectTransaction(ctx context.Context, transactionID uuid.UUID, newAmount decimal.Decimal, reason string, editedBy *uuid.UUID) (*domain.Transaction, error) {
	if newAmount.LessThanOrEqual(decimal.Zero) {
		return nil, domain.ErrInvalidAmount
	}
	if reason == "" {
		return nil, domain.ErrEditReasonRequired
	}

	transaction, err := s.transactionRepo.GetByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	unlock := s.locker.Lock(transaction.LoanID)
	defer unlock()

	loan, err := s.loanRepo.GetByID(ctx, transaction.LoanID)
	if err != nil {
		return nil, err
	}

	oldAmount := transaction.Amount
	if !transaction.IsEdited {
		// Only the first correction pins the original; later ones keep it.
		original := oldAmount
		transaction.OriginalAmount = &original
	}

	// Full-portion entries follow the amount; mixed breakdowns are the
	// operator's to restate.
	if transaction.InterestPortion.Equal(oldAmount) {
		transaction.InterestPortion = newAmount
	}
	if transaction.PrincipalPortion.Equal(oldAmount) {
		transaction.PrincipalPortion = newAmount
	}

	now := time.Now().UTC()
	transaction.Amount = newAmount
	transaction.IsEdited = true
	transaction.EditReason = &reason
	transaction.EditedAt = &now
	transaction.EditedBy = editedBy
	transaction.UpdatedAt = now

	if err := transaction.Validate(); err != nil {
		return nil, err
	}

	updated, err := s.transactionRepo.UpdateCorrection(ctx, transaction)
	if err != nil {
		return nil, err
	}

	if _, err := s.recalculateLocked(ctx, loan); err != nil {
		return nil, err
	}

	s.publishEvent(websocket.TransactionUpdated(updated))
	return updated, nil
}

// GetTransactionsByLoan lists a loan's ledger ordered by payment date, then
// insertion order.
func (s *TransactionService) GetTransactionsByLoan(ctx context.Context, loanID uuid.UUID) ([]*domain.Transaction, error) {
	if _, err := s.loanRepo.GetByID(ctx, loanID); err != nil {
		return nil, err
	}
	return s.transactionRepo.GetByLoanID(ctx, loanID)
}

// ListTransactions lists ledger entries across loans
func (s *TransactionService) ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]*domain.Transaction, error) {
	return s.transactionRepo.List(ctx, filter)
}

// SuggestInterest returns the interest due for one month on the current
// balance, rounded to whole currency units. The operator may still enter any
// amount.
func (s *TransactionService) SuggestInterest(ctx context.Context, loanID uuid.UUID) (decimal.Decimal, error) {
	loan, err := s.loanRepo.GetByID(ctx, loanID)
	if err != nil {
		return decimal.Zero, err
	}
	monthlyRate := AnnualToMonthly(loan.AnnualInterestRate)
	return SuggestedInterest(loan.CurrentBalance, monthlyRate), nil
}
