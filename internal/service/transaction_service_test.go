package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/proyecty/proyecty-backend/internal/domain"
	"github.com/proyecty/proyecty-backend/internal/testutil"
	"github.com/shopspring/decimal"
)

func newTransactionFixture() (*TransactionService, *testutil.MockLoanRepository, *testutil.MockTransactionRepository) {
	transactionRepo := testutil.NewMockTransactionRepository()
	loanRepo := testutil.NewMockLoanRepository()
	userRepo := testutil.NewMockUserRepository()
	distribution := NewDistributionService(transactionRepo)
	svc := NewTransactionService(transactionRepo, loanRepo, userRepo, distribution, NewLoanLocker())
	return svc, loanRepo, transactionRepo
}

func fundedLoan(requested int64) *domain.Loan {
	loan := fundraisingLoan(requested)
	loan.Status = domain.LoanStatusFunded
	loan.FundedAmount = loan.RequestedAmount
	return loan
}

func activeLoan(requested int64) *domain.Loan {
	loan := fundedLoan(requested)
	loan.Status = domain.LoanStatusCurrent
	loan.DisbursedAmount = loan.RequestedAmount
	loan.CurrentBalance = loan.RequestedAmount
	return loan
}

func TestRecordTransaction_Disbursement(t *testing.T) {
	svc, loanRepo, _ := newTransactionFixture()

	loan := fundedLoan(50_000_000)
	loanRepo.AddLoan(loan)

	transaction, err := svc.RecordTransaction(context.Background(), loan.ID, RecordTransactionInput{
		Type:   domain.TransactionTypeLoanDisbursement,
		Amount: decimal.NewFromInt(50_000_000),
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	updated, _ := loanRepo.GetByID(context.Background(), loan.ID)
	if updated.Status != domain.LoanStatusDisbursed {
		t.Errorf("Expected status disbursed, got %s", updated.Status)
	}
	if !updated.CurrentBalance.Equal(decimal.NewFromInt(50_000_000)) {
		t.Errorf("Expected balance 50000000, got %s", updated.CurrentBalance.String())
	}
	if !updated.DisbursedAmount.Equal(decimal.NewFromInt(50_000_000)) {
		t.Errorf("Expected disbursed amount 50000000, got %s", updated.DisbursedAmount.String())
	}
	if updated.DisbursementDate == nil || updated.StartDate == nil || updated.MaturityDate == nil {
		t.Error("Expected disbursement, start, and maturity dates to be stamped")
	}

	if transaction.LoanBalanceAfter == nil || !transaction.LoanBalanceAfter.Equal(decimal.NewFromInt(50_000_000)) {
		t.Error("Expected loan balance after to be stamped on the entry")
	}
}

func TestRecordTransaction_InterestPayment_DistributesAndKeepsBalance(t *testing.T) {
	svc, loanRepo, transactionRepo := newTransactionFixture()

	loan := activeLoan(50_000_000)
	loanRepo.AddLoan(loan)

	payment, err := svc.RecordTransaction(context.Background(), loan.ID, RecordTransactionInput{
		Type:   domain.TransactionTypeInterestPayment,
		Amount: decimal.NewFromInt(1_000_000),
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	// Interest never touches the outstanding principal
	updated, _ := loanRepo.GetByID(context.Background(), loan.ID)
	if !updated.CurrentBalance.Equal(decimal.NewFromInt(50_000_000)) {
		t.Errorf("Expected balance unchanged, got %s", updated.CurrentBalance.String())
	}

	// The default breakdown is all interest
	if !payment.InterestPortion.Equal(payment.Amount) {
		t.Errorf("Expected interest portion %s, got %s", payment.Amount.String(), payment.InterestPortion.String())
	}

	// Rates are 6/24 annualized (0.5/2.0 monthly): 250,000 + 750,000
	ledger, _ := transactionRepo.GetByLoanID(context.Background(), loan.ID)
	if len(ledger) != 3 {
		t.Fatalf("Expected payment plus 2 distribution entries, got %d", len(ledger))
	}

	var commission, investorReturn *domain.Transaction
	for _, entry := range ledger {
		switch entry.Type {
		case domain.TransactionTypeProyectyCommission:
			commission = entry
		case domain.TransactionTypeInvestorReturn:
			investorReturn = entry
		}
	}
	if commission == nil || !commission.Amount.Equal(decimal.NewFromInt(250_000)) {
		t.Error("Expected a 250000 commission entry")
	}
	if investorReturn == nil || !investorReturn.Amount.Equal(decimal.NewFromInt(750_000)) {
		t.Error("Expected a 750000 investor return entry")
	}
}

func TestRecordTransaction_PrincipalPayment_ReducesBalance(t *testing.T) {
	svc, loanRepo, _ := newTransactionFixture()

	loan := activeLoan(50_000_000)
	loanRepo.AddLoan(loan)

	payment, err := svc.RecordTransaction(context.Background(), loan.ID, RecordTransactionInput{
		Type:   domain.TransactionTypePrincipalPayment,
		Amount: decimal.NewFromInt(20_000_000),
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	updated, _ := loanRepo.GetByID(context.Background(), loan.ID)
	if !updated.CurrentBalance.Equal(decimal.NewFromInt(30_000_000)) {
		t.Errorf("Expected balance 30000000, got %s", updated.CurrentBalance.String())
	}
	if updated.Status != domain.LoanStatusCurrent {
		t.Errorf("Expected status still current, got %s", updated.Status)
	}
	if payment.LoanBalanceAfter == nil || !payment.LoanBalanceAfter.Equal(decimal.NewFromInt(30_000_000)) {
		t.Error("Expected loan balance after 30000000 on the entry")
	}
}

func TestRecordTransaction_FullPayment_AutoPaidOff(t *testing.T) {
	svc, loanRepo, _ := newTransactionFixture()

	loan := activeLoan(50_000_000)
	loanRepo.AddLoan(loan)

	_, err := svc.RecordTransaction(context.Background(), loan.ID, RecordTransactionInput{
		Type:             domain.TransactionTypeFullPayment,
		Amount:           decimal.NewFromInt(51_000_000),
		PrincipalPortion: decimal.NewFromInt(50_000_000),
		InterestPortion:  decimal.NewFromInt(1_000_000),
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	updated, _ := loanRepo.GetByID(context.Background(), loan.ID)
	if !updated.CurrentBalance.IsZero() {
		t.Errorf("Expected zero balance, got %s", updated.CurrentBalance.String())
	}
	if updated.Status != domain.LoanStatusPaidOff {
		t.Errorf("Expected status paid_off, got %s", updated.Status)
	}
}

func TestRecordTransaction_OverpaymentClampsToZero(t *testing.T) {
	svc, loanRepo, _ := newTransactionFixture()

	loan := activeLoan(50_000_000)
	loanRepo.AddLoan(loan)

	_, err := svc.RecordTransaction(context.Background(), loan.ID, RecordTransactionInput{
		Type:   domain.TransactionTypePrincipalPayment,
		Amount: decimal.NewFromInt(60_000_000),
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	updated, _ := loanRepo.GetByID(context.Background(), loan.ID)
	if !updated.CurrentBalance.IsZero() {
		t.Errorf("Expected balance clamped to zero, got %s", updated.CurrentBalance.String())
	}
	if updated.Status != domain.LoanStatusPaidOff {
		t.Errorf("Expected status paid_off, got %s", updated.Status)
	}
}

func TestRecordTransaction_ClosedLoanRejected(t *testing.T) {
	svc, loanRepo, transactionRepo := newTransactionFixture()

	loan := activeLoan(50_000_000)
	loan.Status = domain.LoanStatusCancelled
	loanRepo.AddLoan(loan)

	_, err := svc.RecordTransaction(context.Background(), loan.ID, RecordTransactionInput{
		Type:   domain.TransactionTypeInterestPayment,
		Amount: decimal.NewFromInt(1_000_000),
	})
	if !errors.Is(err, domain.ErrLoanClosed) {
		t.Fatalf("Expected ErrLoanClosed, got %v", err)
	}
	if len(transactionRepo.Transactions) != 0 {
		t.Errorf("Expected no ledger writes, got %d", len(transactionRepo.Transactions))
	}
}

func TestRecordTransaction_DefaultedLoanStillAcceptsRecoveries(t *testing.T) {
	svc, loanRepo, _ := newTransactionFixture()

	loan := activeLoan(50_000_000)
	loan.Status = domain.LoanStatusDefaulted
	loanRepo.AddLoan(loan)

	_, err := svc.RecordTransaction(context.Background(), loan.ID, RecordTransactionInput{
		Type:   domain.TransactionTypePrincipalPayment,
		Amount: decimal.NewFromInt(5_000_000),
	})
	if err != nil {
		t.Fatalf("Expected recoveries on a defaulted loan to post, got %v", err)
	}

	updated, _ := loanRepo.GetByID(context.Background(), loan.ID)
	if !updated.CurrentBalance.Equal(decimal.NewFromInt(45_000_000)) {
		t.Errorf("Expected balance 45000000, got %s", updated.CurrentBalance.String())
	}
	if updated.Status != domain.LoanStatusDefaulted {
		t.Errorf("Expected status to remain defaulted, got %s", updated.Status)
	}
}

func TestRecordTransaction_InvalidAmount(t *testing.T) {
	svc, loanRepo, _ := newTransactionFixture()

	loan := activeLoan(50_000_000)
	loanRepo.AddLoan(loan)

	_, err := svc.RecordTransaction(context.Background(), loan.ID, RecordTransactionInput{
		Type:   domain.TransactionTypeInterestPayment,
		Amount: decimal.NewFromInt(-100),
	})
	if !errors.Is(err, domain.ErrInvalidAmount) {
		t.Errorf("Expected ErrInvalidAmount, got %v", err)
	}
}

func TestRecordTransaction_PortionBreakdownExceedsAmount(t *testing.T) {
	svc, loanRepo, _ := newTransactionFixture()

	loan := activeLoan(50_000_000)
	loanRepo.AddLoan(loan)

	_, err := svc.RecordTransaction(context.Background(), loan.ID, RecordTransactionInput{
		Type:             domain.TransactionTypeFullPayment,
		Amount:           decimal.NewFromInt(1_000_000),
		PrincipalPortion: decimal.NewFromInt(900_000),
		InterestPortion:  decimal.NewFromInt(200_000),
	})
	if !errors.Is(err, domain.ErrPortionBreakdownInvalid) {
		t.Errorf("Expected ErrPortionBreakdownInvalid, got %v", err)
	}
}

func TestRecalculateBalance_Idempotent(t *testing.T) {
	svc, loanRepo, _ := newTransactionFixture()

	loan := fundedLoan(50_000_000)
	loanRepo.AddLoan(loan)

	if _, err := svc.RecordTransaction(context.Background(), loan.ID, RecordTransactionInput{
		Type:   domain.TransactionTypeLoanDisbursement,
		Amount: decimal.NewFromInt(50_000_000),
	}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if _, err := svc.RecordTransaction(context.Background(), loan.ID, RecordTransactionInput{
		Type:   domain.TransactionTypePrincipalPayment,
		Amount: decimal.NewFromInt(10_000_000),
	}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	first, err := svc.RecalculateBalance(context.Background(), loan.ID)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	second, err := svc.RecalculateBalance(context.Background(), loan.ID)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	expected := decimal.NewFromInt(40_000_000)
	if !first.CurrentBalance.Equal(expected) {
		t.Errorf("Expected balance 40000000, got %s", first.CurrentBalance.String())
	}
	if !second.CurrentBalance.Equal(first.CurrentBalance) {
		t.Errorf("Recalculation is not idempotent: %s then %s", first.CurrentBalance.String(), second.CurrentBalance.String())
	}
	if !second.DisbursedAmount.Equal(decimal.NewFromInt(50_000_000)) {
		t.Errorf("Expected disbursed amount 50000000, got %s", second.DisbursedAmount.String())
	}
}

func TestCorrectTransaction_PreservesOriginalAndRecalculates(t *testing.T) {
	svc, loanRepo, _ := newTransactionFixture()

	loan := fundedLoan(50_000_000)
	loanRepo.AddLoan(loan)

	if _, err := svc.RecordTransaction(context.Background(), loan.ID, RecordTransactionInput{
		Type:   domain.TransactionTypeLoanDisbursement,
		Amount: decimal.NewFromInt(50_000_000),
	}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	payment, err := svc.RecordTransaction(context.Background(), loan.ID, RecordTransactionInput{
		Type:   domain.TransactionTypePrincipalPayment,
		Amount: decimal.NewFromInt(10_000_000),
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	editor := uuid.New()
	corrected, err := svc.CorrectTransaction(context.Background(), payment.ID, decimal.NewFromInt(15_000_000), "operator typo", &editor)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if !corrected.IsEdited {
		t.Error("Expected is_edited to be set")
	}
	if corrected.OriginalAmount == nil || !corrected.OriginalAmount.Equal(decimal.NewFromInt(10_000_000)) {
		t.Error("Expected original amount 10000000 to be preserved")
	}
	if corrected.EditReason == nil || *corrected.EditReason != "operator typo" {
		t.Error("Expected edit reason to be recorded")
	}
	if corrected.EditedBy == nil || *corrected.EditedBy != editor {
		t.Error("Expected editor to be recorded")
	}
	// The full-principal breakdown follows the corrected amount
	if !corrected.PrincipalPortion.Equal(decimal.NewFromInt(15_000_000)) {
		t.Errorf("Expected principal portion 15000000, got %s", corrected.PrincipalPortion.String())
	}

	updated, _ := loanRepo.GetByID(context.Background(), loan.ID)
	if !updated.CurrentBalance.Equal(decimal.NewFromInt(35_000_000)) {
		t.Errorf("Expected balance re-derived to 35000000, got %s", updated.CurrentBalance.String())
	}
}

func TestCorrectTransaction_SecondEditKeepsFirstOriginal(t *testing.T) {
	svc, loanRepo, _ := newTransactionFixture()

	loan := activeLoan(50_000_000)
	loanRepo.AddLoan(loan)

	payment, err := svc.RecordTransaction(context.Background(), loan.ID, RecordTransactionInput{
		Type:   domain.TransactionTypePrincipalPayment,
		Amount: decimal.NewFromInt(10_000_000),
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if _, err := svc.CorrectTransaction(context.Background(), payment.ID, decimal.NewFromInt(12_000_000), "first fix", nil); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	corrected, err := svc.CorrectTransaction(context.Background(), payment.ID, decimal.NewFromInt(11_000_000), "second fix", nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if corrected.OriginalAmount == nil || !corrected.OriginalAmount.Equal(decimal.NewFromInt(10_000_000)) {
		t.Errorf("Expected original amount to stay 10000000, got %v", corrected.OriginalAmount)
	}
}

func TestCorrectTransaction_ReasonRequired(t *testing.T) {
	svc, loanRepo, _ := newTransactionFixture()

	loan := activeLoan(50_000_000)
	loanRepo.AddLoan(loan)

	payment, err := svc.RecordTransaction(context.Background(), loan.ID, RecordTransactionInput{
		Type:   domain.TransactionTypeInterestPayment,
		Amount: decimal.NewFromInt(1_000_000),
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	_, err = svc.CorrectTransaction(context.Background(), payment.ID, decimal.NewFromInt(2_000_000), "", nil)
	if !errors.Is(err, domain.ErrEditReasonRequired) {
		t.Errorf("Expected ErrEditReasonRequired, got %v", err)
	}
}

func TestSuggestInterest(t *testing.T) {
	svc, loanRepo, _ := newTransactionFixture()

	// 2.0% monthly on a 50,000,000 balance suggests 1,000,000
	loan := activeLoan(50_000_000)
	loanRepo.AddLoan(loan)

	suggested, err := svc.SuggestInterest(context.Background(), loan.ID)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !suggested.Equal(decimal.NewFromInt(1_000_000)) {
		t.Errorf("Expected 1000000, got %s", suggested.String())
	}
}
