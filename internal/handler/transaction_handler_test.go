package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/proyecty/proyecty-backend/internal/domain"
	"github.com/proyecty/proyecty-backend/internal/service"
	"github.com/proyecty/proyecty-backend/internal/testutil"
	"github.com/shopspring/decimal"
)

type transactionHandlerFixture struct {
	handler         *TransactionHandler
	loanRepo        *testutil.MockLoanRepository
	transactionRepo *testutil.MockTransactionRepository
}

func newTransactionHandlerFixture() *transactionHandlerFixture {
	transactionRepo := testutil.NewMockTransactionRepository()
	loanRepo := testutil.NewMockLoanRepository()
	userRepo := testutil.NewMockUserRepository()
	svc := service.NewTransactionService(transactionRepo, loanRepo, userRepo, service.NewDistributionService(transactionRepo), service.NewLoanLocker())

	return &transactionHandlerFixture{
		handler:         NewTransactionHandler(svc),
		loanRepo:        loanRepo,
		transactionRepo: transactionRepo,
	}
}

func (f *transactionHandlerFixture) addCurrentLoan(balance int64) *domain.Loan {
	loan := &domain.Loan{
		ID:                 uuid.New(),
		LoanCode:           "LN-2026-DDDD4444",
		BorrowerID:         uuid.New(),
		PropertyID:         uuid.New(),
		RequestedAmount:    decimal.NewFromInt(balance),
		FundedAmount:       decimal.NewFromInt(balance),
		DisbursedAmount:    decimal.NewFromInt(balance),
		CurrentBalance:     decimal.NewFromInt(balance),
		AnnualInterestRate: decimal.NewFromInt(24),
		CommissionRate:     decimal.NewFromInt(6),
		InvestorReturnRate: decimal.NewFromInt(18),
		TermMonths:         12,
		PaymentDay:         15,
		Status:             domain.LoanStatusCurrent,
	}
	f.loanRepo.AddLoan(loan)
	return loan
}

func TestRecordTransaction_InterestPaymentDistributes(t *testing.T) {
	e := echo.New()
	f := newTransactionHandlerFixture()
	loan := f.addCurrentLoan(100_000_000)

	reqBody := `{"type": "interest_payment", "amount": "2000000"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/loans/"+loan.ID.String()+"/transactions", strings.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(loan.ID.String())

	err := f.handler.RecordTransaction(c)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if rec.Code != http.StatusCreated {
		t.Errorf("Expected status 201, got %d", rec.Code)
	}

	var response TransactionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	// A plain interest payment defaults its full amount into the interest portion
	if response.InterestPortion != "2000000.00" {
		t.Errorf("Expected interest portion '2000000.00', got %s", response.InterestPortion)
	}
	// Interest does not reduce the outstanding principal
	if response.LoanBalanceAfter == nil || *response.LoanBalanceAfter != "100000000.00" {
		t.Errorf("Expected balance after '100000000.00', got %v", response.LoanBalanceAfter)
	}

	// The distribution synthesizes commission (6/24) and investor return (18/24) children
	all, _ := f.transactionRepo.GetByLoanID(req.Context(), loan.ID)
	var commission, investorReturn *domain.Transaction
	for _, tx := range all {
		switch tx.Type {
		case domain.TransactionTypeProyectyCommission:
			commission = tx
		case domain.TransactionTypeInvestorReturn:
			investorReturn = tx
		}
	}
	if commission == nil || !commission.Amount.Equal(decimal.NewFromInt(500_000)) {
		t.Errorf("Expected commission child of 500000, got %+v", commission)
	}
	if investorReturn == nil || !investorReturn.Amount.Equal(decimal.NewFromInt(1_500_000)) {
		t.Errorf("Expected investor return child of 1500000, got %+v", investorReturn)
	}
}

func TestRecordTransaction_PrincipalReducesBalance(t *testing.T) {
	e := echo.New()
	f := newTransactionHandlerFixture()
	loan := f.addCurrentLoan(100_000_000)

	reqBody := `{"type": "principal_payment", "amount": "10000000"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/loans/"+loan.ID.String()+"/transactions", strings.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(loan.ID.String())

	err := f.handler.RecordTransaction(c)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if rec.Code != http.StatusCreated {
		t.Errorf("Expected status 201, got %d", rec.Code)
	}

	updated, _ := f.loanRepo.GetByID(req.Context(), loan.ID)
	if !updated.CurrentBalance.Equal(decimal.NewFromInt(90_000_000)) {
		t.Errorf("Expected balance 90000000, got %s", updated.CurrentBalance.String())
	}
}

func TestRecordTransaction_ClosedLoanConflicts(t *testing.T) {
	e := echo.New()
	f := newTransactionHandlerFixture()
	loan := f.addCurrentLoan(100_000_000)
	loan.Status = domain.LoanStatusCancelled
	f.loanRepo.AddLoan(loan)

	reqBody := `{"type": "interest_payment", "amount": "2000000"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/loans/"+loan.ID.String()+"/transactions", strings.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(loan.ID.String())

	err := f.handler.RecordTransaction(c)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if rec.Code != http.StatusConflict {
		t.Errorf("Expected status 409, got %d", rec.Code)
	}
}

func TestRecordTransaction_UnknownType(t *testing.T) {
	e := echo.New()
	f := newTransactionHandlerFixture()
	loan := f.addCurrentLoan(100_000_000)

	reqBody := `{"type": "bogus", "amount": "2000000"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/loans/"+loan.ID.String()+"/transactions", strings.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(loan.ID.String())

	err := f.handler.RecordTransaction(c)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}
}

func TestRecordTransaction_PortionBreakdownExceedsAmount(t *testing.T) {
	e := echo.New()
	f := newTransactionHandlerFixture()
	loan := f.addCurrentLoan(100_000_000)

	reqBody := `{
		"type": "interest_payment",
		"amount": "2000000",
		"interestPortion": "1500000",
		"principalPortion": "1000000"
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/loans/"+loan.ID.String()+"/transactions", strings.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(loan.ID.String())

	err := f.handler.RecordTransaction(c)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}
}

func TestListTransactions_UnknownTypeParam(t *testing.T) {
	e := echo.New()
	f := newTransactionHandlerFixture()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/transactions?type=bogus", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := f.handler.ListTransactions(c)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}
}

func TestCorrectTransaction_Success(t *testing.T) {
	e := echo.New()
	f := newTransactionHandlerFixture()
	loan := f.addCurrentLoan(100_000_000)

	original := &domain.Transaction{
		ID:               uuid.New(),
		TransactionCode:  "TXN-2026-EEEE5555",
		LoanID:           loan.ID,
		Type:             domain.TransactionTypeInterestPayment,
		Amount:           decimal.NewFromInt(2_000_000),
		InterestPortion:  decimal.NewFromInt(2_000_000),
		PrincipalPortion: decimal.Zero,
		Status:           domain.TransactionStatusCompleted,
	}
	f.transactionRepo.AddTransaction(original)

	reqBody := `{"amount": "2500000", "reason": "Borrower paid late fee on top"}`
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/transactions/"+original.ID.String(), strings.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(original.ID.String())

	err := f.handler.CorrectTransaction(c)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}

	var response TransactionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if response.Amount != "2500000.00" {
		t.Errorf("Expected amount '2500000.00', got %s", response.Amount)
	}
	if !response.IsEdited {
		t.Error("Expected transaction to be marked edited")
	}
	if response.OriginalAmount == nil || *response.OriginalAmount != "2000000.00" {
		t.Errorf("Expected original amount '2000000.00', got %v", response.OriginalAmount)
	}
}

func TestCorrectTransaction_ReasonRequired(t *testing.T) {
	e := echo.New()
	f := newTransactionHandlerFixture()
	loan := f.addCurrentLoan(100_000_000)

	original := &domain.Transaction{
		ID:              uuid.New(),
		TransactionCode: "TXN-2026-FFFF6666",
		LoanID:          loan.ID,
		Type:            domain.TransactionTypeInterestPayment,
		Amount:          decimal.NewFromInt(2_000_000),
		InterestPortion: decimal.NewFromInt(2_000_000),
		Status:          domain.TransactionStatusCompleted,
	}
	f.transactionRepo.AddTransaction(original)

	reqBody := `{"amount": "2500000", "reason": ""}`
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/transactions/"+original.ID.String(), strings.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(original.ID.String())

	err := f.handler.CorrectTransaction(c)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}

	var problem ProblemDetails
	if err := json.Unmarshal(rec.Body.Bytes(), &problem); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if len(problem.Errors) == 0 || problem.Errors[0].Field != "reason" {
		t.Errorf("Expected field error on reason, got %+v", problem.Errors)
	}
}

func TestCorrectTransaction_NotFound(t *testing.T) {
	e := echo.New()
	f := newTransactionHandlerFixture()

	reqBody := `{"amount": "2500000", "reason": "typo"}`
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/transactions/"+uuid.New().String(), strings.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	err := f.handler.CorrectTransaction(c)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rec.Code)
	}
}
