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

type loanHandlerFixture struct {
	handler         *LoanHandler
	loanRepo        *testutil.MockLoanRepository
	userRepo        *testutil.MockUserRepository
	propertyRepo    *testutil.MockPropertyRepository
	transactionRepo *testutil.MockTransactionRepository
}

func newLoanHandlerFixture() *loanHandlerFixture {
	loanRepo := testutil.NewMockLoanRepository()
	userRepo := testutil.NewMockUserRepository()
	propertyRepo := testutil.NewMockPropertyRepository()
	investmentRepo := testutil.NewMockInvestmentRepository()
	transactionRepo := testutil.NewMockTransactionRepository()
	locker := service.NewLoanLocker()

	loanService := service.NewLoanService(loanRepo, propertyRepo, userRepo, investmentRepo, transactionRepo, locker)
	transactionService := service.NewTransactionService(transactionRepo, loanRepo, userRepo, service.NewDistributionService(transactionRepo), locker)

	return &loanHandlerFixture{
		handler:         NewLoanHandler(loanService, transactionService),
		loanRepo:        loanRepo,
		userRepo:        userRepo,
		propertyRepo:    propertyRepo,
		transactionRepo: transactionRepo,
	}
}

func (f *loanHandlerFixture) addBorrower() *domain.User {
	u := &domain.User{
		ID:       uuid.New(),
		Email:    "borrower@example.com",
		FullName: "Test Borrower",
		UserType: domain.UserTypeBorrower,
		IsActive: true,
	}
	f.userRepo.AddUser(u)
	return u
}

func (f *loanHandlerFixture) addProperty() *domain.Property {
	p := &domain.Property{
		ID:           uuid.New(),
		PropertyName: "Casa Laureles",
		PropertyType: "house",
		Address:      "Cra 70 #12-34",
		City:         "Medellin",
		Department:   "Antioquia",
	}
	f.propertyRepo.AddProperty(p)
	return p
}

func (f *loanHandlerFixture) addLoan(status domain.LoanStatus) *domain.Loan {
	loan := &domain.Loan{
		ID:                 uuid.New(),
		LoanCode:           "LN-2026-AAAA1111",
		BorrowerID:         uuid.New(),
		PropertyID:         uuid.New(),
		RequestedAmount:    decimal.NewFromInt(100_000_000),
		FundedAmount:       decimal.Zero,
		CurrentBalance:     decimal.Zero,
		AnnualInterestRate: decimal.NewFromInt(24),
		CommissionRate:     decimal.NewFromInt(6),
		InvestorReturnRate: decimal.NewFromInt(18),
		TermMonths:         12,
		PaymentDay:         15,
		Status:             status,
	}
	f.loanRepo.AddLoan(loan)
	return loan
}

func TestCreateLoan_Success(t *testing.T) {
	e := echo.New()
	f := newLoanHandlerFixture()
	borrower := f.addBorrower()
	property := f.addProperty()

	reqBody := `{
		"borrowerId": "` + borrower.ID.String() + `",
		"propertyId": "` + property.ID.String() + `",
		"requestedAmount": "150000000",
		"monthlyInterestRate": "2.00",
		"monthlyCommissionRate": "0.50",
		"termMonths": 12,
		"paymentDay": 15
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/loans", strings.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := f.handler.CreateLoan(c)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if rec.Code != http.StatusCreated {
		t.Errorf("Expected status 201, got %d", rec.Code)
	}

	var response LoanResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}

	if response.Status != string(domain.LoanStatusDraft) {
		t.Errorf("Expected status draft, got %s", response.Status)
	}
	// 2.00 monthly annualizes to 24; the response echoes the monthly rate
	if response.MonthlyInterestRate != "2.00" {
		t.Errorf("Expected monthly interest rate '2.00', got %s", response.MonthlyInterestRate)
	}
	if response.AnnualInterestRate != "24.00" {
		t.Errorf("Expected annual interest rate '24.00', got %s", response.AnnualInterestRate)
	}
	if response.MonthlyInvestorRate != "1.50" {
		t.Errorf("Expected monthly investor rate '1.50', got %s", response.MonthlyInvestorRate)
	}
	if !strings.HasPrefix(response.LoanCode, "LN-") {
		t.Errorf("Expected generated loan code, got %s", response.LoanCode)
	}
}

func TestCreateLoan_UnknownBorrower(t *testing.T) {
	e := echo.New()
	f := newLoanHandlerFixture()
	property := f.addProperty()

	reqBody := `{
		"borrowerId": "` + uuid.New().String() + `",
		"propertyId": "` + property.ID.String() + `",
		"requestedAmount": "150000000",
		"monthlyInterestRate": "2.00",
		"monthlyCommissionRate": "0.50",
		"termMonths": 12,
		"paymentDay": 15
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/loans", strings.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := f.handler.CreateLoan(c)
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
	if len(problem.Errors) == 0 || problem.Errors[0].Field != "borrowerId" {
		t.Errorf("Expected field error on borrowerId, got %+v", problem.Errors)
	}
}

func TestCreateLoan_CommissionAtOrAboveTotalRate(t *testing.T) {
	e := echo.New()
	f := newLoanHandlerFixture()
	borrower := f.addBorrower()
	property := f.addProperty()

	reqBody := `{
		"borrowerId": "` + borrower.ID.String() + `",
		"propertyId": "` + property.ID.String() + `",
		"requestedAmount": "150000000",
		"monthlyInterestRate": "2.00",
		"monthlyCommissionRate": "2.00",
		"termMonths": 12,
		"paymentDay": 15
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/loans", strings.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := f.handler.CreateLoan(c)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}
}

func TestCreateLoan_InvalidUUID(t *testing.T) {
	e := echo.New()
	f := newLoanHandlerFixture()

	reqBody := `{"borrowerId": "not-a-uuid", "propertyId": "also-bad"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/loans", strings.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := f.handler.CreateLoan(c)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}
}

func TestGetLoans_FiltersByStatus(t *testing.T) {
	e := echo.New()
	f := newLoanHandlerFixture()
	f.addLoan(domain.LoanStatusFundraising)
	f.addLoan(domain.LoanStatusCurrent)
	f.addLoan(domain.LoanStatusDraft)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/loans?status=fundraising,current", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := f.handler.GetLoans(c)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	var response []LoanResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if len(response) != 2 {
		t.Errorf("Expected 2 loans, got %d", len(response))
	}
}

func TestGetLoans_UnknownStatus(t *testing.T) {
	e := echo.New()
	f := newLoanHandlerFixture()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/loans?status=bogus", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := f.handler.GetLoans(c)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}
}

func TestGetLoan_NotFound(t *testing.T) {
	e := echo.New()
	f := newLoanHandlerFixture()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/loans/"+uuid.New().String(), nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	err := f.handler.GetLoan(c)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rec.Code)
	}

	var problem ProblemDetails
	if err := json.Unmarshal(rec.Body.Bytes(), &problem); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if problem.Type != ErrorTypeNotFound {
		t.Errorf("Expected problem type %s, got %s", ErrorTypeNotFound, problem.Type)
	}
}

func TestChangeStatus_Success(t *testing.T) {
	e := echo.New()
	f := newLoanHandlerFixture()
	loan := f.addLoan(domain.LoanStatusDraft)

	reqBody := `{"status": "review"}`
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/loans/"+loan.ID.String()+"/status", strings.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(loan.ID.String())

	err := f.handler.ChangeStatus(c)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}

	var response LoanResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if response.Status != "review" {
		t.Errorf("Expected status review, got %s", response.Status)
	}
}

func TestChangeStatus_TerminalLoanConflicts(t *testing.T) {
	e := echo.New()
	f := newLoanHandlerFixture()
	loan := f.addLoan(domain.LoanStatusPaidOff)

	reqBody := `{"status": "current"}`
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/loans/"+loan.ID.String()+"/status", strings.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(loan.ID.String())

	err := f.handler.ChangeStatus(c)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if rec.Code != http.StatusConflict {
		t.Errorf("Expected status 409, got %d", rec.Code)
	}

	var problem ProblemDetails
	if err := json.Unmarshal(rec.Body.Bytes(), &problem); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if problem.Type != ErrorTypeConflict {
		t.Errorf("Expected problem type %s, got %s", ErrorTypeConflict, problem.Type)
	}
}

func TestChangeStatus_UnknownStatus(t *testing.T) {
	e := echo.New()
	f := newLoanHandlerFixture()
	loan := f.addLoan(domain.LoanStatusDraft)

	reqBody := `{"status": "bogus"}`
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/loans/"+loan.ID.String()+"/status", strings.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(loan.ID.String())

	err := f.handler.ChangeStatus(c)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}
}

func TestGetSuggestedInterest(t *testing.T) {
	e := echo.New()
	f := newLoanHandlerFixture()
	loan := f.addLoan(domain.LoanStatusCurrent)
	loan.CurrentBalance = decimal.NewFromInt(100_000_000)
	f.loanRepo.AddLoan(loan)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/loans/"+loan.ID.String()+"/suggested-interest", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(loan.ID.String())

	err := f.handler.GetSuggestedInterest(c)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	var response SuggestedInterestResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}

	// 24% annual on 100,000,000 is 2,000,000 per month
	if response.SuggestedInterest != "2000000.00" {
		t.Errorf("Expected suggested interest '2000000.00', got %s", response.SuggestedInterest)
	}
}

func TestRecalculateBalance_NotFound(t *testing.T) {
	e := echo.New()
	f := newLoanHandlerFixture()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/loans/"+uuid.New().String()+"/recalculate", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	err := f.handler.RecalculateBalance(c)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rec.Code)
	}
}
