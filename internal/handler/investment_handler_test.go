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

type investmentHandlerFixture struct {
	handler        *InvestmentHandler
	loanRepo       *testutil.MockLoanRepository
	investmentRepo *testutil.MockInvestmentRepository
	userRepo       *testutil.MockUserRepository
}

func newInvestmentHandlerFixture() *investmentHandlerFixture {
	loanRepo := testutil.NewMockLoanRepository()
	investmentRepo := testutil.NewMockInvestmentRepository()
	userRepo := testutil.NewMockUserRepository()
	svc := service.NewInvestmentService(investmentRepo, loanRepo, userRepo, service.NewLoanLocker())

	return &investmentHandlerFixture{
		handler:        NewInvestmentHandler(svc),
		loanRepo:       loanRepo,
		investmentRepo: investmentRepo,
		userRepo:       userRepo,
	}
}

func (f *investmentHandlerFixture) addFundraisingLoan(requested int64) *domain.Loan {
	loan := &domain.Loan{
		ID:                 uuid.New(),
		LoanCode:           "LN-2026-BBBB2222",
		BorrowerID:         uuid.New(),
		PropertyID:         uuid.New(),
		RequestedAmount:    decimal.NewFromInt(requested),
		FundedAmount:       decimal.Zero,
		AnnualInterestRate: decimal.NewFromInt(24),
		CommissionRate:     decimal.NewFromInt(6),
		InvestorReturnRate: decimal.NewFromInt(18),
		TermMonths:         12,
		PaymentDay:         15,
		Status:             domain.LoanStatusFundraising,
	}
	f.loanRepo.AddLoan(loan)
	return loan
}

func (f *investmentHandlerFixture) addInvestor() *domain.User {
	u := &domain.User{
		ID:       uuid.New(),
		Email:    "investor@example.com",
		FullName: "Test Investor",
		UserType: domain.UserTypeInvestor,
		IsActive: true,
	}
	f.userRepo.AddUser(u)
	return u
}

func TestAddInvestment_Success(t *testing.T) {
	e := echo.New()
	f := newInvestmentHandlerFixture()
	loan := f.addFundraisingLoan(100_000_000)
	investor := f.addInvestor()

	reqBody := `{"investorId": "` + investor.ID.String() + `", "amount": "40000000"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/loans/"+loan.ID.String()+"/investments", strings.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(loan.ID.String())

	err := f.handler.AddInvestment(c)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if rec.Code != http.StatusCreated {
		t.Errorf("Expected status 201, got %d", rec.Code)
	}

	var response InvestmentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if response.CommittedAmount != "40000000.00" {
		t.Errorf("Expected committed amount '40000000.00', got %s", response.CommittedAmount)
	}
	if response.Status != string(domain.InvestmentStatusCommitted) {
		t.Errorf("Expected status committed, got %s", response.Status)
	}
}

func TestAddInvestment_ExceedsCapacity(t *testing.T) {
	e := echo.New()
	f := newInvestmentHandlerFixture()
	loan := f.addFundraisingLoan(100_000_000)
	investor := f.addInvestor()

	reqBody := `{"investorId": "` + investor.ID.String() + `", "amount": "100000001"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/loans/"+loan.ID.String()+"/investments", strings.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(loan.ID.String())

	err := f.handler.AddInvestment(c)
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

func TestAddInvestment_UnknownInvestor(t *testing.T) {
	e := echo.New()
	f := newInvestmentHandlerFixture()
	loan := f.addFundraisingLoan(100_000_000)

	reqBody := `{"investorId": "` + uuid.New().String() + `", "amount": "40000000"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/loans/"+loan.ID.String()+"/investments", strings.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(loan.ID.String())

	err := f.handler.AddInvestment(c)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}
}

func TestEditInvestment_Success(t *testing.T) {
	e := echo.New()
	f := newInvestmentHandlerFixture()
	loan := f.addFundraisingLoan(100_000_000)
	investor := f.addInvestor()

	investment := &domain.Investment{
		ID:              uuid.New(),
		LoanID:          loan.ID,
		InvestorID:      investor.ID,
		CommittedAmount: decimal.NewFromInt(30_000_000),
		Status:          domain.InvestmentStatusCommitted,
	}
	f.investmentRepo.AddInvestment(investment)

	reqBody := `{"amount": "50000000"}`
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/investments/"+investment.ID.String(), strings.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(investment.ID.String())

	err := f.handler.EditInvestment(c)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}

	var response InvestmentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if response.CommittedAmount != "50000000.00" {
		t.Errorf("Expected committed amount '50000000.00', got %s", response.CommittedAmount)
	}
}

func TestEditInvestment_NotFound(t *testing.T) {
	e := echo.New()
	f := newInvestmentHandlerFixture()

	reqBody := `{"amount": "50000000"}`
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/investments/"+uuid.New().String(), strings.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	err := f.handler.EditInvestment(c)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rec.Code)
	}
}

func TestRemoveInvestment_RecomputesFundedAmount(t *testing.T) {
	e := echo.New()
	f := newInvestmentHandlerFixture()
	loan := f.addFundraisingLoan(100_000_000)
	investor := f.addInvestor()

	keep := &domain.Investment{
		ID:              uuid.New(),
		LoanID:          loan.ID,
		InvestorID:      investor.ID,
		CommittedAmount: decimal.NewFromInt(30_000_000),
		Status:          domain.InvestmentStatusCommitted,
	}
	remove := &domain.Investment{
		ID:              uuid.New(),
		LoanID:          loan.ID,
		InvestorID:      investor.ID,
		CommittedAmount: decimal.NewFromInt(20_000_000),
		Status:          domain.InvestmentStatusCommitted,
	}
	f.investmentRepo.AddInvestment(keep)
	f.investmentRepo.AddInvestment(remove)
	loan.FundedAmount = decimal.NewFromInt(50_000_000)
	f.loanRepo.AddLoan(loan)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/investments/"+remove.ID.String(), nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(remove.ID.String())

	err := f.handler.RemoveInvestment(c)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if rec.Code != http.StatusNoContent {
		t.Errorf("Expected status 204, got %d", rec.Code)
	}

	updated, _ := f.loanRepo.GetByID(req.Context(), loan.ID)
	if !updated.FundedAmount.Equal(decimal.NewFromInt(30_000_000)) {
		t.Errorf("Expected funded amount 30000000, got %s", updated.FundedAmount.String())
	}
}

func TestGetInvestments_LoanNotFound(t *testing.T) {
	e := echo.New()
	f := newInvestmentHandlerFixture()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/loans/"+uuid.New().String()+"/investments", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	err := f.handler.GetInvestments(c)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rec.Code)
	}
}
