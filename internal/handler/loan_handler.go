package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/proyecty/proyecty-backend/internal/domain"
	"github.com/proyecty/proyecty-backend/internal/service"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// LoanHandler handles loan-related HTTP requests
type LoanHandler struct {
	loanService        *service.LoanService
	transactionService *service.TransactionService
}

// NewLoanHandler creates a new LoanHandler
func NewLoanHandler(loanService *service.LoanService, transactionService *service.TransactionService) *LoanHandler {
	return &LoanHandler{loanService: loanService, transactionService: transactionService}
}

// CreateLoanRequest represents the create loan request body.
// Rates are monthly percentages, the way the console enters them.
type CreateLoanRequest struct {
	BorrowerID            string  `json:"borrowerId"`
	PropertyID            string  `json:"propertyId"`
	RequestedAmount       string  `json:"requestedAmount"`
	MonthlyInterestRate   string  `json:"monthlyInterestRate"`
	MonthlyCommissionRate string  `json:"monthlyCommissionRate"`
	TermMonths            int32   `json:"termMonths"`
	PaymentDay            int32   `json:"paymentDay"`
	FundingDeadline       *string `json:"fundingDeadline,omitempty"`
	Notes                 *string `json:"notes,omitempty"`
	CreatedBy             *string `json:"createdBy,omitempty"`
}

// ChangeLoanStatusRequest represents the status transition request body
type ChangeLoanStatusRequest struct {
	Status string `json:"status"`
}

// LoanResponse represents a loan in API responses
type LoanResponse struct {
	ID                    string  `json:"id"`
	LoanCode              string  `json:"loanCode"`
	BorrowerID            string  `json:"borrowerId"`
	PropertyID            string  `json:"propertyId"`
	RequestedAmount       string  `json:"requestedAmount"`
	FundedAmount          string  `json:"fundedAmount"`
	DisbursedAmount       string  `json:"disbursedAmount"`
	CurrentBalance        string  `json:"currentBalance"`
	MonthlyInterestRate   string  `json:"monthlyInterestRate"`
	MonthlyCommissionRate string  `json:"monthlyCommissionRate"`
	MonthlyInvestorRate   string  `json:"monthlyInvestorRate"`
	AnnualInterestRate    string  `json:"annualInterestRate"`
	TermMonths            int32   `json:"termMonths"`
	PaymentDay            int32   `json:"paymentDay"`
	ApplicationDate       string  `json:"applicationDate"`
	FundingDeadline       *string `json:"fundingDeadline,omitempty"`
	DisbursementDate      *string `json:"disbursementDate,omitempty"`
	StartDate             *string `json:"startDate,omitempty"`
	MaturityDate          *string `json:"maturityDate,omitempty"`
	Status                string  `json:"status"`
	LTVRatio              *string `json:"ltvRatio,omitempty"`
	Notes                 *string `json:"notes,omitempty"`
	CreatedAt             string  `json:"createdAt"`
	UpdatedAt             string  `json:"updatedAt"`
}

// LoanSummaryResponse represents the derived loan detail read model
type LoanSummaryResponse struct {
	Loan                  LoanResponse `json:"loan"`
	BorrowerName          string       `json:"borrowerName"`
	PropertyName          string       `json:"propertyName"`
	FundingProgress       string       `json:"fundingProgress"`
	LTVRatio              *string      `json:"ltvRatio,omitempty"`
	MonthlyInterestRate   string       `json:"monthlyInterestRate"`
	MonthlyCommissionRate string       `json:"monthlyCommissionRate"`
	MonthlyInvestorRate   string       `json:"monthlyInvestorRate"`
	AnnualInterestRate    string       `json:"annualInterestRate"`
	InvestorCount         int64        `json:"investorCount"`
	TotalInterestPaid     string       `json:"totalInterestPaid"`
	TotalPrincipalPaid    string       `json:"totalPrincipalPaid"`
	TotalCommission       string       `json:"totalCommission"`
}

// SuggestedInterestResponse represents the monthly interest-due suggestion
type SuggestedInterestResponse struct {
	LoanID            string `json:"loanId"`
	CurrentBalance    string `json:"currentBalance"`
	SuggestedInterest string `json:"suggestedInterest"`
}

// CreateLoan godoc
// @Summary Create a loan
// @Description Register a new loan application in draft with monthly rates
// @Tags loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateLoanRequest true "Loan terms"
// @Success 201 {object} LoanResponse
// @Failure 400 {object} ProblemDetails
// @Failure 401 {object} ProblemDetails
// @Router /loans [post]
func (h *LoanHandler) CreateLoan(c echo.Context) error {
	var req CreateLoanRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	borrowerID, err := uuid.Parse(req.BorrowerID)
	if err != nil {
		return NewValidationError(c, "Invalid borrower ID", []ValidationError{
			{Field: "borrowerId", Message: "Must be a valid UUID"},
		})
	}
	propertyID, err := uuid.Parse(req.PropertyID)
	if err != nil {
		return NewValidationError(c, "Invalid property ID", []ValidationError{
			{Field: "propertyId", Message: "Must be a valid UUID"},
		})
	}

	requestedAmount, err := decimal.NewFromString(req.RequestedAmount)
	if err != nil {
		return NewValidationError(c, "Invalid requested amount", []ValidationError{
			{Field: "requestedAmount", Message: "Must be a valid decimal number"},
		})
	}
	monthlyRate, err := decimal.NewFromString(req.MonthlyInterestRate)
	if err != nil {
		return NewValidationError(c, "Invalid interest rate", []ValidationError{
			{Field: "monthlyInterestRate", Message: "Must be a valid decimal number"},
		})
	}
	commissionRate, err := decimal.NewFromString(req.MonthlyCommissionRate)
	if err != nil {
		return NewValidationError(c, "Invalid commission rate", []ValidationError{
			{Field: "monthlyCommissionRate", Message: "Must be a valid decimal number"},
		})
	}

	var fundingDeadline *time.Time
	if req.FundingDeadline != nil && *req.FundingDeadline != "" {
		deadline, err := time.Parse("2006-01-02", *req.FundingDeadline)
		if err != nil {
			return NewValidationError(c, "Invalid funding deadline", []ValidationError{
				{Field: "fundingDeadline", Message: "Must be in YYYY-MM-DD format"},
			})
		}
		fundingDeadline = &deadline
	}

	var createdBy *uuid.UUID
	if req.CreatedBy != nil && *req.CreatedBy != "" {
		id, err := uuid.Parse(*req.CreatedBy)
		if err != nil {
			return NewValidationError(c, "Invalid creator ID", []ValidationError{
				{Field: "createdBy", Message: "Must be a valid UUID"},
			})
		}
		createdBy = &id
	}

	input := service.CreateLoanInput{
		BorrowerID:            borrowerID,
		PropertyID:            propertyID,
		RequestedAmount:       requestedAmount,
		MonthlyInterestRate:   monthlyRate,
		MonthlyCommissionRate: commissionRate,
		TermMonths:            req.TermMonths,
		PaymentDay:            req.PaymentDay,
		FundingDeadline:       fundingDeadline,
		Notes:                 req.Notes,
		CreatedBy:             createdBy,
	}

	loan, err := h.loanService.CreateLoan(c.Request().Context(), input)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return NewValidationError(c, "Validation failed", []ValidationError{
				{Field: "borrowerId", Message: "Borrower does not exist"},
			})
		}
		if errors.Is(err, domain.ErrPropertyNotFound) {
			return NewValidationError(c, "Validation failed", []ValidationError{
				{Field: "propertyId", Message: "Property does not exist"},
			})
		}
		if errors.Is(err, domain.ErrInvalidAmount) {
			return NewValidationError(c, "Validation failed", []ValidationError{
				{Field: "requestedAmount", Message: "Amount must be positive"},
			})
		}
		if errors.Is(err, domain.ErrRateConfiguration) {
			return NewValidationError(c, "Validation failed", []ValidationError{
				{Field: "monthlyCommissionRate", Message: "Commission rate must be lower than the total interest rate"},
			})
		}
		if errors.Is(err, domain.ErrLoanRateInvalid) {
			return NewValidationError(c, "Validation failed", []ValidationError{
				{Field: "monthlyInterestRate", Message: "Interest rate must be positive"},
			})
		}
		if errors.Is(err, domain.ErrLoanTermInvalid) {
			return NewValidationError(c, "Validation failed", []ValidationError{
				{Field: "termMonths", Message: "Term must be at least 1 month"},
			})
		}
		if errors.Is(err, domain.ErrLoanPaymentDayInvalid) {
			return NewValidationError(c, "Validation failed", []ValidationError{
				{Field: "paymentDay", Message: "Payment day must be between 1 and 28"},
			})
		}
		log.Error().Err(err).Msg("Failed to create loan")
		return NewInternalError(c, "Failed to create loan")
	}

	log.Info().Str("loan_id", loan.ID.String()).Str("loan_code", loan.LoanCode).Msg("Loan created")

	return c.JSON(http.StatusCreated, toLoanResponse(loan))
}

// GetLoans godoc
// @Summary List loans
// @Description List loans, optionally narrowed to a comma-separated set of statuses
// @Tags loans
// @Produce json
// @Security BearerAuth
// @Param status query string false "Comma-separated statuses (e.g. fundraising,current)"
// @Success 200 {array} LoanResponse
// @Failure 400 {object} ProblemDetails
// @Router /loans [get]
func (h *LoanHandler) GetLoans(c echo.Context) error {
	var statuses []domain.LoanStatus
	if statusParam := c.QueryParam("status"); statusParam != "" {
		for _, raw := range strings.Split(statusParam, ",") {
			status := domain.LoanStatus(strings.TrimSpace(raw))
			if !status.Valid() {
				return NewValidationError(c, "Invalid status parameter", []ValidationError{
					{Field: "status", Message: "Unknown loan status: " + string(status)},
				})
			}
			statuses = append(statuses, status)
		}
	}

	loans, err := h.loanService.ListLoans(c.Request().Context(), statuses)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list loans")
		return NewInternalError(c, "Failed to list loans")
	}

	response := make([]LoanResponse, len(loans))
	for i, loan := range loans {
		response[i] = toLoanResponse(loan)
	}

	return c.JSON(http.StatusOK, response)
}

// GetLoan handles GET /api/v1/loans/:id
func (h *LoanHandler) GetLoan(c echo.Context) error {
	loanID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return NewValidationError(c, "Invalid loan ID", nil)
	}

	loan, err := h.loanService.GetLoan(c.Request().Context(), loanID)
	if err != nil {
		if errors.Is(err, domain.ErrLoanNotFound) {
			return NewNotFoundError(c, "Loan not found")
		}
		log.Error().Err(err).Str("loan_id", loanID.String()).Msg("Failed to get loan")
		return NewInternalError(c, "Failed to get loan")
	}

	return c.JSON(http.StatusOK, toLoanResponse(loan))
}

// ChangeStatus godoc
// @Summary Change loan status
// @Description Apply an operator-driven lifecycle transition
// @Tags loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Loan ID"
// @Param request body ChangeLoanStatusRequest true "Target status"
// @Success 200 {object} LoanResponse
// @Failure 400 {object} ProblemDetails
// @Failure 404 {object} ProblemDetails
// @Failure 409 {object} ProblemDetails
// @Router /loans/{id}/status [patch]
func (h *LoanHandler) ChangeStatus(c echo.Context) error {
	loanID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return NewValidationError(c, "Invalid loan ID", nil)
	}

	var req ChangeLoanStatusRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	next := domain.LoanStatus(req.Status)
	loan, err := h.loanService.ChangeStatus(c.Request().Context(), loanID, next)
	if err != nil {
		if errors.Is(err, domain.ErrLoanNotFound) {
			return NewNotFoundError(c, "Loan not found")
		}
		if errors.Is(err, domain.ErrLoanStatusInvalid) {
			return NewValidationError(c, "Invalid status", []ValidationError{
				{Field: "status", Message: "Unknown loan status: " + req.Status},
			})
		}
		if errors.Is(err, domain.ErrLoanTransitionInvalid) {
			return NewConflictError(c, "Status transition not allowed")
		}
		log.Error().Err(err).Str("loan_id", loanID.String()).Str("status", req.Status).Msg("Failed to change loan status")
		return NewInternalError(c, "Failed to change loan status")
	}

	log.Info().Str("loan_id", loan.ID.String()).Str("status", string(loan.Status)).Msg("Loan status changed")

	return c.JSON(http.StatusOK, toLoanResponse(loan))
}

// GetLoanSummary handles GET /api/v1/loans/:id/summary
func (h *LoanHandler) GetLoanSummary(c echo.Context) error {
	loanID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return NewValidationError(c, "Invalid loan ID", nil)
	}

	summary, err := h.loanService.GetLoanSummary(c.Request().Context(), loanID)
	if err != nil {
		if errors.Is(err, domain.ErrLoanNotFound) {
			return NewNotFoundError(c, "Loan not found")
		}
		log.Error().Err(err).Str("loan_id", loanID.String()).Msg("Failed to get loan summary")
		return NewInternalError(c, "Failed to get loan summary")
	}

	response := LoanSummaryResponse{
		Loan:                  toLoanResponse(summary.Loan),
		BorrowerName:          summary.BorrowerName,
		PropertyName:          summary.PropertyName,
		FundingProgress:       summary.FundingProgress.StringFixed(1),
		MonthlyInterestRate:   summary.MonthlyInterestRate.StringFixed(2),
		MonthlyCommissionRate: summary.MonthlyCommissionRate.StringFixed(2),
		MonthlyInvestorRate:   summary.MonthlyInvestorRate.StringFixed(2),
		AnnualInterestRate:    summary.AnnualInterestRate.StringFixed(2),
		InvestorCount:         summary.InvestorCount,
		TotalInterestPaid:     summary.Totals.TotalInterestPaid.StringFixed(2),
		TotalPrincipalPaid:    summary.Totals.TotalPrincipalPaid.StringFixed(2),
		TotalCommission:       summary.Totals.TotalCommission.StringFixed(2),
	}
	if summary.LTVRatio != nil {
		ltv := summary.LTVRatio.StringFixed(1)
		response.LTVRatio = &ltv
	}

	return c.JSON(http.StatusOK, response)
}

// GetSuggestedInterest handles GET /api/v1/loans/:id/suggested-interest
// Returns one month of interest on the current balance; the operator may
// still record any amount.
func (h *LoanHandler) GetSuggestedInterest(c echo.Context) error {
	loanID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return NewValidationError(c, "Invalid loan ID", nil)
	}

	loan, err := h.loanService.GetLoan(c.Request().Context(), loanID)
	if err != nil {
		if errors.Is(err, domain.ErrLoanNotFound) {
			return NewNotFoundError(c, "Loan not found")
		}
		log.Error().Err(err).Str("loan_id", loanID.String()).Msg("Failed to get loan")
		return NewInternalError(c, "Failed to get loan")
	}

	suggested, err := h.transactionService.SuggestInterest(c.Request().Context(), loanID)
	if err != nil {
		log.Error().Err(err).Str("loan_id", loanID.String()).Msg("Failed to compute suggested interest")
		return NewInternalError(c, "Failed to compute suggested interest")
	}

	return c.JSON(http.StatusOK, SuggestedInterestResponse{
		LoanID:            loan.ID.String(),
		CurrentBalance:    loan.CurrentBalance.StringFixed(2),
		SuggestedInterest: suggested.StringFixed(2),
	})
}

// RecalculateBalance handles POST /api/v1/loans/:id/recalculate
// Re-derives the outstanding balance and disbursed amount from the full ledger.
func (h *LoanHandler) RecalculateBalance(c echo.Context) error {
	loanID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return NewValidationError(c, "Invalid loan ID", nil)
	}

	loan, err := h.transactionService.RecalculateBalance(c.Request().Context(), loanID)
	if err != nil {
		if errors.Is(err, domain.ErrLoanNotFound) {
			return NewNotFoundError(c, "Loan not found")
		}
		log.Error().Err(err).Str("loan_id", loanID.String()).Msg("Failed to recalculate balance")
		return NewInternalError(c, "Failed to recalculate balance")
	}

	log.Info().Str("loan_id", loan.ID.String()).Str("balance", loan.CurrentBalance.String()).Msg("Loan balance recalculated")

	return c.JSON(http.StatusOK, toLoanResponse(loan))
}

// Helper function to convert domain.Loan to LoanResponse
func toLoanResponse(loan *domain.Loan) LoanResponse {
	resp := LoanResponse{
		ID:                    loan.ID.String(),
		LoanCode:              loan.LoanCode,
		BorrowerID:            loan.BorrowerID.String(),
		PropertyID:            loan.PropertyID.String(),
		RequestedAmount:       loan.RequestedAmount.StringFixed(2),
		FundedAmount:          loan.FundedAmount.StringFixed(2),
		DisbursedAmount:       loan.DisbursedAmount.StringFixed(2),
		CurrentBalance:        loan.CurrentBalance.StringFixed(2),
		MonthlyInterestRate:   service.AnnualToMonthly(loan.AnnualInterestRate).Round(2).StringFixed(2),
		MonthlyCommissionRate: service.AnnualToMonthly(loan.CommissionRate).Round(2).StringFixed(2),
		MonthlyInvestorRate:   service.AnnualToMonthly(loan.InvestorReturnRate).Round(2).StringFixed(2),
		AnnualInterestRate:    loan.AnnualInterestRate.StringFixed(2),
		TermMonths:            loan.TermMonths,
		PaymentDay:            loan.PaymentDay,
		ApplicationDate:       loan.ApplicationDate.Format(time.RFC3339),
		Status:                string(loan.Status),
		Notes:                 loan.Notes,
		CreatedAt:             loan.CreatedAt.Format(time.RFC3339),
		UpdatedAt:             loan.UpdatedAt.Format(time.RFC3339),
	}
	if loan.FundingDeadline != nil {
		deadline := loan.FundingDeadline.Format("2006-01-02")
		resp.FundingDeadline = &deadline
	}
	if loan.DisbursementDate != nil {
		date := loan.DisbursementDate.Format(time.RFC3339)
		resp.DisbursementDate = &date
	}
	if loan.StartDate != nil {
		date := loan.StartDate.Format(time.RFC3339)
		resp.StartDate = &date
	}
	if loan.MaturityDate != nil {
		date := loan.MaturityDate.Format(time.RFC3339)
		resp.MaturityDate = &date
	}
	if loan.LTVRatio != nil {
		ltv := loan.LTVRatio.StringFixed(1)
		resp.LTVRatio = &ltv
	}
	return resp
}
