package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/proyecty/proyecty-backend/internal/domain"
	"github.com/proyecty/proyecty-backend/internal/service"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// InvestmentHandler handles investment-book HTTP requests
type InvestmentHandler struct {
	investmentService *service.InvestmentService
}

// NewInvestmentHandler creates a new InvestmentHandler
func NewInvestmentHandler(investmentService *service.InvestmentService) *InvestmentHandler {
	return &InvestmentHandler{investmentService: investmentService}
}

// AddInvestmentRequest represents the commit-capital request body
type AddInvestmentRequest struct {
	InvestorID string `json:"investorId"`
	Amount     string `json:"amount"`
}

// EditInvestmentRequest represents the edit-commitment request body
type EditInvestmentRequest struct {
	Amount string `json:"amount"`
}

// InvestmentResponse represents an investment in API responses
type InvestmentResponse struct {
	ID                string  `json:"id"`
	LoanID            string  `json:"loanId"`
	InvestorID        string  `json:"investorId"`
	CommittedAmount   string  `json:"committedAmount"`
	TransferredAmount string  `json:"transferredAmount"`
	Status            string  `json:"status"`
	CommitmentDate    string  `json:"commitmentDate"`
	TransferDate      *string `json:"transferDate,omitempty"`
	CreatedAt         string  `json:"createdAt"`
	UpdatedAt         string  `json:"updatedAt"`
}

// AddInvestment godoc
// @Summary Commit investor capital
// @Description Commit an investor's capital to a loan; fails when the amount exceeds remaining capacity
// @Tags investments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Loan ID"
// @Param request body AddInvestmentRequest true "Commitment"
// @Success 201 {object} InvestmentResponse
// @Failure 400 {object} ProblemDetails
// @Failure 404 {object} ProblemDetails
// @Failure 409 {object} ProblemDetails
// @Router /loans/{id}/investments [post]
func (h *InvestmentHandler) AddInvestment(c echo.Context) error {
	loanID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return NewValidationError(c, "Invalid loan ID", nil)
	}

	var req AddInvestmentRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	investorID, err := uuid.Parse(req.InvestorID)
	if err != nil {
		return NewValidationError(c, "Invalid investor ID", []ValidationError{
			{Field: "investorId", Message: "Must be a valid UUID"},
		})
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return NewValidationError(c, "Invalid amount", []ValidationError{
			{Field: "amount", Message: "Must be a valid decimal number"},
		})
	}

	investment, err := h.investmentService.AddInvestment(c.Request().Context(), loanID, investorID, amount)
	if err != nil {
		if errors.Is(err, domain.ErrLoanNotFound) {
			return NewNotFoundError(c, "Loan not found")
		}
		if errors.Is(err, domain.ErrUserNotFound) {
			return NewValidationError(c, "Validation failed", []ValidationError{
				{Field: "investorId", Message: "Investor does not exist"},
			})
		}
		if errors.Is(err, domain.ErrInvalidAmount) {
			return NewValidationError(c, "Validation failed", []ValidationError{
				{Field: "amount", Message: "Amount must be positive"},
			})
		}
		if errors.Is(err, domain.ErrCapacityExceeded) {
			return NewConflictError(c, "Investment exceeds the loan's remaining capacity")
		}
		if errors.Is(err, domain.ErrLoanClosed) {
			return NewConflictError(c, "Loan no longer accepts investments")
		}
		log.Error().Err(err).Str("loan_id", loanID.String()).Msg("Failed to add investment")
		return NewInternalError(c, "Failed to add investment")
	}

	log.Info().
		Str("loan_id", loanID.String()).
		Str("investment_id", investment.ID.String()).
		Str("amount", investment.CommittedAmount.String()).
		Msg("Investment committed")

	return c.JSON(http.StatusCreated, toInvestmentResponse(investment))
}

// GetInvestments handles GET /api/v1/loans/:id/investments
func (h *InvestmentHandler) GetInvestments(c echo.Context) error {
	loanID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return NewValidationError(c, "Invalid loan ID", nil)
	}

	investments, err := h.investmentService.GetInvestmentsByLoan(c.Request().Context(), loanID)
	if err != nil {
		if errors.Is(err, domain.ErrLoanNotFound) {
			return NewNotFoundError(c, "Loan not found")
		}
		log.Error().Err(err).Str("loan_id", loanID.String()).Msg("Failed to list investments")
		return NewInternalError(c, "Failed to list investments")
	}

	response := make([]InvestmentResponse, len(investments))
	for i, investment := range investments {
		response[i] = toInvestmentResponse(investment)
	}

	return c.JSON(http.StatusOK, response)
}

// EditInvestment handles PATCH /api/v1/investments/:id
// Re-validates capacity against the other non-cancelled commitments.
func (h *InvestmentHandler) EditInvestment(c echo.Context) error {
	investmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return NewValidationError(c, "Invalid investment ID", nil)
	}

	var req EditInvestmentRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return NewValidationError(c, "Invalid amount", []ValidationError{
			{Field: "amount", Message: "Must be a valid decimal number"},
		})
	}

	investment, err := h.investmentService.EditInvestmentAmount(c.Request().Context(), investmentID, amount)
	if err != nil {
		if errors.Is(err, domain.ErrInvestmentNotFound) {
			return NewNotFoundError(c, "Investment not found")
		}
		if errors.Is(err, domain.ErrInvalidAmount) {
			return NewValidationError(c, "Validation failed", []ValidationError{
				{Field: "amount", Message: "Amount must be positive"},
			})
		}
		if errors.Is(err, domain.ErrCapacityExceeded) {
			return NewConflictError(c, "Investment exceeds the loan's remaining capacity")
		}
		log.Error().Err(err).Str("investment_id", investmentID.String()).Msg("Failed to edit investment")
		return NewInternalError(c, "Failed to edit investment")
	}

	log.Info().
		Str("investment_id", investment.ID.String()).
		Str("amount", investment.CommittedAmount.String()).
		Msg("Investment amount edited")

	return c.JSON(http.StatusOK, toInvestmentResponse(investment))
}

// RemoveInvestment handles DELETE /api/v1/investments/:id
func (h *InvestmentHandler) RemoveInvestment(c echo.Context) error {
	investmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return NewValidationError(c, "Invalid investment ID", nil)
	}

	if err := h.investmentService.RemoveInvestment(c.Request().Context(), investmentID); err != nil {
		if errors.Is(err, domain.ErrInvestmentNotFound) {
			return NewNotFoundError(c, "Investment not found")
		}
		log.Error().Err(err).Str("investment_id", investmentID.String()).Msg("Failed to remove investment")
		return NewInternalError(c, "Failed to remove investment")
	}

	log.Info().Str("investment_id", investmentID.String()).Msg("Investment removed")
	return c.NoContent(http.StatusNoContent)
}

// Helper function to convert domain.Investment to InvestmentResponse
func toInvestmentResponse(investment *domain.Investment) InvestmentResponse {
	resp := InvestmentResponse{
		ID:                investment.ID.String(),
		LoanID:            investment.LoanID.String(),
		InvestorID:        investment.InvestorID.String(),
		CommittedAmount:   investment.CommittedAmount.StringFixed(2),
		TransferredAmount: investment.TransferredAmount.StringFixed(2),
		Status:            string(investment.Status),
		CommitmentDate:    investment.CommitmentDate.Format(time.RFC3339),
		CreatedAt:         investment.CreatedAt.Format(time.RFC3339),
		UpdatedAt:         investment.UpdatedAt.Format(time.RFC3339),
	}
	if investment.TransferDate != nil {
		date := investment.TransferDate.Format(time.RFC3339)
		resp.TransferDate = &date
	}
	return resp
}
