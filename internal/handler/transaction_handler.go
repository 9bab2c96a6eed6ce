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

// TransactionHandler handles ledger HTTP requests
type TransactionHandler struct {
	transactionService *service.TransactionService
}

// NewTransactionHandler creates a new TransactionHandler
func NewTransactionHandler(transactionService *service.TransactionService) *TransactionHandler {
	return &TransactionHandler{transactionService: transactionService}
}

// RecordTransactionRequest represents one ledger posting from the operator.
// Portions default per type: a plain interest payment is all interest, a
// plain principal payment all principal.
type RecordTransactionRequest struct {
	Type              string  `json:"type"`
	Amount            string  `json:"amount"`
	InterestPortion   *string `json:"interestPortion,omitempty"`
	PrincipalPortion  *string `json:"principalPortion,omitempty"`
	CommissionPortion *string `json:"commissionPortion,omitempty"`
	PaymentMethod     *string `json:"paymentMethod,omitempty"`
	PaymentReference  *string `json:"paymentReference,omitempty"`
	PaymentDate       *string `json:"paymentDate,omitempty"`
	Description       *string `json:"description,omitempty"`
	UserID            *string `json:"userId,omitempty"`
	CreatedBy         *string `json:"createdBy,omitempty"`
}

// CorrectTransactionRequest represents the correction flow request body
type CorrectTransactionRequest struct {
	Amount   string  `json:"amount"`
	Reason   string  `json:"reason"`
	EditedBy *string `json:"editedBy,omitempty"`
}

// TransactionResponse represents a ledger entry in API responses
type TransactionResponse struct {
	ID                string  `json:"id"`
	TransactionCode   string  `json:"transactionCode"`
	LoanID            string  `json:"loanId"`
	InvestmentID      *string `json:"investmentId,omitempty"`
	UserID            *string `json:"userId,omitempty"`
	Type              string  `json:"type"`
	Amount            string  `json:"amount"`
	InterestPortion   string  `json:"interestPortion"`
	PrincipalPortion  string  `json:"principalPortion"`
	CommissionPortion string  `json:"commissionPortion"`
	LoanBalanceAfter  *string `json:"loanBalanceAfter,omitempty"`
	PaymentMethod     *string `json:"paymentMethod,omitempty"`
	PaymentReference  *string `json:"paymentReference,omitempty"`
	PaymentDate       string  `json:"paymentDate"`
	Status            string  `json:"status"`
	Description       *string `json:"description,omitempty"`
	ReceiptURL        *string `json:"receiptUrl,omitempty"`
	IsEdited          bool    `json:"isEdited"`
	OriginalAmount    *string `json:"originalAmount,omitempty"`
	EditReason        *string `json:"editReason,omitempty"`
	EditedAt          *string `json:"editedAt,omitempty"`
	CreatedAt         string  `json:"createdAt"`
	UpdatedAt         string  `json:"updatedAt"`
}

// RecordTransaction godoc
// @Summary Record a ledger entry
// @Description Append one transaction to a loan's ledger; interest collections are split into commission and investor return automatically
// @Tags transactions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Loan ID"
// @Param Idempotency-Key header string false "Idempotency key for safe retries"
// @Param request body RecordTransactionRequest true "Posting"
// @Success 201 {object} TransactionResponse
// @Failure 400 {object} ProblemDetails
// @Failure 404 {object} ProblemDetails
// @Failure 409 {object} ProblemDetails
// @Router /loans/{id}/transactions [post]
func (h *TransactionHandler) RecordTransaction(c echo.Context) error {
	loanID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return NewValidationError(c, "Invalid loan ID", nil)
	}

	var req RecordTransactionRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return NewValidationError(c, "Invalid amount", []ValidationError{
			{Field: "amount", Message: "Must be a valid decimal number"},
		})
	}

	interestPortion, err := parseOptionalDecimal(req.InterestPortion)
	if err != nil {
		return NewValidationError(c, "Invalid interest portion", []ValidationError{
			{Field: "interestPortion", Message: "Must be a valid decimal number"},
		})
	}
	principalPortion, err := parseOptionalDecimal(req.PrincipalPortion)
	if err != nil {
		return NewValidationError(c, "Invalid principal portion", []ValidationError{
			{Field: "principalPortion", Message: "Must be a valid decimal number"},
		})
	}
	commissionPortion, err := parseOptionalDecimal(req.CommissionPortion)
	if err != nil {
		return NewValidationError(c, "Invalid commission portion", []ValidationError{
			{Field: "commissionPortion", Message: "Must be a valid decimal number"},
		})
	}

	var paymentDate *time.Time
	if req.PaymentDate != nil && *req.PaymentDate != "" {
		parsed, err := time.Parse("2006-01-02", *req.PaymentDate)
		if err != nil {
			return NewValidationError(c, "Invalid payment date", []ValidationError{
				{Field: "paymentDate", Message: "Must be in YYYY-MM-DD format"},
			})
		}
		paymentDate = &parsed
	}

	userID, err := parseOptionalUUID(req.UserID)
	if err != nil {
		return NewValidationError(c, "Invalid user ID", []ValidationError{
			{Field: "userId", Message: "Must be a valid UUID"},
		})
	}
	createdBy, err := parseOptionalUUID(req.CreatedBy)
	if err != nil {
		return NewValidationError(c, "Invalid creator ID", []ValidationError{
			{Field: "createdBy", Message: "Must be a valid UUID"},
		})
	}

	input := service.RecordTransactionInput{
		Type:              domain.TransactionType(req.Type),
		Amount:            amount,
		InterestPortion:   interestPortion,
		PrincipalPortion:  principalPortion,
		CommissionPortion: commissionPortion,
		PaymentMethod:     req.PaymentMethod,
		PaymentReference:  req.PaymentReference,
		PaymentDate:       paymentDate,
		Description:       req.Description,
		UserID:            userID,
		CreatedBy:         createdBy,
	}

	transaction, err := h.transactionService.RecordTransaction(c.Request().Context(), loanID, input)
	if err != nil {
		if errors.Is(err, domain.ErrLoanNotFound) {
			return NewNotFoundError(c, "Loan not found")
		}
		if errors.Is(err, domain.ErrLoanClosed) {
			return NewConflictError(c, "Loan no longer accepts ledger postings")
		}
		if errors.Is(err, domain.ErrTransactionTypeInvalid) {
			return NewValidationError(c, "Validation failed", []ValidationError{
				{Field: "type", Message: "Unknown transaction type: " + req.Type},
			})
		}
		if errors.Is(err, domain.ErrInvalidAmount) {
			return NewValidationError(c, "Validation failed", []ValidationError{
				{Field: "amount", Message: "Amount must be positive"},
			})
		}
		if errors.Is(err, domain.ErrPortionBreakdownInvalid) {
			return NewValidationError(c, "Validation failed", []ValidationError{
				{Field: "interestPortion", Message: "Portion breakdown must not exceed the amount"},
			})
		}
		log.Error().Err(err).Str("loan_id", loanID.String()).Str("type", req.Type).Msg("Failed to record transaction")
		return NewInternalError(c, "Failed to record transaction")
	}

	log.Info().
		Str("loan_id", loanID.String()).
		Str("transaction_id", transaction.ID.String()).
		Str("type", string(transaction.Type)).
		Str("amount", transaction.Amount.String()).
		Msg("Transaction recorded")

	return c.JSON(http.StatusCreated, toTransactionResponse(transaction))
}

// GetLoanTransactions handles GET /api/v1/loans/:id/transactions
// Returns the loan's ledger ordered by payment date, then insertion order.
func (h *TransactionHandler) GetLoanTransactions(c echo.Context) error {
	loanID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return NewValidationError(c, "Invalid loan ID", nil)
	}

	transactions, err := h.transactionService.GetTransactionsByLoan(c.Request().Context(), loanID)
	if err != nil {
		if errors.Is(err, domain.ErrLoanNotFound) {
			return NewNotFoundError(c, "Loan not found")
		}
		log.Error().Err(err).Str("loan_id", loanID.String()).Msg("Failed to list loan transactions")
		return NewInternalError(c, "Failed to list transactions")
	}

	response := make([]TransactionResponse, len(transactions))
	for i, transaction := range transactions {
		response[i] = toTransactionResponse(transaction)
	}

	return c.JSON(http.StatusOK, response)
}

// ListTransactions handles GET /api/v1/transactions
// Global ledger listing with optional type, status, and user filters.
func (h *TransactionHandler) ListTransactions(c echo.Context) error {
	var filter domain.TransactionFilter

	if typeParam := c.QueryParam("type"); typeParam != "" {
		transactionType := domain.TransactionType(typeParam)
		if !transactionType.Valid() {
			return NewValidationError(c, "Invalid type parameter", []ValidationError{
				{Field: "type", Message: "Unknown transaction type: " + typeParam},
			})
		}
		filter.Type = &transactionType
	}
	if statusParam := c.QueryParam("status"); statusParam != "" {
		status := domain.TransactionStatus(statusParam)
		if !status.Valid() {
			return NewValidationError(c, "Invalid status parameter", []ValidationError{
				{Field: "status", Message: "Unknown transaction status: " + statusParam},
			})
		}
		filter.Status = &status
	}
	if userParam := c.QueryParam("userId"); userParam != "" {
		userID, err := uuid.Parse(userParam)
		if err != nil {
			return NewValidationError(c, "Invalid userId parameter", []ValidationError{
				{Field: "userId", Message: "Must be a valid UUID"},
			})
		}
		filter.UserID = &userID
	}

	transactions, err := h.transactionService.ListTransactions(c.Request().Context(), filter)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list transactions")
		return NewInternalError(c, "Failed to list transactions")
	}

	response := make([]TransactionResponse, len(transactions))
	for i, transaction := range transactions {
		response[i] = toTransactionResponse(transaction)
	}

	return c.JSON(http.StatusOK, response)
}

// CorrectTransaction godoc
// @Summary Correct a ledger entry
// @Description Apply an amount correction; the original amount is preserved and the loan balance re-derived from the full ledger
// @Tags transactions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Transaction ID"
// @Param request body CorrectTransactionRequest true "Correction"
// @Success 200 {object} TransactionResponse
// @Failure 400 {object} ProblemDetails
// @Failure 404 {object} ProblemDetails
// @Router /transactions/{id} [patch]
func (h *TransactionHandler) CorrectTransaction(c echo.Context) error {
	transactionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return NewValidationError(c, "Invalid transaction ID", nil)
	}

	var req CorrectTransactionRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return NewValidationError(c, "Invalid amount", []ValidationError{
			{Field: "amount", Message: "Must be a valid decimal number"},
		})
	}

	editedBy, err := parseOptionalUUID(req.EditedBy)
	if err != nil {
		return NewValidationError(c, "Invalid editor ID", []ValidationError{
			{Field: "editedBy", Message: "Must be a valid UUID"},
		})
	}

	transaction, err := h.transactionService.CorrectTransaction(c.Request().Context(), transactionID, amount, req.Reason, editedBy)
	if err != nil {
		if errors.Is(err, domain.ErrTransactionNotFound) {
			return NewNotFoundError(c, "Transaction not found")
		}
		if errors.Is(err, domain.ErrInvalidAmount) {
			return NewValidationError(c, "Validation failed", []ValidationError{
				{Field: "amount", Message: "Amount must be positive"},
			})
		}
		if errors.Is(err, domain.ErrEditReasonRequired) {
			return NewValidationError(c, "Validation failed", []ValidationError{
				{Field: "reason", Message: "An edit reason is required"},
			})
		}
		if errors.Is(err, domain.ErrPortionBreakdownInvalid) {
			return NewValidationError(c, "Validation failed", []ValidationError{
				{Field: "amount", Message: "Portion breakdown must not exceed the amount"},
			})
		}
		log.Error().Err(err).Str("transaction_id", transactionID.String()).Msg("Failed to correct transaction")
		return NewInternalError(c, "Failed to correct transaction")
	}

	log.Info().
		Str("transaction_id", transaction.ID.String()).
		Str("amount", transaction.Amount.String()).
		Msg("Transaction corrected")

	return c.JSON(http.StatusOK, toTransactionResponse(transaction))
}

func parseOptionalDecimal(raw *string) (decimal.Decimal, error) {
	if raw == nil || *raw == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(*raw)
}

func parseOptionalUUID(raw *string) (*uuid.UUID, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(*raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// Helper function to convert domain.Transaction to TransactionResponse
func toTransactionResponse(transaction *domain.Transaction) TransactionResponse {
	resp := TransactionResponse{
		ID:                transaction.ID.String(),
		TransactionCode:   transaction.TransactionCode,
		LoanID:            transaction.LoanID.String(),
		Type:              string(transaction.Type),
		Amount:            transaction.Amount.StringFixed(2),
		InterestPortion:   transaction.InterestPortion.StringFixed(2),
		PrincipalPortion:  transaction.PrincipalPortion.StringFixed(2),
		CommissionPortion: transaction.CommissionPortion.StringFixed(2),
		PaymentMethod:     transaction.PaymentMethod,
		PaymentReference:  transaction.PaymentReference,
		PaymentDate:       transaction.PaymentDate.Format(time.RFC3339),
		Status:            string(transaction.Status),
		Description:       transaction.Description,
		ReceiptURL:        transaction.ReceiptURL,
		IsEdited:          transaction.IsEdited,
		EditReason:        transaction.EditReason,
		CreatedAt:         transaction.CreatedAt.Format(time.RFC3339),
		UpdatedAt:         transaction.UpdatedAt.Format(time.RFC3339),
	}
	if transaction.InvestmentID != nil {
		id := transaction.InvestmentID.String()
		resp.InvestmentID = &id
	}
	if transaction.UserID != nil {
		id := transaction.UserID.String()
		resp.UserID = &id
	}
	if transaction.LoanBalanceAfter != nil {
		balance := transaction.LoanBalanceAfter.StringFixed(2)
		resp.LoanBalanceAfter = &balance
	}
	if transaction.OriginalAmount != nil {
		original := transaction.OriginalAmount.StringFixed(2)
		resp.OriginalAmount = &original
	}
	if transaction.EditedAt != nil {
		editedAt := transaction.EditedAt.Format(time.RFC3339)
		resp.EditedAt = &editedAt
	}
	return resp
}
