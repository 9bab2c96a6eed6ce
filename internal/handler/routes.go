package handler

import (
	"github.com/labstack/echo/v4"
	"github.com/proyecty/proyecty-backend/internal/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"
)

// RegisterRoutes sets up all API routes. The idempotency middleware is
// optional; when nil, mutating endpoints run without replay protection.
func RegisterRoutes(e *echo.Echo, authMiddleware *middleware.AuthMiddleware, idempotency echo.MiddlewareFunc, loanHandler *LoanHandler, investmentHandler *InvestmentHandler, transactionHandler *TransactionHandler, documentHandler *DocumentHandler, wsHandler *WebSocketHandler) {
	// API version 1
	api := e.Group("/api/v1")

	// Loan routes (protected)
	loans := api.Group("/loans")
	loans.Use(authMiddleware.Authenticate())
	if idempotency != nil {
		loans.Use(idempotency)
	}
	loans.POST("", loanHandler.CreateLoan)
	loans.GET("", loanHandler.GetLoans)
	loans.GET("/:id", loanHandler.GetLoan)
	loans.PATCH("/:id/status", loanHandler.ChangeStatus)
	loans.GET("/:id/summary", loanHandler.GetLoanSummary)
	loans.GET("/:id/suggested-interest", loanHandler.GetSuggestedInterest)
	loans.POST("/:id/recalculate", loanHandler.RecalculateBalance)

	// Investment routes nested under loans, plus direct edits by ID
	loans.POST("/:id/investments", investmentHandler.AddInvestment)
	loans.GET("/:id/investments", investmentHandler.GetInvestments)

	investments := api.Group("/investments")
	investments.Use(authMiddleware.Authenticate())
	if idempotency != nil {
		investments.Use(idempotency)
	}
	investments.PATCH("/:id", investmentHandler.EditInvestment)
	investments.DELETE("/:id", investmentHandler.RemoveInvestment)

	// Ledger routes: per-loan recording and listing, cross-loan queries
	loans.POST("/:id/transactions", transactionHandler.RecordTransaction)
	loans.GET("/:id/transactions", transactionHandler.GetLoanTransactions)

	transactions := api.Group("/transactions")
	transactions.Use(authMiddleware.Authenticate())
	if idempotency != nil {
		transactions.Use(idempotency)
	}
	transactions.GET("", transactionHandler.ListTransactions)
	transactions.PATCH("/:id", transactionHandler.CorrectTransaction)
	transactions.POST("/:id/receipt", documentHandler.UploadReceipt)

	// Property document routes (protected)
	properties := api.Group("/properties")
	properties.Use(authMiddleware.Authenticate())
	properties.POST("/:id/photos", documentHandler.UploadPropertyPhoto)

	// Document download URLs (protected)
	documents := api.Group("/documents")
	documents.Use(authMiddleware.Authenticate())
	documents.GET("/url", documentHandler.GetDocumentURL)

	// WebSocket endpoint authenticates via query-parameter token
	api.GET("/ws", wsHandler.HandleWS)

	// API documentation
	e.GET("/openapi.json", ServeOpenAPI3Spec)
	e.GET("/swagger/*", echoSwagger.WrapHandler)
}
