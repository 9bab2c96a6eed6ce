package domain

import "errors"

// Domain errors shared across aggregates. Handlers map these 1:1 to the
// operator-facing messages the console already shows.
var (
	ErrNotFound          = errors.New("resource not found")
	ErrInvalidAmount     = errors.New("amount must be a positive number")
	ErrCapacityExceeded  = errors.New("investment exceeds the loan's remaining capacity")
	ErrLoanClosed        = errors.New("loan no longer accepts ledger postings")
	ErrRateConfiguration = errors.New("commission rate must be lower than the total interest rate")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInternalError     = errors.New("internal error")
)
