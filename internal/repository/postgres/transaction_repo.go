package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/proyecty/proyecty-backend/internal/domain"
)

// TransactionRepository implements domain.TransactionRepository using
// PostgreSQL. The table is append-only; the only UPDATEs are the correction
// flow and receipt attachment.
type TransactionRepository struct {
	pool *pgxpool.Pool
}

// NewTransactionRepository creates a new TransactionRepository
func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

const transactionColumns = `
	id, transaction_code, loan_id, investment_id, user_id, transaction_type,
	amount, interest_portion, principal_portion, commission_portion,
	loan_balance_after, payment_method, payment_reference, payment_date,
	status, description, receipt_url,
	is_edited, original_amount, edit_reason, edited_at, edited_by,
	created_by, created_at, updated_at`

// Create appends a new ledger entry
func (r *TransactionRepository) Create(ctx context.Context, transaction *domain.Transaction) (*domain.Transaction, error) {
	amount, err := decimalToPgNumeric(transaction.Amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount: %w", err)
	}
	interest, err := decimalToPgNumeric(transaction.InterestPortion)
	if err != nil {
		return nil, fmt.Errorf("invalid interest portion: %w", err)
	}
	principal, err := decimalToPgNumeric(transaction.PrincipalPortion)
	if err != nil {
		return nil, fmt.Errorf("invalid principal portion: %w", err)
	}
	commission, err := decimalToPgNumeric(transaction.CommissionPortion)
	if err != nil {
		return nil, fmt.Errorf("invalid commission portion: %w", err)
	}
	balanceAfter, err := decimalPtrToPgNumeric(transaction.LoanBalanceAfter)
	if err != nil {
		return nil, fmt.Errorf("invalid loan balance after: %w", err)
	}

	query := `
		INSERT INTO transactions (
			id, transaction_code, loan_id, investment_id, user_id, transaction_type,
			amount, interest_portion, principal_portion, commission_portion,
			loan_balance_after, payment_method, payment_reference, payment_date,
			status, description, created_by, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19
		)
		RETURNING ` + transactionColumns

	row := r.pool.QueryRow(ctx, query,
		transaction.ID, transaction.TransactionCode, transaction.LoanID,
		transaction.InvestmentID, transaction.UserID, string(transaction.Type),
		amount, interest, principal, commission,
		balanceAfter, transaction.PaymentMethod, transaction.PaymentReference,
		transaction.PaymentDate, string(transaction.Status), transaction.Description,
		transaction.CreatedBy, transaction.CreatedAt, transaction.UpdatedAt,
	)
	return scanTransaction(row)
}

// GetByID retrieves a transaction by ID
func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	transaction, err := scanTransaction(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, err
	}
	return transaction, nil
}

// GetByLoanID retrieves a loan's ledger ordered by payment date, then
// insertion order
func (r *TransactionRepository) GetByLoanID(ctx context.Context, loanID uuid.UUID) ([]*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM transactions
		WHERE loan_id = $1
		ORDER BY payment_date, created_at`
	rows, err := r.pool.Query(ctx, query, loanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// List retrieves ledger entries across loans matching the filter, newest first
func (r *TransactionRepository) List(ctx context.Context, filter domain.TransactionFilter) ([]*domain.Transaction, error) {
	var conditions []string
	var args []interface{}

	if filter.Type != nil {
		args = append(args, string(*filter.Type))
		conditions = append(conditions, fmt.Sprintf("transaction_type = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)))
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY payment_date DESC, created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// UpdateCorrection persists the correction flow fields of a ledger entry
func (r *TransactionRepository) UpdateCorrection(ctx context.Context, transaction *domain.Transaction) (*domain.Transaction, error) {
	amount, err := decimalToPgNumeric(transaction.Amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount: %w", err)
	}
	interest, err := decimalToPgNumeric(transaction.InterestPortion)
	if err != nil {
		return nil, fmt.Errorf("invalid interest portion: %w", err)
	}
	principal, err := decimalToPgNumeric(transaction.PrincipalPortion)
	if err != nil {
		return nil, fmt.Errorf("invalid principal portion: %w", err)
	}
	original, err := decimalPtrToPgNumeric(transaction.OriginalAmount)
	if err != nil {
		return nil, fmt.Errorf("invalid original amount: %w", err)
	}

	query := `
		UPDATE transactions SET
			amount = $2,
			interest_portion = $3,
			principal_portion = $4,
			is_edited = $5,
			original_amount = $6,
			edit_reason = $7,
			edited_at = $8,
			edited_by = $9,
			updated_at = now()
		WHERE id = $1
		RETURNING ` + transactionColumns

	row := r.pool.QueryRow(ctx, query,
		transaction.ID, amount, interest, principal,
		transaction.IsEdited, original, transaction.EditReason,
		transaction.EditedAt, transaction.EditedBy,
	)
	updated, err := scanTransaction(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, err
	}
	return updated, nil
}

// UpdateReceiptURL records the stored receipt path on a transaction
func (r *TransactionRepository) UpdateReceiptURL(ctx context.Context, id uuid.UUID, receiptURL string) (*domain.Transaction, error) {
	query := `
		UPDATE transactions SET receipt_url = $2, updated_at = now()
		WHERE id = $1
		RETURNING ` + transactionColumns

	transaction, err := scanTransaction(r.pool.QueryRow(ctx, query, id, receiptURL))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, err
	}
	return transaction, nil
}

// SumPortionsByLoan aggregates completed payment portions and commission
// entries for one loan
func (r *TransactionRepository) SumPortionsByLoan(ctx context.Context, loanID uuid.UUID) (*domain.LedgerTotals, error) {
	query := `
		SELECT
			COALESCE(SUM(interest_portion) FILTER (
				WHERE transaction_type IN ('interest_payment', 'principal_payment', 'full_payment', 'late_fee')
			), 0),
			COALESCE(SUM(principal_portion) FILTER (
				WHERE transaction_type IN ('interest_payment', 'principal_payment', 'full_payment', 'late_fee')
			), 0),
			COALESCE(SUM(amount) FILTER (
				WHERE transaction_type = 'proyecty_commission'
			), 0)
		FROM transactions
		WHERE loan_id = $1 AND status = 'completed'`

	var interest, principal, commission pgtype.Numeric
	if err := r.pool.QueryRow(ctx, query, loanID).Scan(&interest, &principal, &commission); err != nil {
		return nil, err
	}

	return &domain.LedgerTotals{
		TotalInterestPaid:  pgNumericToDecimal(interest),
		TotalPrincipalPaid: pgNumericToDecimal(principal),
		TotalCommission:    pgNumericToDecimal(commission),
	}, nil
}

func collectTransactions(rows pgx.Rows) ([]*domain.Transaction, error) {
	var transactions []*domain.Transaction
	for rows.Next() {
		transaction, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, transaction)
	}
	return transactions, rows.Err()
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var transaction domain.Transaction
	var amount, interest, principal, commission pgtype.Numeric
	var balanceAfter, original pgtype.Numeric
	var transactionType, status string

	err := row.Scan(
		&transaction.ID, &transaction.TransactionCode, &transaction.LoanID,
		&transaction.InvestmentID, &transaction.UserID, &transactionType,
		&amount, &interest, &principal, &commission,
		&balanceAfter, &transaction.PaymentMethod, &transaction.PaymentReference,
		&transaction.PaymentDate, &status, &transaction.Description,
		&transaction.ReceiptURL,
		&transaction.IsEdited, &original, &transaction.EditReason,
		&transaction.EditedAt, &transaction.EditedBy,
		&transaction.CreatedBy, &transaction.CreatedAt, &transaction.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	transaction.Type = domain.TransactionType(transactionType)
	transaction.Status = domain.TransactionStatus(status)
	transaction.Amount = pgNumericToDecimal(amount)
	transaction.InterestPortion = pgNumericToDecimal(interest)
	transaction.PrincipalPortion = pgNumericToDecimal(principal)
	transaction.CommissionPortion = pgNumericToDecimal(commission)
	transaction.LoanBalanceAfter = pgNumericToDecimalPtr(balanceAfter)
	transaction.OriginalAmount = pgNumericToDecimalPtr(original)
	return &transaction, nil
}
