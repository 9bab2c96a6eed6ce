package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/proyecty/proyecty-backend/internal/domain"
)

// LoanRepository implements domain.LoanRepository using PostgreSQL
type LoanRepository struct {
	pool *pgxpool.Pool
}

// NewLoanRepository creates a new LoanRepository
func NewLoanRepository(pool *pgxpool.Pool) *LoanRepository {
	return &LoanRepository{pool: pool}
}

const loanColumns = `
	id, loan_code, borrower_id, property_id,
	requested_amount, funded_amount, disbursed_amount, current_balance,
	annual_interest_rate, commission_rate, investor_return_rate,
	term_months, payment_day,
	application_date, funding_deadline, disbursement_date, start_date, maturity_date,
	status, ltv_ratio, notes, created_by, created_at, updated_at`

// Create inserts a new loan
func (r *LoanRepository) Create(ctx context.Context, loan *domain.Loan) (*domain.Loan, error) {
	requested, err := decimalToPgNumeric(loan.RequestedAmount)
	if err != nil {
		return nil, fmt.Errorf("invalid requested amount: %w", err)
	}
	funded, err := decimalToPgNumeric(loan.FundedAmount)
	if err != nil {
		return nil, fmt.Errorf("invalid funded amount: %w", err)
	}
	disbursed, err := decimalToPgNumeric(loan.DisbursedAmount)
	if err != nil {
		return nil, fmt.Errorf("invalid disbursed amount: %w", err)
	}
	balance, err := decimalToPgNumeric(loan.CurrentBalance)
	if err != nil {
		return nil, fmt.Errorf("invalid current balance: %w", err)
	}
	interestRate, err := decimalToPgNumeric(loan.AnnualInterestRate)
	if err != nil {
		return nil, fmt.Errorf("invalid interest rate: %w", err)
	}
	commissionRate, err := decimalToPgNumeric(loan.CommissionRate)
	if err != nil {
		return nil, fmt.Errorf("invalid commission rate: %w", err)
	}
	investorRate, err := decimalToPgNumeric(loan.InvestorReturnRate)
	if err != nil {
		return nil, fmt.Errorf("invalid investor rate: %w", err)
	}
	ltv, err := decimalPtrToPgNumeric(loan.LTVRatio)
	if err != nil {
		return nil, fmt.Errorf("invalid ltv ratio: %w", err)
	}

	query := `
		INSERT INTO loans (
			id, loan_code, borrower_id, property_id,
			requested_amount, funded_amount, disbursed_amount, current_balance,
			annual_interest_rate, commission_rate, investor_return_rate,
			term_months, payment_day,
			application_date, funding_deadline,
			status, ltv_ratio, notes, created_by, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
			$12, $13, $14, $15, $16, $17, $18, $19, $20, $21
		)
		RETURNING ` + loanColumns

	row := r.pool.QueryRow(ctx, query,
		loan.ID, loan.LoanCode, loan.BorrowerID, loan.PropertyID,
		requested, funded, disbursed, balance,
		interestRate, commissionRate, investorRate,
		loan.TermMonths, loan.PaymentDay,
		loan.ApplicationDate, loan.FundingDeadline,
		string(loan.Status), ltv, loan.Notes, loan.CreatedBy,
		loan.CreatedAt, loan.UpdatedAt,
	)
	return scanLoan(row)
}

// GetByID retrieves a loan by ID
func (r *LoanRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE id = $1`
	loan, err := scanLoan(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrLoanNotFound
		}
		return nil, err
	}
	return loan, nil
}

// GetByCode retrieves a loan by its loan code
func (r *LoanRepository) GetByCode(ctx context.Context, code string) (*domain.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE loan_code = $1`
	loan, err := scanLoan(r.pool.QueryRow(ctx, query, code))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrLoanNotFound
		}
		return nil, err
	}
	return loan, nil
}

// List retrieves loans, optionally narrowed to the given statuses, newest first
func (r *LoanRepository) List(ctx context.Context, statuses []domain.LoanStatus) ([]*domain.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans`
	args := []interface{}{}
	if len(statuses) > 0 {
		values := make([]string, len(statuses))
		for i, s := range statuses {
			values[i] = string(s)
		}
		query += ` WHERE status = ANY($1)`
		args = append(args, values)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var loans []*domain.Loan
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		loans = append(loans, loan)
	}
	return loans, rows.Err()
}

// Update persists every mutable loan field
func (r *LoanRepository) Update(ctx context.Context, loan *domain.Loan) (*domain.Loan, error) {
	funded, err := decimalToPgNumeric(loan.FundedAmount)
	if err != nil {
		return nil, fmt.Errorf("invalid funded amount: %w", err)
	}
	disbursed, err := decimalToPgNumeric(loan.DisbursedAmount)
	if err != nil {
		return nil, fmt.Errorf("invalid disbursed amount: %w", err)
	}
	balance, err := decimalToPgNumeric(loan.CurrentBalance)
	if err != nil {
		return nil, fmt.Errorf("invalid current balance: %w", err)
	}
	ltv, err := decimalPtrToPgNumeric(loan.LTVRatio)
	if err != nil {
		return nil, fmt.Errorf("invalid ltv ratio: %w", err)
	}

	query := `
		UPDATE loans SET
			funded_amount = $2,
			disbursed_amount = $3,
			current_balance = $4,
			funding_deadline = $5,
			disbursement_date = $6,
			start_date = $7,
			maturity_date = $8,
			status = $9,
			ltv_ratio = $10,
			notes = $11,
			updated_at = now()
		WHERE id = $1
		RETURNING ` + loanColumns

	row := r.pool.QueryRow(ctx, query,
		loan.ID, funded, disbursed, balance,
		loan.FundingDeadline, loan.DisbursementDate, loan.StartDate, loan.MaturityDate,
		string(loan.Status), ltv, loan.Notes,
	)
	updated, err := scanLoan(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrLoanNotFound
		}
		return nil, err
	}
	return updated, nil
}

func scanLoan(row pgx.Row) (*domain.Loan, error) {
	var loan domain.Loan
	var requested, funded, disbursed, balance pgtype.Numeric
	var interestRate, commissionRate, investorRate, ltv pgtype.Numeric
	var status string

	err := row.Scan(
		&loan.ID, &loan.LoanCode, &loan.BorrowerID, &loan.PropertyID,
		&requested, &funded, &disbursed, &balance,
		&interestRate, &commissionRate, &investorRate,
		&loan.TermMonths, &loan.PaymentDay,
		&loan.ApplicationDate, &loan.FundingDeadline, &loan.DisbursementDate,
		&loan.StartDate, &loan.MaturityDate,
		&status, &ltv, &loan.Notes, &loan.CreatedBy,
		&loan.CreatedAt, &loan.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	loan.RequestedAmount = pgNumericToDecimal(requested)
	loan.FundedAmount = pgNumericToDecimal(funded)
	loan.DisbursedAmount = pgNumericToDecimal(disbursed)
	loan.CurrentBalance = pgNumericToDecimal(balance)
	loan.AnnualInterestRate = pgNumericToDecimal(interestRate)
	loan.CommissionRate = pgNumericToDecimal(commissionRate)
	loan.InvestorReturnRate = pgNumericToDecimal(investorRate)
	loan.LTVRatio = pgNumericToDecimalPtr(ltv)
	loan.Status = domain.LoanStatus(status)
	return &loan, nil
}
