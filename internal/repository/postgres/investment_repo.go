package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/proyecty/proyecty-backend/internal/domain"
	"github.com/shopspring/decimal"
)

// InvestmentRepository implements domain.InvestmentRepository using PostgreSQL
type InvestmentRepository struct {
	pool *pgxpool.Pool
}

// NewInvestmentRepository creates a new InvestmentRepository
func NewInvestmentRepository(pool *pgxpool.Pool) *InvestmentRepository {
	return &InvestmentRepository{pool: pool}
}

const investmentColumns = `
	id, loan_id, investor_id, committed_amount, transferred_amount,
	status, commitment_date, transfer_date, created_by, created_at, updated_at`

// Create inserts a new investment
func (r *InvestmentRepository) Create(ctx context.Context, investment *domain.Investment) (*domain.Investment, error) {
	committed, err := decimalToPgNumeric(investment.CommittedAmount)
	if err != nil {
		return nil, fmt.Errorf("invalid committed amount: %w", err)
	}
	transferred, err := decimalToPgNumeric(investment.TransferredAmount)
	if err != nil {
		return nil, fmt.Errorf("invalid transferred amount: %w", err)
	}

	query := `
		INSERT INTO investments (
			id, loan_id, investor_id, committed_amount, transferred_amount,
			status, commitment_date, created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + investmentColumns

	row := r.pool.QueryRow(ctx, query,
		investment.ID, investment.LoanID, investment.InvestorID,
		committed, transferred, string(investment.Status),
		investment.CommitmentDate, investment.CreatedBy,
		investment.CreatedAt, investment.UpdatedAt,
	)
	return scanInvestment(row)
}

// GetByID retrieves an investment by ID
func (r *InvestmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Investment, error) {
	query := `SELECT ` + investmentColumns + ` FROM investments WHERE id = $1`
	investment, err := scanInvestment(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrInvestmentNotFound
		}
		return nil, err
	}
	return investment, nil
}

// GetByLoanID retrieves all investments for a loan, oldest first
func (r *InvestmentRepository) GetByLoanID(ctx context.Context, loanID uuid.UUID) ([]*domain.Investment, error) {
	query := `SELECT ` + investmentColumns + ` FROM investments WHERE loan_id = $1 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query, loanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var investments []*domain.Investment
	for rows.Next() {
		investment, err := scanInvestment(rows)
		if err != nil {
			return nil, err
		}
		investments = append(investments, investment)
	}
	return investments, rows.Err()
}

// UpdateAmount updates the committed amount of an investment
func (r *InvestmentRepository) UpdateAmount(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (*domain.Investment, error) {
	committed, err := decimalToPgNumeric(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid committed amount: %w", err)
	}

	query := `
		UPDATE investments SET committed_amount = $2, updated_at = now()
		WHERE id = $1
		RETURNING ` + investmentColumns

	investment, err := scanInvestment(r.pool.QueryRow(ctx, query, id, committed))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrInvestmentNotFound
		}
		return nil, err
	}
	return investment, nil
}

// Delete removes an investment
func (r *InvestmentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM investments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInvestmentNotFound
	}
	return nil
}

// CountByLoanID counts non-cancelled investments for a loan
func (r *InvestmentRepository) CountByLoanID(ctx context.Context, loanID uuid.UUID) (int64, error) {
	var count int64
	query := `SELECT COUNT(*) FROM investments WHERE loan_id = $1 AND status <> 'cancelled'`
	if err := r.pool.QueryRow(ctx, query, loanID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func scanInvestment(row pgx.Row) (*domain.Investment, error) {
	var investment domain.Investment
	var committed, transferred pgtype.Numeric
	var status string

	err := row.Scan(
		&investment.ID, &investment.LoanID, &investment.InvestorID,
		&committed, &transferred, &status,
		&investment.CommitmentDate, &investment.TransferDate,
		&investment.CreatedBy, &investment.CreatedAt, &investment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	investment.CommittedAmount = pgNumericToDecimal(committed)
	investment.TransferredAmount = pgNumericToDecimal(transferred)
	investment.Status = domain.InvestmentStatus(status)
	return &investment, nil
}
