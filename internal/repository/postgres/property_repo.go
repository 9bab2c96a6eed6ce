package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/proyecty/proyecty-backend/internal/domain"
)

// PropertyRepository implements domain.PropertyRepository using PostgreSQL
type PropertyRepository struct {
	pool *pgxpool.Pool
}

// NewPropertyRepository creates a new PropertyRepository
func NewPropertyRepository(pool *pgxpool.Pool) *PropertyRepository {
	return &PropertyRepository{pool: pool}
}

const propertyColumns = `
	id, property_name, property_type, address, neighborhood, city, department,
	appraisal_value, appraisal_date, commercial_value, photos, created_at, updated_at`

// GetByID retrieves a property by ID
func (r *PropertyRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Property, error) {
	query := `SELECT ` + propertyColumns + ` FROM properties WHERE id = $1`
	property, err := scanProperty(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrPropertyNotFound
		}
		return nil, err
	}
	return property, nil
}

// AddPhoto appends a photo path to the property's photo list
func (r *PropertyRepository) AddPhoto(ctx context.Context, id uuid.UUID, photoURL string) (*domain.Property, error) {
	query := `
		UPDATE properties
		SET photos = array_append(photos, $2), updated_at = now()
		WHERE id = $1
		RETURNING ` + propertyColumns

	property, err := scanProperty(r.pool.QueryRow(ctx, query, id, photoURL))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrPropertyNotFound
		}
		return nil, err
	}
	return property, nil
}

func scanProperty(row pgx.Row) (*domain.Property, error) {
	var property domain.Property
	var appraisal, commercial pgtype.Numeric

	err := row.Scan(
		&property.ID, &property.PropertyName, &property.PropertyType,
		&property.Address, &property.Neighborhood, &property.City, &property.Department,
		&appraisal, &property.AppraisalDate, &commercial, &property.Photos,
		&property.CreatedAt, &property.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	property.AppraisalValue = pgNumericToDecimalPtr(appraisal)
	property.CommercialValue = pgNumericToDecimalPtr(commercial)
	return &property, nil
}
