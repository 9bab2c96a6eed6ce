package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrPropertyNotFound = errors.New("property not found")

// Property is the collateral backing a loan. The engine only reads it; the
// property catalog owns its lifecycle.
type Property struct {
	ID              uuid.UUID        `json:"id"`
	PropertyName    string           `json:"propertyName"`
	PropertyType    string           `json:"propertyType"`
	Address         string           `json:"address"`
	Neighborhood    *string          `json:"neighborhood,omitempty"`
	City            string           `json:"city"`
	Department      string           `json:"department"`
	AppraisalValue  *decimal.Decimal `json:"appraisalValue,omitempty"`
	AppraisalDate   *time.Time       `json:"appraisalDate,omitempty"`
	CommercialValue *decimal.Decimal `json:"commercialValue,omitempty"`
	Photos          []string         `json:"photos"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

type PropertyRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Property, error)
	AddPhoto(ctx context.Context, id uuid.UUID, photoURL string) (*Property, error)
}
