package postgres

import (
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// decimalToPgNumeric converts a shopspring decimal to a pgtype.Numeric
func decimalToPgNumeric(d decimal.Decimal) (pgtype.Numeric, error) {
	var num pgtype.Numeric
	if err := num.Scan(d.String()); err != nil {
		return pgtype.Numeric{}, err
	}
	return num, nil
}

// pgNumericToDecimal converts a pgtype.Numeric to a shopspring decimal
func pgNumericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	if n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}

// pgNumericToDecimalPtr converts a nullable numeric to a *decimal.Decimal
func pgNumericToDecimalPtr(n pgtype.Numeric) *decimal.Decimal {
	if !n.Valid {
		return nil
	}
	d := pgNumericToDecimal(n)
	return &d
}

// decimalPtrToPgNumeric converts an optional decimal to a nullable numeric
func decimalPtrToPgNumeric(d *decimal.Decimal) (pgtype.Numeric, error) {
	if d == nil {
		return pgtype.Numeric{}, nil
	}
	return decimalToPgNumeric(*d)
}
