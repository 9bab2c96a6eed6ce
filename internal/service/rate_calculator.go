package service

import "github.com/shopspring/decimal"

// Pure rate and ratio math. Rates are stored annualized for consistency; the
// console and all computation work in monthly rates. Inputs are pre-validated
// by callers; no rounding is applied until a final currency amount is
// computed.

var (
	twelve  = decimal.NewFromInt(12)
	hundred = decimal.NewFromInt(100)
)

// MonthlyToAnnual converts a monthly rate to its stored annualized form.
func MonthlyToAnnual(rate decimal.Decimal) decimal.Decimal {
	return rate.Mul(twelve)
}

// AnnualToMonthly converts a stored annualized rate back to a monthly rate.
func AnnualToMonthly(rate decimal.Decimal) decimal.Decimal {
	return rate.Div(twelve)
}

// LTV returns the loan-to-value ratio as a percentage with one decimal, and
// false when the property has no appraisal. A missing appraisal is not a 0%
// LTV; callers must keep the two distinguishable.
func LTV(requestedAmount, appraisalValue decimal.Decimal) (decimal.Decimal, bool) {
	if appraisalValue.LessThanOrEqual(decimal.Zero) {
		return decimal.Decimal{}, false
	}
	return requestedAmount.Div(appraisalValue).Mul(hundred).Round(1), true
}

// FundingProgress returns the percentage of the requested amount committed by
// investors, capped at 100.
func FundingProgress(fundedAmount, requestedAmount decimal.Decimal) decimal.Decimal {
	progress := fundedAmount.Div(requestedAmount).Mul(hundred)
	if progress.GreaterThan(hundred) {
		return hundred
	}
	return progress
}

// SuggestedInterest is the interest due for one month on the outstanding
// balance at the given monthly rate, rounded to whole currency units. It is a
// suggestion surfaced to the operator, never an enforced amount.
func SuggestedInterest(currentBalance, monthlyRate decimal.Decimal) decimal.Decimal {
	return currentBalance.Mul(monthlyRate).Div(hundred).Round(0)
}
