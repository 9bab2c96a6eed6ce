package util

import "time"

// PaymentDate returns the actual payment date for a target day in a given
// month, clamping to the last day for short months (day 28 is the configured
// maximum, but February in non-leap years still needs the clamp for safety).
func PaymentDate(year int, month time.Month, targetDay int) time.Time {
	// Last day of month via day 0 of the next month
	lastDay := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()

	actualDay := targetDay
	if actualDay > lastDay {
		actualDay = lastDay
	}

	return time.Date(year, month, actualDay, 0, 0, 0, 0, time.UTC)
}

// MaturityDate returns the final payment date for a loan disbursed at start,
// running termMonths months with payments on paymentDay.
func MaturityDate(start time.Time, termMonths int, paymentDay int) time.Time {
	target := start.AddDate(0, termMonths, 0)
	return PaymentDate(target.Year(), target.Month(), paymentDay)
}
