package bhyt

import "time"

const (
	// waitingPeriodDays is the statutory wait before a first-time (or lapsed)
	// card becomes active.
	waitingPeriodDays = 30
	// continuityGapLimitDays is the largest coverage gap, in whole days, that
	// still counts as a continuous renewal. Day 90 itself is continuous; the
	// lapse rule applies strictly above it.
	continuityGapLimitDays = 90
)

type CardValidityInput struct {
	MonthsPaid int
	// OldCardExpiry is the zero time for a first-time enrollment.
	OldCardExpiry time.Time
	ReceiptDate   time.Time
}

// CardValidityResult holds the new card's validity window. Both dates are the
// zero time when the input was incomplete.
type CardValidityResult struct {
	StartDate time.Time
	EndDate   time.Time
}

func (r CardValidityResult) IsZero() bool {
	return r.StartDate.IsZero() && r.EndDate.IsZero()
}

// ComputeCardValidity derives the new card window from the receipt date, the
// number of months purchased, and the previous card's expiry (if any).
//
// First-time enrollments wait 30 days from the receipt date. Renewals start
// the day after the old card expired, unless the gap between expiry and
// receipt exceeds 90 days, in which case the enrollment is treated as lapsed
// and the 30-day wait applies again. The end date is MonthsPaid calendar
// months after the start, inclusive (minus one day), with month addition
// clamped to the target month's length.
func ComputeCardValidity(in CardValidityInput) CardValidityResult {
	if in.MonthsPaid <= 0 || in.ReceiptDate.IsZero() {
		return CardValidityResult{}
	}

	var start time.Time
	switch {
	case in.OldCardExpiry.IsZero():
		start = in.ReceiptDate.AddDate(0, 0, waitingPeriodDays)
	case gapDays(in.OldCardExpiry, in.ReceiptDate) > continuityGapLimitDays:
		start = in.ReceiptDate.AddDate(0, 0, waitingPeriodDays)
	default:
		start = in.OldCardExpiry.AddDate(0, 0, 1)
	}

	end := addMonthsClamped(start, in.MonthsPaid).AddDate(0, 0, -1)
	return CardValidityResult{StartDate: start, EndDate: end}
}

// gapDays is the whole-day gap from expiry to receipt, rounded up.
func gapDays(expiry, receipt time.Time) int {
	diff := receipt.Sub(expiry)
	days := int(diff / (24 * time.Hour))
	if diff > 0 && diff%(24*time.Hour) != 0 {
		days++
	}
	return days
}

// addMonthsClamped adds calendar months, clamping the day of month so that
// e.g. Jan 31 + 1 month lands on the last day of February instead of
// normalizing into March.
func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	total := int(m) - 1 + months
	y += total / 12
	m = time.Month(total%12 + 1)

	if last := daysInMonth(y, m); d > last {
		d = last
	}
	hh, mm, ss := t.Clock()
	return time.Date(y, m, d, hh, mm, ss, t.Nanosecond(), t.Location())
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
