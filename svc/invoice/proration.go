// Package invoice covers the billing-period math and the unpaid-invoice
// bookkeeping the rest of the engine consumes. Amounts are decimals end to
// end; floats never touch money.
package invoice

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dmitrymomot/billingkit/svc/catalog"
)

var (
	ErrInvalidDateSequence = errors.New("invoice: end or target date precedes start date")
	ErrNoBillingPeriod     = errors.New("invoice: billing period has no duration")
)

// DefaultProRationScale is the decimal scale pro-ration fractions are
// rounded to, half up.
const DefaultProRationScale int32 = 13

// ProRationCalculator computes how many billing cycles an in-advance billed
// interval covers, including fractional leading and trailing periods.
type ProRationCalculator struct {
	scale int32
}

// NewProRationCalculator returns a calculator with the default scale.
func NewProRationCalculator() *ProRationCalculator {
	return &ProRationCalculator{scale: DefaultProRationScale}
}

// WithScale overrides the rounding scale.
func (c *ProRationCalculator) WithScale(scale int32) *ProRationCalculator {
	return &ProRationCalculator{scale: scale}
}

// NumberOfBillingCycles returns the decimal number of billing periods the
// interval [start, end) covers when billed in advance on billingCycleDay.
// A nil end means the interval is open-ended and is billed through the
// period in progress at targetDate.
//
// The first period is pro-rated when start falls between cycle dates; the
// fraction is measured against the enclosing full period, so a 14-day
// remainder of a quarter starting Feb 10 yields 14/89 while the same
// 14 days leading into a Mar 10 cycle yield 14/90.
func (c *ProRationCalculator) NumberOfBillingCycles(start time.Time, end *time.Time, targetDate time.Time, billingCycleDay int, period catalog.BillingPeriod) (decimal.Decimal, error) {
	months := period.Months()
	if months == 0 {
		return decimal.Zero, ErrNoBillingPeriod
	}
	if targetDate.Before(start) {
		return decimal.Zero, ErrInvalidDateSequence
	}
	if end != nil && end.Before(start) {
		return decimal.Zero, ErrInvalidDateSequence
	}

	total := decimal.Zero

	firstBCD := billingCycleDateOnOrAfter(start, billingCycleDay)
	if end != nil && end.Before(firstBCD) {
		// The whole interval fits before the first cycle date: one partial
		// stretch of the enclosing period.
		prev := addMonthsOnCycleDay(firstBCD, -months, billingCycleDay)
		return c.fraction(start, *end, prev, firstBCD), nil
	}

	if start.Before(firstBCD) {
		prev := addMonthsOnCycleDay(firstBCD, -months, billingCycleDay)
		total = total.Add(c.fraction(start, firstBCD, prev, firstBCD))
	}

	cycleStart := firstBCD
	for {
		cycleEnd := addMonthsOnCycleDay(cycleStart, months, billingCycleDay)

		if end == nil {
			// Open-ended: bill every period in advance as long as it has
			// started by the target date.
			if cycleStart.After(targetDate) {
				break
			}
			total = total.Add(decimal.NewFromInt(1))
		} else {
			if !cycleEnd.After(*end) {
				total = total.Add(decimal.NewFromInt(1))
			} else {
				if cycleStart.Before(*end) {
					total = total.Add(c.fraction(cycleStart, *end, cycleStart, cycleEnd))
				}
				break
			}
			if cycleEnd.Equal(*end) {
				break
			}
		}
		cycleStart = cycleEnd
	}

	return total, nil
}

// fraction returns days(from, to) / days(periodStart, periodEnd) at the
// configured scale, half up.
func (c *ProRationCalculator) fraction(from, to, periodStart, periodEnd time.Time) decimal.Decimal {
	num := decimal.NewFromInt(daysBetween(from, to))
	den := decimal.NewFromInt(daysBetween(periodStart, periodEnd))
	if den.IsZero() {
		return decimal.Zero
	}
	return num.DivRound(den, c.scale)
}

// daysBetween counts calendar days from a to b.
func daysBetween(a, b time.Time) int64 {
	ad := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bd := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int64(bd.Sub(ad).Hours() / 24)
}

// billingCycleDateOnOrAfter returns the first date on or after t whose day
// of month is billingCycleDay, clamped to the month's last day (BCD 31 in
// February resolves to the 28th or 29th).
func billingCycleDateOnOrAfter(t time.Time, billingCycleDay int) time.Time {
	candidate := onCycleDay(t.Year(), t.Month(), billingCycleDay, t.Location())
	if candidate.Before(startOfDay(t)) {
		next := t.AddDate(0, 1, -t.Day()+1) // first of next month
		candidate = onCycleDay(next.Year(), next.Month(), billingCycleDay, t.Location())
	}
	return candidate
}

// addMonthsOnCycleDay moves a cycle date by whole months, re-clamping to
// the cycle day so February never drags later months off their day.
func addMonthsOnCycleDay(t time.Time, months int, billingCycleDay int) time.Time {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location()).AddDate(0, months, 0)
	return onCycleDay(first.Year(), first.Month(), billingCycleDay, t.Location())
}

func onCycleDay(year int, month time.Month, day int, loc *time.Location) time.Time {
	if last := daysInMonth(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, 0, 0, 0, 0, loc)
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
