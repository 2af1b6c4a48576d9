package invoice_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingkit/svc/catalog"
	"github.com/dmitrymomot/billingkit/svc/invoice"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ratio(num, den int64) decimal.Decimal {
	return decimal.NewFromInt(num).DivRound(decimal.NewFromInt(den), invoice.DefaultProRationScale)
}

func TestNumberOfBillingCycles(t *testing.T) {
	calc := invoice.NewProRationCalculator()

	t.Run("whole months, aligned start", func(t *testing.T) {
		end := day(2014, 5, 10)
		got, err := calc.NumberOfBillingCycles(day(2014, 2, 10), &end, day(2014, 5, 10), 10, catalog.PeriodMonthly)
		require.NoError(t, err)
		assert.True(t, got.Equal(decimal.NewFromInt(3)), "got %s", got)
	})

	t.Run("trailing fraction measured against the enclosing quarter", func(t *testing.T) {
		// Feb 10 to Feb 24 is 14 days of the Feb 10 - May 10 quarter (89 days).
		end := day(2013, 2, 24)
		got, err := calc.NumberOfBillingCycles(day(2013, 2, 10), &end, day(2013, 2, 24), 10, catalog.PeriodQuarterly)
		require.NoError(t, err)
		assert.True(t, got.Equal(ratio(14, 89)), "got %s, want 14/89", got)
	})

	t.Run("leading fraction measured against the previous quarter", func(t *testing.T) {
		// Feb 24 to Mar 10 is 14 days of the Dec 10 - Mar 10 quarter (90 days).
		end := day(2013, 3, 10)
		got, err := calc.NumberOfBillingCycles(day(2013, 2, 24), &end, day(2013, 3, 10), 10, catalog.PeriodQuarterly)
		require.NoError(t, err)
		assert.True(t, got.Equal(ratio(14, 90)), "got %s, want 14/90", got)
	})

	t.Run("quarterly trial cut-over, both sides of the phase change", func(t *testing.T) {
		// Subscription created 2011-02-10 on a quarterly plan with BCD 10;
		// a 14-day trial ends 2011-02-24 and the target date is 2011-03-06.
		// The trial item covers 14 of the 89 days of the Feb 10 - May 10
		// quarter; the follow-on item covers 14 of the 90 days of the
		// Dec 10 - Mar 10 quarter it leads into.
		trialEnd := day(2011, 2, 24)
		trial, err := calc.NumberOfBillingCycles(day(2011, 2, 10), &trialEnd, day(2011, 3, 6), 10, catalog.PeriodQuarterly)
		require.NoError(t, err)
		assert.True(t, trial.Equal(ratio(14, 89)), "got %s, want 14/89", trial)

		evergreen, err := calc.NumberOfBillingCycles(day(2011, 2, 24), nil, day(2011, 3, 6), 10, catalog.PeriodQuarterly)
		require.NoError(t, err)
		assert.True(t, evergreen.Equal(ratio(14, 90)), "got %s, want 14/90", evergreen)
	})

	t.Run("leading fraction plus whole periods", func(t *testing.T) {
		// Jan 20 to Feb 10 leads into two full monthly cycles ending Apr 10.
		// The leading 21 days sit in the Jan 10 - Feb 10 month (31 days).
		end := day(2014, 4, 10)
		got, err := calc.NumberOfBillingCycles(day(2014, 1, 20), &end, day(2014, 4, 10), 10, catalog.PeriodMonthly)
		require.NoError(t, err)
		want := ratio(21, 31).Add(decimal.NewFromInt(2))
		assert.True(t, got.Equal(want), "got %s, want %s", got, want)
	})

	t.Run("open-ended bills through the period containing the target", func(t *testing.T) {
		// Aligned start Jan 10, target Mar 15: cycles starting Jan 10, Feb 10
		// and Mar 10 have all begun by the target.
		got, err := calc.NumberOfBillingCycles(day(2014, 1, 10), nil, day(2014, 3, 15), 10, catalog.PeriodMonthly)
		require.NoError(t, err)
		assert.True(t, got.Equal(decimal.NewFromInt(3)), "got %s", got)
	})

	t.Run("open-ended with unaligned start", func(t *testing.T) {
		// Jan 20 start, target Feb 10: leading 21/31 plus the Feb 10 cycle
		// that starts exactly on the target.
		got, err := calc.NumberOfBillingCycles(day(2014, 1, 20), nil, day(2014, 2, 10), 10, catalog.PeriodMonthly)
		require.NoError(t, err)
		want := ratio(21, 31).Add(decimal.NewFromInt(1))
		assert.True(t, got.Equal(want), "got %s, want %s", got, want)
	})

	t.Run("cycle day clamps in short months", func(t *testing.T) {
		// BCD 31: January bills on the 31st, February on the 28th.
		end := day(2014, 2, 28)
		got, err := calc.NumberOfBillingCycles(day(2014, 1, 31), &end, day(2014, 2, 28), 31, catalog.PeriodMonthly)
		require.NoError(t, err)
		assert.True(t, got.Equal(decimal.NewFromInt(1)), "got %s", got)
	})

	t.Run("annual period", func(t *testing.T) {
		end := day(2016, 7, 1)
		got, err := calc.NumberOfBillingCycles(day(2014, 7, 1), &end, day(2016, 7, 1), 1, catalog.PeriodAnnual)
		require.NoError(t, err)
		assert.True(t, got.Equal(decimal.NewFromInt(2)), "got %s", got)
	})

	t.Run("zero-length interval", func(t *testing.T) {
		end := day(2014, 2, 10)
		got, err := calc.NumberOfBillingCycles(day(2014, 2, 10), &end, day(2014, 2, 10), 10, catalog.PeriodMonthly)
		require.NoError(t, err)
		assert.True(t, got.IsZero(), "got %s", got)
	})

	t.Run("target before start", func(t *testing.T) {
		_, err := calc.NumberOfBillingCycles(day(2014, 2, 10), nil, day(2014, 1, 1), 10, catalog.PeriodMonthly)
		assert.ErrorIs(t, err, invoice.ErrInvalidDateSequence)
	})

	t.Run("end before start", func(t *testing.T) {
		end := day(2014, 1, 1)
		_, err := calc.NumberOfBillingCycles(day(2014, 2, 10), &end, day(2014, 2, 10), 10, catalog.PeriodMonthly)
		assert.ErrorIs(t, err, invoice.ErrInvalidDateSequence)
	})

	t.Run("no billing period", func(t *testing.T) {
		_, err := calc.NumberOfBillingCycles(day(2014, 2, 10), nil, day(2014, 3, 10), 10, catalog.PeriodNone)
		assert.ErrorIs(t, err, invoice.ErrNoBillingPeriod)
	})
}

func TestWithScale(t *testing.T) {
	calc := invoice.NewProRationCalculator().WithScale(4)

	end := day(2013, 2, 24)
	got, err := calc.NumberOfBillingCycles(day(2013, 2, 10), &end, day(2013, 2, 24), 10, catalog.PeriodQuarterly)
	require.NoError(t, err)

	want := decimal.NewFromInt(14).DivRound(decimal.NewFromInt(89), 4)
	assert.True(t, got.Equal(want), "got %s, want %s", got, want)
	assert.Equal(t, "0.1573", got.String())
}
