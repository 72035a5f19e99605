package fees

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func academicYear2026() (time.Time, time.Time) {
	start := time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2027, time.March, 31, 0, 0, 0, 0, time.UTC)
	return start, end
}

func sumSpecs(specs []InstallmentSpec) decimal.Decimal {
	total := decimal.Zero
	for _, s := range specs {
		total = total.Add(s.Amount)
	}
	return total
}

func TestGenerateScheduleCounts(t *testing.T) {
	start, end := academicYear2026()
	total := decimal.RequireFromString("12000.00")

	cases := []struct {
		periodicity Periodicity
		count       int
	}{
		{PeriodicityAnnual, 1},
		{PeriodicitySemiAnnual, 2},
		{PeriodicityQuarterly, 4},
		{PeriodicityMonthly, 12},
	}
	for _, tc := range cases {
		t.Run(string(tc.periodicity), func(t *testing.T) {
			specs, err := GenerateSchedule(total, tc.periodicity, start, end)
			require.NoError(t, err)
			require.Len(t, specs, tc.count)
			assert.True(t, sumSpecs(specs).Equal(total), "installments must sum to total")
			for i, s := range specs {
				assert.Equal(t, i+1, s.Number)
			}
		})
	}
}

func TestGenerateScheduleDueDates(t *testing.T) {
	start, end := academicYear2026()
	total := decimal.RequireFromString("12000.00")

	specs, err := GenerateSchedule(total, PeriodicityAnnual, start, end)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.May, 15, 0, 0, 0, 0, time.UTC), specs[0].DueDate)

	specs, err = GenerateSchedule(total, PeriodicitySemiAnnual, start, end)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.May, 15, 0, 0, 0, 0, time.UTC), specs[0].DueDate)
	assert.Equal(t, time.Date(2026, time.November, 15, 0, 0, 0, 0, time.UTC), specs[1].DueDate)

	specs, err = GenerateSchedule(total, PeriodicityQuarterly, start, end)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.May, 15, 0, 0, 0, 0, time.UTC), specs[0].DueDate)
	assert.Equal(t, time.Date(2026, time.August, 15, 0, 0, 0, 0, time.UTC), specs[1].DueDate)
	assert.Equal(t, time.Date(2026, time.November, 15, 0, 0, 0, 0, time.UTC), specs[2].DueDate)
	assert.Equal(t, time.Date(2027, time.February, 15, 0, 0, 0, 0, time.UTC), specs[3].DueDate)

	specs, err = GenerateSchedule(total, PeriodicityMonthly, start, end)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.April, 15, 0, 0, 0, 0, time.UTC), specs[0].DueDate)
	assert.Equal(t, time.Date(2027, time.March, 15, 0, 0, 0, 0, time.UTC), specs[11].DueDate)
}

func TestGenerateScheduleEvenSplit(t *testing.T) {
	start, end := academicYear2026()
	specs, err := GenerateSchedule(decimal.RequireFromString("12000.00"), PeriodicityMonthly, start, end)
	require.NoError(t, err)
	for _, s := range specs {
		assert.True(t, s.Amount.Equal(decimal.RequireFromString("1000")), "12000 over 12 months splits evenly, got %s", s.Amount)
	}
}

func TestGenerateScheduleRemainderOnFirst(t *testing.T) {
	start, end := academicYear2026()

	// 1000 over 4 quarters with a non-terminating thirds case mixed in.
	specs, err := GenerateSchedule(decimal.RequireFromString("1000.03"), PeriodicityQuarterly, start, end)
	require.NoError(t, err)
	assert.True(t, specs[0].Amount.Equal(decimal.RequireFromString("250.03")))
	for _, s := range specs[1:] {
		assert.True(t, s.Amount.Equal(decimal.RequireFromString("250.00")))
	}
	assert.True(t, sumSpecs(specs).Equal(decimal.RequireFromString("1000.03")))

	// 100 over 12 months does not divide; truncation remainder lands on the
	// first installment and the sum law still holds.
	specs, err = GenerateSchedule(decimal.RequireFromString("100.00"), PeriodicityMonthly, start, end)
	require.NoError(t, err)
	assert.True(t, specs[0].Amount.Equal(decimal.RequireFromString("8.37")), "got %s", specs[0].Amount)
	for _, s := range specs[1:] {
		assert.True(t, s.Amount.Equal(decimal.RequireFromString("8.33")))
	}
	assert.True(t, sumSpecs(specs).Equal(decimal.RequireFromString("100.00")))
}

func TestGenerateScheduleMonthEndStart(t *testing.T) {
	// A span starting on the 29th-31st must not let date normalization skip
	// or double up months.
	start := time.Date(2026, time.August, 31, 0, 0, 0, 0, time.UTC)
	end := time.Date(2027, time.July, 31, 0, 0, 0, 0, time.UTC)
	total := decimal.RequireFromString("1200.00")

	specs, err := GenerateSchedule(total, PeriodicityMonthly, start, end)
	require.NoError(t, err)
	require.Len(t, specs, 12)

	seen := make(map[string]int)
	for _, s := range specs {
		assert.Equal(t, 15, s.DueDate.Day())
		seen[s.DueDate.Format("2006-01")]++
	}
	for month, n := range seen {
		assert.Equal(t, 1, n, "month %s has %d installments", month, n)
	}
	assert.Equal(t, time.Date(2026, time.August, 15, 0, 0, 0, 0, time.UTC), specs[0].DueDate)
	assert.Equal(t, time.Date(2027, time.July, 15, 0, 0, 0, 0, time.UTC), specs[11].DueDate)
	assert.True(t, sumSpecs(specs).Equal(total))

	// Jan 31 + 1 month must land in February, not March.
	start = time.Date(2026, time.January, 31, 0, 0, 0, 0, time.UTC)
	end = time.Date(2026, time.December, 31, 0, 0, 0, 0, time.UTC)
	specs, err = GenerateSchedule(total, PeriodicityAnnual, start, end)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.February, 15, 0, 0, 0, 0, time.UTC), specs[0].DueDate)

	specs, err = GenerateSchedule(total, PeriodicityQuarterly, start, end)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.February, 15, 0, 0, 0, 0, time.UTC), specs[0].DueDate)
	assert.Equal(t, time.Date(2026, time.May, 15, 0, 0, 0, 0, time.UTC), specs[1].DueDate)
	assert.Equal(t, time.Date(2026, time.August, 15, 0, 0, 0, 0, time.UTC), specs[2].DueDate)
	assert.Equal(t, time.Date(2026, time.November, 15, 0, 0, 0, 0, time.UTC), specs[3].DueDate)
}

func TestGenerateScheduleRejectsBadInput(t *testing.T) {
	start, end := academicYear2026()

	_, err := GenerateSchedule(decimal.Zero, PeriodicityMonthly, start, end)
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = GenerateSchedule(decimal.RequireFromString("100"), Periodicity("WEEKLY"), start, end)
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = GenerateSchedule(decimal.RequireFromString("100"), PeriodicityMonthly, end, start)
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = GenerateSchedule(decimal.RequireFromString("100"), PeriodicityMonthly, time.Time{}, end)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestRecomputeLedger(t *testing.T) {
	d := decimal.RequireFromString

	net, outstanding, status := RecomputeLedger(d("12000"), d("0"), d("0"))
	assert.True(t, net.Equal(d("12000")))
	assert.True(t, outstanding.Equal(d("12000")))
	assert.Equal(t, StatusPending, status)

	net, outstanding, status = RecomputeLedger(d("12000"), d("1200"), d("5000"))
	assert.True(t, net.Equal(d("10800")))
	assert.True(t, outstanding.Equal(d("5800")))
	assert.Equal(t, StatusPartial, status)

	net, outstanding, status = RecomputeLedger(d("12000"), d("1200"), d("10800"))
	assert.True(t, net.Equal(d("10800")))
	assert.True(t, outstanding.IsZero())
	assert.Equal(t, StatusPaid, status)

	// A fully discounted ledger is PAID with no payment at all.
	_, outstanding, status = RecomputeLedger(d("500"), d("500"), d("0"))
	assert.True(t, outstanding.IsZero())
	assert.Equal(t, StatusPaid, status)
}

func TestFormatReceiptNumber(t *testing.T) {
	at := time.Date(2026, time.August, 29, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "RCP26080001", FormatReceiptNumber(at, 1))
	assert.Equal(t, "RCP26080042", FormatReceiptNumber(at, 42))

	january := time.Date(2027, time.January, 2, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "RCP27010001", FormatReceiptNumber(january, 1))
}
