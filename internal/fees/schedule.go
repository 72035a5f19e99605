package fees

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// InstallmentSpec is an installment before persistence assigns it an ID.
type InstallmentSpec struct {
	Number      int
	DueDate     time.Time
	Amount      decimal.Decimal
	Description string
}

// GenerateSchedule splits total into dated installments for the given
// academic year span. The per-installment amounts always sum exactly to
// total: the even share is truncated to two decimal places and any remainder
// is folded into the first installment.
func GenerateSchedule(total decimal.Decimal, p Periodicity, yearStart, yearEnd time.Time) ([]InstallmentSpec, error) {
	if !total.IsPositive() {
		return nil, invalid("schedule total must be positive")
	}
	if yearStart.IsZero() || yearEnd.IsZero() || !yearStart.Before(yearEnd) {
		return nil, invalid("academic year span is invalid")
	}

	// Month offsets are applied to the first of the start month. AddDate on
	// the raw start date normalizes month-end days (Aug 31 + 1 month is
	// Oct 1), which would skip and double up months.
	anchor := time.Date(yearStart.Year(), yearStart.Month(), 1, 0, 0, 0, 0, yearStart.Location())

	var dues []time.Time
	switch p {
	case PeriodicityAnnual:
		dues = []time.Time{midMonth(anchor.AddDate(0, 1, 0))}
	case PeriodicitySemiAnnual:
		dues = []time.Time{
			midMonth(anchor.AddDate(0, 1, 0)),
			midMonth(anchor.AddDate(0, 7, 0)),
		}
	case PeriodicityQuarterly:
		dues = []time.Time{
			midMonth(anchor.AddDate(0, 1, 0)),
			midMonth(anchor.AddDate(0, 4, 0)),
			midMonth(anchor.AddDate(0, 7, 0)),
			midMonth(anchor.AddDate(0, 10, 0)),
		}
	case PeriodicityMonthly:
		months := monthsInclusive(yearStart, yearEnd)
		if months < 1 {
			return nil, invalid("academic year span is invalid")
		}
		dues = make([]time.Time, 0, months)
		for i := 0; i < months; i++ {
			dues = append(dues, midMonth(anchor.AddDate(0, i, 0)))
		}
	default:
		return nil, invalid("invalid installment periodicity")
	}

	amounts := splitEven(total, len(dues))
	specs := make([]InstallmentSpec, len(dues))
	for i, due := range dues {
		specs[i] = InstallmentSpec{
			Number:      i + 1,
			DueDate:     due,
			Amount:      amounts[i],
			Description: fmt.Sprintf("Installment %d of %d", i+1, len(dues)),
		}
	}
	return specs, nil
}

// splitEven divides total into n two-decimal parts that sum exactly to
// total. The truncation remainder lands on the first part.
func splitEven(total decimal.Decimal, n int) []decimal.Decimal {
	count := decimal.NewFromInt(int64(n))
	base := total.Div(count).RoundDown(2)
	remainder := total.Sub(base.Mul(count))
	parts := make([]decimal.Decimal, n)
	for i := range parts {
		parts[i] = base
	}
	parts[0] = parts[0].Add(remainder)
	return parts
}

// midMonth pins a date to the 15th of its calendar month.
func midMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 15, 0, 0, 0, 0, t.Location())
}

func monthsInclusive(start, end time.Time) int {
	return (end.Year()-start.Year())*12 + int(end.Month()) - int(start.Month()) + 1
}
