// Package reporting derives read-only views from the fee ledger: collection
// totals, payment-mode breakdowns and overdue analysis. OVERDUE is computed
// here against the clock; the ledger itself never stores it.
package reporting

import (
	"time"

	"github.com/shopspring/decimal"
)

// CollectionSummary aggregates a school's ledger rows.
type CollectionSummary struct {
	TotalBilled      decimal.Decimal `json:"total_billed"`
	TotalDiscount    decimal.Decimal `json:"total_discount"`
	TotalCollected   decimal.Decimal `json:"total_collected"`
	TotalOutstanding decimal.Decimal `json:"total_outstanding"`
	Ledgers          int             `json:"ledgers"`
	Pending          int             `json:"pending"`
	Partial          int             `json:"partial"`
	Paid             int             `json:"paid"`
}

// ModeBreakdownRow totals collected amounts by payment mode. Payments whose
// receipt was cancelled are excluded.
type ModeBreakdownRow struct {
	Mode     string          `json:"mode"`
	Payments int             `json:"payments"`
	Amount   decimal.Decimal `json:"amount"`
}

// DefaulterRow is a ledger row whose schedule has fallen behind: the amount
// due across past-due installments exceeds what has been paid.
type DefaulterRow struct {
	StudentFeeID        int64           `json:"student_fee_id"`
	StudentID           int64           `json:"student_id"`
	StudentName         string          `json:"student_name"`
	Outstanding         decimal.Decimal `json:"outstanding"`
	OverdueSince        time.Time       `json:"overdue_since"`
	InstallmentsOverdue int             `json:"installments_overdue"`
}

// Dashboard is the combined view served to the fee-collection dashboard.
type Dashboard struct {
	Summary     CollectionSummary  `json:"summary"`
	Modes       []ModeBreakdownRow `json:"modes"`
	Defaulters  []DefaulterRow     `json:"defaulters"`
	GeneratedAt time.Time          `json:"generated_at"`
}
