package reporting

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PGRepository provides PostgreSQL backed reporting queries.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

var _ Repository = (*PGRepository)(nil)

// CollectionSummary aggregates the school's ledger, optionally restricted to
// one academic year via the fee structure.
func (r *PGRepository) CollectionSummary(ctx context.Context, schoolID int64, yearID *int64) (CollectionSummary, error) {
	query := `
		SELECT
			COALESCE(SUM(sf.total_amount), 0),
			COALESCE(SUM(sf.discount_amount), 0),
			COALESCE(SUM(sf.paid_amount), 0),
			COALESCE(SUM(sf.outstanding_amount), 0),
			COUNT(*),
			COUNT(*) FILTER (WHERE sf.status = 'PENDING'),
			COUNT(*) FILTER (WHERE sf.status = 'PARTIAL'),
			COUNT(*) FILTER (WHERE sf.status = 'PAID')
		FROM student_fees sf
		JOIN fee_structures fs ON fs.id = sf.fee_structure_id
		WHERE sf.school_id = $1 AND ($2::bigint IS NULL OR fs.academic_year_id = $2)
	`
	var s CollectionSummary
	var billed, discount, collected, outstanding pgtype.Numeric
	err := r.pool.QueryRow(ctx, query, schoolID, yearID).Scan(
		&billed, &discount, &collected, &outstanding,
		&s.Ledgers, &s.Pending, &s.Partial, &s.Paid,
	)
	if err != nil {
		return CollectionSummary{}, err
	}
	s.TotalBilled = dec(billed)
	s.TotalDiscount = dec(discount)
	s.TotalCollected = dec(collected)
	s.TotalOutstanding = dec(outstanding)
	return s, nil
}

// PaymentModeBreakdown totals collections by mode over a date range,
// excluding payments whose receipt was cancelled.
func (r *PGRepository) PaymentModeBreakdown(ctx context.Context, schoolID int64, from, to time.Time) ([]ModeBreakdownRow, error) {
	query := `
		SELECT p.mode, COUNT(*), COALESCE(SUM(p.amount), 0)
		FROM fee_payments p
		JOIN student_fees sf ON sf.id = p.student_fee_id
		JOIN fee_receipts rc ON rc.payment_id = p.id AND NOT rc.is_cancelled
		WHERE sf.school_id = $1 AND p.payment_date >= $2 AND p.payment_date <= $3
		GROUP BY p.mode
		ORDER BY 3 DESC
	`
	rows, err := r.pool.Query(ctx, query, schoolID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ModeBreakdownRow
	for rows.Next() {
		var row ModeBreakdownRow
		var amount pgtype.Numeric
		if err := rows.Scan(&row.Mode, &row.Payments, &amount); err != nil {
			return nil, err
		}
		row.Amount = dec(amount)
		out = append(out, row)
	}
	return out, rows.Err()
}

// Defaulters lists ledger rows behind their installment schedule as of a
// date: the amount due across past-due installments, capped at the net
// amount, exceeds what has been paid.
func (r *PGRepository) Defaulters(ctx context.Context, schoolID int64, asOf time.Time) ([]DefaulterRow, error) {
	query := `
		SELECT sf.id, sf.student_id, st.full_name, sf.outstanding_amount,
		       MIN(i.due_date), COUNT(i.id)
		FROM student_fees sf
		JOIN students st ON st.id = sf.student_id
		JOIN fee_installments i ON i.fee_structure_id = sf.fee_structure_id AND i.due_date < $2
		WHERE sf.school_id = $1 AND sf.outstanding_amount > 0
		GROUP BY sf.id, sf.student_id, st.full_name, sf.outstanding_amount,
		         sf.net_amount, sf.paid_amount
		HAVING LEAST(SUM(i.amount), sf.net_amount) > sf.paid_amount
		ORDER BY sf.outstanding_amount DESC
	`
	rows, err := r.pool.Query(ctx, query, schoolID, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DefaulterRow
	for rows.Next() {
		var row DefaulterRow
		var outstanding pgtype.Numeric
		if err := rows.Scan(&row.StudentFeeID, &row.StudentID, &row.StudentName,
			&outstanding, &row.OverdueSince, &row.InstallmentsOverdue); err != nil {
			return nil, err
		}
		row.Outstanding = dec(outstanding)
		out = append(out, row)
	}
	return out, rows.Err()
}

// CountOverdueInstallments counts past-due installments on ledgers that have
// not covered them, across all schools. The overdue scan job publishes this
// as a gauge.
func (r *PGRepository) CountOverdueInstallments(ctx context.Context, asOf time.Time) (int, error) {
	query := `
		SELECT COALESCE(SUM(n), 0) FROM (
			SELECT COUNT(i.id) AS n
			FROM student_fees sf
			JOIN fee_installments i ON i.fee_structure_id = sf.fee_structure_id AND i.due_date < $1
			WHERE sf.outstanding_amount > 0
			GROUP BY sf.id, sf.net_amount, sf.paid_amount
			HAVING LEAST(SUM(i.amount), sf.net_amount) > sf.paid_amount
		) overdue
	`
	var n int
	if err := r.pool.QueryRow(ctx, query, asOf).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func dec(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}
