package fees

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/scholaris-erp/scholaris-erp/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for the fees module.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

// ============================================================================
// FEE TYPE OPERATIONS
// ============================================================================

func (r *Repository) InsertFeeType(ctx context.Context, ft FeeType) (FeeType, error) {
	query := `
		INSERT INTO fee_types (school_id, name, code, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err := r.pool.QueryRow(ctx, query,
		ft.SchoolID, ft.Name, ft.Code, ft.IsActive, ft.CreatedAt, ft.UpdatedAt,
	).Scan(&ft.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return FeeType{}, ErrFeeTypeExists
		}
		return FeeType{}, err
	}
	return ft, nil
}

func (r *Repository) GetFeeType(ctx context.Context, schoolID, id int64) (FeeType, error) {
	query := `
		SELECT id, school_id, name, code, is_active, created_at, updated_at
		FROM fee_types
		WHERE id = $1 AND school_id = $2
	`
	var ft FeeType
	err := r.pool.QueryRow(ctx, query, id, schoolID).Scan(
		&ft.ID, &ft.SchoolID, &ft.Name, &ft.Code, &ft.IsActive, &ft.CreatedAt, &ft.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FeeType{}, ErrNotFound
		}
		return FeeType{}, err
	}
	return ft, nil
}

func (r *Repository) ListFeeTypes(ctx context.Context, schoolID int64, activeOnly bool) ([]FeeType, error) {
	query := `
		SELECT id, school_id, name, code, is_active, created_at, updated_at
		FROM fee_types
		WHERE school_id = $1 AND ($2 = false OR is_active)
		ORDER BY name
	`
	rows, err := r.pool.Query(ctx, query, schoolID, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FeeType
	for rows.Next() {
		var ft FeeType
		if err := rows.Scan(&ft.ID, &ft.SchoolID, &ft.Name, &ft.Code, &ft.IsActive, &ft.CreatedAt, &ft.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, ft)
	}
	return out, rows.Err()
}

func (r *Repository) FeeTypeInUse(ctx context.Context, id int64) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM fee_structure_items WHERE fee_type_id = $1)`
	var inUse bool
	if err := r.pool.QueryRow(ctx, query, id).Scan(&inUse); err != nil {
		return false, err
	}
	return inUse, nil
}

func (r *Repository) SetFeeTypeActive(ctx context.Context, schoolID, id int64, active bool) error {
	query := `
		UPDATE fee_types SET is_active = $3, updated_at = now()
		WHERE id = $1 AND school_id = $2
	`
	tag, err := r.pool.Exec(ctx, query, id, schoolID, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) DeleteFeeType(ctx context.Context, schoolID, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM fee_types WHERE id = $1 AND school_id = $2`, id, schoolID)
	if err != nil {
		// Foreign key violations surface as in-use even when the existence
		// check raced with a new structure item.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrFeeTypeInUse
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ============================================================================
// FEE STRUCTURE OPERATIONS
// ============================================================================

func (r *Repository) InsertStructure(ctx context.Context, fs FeeStructure, installments []InstallmentSpec) (FeeStructure, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		query := `
			INSERT INTO fee_structures
				(school_id, name, class_id, academic_year_id, installment_type, total_amount, is_active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id
		`
		err := tx.QueryRow(ctx, query,
			fs.SchoolID, fs.Name, fs.ClassID, fs.AcademicYearID, string(fs.InstallmentType),
			num(fs.TotalAmount), fs.IsActive, fs.CreatedAt, fs.UpdatedAt,
		).Scan(&fs.ID)
		if err != nil {
			return err
		}

		for i := range fs.Items {
			err = tx.QueryRow(ctx, `
				INSERT INTO fee_structure_items (fee_structure_id, fee_type_id, amount, is_optional)
				VALUES ($1, $2, $3, $4)
				RETURNING id
			`, fs.ID, fs.Items[i].FeeTypeID, num(fs.Items[i].Amount), fs.Items[i].IsOptional).Scan(&fs.Items[i].ID)
			if err != nil {
				return err
			}
		}

		for _, spec := range installments {
			_, err = tx.Exec(ctx, `
				INSERT INTO fee_installments (fee_structure_id, installment_number, due_date, amount, description)
				VALUES ($1, $2, $3, $4, $5)
			`, fs.ID, spec.Number, spec.DueDate, num(spec.Amount), spec.Description)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return FeeStructure{}, err
	}
	return fs, nil
}

func (r *Repository) GetStructure(ctx context.Context, schoolID, id int64) (FeeStructure, error) {
	query := `
		SELECT id, school_id, name, class_id, academic_year_id, installment_type,
		       total_amount, is_active, created_at, updated_at
		FROM fee_structures
		WHERE id = $1 AND school_id = $2
	`
	fs, err := scanStructure(r.pool.QueryRow(ctx, query, id, schoolID))
	if err != nil {
		return FeeStructure{}, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, fee_type_id, amount, is_optional
		FROM fee_structure_items
		WHERE fee_structure_id = $1
		ORDER BY id
	`, fs.ID)
	if err != nil {
		return FeeStructure{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var item FeeStructureItem
		var amount pgtype.Numeric
		if err := rows.Scan(&item.ID, &item.FeeTypeID, &amount, &item.IsOptional); err != nil {
			return FeeStructure{}, err
		}
		item.Amount = dec(amount)
		fs.Items = append(fs.Items, item)
	}
	return fs, rows.Err()
}

func (r *Repository) ListStructures(ctx context.Context, schoolID int64) ([]FeeStructure, error) {
	query := `
		SELECT id, school_id, name, class_id, academic_year_id, installment_type,
		       total_amount, is_active, created_at, updated_at
		FROM fee_structures
		WHERE school_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.pool.Query(ctx, query, schoolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FeeStructure
	for rows.Next() {
		fs, err := scanStructure(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, fs)
	}
	return out, rows.Err()
}

func (r *Repository) ListInstallments(ctx context.Context, schoolID, structureID int64) ([]FeeInstallment, error) {
	// Join through the structure so foreign-school structure ids read as empty.
	query := `
		SELECT i.id, i.fee_structure_id, i.installment_number, i.due_date, i.amount, i.description
		FROM fee_installments i
		JOIN fee_structures s ON s.id = i.fee_structure_id
		WHERE i.fee_structure_id = $1 AND s.school_id = $2
		ORDER BY i.installment_number
	`
	rows, err := r.pool.Query(ctx, query, structureID, schoolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FeeInstallment
	for rows.Next() {
		var inst FeeInstallment
		var amount pgtype.Numeric
		if err := rows.Scan(&inst.ID, &inst.FeeStructureID, &inst.Number, &inst.DueDate, &amount, &inst.Description); err != nil {
			return nil, err
		}
		inst.Amount = dec(amount)
		out = append(out, inst)
	}
	if len(out) == 0 {
		// Distinguish "no installments" from "no such structure".
		if _, err := r.GetStructure(ctx, schoolID, structureID); err != nil {
			return nil, err
		}
	}
	return out, rows.Err()
}

// ============================================================================
// STUDENT FEE LEDGER OPERATIONS
// ============================================================================

func (r *Repository) InsertStudentFee(ctx context.Context, sf StudentFee) (StudentFee, error) {
	query := `
		INSERT INTO student_fees
			(school_id, student_id, fee_structure_id, total_amount, discount_amount,
			 net_amount, paid_amount, outstanding_amount, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`
	err := r.pool.QueryRow(ctx, query,
		sf.SchoolID, sf.StudentID, sf.FeeStructureID,
		num(sf.TotalAmount), num(sf.DiscountAmount), num(sf.NetAmount),
		num(sf.PaidAmount), num(sf.OutstandingAmount), string(sf.Status),
		sf.CreatedAt, sf.UpdatedAt,
	).Scan(&sf.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return StudentFee{}, ErrDuplicateAssignment
		}
		return StudentFee{}, err
	}
	return sf, nil
}

func (r *Repository) GetStudentFee(ctx context.Context, schoolID, id int64) (StudentFee, error) {
	query := studentFeeColumns + ` WHERE id = $1 AND school_id = $2`
	sf, err := scanStudentFee(r.pool.QueryRow(ctx, query, id, schoolID))
	if err != nil {
		return StudentFee{}, err
	}
	return sf, nil
}

func (r *Repository) ListStudentFeesByStudent(ctx context.Context, schoolID, studentID int64) ([]StudentFee, error) {
	query := studentFeeColumns + ` WHERE school_id = $1 AND student_id = $2 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query, schoolID, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StudentFee
	for rows.Next() {
		sf, err := scanStudentFee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sf)
	}
	return out, rows.Err()
}

func (r *Repository) ListPayments(ctx context.Context, studentFeeID int64) ([]FeePayment, error) {
	query := `
		SELECT id, student_fee_id, installment_id, receipt_number, amount, mode,
		       payment_date, is_verified, collected_by, created_at
		FROM fee_payments
		WHERE student_fee_id = $1
		ORDER BY created_at
	`
	rows, err := r.pool.Query(ctx, query, studentFeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FeePayment
	for rows.Next() {
		var p FeePayment
		var amount pgtype.Numeric
		if err := rows.Scan(&p.ID, &p.StudentFeeID, &p.InstallmentID, &p.ReceiptNumber,
			&amount, &p.Mode, &p.PaymentDate, &p.IsVerified, &p.CollectedBy, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Amount = dec(amount)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repository) ListReceipts(ctx context.Context, studentFeeID int64) ([]FeeReceipt, error) {
	query := receiptColumns + ` WHERE student_fee_id = $1 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query, studentFeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FeeReceipt
	for rows.Next() {
		rec, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *Repository) ListDiscounts(ctx context.Context, studentFeeID int64) ([]FeeDiscount, error) {
	query := discountColumns + ` WHERE student_fee_id = $1 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query, studentFeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FeeDiscount
	for rows.Next() {
		d, err := scanDiscount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *Repository) GetReceipt(ctx context.Context, schoolID, id int64) (FeeReceipt, error) {
	query := receiptColumns + ` WHERE id = $1 AND school_id = $2`
	return scanReceipt(r.pool.QueryRow(ctx, query, id, schoolID))
}

func (r *Repository) GetDiscount(ctx context.Context, schoolID, id int64) (FeeDiscount, error) {
	query := `
		SELECT d.id, d.student_fee_id, d.discount_type, d.amount, d.percentage,
		       d.reason, d.approved_by, d.is_active, d.created_at
		FROM fee_discounts d
		JOIN student_fees sf ON sf.id = d.student_fee_id
		WHERE d.id = $1 AND sf.school_id = $2
	`
	return scanDiscount(r.pool.QueryRow(ctx, query, id, schoolID))
}

// WithLedger locks the student-fee row with SELECT ... FOR UPDATE so that
// concurrent mutations against the same ledger serialize at the database.
func (r *Repository) WithLedger(ctx context.Context, schoolID, studentFeeID int64, fn func(ctx context.Context, tx LedgerTx) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		query := studentFeeColumns + ` WHERE id = $1 AND school_id = $2 FOR UPDATE`
		row, err := scanStudentFee(tx.QueryRow(ctx, query, studentFeeID, schoolID))
		if err != nil {
			return err
		}
		return fn(ctx, &ledgerTx{tx: tx, row: row})
	})
}

type ledgerTx struct {
	tx  pgx.Tx
	row StudentFee
}

func (l *ledgerTx) Row() StudentFee { return l.row }

func (l *ledgerTx) Installment(ctx context.Context, id int64) (FeeInstallment, error) {
	query := `
		SELECT id, fee_structure_id, installment_number, due_date, amount, description
		FROM fee_installments
		WHERE id = $1
	`
	var inst FeeInstallment
	var amount pgtype.Numeric
	err := l.tx.QueryRow(ctx, query, id).Scan(
		&inst.ID, &inst.FeeStructureID, &inst.Number, &inst.DueDate, &amount, &inst.Description,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FeeInstallment{}, ErrNotFound
		}
		return FeeInstallment{}, err
	}
	inst.Amount = dec(amount)
	return inst, nil
}

// NextReceiptSeq bumps the per-school per-month counter inside the ledger
// transaction, so a receipt number is never minted without its payment
// committing, and two concurrent payments can never share a sequence value.
func (l *ledgerTx) NextReceiptSeq(ctx context.Context, schoolID int64, period time.Time) (int64, error) {
	query := `
		INSERT INTO receipt_counters (school_id, period, last_seq)
		VALUES ($1, $2, 1)
		ON CONFLICT (school_id, period)
		DO UPDATE SET last_seq = receipt_counters.last_seq + 1
		RETURNING last_seq
	`
	key := fmt.Sprintf("%02d%02d", period.Year()%100, int(period.Month()))
	var seq int64
	if err := l.tx.QueryRow(ctx, query, schoolID, key).Scan(&seq); err != nil {
		return 0, err
	}
	return seq, nil
}

func (l *ledgerTx) InsertPayment(ctx context.Context, p FeePayment) (FeePayment, error) {
	query := `
		INSERT INTO fee_payments
			(student_fee_id, installment_id, receipt_number, amount, mode,
			 payment_date, is_verified, collected_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	err := l.tx.QueryRow(ctx, query,
		p.StudentFeeID, p.InstallmentID, p.ReceiptNumber, num(p.Amount), string(p.Mode),
		p.PaymentDate, p.IsVerified, p.CollectedBy, p.CreatedAt,
	).Scan(&p.ID)
	if err != nil {
		return FeePayment{}, err
	}
	return p, nil
}

func (l *ledgerTx) InsertReceipt(ctx context.Context, rec FeeReceipt) (FeeReceipt, error) {
	query := `
		INSERT INTO fee_receipts
			(school_id, payment_id, student_fee_id, receipt_number, amount, is_cancelled, created_at)
		VALUES ($1, $2, $3, $4, $5, false, $6)
		RETURNING id
	`
	err := l.tx.QueryRow(ctx, query,
		rec.SchoolID, rec.PaymentID, rec.StudentFeeID, rec.ReceiptNumber, num(rec.Amount), rec.CreatedAt,
	).Scan(&rec.ID)
	if err != nil {
		return FeeReceipt{}, err
	}
	return rec, nil
}

func (l *ledgerTx) InsertDiscount(ctx context.Context, d FeeDiscount) (FeeDiscount, error) {
	query := `
		INSERT INTO fee_discounts
			(student_fee_id, discount_type, amount, percentage, reason, approved_by, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	var pct *pgtype.Numeric
	if d.Percentage != nil {
		v := num(*d.Percentage)
		pct = &v
	}
	err := l.tx.QueryRow(ctx, query,
		d.StudentFeeID, string(d.Type), num(d.Amount), pct,
		d.Reason, d.ApprovedBy, d.IsActive, d.CreatedAt,
	).Scan(&d.ID)
	if err != nil {
		return FeeDiscount{}, err
	}
	return d, nil
}

func (l *ledgerTx) DiscountForUpdate(ctx context.Context, id int64) (FeeDiscount, error) {
	query := discountColumns + ` WHERE id = $1 AND student_fee_id = $2 FOR UPDATE`
	return scanDiscount(l.tx.QueryRow(ctx, query, id, l.row.ID))
}

func (l *ledgerTx) DeactivateDiscount(ctx context.Context, id int64) error {
	tag, err := l.tx.Exec(ctx, `UPDATE fee_discounts SET is_active = false WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (l *ledgerTx) ReceiptForUpdate(ctx context.Context, id int64) (FeeReceipt, error) {
	query := receiptColumns + ` WHERE id = $1 AND student_fee_id = $2 FOR UPDATE`
	return scanReceipt(l.tx.QueryRow(ctx, query, id, l.row.ID))
}

func (l *ledgerTx) MarkReceiptCancelled(ctx context.Context, id int64, reason string, cancelledBy int64, at time.Time) error {
	tag, err := l.tx.Exec(ctx, `
		UPDATE fee_receipts
		SET is_cancelled = true, cancelled_at = $2, cancel_reason = $3, cancelled_by = $4
		WHERE id = $1 AND NOT is_cancelled
	`, id, at, reason, cancelledBy)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrReceiptAlreadyCancelled
	}
	return nil
}

func (l *ledgerTx) UpdateBalances(ctx context.Context, sf StudentFee) error {
	query := `
		UPDATE student_fees
		SET discount_amount = $2, net_amount = $3, paid_amount = $4,
		    outstanding_amount = $5, status = $6, updated_at = $7
		WHERE id = $1
	`
	_, err := l.tx.Exec(ctx, query,
		sf.ID, num(sf.DiscountAmount), num(sf.NetAmount), num(sf.PaidAmount),
		num(sf.OutstandingAmount), string(sf.Status), sf.UpdatedAt,
	)
	return err
}

// ============================================================================
// SCANNERS AND HELPERS
// ============================================================================

const studentFeeColumns = `
	SELECT id, school_id, student_id, fee_structure_id, total_amount, discount_amount,
	       net_amount, paid_amount, outstanding_amount, status, created_at, updated_at
	FROM student_fees`

const receiptColumns = `
	SELECT id, school_id, payment_id, student_fee_id, receipt_number, amount,
	       is_cancelled, cancelled_at, cancelled_by, cancel_reason, created_at
	FROM fee_receipts`

const discountColumns = `
	SELECT id, student_fee_id, discount_type, amount, percentage,
	       reason, approved_by, is_active, created_at
	FROM fee_discounts`

func scanStructure(row pgx.Row) (FeeStructure, error) {
	var fs FeeStructure
	var total pgtype.Numeric
	err := row.Scan(
		&fs.ID, &fs.SchoolID, &fs.Name, &fs.ClassID, &fs.AcademicYearID,
		&fs.InstallmentType, &total, &fs.IsActive, &fs.CreatedAt, &fs.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FeeStructure{}, ErrNotFound
		}
		return FeeStructure{}, err
	}
	fs.TotalAmount = dec(total)
	return fs, nil
}

func scanStudentFee(row pgx.Row) (StudentFee, error) {
	var sf StudentFee
	var total, discount, net, paid, outstanding pgtype.Numeric
	err := row.Scan(
		&sf.ID, &sf.SchoolID, &sf.StudentID, &sf.FeeStructureID,
		&total, &discount, &net, &paid, &outstanding,
		&sf.Status, &sf.CreatedAt, &sf.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StudentFee{}, ErrNotFound
		}
		return StudentFee{}, err
	}
	sf.TotalAmount = dec(total)
	sf.DiscountAmount = dec(discount)
	sf.NetAmount = dec(net)
	sf.PaidAmount = dec(paid)
	sf.OutstandingAmount = dec(outstanding)
	return sf, nil
}

func scanReceipt(row pgx.Row) (FeeReceipt, error) {
	var rec FeeReceipt
	var amount pgtype.Numeric
	var reason pgtype.Text
	var cancelledBy pgtype.Int8
	err := row.Scan(
		&rec.ID, &rec.SchoolID, &rec.PaymentID, &rec.StudentFeeID, &rec.ReceiptNumber,
		&amount, &rec.IsCancelled, &rec.CancelledAt, &cancelledBy, &reason, &rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FeeReceipt{}, ErrNotFound
		}
		return FeeReceipt{}, err
	}
	rec.Amount = dec(amount)
	rec.CancelledBy = cancelledBy.Int64
	rec.CancelReason = reason.String
	return rec, nil
}

func scanDiscount(row pgx.Row) (FeeDiscount, error) {
	var d FeeDiscount
	var amount pgtype.Numeric
	var pct *pgtype.Numeric
	err := row.Scan(
		&d.ID, &d.StudentFeeID, &d.Type, &amount, &pct,
		&d.Reason, &d.ApprovedBy, &d.IsActive, &d.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FeeDiscount{}, ErrNotFound
		}
		return FeeDiscount{}, err
	}
	d.Amount = dec(amount)
	if pct != nil {
		v := dec(*pct)
		d.Percentage = &v
	}
	return d, nil
}

func num(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}

func dec(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
