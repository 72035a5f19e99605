package fees

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// AcademicYear is the slice of directory data the fees module needs: the
// span that installment schedules are generated over.
type AcademicYear struct {
	ID       int64
	StartsOn time.Time
	EndsOn   time.Time
}

// Directory answers tenancy-scoped existence questions about students,
// classes and academic years. Implementations return ErrNotFound for rows
// that are absent or belong to another school; callers cannot tell the two
// apart.
type Directory interface {
	StudentInSchool(ctx context.Context, schoolID, studentID int64) (bool, error)
	ClassInSchool(ctx context.Context, schoolID, classID int64) (bool, error)
	AcademicYearInSchool(ctx context.Context, schoolID, yearID int64) (AcademicYear, error)
}

// LedgerTx exposes the mutations allowed while a single student-fee row is
// held under an exclusive lock. Row returns the locked snapshot; everything
// written through the tx commits or rolls back atomically with the balance
// update.
type LedgerTx interface {
	Row() StudentFee
	Installment(ctx context.Context, id int64) (FeeInstallment, error)
	NextReceiptSeq(ctx context.Context, schoolID int64, period time.Time) (int64, error)
	InsertPayment(ctx context.Context, p FeePayment) (FeePayment, error)
	InsertReceipt(ctx context.Context, r FeeReceipt) (FeeReceipt, error)
	InsertDiscount(ctx context.Context, d FeeDiscount) (FeeDiscount, error)
	DiscountForUpdate(ctx context.Context, id int64) (FeeDiscount, error)
	DeactivateDiscount(ctx context.Context, id int64) error
	ReceiptForUpdate(ctx context.Context, id int64) (FeeReceipt, error)
	MarkReceiptCancelled(ctx context.Context, id int64, reason string, cancelledBy int64, at time.Time) error
	UpdateBalances(ctx context.Context, sf StudentFee) error
}

// Store is the persistence port for the fees module.
type Store interface {
	InsertFeeType(ctx context.Context, ft FeeType) (FeeType, error)
	GetFeeType(ctx context.Context, schoolID, id int64) (FeeType, error)
	ListFeeTypes(ctx context.Context, schoolID int64, activeOnly bool) ([]FeeType, error)
	FeeTypeInUse(ctx context.Context, id int64) (bool, error)
	SetFeeTypeActive(ctx context.Context, schoolID, id int64, active bool) error
	DeleteFeeType(ctx context.Context, schoolID, id int64) error

	InsertStructure(ctx context.Context, fs FeeStructure, installments []InstallmentSpec) (FeeStructure, error)
	GetStructure(ctx context.Context, schoolID, id int64) (FeeStructure, error)
	ListStructures(ctx context.Context, schoolID int64) ([]FeeStructure, error)
	ListInstallments(ctx context.Context, schoolID, structureID int64) ([]FeeInstallment, error)

	InsertStudentFee(ctx context.Context, sf StudentFee) (StudentFee, error)
	GetStudentFee(ctx context.Context, schoolID, id int64) (StudentFee, error)
	ListStudentFeesByStudent(ctx context.Context, schoolID, studentID int64) ([]StudentFee, error)
	ListPayments(ctx context.Context, studentFeeID int64) ([]FeePayment, error)
	ListReceipts(ctx context.Context, studentFeeID int64) ([]FeeReceipt, error)
	ListDiscounts(ctx context.Context, studentFeeID int64) ([]FeeDiscount, error)
	GetReceipt(ctx context.Context, schoolID, id int64) (FeeReceipt, error)
	GetDiscount(ctx context.Context, schoolID, id int64) (FeeDiscount, error)

	// WithLedger runs fn with the student-fee row locked for the duration of
	// the transaction. Concurrent callers against the same row serialize.
	WithLedger(ctx context.Context, schoolID, studentFeeID int64, fn func(ctx context.Context, tx LedgerTx) error) error
}

// Service implements the fee ledger operations.
type Service struct {
	store Store
	dir   Directory
	now   func() time.Time
}

// NewService wires a Service with its persistence and directory ports.
func NewService(store Store, dir Directory) *Service {
	return &Service{store: store, dir: dir, now: time.Now}
}

// WithNow overrides the clock, primarily for tests.
func (s *Service) WithNow(fn func() time.Time) {
	s.now = fn
}

// CreateFeeType adds a catalog entry for the school.
func (s *Service) CreateFeeType(ctx context.Context, in CreateFeeTypeInput) (FeeType, error) {
	if err := in.Validate(); err != nil {
		return FeeType{}, err
	}
	now := s.now()
	ft := FeeType{
		SchoolID:  in.SchoolID,
		Name:      in.Name,
		Code:      in.Code,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return s.store.InsertFeeType(ctx, ft)
}

// ListFeeTypes returns the school's catalog, optionally active entries only.
func (s *Service) ListFeeTypes(ctx context.Context, schoolID int64, activeOnly bool) ([]FeeType, error) {
	return s.store.ListFeeTypes(ctx, schoolID, activeOnly)
}

// DeactivateFeeType retires a catalog entry without touching history.
func (s *Service) DeactivateFeeType(ctx context.Context, schoolID, id int64) error {
	return s.store.SetFeeTypeActive(ctx, schoolID, id, false)
}

// DeleteFeeType removes a catalog entry. Entries referenced by any structure
// cannot be deleted; deactivate them instead.
func (s *Service) DeleteFeeType(ctx context.Context, schoolID, id int64) error {
	if _, err := s.store.GetFeeType(ctx, schoolID, id); err != nil {
		return err
	}
	inUse, err := s.store.FeeTypeInUse(ctx, id)
	if err != nil {
		return err
	}
	if inUse {
		return ErrFeeTypeInUse
	}
	return s.store.DeleteFeeType(ctx, schoolID, id)
}

// CreateFeeStructure validates the definition against the directory,
// generates the installment schedule from the academic year span, and
// persists structure, items and installments atomically.
func (s *Service) CreateFeeStructure(ctx context.Context, in CreateFeeStructureInput) (FeeStructure, error) {
	if err := in.Validate(); err != nil {
		return FeeStructure{}, err
	}
	if in.ClassID != nil {
		ok, err := s.dir.ClassInSchool(ctx, in.SchoolID, *in.ClassID)
		if err != nil {
			return FeeStructure{}, err
		}
		if !ok {
			return FeeStructure{}, ErrNotFound
		}
	}
	year, err := s.dir.AcademicYearInSchool(ctx, in.SchoolID, in.AcademicYearID)
	if err != nil {
		return FeeStructure{}, err
	}

	total := decimal.Zero
	items := make([]FeeStructureItem, 0, len(in.Items))
	for _, item := range in.Items {
		ft, err := s.store.GetFeeType(ctx, in.SchoolID, item.FeeTypeID)
		if err != nil {
			return FeeStructure{}, err
		}
		if !ft.IsActive {
			return FeeStructure{}, fmt.Errorf("%w: fee type %q is inactive", ErrInvalidInput, ft.Name)
		}
		total = total.Add(item.Amount)
		items = append(items, FeeStructureItem{
			FeeTypeID:  item.FeeTypeID,
			Amount:     item.Amount,
			IsOptional: item.IsOptional,
		})
	}

	specs, err := GenerateSchedule(total, in.InstallmentType, year.StartsOn, year.EndsOn)
	if err != nil {
		return FeeStructure{}, err
	}

	now := s.now()
	fs := FeeStructure{
		SchoolID:        in.SchoolID,
		Name:            in.Name,
		ClassID:         in.ClassID,
		AcademicYearID:  in.AcademicYearID,
		InstallmentType: in.InstallmentType,
		Items:           items,
		TotalAmount:     total,
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	return s.store.InsertStructure(ctx, fs, specs)
}

// GetFeeStructure returns one structure with its items.
func (s *Service) GetFeeStructure(ctx context.Context, schoolID, id int64) (FeeStructure, error) {
	return s.store.GetStructure(ctx, schoolID, id)
}

// ListFeeStructures returns all structures for the school.
func (s *Service) ListFeeStructures(ctx context.Context, schoolID int64) ([]FeeStructure, error) {
	return s.store.ListStructures(ctx, schoolID)
}

// ListInstallments returns the generated schedule of a structure.
func (s *Service) ListInstallments(ctx context.Context, schoolID, structureID int64) ([]FeeInstallment, error) {
	return s.store.ListInstallments(ctx, schoolID, structureID)
}

// AssignFee creates a ledger row binding a student to a structure. The
// structure's total is frozen into the row; later structure edits do not
// propagate.
func (s *Service) AssignFee(ctx context.Context, in AssignFeeInput) (StudentFee, error) {
	if err := in.Validate(); err != nil {
		return StudentFee{}, err
	}
	ok, err := s.dir.StudentInSchool(ctx, in.SchoolID, in.StudentID)
	if err != nil {
		return StudentFee{}, err
	}
	if !ok {
		return StudentFee{}, ErrNotFound
	}
	st, err := s.store.GetStructure(ctx, in.SchoolID, in.FeeStructureID)
	if err != nil {
		return StudentFee{}, err
	}
	if !st.IsActive {
		return StudentFee{}, ErrStructureInactive
	}
	if in.Discount.GreaterThan(st.TotalAmount) {
		return StudentFee{}, ErrDiscountExceedsBalance
	}

	net, outstanding, status := RecomputeLedger(st.TotalAmount, in.Discount, decimal.Zero)
	now := s.now()
	sf := StudentFee{
		SchoolID:          in.SchoolID,
		StudentID:         in.StudentID,
		FeeStructureID:    in.FeeStructureID,
		TotalAmount:       st.TotalAmount,
		DiscountAmount:    in.Discount,
		NetAmount:         net,
		PaidAmount:        decimal.Zero,
		OutstandingAmount: outstanding,
		Status:            status,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	return s.store.InsertStudentFee(ctx, sf)
}

// BulkAssignFee assigns a structure to many students. Students that already
// hold the structure are skipped and counted instead of failing the batch;
// any other error aborts.
func (s *Service) BulkAssignFee(ctx context.Context, in BulkAssignInput) (BulkAssignResult, error) {
	if err := in.Validate(); err != nil {
		return BulkAssignResult{}, err
	}
	var res BulkAssignResult
	for _, studentID := range in.StudentIDs {
		sf, err := s.AssignFee(ctx, AssignFeeInput{
			SchoolID:       in.SchoolID,
			StudentID:      studentID,
			FeeStructureID: in.FeeStructureID,
			Discount:       in.Discount,
		})
		if errors.Is(err, ErrDuplicateAssignment) {
			res.Skipped++
			continue
		}
		if err != nil {
			return BulkAssignResult{}, fmt.Errorf("fees: bulk assign student %d: %w", studentID, err)
		}
		res.Assigned++
		res.Created = append(res.Created, sf)
	}
	return res, nil
}

// GetStudentFee returns one ledger row.
func (s *Service) GetStudentFee(ctx context.Context, schoolID, id int64) (StudentFee, error) {
	return s.store.GetStudentFee(ctx, schoolID, id)
}

// ListStudentFees returns all ledger rows for a student.
func (s *Service) ListStudentFees(ctx context.Context, schoolID, studentID int64) ([]StudentFee, error) {
	return s.store.ListStudentFeesByStudent(ctx, schoolID, studentID)
}

// GetStudentLedger returns a ledger row with its payments, receipts and
// discounts.
func (s *Service) GetStudentLedger(ctx context.Context, schoolID, id int64) (StudentFeeAggregate, error) {
	sf, err := s.store.GetStudentFee(ctx, schoolID, id)
	if err != nil {
		return StudentFeeAggregate{}, err
	}
	payments, err := s.store.ListPayments(ctx, sf.ID)
	if err != nil {
		return StudentFeeAggregate{}, err
	}
	receipts, err := s.store.ListReceipts(ctx, sf.ID)
	if err != nil {
		return StudentFeeAggregate{}, err
	}
	discounts, err := s.store.ListDiscounts(ctx, sf.ID)
	if err != nil {
		return StudentFeeAggregate{}, err
	}
	return StudentFeeAggregate{
		StudentFee: sf,
		Payments:   payments,
		Receipts:   receipts,
		Discounts:  discounts,
	}, nil
}

// RecordPayment accepts a verified payment against a ledger row, issues a
// receipt and recomputes balances, all under the row lock. Payments above the
// outstanding balance are rejected outright; there is no overpayment credit.
func (s *Service) RecordPayment(ctx context.Context, in RecordPaymentInput) (PaymentReceipt, error) {
	if err := in.Validate(); err != nil {
		return PaymentReceipt{}, err
	}
	var out PaymentReceipt
	err := s.store.WithLedger(ctx, in.SchoolID, in.StudentFeeID, func(ctx context.Context, tx LedgerTx) error {
		row := tx.Row()
		if in.Amount.GreaterThan(row.OutstandingAmount) {
			return ErrPaymentExceedsOutstanding
		}
		if in.InstallmentID != nil {
			inst, err := tx.Installment(ctx, *in.InstallmentID)
			if err != nil {
				return err
			}
			if inst.FeeStructureID != row.FeeStructureID {
				return ErrInstallmentMismatch
			}
		}

		now := s.now()
		seq, err := tx.NextReceiptSeq(ctx, in.SchoolID, now)
		if err != nil {
			return err
		}
		number := FormatReceiptNumber(now, seq)

		paidOn := in.PaymentDate
		if paidOn.IsZero() {
			paidOn = now
		}
		payment, err := tx.InsertPayment(ctx, FeePayment{
			StudentFeeID:  row.ID,
			InstallmentID: in.InstallmentID,
			ReceiptNumber: number,
			Amount:        in.Amount,
			Mode:          in.Mode,
			PaymentDate:   paidOn,
			IsVerified:    true,
			CollectedBy:   in.CollectedBy,
			CreatedAt:     now,
		})
		if err != nil {
			return err
		}
		receipt, err := tx.InsertReceipt(ctx, FeeReceipt{
			SchoolID:      row.SchoolID,
			PaymentID:     payment.ID,
			StudentFeeID:  row.ID,
			ReceiptNumber: number,
			Amount:        in.Amount,
			CreatedAt:     now,
		})
		if err != nil {
			return err
		}

		paid := row.PaidAmount.Add(in.Amount)
		row.PaidAmount = paid
		row.NetAmount, row.OutstandingAmount, row.Status = RecomputeLedger(row.TotalAmount, row.DiscountAmount, paid)
		row.UpdatedAt = now
		if err := tx.UpdateBalances(ctx, row); err != nil {
			return err
		}
		out = PaymentReceipt{Payment: payment, Receipt: receipt}
		return nil
	})
	if err != nil {
		return PaymentReceipt{}, err
	}
	return out, nil
}

// ApplyDiscount grants a concession against a ledger row. Percentage
// discounts are resolved to a fixed amount against the row's total at grant
// time and never recomputed. The resulting net may not fall below what has
// already been paid.
func (s *Service) ApplyDiscount(ctx context.Context, in ApplyDiscountInput) (FeeDiscount, error) {
	if err := in.Validate(); err != nil {
		return FeeDiscount{}, err
	}
	var out FeeDiscount
	err := s.store.WithLedger(ctx, in.SchoolID, in.StudentFeeID, func(ctx context.Context, tx LedgerTx) error {
		row := tx.Row()
		amount := in.Amount
		if in.Percentage != nil {
			amount = row.TotalAmount.Mul(*in.Percentage).Div(decimal.NewFromInt(100)).Round(2)
		}
		newDiscount := row.DiscountAmount.Add(amount)
		if row.TotalAmount.Sub(newDiscount).LessThan(row.PaidAmount) {
			return ErrDiscountExceedsBalance
		}

		now := s.now()
		d, err := tx.InsertDiscount(ctx, FeeDiscount{
			StudentFeeID: row.ID,
			Type:         in.Type,
			Amount:       amount,
			Percentage:   in.Percentage,
			Reason:       in.Reason,
			ApprovedBy:   in.ApprovedBy,
			IsActive:     true,
			CreatedAt:    now,
		})
		if err != nil {
			return err
		}

		row.DiscountAmount = newDiscount
		row.NetAmount, row.OutstandingAmount, row.Status = RecomputeLedger(row.TotalAmount, newDiscount, row.PaidAmount)
		row.UpdatedAt = now
		if err := tx.UpdateBalances(ctx, row); err != nil {
			return err
		}
		out = d
		return nil
	})
	if err != nil {
		return FeeDiscount{}, err
	}
	return out, nil
}

// RemoveDiscount revokes a previously granted discount by the exact amount
// that was resolved when it was applied.
func (s *Service) RemoveDiscount(ctx context.Context, schoolID, discountID int64) (StudentFee, error) {
	ref, err := s.store.GetDiscount(ctx, schoolID, discountID)
	if err != nil {
		return StudentFee{}, err
	}
	var out StudentFee
	err = s.store.WithLedger(ctx, schoolID, ref.StudentFeeID, func(ctx context.Context, tx LedgerTx) error {
		d, err := tx.DiscountForUpdate(ctx, discountID)
		if err != nil {
			return err
		}
		if !d.IsActive {
			return ErrDiscountInactive
		}
		row := tx.Row()
		newDiscount := row.DiscountAmount.Sub(d.Amount)
		if newDiscount.IsNegative() {
			return fmt.Errorf("fees: discount %d exceeds accumulated discount on ledger %d", discountID, row.ID)
		}
		if err := tx.DeactivateDiscount(ctx, discountID); err != nil {
			return err
		}

		row.DiscountAmount = newDiscount
		row.NetAmount, row.OutstandingAmount, row.Status = RecomputeLedger(row.TotalAmount, newDiscount, row.PaidAmount)
		row.UpdatedAt = s.now()
		if err := tx.UpdateBalances(ctx, row); err != nil {
			return err
		}
		out = row
		return nil
	})
	if err != nil {
		return StudentFee{}, err
	}
	return out, nil
}

// CancelReceipt reverses a payment: the receipt is marked cancelled and the
// ledger row is restored to its pre-payment balances in the same
// transaction. Cancellation is terminal and idempotency-hostile: a second
// attempt fails.
func (s *Service) CancelReceipt(ctx context.Context, in CancelReceiptInput) (FeeReceipt, error) {
	if err := in.Validate(); err != nil {
		return FeeReceipt{}, err
	}
	ref, err := s.store.GetReceipt(ctx, in.SchoolID, in.ReceiptID)
	if err != nil {
		return FeeReceipt{}, err
	}
	var out FeeReceipt
	err = s.store.WithLedger(ctx, in.SchoolID, ref.StudentFeeID, func(ctx context.Context, tx LedgerTx) error {
		r, err := tx.ReceiptForUpdate(ctx, in.ReceiptID)
		if err != nil {
			return err
		}
		if r.IsCancelled {
			return ErrReceiptAlreadyCancelled
		}
		row := tx.Row()
		paid := row.PaidAmount.Sub(r.Amount)
		if paid.IsNegative() {
			return fmt.Errorf("fees: receipt %d amount exceeds paid balance on ledger %d", r.ID, row.ID)
		}

		now := s.now()
		if err := tx.MarkReceiptCancelled(ctx, r.ID, in.Reason, in.CancelledBy, now); err != nil {
			return err
		}
		row.PaidAmount = paid
		row.NetAmount, row.OutstandingAmount, row.Status = RecomputeLedger(row.TotalAmount, row.DiscountAmount, paid)
		row.UpdatedAt = now
		if err := tx.UpdateBalances(ctx, row); err != nil {
			return err
		}

		r.IsCancelled = true
		r.CancelledAt = &now
		r.CancelledBy = in.CancelledBy
		r.CancelReason = in.Reason
		out = r
		return nil
	})
	if err != nil {
		return FeeReceipt{}, err
	}
	return out, nil
}

// FormatReceiptNumber renders the receipt number for a school-month
// sequence value: RCP, two-digit year, two-digit month, four-digit sequence.
func FormatReceiptNumber(t time.Time, seq int64) string {
	return fmt.Sprintf("RCP%02d%02d%04d", t.Year()%100, int(t.Month()), seq)
}
