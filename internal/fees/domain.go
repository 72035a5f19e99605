package fees

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Periodicity enumerates installment-splitting policies for a fee structure.
type Periodicity string

const (
	PeriodicityAnnual     Periodicity = "ANNUAL"
	PeriodicitySemiAnnual Periodicity = "SEMI_ANNUAL"
	PeriodicityQuarterly  Periodicity = "QUARTERLY"
	PeriodicityMonthly    Periodicity = "MONTHLY"
)

// Valid reports whether the periodicity is one of the supported policies.
func (p Periodicity) Valid() bool {
	switch p {
	case PeriodicityAnnual, PeriodicitySemiAnnual, PeriodicityQuarterly, PeriodicityMonthly:
		return true
	default:
		return false
	}
}

// LedgerStatus captures the stored payment state of a student fee ledger row.
// OVERDUE is a time-derived label applied by reporting, never stored here.
type LedgerStatus string

const (
	StatusPending LedgerStatus = "PENDING"
	StatusPartial LedgerStatus = "PARTIAL"
	StatusPaid    LedgerStatus = "PAID"
)

// PaymentMode identifies how a payment was collected.
type PaymentMode string

const (
	ModeCash         PaymentMode = "CASH"
	ModeBankTransfer PaymentMode = "BANK_TRANSFER"
	ModeMobileMoney  PaymentMode = "MOBILE_MONEY"
	ModeCheque       PaymentMode = "CHEQUE"
	ModeCard         PaymentMode = "CARD"
)

// DiscountType classifies why a discount was granted.
type DiscountType string

const (
	DiscountScholarship  DiscountType = "SCHOLARSHIP"
	DiscountSibling      DiscountType = "SIBLING"
	DiscountStaffChild   DiscountType = "STAFF_CHILD"
	DiscountEarlyPayment DiscountType = "EARLY_PAYMENT"
	DiscountOther        DiscountType = "OTHER"
)

// FeeType is a named fee category scoped to a school. Pure reference data;
// deletion is blocked once a structure item references it.
type FeeType struct {
	ID        int64
	SchoolID  int64
	Name      string
	Code      string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FeeStructureItem is one fee-type line in a structure.
type FeeStructureItem struct {
	ID         int64
	FeeTypeID  int64
	Amount     decimal.Decimal
	IsOptional bool
}

// FeeStructure bundles fee-type line items for a class/academic year together
// with an installment periodicity. Amount changes never propagate to ledgers
// that were already assigned from it.
type FeeStructure struct {
	ID              int64
	SchoolID        int64
	Name            string
	ClassID         *int64
	AcademicYearID  int64
	InstallmentType Periodicity
	Items           []FeeStructureItem
	TotalAmount     decimal.Decimal
	IsActive        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// FeeInstallment is one dated slice of a structure's total, generated once at
// structure-creation time.
type FeeInstallment struct {
	ID             int64
	FeeStructureID int64
	Number         int
	DueDate        time.Time
	Amount         decimal.Decimal
	Description    string
}

// StudentFee is the per-student ledger row. It is created by assignment and
// mutated only inside the store's serialized ledger transaction.
type StudentFee struct {
	ID                int64
	SchoolID          int64
	StudentID         int64
	FeeStructureID    int64
	TotalAmount       decimal.Decimal
	DiscountAmount    decimal.Decimal
	NetAmount         decimal.Decimal
	PaidAmount        decimal.Decimal
	OutstandingAmount decimal.Decimal
	Status            LedgerStatus
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// FeePayment is an append-only record of an accepted payment. Amount is
// immutable; corrections go through receipt cancellation plus a new payment.
type FeePayment struct {
	ID            int64
	StudentFeeID  int64
	InstallmentID *int64
	ReceiptNumber string
	Amount        decimal.Decimal
	Mode          PaymentMode
	PaymentDate   time.Time
	IsVerified    bool
	CollectedBy   int64
	CreatedAt     time.Time
}

// FeeReceipt is the cancellable, externally visible proxy for a payment.
// Cancelling it is the only sanctioned way to undo the payment's ledger
// effect, and cancellation is terminal.
type FeeReceipt struct {
	ID            int64
	SchoolID      int64
	PaymentID     int64
	StudentFeeID  int64
	ReceiptNumber string
	Amount        decimal.Decimal
	IsCancelled   bool
	CancelledAt   *time.Time
	CancelledBy   int64
	CancelReason  string
	CreatedAt     time.Time
}

// FeeDiscount records a concession against a ledger row. Amount is resolved
// once at creation; Percentage is informational only afterwards.
type FeeDiscount struct {
	ID           int64
	StudentFeeID int64
	Type         DiscountType
	Amount       decimal.Decimal
	Percentage   *decimal.Decimal
	Reason       string
	ApprovedBy   int64
	IsActive     bool
	CreatedAt    time.Time
}

// StudentFeeAggregate is the full ledger view consumed by reporting.
type StudentFeeAggregate struct {
	StudentFee
	Payments  []FeePayment
	Receipts  []FeeReceipt
	Discounts []FeeDiscount
}

// PaymentReceipt pairs an accepted payment with its issued receipt.
type PaymentReceipt struct {
	Payment FeePayment
	Receipt FeeReceipt
}

// BulkAssignResult summarises a bulk assignment run.
type BulkAssignResult struct {
	Assigned int
	Skipped  int
	Created  []StudentFee
}

// RecomputeLedger derives the dependent ledger quantities from the three
// stored inputs. It is the single source of truth for net, outstanding, and
// status; callers persist its output verbatim instead of patching fields at
// call sites.
func RecomputeLedger(total, discount, paid decimal.Decimal) (net, outstanding decimal.Decimal, status LedgerStatus) {
	net = total.Sub(discount)
	outstanding = net.Sub(paid)
	switch {
	case outstanding.IsZero():
		status = StatusPaid
	case paid.IsPositive():
		status = StatusPartial
	default:
		status = StatusPending
	}
	return net, outstanding, status
}

// Sentinel errors surfaced by the fees service. Tenant mismatches are
// deliberately indistinguishable from missing rows.
var (
	ErrNotFound                  = errors.New("fees: not found")
	ErrInvalidInput              = errors.New("fees: invalid input")
	ErrFeeTypeExists             = errors.New("fees: fee type with this name or code already exists")
	ErrFeeTypeInUse              = errors.New("fees: fee type is referenced by a structure; deactivate it instead")
	ErrStructureInactive         = errors.New("fees: fee structure is inactive")
	ErrDuplicateAssignment       = errors.New("fees: student is already assigned this fee structure")
	ErrPaymentExceedsOutstanding = errors.New("fees: payment amount exceeds outstanding balance")
	ErrInstallmentMismatch       = errors.New("fees: installment does not belong to the assigned structure")
	ErrReceiptAlreadyCancelled   = errors.New("fees: receipt is already cancelled")
	ErrDiscountInactive          = errors.New("fees: discount is already removed")
	ErrDiscountExceedsBalance    = errors.New("fees: discount would reduce the net amount below the paid amount")
)

func twoDecimalPlaces(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}

// CreateFeeTypeInput carries a new catalog entry.
type CreateFeeTypeInput struct {
	SchoolID int64
	Name     string
	Code     string
}

// Validate ensures the catalog entry is coherent.
func (in CreateFeeTypeInput) Validate() error {
	if in.SchoolID == 0 {
		return invalid("school id required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return invalid("fee type name required")
	}
	return nil
}

// FeeStructureItemInput is one line of a new structure.
type FeeStructureItemInput struct {
	FeeTypeID  int64
	Amount     decimal.Decimal
	IsOptional bool
}

// CreateFeeStructureInput carries a new structure definition.
type CreateFeeStructureInput struct {
	SchoolID        int64
	Name            string
	ClassID         *int64
	AcademicYearID  int64
	InstallmentType Periodicity
	Items           []FeeStructureItemInput
}

// Validate ensures the structure definition is coherent.
func (in CreateFeeStructureInput) Validate() error {
	if in.SchoolID == 0 {
		return invalid("school id required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return invalid("structure name required")
	}
	if in.AcademicYearID == 0 {
		return invalid("academic year required")
	}
	if !in.InstallmentType.Valid() {
		return invalid("invalid installment periodicity")
	}
	if len(in.Items) == 0 {
		return invalid("at least one fee item required")
	}
	for _, item := range in.Items {
		if item.FeeTypeID == 0 {
			return invalid("item fee type required")
		}
		if !item.Amount.IsPositive() {
			return invalid("item amount must be positive")
		}
		if !twoDecimalPlaces(item.Amount) {
			return invalid("item amount must have at most two decimal places")
		}
	}
	return nil
}

// AssignFeeInput attaches a structure to a single student.
type AssignFeeInput struct {
	SchoolID       int64
	StudentID      int64
	FeeStructureID int64
	Discount       decimal.Decimal
}

// Validate ensures the assignment request is coherent.
func (in AssignFeeInput) Validate() error {
	if in.SchoolID == 0 {
		return invalid("school id required")
	}
	if in.StudentID == 0 {
		return invalid("student id required")
	}
	if in.FeeStructureID == 0 {
		return invalid("fee structure id required")
	}
	if in.Discount.IsNegative() {
		return invalid("discount cannot be negative")
	}
	if !twoDecimalPlaces(in.Discount) {
		return invalid("discount must have at most two decimal places")
	}
	return nil
}

// BulkAssignInput attaches a structure to many students at once.
type BulkAssignInput struct {
	SchoolID       int64
	StudentIDs     []int64
	FeeStructureID int64
	Discount       decimal.Decimal
}

// Validate ensures the bulk request is coherent.
func (in BulkAssignInput) Validate() error {
	if len(in.StudentIDs) == 0 {
		return invalid("at least one student required")
	}
	single := AssignFeeInput{
		SchoolID:       in.SchoolID,
		StudentID:      in.StudentIDs[0],
		FeeStructureID: in.FeeStructureID,
		Discount:       in.Discount,
	}
	return single.Validate()
}

// RecordPaymentInput records a verified payment against a ledger row.
type RecordPaymentInput struct {
	SchoolID      int64
	StudentFeeID  int64
	Amount        decimal.Decimal
	Mode          PaymentMode
	PaymentDate   time.Time
	InstallmentID *int64
	CollectedBy   int64
}

// Validate ensures the payment request is coherent.
func (in RecordPaymentInput) Validate() error {
	if in.SchoolID == 0 {
		return invalid("school id required")
	}
	if in.StudentFeeID == 0 {
		return invalid("student fee id required")
	}
	if !in.Amount.IsPositive() {
		return invalid("payment amount must be positive")
	}
	if !twoDecimalPlaces(in.Amount) {
		return invalid("payment amount must have at most two decimal places")
	}
	if in.Mode == "" {
		return invalid("payment mode required")
	}
	if in.CollectedBy == 0 {
		return invalid("collector required")
	}
	return nil
}

// ApplyDiscountInput grants a discount against a ledger row. Exactly one of
// Amount or Percentage must be provided.
type ApplyDiscountInput struct {
	SchoolID     int64
	StudentFeeID int64
	Type         DiscountType
	Amount       decimal.Decimal
	Percentage   *decimal.Decimal
	Reason       string
	ApprovedBy   int64
}

// Validate ensures the discount request is coherent.
func (in ApplyDiscountInput) Validate() error {
	if in.SchoolID == 0 {
		return invalid("school id required")
	}
	if in.StudentFeeID == 0 {
		return invalid("student fee id required")
	}
	if strings.TrimSpace(in.Reason) == "" {
		return invalid("discount reason required")
	}
	if in.ApprovedBy == 0 {
		return invalid("approver required")
	}
	if in.Percentage != nil {
		if !in.Amount.IsZero() {
			return invalid("provide either amount or percentage, not both")
		}
		if !in.Percentage.IsPositive() || in.Percentage.GreaterThan(decimal.NewFromInt(100)) {
			return invalid("percentage must be between 0 and 100")
		}
		return nil
	}
	if !in.Amount.IsPositive() {
		return invalid("discount amount must be positive")
	}
	if !twoDecimalPlaces(in.Amount) {
		return invalid("discount amount must have at most two decimal places")
	}
	return nil
}

// CancelReceiptInput reverses a payment by cancelling its receipt.
type CancelReceiptInput struct {
	SchoolID    int64
	ReceiptID   int64
	Reason      string
	CancelledBy int64
}

// Validate ensures the cancellation request is coherent.
func (in CancelReceiptInput) Validate() error {
	if in.SchoolID == 0 {
		return invalid("school id required")
	}
	if in.ReceiptID == 0 {
		return invalid("receipt id required")
	}
	if strings.TrimSpace(in.Reason) == "" {
		return invalid("cancellation reason required")
	}
	if in.CancelledBy == 0 {
		return invalid("cancelling user required")
	}
	return nil
}
