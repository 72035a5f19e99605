package feeshttp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholaris-erp/scholaris-erp/internal/fees"
	"github.com/scholaris-erp/scholaris-erp/internal/shared"
)

// stubService returns canned values and records the inputs it saw. Unset
// error fields mean success.
type stubService struct {
	mu sync.Mutex

	feeType       fees.FeeType
	structure     fees.FeeStructure
	installments  []fees.FeeInstallment
	studentFee    fees.StudentFee
	bulkResult    fees.BulkAssignResult
	ledger        fees.StudentFeeAggregate
	paymentResult fees.PaymentReceipt
	discount      fees.FeeDiscount
	receipt       fees.FeeReceipt

	err error

	lastPayment  fees.RecordPaymentInput
	lastAssign   fees.AssignFeeInput
	lastDiscount fees.ApplyDiscountInput
	lastCancel   fees.CancelReceiptInput
}

func (s *stubService) CreateFeeType(_ context.Context, in fees.CreateFeeTypeInput) (fees.FeeType, error) {
	return s.feeType, s.err
}

func (s *stubService) ListFeeTypes(_ context.Context, schoolID int64, activeOnly bool) ([]fees.FeeType, error) {
	return []fees.FeeType{s.feeType}, s.err
}

func (s *stubService) DeactivateFeeType(_ context.Context, schoolID, id int64) error { return s.err }
func (s *stubService) DeleteFeeType(_ context.Context, schoolID, id int64) error     { return s.err }

func (s *stubService) CreateFeeStructure(_ context.Context, in fees.CreateFeeStructureInput) (fees.FeeStructure, error) {
	return s.structure, s.err
}

func (s *stubService) GetFeeStructure(_ context.Context, schoolID, id int64) (fees.FeeStructure, error) {
	return s.structure, s.err
}

func (s *stubService) ListFeeStructures(_ context.Context, schoolID int64) ([]fees.FeeStructure, error) {
	return []fees.FeeStructure{s.structure}, s.err
}

func (s *stubService) ListInstallments(_ context.Context, schoolID, structureID int64) ([]fees.FeeInstallment, error) {
	return s.installments, s.err
}

func (s *stubService) AssignFee(_ context.Context, in fees.AssignFeeInput) (fees.StudentFee, error) {
	s.mu.Lock()
	s.lastAssign = in
	s.mu.Unlock()
	return s.studentFee, s.err
}

func (s *stubService) BulkAssignFee(_ context.Context, in fees.BulkAssignInput) (fees.BulkAssignResult, error) {
	return s.bulkResult, s.err
}

func (s *stubService) GetStudentFee(_ context.Context, schoolID, id int64) (fees.StudentFee, error) {
	return s.studentFee, s.err
}

func (s *stubService) ListStudentFees(_ context.Context, schoolID, studentID int64) ([]fees.StudentFee, error) {
	return []fees.StudentFee{s.studentFee}, s.err
}

func (s *stubService) GetStudentLedger(_ context.Context, schoolID, id int64) (fees.StudentFeeAggregate, error) {
	return s.ledger, s.err
}

func (s *stubService) RecordPayment(_ context.Context, in fees.RecordPaymentInput) (fees.PaymentReceipt, error) {
	s.mu.Lock()
	s.lastPayment = in
	s.mu.Unlock()
	return s.paymentResult, s.err
}

func (s *stubService) ApplyDiscount(_ context.Context, in fees.ApplyDiscountInput) (fees.FeeDiscount, error) {
	s.mu.Lock()
	s.lastDiscount = in
	s.mu.Unlock()
	return s.discount, s.err
}

func (s *stubService) RemoveDiscount(_ context.Context, schoolID, discountID int64) (fees.StudentFee, error) {
	return s.studentFee, s.err
}

func (s *stubService) CancelReceipt(_ context.Context, in fees.CancelReceiptInput) (fees.FeeReceipt, error) {
	s.lastCancel = in
	return s.receipt, s.err
}

type recordingEvents struct {
	mu       sync.Mutex
	receipts int
	bumps    int
}

func (e *recordingEvents) ReceiptIssued(context.Context, int64, fees.PaymentReceipt) {
	e.mu.Lock()
	e.receipts++
	e.mu.Unlock()
}

func (e *recordingEvents) LedgerMutated(context.Context) {
	e.mu.Lock()
	e.bumps++
	e.mu.Unlock()
}

func newTestRouter(svc *stubService, events Events) chi.Router {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(logger, svc, nil, nil, events)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := shared.ContextWithActor(req.Context(), shared.Actor{
				SchoolID: 1,
				UserID:   42,
				Role:     "bursar",
			})
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	h.MountRoutes(r)
	return r
}

func doJSON(t *testing.T, r chi.Router, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestCreateFeeTypeEndpoint(t *testing.T) {
	svc := &stubService{feeType: fees.FeeType{ID: 1, SchoolID: 1, Name: "Tuition"}}
	r := newTestRouter(svc, nil)

	rec := doJSON(t, r, http.MethodPost, "/fee-types/", `{"name":"Tuition","code":"TUI"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, r, http.MethodPost, "/fee-types/", `{"code":"TUI"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "missing name must fail validation")

	rec = doJSON(t, r, http.MethodPost, "/fee-types/", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteFeeTypeInUse(t *testing.T) {
	svc := &stubService{err: fees.ErrFeeTypeInUse}
	r := newTestRouter(svc, nil)

	rec := doJSON(t, r, http.MethodDelete, "/fee-types/3", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCreateStructureRejectsUnknownPeriodicity(t *testing.T) {
	svc := &stubService{}
	r := newTestRouter(svc, nil)

	rec := doJSON(t, r, http.MethodPost, "/fee-structures/", `{
		"name":"Grade 4",
		"academic_year_id":100,
		"installment_type":"WEEKLY",
		"items":[{"fee_type_id":1,"amount":"100.00"}]
	}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAssignFeeUsesActorSchool(t *testing.T) {
	svc := &stubService{studentFee: fees.StudentFee{ID: 9, SchoolID: 1}}
	events := &recordingEvents{}
	r := newTestRouter(svc, events)

	rec := doJSON(t, r, http.MethodPost, "/student-fees/assign", `{"student_id":10,"fee_structure_id":2}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, int64(1), svc.lastAssign.SchoolID)
	assert.Equal(t, int64(10), svc.lastAssign.StudentID)
	assert.Equal(t, 1, events.bumps)
}

func TestAssignFeeDuplicateConflict(t *testing.T) {
	svc := &stubService{err: fees.ErrDuplicateAssignment}
	r := newTestRouter(svc, nil)

	rec := doJSON(t, r, http.MethodPost, "/student-fees/assign", `{"student_id":10,"fee_structure_id":2}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRecordPaymentEndpoint(t *testing.T) {
	svc := &stubService{paymentResult: fees.PaymentReceipt{
		Payment: fees.FeePayment{ID: 1, ReceiptNumber: "RCP26080001", Mode: fees.ModeCash},
		Receipt: fees.FeeReceipt{ID: 1, ReceiptNumber: "RCP26080001"},
	}}
	events := &recordingEvents{}
	r := newTestRouter(svc, events)

	rec := doJSON(t, r, http.MethodPost, "/student-fees/7/payments", `{"amount":"500.00","mode":"CASH"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, int64(7), svc.lastPayment.StudentFeeID)
	assert.Equal(t, int64(42), svc.lastPayment.CollectedBy, "collector comes from the actor")
	assert.True(t, svc.lastPayment.Amount.Equal(decimal.RequireFromString("500.00")))
	assert.Equal(t, 1, events.receipts)
	assert.Equal(t, 1, events.bumps)

	var out struct {
		Receipt struct {
			ReceiptNumber string `json:"ReceiptNumber"`
		}
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "RCP26080001", out.Receipt.ReceiptNumber)
}

func TestRecordPaymentRejections(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"exceeds outstanding", fees.ErrPaymentExceedsOutstanding, http.StatusUnprocessableEntity},
		{"installment mismatch", fees.ErrInstallmentMismatch, http.StatusUnprocessableEntity},
		{"unknown ledger", fees.ErrNotFound, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubService{err: tc.err}
			r := newTestRouter(svc, nil)
			rec := doJSON(t, r, http.MethodPost, "/student-fees/7/payments", `{"amount":"500.00","mode":"CASH"}`)
			assert.Equal(t, tc.code, rec.Code)
		})
	}
}

func TestRecordPaymentBadRequests(t *testing.T) {
	svc := &stubService{}
	r := newTestRouter(svc, nil)

	rec := doJSON(t, r, http.MethodPost, "/student-fees/7/payments", `{"amount":"500.00","mode":"BARTER"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "unknown payment mode")

	rec = doJSON(t, r, http.MethodPost, "/student-fees/7/payments", `{"amount":"500.00","mode":"CASH","payment_date":"29-08-2026"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "malformed payment date")

	rec = doJSON(t, r, http.MethodPost, "/student-fees/abc/payments", `{"amount":"500.00","mode":"CASH"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "non-numeric path id")
}

func TestApplyDiscountEndpoint(t *testing.T) {
	svc := &stubService{discount: fees.FeeDiscount{ID: 4, Amount: decimal.RequireFromString("1200.00")}}
	r := newTestRouter(svc, nil)

	rec := doJSON(t, r, http.MethodPost, "/student-fees/7/discounts", `{
		"type":"SCHOLARSHIP",
		"percentage":"10",
		"reason":"merit scholarship"
	}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, svc.lastDiscount.Percentage)
	assert.Equal(t, int64(42), svc.lastDiscount.ApprovedBy)

	rec = doJSON(t, r, http.MethodPost, "/student-fees/7/discounts", `{"type":"BIRTHDAY","reason":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "unknown discount type")
}

func TestCancelReceiptEndpoint(t *testing.T) {
	svc := &stubService{receipt: fees.FeeReceipt{ID: 5, IsCancelled: true}}
	r := newTestRouter(svc, nil)

	rec := doJSON(t, r, http.MethodPost, "/receipts/5/cancel", `{"reason":"cheque bounced"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(42), svc.lastCancel.CancelledBy, "canceller comes from the actor")

	svc.err = fees.ErrReceiptAlreadyCancelled
	rec = doJSON(t, r, http.MethodPost, "/receipts/5/cancel", `{"reason":"again"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestListStudentFeesRequiresStudentID(t *testing.T) {
	svc := &stubService{}
	r := newTestRouter(svc, nil)

	rec := doJSON(t, r, http.MethodGet, "/student-fees/?student_id=10", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, r, http.MethodGet, "/student-fees/", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
