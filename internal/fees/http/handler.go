package feeshttp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/scholaris-erp/scholaris-erp/internal/fees"
	"github.com/scholaris-erp/scholaris-erp/internal/observability"
	"github.com/scholaris-erp/scholaris-erp/internal/platform/httpx"
	"github.com/scholaris-erp/scholaris-erp/internal/shared"
)

type feesService interface {
	CreateFeeType(ctx context.Context, in fees.CreateFeeTypeInput) (fees.FeeType, error)
	ListFeeTypes(ctx context.Context, schoolID int64, activeOnly bool) ([]fees.FeeType, error)
	DeactivateFeeType(ctx context.Context, schoolID, id int64) error
	DeleteFeeType(ctx context.Context, schoolID, id int64) error

	CreateFeeStructure(ctx context.Context, in fees.CreateFeeStructureInput) (fees.FeeStructure, error)
	GetFeeStructure(ctx context.Context, schoolID, id int64) (fees.FeeStructure, error)
	ListFeeStructures(ctx context.Context, schoolID int64) ([]fees.FeeStructure, error)
	ListInstallments(ctx context.Context, schoolID, structureID int64) ([]fees.FeeInstallment, error)

	AssignFee(ctx context.Context, in fees.AssignFeeInput) (fees.StudentFee, error)
	BulkAssignFee(ctx context.Context, in fees.BulkAssignInput) (fees.BulkAssignResult, error)
	GetStudentFee(ctx context.Context, schoolID, id int64) (fees.StudentFee, error)
	ListStudentFees(ctx context.Context, schoolID, studentID int64) ([]fees.StudentFee, error)
	GetStudentLedger(ctx context.Context, schoolID, id int64) (fees.StudentFeeAggregate, error)

	RecordPayment(ctx context.Context, in fees.RecordPaymentInput) (fees.PaymentReceipt, error)
	ApplyDiscount(ctx context.Context, in fees.ApplyDiscountInput) (fees.FeeDiscount, error)
	RemoveDiscount(ctx context.Context, schoolID, discountID int64) (fees.StudentFee, error)
	CancelReceipt(ctx context.Context, in fees.CancelReceiptInput) (fees.FeeReceipt, error)
}

// Events receives post-commit hooks for ledger mutations. Implementations
// must not fail the request; they enqueue follow-up work.
type Events interface {
	ReceiptIssued(ctx context.Context, schoolID int64, pr fees.PaymentReceipt)
	LedgerMutated(ctx context.Context)
}

// Handler wires HTTP endpoints for the fee ledger.
type Handler struct {
	logger      *slog.Logger
	service     feesService
	validator   *validator.Validate
	idempotency *shared.IdempotencyStore
	metrics     *observability.Metrics
	events      Events
}

// NewHandler constructs a fees HTTP handler.
func NewHandler(logger *slog.Logger, service feesService, idempotency *shared.IdempotencyStore, metrics *observability.Metrics, events Events) *Handler {
	return &Handler{
		logger:      logger,
		service:     service,
		validator:   validator.New(),
		idempotency: idempotency,
		metrics:     metrics,
		events:      events,
	}
}

// MountRoutes registers HTTP routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/fee-types", func(r chi.Router) {
		r.Get("/", h.listFeeTypes)
		r.Post("/", h.createFeeType)
		r.Post("/{id}/deactivate", h.deactivateFeeType)
		r.Delete("/{id}", h.deleteFeeType)
	})
	r.Route("/fee-structures", func(r chi.Router) {
		r.Get("/", h.listStructures)
		r.Post("/", h.createStructure)
		r.Get("/{id}", h.getStructure)
		r.Get("/{id}/installments", h.listInstallments)
	})
	r.Route("/student-fees", func(r chi.Router) {
		r.Get("/", h.listStudentFees)
		r.Post("/assign", h.assignFee)
		r.Post("/bulk-assign", h.bulkAssignFee)
		r.Get("/{id}", h.getStudentFee)
		r.Get("/{id}/ledger", h.getLedger)
		r.Post("/{id}/payments", h.recordPayment)
		r.Post("/{id}/discounts", h.applyDiscount)
	})
	r.Delete("/discounts/{id}", h.removeDiscount)
	r.Post("/receipts/{id}/cancel", h.cancelReceipt)
}

// ============================================================================
// FEE TYPES
// ============================================================================

type createFeeTypeRequest struct {
	Name string `json:"name" validate:"required,max=120"`
	Code string `json:"code" validate:"max=32"`
}

func (h *Handler) createFeeType(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	var req createFeeTypeRequest
	if !h.decode(w, r, &req) {
		return
	}
	ft, err := h.service.CreateFeeType(r.Context(), fees.CreateFeeTypeInput{
		SchoolID: actor.SchoolID,
		Name:     strings.TrimSpace(req.Name),
		Code:     strings.TrimSpace(req.Code),
	})
	if err != nil {
		h.respondError(w, r, "create fee type", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, ft)
}

func (h *Handler) listFeeTypes(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	activeOnly := r.URL.Query().Get("active") == "true"
	out, err := h.service.ListFeeTypes(r.Context(), actor.SchoolID, activeOnly)
	if err != nil {
		h.respondError(w, r, "list fee types", err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) deactivateFeeType(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.DeactivateFeeType(r.Context(), actor.SchoolID, id); err != nil {
		h.respondError(w, r, "deactivate fee type", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteFeeType(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteFeeType(r.Context(), actor.SchoolID, id); err != nil {
		h.respondError(w, r, "delete fee type", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ============================================================================
// FEE STRUCTURES
// ============================================================================

type structureItemRequest struct {
	FeeTypeID  int64           `json:"fee_type_id" validate:"required"`
	Amount     decimal.Decimal `json:"amount" validate:"required"`
	IsOptional bool            `json:"is_optional"`
}

type createStructureRequest struct {
	Name            string                 `json:"name" validate:"required,max=160"`
	ClassID         *int64                 `json:"class_id"`
	AcademicYearID  int64                  `json:"academic_year_id" validate:"required"`
	InstallmentType string                 `json:"installment_type" validate:"required,oneof=ANNUAL SEMI_ANNUAL QUARTERLY MONTHLY"`
	Items           []structureItemRequest `json:"items" validate:"required,min=1,dive"`
}

func (h *Handler) createStructure(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	var req createStructureRequest
	if !h.decode(w, r, &req) {
		return
	}
	items := make([]fees.FeeStructureItemInput, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, fees.FeeStructureItemInput{
			FeeTypeID:  item.FeeTypeID,
			Amount:     item.Amount,
			IsOptional: item.IsOptional,
		})
	}
	fs, err := h.service.CreateFeeStructure(r.Context(), fees.CreateFeeStructureInput{
		SchoolID:        actor.SchoolID,
		Name:            strings.TrimSpace(req.Name),
		ClassID:         req.ClassID,
		AcademicYearID:  req.AcademicYearID,
		InstallmentType: fees.Periodicity(req.InstallmentType),
		Items:           items,
	})
	if err != nil {
		h.respondError(w, r, "create fee structure", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, fs)
}

func (h *Handler) getStructure(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	fs, err := h.service.GetFeeStructure(r.Context(), actor.SchoolID, id)
	if err != nil {
		h.respondError(w, r, "get fee structure", err)
		return
	}
	httpx.JSON(w, http.StatusOK, fs)
}

func (h *Handler) listStructures(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	out, err := h.service.ListFeeStructures(r.Context(), actor.SchoolID)
	if err != nil {
		h.respondError(w, r, "list fee structures", err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) listInstallments(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	out, err := h.service.ListInstallments(r.Context(), actor.SchoolID, id)
	if err != nil {
		h.respondError(w, r, "list installments", err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

// ============================================================================
// ASSIGNMENT
// ============================================================================

type assignFeeRequest struct {
	StudentID      int64           `json:"student_id" validate:"required"`
	FeeStructureID int64           `json:"fee_structure_id" validate:"required"`
	Discount       decimal.Decimal `json:"discount"`
}

func (h *Handler) assignFee(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	var req assignFeeRequest
	if !h.decode(w, r, &req) {
		return
	}
	sf, err := h.service.AssignFee(r.Context(), fees.AssignFeeInput{
		SchoolID:       actor.SchoolID,
		StudentID:      req.StudentID,
		FeeStructureID: req.FeeStructureID,
		Discount:       req.Discount,
	})
	if err != nil {
		h.respondError(w, r, "assign fee", err)
		return
	}
	if h.events != nil {
		h.events.LedgerMutated(r.Context())
	}
	httpx.JSON(w, http.StatusCreated, sf)
}

type bulkAssignRequest struct {
	StudentIDs     []int64         `json:"student_ids" validate:"required,min=1"`
	FeeStructureID int64           `json:"fee_structure_id" validate:"required"`
	Discount       decimal.Decimal `json:"discount"`
}

type bulkAssignResponse struct {
	Assigned int               `json:"assigned"`
	Skipped  int               `json:"skipped"`
	Created  []fees.StudentFee `json:"created"`
}

func (h *Handler) bulkAssignFee(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	var req bulkAssignRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.service.BulkAssignFee(r.Context(), fees.BulkAssignInput{
		SchoolID:       actor.SchoolID,
		StudentIDs:     req.StudentIDs,
		FeeStructureID: req.FeeStructureID,
		Discount:       req.Discount,
	})
	if err != nil {
		h.respondError(w, r, "bulk assign fee", err)
		return
	}
	if h.events != nil {
		h.events.LedgerMutated(r.Context())
	}
	httpx.JSON(w, http.StatusOK, bulkAssignResponse{
		Assigned: res.Assigned,
		Skipped:  res.Skipped,
		Created:  res.Created,
	})
}

func (h *Handler) getStudentFee(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	sf, err := h.service.GetStudentFee(r.Context(), actor.SchoolID, id)
	if err != nil {
		h.respondError(w, r, "get student fee", err)
		return
	}
	httpx.JSON(w, http.StatusOK, sf)
}

func (h *Handler) listStudentFees(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	studentID, err := strconv.ParseInt(r.URL.Query().Get("student_id"), 10, 64)
	if err != nil || studentID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "student_id query parameter required")
		return
	}
	out, err := h.service.ListStudentFees(r.Context(), actor.SchoolID, studentID)
	if err != nil {
		h.respondError(w, r, "list student fees", err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) getLedger(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	agg, err := h.service.GetStudentLedger(r.Context(), actor.SchoolID, id)
	if err != nil {
		h.respondError(w, r, "get student ledger", err)
		return
	}
	httpx.JSON(w, http.StatusOK, agg)
}

// ============================================================================
// PAYMENTS, DISCOUNTS, RECEIPTS
// ============================================================================

type recordPaymentRequest struct {
	Amount        decimal.Decimal `json:"amount" validate:"required"`
	Mode          string          `json:"mode" validate:"required,oneof=CASH BANK_TRANSFER MOBILE_MONEY CHEQUE CARD"`
	PaymentDate   string          `json:"payment_date"`
	InstallmentID *int64          `json:"installment_id"`
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var req recordPaymentRequest
	if !h.decode(w, r, &req) {
		return
	}
	var paidOn time.Time
	if req.PaymentDate != "" {
		var err error
		paidOn, err = time.Parse("2006-01-02", req.PaymentDate)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "payment_date must be YYYY-MM-DD")
			return
		}
	}

	// A retried POST with the same Idempotency-Key must not double-record.
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if key != "" && h.idempotency != nil {
		if err := h.idempotency.CheckAndInsert(r.Context(), key, "fees.payment"); err != nil {
			h.respondError(w, r, "payment idempotency", err)
			return
		}
	}

	out, err := h.service.RecordPayment(r.Context(), fees.RecordPaymentInput{
		SchoolID:      actor.SchoolID,
		StudentFeeID:  id,
		Amount:        req.Amount,
		Mode:          fees.PaymentMode(req.Mode),
		PaymentDate:   paidOn,
		InstallmentID: req.InstallmentID,
		CollectedBy:   actor.UserID,
	})
	if err != nil {
		if key != "" && h.idempotency != nil {
			_ = h.idempotency.Delete(r.Context(), key)
		}
		h.respondError(w, r, "record payment", err)
		return
	}
	if h.metrics != nil {
		h.metrics.PaymentRecorded(string(out.Payment.Mode))
	}
	if h.events != nil {
		h.events.ReceiptIssued(r.Context(), actor.SchoolID, out)
		h.events.LedgerMutated(r.Context())
	}
	httpx.JSON(w, http.StatusCreated, out)
}

type applyDiscountRequest struct {
	Type       string           `json:"type" validate:"required,oneof=SCHOLARSHIP SIBLING STAFF_CHILD EARLY_PAYMENT OTHER"`
	Amount     decimal.Decimal  `json:"amount"`
	Percentage *decimal.Decimal `json:"percentage"`
	Reason     string           `json:"reason" validate:"required,max=500"`
}

func (h *Handler) applyDiscount(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var req applyDiscountRequest
	if !h.decode(w, r, &req) {
		return
	}
	d, err := h.service.ApplyDiscount(r.Context(), fees.ApplyDiscountInput{
		SchoolID:     actor.SchoolID,
		StudentFeeID: id,
		Type:         fees.DiscountType(req.Type),
		Amount:       req.Amount,
		Percentage:   req.Percentage,
		Reason:       strings.TrimSpace(req.Reason),
		ApprovedBy:   actor.UserID,
	})
	if err != nil {
		h.respondError(w, r, "apply discount", err)
		return
	}
	if h.events != nil {
		h.events.LedgerMutated(r.Context())
	}
	httpx.JSON(w, http.StatusCreated, d)
}

func (h *Handler) removeDiscount(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	sf, err := h.service.RemoveDiscount(r.Context(), actor.SchoolID, id)
	if err != nil {
		h.respondError(w, r, "remove discount", err)
		return
	}
	if h.events != nil {
		h.events.LedgerMutated(r.Context())
	}
	httpx.JSON(w, http.StatusOK, sf)
}

type cancelReceiptRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

func (h *Handler) cancelReceipt(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var req cancelReceiptRequest
	if !h.decode(w, r, &req) {
		return
	}
	rec, err := h.service.CancelReceipt(r.Context(), fees.CancelReceiptInput{
		SchoolID:    actor.SchoolID,
		ReceiptID:   id,
		Reason:      strings.TrimSpace(req.Reason),
		CancelledBy: actor.UserID,
	})
	if err != nil {
		h.respondError(w, r, "cancel receipt", err)
		return
	}
	if h.metrics != nil {
		h.metrics.ReceiptCancelled()
	}
	if h.events != nil {
		h.events.LedgerMutated(r.Context())
	}
	httpx.JSON(w, http.StatusOK, rec)
}

// ============================================================================
// HELPERS
// ============================================================================

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return false
	}
	if err := h.validator.Struct(target); err != nil {
		var verr validator.ValidationErrors
		if errors.As(err, &verr) && len(verr) > 0 {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid field: "+strings.ToLower(verr[0].Field()))
			return false
		}
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request")
		return false
	}
	return true
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid "+name)
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, fees.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", fees.ErrNotFound.Error())
	case errors.Is(err, fees.ErrInvalidInput):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrIdempotencyKeyInvalid):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, fees.ErrFeeTypeExists),
		errors.Is(err, fees.ErrDuplicateAssignment),
		errors.Is(err, fees.ErrReceiptAlreadyCancelled),
		errors.Is(err, fees.ErrDiscountInactive),
		errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, fees.ErrPaymentExceedsOutstanding),
		errors.Is(err, fees.ErrInstallmentMismatch),
		errors.Is(err, fees.ErrDiscountExceedsBalance),
		errors.Is(err, fees.ErrFeeTypeInUse),
		errors.Is(err, fees.ErrStructureInactive):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Unprocessable", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err), slog.String("path", r.URL.Path))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
