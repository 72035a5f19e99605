package reportinghttp

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/scholaris-erp/scholaris-erp/internal/platform/httpx"
	"github.com/scholaris-erp/scholaris-erp/internal/reporting"
	"github.com/scholaris-erp/scholaris-erp/internal/shared"
)

type reportingService interface {
	Summary(ctx context.Context, schoolID int64, yearID *int64) (reporting.CollectionSummary, error)
	ModeBreakdown(ctx context.Context, schoolID int64, from, to time.Time) ([]reporting.ModeBreakdownRow, error)
	Defaulters(ctx context.Context, schoolID int64) ([]reporting.DefaulterRow, error)
	Dashboard(ctx context.Context, schoolID int64, yearID *int64) (reporting.Dashboard, error)
}

// Handler wires HTTP endpoints for fee reporting.
type Handler struct {
	logger  *slog.Logger
	service reportingService
	now     func() time.Time
}

// NewHandler constructs a reporting HTTP handler.
func NewHandler(logger *slog.Logger, service reportingService) *Handler {
	return &Handler{logger: logger, service: service, now: time.Now}
}

// WithNow overrides the handler clock for testing.
func (h *Handler) WithNow(fn func() time.Time) {
	if fn != nil {
		h.now = fn
	}
}

// MountRoutes registers HTTP routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/dashboard", h.dashboard)
	r.Get("/collection-summary", h.summary)
	r.Get("/payment-modes", h.modeBreakdown)
	r.Get("/defaulters", h.defaulters)
	r.Get("/defaulters.csv", h.defaultersCSV)
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	dash, err := h.service.Dashboard(r.Context(), actor.SchoolID, h.optionalYear(r))
	if err != nil {
		h.fail(w, r, "reporting dashboard", err)
		return
	}
	httpx.JSON(w, http.StatusOK, dash)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	out, err := h.service.Summary(r.Context(), actor.SchoolID, h.optionalYear(r))
	if err != nil {
		h.fail(w, r, "collection summary", err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) modeBreakdown(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	from, to, ok := h.dateRange(w, r)
	if !ok {
		return
	}
	out, err := h.service.ModeBreakdown(r.Context(), actor.SchoolID, from, to)
	if err != nil {
		h.fail(w, r, "payment mode breakdown", err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) defaulters(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	out, err := h.service.Defaulters(r.Context(), actor.SchoolID)
	if err != nil {
		h.fail(w, r, "defaulters", err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) defaultersCSV(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	rows, err := h.service.Defaulters(r.Context(), actor.SchoolID)
	if err != nil {
		h.fail(w, r, "defaulters export", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="defaulters.csv"`)
	if err := reporting.WriteDefaultersCSV(w, rows); err != nil {
		h.logger.Error("defaulters csv", slog.Any("error", err))
	}
}

func (h *Handler) optionalYear(r *http.Request) *int64 {
	raw := r.URL.Query().Get("academic_year_id")
	if raw == "" {
		return nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil
	}
	return &id
}

// dateRange parses from/to query parameters, defaulting to the current
// calendar month.
func (h *Handler) dateRange(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	now := h.now()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	to := now
	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "from must be YYYY-MM-DD")
			return time.Time{}, time.Time{}, false
		}
		from = parsed
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "to must be YYYY-MM-DD")
			return time.Time{}, time.Time{}, false
		}
		to = parsed
	}
	if to.Before(from) {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "to must not precede from")
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logger.Error(op, slog.Any("error", err), slog.String("path", r.URL.Path))
	httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
}
