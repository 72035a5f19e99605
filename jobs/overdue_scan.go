package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/scholaris-erp/scholaris-erp/internal/observability"
)

// OverdueCounter is the slice of the reporting service the scan needs.
type OverdueCounter interface {
	CountOverdueInstallments(ctx context.Context) (int, error)
	Invalidate(ctx context.Context) error
}

// OverdueScanJob recomputes the overdue-installment gauge on a schedule.
// OVERDUE never lives in the ledger rows themselves, so the scan only reads.
type OverdueScanJob struct {
	reports OverdueCounter
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewOverdueScanJob constructs the job.
func NewOverdueScanJob(reports OverdueCounter, metrics *observability.Metrics, logger *slog.Logger) *OverdueScanJob {
	return &OverdueScanJob{reports: reports, metrics: metrics, logger: logger}
}

// Handle processes TaskFeesOverdueScan tasks.
func (j *OverdueScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload OverdueScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	count, err := j.reports.CountOverdueInstallments(ctx)
	if err != nil {
		j.logger.Error("overdue scan", slog.Any("error", err))
		return err
	}
	j.metrics.SetOverdueInstallments(count)
	// Yesterday's cached defaulter lists are stale once a new day of due
	// dates has passed.
	if err := j.reports.Invalidate(ctx); err != nil {
		j.logger.Warn("overdue scan cache bump", slog.Any("error", err))
	}
	j.logger.Info("overdue scan complete", slog.Int("overdue_installments", count))
	return nil
}
