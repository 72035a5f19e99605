package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ReceiptIssuedJob records a guardian notification for every issued receipt.
// Delivery (SMS/email) is handled by the messaging system polling the
// notifications table.
type ReceiptIssuedJob struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewReceiptIssuedJob constructs the job.
func NewReceiptIssuedJob(pool *pgxpool.Pool, logger *slog.Logger) *ReceiptIssuedJob {
	return &ReceiptIssuedJob{pool: pool, logger: logger}
}

// Handle processes TaskFeesReceiptIssued tasks.
func (j *ReceiptIssuedJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload ReceiptIssuedPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	query := `
		INSERT INTO notifications (school_id, student_fee_id, kind, reference, body, created_at)
		VALUES ($1, $2, 'RECEIPT_ISSUED', $3, $4, now())
		ON CONFLICT (kind, reference) DO NOTHING
	`
	body := "Payment of " + payload.Amount + " received, receipt " + payload.ReceiptNumber
	if _, err := j.pool.Exec(ctx, query, payload.SchoolID, payload.StudentFeeID, payload.ReceiptNumber, body); err != nil {
		j.logger.Error("receipt notification", slog.Any("error", err),
			slog.String("receipt", payload.ReceiptNumber))
		return err
	}
	j.logger.Info("receipt notification queued", slog.String("receipt", payload.ReceiptNumber))
	return nil
}
