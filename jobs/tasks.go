package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskFeesOverdueScan recomputes the overdue-installment gauge.
	TaskFeesOverdueScan = "fees:overdue_scan"
	// TaskFeesReceiptIssued notifies the guardian after a receipt is issued.
	TaskFeesReceiptIssued = "fees:receipt_issued"
)

// OverdueScanPayload configures an overdue scan run.
type OverdueScanPayload struct {
	RequestedBy string `json:"requested_by"`
}

// NewOverdueScanTask constructs an Asynq task.
func NewOverdueScanTask(requestedBy string) (*asynq.Task, error) {
	data, err := json.Marshal(OverdueScanPayload{RequestedBy: requestedBy})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskFeesOverdueScan, data), nil
}

// ReceiptIssuedPayload carries the receipt details for notification.
type ReceiptIssuedPayload struct {
	SchoolID      int64  `json:"school_id"`
	StudentFeeID  int64  `json:"student_fee_id"`
	ReceiptID     int64  `json:"receipt_id"`
	ReceiptNumber string `json:"receipt_number"`
	Amount        string `json:"amount"`
}

// NewReceiptIssuedTask constructs an Asynq task.
func NewReceiptIssuedTask(payload ReceiptIssuedPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskFeesReceiptIssued, data), nil
}
