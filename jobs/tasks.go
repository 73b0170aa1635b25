package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskBalanceReconcile recomputes party due counters from the
	// transaction log and repairs drift.
	TaskBalanceReconcile = "ledger:balance_reconcile"
	// TaskStockIntegrity verifies product stock against the movement
	// log.
	TaskStockIntegrity = "ledger:stock_integrity"
)

// SchedulePayload carries scheduling metadata common to the periodic
// jobs.
type SchedulePayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewBalanceReconcileTask constructs an Asynq task for the balance
// reconcile pass.
func NewBalanceReconcileTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(SchedulePayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBalanceReconcile, body, asynq.Queue(QueueDefault)), nil
}

// NewStockIntegrityTask constructs an Asynq task for the stock
// integrity check.
func NewStockIntegrityTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(SchedulePayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStockIntegrity, body, asynq.Queue(QueueDefault)), nil
}
