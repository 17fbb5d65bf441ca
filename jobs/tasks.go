package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerReconcile recomputes running balances and reports drift.
	TaskLedgerReconcile = "ledger:reconcile"
)

// ReconcilePayload configures a reconciliation run.
type ReconcilePayload struct {
	// InvalidateCache drops cached reports once the run completes.
	InvalidateCache bool `json:"invalidate_cache"`
}

// NewReconcileTask constructs the reconciliation task.
func NewReconcileTask(payload ReconcilePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerReconcile, data), nil
}
