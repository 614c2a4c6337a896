// Package jobs runs background processing: the post-completion order
// cascade and the nightly reconciliation sweep.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskOrderCascade advances EN_RUTA orders of a completed route.
	TaskOrderCascade = "route:cascade_orders"
	// TaskReconcileSweep re-evaluates every active route.
	TaskReconcileSweep = "rutero:reconcile_sweep"
)

// OrderCascadePayload identifies the completed route to cascade.
type OrderCascadePayload struct {
	RuteroID int64 `json:"rutero_id"`
}

// NewOrderCascadeTask constructs the cascade task.
func NewOrderCascadeTask(payload OrderCascadePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOrderCascade, data), nil
}

// NewReconcileSweepTask constructs the sweep task. The sweep carries no
// payload; it always scans every en_curso route.
func NewReconcileSweepTask() *asynq.Task {
	return asynq.NewTask(TaskReconcileSweep, nil)
}
