package domain

import "time"

// ChangeOperation describes a persisted activity operation for a task.
type ChangeOperation string

// ChangeOperation values used by the local activity ledger.
const (
	ChangeOperationCreate ChangeOperation = "create"
	ChangeOperationUpdate ChangeOperation = "update"
	ChangeOperationMove   ChangeOperation = "move"
	ChangeOperationImport ChangeOperation = "import"
)

// ChangeEvent represents a single activity-log entry for a task.
type ChangeEvent struct {
	ID         int64             `json:"id"`
	TaskID     string            `json:"taskId"`
	Operation  ChangeOperation   `json:"operation"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	OccurredAt time.Time         `json:"occurredAt"`
}
