package actionstore

import "time"

// Status values stored for an action record.
const (
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusError   = "error"
)

// ActionRecord is the history entry for one submitted droplet action.
// Records are written for inspection only; an interrupted run is never
// resumed from them.
type ActionRecord struct {
	// ID is the auto-increment primary key (assigned on insert).
	ID int64 `json:"id"`

	// RunID groups the actions of a single lifecycle run.
	RunID string `json:"run_id"`

	// OperationID is the provider-specific operation identifier.
	OperationID string `json:"operation_id"`

	// Provider is the name of the cloud provider (e.g. "digitalocean").
	Provider string `json:"provider"`

	ResourceID   string `json:"resource_id"`
	ResourceName string `json:"resource_name,omitempty"`

	// ActionType is the submitted action, e.g. "shutdown" or "snapshot".
	ActionType string `json:"action_type"`

	// Status is "running", "success", or "error".
	Status string `json:"status"`

	// DurationSeconds is the wall-clock time from submission to resolution.
	DurationSeconds int64 `json:"duration_seconds"`

	// ErrorMessage holds the transport error, if any, that ended the action.
	ErrorMessage string `json:"error_message,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
