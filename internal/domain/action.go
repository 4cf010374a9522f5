package domain

import "time"

// ActionType names a state transition requested against a resource.
type ActionType string

const (
	ActionShutdown ActionType = "shutdown"
	ActionPowerOff ActionType = "power_off"
	ActionPowerOn  ActionType = "power_on"
	ActionSnapshot ActionType = "snapshot"
)

// Valid reports whether t is one of the supported action types.
func (t ActionType) Valid() bool {
	switch t {
	case ActionShutdown, ActionPowerOff, ActionPowerOn, ActionSnapshot:
		return true
	}
	return false
}

// Action is a request record submitted against a resource. Payload carries
// type-specific fields, e.g. {"name": "2024-06-15"} for a snapshot.
type Action struct {
	Type    ActionType        `json:"type"`
	Payload map[string]string `json:"payload,omitempty"`
}

// OperationStatus is the server-side state of a submitted action.
type OperationStatus string

// Operation status values. They mirror the DigitalOcean action API;
// other providers map their own values onto these.
const (
	OperationInProgress OperationStatus = "in-progress"
	OperationCompleted  OperationStatus = "completed"
	OperationErrored    OperationStatus = "errored"
)

// Operation is the asynchronous, provider-tracked execution of an Action.
// Its status is polled, never pushed.
type Operation struct {
	// ID is the provider-specific operation identifier, used for polling.
	ID string `json:"id"`

	Type   ActionType      `json:"type,omitempty"`
	Status OperationStatus `json:"status"`

	// ResourceID is the resource the operation acts on, when known.
	ResourceID string `json:"resource_id,omitempty"`

	StartedAt   time.Time `json:"started_at,omitempty"`
	CompletedAt time.Time `json:"completed_at,omitempty"`

	// ErrorMessage contains a human-readable explanation when Status is
	// "errored". Not all providers supply one.
	ErrorMessage string `json:"error_message,omitempty"`
}

// IsTerminal reports whether the operation has finished, regardless of outcome.
func (o *Operation) IsTerminal() bool {
	return o.Status == OperationCompleted || o.Status == OperationErrored
}
