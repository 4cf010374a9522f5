package domain

import "context"

// Provider is the control-plane boundary used by the snapshot lifecycle.
// Implementations translate provider SDK types and errors into the domain
// types and sentinel errors of this package.
type Provider interface {
	GetDisplayName() string

	// ListResources returns every resource visible to the credential.
	ListResources(ctx context.Context) ([]Resource, error)

	// SubmitAction requests a state change against a resource. The returned
	// operation has been accepted, not applied.
	SubmitAction(ctx context.Context, resourceID string, action Action) (*Operation, error)

	// GetOperation returns the current status of a submitted operation.
	GetOperation(ctx context.Context, operationID string) (*Operation, error)

	// ListSnapshots returns every snapshot visible to the credential. The
	// listing is not scoped to a resource.
	ListSnapshots(ctx context.Context) ([]Snapshot, error)

	DeleteSnapshot(ctx context.Context, snapshotID string) error
}
