package domain

import (
	"context"
	"fmt"
	"sync"
)

// SubmittedAction is one SubmitAction call seen by a MockProvider.
type SubmittedAction struct {
	ResourceID string
	Action     Action
}

// MockProvider is an in-memory Provider for tests. Operations complete on
// the first status query unless Statuses scripts otherwise.
type MockProvider struct {
	mu sync.Mutex

	Resources []Resource
	Snapshots []Snapshot

	ListResourcesErr error
	ListSnapshotsErr error
	StatusErr        error
	SubmitErrs       map[ActionType]error
	DeleteErrs       map[string]error

	// Statuses scripts the statuses returned for each action type's
	// operation. The last entry repeats once the script is exhausted.
	Statuses map[ActionType][]OperationStatus

	Submitted []SubmittedAction
	Deleted   []string
	Queries   int

	ops    map[string]*Operation
	served map[string]int
}

// NewMockProvider returns a MockProvider holding resources and snapshots.
func NewMockProvider(resources []Resource, snapshots []Snapshot) *MockProvider {
	return &MockProvider{Resources: resources, Snapshots: snapshots}
}

func (m *MockProvider) GetDisplayName() string { return "Mock" }

func (m *MockProvider) ListResources(_ context.Context) ([]Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListResourcesErr != nil {
		return nil, m.ListResourcesErr
	}
	return append([]Resource(nil), m.Resources...), nil
}

func (m *MockProvider) SubmitAction(_ context.Context, resourceID string, action Action) (*Operation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Submitted = append(m.Submitted, SubmittedAction{ResourceID: resourceID, Action: action})
	if err := m.SubmitErrs[action.Type]; err != nil {
		return nil, err
	}

	if m.ops == nil {
		m.ops = make(map[string]*Operation)
		m.served = make(map[string]int)
	}
	op := &Operation{
		ID:         fmt.Sprintf("op-%d", len(m.Submitted)),
		Type:       action.Type,
		Status:     OperationInProgress,
		ResourceID: resourceID,
	}
	m.ops[op.ID] = op
	copied := *op
	return &copied, nil
}

func (m *MockProvider) GetOperation(_ context.Context, operationID string) (*Operation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Queries++
	if m.StatusErr != nil {
		return nil, m.StatusErr
	}
	op, ok := m.ops[operationID]
	if !ok {
		return nil, fmt.Errorf("operation %s: %w", operationID, ErrNotFound)
	}

	status := OperationCompleted
	if script := m.Statuses[op.Type]; len(script) > 0 {
		i := m.served[operationID]
		if i >= len(script) {
			i = len(script) - 1
		}
		status = script[i]
	}
	m.served[operationID]++

	copied := *op
	copied.Status = status
	return &copied, nil
}

func (m *MockProvider) ListSnapshots(_ context.Context) ([]Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListSnapshotsErr != nil {
		return nil, m.ListSnapshotsErr
	}
	return append([]Snapshot(nil), m.Snapshots...), nil
}

func (m *MockProvider) DeleteSnapshot(_ context.Context, snapshotID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Deleted = append(m.Deleted, snapshotID)
	return m.DeleteErrs[snapshotID]
}

// SubmittedTypes returns the action types submitted so far, in order.
func (m *MockProvider) SubmittedTypes() []ActionType {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]ActionType, len(m.Submitted))
	for i, s := range m.Submitted {
		types[i] = s.Action.Type
	}
	return types
}
