// Package lifecycle runs the snapshot cycle of a single droplet:
// shutdown, power off, snapshot, power on, then prune expired snapshots.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"nathanbeddoewebdev/snapcycle/internal/domain"
	"nathanbeddoewebdev/snapcycle/internal/services/retention"

	"github.com/rs/zerolog"
)

// StepPolicy decides what the cycle does with a step that finished
// without completing.
type StepPolicy string

const (
	// PolicyProceed runs every step regardless of earlier outcomes.
	PolicyProceed StepPolicy = "proceed"

	// PolicyStrict skips the snapshot when power-off did not complete and
	// skips pruning when no snapshot was taken. Power-on always runs.
	PolicyStrict StepPolicy = "strict"
)

// Valid reports whether p is a known policy.
func (p StepPolicy) Valid() bool {
	return p == PolicyProceed || p == PolicyStrict
}

// ResourceLister locates the target droplet.
type ResourceLister interface {
	ListResources(ctx context.Context) ([]domain.Resource, error)
}

// ActionRunner submits one action and waits for it.
type ActionRunner interface {
	RunAction(ctx context.Context, resource domain.Resource, actionType domain.ActionType, payload map[string]string) (bool, error)
}

// SnapshotPruner removes the expired snapshots of a resource.
type SnapshotPruner interface {
	PruneExpired(ctx context.Context, resourceID string) (*retention.Plan, error)
}

// Orchestrator sequences the steps of one snapshot cycle.
type Orchestrator struct {
	lister  ResourceLister
	runner  ActionRunner
	pruner  SnapshotPruner
	policy  StepPolicy
	logger  zerolog.Logger
	now     func() time.Time
	target  *domain.Resource
	results []StepResult
}

// StepResult is the outcome of one action step.
type StepResult struct {
	Action    domain.ActionType
	Completed bool
	Skipped   bool
}

// New creates an Orchestrator. An empty policy means PolicyProceed.
func New(lister ResourceLister, runner ActionRunner, pruner SnapshotPruner, policy StepPolicy, logger zerolog.Logger) *Orchestrator {
	if policy == "" {
		policy = PolicyProceed
	}
	return &Orchestrator{
		lister: lister,
		runner: runner,
		pruner: pruner,
		policy: policy,
		logger: logger,
		now:    time.Now,
	}
}

// Target returns the droplet located by the last cycle, or nil when it was
// not found.
func (o *Orchestrator) Target() *domain.Resource {
	return o.target
}

// Steps returns the step results of the last cycle.
func (o *Orchestrator) Steps() []StepResult {
	return o.results
}

// RunSnapshotCycle locates resourceName and runs the cycle against it.
//
// A missing droplet returns an error wrapping domain.ErrNotFound before any
// mutating call. Any error from a step aborts the remaining steps.
// Under PolicyProceed step outcomes are logged and otherwise ignored.
func (o *Orchestrator) RunSnapshotCycle(ctx context.Context, resourceName string) error {
	o.results = nil
	o.target = nil

	resources, err := o.lister.ListResources(ctx)
	if err != nil {
		return fmt.Errorf("failed to locate droplet %q: %w", resourceName, err)
	}

	target := domain.FindResourceByName(resources, resourceName)
	if target == nil {
		return fmt.Errorf("droplet %q: %w", resourceName, domain.ErrNotFound)
	}
	resource := *target
	o.target = &resource

	o.logger.Info().
		Str("droplet_id", resource.ID).
		Str("status", resource.Status).
		Msgf("found droplet %s", resource.Name)

	if _, err := o.step(ctx, resource, domain.ActionShutdown, nil); err != nil {
		return err
	}

	poweredOff, err := o.step(ctx, resource, domain.ActionPowerOff, nil)
	if err != nil {
		return err
	}

	snapshotTaken := false
	if o.policy == PolicyStrict && !poweredOff {
		o.skip(domain.ActionSnapshot, "droplet did not power off")
	} else {
		payload := map[string]string{"name": domain.SnapshotName(o.now())}
		snapshotTaken, err = o.step(ctx, resource, domain.ActionSnapshot, payload)
		if err != nil {
			return err
		}
	}

	if _, err := o.step(ctx, resource, domain.ActionPowerOn, nil); err != nil {
		return err
	}

	if o.policy == PolicyStrict && !snapshotTaken {
		o.logger.Warn().Msg("skipping prune: no snapshot was taken")
		return fmt.Errorf("snapshot of droplet %q not taken: %w", resource.Name, domain.ErrStepFailed)
	}

	plan, err := o.pruner.PruneExpired(ctx, resource.ID)
	if err != nil {
		return err
	}

	o.logger.Info().
		Int("deleted", len(plan.Deleted)).
		Int("kept", len(plan.Keep)).
		Msg("snapshot cycle finished")
	return nil
}

func (o *Orchestrator) step(ctx context.Context, resource domain.Resource, actionType domain.ActionType, payload map[string]string) (bool, error) {
	completed, err := o.runner.RunAction(ctx, resource, actionType, payload)
	if err != nil {
		return false, err
	}

	o.results = append(o.results, StepResult{Action: actionType, Completed: completed})
	if !completed {
		o.logger.Warn().Str("policy", string(o.policy)).Msgf("step %s did not complete", actionType)
	}
	return completed, nil
}

func (o *Orchestrator) skip(actionType domain.ActionType, reason string) {
	o.results = append(o.results, StepResult{Action: actionType, Skipped: true})
	o.logger.Warn().Str("reason", reason).Msgf("skipping step %s", actionType)
}
