// Package action submits droplet actions and waits for the resulting
// operations to finish.
package action

import (
	"context"
	"fmt"
	"math"
	"time"

	"nathanbeddoewebdev/snapcycle/internal/actionstore"
	"nathanbeddoewebdev/snapcycle/internal/domain"
	"nathanbeddoewebdev/snapcycle/internal/metrics"

	"github.com/rs/zerolog"
)

// historyRetention is how long finished action records are kept.
const historyRetention = 90 * 24 * time.Hour

// Invoker submits an action and waits for it through a Poller.
type Invoker struct {
	provider     domain.Provider
	providerName string
	poller       *Poller
	repo         actionstore.ActionRepository
	metrics      *metrics.Metrics
	logger       zerolog.Logger
	runID        string
	now          func() time.Time
}

// InvokerConfig carries the optional collaborators of an Invoker.
type InvokerConfig struct {
	// Repo stores action history. Nil disables history.
	Repo    actionstore.ActionRepository
	Metrics *metrics.Metrics
	Logger  zerolog.Logger

	// RunID tags every history record written by this invoker.
	RunID string
}

// NewInvoker creates an Invoker.
func NewInvoker(provider domain.Provider, providerName string, poller *Poller, cfg InvokerConfig) *Invoker {
	return &Invoker{
		provider:     provider,
		providerName: providerName,
		poller:       poller,
		repo:         cfg.Repo,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger,
		runID:        cfg.RunID,
		now:          time.Now,
	}
}

// RunAction submits {actionType, payload} against resource and reports
// whether the resulting operation completed.
//
// Submission errors are returned unchanged in meaning and never retried.
// Status query errors from the poller are returned as well. A false result
// with a nil error means the operation errored or timed out.
func (inv *Invoker) RunAction(ctx context.Context, resource domain.Resource, actionType domain.ActionType, payload map[string]string) (bool, error) {
	if !actionType.Valid() {
		return false, fmt.Errorf("unsupported action type %q", actionType)
	}

	log := inv.logger.With().Str("action", string(actionType)).Logger()
	log.Info().Msgf("starting action %s", actionType)

	start := inv.now()
	op, err := inv.provider.SubmitAction(ctx, resource.ID, domain.Action{Type: actionType, Payload: payload})
	if err != nil {
		inv.recordFailedSubmission(resource, actionType, err)
		return false, fmt.Errorf("failed to submit %s action: %w", actionType, err)
	}

	record := inv.track(resource, actionType, op)

	success, err := inv.poller.AwaitCompletion(ctx, op.ID)
	elapsed := inv.now().Sub(start)
	seconds := int64(math.Round(elapsed.Seconds()))

	inv.metrics.RecordAction(inv.providerName, string(actionType), success, elapsed)

	if err != nil {
		inv.finalize(record, actionstore.StatusError, seconds, err.Error())
		log.Error().Err(err).Int64("seconds", seconds).Msgf("action %s aborted after %d seconds", actionType, seconds)
		return false, err
	}

	result := actionstore.StatusSuccess
	if !success {
		result = actionstore.StatusError
	}
	inv.finalize(record, result, seconds, "")

	log.Info().
		Str("operation", op.ID).
		Int64("seconds", seconds).
		Bool("success", success).
		Msgf("action %s finished in %d seconds with %s", actionType, seconds, result)

	return success, nil
}

// track persists a running record for op. History is best effort: a
// failing store never fails the action.
func (inv *Invoker) track(resource domain.Resource, actionType domain.ActionType, op *domain.Operation) *actionstore.ActionRecord {
	if inv.repo == nil {
		return nil
	}

	record := &actionstore.ActionRecord{
		RunID:        inv.runID,
		OperationID:  op.ID,
		Provider:     inv.providerName,
		ResourceID:   resource.ID,
		ResourceName: resource.Name,
		ActionType:   string(actionType),
		Status:       actionstore.StatusRunning,
	}
	if err := inv.repo.Save(record); err != nil {
		inv.logger.Warn().Err(err).Msg("failed to record action")
		return nil
	}

	// Opportunistically clean up old finished records.
	_, _ = inv.repo.DeleteOlderThan(historyRetention)

	return record
}

func (inv *Invoker) finalize(record *actionstore.ActionRecord, status string, seconds int64, errMsg string) {
	if inv.repo == nil || record == nil {
		return
	}

	record.Status = status
	record.DurationSeconds = seconds
	record.ErrorMessage = errMsg
	if err := inv.repo.Save(record); err != nil {
		inv.logger.Warn().Err(err).Msg("failed to update action record")
	}
}

func (inv *Invoker) recordFailedSubmission(resource domain.Resource, actionType domain.ActionType, submitErr error) {
	inv.metrics.RecordAction(inv.providerName, string(actionType), false, 0)
	if inv.repo == nil {
		return
	}

	record := &actionstore.ActionRecord{
		RunID:        inv.runID,
		Provider:     inv.providerName,
		ResourceID:   resource.ID,
		ResourceName: resource.Name,
		ActionType:   string(actionType),
		Status:       actionstore.StatusError,
		ErrorMessage: submitErr.Error(),
	}
	if err := inv.repo.Save(record); err != nil {
		inv.logger.Warn().Err(err).Msg("failed to record action")
	}
}
