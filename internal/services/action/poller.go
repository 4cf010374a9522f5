package action

import (
	"context"
	"fmt"
	"time"

	"nathanbeddoewebdev/snapcycle/internal/domain"
	"nathanbeddoewebdev/snapcycle/internal/metrics"

	"github.com/rs/zerolog"
)

const (
	// DefaultWaitInterval is the delay before every status query.
	DefaultWaitInterval = 10 * time.Second

	// DefaultMaxWait is the total polling budget for one operation.
	// With DefaultWaitInterval this gives 60 trials.
	DefaultMaxWait = 10 * time.Minute
)

// StatusSource is the part of domain.Provider the poller depends on.
type StatusSource interface {
	GetOperation(ctx context.Context, operationID string) (*domain.Operation, error)
}

// Poller waits for a submitted operation to reach a terminal status.
type Poller struct {
	source       StatusSource
	providerName string
	interval     time.Duration
	maxTrials    int
	metrics      *metrics.Metrics
	logger       zerolog.Logger

	// sleep blocks for d or until ctx is done. Replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// PollerConfig configures a Poller. Zero durations fall back to the defaults.
type PollerConfig struct {
	ProviderName string
	WaitInterval time.Duration
	MaxWait      time.Duration
	Metrics      *metrics.Metrics
	Logger       zerolog.Logger
}

// NewPoller creates a Poller querying source.
func NewPoller(source StatusSource, cfg PollerConfig) *Poller {
	if cfg.WaitInterval <= 0 {
		cfg.WaitInterval = DefaultWaitInterval
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = DefaultMaxWait
	}
	return &Poller{
		source:       source,
		providerName: cfg.ProviderName,
		interval:     cfg.WaitInterval,
		maxTrials:    MaxTrials(cfg.MaxWait, cfg.WaitInterval),
		metrics:      cfg.Metrics,
		logger:       cfg.Logger,
		sleep:        sleepContext,
	}
}

// MaxTrials returns the number of status queries that fit in maxWait.
func MaxTrials(maxWait, interval time.Duration) int {
	if interval <= 0 {
		return 0
	}
	return int(maxWait / interval)
}

// Trials returns the poller's trial budget.
func (p *Poller) Trials() int { return p.maxTrials }

// AwaitCompletion polls the operation until it is completed (true), errored
// (false) or the trial budget runs out (false). Every query is preceded by
// one wait interval, so the first query happens no earlier than one
// interval after submission.
//
// A failed status query is returned as an error; a timeout is not.
func (p *Poller) AwaitCompletion(ctx context.Context, operationID string) (bool, error) {
	log := p.logger.With().Str("operation", operationID).Logger()

	for trial := 1; trial <= p.maxTrials; trial++ {
		if err := p.sleep(ctx, p.interval); err != nil {
			return false, err
		}

		op, err := p.source.GetOperation(ctx, operationID)
		p.metrics.RecordPoll(p.providerName)
		if err != nil {
			return false, fmt.Errorf("failed to get status of operation %s: %w", operationID, err)
		}

		switch op.Status {
		case domain.OperationCompleted:
			return true, nil
		case domain.OperationErrored:
			ev := log.Warn()
			if op.ErrorMessage != "" {
				ev = ev.Str("reason", op.ErrorMessage)
			}
			ev.Msg("operation errored")
			return false, nil
		default:
			log.Debug().
				Int("trial", trial).
				Int("max_trials", p.maxTrials).
				Str("status", string(op.Status)).
				Msg("operation still running")
		}
	}

	log.Warn().
		Int("max_trials", p.maxTrials).
		Dur("interval", p.interval).
		Msg("gave up waiting for operation")
	return false, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
