package cycle

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"nathanbeddoewebdev/snapcycle/internal/actionstore"
	"nathanbeddoewebdev/snapcycle/internal/auditlog"
	"nathanbeddoewebdev/snapcycle/internal/metrics"
	"nathanbeddoewebdev/snapcycle/internal/services/action"
	"nathanbeddoewebdev/snapcycle/internal/services/lifecycle"
	"nathanbeddoewebdev/snapcycle/internal/services/retention"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// pushTimeout bounds the metrics push at the end of a run.
const pushTimeout = 10 * time.Second

// RunCommand returns the command that runs one full snapshot cycle.
func RunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [droplet-name]",
		Short: "Snapshot a droplet and prune expired snapshots",
		Long: `Run one snapshot cycle against a droplet:

  1. shut the droplet down
  2. power it off
  3. take a snapshot named after today's date (YYYY-MM-DD, UTC)
  4. power it back on
  5. delete its snapshots older than the retention window

Each action is polled until it completes, errors or runs out of time
(max-wait). Failures are logged and recorded in the audit trail; the
command still exits 0 unless --fail-on-error is set, so it can run from
cron without alerting on every transient failure.

Examples:
  snapcycle run web-1
  DROPLET_NAME=web-1 DO_TOKEN=... snapcycle run
  snapcycle run web-1 --step-policy strict --fail-on-error`,
		Args:         cobra.MaximumNArgs(1),
		RunE:         runCycle,
		SilenceUsage: true,
	}

	cmd.Flags().Bool("fail-on-error", false, "Exit with status 1 when the cycle fails")
	cmd.Flags().String("step-policy", "", "proceed (default) or strict")
	cmd.Flags().String("retention", "", "Delete snapshots older than this (e.g. 7d)")
	cmd.Flags().String("wait-interval", "", "Delay before each action status check (e.g. 10s)")
	cmd.Flags().String("max-wait", "", "Time budget for each action (e.g. 10m)")
	cmd.Flags().String("pushgateway-url", "", "Push run metrics to this Prometheus Pushgateway")

	return cmd
}

func runCycle(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd)
	defer cancel()

	runID := uuid.NewString()
	start := time.Now()

	t, err := setup(cmd, args)
	if err != nil {
		logger := newLogger(cmd, "").With().Str("run_id", runID).Logger()
		logger.Error().Err(err).Msg("snapshot cycle not started")
		recordRun(logger, cmd, args, runID, "", nil, err)
		return exitError(cmd, nil, err)
	}

	logger := t.logger.With().Str("run_id", runID).Logger()
	logger.Info().Msgf("starting snapshot cycle of droplet %s on %s", t.settings.DropletName, t.provider.GetDisplayName())

	m := metrics.New()
	orchestrator, closeHistory := newOrchestrator(t, logger, runID, m)
	defer closeHistory()

	err = orchestrator.RunSnapshotCycle(ctx, t.settings.DropletName)
	finished := time.Now()
	m.RecordRun(t.settings.Provider, err == nil, finished)

	if err != nil {
		logger.Error().Err(err).Msg("snapshot cycle failed")
	} else {
		logger.Info().
			Str("elapsed", finished.Sub(start).Round(time.Second).String()).
			Msg("snapshot cycle succeeded")
	}

	recordRun(logger, cmd, args, runID, t.settings.Provider, orchestrator, err)
	pushMetrics(logger, m, t.settings.PushgatewayURL, t.settings.DropletName)

	return exitError(cmd, &t.settings.FailOnError, err)
}

// newOrchestrator wires the poller, invoker and pruner of one run. The
// returned func closes the action history.
func newOrchestrator(t *target, logger zerolog.Logger, runID string, m *metrics.Metrics) (*lifecycle.Orchestrator, func()) {
	providerName := t.settings.Provider

	closeHistory := func() {}
	var history actionstore.ActionRepository
	if repo, err := actionstore.Open(); err != nil {
		logger.Warn().Err(err).Msg("action history unavailable")
	} else {
		history = repo
		closeHistory = func() { repo.Close() }
	}

	poller := action.NewPoller(t.provider, action.PollerConfig{
		ProviderName: providerName,
		WaitInterval: t.settings.WaitInterval,
		MaxWait:      t.settings.MaxWait,
		Metrics:      m,
		Logger:       logger,
	})
	invoker := action.NewInvoker(t.provider, providerName, poller, action.InvokerConfig{
		Repo:    history,
		Metrics: m,
		Logger:  logger,
		RunID:   runID,
	})
	pruner := retention.NewPruner(t.provider, retention.Config{
		ProviderName: providerName,
		MaxAge:       t.settings.Retention,
		Metrics:      m,
		Logger:       logger,
	})

	policy := lifecycle.StepPolicy(t.settings.StepPolicy)
	return lifecycle.New(t.provider, invoker, pruner, policy, logger), closeHistory
}

// recordRun writes the run-level audit entry. o may be nil when the cycle
// never started.
func recordRun(logger zerolog.Logger, cmd *cobra.Command, args []string, runID, provider string, o *lifecycle.Orchestrator, runErr error) {
	var repo auditlog.Repository
	sqlRepo, err := auditlog.Open()
	if err != nil {
		logger.Warn().Err(err).Msg("audit log unavailable")
	} else {
		repo = sqlRepo
		defer sqlRepo.Close()
	}

	session := auditlog.Begin(repo, logger, cmd.CommandPath(), os.Args[1:])
	session.SetRun(runID, provider)
	if o != nil {
		if r := o.Target(); r != nil {
			session.SetResource(r.ID, r.Name)
		}
	}
	session.Finish(runErr)
}

func pushMetrics(logger zerolog.Logger, m *metrics.Metrics, url, droplet string) {
	if url == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
	defer cancel()

	if err := m.Push(ctx, url, droplet); err != nil {
		logger.Warn().Err(err).Msg("failed to push metrics")
	}
}

// exitError decides whether a failed run surfaces as a non-zero exit.
// failOnError is nil when settings could not be resolved; the flag alone
// decides then.
func exitError(cmd *cobra.Command, failOnError *bool, err error) error {
	if err == nil {
		return nil
	}

	fail := false
	if failOnError != nil {
		fail = *failOnError
	} else if f := cmd.Flag("fail-on-error"); f != nil && f.Changed {
		fail = strings.EqualFold(f.Value.String(), "true")
	}

	if !fail {
		return nil
	}
	return fmt.Errorf("snapshot cycle failed: %w", err)
}
