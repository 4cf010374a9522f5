// Package cycle holds the commands that operate on a droplet's snapshot
// cycle: run, prune, snapshots and history.
package cycle

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"nathanbeddoewebdev/snapcycle/internal/config"
	"nathanbeddoewebdev/snapcycle/internal/logging"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// lookupEnv reads the environment. Replaced in tests.
var lookupEnv config.LookupEnv = os.LookupEnv

// stopSignals cancel the context of a droplet command.
var stopSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

// signalContext derives the command context, canceled on stopSignals.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return signal.NotifyContext(ctx, stopSignals...)
}

// AddGlobalFlags registers the flags shared by every command on root.
func AddGlobalFlags(root *cobra.Command) {
	root.PersistentFlags().String("provider", "", "Cloud provider to use (overrides default-provider)")
	root.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
	root.PersistentFlags().String("log-format", "console", "Log format: console or json")
}

// flagKeys maps command-line flags onto the config keys they override.
var flagKeys = map[string]string{
	"provider":        "default-provider",
	"log-level":       "log-level",
	"retention":       "retention",
	"wait-interval":   "wait-interval",
	"max-wait":        "max-wait",
	"step-policy":     "step-policy",
	"fail-on-error":   "fail-on-error",
	"pushgateway-url": "pushgateway-url",
}

// resolveSettings merges the config file, the environment and the flags of
// cmd. An optional positional argument names the droplet.
func resolveSettings(cmd *cobra.Command, args []string) (*config.Settings, error) {
	file, err := config.Load()
	if err != nil {
		return nil, err
	}

	overrides := make(map[string]string)
	for flag, key := range flagKeys {
		f := cmd.Flag(flag)
		if f != nil && f.Changed {
			overrides[key] = f.Value.String()
		}
	}
	if len(args) > 0 {
		overrides["droplet-name"] = args[0]
	}

	settings, err := config.Resolve(file, lookupEnv, overrides)
	if err != nil {
		return nil, err
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// newLogger builds the command logger writing to cmd's stderr. level may be
// empty, in which case the --log-level flag or info is used.
func newLogger(cmd *cobra.Command, level string) zerolog.Logger {
	if f := cmd.Flag("log-level"); f != nil && f.Changed {
		level = f.Value.String()
	}

	format := "console"
	if f := cmd.Flag("log-format"); f != nil {
		format = f.Value.String()
	}

	w := cmd.ErrOrStderr()
	return logging.New(w, logging.Options{
		Level:   level,
		Format:  format,
		NoColor: !isTerminal(w),
	})
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func checkOutputFormat(output string) error {
	if output != "table" && output != "json" {
		return fmt.Errorf("unsupported output format %q", output)
	}
	return nil
}
