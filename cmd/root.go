package cmd

import (
	"os"

	"nathanbeddoewebdev/snapcycle/cmd/commands/audit"
	"nathanbeddoewebdev/snapcycle/cmd/commands/auth"
	cfgcmd "nathanbeddoewebdev/snapcycle/cmd/commands/config"
	"nathanbeddoewebdev/snapcycle/cmd/commands/cycle"
	"nathanbeddoewebdev/snapcycle/internal/providers"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands.
func rootCmd() *cobra.Command {
	var cmd = &cobra.Command{
		Use:   "snapcycle",
		Short: "Rotating snapshots for a cloud droplet",
		Long: `snapcycle takes a consistent snapshot of a droplet and keeps a rolling
window of them. A run shuts the droplet down, powers it off, snapshots it,
powers it back on and deletes its snapshots older than the retention window.

Supported providers: DigitalOcean (default), Hetzner.

Quick start:
  snapcycle auth login digitalocean          # Store your API token
  snapcycle config set droplet-name web-1    # Pick the droplet
  snapcycle run                              # Run one cycle (e.g. from cron)
  snapcycle snapshots                        # See what is kept and what expires`,
	}

	cycle.AddGlobalFlags(cmd)

	cmd.AddCommand(cycle.RunCommand())
	cmd.AddCommand(cycle.PruneCommand())
	cmd.AddCommand(cycle.SnapshotsCommand())
	cmd.AddCommand(cycle.HistoryCommand())
	cmd.AddCommand(auth.NewCommand())
	cmd.AddCommand(cfgcmd.NewCommand())
	cmd.AddCommand(audit.NewCommand())

	return cmd
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	providers.RegisterAll()

	var root = rootCmd()
	err := root.Execute()
	if err != nil {
		os.Exit(1)
	}
}
