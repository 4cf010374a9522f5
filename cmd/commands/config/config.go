package config

import (
	"nathanbeddoewebdev/snapcycle/internal/config"

	"github.com/spf13/cobra"
)

// NewCommand returns the "config" parent command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage snapcycle configuration",
		Long: "View and modify persistent snapcycle settings.\n\n" +
			"Configuration is stored at ~/.config/snapcycle/config.json. Every key\n" +
			"can also be set through a SNAPCYCLE_<KEY> environment variable, and\n" +
			"command-line flags override both.\n\n" +
			config.KeysHelp(),
	}

	cmd.AddCommand(SetCommand())
	cmd.AddCommand(GetCommand())
	cmd.AddCommand(UnsetCommand())

	return cmd
}
