package audit

import "github.com/spf13/cobra"

// NewCommand returns the "audit" parent command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "View and manage audit history",
		Long: "View the local audit trail of snapshot runs and prune old entries.\n\n" +
			"Every run writes one entry, stored in ~/.config/snapcycle/snapcycle.db\n" +
			"(or $SNAPCYCLE_DB).",
		SilenceUsage: true,
	}

	cmd.AddCommand(ListCommand())
	cmd.AddCommand(PruneCommand())

	return cmd
}
