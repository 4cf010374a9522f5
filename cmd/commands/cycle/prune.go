package cycle

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"nathanbeddoewebdev/snapcycle/internal/services/retention"

	"github.com/spf13/cobra"
)

// PruneCommand returns the command that only deletes expired snapshots.
func PruneCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune [droplet-name]",
		Short: "Delete a droplet's expired snapshots",
		Long: `Delete the snapshots of a droplet that are older than the retention
window, without taking a new snapshot.

Examples:
  snapcycle prune web-1
  snapcycle prune web-1 --dry-run
  snapcycle prune web-1 --retention 14d -o json`,
		Args:         cobra.MaximumNArgs(1),
		RunE:         runPrune,
		SilenceUsage: true,
	}

	cmd.Flags().Bool("dry-run", false, "Show what would be deleted without deleting")
	cmd.Flags().String("retention", "", "Delete snapshots older than this (e.g. 7d)")
	cmd.Flags().StringP("output", "o", "table", "Output format: table or json")

	return cmd
}

func runPrune(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")
	if err := checkOutputFormat(output); err != nil {
		return err
	}
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	ctx, cancel := signalContext(cmd)
	defer cancel()

	t, err := setup(cmd, args)
	if err != nil {
		return err
	}

	droplet, err := t.findDroplet(ctx)
	if err != nil {
		return err
	}

	pruner := retention.NewPruner(t.provider, retention.Config{
		ProviderName: t.settings.Provider,
		MaxAge:       t.settings.Retention,
		DryRun:       dryRun,
		Logger:       t.logger,
	})

	plan, pruneErr := pruner.PruneExpired(ctx, droplet.ID)
	if plan == nil {
		return pruneErr
	}

	if output == "json" {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(plan); err != nil {
			return err
		}
		return pruneErr
	}

	printPlan(cmd, plan, dryRun)
	return pruneErr
}

func printPlan(cmd *cobra.Command, plan *retention.Plan, dryRun bool) {
	out := cmd.OutOrStdout()
	if len(plan.Delete) == 0 {
		fmt.Fprintln(out, "No expired snapshots.")
		return
	}

	deleted := make(map[string]bool, len(plan.Deleted))
	for _, s := range plan.Deleted {
		deleted[s.ID] = true
	}

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCREATED\tRESULT")
	fmt.Fprintln(w, "--\t----\t-------\t------")
	for _, s := range plan.Delete {
		result := "kept (error)"
		switch {
		case dryRun:
			result = "would delete"
		case deleted[s.ID]:
			result = "deleted"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.ID, s.Name, s.CreatedAt.Local().Format("2006-01-02 15:04"), result)
	}
	w.Flush()
}
