package cycle

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"nathanbeddoewebdev/snapcycle/internal/actionstore"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// HistoryCommand returns the command listing recorded droplet actions.
func HistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded droplet actions",
		Long: `Show the droplet actions submitted by previous runs, newest first.

Examples:
  snapcycle history
  snapcycle history --limit 50
  snapcycle history --run 5f0c... -o json`,
		Args:         cobra.NoArgs,
		RunE:         runHistory,
		SilenceUsage: true,
	}

	cmd.Flags().Int("limit", 20, "Number of actions to display")
	cmd.Flags().String("run", "", "Only show the actions of this run ID")
	cmd.Flags().StringP("output", "o", "table", "Output format: table or json")

	return cmd
}

func runHistory(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	if limit <= 0 {
		return fmt.Errorf("limit must be greater than 0")
	}
	runID, _ := cmd.Flags().GetString("run")
	output, _ := cmd.Flags().GetString("output")
	if err := checkOutputFormat(output); err != nil {
		return err
	}

	repo, err := actionstore.Open()
	if err != nil {
		return err
	}
	defer repo.Close()

	var records []actionstore.ActionRecord
	if runID != "" {
		records, err = repo.ListByRun(runID)
	} else {
		records, err = repo.ListRecent(limit)
	}
	if err != nil {
		return err
	}

	if output == "json" {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(records)
	}

	if len(records) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No actions recorded.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tRUN\tDROPLET\tACTION\tSTATUS\tDURATION\tDETAIL")
	fmt.Fprintln(w, "----\t---\t-------\t------\t------\t--------\t------")
	for _, r := range records {
		droplet := r.ResourceName
		if droplet == "" {
			droplet = r.ResourceID
		}
		detail := r.ErrorMessage
		if detail == "" {
			detail = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%ds\t%s\n",
			humanize.Time(r.CreatedAt),
			shortRunID(r.RunID),
			droplet,
			r.ActionType,
			r.Status,
			r.DurationSeconds,
			detail,
		)
	}
	w.Flush()
	return nil
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	if id == "" {
		return "-"
	}
	return id
}
