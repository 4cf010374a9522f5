package cycle

import (
	"encoding/json"
	"fmt"
	"slices"
	"text/tabwriter"
	"time"

	"nathanbeddoewebdev/snapcycle/internal/domain"
	"nathanbeddoewebdev/snapcycle/internal/services/retention"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// SnapshotsCommand returns the command listing a droplet's snapshots.
func SnapshotsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshots [droplet-name]",
		Short: "List a droplet's snapshots and their expiry",
		Long: `List the snapshots of a droplet, oldest first, marking those older than the
retention window that the next run will delete.

Examples:
  snapcycle snapshots web-1
  snapcycle snapshots web-1 -o json`,
		Args:         cobra.MaximumNArgs(1),
		RunE:         runSnapshots,
		SilenceUsage: true,
	}

	cmd.Flags().String("retention", "", "Retention window used to flag expired snapshots")
	cmd.Flags().StringP("output", "o", "table", "Output format: table or json")

	return cmd
}

type snapshotView struct {
	domain.Snapshot
	Expired bool `json:"expired"`
}

// now is the clock used for ages. Replaced in tests.
var now = time.Now

func runSnapshots(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")
	if err := checkOutputFormat(output); err != nil {
		return err
	}

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

	all, err := t.provider.ListSnapshots(ctx)
	if err != nil {
		return err
	}

	plan := retention.SelectExpired(all, droplet.ID, now(), t.settings.Retention)
	views := make([]snapshotView, 0, len(plan.Keep)+len(plan.Delete))
	for _, s := range plan.Delete {
		views = append(views, snapshotView{Snapshot: s, Expired: true})
	}
	for _, s := range plan.Keep {
		views = append(views, snapshotView{Snapshot: s})
	}
	slices.SortStableFunc(views, func(a, b snapshotView) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	if output == "json" {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(views)
	}

	if len(views) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No snapshots found for droplet %s.\n", droplet.Name)
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCREATED\tAGE\tSIZE\tEXPIRED")
	fmt.Fprintln(w, "--\t----\t-------\t---\t----\t-------")
	for _, v := range views {
		expired := "no"
		if v.Expired {
			expired = "yes"
		}
		created, age := "-", "unknown"
		if !v.CreatedAt.IsZero() {
			created = v.CreatedAt.Local().Format("2006-01-02 15:04")
			age = humanize.RelTime(v.CreatedAt, now(), "ago", "from now")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			v.ID,
			v.Name,
			created,
			age,
			formatSize(v.SizeGigabytes),
			expired,
		)
	}
	w.Flush()
	return nil
}

func formatSize(gb float64) string {
	if gb <= 0 {
		return "-"
	}
	return humanize.Bytes(uint64(gb * 1e9))
}
