package auth

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"nathanbeddoewebdev/snapcycle/internal/providers"
	"nathanbeddoewebdev/snapcycle/internal/services/auth"

	"github.com/spf13/cobra"
)

// envStore reports tokens found in the environment. Replaced in tests.
var envStore = func() auth.Store { return auth.NewEnvStore(nil) }

func StatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show authentication status for providers",
		Long: `Show which providers have an API token, and where it comes from.

Example:
  snapcycle auth status`,
		RunE: func(cmd *cobra.Command, args []string) error {
			names := providers.List()
			if len(names) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No providers registered.")
				return nil
			}

			store := newStore()
			env := envStore()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "PROVIDER\tSTATUS\tSOURCE")
			fmt.Fprintln(w, "--------\t------\t------")
			for _, provider := range names {
				status, source := "logged in", "keychain"
				if _, err := env.GetToken(provider); err == nil {
					source = "environment"
				}

				_, err := store.GetToken(provider)
				switch {
				case err == nil:
				case errors.Is(err, auth.ErrTokenNotFound):
					status, source = "not logged in", "-"
				default:
					status, source = fmt.Sprintf("error (%v)", err), "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", provider, status, source)
			}
			w.Flush()
			return nil
		},
		SilenceUsage: true,
	}

	return cmd
}
