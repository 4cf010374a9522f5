package auth

import (
	"nathanbeddoewebdev/snapcycle/internal/services/auth"

	"github.com/spf13/cobra"
)

// newStore returns the token store used by the auth commands. Replaced in
// tests.
var newStore = auth.DefaultStore

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage API tokens for providers",
		Long: `Manage API tokens for providers.

Tokens are stored in the OS keychain. A token exported in the environment
(DO_TOKEN, DIGITALOCEAN_TOKEN or HCLOUD_TOKEN) takes precedence over the
keychain.`,
	}

	cmd.AddCommand(LoginCommand())
	cmd.AddCommand(LogoutCommand())
	cmd.AddCommand(StatusCommand())

	return cmd
}
