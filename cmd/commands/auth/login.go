package auth

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"nathanbeddoewebdev/snapcycle/internal/providers"
	"nathanbeddoewebdev/snapcycle/internal/services/auth"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func LoginCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login <provider>",
		Short: "Store an API token for a provider",
		Long: `Store an API token for a provider in the local keychain.

Examples:
  snapcycle auth login digitalocean
  snapcycle auth login hetzner --token "$HCLOUD_TOKEN"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := knownProvider(args[0])
			if err != nil {
				return err
			}

			token, _ := cmd.Flags().GetString("token")
			token = strings.TrimSpace(token)
			if token == "" {
				if token, err = promptToken(cmd); err != nil {
					return err
				}
			}
			if token == "" {
				return errors.New("token cannot be empty")
			}

			if err := newStore().SetToken(provider, token); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Saved token for provider %s\n", provider)
			return nil
		},
		SilenceUsage: true,
	}

	cmd.Flags().String("token", "", "API token (optional, overrides prompt)")

	return cmd
}

func LogoutCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logout <provider>",
		Short: "Remove the stored API token for a provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := knownProvider(args[0])
			if err != nil {
				return err
			}

			err = newStore().DeleteToken(provider)
			switch {
			case errors.Is(err, auth.ErrTokenNotFound):
				fmt.Fprintf(cmd.OutOrStdout(), "No token stored for provider %s\n", provider)
				return nil
			case err != nil:
				return fmt.Errorf("failed to remove token: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Removed token for provider %s\n", provider)
			return nil
		},
		SilenceUsage: true,
	}

	return cmd
}

// knownProvider normalizes name and checks it against the registry.
func knownProvider(name string) (string, error) {
	provider := auth.NormalizeProvider(name)
	for _, p := range providers.List() {
		if p == provider {
			return provider, nil
		}
	}
	return "", fmt.Errorf("unknown provider %q (available: %s)", name, strings.Join(providers.List(), ", "))
}

// promptToken reads a token without echo when stdin is a terminal, or a
// single line otherwise.
func promptToken(cmd *cobra.Command) (string, error) {
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.OutOrStdout(), "Enter API token: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.OutOrStdout())
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	return strings.TrimSpace(line), nil
}
