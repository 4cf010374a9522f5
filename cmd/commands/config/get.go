package config

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"nathanbeddoewebdev/snapcycle/internal/config"

	"github.com/spf13/cobra"
)

// lookupEnv reads the environment. Replaced in tests.
var lookupEnv config.LookupEnv = os.LookupEnv

// GetCommand returns the "config get" command.
func GetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get [key]",
		Short: "Get a configuration value",
		Long: "Get a persistent configuration value.\n\n" +
			"Without a key, prints every key with the value stored in the config\n" +
			"file and the effective value after defaults and environment variables.\n\n" +
			config.KeysHelp() +
			"\nExamples:\n" +
			"  snapcycle config get                  # all keys\n" +
			"  snapcycle config get droplet-name     # a single stored value",
		Args:         cobra.MaximumNArgs(1),
		RunE:         runGet,
		SilenceUsage: true,
	}

	cmd.Flags().String("key", "", "Configuration key to fetch (same as the positional argument)")

	return cmd
}

func runGet(cmd *cobra.Command, args []string) error {
	key, _ := cmd.Flags().GetString("key")
	if len(args) > 0 {
		key = args[0]
	}
	key = strings.TrimSpace(key)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if key == "" {
		return printAll(cmd, cfg)
	}

	spec := config.Lookup(key)
	if spec == nil {
		return fmt.Errorf("unknown configuration key %q (valid: %s)", key, strings.Join(config.KeyNames(), ", "))
	}

	value := spec.Get(cfg)
	if value == "" {
		fmt.Fprintln(cmd.OutOrStdout(), "not set")
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), value)
	}
	return nil
}

func printAll(cmd *cobra.Command, cfg *config.Config) error {
	effective, err := config.Merge(cfg, lookupEnv, nil)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "KEY\tSTORED\tEFFECTIVE")
	fmt.Fprintln(w, "---\t------\t---------")
	for _, spec := range config.Keys {
		stored := spec.Get(cfg)
		if stored == "" {
			stored = "(not set)"
		}
		value := spec.Get(effective)
		if value == "" {
			value = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", spec.Name, stored, value)
	}
	return w.Flush()
}
