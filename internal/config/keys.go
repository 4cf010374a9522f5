package config

import (
	"fmt"
	"strconv"
	"strings"

	"nathanbeddoewebdev/snapcycle/internal/util"
)

// KeySpec describes a single configuration key.
type KeySpec struct {
	// Name is the CLI-facing key name (e.g. "default-provider").
	Name string

	// Description is a short human-readable explanation shown in help text.
	Description string

	// Default is the value used when neither the file, the environment
	// nor a flag sets the key. Empty means no default.
	Default string

	// EnvAliases are environment variables read in addition to EnvName().
	EnvAliases []string

	// Get returns the current value for this key from a loaded Config.
	Get func(cfg *Config) string

	// Set parses and applies a value for this key to the given Config (in
	// memory only; the caller is responsible for calling Save).
	Set func(cfg *Config, value string) error
}

// EnvName returns the environment variable bound to the key, e.g.
// SNAPCYCLE_MAX_WAIT for "max-wait".
func (k KeySpec) EnvName() string {
	return envPrefix + strings.ToUpper(strings.ReplaceAll(k.Name, "-", "_"))
}

const envPrefix = "SNAPCYCLE_"

// Keys is the authoritative list of all supported configuration keys.
// To add a new option: add a field to Config and Settings and append a
// KeySpec here.
var Keys = []KeySpec{
	{
		Name:        "default-provider",
		Description: "Cloud provider used when --provider is not specified",
		Default:     "digitalocean",
		Get:         func(cfg *Config) string { return cfg.DefaultProvider },
		Set: func(cfg *Config, v string) error {
			cfg.DefaultProvider = util.NormalizeKey(v)
			return nil
		},
	},
	{
		Name:        "droplet-name",
		Description: "Name of the droplet to snapshot",
		EnvAliases:  []string{"DROPLET_NAME"},
		Get:         func(cfg *Config) string { return cfg.DropletName },
		Set: func(cfg *Config, v string) error {
			cfg.DropletName = strings.TrimSpace(v)
			return nil
		},
	},
	{
		Name:        "retention",
		Description: "Age after which a snapshot is deleted (e.g. 7d, 168h)",
		Default:     "7d",
		Get:         func(cfg *Config) string { return cfg.Retention },
		Set:         setDuration(func(cfg *Config) *string { return &cfg.Retention }),
	},
	{
		Name:        "wait-interval",
		Description: "Delay before each action status check",
		Default:     "10s",
		Get:         func(cfg *Config) string { return cfg.WaitInterval },
		Set:         setDuration(func(cfg *Config) *string { return &cfg.WaitInterval }),
	},
	{
		Name:        "max-wait",
		Description: "Time budget for a single action to finish",
		Default:     "10m",
		Get:         func(cfg *Config) string { return cfg.MaxWait },
		Set:         setDuration(func(cfg *Config) *string { return &cfg.MaxWait }),
	},
	{
		Name:        "step-policy",
		Description: "What to do when a step fails: proceed or strict",
		Default:     "proceed",
		Get:         func(cfg *Config) string { return cfg.StepPolicy },
		Set: func(cfg *Config, v string) error {
			v = util.NormalizeKey(v)
			if v != "proceed" && v != "strict" {
				return fmt.Errorf("invalid step policy %q (expected proceed or strict)", v)
			}
			cfg.StepPolicy = v
			return nil
		},
	},
	{
		Name:        "fail-on-error",
		Description: "Exit with status 1 when the cycle fails",
		Default:     "false",
		Get: func(cfg *Config) string {
			if cfg.FailOnError == nil {
				return ""
			}
			return strconv.FormatBool(*cfg.FailOnError)
		},
		Set: func(cfg *Config, v string) error {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("invalid boolean %q", v)
			}
			cfg.FailOnError = &b
			return nil
		},
	},
	{
		Name:        "pushgateway-url",
		Description: "Prometheus Pushgateway that receives run metrics",
		Get:         func(cfg *Config) string { return cfg.PushgatewayURL },
		Set: func(cfg *Config, v string) error {
			cfg.PushgatewayURL = strings.TrimSpace(v)
			return nil
		},
	},
	{
		Name:        "log-level",
		Description: "Log level: debug, info, warn or error",
		Default:     "info",
		EnvAliases:  []string{"LOG_LEVEL"},
		Get:         func(cfg *Config) string { return cfg.LogLevel },
		Set: func(cfg *Config, v string) error {
			cfg.LogLevel = util.NormalizeKey(v)
			return nil
		},
	},
}

func setDuration(field func(cfg *Config) *string) func(cfg *Config, v string) error {
	return func(cfg *Config, v string) error {
		v = strings.TrimSpace(v)
		if _, err := ParseDuration(v); err != nil {
			return err
		}
		*field(cfg) = v
		return nil
	}
}

// Lookup returns the KeySpec for the given name, or nil if not found.
// The name is matched case-insensitively after trimming whitespace.
func Lookup(name string) *KeySpec {
	normalized := util.NormalizeKey(name)
	for i := range Keys {
		if Keys[i].Name == normalized {
			return &Keys[i]
		}
	}
	return nil
}

// Unset clears the value stored for the named key.
func (c *Config) Unset(name string) error {
	switch util.NormalizeKey(name) {
	case "default-provider":
		c.DefaultProvider = ""
	case "droplet-name":
		c.DropletName = ""
	case "retention":
		c.Retention = ""
	case "wait-interval":
		c.WaitInterval = ""
	case "max-wait":
		c.MaxWait = ""
	case "step-policy":
		c.StepPolicy = ""
	case "fail-on-error":
		c.FailOnError = nil
	case "pushgateway-url":
		c.PushgatewayURL = ""
	case "log-level":
		c.LogLevel = ""
	default:
		return fmt.Errorf("unknown configuration key %q", name)
	}
	return nil
}

// KeyNames returns the names of all registered keys.
func KeyNames() []string {
	names := make([]string, len(Keys))
	for i, k := range Keys {
		names[i] = k.Name
	}
	return names
}

// KeysHelp builds a formatted block listing all available keys and their
// descriptions, suitable for inclusion in Cobra Long help text.
func KeysHelp() string {
	if len(Keys) == 0 {
		return ""
	}

	// Find the longest key name for alignment.
	maxLen := 0
	for _, k := range Keys {
		if len(k.Name) > maxLen {
			maxLen = len(k.Name)
		}
	}

	var b strings.Builder
	b.WriteString("Available keys:\n")
	for _, k := range Keys {
		desc := k.Description
		if k.Default != "" {
			desc += " (default " + k.Default + ")"
		}
		fmt.Fprintf(&b, "  %-*s   %s\n", maxLen, k.Name, desc)
	}
	return b.String()
}
