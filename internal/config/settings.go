package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Settings is the fully resolved configuration of one invocation.
type Settings struct {
	Provider       string        `validate:"required,oneof=digitalocean hetzner"`
	DropletName    string        `validate:"required"`
	Retention      time.Duration `validate:"gt=0"`
	WaitInterval   time.Duration `validate:"gt=0"`
	MaxWait        time.Duration `validate:"gtefield=WaitInterval"`
	StepPolicy     string        `validate:"oneof=proceed strict"`
	FailOnError    bool
	PushgatewayURL string `validate:"omitempty,url"`
	LogLevel       string `validate:"oneof=debug info warn warning error disabled off"`
}

// LookupEnv reads an environment variable. os.LookupEnv satisfies it.
type LookupEnv func(key string) (string, bool)

// Defaults returns a Config holding the default value of every key.
func Defaults() *Config {
	cfg := &Config{}
	for _, k := range Keys {
		if k.Default != "" {
			// Defaults are well-formed by construction.
			_ = k.Set(cfg, k.Default)
		}
	}
	return cfg
}

// Merge layers the configuration sources of a run, later sources winning:
// defaults, the config file, the environment and finally flags (keyed by
// config key name). Empty values never override.
func Merge(file *Config, lookup LookupEnv, flags map[string]string) (*Config, error) {
	merged := Defaults()

	for _, k := range Keys {
		var source, value string

		if file != nil {
			if v := k.Get(file); v != "" {
				source, value = "config file", v
			}
		}
		if lookup != nil {
			names := append([]string{}, k.EnvAliases...)
			for _, name := range append(names, k.EnvName()) {
				if v, ok := lookup(name); ok && strings.TrimSpace(v) != "" {
					source, value = name, v
				}
			}
		}
		if v := flags[k.Name]; v != "" {
			source, value = "--"+k.Name, v
		}

		if source == "" {
			continue
		}
		if err := k.Set(merged, value); err != nil {
			return nil, fmt.Errorf("config: %s from %s: %w", k.Name, source, err)
		}
	}

	return merged, nil
}

// Resolve merges the sources with Merge and converts the result to
// Settings. Validation is left to Settings.Validate so commands can require
// different subsets.
func Resolve(file *Config, lookup LookupEnv, flags map[string]string) (*Settings, error) {
	merged, err := Merge(file, lookup, flags)
	if err != nil {
		return nil, err
	}
	return merged.Settings()
}

// Settings converts a merged Config into Settings.
func (c *Config) Settings() (*Settings, error) {
	s := &Settings{
		Provider:       c.DefaultProvider,
		DropletName:    c.DropletName,
		StepPolicy:     c.StepPolicy,
		PushgatewayURL: c.PushgatewayURL,
		LogLevel:       c.LogLevel,
	}
	if c.FailOnError != nil {
		s.FailOnError = *c.FailOnError
	}

	var err error
	if s.Retention, err = ParseDuration(c.Retention); err != nil {
		return nil, fmt.Errorf("config: retention: %w", err)
	}
	if s.WaitInterval, err = ParseDuration(c.WaitInterval); err != nil {
		return nil, fmt.Errorf("config: wait-interval: %w", err)
	}
	if s.MaxWait, err = ParseDuration(c.MaxWait); err != nil {
		return nil, fmt.Errorf("config: max-wait: %w", err)
	}

	return s, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the settings and reports every invalid field at once.
func (s *Settings) Validate() error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("config: %w", err)
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("config: %s", strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	key := fieldKeys[fe.Field()]
	if key == "" {
		key = fe.Field()
	}

	switch fe.Tag() {
	case "required":
		return key + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", key, fe.Param(), fe.Value())
	case "gt":
		return key + " must be positive"
	case "gtefield":
		return key + " must not be shorter than wait-interval"
	case "url":
		return fmt.Sprintf("%s must be a URL, got %q", key, fe.Value())
	}
	return fmt.Sprintf("%s failed %s validation", key, fe.Tag())
}

// fieldKeys maps Settings fields to the config key users set them with.
var fieldKeys = map[string]string{
	"Provider":       "default-provider",
	"DropletName":    "droplet-name",
	"Retention":      "retention",
	"WaitInterval":   "wait-interval",
	"MaxWait":        "max-wait",
	"StepPolicy":     "step-policy",
	"PushgatewayURL": "pushgateway-url",
	"LogLevel":       "log-level",
}

// ParseDuration extends time.ParseDuration with a whole-day unit, so "7d"
// is accepted alongside "168h".
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty duration")
	}

	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return d, nil
}
