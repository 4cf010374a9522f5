package cycle

import (
	"context"
	"fmt"

	"nathanbeddoewebdev/snapcycle/internal/config"
	"nathanbeddoewebdev/snapcycle/internal/domain"
	"nathanbeddoewebdev/snapcycle/internal/providers"
	"nathanbeddoewebdev/snapcycle/internal/services/auth"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// target is the resolved context shared by the droplet commands.
type target struct {
	settings *config.Settings
	logger   zerolog.Logger
	provider domain.Provider
}

// setup resolves settings, builds the logger and instantiates the provider.
func setup(cmd *cobra.Command, args []string) (*target, error) {
	settings, err := resolveSettings(cmd, args)
	if err != nil {
		return nil, err
	}

	logger := newLogger(cmd, settings.LogLevel).With().
		Str("provider", settings.Provider).
		Str("droplet", settings.DropletName).
		Logger()

	provider, err := providers.Get(settings.Provider, auth.DefaultStore())
	if err != nil {
		return nil, err
	}

	return &target{settings: settings, logger: logger, provider: provider}, nil
}

// findDroplet returns the droplet named in the settings.
func (t *target) findDroplet(ctx context.Context) (*domain.Resource, error) {
	resources, err := t.provider.ListResources(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to locate droplet %q: %w", t.settings.DropletName, err)
	}

	r := domain.FindResourceByName(resources, t.settings.DropletName)
	if r == nil {
		return nil, fmt.Errorf("droplet %q: %w", t.settings.DropletName, domain.ErrNotFound)
	}
	return r, nil
}
