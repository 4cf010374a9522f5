// Package retention deletes a droplet's snapshots once they fall outside
// the validity window.
package retention

import (
	"context"
	"fmt"
	"time"

	"nathanbeddoewebdev/snapcycle/internal/domain"
	"nathanbeddoewebdev/snapcycle/internal/metrics"

	"github.com/rs/zerolog"
)

// DefaultMaxAge is the snapshot validity window.
const DefaultMaxAge = 7 * 24 * time.Hour

// Plan is the outcome of selecting snapshots for one resource.
type Plan struct {
	ResourceID string    `json:"resource_id"`
	Cutoff     time.Time `json:"cutoff"`

	// Keep holds the resource's snapshots still inside the window.
	Keep []domain.Snapshot `json:"keep"`

	// Delete holds the resource's expired snapshots in listing order.
	Delete []domain.Snapshot `json:"delete"`

	// Deleted holds the snapshots actually removed. It stays empty on a
	// dry run and is a prefix of Delete when a deletion fails.
	Deleted []domain.Snapshot `json:"deleted"`
}

// SelectExpired partitions the snapshots belonging to resourceID into those
// to keep and those older than maxAge at now. Snapshots of other resources
// are ignored. Listing order is preserved. A snapshot with an unknown
// (zero) creation time is always kept.
func SelectExpired(snapshots []domain.Snapshot, resourceID string, now time.Time, maxAge time.Duration) Plan {
	plan := Plan{
		ResourceID: resourceID,
		Cutoff:     now.Add(-maxAge),
	}

	for _, s := range snapshots {
		if s.ResourceID != resourceID {
			continue
		}
		if !s.CreatedAt.IsZero() && now.Sub(s.CreatedAt) > maxAge {
			plan.Delete = append(plan.Delete, s)
		} else {
			plan.Keep = append(plan.Keep, s)
		}
	}

	return plan
}

// Pruner removes expired snapshots through a provider.
type Pruner struct {
	provider     domain.Provider
	providerName string
	maxAge       time.Duration
	dryRun       bool
	metrics      *metrics.Metrics
	logger       zerolog.Logger
	now          func() time.Time
}

// Config configures a Pruner.
type Config struct {
	ProviderName string

	// MaxAge is the validity window. Zero means DefaultMaxAge.
	MaxAge time.Duration

	// DryRun selects snapshots without deleting them.
	DryRun bool

	Metrics *metrics.Metrics
	Logger  zerolog.Logger
}

// NewPruner creates a Pruner.
func NewPruner(provider domain.Provider, cfg Config) *Pruner {
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultMaxAge
	}
	return &Pruner{
		provider:     provider,
		providerName: cfg.ProviderName,
		maxAge:       cfg.MaxAge,
		dryRun:       cfg.DryRun,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger,
		now:          time.Now,
	}
}

// PruneExpired lists every snapshot, selects the expired ones of
// resourceID and deletes them one at a time in listing order. The first
// deletion error stops the run; the returned plan records what was
// removed before it.
func (p *Pruner) PruneExpired(ctx context.Context, resourceID string) (*Plan, error) {
	snapshots, err := p.provider.ListSnapshots(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to select expired snapshots: %w", err)
	}

	plan := SelectExpired(snapshots, resourceID, p.now(), p.maxAge)
	p.logger.Debug().
		Int("listed", len(snapshots)).
		Int("keep", len(plan.Keep)).
		Int("expired", len(plan.Delete)).
		Msg("selected expired snapshots")

	if p.dryRun {
		for _, s := range plan.Delete {
			p.logger.Info().Str("snapshot", s.ID).Msgf("would delete snapshot %s", s.Name)
		}
		return &plan, nil
	}

	for _, s := range plan.Delete {
		p.logger.Info().Str("snapshot", s.ID).Msgf("deleting snapshot %s", s.Name)
		if err := p.provider.DeleteSnapshot(ctx, s.ID); err != nil {
			return &plan, fmt.Errorf("failed to delete snapshot %s: %w", s.Name, err)
		}
		plan.Deleted = append(plan.Deleted, s)
		p.metrics.RecordSnapshotDeleted(p.providerName)
	}

	return &plan, nil
}
