package providers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"nathanbeddoewebdev/snapcycle/internal/domain"
	"nathanbeddoewebdev/snapcycle/internal/services/auth"

	"github.com/digitalocean/godo"
)

const userAgent = "snapcycle/0.1.0"

// listPageSize is the page size for droplet and snapshot listings.
const listPageSize = 200

// DigitalOceanProvider implements domain.Provider using the DigitalOcean API.
type DigitalOceanProvider struct {
	client *godo.Client
}

// NewDigitalOceanProvider creates a DigitalOceanProvider authenticating with
// token. Options are applied after the defaults; tests use them to point the
// client at a local server.
func NewDigitalOceanProvider(token string, opts ...godo.ClientOpt) (*DigitalOceanProvider, error) {
	httpClient := &http.Client{Transport: &bearerTransport{token: token}}

	defaults := []godo.ClientOpt{godo.SetUserAgent(userAgent)}
	client, err := godo.New(httpClient, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("digitalocean client: %w", err)
	}

	return &DigitalOceanProvider{client: client}, nil
}

// RegisterDigitalOcean registers the DigitalOcean provider factory with the
// global registry.
func RegisterDigitalOcean() {
	Register(NameDigitalOcean, func(store auth.Store) (domain.Provider, error) {
		token, err := store.GetToken(NameDigitalOcean)
		if err != nil {
			return nil, fmt.Errorf("digitalocean auth: %w", err)
		}
		return NewDigitalOceanProvider(token)
	})
}

func (d *DigitalOceanProvider) GetDisplayName() string {
	return "DigitalOcean"
}

// ListResources returns every droplet on the account, following pagination.
func (d *DigitalOceanProvider) ListResources(ctx context.Context) ([]domain.Resource, error) {
	var resources []domain.Resource

	opt := &godo.ListOptions{Page: 1, PerPage: listPageSize}
	for {
		var (
			droplets []godo.Droplet
			resp     *godo.Response
		)
		err := read(ctx, func(ctx context.Context) error {
			var apiErr error
			droplets, resp, apiErr = d.client.Droplets.List(ctx, opt)
			return mapDigitalOceanError(apiErr)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list droplets: %w", err)
		}

		for _, droplet := range droplets {
			resources = append(resources, toDomainResource(droplet))
		}

		if isLastPage(resp) {
			break
		}
		opt.Page++
	}

	return resources, nil
}

// SubmitAction posts a droplet action. It is never retried.
func (d *DigitalOceanProvider) SubmitAction(ctx context.Context, resourceID string, action domain.Action) (*domain.Operation, error) {
	dropletID, err := strconv.Atoi(resourceID)
	if err != nil {
		return nil, fmt.Errorf("invalid droplet ID %q: %w", resourceID, err)
	}

	var doAction *godo.Action
	err = write(ctx, func(ctx context.Context) error {
		var apiErr error
		switch action.Type {
		case domain.ActionShutdown:
			doAction, _, apiErr = d.client.DropletActions.Shutdown(ctx, dropletID)
		case domain.ActionPowerOff:
			doAction, _, apiErr = d.client.DropletActions.PowerOff(ctx, dropletID)
		case domain.ActionPowerOn:
			doAction, _, apiErr = d.client.DropletActions.PowerOn(ctx, dropletID)
		case domain.ActionSnapshot:
			doAction, _, apiErr = d.client.DropletActions.Snapshot(ctx, dropletID, action.Payload["name"])
		default:
			return fmt.Errorf("unsupported action type %q", action.Type)
		}
		return mapDigitalOceanError(apiErr)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to submit %s: %w", action.Type, err)
	}

	op := toDomainOperation(doAction)
	op.Type = action.Type
	return op, nil
}

// GetOperation fetches the current state of an action.
func (d *DigitalOceanProvider) GetOperation(ctx context.Context, operationID string) (*domain.Operation, error) {
	actionID, err := strconv.Atoi(operationID)
	if err != nil {
		return nil, fmt.Errorf("invalid action ID %q: %w", operationID, err)
	}

	var doAction *godo.Action
	err = read(ctx, func(ctx context.Context) error {
		var apiErr error
		doAction, _, apiErr = d.client.Actions.Get(ctx, actionID)
		return mapDigitalOceanError(apiErr)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get action %s: %w", operationID, err)
	}

	return toDomainOperation(doAction), nil
}

// ListSnapshots returns every snapshot on the account, of any resource.
func (d *DigitalOceanProvider) ListSnapshots(ctx context.Context) ([]domain.Snapshot, error) {
	var snapshots []domain.Snapshot

	opt := &godo.ListOptions{Page: 1, PerPage: listPageSize}
	for {
		var (
			page []godo.Snapshot
			resp *godo.Response
		)
		err := read(ctx, func(ctx context.Context) error {
			var apiErr error
			page, resp, apiErr = d.client.Snapshots.List(ctx, opt)
			return mapDigitalOceanError(apiErr)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list snapshots: %w", err)
		}

		for _, s := range page {
			snapshots = append(snapshots, toDomainSnapshot(s))
		}

		if isLastPage(resp) {
			break
		}
		opt.Page++
	}

	return snapshots, nil
}

// DeleteSnapshot removes a snapshot. It is never retried.
func (d *DigitalOceanProvider) DeleteSnapshot(ctx context.Context, snapshotID string) error {
	err := write(ctx, func(ctx context.Context) error {
		_, apiErr := d.client.Snapshots.Delete(ctx, snapshotID)
		return mapDigitalOceanError(apiErr)
	})
	if err != nil {
		return fmt.Errorf("failed to delete snapshot %s: %w", snapshotID, err)
	}
	return nil
}

func isLastPage(resp *godo.Response) bool {
	return resp == nil || resp.Links == nil || resp.Links.IsLastPage()
}

func toDomainResource(d godo.Droplet) domain.Resource {
	r := domain.Resource{
		ID:       strconv.Itoa(d.ID),
		Name:     d.Name,
		Status:   d.Status,
		Provider: NameDigitalOcean,
	}
	if d.Region != nil {
		r.Region = d.Region.Slug
	}
	return r
}

func toDomainOperation(a *godo.Action) *domain.Operation {
	op := &domain.Operation{
		ID:         strconv.Itoa(a.ID),
		Type:       domain.ActionType(a.Type),
		Status:     domain.OperationStatus(a.Status),
		ResourceID: strconv.Itoa(a.ResourceID),
	}
	if a.StartedAt != nil {
		op.StartedAt = a.StartedAt.Time
	}
	if a.CompletedAt != nil {
		op.CompletedAt = a.CompletedAt.Time
	}
	return op
}

// toDomainSnapshot converts a godo snapshot. An unparseable created_at
// leaves CreatedAt zero, which retention never treats as expired.
func toDomainSnapshot(s godo.Snapshot) domain.Snapshot {
	created, err := time.Parse(time.RFC3339, s.Created)
	if err != nil {
		created = time.Time{}
	}
	return domain.Snapshot{
		ID:            s.ID,
		Name:          s.Name,
		ResourceID:    s.ResourceID,
		CreatedAt:     created,
		SizeGigabytes: s.SizeGigaBytes,
		Regions:       s.Regions,
	}
}

// bearerTransport adds the API token to every request.
type bearerTransport struct {
	token string
	base  http.RoundTripper
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+t.token)
	return base.RoundTrip(clone)
}
