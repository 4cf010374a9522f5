package providers

import (
	"context"
	"fmt"
	"strconv"

	"nathanbeddoewebdev/snapcycle/internal/domain"
	"nathanbeddoewebdev/snapcycle/internal/services/auth"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// HetznerProvider implements domain.Provider using the Hetzner Cloud API.
// Snapshots are images of type "snapshot"; their description carries the
// snapshot name.
type HetznerProvider struct {
	client *hcloud.Client
}

// NewHetznerProvider creates a HetznerProvider with the given hcloud client options.
// Default options (application name) are applied first; callers can override them.
func NewHetznerProvider(opts ...hcloud.ClientOption) *HetznerProvider {
	defaults := []hcloud.ClientOption{
		hcloud.WithApplication("snapcycle", "0.1.0"),
	}
	allOpts := append(defaults, opts...)
	return &HetznerProvider{
		client: hcloud.NewClient(allOpts...),
	}
}

// RegisterHetzner registers the Hetzner provider factory with the global registry.
func RegisterHetzner() {
	Register(NameHetzner, func(store auth.Store) (domain.Provider, error) {
		token, err := store.GetToken(NameHetzner)
		if err != nil {
			return nil, fmt.Errorf("hetzner auth: %w", err)
		}

		return NewHetznerProvider(hcloud.WithToken(token)), nil
	})
}

func (h *HetznerProvider) GetDisplayName() string {
	return "Hetzner"
}

// ListResources retrieves all servers from the Hetzner Cloud API.
func (h *HetznerProvider) ListResources(ctx context.Context) ([]domain.Resource, error) {
	var hzServers []*hcloud.Server
	err := read(ctx, func(ctx context.Context) error {
		var apiErr error
		hzServers, apiErr = h.client.Server.All(ctx)
		return mapHetznerError(apiErr)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list servers: %w", err)
	}

	resources := make([]domain.Resource, 0, len(hzServers))
	for _, s := range hzServers {
		resources = append(resources, toDomainServer(s))
	}

	return resources, nil
}

// SubmitAction starts a server action. It is never retried.
func (h *HetznerProvider) SubmitAction(ctx context.Context, resourceID string, action domain.Action) (*domain.Operation, error) {
	numericID, err := strconv.ParseInt(resourceID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid server ID %q: %w", resourceID, err)
	}
	server := &hcloud.Server{ID: numericID}

	var hzAction *hcloud.Action
	err = write(ctx, func(ctx context.Context) error {
		var apiErr error
		switch action.Type {
		case domain.ActionShutdown:
			hzAction, _, apiErr = h.client.Server.Shutdown(ctx, server)
		case domain.ActionPowerOff:
			hzAction, _, apiErr = h.client.Server.Poweroff(ctx, server)
		case domain.ActionPowerOn:
			hzAction, _, apiErr = h.client.Server.Poweron(ctx, server)
		case domain.ActionSnapshot:
			description := action.Payload["name"]
			var result hcloud.ServerCreateImageResult
			result, _, apiErr = h.client.Server.CreateImage(ctx, server, &hcloud.ServerCreateImageOpts{
				Type:        hcloud.ImageTypeSnapshot,
				Description: &description,
			})
			hzAction = result.Action
		default:
			return fmt.Errorf("unsupported action type %q", action.Type)
		}
		return mapHetznerError(apiErr)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to submit %s: %w", action.Type, err)
	}
	if hzAction == nil {
		return nil, fmt.Errorf("failed to submit %s: no action returned", action.Type)
	}

	op := toDomainAction(hzAction)
	op.Type = action.Type
	op.ResourceID = resourceID
	return op, nil
}

// GetOperation fetches the current state of an action.
func (h *HetznerProvider) GetOperation(ctx context.Context, operationID string) (*domain.Operation, error) {
	numericID, err := strconv.ParseInt(operationID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid action ID %q: %w", operationID, err)
	}

	var hzAction *hcloud.Action
	err = read(ctx, func(ctx context.Context) error {
		var apiErr error
		hzAction, _, apiErr = h.client.Action.GetByID(ctx, numericID)
		return mapHetznerError(apiErr)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get action %s: %w", operationID, err)
	}
	if hzAction == nil {
		return nil, fmt.Errorf("action %s: %w", operationID, domain.ErrNotFound)
	}

	return toDomainAction(hzAction), nil
}

// ListSnapshots returns every snapshot image on the project.
func (h *HetznerProvider) ListSnapshots(ctx context.Context) ([]domain.Snapshot, error) {
	var hzImages []*hcloud.Image
	err := read(ctx, func(ctx context.Context) error {
		var apiErr error
		hzImages, apiErr = h.client.Image.AllWithOpts(ctx, hcloud.ImageListOpts{
			Type: []hcloud.ImageType{hcloud.ImageTypeSnapshot},
		})
		return mapHetznerError(apiErr)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	snapshots := make([]domain.Snapshot, 0, len(hzImages))
	for _, img := range hzImages {
		snapshots = append(snapshots, toDomainSnapshotImage(img))
	}

	return snapshots, nil
}

// DeleteSnapshot removes a snapshot image. It is never retried.
func (h *HetznerProvider) DeleteSnapshot(ctx context.Context, snapshotID string) error {
	numericID, err := strconv.ParseInt(snapshotID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid snapshot ID %q: %w", snapshotID, err)
	}

	err = write(ctx, func(ctx context.Context) error {
		_, apiErr := h.client.Image.Delete(ctx, &hcloud.Image{ID: numericID})
		return mapHetznerError(apiErr)
	})
	if err != nil {
		return fmt.Errorf("failed to delete snapshot %s: %w", snapshotID, err)
	}

	return nil
}

// toDomainServer converts an hcloud.Server to a domain.Resource.
func toDomainServer(s *hcloud.Server) domain.Resource {
	r := domain.Resource{
		ID:       strconv.FormatInt(s.ID, 10),
		Name:     s.Name,
		Status:   string(s.Status),
		Provider: NameHetzner,
	}
	if s.Location != nil {
		r.Region = s.Location.Name
	}
	return r
}

// toDomainAction maps hcloud action statuses onto operation statuses.
func toDomainAction(a *hcloud.Action) *domain.Operation {
	op := &domain.Operation{
		ID:           strconv.FormatInt(a.ID, 10),
		Type:         domain.ActionType(a.Command),
		StartedAt:    a.Started,
		CompletedAt:  a.Finished,
		ErrorMessage: a.ErrorMessage,
	}

	switch a.Status {
	case hcloud.ActionStatusSuccess:
		op.Status = domain.OperationCompleted
	case hcloud.ActionStatusError:
		op.Status = domain.OperationErrored
	default:
		op.Status = domain.OperationInProgress
	}

	for _, res := range a.Resources {
		if res.Type == hcloud.ActionResourceTypeServer {
			op.ResourceID = strconv.FormatInt(res.ID, 10)
			break
		}
	}

	return op
}

func toDomainSnapshotImage(img *hcloud.Image) domain.Snapshot {
	s := domain.Snapshot{
		ID:            strconv.FormatInt(img.ID, 10),
		Name:          img.Description,
		CreatedAt:     img.Created,
		SizeGigabytes: float64(img.ImageSize),
	}
	if img.CreatedFrom != nil {
		s.ResourceID = strconv.FormatInt(img.CreatedFrom.ID, 10)
	}
	return s
}
