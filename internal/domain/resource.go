package domain

// Resource is the virtual machine targeted by lifecycle actions
// (a DigitalOcean droplet or a Hetzner server).
type Resource struct {
	// ID is the provider-assigned identifier, kept opaque.
	ID       string `json:"id"`
	Name     string `json:"name"`
	Status   string `json:"status,omitempty"`
	Region   string `json:"region,omitempty"`
	Provider string `json:"provider"`
}

// FindResourceByName returns the first resource whose name equals name
// exactly, or nil when there is none.
func FindResourceByName(resources []Resource, name string) *Resource {
	for i := range resources {
		if resources[i].Name == name {
			return &resources[i]
		}
	}
	return nil
}
