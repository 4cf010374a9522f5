package domain

import "time"

// Snapshot is a point-in-time disk image associated with a resource.
// Its lifecycle is provider-side except for deletion.
type Snapshot struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	ResourceID    string    `json:"resource_id"`
	CreatedAt     time.Time `json:"created_at"`
	SizeGigabytes float64   `json:"size_gigabytes,omitempty"`
	Regions       []string  `json:"regions,omitempty"`
}

// SnapshotName returns the name used for a snapshot taken at t: the UTC
// calendar date in YYYY-MM-DD form.
func SnapshotName(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}
