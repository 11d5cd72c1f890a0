package analysis

import "context"

// SnapshotRepository port (interface for durable snapshot persistence)
type SnapshotRepository interface {
	// Load returns the stored snapshot, or (nil, nil) when none exists.
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snap *Snapshot) error
}
