package analysis

import (
	"errors"
	"time"
)

const (
	// SnapshotName keys the snapshot in the persistence medium.
	SnapshotName = "analysis-store"
	// SnapshotVersion is the current snapshot schema version.
	SnapshotVersion = 1
)

// ErrSnapshotVersion indicates a stored snapshot with a different schema
// version; the store discards it and starts from defaults.
var ErrSnapshotVersion = errors.New("snapshot schema version mismatch")

// Snapshot captures a point-in-time clone of the store state.
// Loading/UI flags are deliberately not part of it.
type Snapshot struct {
	Name       string           `json:"name"`
	Version    int              `json:"version"`
	SavedAt    time.Time        `json:"saved_at"`
	History    []AnalysisRecord `json:"history"`
	Statistics Statistics       `json:"statistics"`
	Filters    Filters          `json:"filters"`
	Selected   *AnalysisRecord  `json:"selected,omitempty"`
}
