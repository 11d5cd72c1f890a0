package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	domain "github.com/arnavt866/Content-Violation-Detection/internal/domain/analysis"
)

type SnapshotRepository struct{ db *sql.DB }

func NewSnapshotRepository(db *sql.DB) *SnapshotRepository { return &SnapshotRepository{db: db} }

// EnsureSchema creates the snapshot table when it does not exist yet.
func (r *SnapshotRepository) EnsureSchema(ctx context.Context) error {
	const q = `
CREATE TABLE IF NOT EXISTS analysis_snapshots (
  name     VARCHAR(64) PRIMARY KEY,
  version  INT NOT NULL,
  state    JSONB NOT NULL,
  saved_at TIMESTAMPTZ NOT NULL
);`
	_, err := r.db.ExecContext(ctx, q)
	return err
}

// Save insert/update the snapshot blob keyed by its name
func (r *SnapshotRepository) Save(ctx context.Context, snap *domain.Snapshot) error {
	state, err := json.Marshal(snap)
	if err != nil {
		return err
	}

	savedAt := snap.SavedAt
	if savedAt.IsZero() {
		savedAt = time.Now()
	}

	const q = `
INSERT INTO analysis_snapshots (name, version, state, saved_at)
VALUES ($1,$2,$3,$4)
ON CONFLICT (name) DO UPDATE SET
 version = EXCLUDED.version,
 state = EXCLUDED.state,
 saved_at = EXCLUDED.saved_at;`

	_, err = r.db.ExecContext(ctx, q, snap.Name, snap.Version, string(state), savedAt)
	return err
}

// Load returns the stored snapshot, or (nil, nil) when none exists
func (r *SnapshotRepository) Load(ctx context.Context) (*domain.Snapshot, error) {
	const q = `SELECT state FROM analysis_snapshots WHERE name=$1 LIMIT 1;`
	row := r.db.QueryRowContext(ctx, q, domain.SnapshotName)

	var state string
	if err := row.Scan(&state); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	var snap domain.Snapshot
	if err := json.Unmarshal([]byte(state), &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}
