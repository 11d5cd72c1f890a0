package storage

import (
	"context"
	"encoding/json"
	"sync"

	domain "github.com/arnavt866/Content-Violation-Detection/internal/domain/analysis"
)

// Memory is a map-backed snapshot repository for tests and ephemeral runs.
// Snapshots are stored as marshaled JSON so Load returns the same structure
// a durable backend would.
type Memory struct {
	mu   sync.Mutex
	blob []byte
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Save(_ context.Context, snap *domain.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.blob = data
	m.mu.Unlock()
	return nil
}

func (m *Memory) Load(_ context.Context) (*domain.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.blob == nil {
		return nil, nil
	}
	var snap domain.Snapshot
	if err := json.Unmarshal(m.blob, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}
