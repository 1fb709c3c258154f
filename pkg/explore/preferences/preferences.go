// Package preferences stores per-user explore settings that outlive a
// session: the last used datasource per organization and which
// supplementary queries are enabled.
package preferences

import (
	"context"
	"sync"

	"explore-state-be/pkg/explore/model"
)

type Store interface {
	// LastUsedDatasource returns "" when nothing was recorded.
	LastUsedDatasource(ctx context.Context, orgID int64) (string, error)
	SetLastUsedDatasource(ctx context.Context, orgID int64, uid string) error
	// SupplementaryQueriesEnabled returns only the types with a stored
	// setting.
	SupplementaryQueriesEnabled(ctx context.Context) (map[model.SupplementaryQueryType]bool, error)
	SetSupplementaryQueryEnabled(ctx context.Context, t model.SupplementaryQueryType, enabled bool) error
}

type Memory struct {
	mu            sync.RWMutex
	lastUsed      map[int64]string
	supplementary map[model.SupplementaryQueryType]bool
}

func NewMemory() *Memory {
	return &Memory{
		lastUsed:      map[int64]string{},
		supplementary: map[model.SupplementaryQueryType]bool{},
	}
}

func (m *Memory) LastUsedDatasource(_ context.Context, orgID int64) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastUsed[orgID], nil
}

func (m *Memory) SetLastUsedDatasource(_ context.Context, orgID int64, uid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastUsed[orgID] = uid
	return nil
}

func (m *Memory) SupplementaryQueriesEnabled(_ context.Context) (map[model.SupplementaryQueryType]bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[model.SupplementaryQueryType]bool, len(m.supplementary))
	for k, v := range m.supplementary {
		out[k] = v
	}
	return out, nil
}

func (m *Memory) SetSupplementaryQueryEnabled(_ context.Context, t model.SupplementaryQueryType, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.supplementary[t] = enabled
	return nil
}
