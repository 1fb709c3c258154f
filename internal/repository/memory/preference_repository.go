package memory

import (
	"sync"

	"explore-state-be/pkg/explore/preferences"

	"github.com/google/uuid"
)

// PreferenceRepository keeps explore preferences per user for deployments
// without Redis. They are lost on restart.
type PreferenceRepository struct {
	mu    sync.Mutex
	users map[uuid.UUID]*preferences.Memory
}

func NewPreferenceRepository() *PreferenceRepository {
	return &PreferenceRepository{users: map[uuid.UUID]*preferences.Memory{}}
}

func (r *PreferenceRepository) ForUser(userID uuid.UUID) preferences.Store {
	r.mu.Lock()
	defer r.mu.Unlock()
	store, ok := r.users[userID]
	if !ok {
		store = preferences.NewMemory()
		r.users[userID] = store
	}
	return store
}
