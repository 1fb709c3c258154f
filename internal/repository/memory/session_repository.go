package memory

import (
	"time"

	"explore-state-be/pkg/explore/session"

	"github.com/patrickmn/go-cache"
)

// SessionRepository keeps explore sessions in memory. Sessions expire after
// the TTL unless touched; expired and deleted sessions are closed.
type SessionRepository struct {
	cache *cache.Cache
}

func NewSessionRepository(ttl, cleanupInterval time.Duration) *SessionRepository {
	c := cache.New(ttl, cleanupInterval)
	c.OnEvicted(func(_ string, v interface{}) {
		if s, ok := v.(*session.Session); ok {
			s.Close()
		}
	})
	return &SessionRepository{
		cache: c,
	}
}

func (r *SessionRepository) Save(s *session.Session) {
	r.cache.Set(s.ID, s, cache.DefaultExpiration)
}

// Get returns the session and extends its lifetime.
func (r *SessionRepository) Get(sessionID string) (*session.Session, bool) {
	if x, found := r.cache.Get(sessionID); found {
		s := x.(*session.Session)
		r.cache.Set(sessionID, s, cache.DefaultExpiration)
		return s, true
	}
	return nil, false
}

func (r *SessionRepository) Delete(sessionID string) {
	r.cache.Delete(sessionID)
}

func (r *SessionRepository) Count() int {
	return r.cache.ItemCount()
}

// CloseAll closes every session, for shutdown.
func (r *SessionRepository) CloseAll() {
	for id := range r.cache.Items() {
		r.cache.Delete(id)
	}
}
