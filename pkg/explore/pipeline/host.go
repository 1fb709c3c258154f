package pipeline

import (
	"context"
	"sync"

	"explore-state-be/pkg/explore/model"
	"explore-state-be/pkg/explore/pane"
)

// Host owns pane state. Pipeline methods are called with the host lock held
// and call Pane, Dispatch and Notify without taking it again. Stream
// goroutines re-enter through Do, which acquires the lock.
type Host interface {
	Pane(key string) (pane.State, bool)
	Dispatch(key string, a pane.Action)
	Notify(t model.Transition, key string)
	Do(fn func())
}

type subscription struct {
	cancel context.CancelFunc
	once   sync.Once
}

func newSubscription(cancel context.CancelFunc) *subscription {
	return &subscription{cancel: cancel}
}

func (s *subscription) Unsubscribe() {
	s.once.Do(s.cancel)
}
