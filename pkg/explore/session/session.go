// Package session bundles everything one explore tab owns: its panes, its
// address bar and the sync between them.
package session

import (
	"context"
	"sync"
	"time"

	"explore-state-be/internal/pkg/logger"
	"explore-state-be/pkg/explore/orchestrator"
	"explore-state-be/pkg/explore/urlsync"

	"github.com/coder/quartz"
	"github.com/google/uuid"
)

type Options struct {
	// ID defaults to a random uuid.
	ID         string
	UserID     string
	InitialURL string
	Debounce   time.Duration

	Orchestrator orchestrator.Config
	Dependencies orchestrator.Dependencies
}

type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time

	Orchestrator *orchestrator.Orchestrator
	Location     *urlsync.MemoryLocation
	Sync         *urlsync.Engine

	mu        sync.Mutex
	onClose   []func()
	closeOnce sync.Once
}

// Open builds a session and applies its initial address bar. Errors from
// that first sync are returned with a usable session; the panes they
// concern fell back to defaults or were skipped.
func Open(ctx context.Context, opts Options) (*Session, error) {
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}
	deps := opts.Dependencies
	if deps.Clock == nil {
		deps.Clock = quartz.NewReal()
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNopLogger()
	}

	orch := orchestrator.New(deps, opts.Orchestrator)
	location := urlsync.NewMemoryLocation(opts.InitialURL)
	engine := urlsync.NewEngine(orch, location, urlsync.OutboundOptions{
		OrgID:    opts.Orchestrator.OrgID,
		Debounce: opts.Debounce,
		Clock:    deps.Clock,
		Logger:   deps.Logger,
	})

	s := &Session{
		ID:           opts.ID,
		UserID:       opts.UserID,
		CreatedAt:    deps.Clock.Now(),
		Orchestrator: orch,
		Location:     location,
		Sync:         engine,
	}
	err := engine.Start(ctx)
	deps.Logger.Info("SESSION", "Explore session opened", map[string]interface{}{
		"session": s.ID,
		"user":    s.UserID,
		"panes":   len(orch.PaneKeys()),
	})
	return s, err
}

// Navigate applies an address bar typed or linked by the user.
func (s *Session) Navigate(ctx context.Context, rawQuery string) error {
	return s.Sync.Navigate(ctx, rawQuery)
}

// OnClose registers fn to run after the session is closed.
func (s *Session) OnClose(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onClose = append(s.onClose, fn)
}

// Close stops address bar sync and releases every pane. It is safe to call
// more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.Sync.Stop()
		s.Orchestrator.Close()

		s.mu.Lock()
		hooks := s.onClose
		s.onClose = nil
		s.mu.Unlock()
		for _, fn := range hooks {
			fn()
		}
	})
}
