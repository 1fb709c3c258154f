// Package history records executed query sets, locally in a bounded list
// and optionally in a remote store.
package history

import (
	"context"
	"sync"
	"time"

	"explore-state-be/internal/pkg/logger"
	"explore-state-be/pkg/explore/model"
)

const MaxEntries = 100

type Entry struct {
	Datasource     model.DataSourceRef `json:"datasource"`
	DatasourceName string              `json:"datasourceName"`
	Queries        []model.Query       `json:"queries"`
	Starred        bool                `json:"starred"`
	Timestamp      time.Time           `json:"timestamp"`
}

// Store persists history entries outside of the session.
type Store interface {
	AddEntry(ctx context.Context, entry Entry) error
}

// Local is a most-recent-first list capped at a fixed size.
type Local struct {
	mu      sync.RWMutex
	entries []Entry
	max     int
}

func NewLocal(max int) *Local {
	if max <= 0 {
		max = MaxEntries
	}
	return &Local{max: max}
}

func (l *Local) AddEntry(_ context.Context, entry Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := make([]Entry, 0, min(len(l.entries)+1, l.max))
	entries = append(entries, entry)
	for _, e := range l.entries {
		if len(entries) == l.max {
			break
		}
		entries = append(entries, e)
	}
	l.entries = entries
	return nil
}

func (l *Local) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Entry(nil), l.entries...)
}

// Recorder writes to the local list and, when configured, to the remote
// store. Remote failures are logged and never surface to the caller.
type Recorder struct {
	local  *Local
	remote Store
	logger logger.ILogger
}

func NewRecorder(local *Local, remote Store, log logger.ILogger) *Recorder {
	return &Recorder{local: local, remote: remote, logger: log}
}

func (r *Recorder) Local() *Local {
	return r.local
}

func (r *Recorder) Record(ctx context.Context, entry Entry) {
	_ = r.local.AddEntry(ctx, entry)
	if r.remote == nil {
		return
	}
	if err := r.remote.AddEntry(ctx, entry); err != nil {
		r.logger.Warn("HISTORY", "Failed to store history entry", map[string]interface{}{
			"datasource": entry.Datasource.UID,
			"error":      err.Error(),
		})
	}
}
