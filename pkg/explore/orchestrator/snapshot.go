package orchestrator

import (
	"explore-state-be/pkg/explore/correlation"
	"explore-state-be/pkg/explore/history"
	"explore-state-be/pkg/explore/pane"
)

type Snapshot struct {
	Panes       []pane.State
	SyncedTimes bool
	LargerPane  string
	Correlation correlation.Session
}

// Panes returns the panes in display order. States are values; later
// updates do not show through.
func (o *Orchestrator) Panes() []pane.State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.panesLocked()
}

func (o *Orchestrator) panesLocked() []pane.State {
	out := make([]pane.State, 0, len(o.order))
	for _, key := range o.order {
		out = append(out, o.panes[key])
	}
	return out
}

func (o *Orchestrator) Pane(key string) (pane.State, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.panes[key]
	return s, ok
}

func (o *Orchestrator) PaneKeys() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.order...)
}

func (o *Orchestrator) SyncedTimes() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.syncedTimes
}

func (o *Orchestrator) LargerPane() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.largerPane
}

func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	s := Snapshot{
		Panes:       o.panesLocked(),
		SyncedTimes: o.syncedTimes,
		LargerPane:  o.largerPane,
	}
	o.mu.Unlock()
	s.Correlation = o.Correlation()
	return s
}

// History returns the local query history, most recent first.
func (o *Orchestrator) History() []history.Entry {
	return o.history.Local().Entries()
}
