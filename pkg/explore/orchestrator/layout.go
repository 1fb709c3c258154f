package orchestrator

import (
	"context"

	"explore-state-be/pkg/explore/model"
	"explore-state-be/pkg/explore/pipeline"
)

// SplitOptions overrides what a new pane copies from its origin.
type SplitOptions struct {
	// Origin defaults to the first pane.
	Origin      string
	Datasource  string
	Queries     []model.Query
	Range       *model.RawTimeRange
	PanelsState model.PanelsState
}

// SplitOpen opens a pane next to the origin pane and returns its key. When
// two panes exist the second one is closed first. Times are synced when the
// new pane starts on the origin range.
func (o *Orchestrator) SplitOpen(ctx context.Context, opts SplitOptions) (string, error) {
	if err := o.lock(); err != nil {
		return "", err
	}
	init := PaneInit{Datasource: opts.Datasource, PanelsState: opts.PanelsState}
	if opts.Queries != nil {
		init.Queries = model.WithFreshKeys(opts.Queries)
	}
	origin := opts.Origin
	if origin == "" && len(o.order) > 0 {
		origin = o.order[0]
	}
	// The origin may be the pane replaced below.
	src, hasOrigin := o.panes[origin]
	var originRange model.RawTimeRange
	if hasOrigin {
		originRange = src.Range.Raw
		init.Range = originRange
		init.Timezone = src.Timezone
		if init.Datasource == "" && src.Datasource != nil {
			init.Datasource = src.Datasource.Ref().UID
		}
		if init.Queries == nil {
			init.Queries = model.WithFreshKeys(src.Queries)
		}
		if init.PanelsState == nil {
			init.PanelsState = src.PanelsState
		}
	}
	if len(o.order) >= MaxPanes {
		o.closePaneLocked(o.order[MaxPanes-1])
	}
	if opts.Range != nil {
		init.Range = *opts.Range
	}

	key := o.cfg.NewKey()
	for {
		if _, taken := o.panes[key]; !taken {
			break
		}
		key = o.cfg.NewKey()
	}
	o.mu.Unlock()

	if err := o.InitializePane(ctx, key, init); err != nil {
		return "", err
	}

	if err := o.lock(); err != nil {
		return "", err
	}
	defer o.mu.Unlock()
	o.syncedTimes = hasOrigin && init.Range == originRange
	return key, nil
}

// SplitClose removes the pane and resets the layout bookkeeping.
func (o *Orchestrator) SplitClose(key string) error {
	if err := o.lock(); err != nil {
		return err
	}
	defer o.mu.Unlock()
	if _, err := o.paneLocked(key); err != nil {
		return err
	}
	o.closePaneLocked(key)
	return nil
}

func (o *Orchestrator) closePaneLocked(key string) {
	s, ok := o.panes[key]
	if !ok {
		return
	}
	pipeline.Release(s)
	o.stopRefreshLocked(key)
	delete(o.panes, key)
	for i, k := range o.order {
		if k == key {
			o.order = append(o.order[:i:i], o.order[i+1:]...)
			break
		}
	}
	o.largerPane = ""
	o.syncedTimes = false
	o.notify(model.TransitionPaneClosed, key)
}

// Maximize marks key as the larger pane of the split.
func (o *Orchestrator) Maximize(key string) error {
	if err := o.lock(); err != nil {
		return err
	}
	defer o.mu.Unlock()
	if _, err := o.paneLocked(key); err != nil {
		return err
	}
	o.largerPane = key
	o.notify(model.TransitionPaneUpdated, key)
	return nil
}

func (o *Orchestrator) EvenResize() error {
	if err := o.lock(); err != nil {
		return err
	}
	defer o.mu.Unlock()
	o.largerPane = ""
	o.notify(model.TransitionPaneUpdated, "")
	return nil
}

// SetSyncedTimes sets the flag without touching ranges.
func (o *Orchestrator) SetSyncedTimes(synced bool) error {
	if err := o.lock(); err != nil {
		return err
	}
	defer o.mu.Unlock()
	o.syncedTimes = synced
	return nil
}

// ToggleSyncTimes flips the synced flag. Turning it on copies the range of
// key to the other pane and re-runs it.
func (o *Orchestrator) ToggleSyncTimes(ctx context.Context, key string) error {
	if err := o.lock(); err != nil {
		return err
	}
	defer o.mu.Unlock()
	src, err := o.paneLocked(key)
	if err != nil {
		return err
	}
	if !o.syncedTimes {
		for _, other := range o.order {
			if other == key {
				continue
			}
			if err := o.applyRangeLocked(ctx, other, src.Range.Raw); err != nil {
				return err
			}
		}
	}
	o.syncedTimes = !o.syncedTimes
	o.notify(model.TransitionPaneUpdated, key)
	return nil
}
