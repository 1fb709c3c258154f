package orchestrator

import (
	"context"
	"fmt"
	"time"

	"explore-state-be/pkg/explore/datasource"
	"explore-state-be/pkg/explore/model"
	"explore-state-be/pkg/explore/pane"
	"explore-state-be/pkg/explore/pipeline"
	"explore-state-be/pkg/explore/timerange"
)

// RunQueries runs the pane with an empty cache.
func (o *Orchestrator) RunQueries(ctx context.Context, key string) error {
	if err := o.lock(); err != nil {
		return err
	}
	defer o.mu.Unlock()
	if _, err := o.paneLocked(key); err != nil {
		return err
	}
	return o.pipeline.Run(ctx, key, pipeline.RunOptions{})
}

func (o *Orchestrator) CancelQueries(key string) error {
	if err := o.lock(); err != nil {
		return err
	}
	defer o.mu.Unlock()
	return o.pipeline.Cancel(key)
}

// ChangeQueries replaces the queries of the pane without running them.
// Edits to the second pane while a correlation is being authored mark its
// query editor dirty.
func (o *Orchestrator) ChangeQueries(ctx context.Context, key string, queries []model.Query) error {
	if err := o.lock(); err != nil {
		return err
	}
	defer o.mu.Unlock()
	return o.changeQueriesLocked(key, queries)
}

func (o *Orchestrator) changeQueriesLocked(key string, queries []model.Query) error {
	if _, err := o.paneLocked(key); err != nil {
		return err
	}
	o.dispatch(key, pane.SetQueries{Queries: model.EnsureUniqueKeys(queries)})
	o.dispatch(key, pane.ClearCache{})
	o.notify(model.TransitionPaneUpdated, key)

	if o.correlation.EditorMode && !o.isLeft(key) && !o.correlation.QueryEditorDirty {
		o.correlation.QueryEditorDirty = true
		o.notify(model.TransitionCorrelationChanged, key)
	}
	return nil
}

// SetQueries replaces the queries of the pane and runs them.
func (o *Orchestrator) SetQueries(ctx context.Context, key string, queries []model.Query) error {
	if err := o.lock(); err != nil {
		return err
	}
	defer o.mu.Unlock()
	if err := o.changeQueriesLocked(key, queries); err != nil {
		return err
	}
	if o.panes[key].Runnable() != nil {
		return nil
	}
	return o.pipeline.Run(ctx, key, pipeline.RunOptions{})
}

// AddQueryRow inserts an empty query after index and returns it. The new
// row uses the pane datasource, or for a mixed pane the datasource of the
// last query.
func (o *Orchestrator) AddQueryRow(ctx context.Context, key string, index int) (model.Query, error) {
	if err := o.lock(); err != nil {
		return model.Query{}, err
	}
	defer o.mu.Unlock()
	s, err := o.paneLocked(key)
	if err != nil {
		return model.Query{}, err
	}
	if index < -1 || (len(s.Queries) > 0 && index >= len(s.Queries)) {
		return model.Query{}, fmt.Errorf("%w: %d", model.ErrInvalidQueryIndex, index)
	}

	var override *model.DataSourceRef
	if s.Datasource != nil && !datasource.IsMixed(s.Datasource) {
		override = datasource.RefOf(s.Datasource)
	}
	q := o.pipeline.EmptyQuery(ctx, s.Queries, len(s.Queries), override)
	o.dispatch(key, pane.AddQueryRow{Index: index, Query: q})
	o.notify(model.TransitionPaneUpdated, key)
	return q, nil
}

// DatasourceOptions controls ChangeDatasource.
type DatasourceOptions struct {
	// ImportQueries translates the current queries for the new datasource.
	// Otherwise the queries are kept, retagged for the new datasource.
	ImportQueries bool
}

// ChangeDatasource swaps the pane datasource and runs the pane. A live pane
// leaves live mode before the swap.
func (o *Orchestrator) ChangeDatasource(ctx context.Context, key, uid string, opts DatasourceOptions) error {
	if err := o.swapDatasource(ctx, key, uid, opts.ImportQueries); err != nil {
		return err
	}
	if err := o.lock(); err != nil {
		return err
	}
	defer o.mu.Unlock()
	s, err := o.paneLocked(key)
	if err != nil || s.Runnable() != nil {
		return err
	}
	return o.pipeline.Run(ctx, key, pipeline.RunOptions{})
}

// swapDatasource looks the datasource up and imports queries without the
// session lock, then applies the result if the pane still exists.
func (o *Orchestrator) swapDatasource(ctx context.Context, key, uid string, importQueries bool) error {
	if err := o.lock(); err != nil {
		return err
	}
	s, err := o.paneLocked(key)
	if err != nil {
		o.mu.Unlock()
		return err
	}
	if s.IsLive {
		if err := o.setRefreshLocked(ctx, key, ""); err != nil {
			o.mu.Unlock()
			return err
		}
	}
	from, queries := s.Datasource, s.Queries
	o.mu.Unlock()

	ds, err := o.registry.Get(ctx, uid)
	if err != nil {
		return err
	}
	var imported []model.Query
	if importQueries {
		imported = o.pipeline.ImportQueries(ctx, queries, from, ds)
	}

	if err := o.lock(); err != nil {
		return err
	}
	defer o.mu.Unlock()
	if _, err := o.paneLocked(key); err != nil {
		return err
	}
	if err := o.pipeline.Cancel(key); err != nil {
		return err
	}
	o.dispatch(key, pane.UpdateDatasourceInstance{Datasource: ds})
	if importQueries {
		o.dispatch(key, pane.QueriesImported{Queries: imported})
	} else if retagged := pipeline.RetargetQueries(queries, ds); retagged != nil {
		o.dispatch(key, pane.QueriesImported{Queries: retagged})
	}
	o.rememberDatasource(ctx, ds)
	o.notify(model.TransitionDatasourceChanged, key)
	return nil
}

// ChangeRefreshInterval switches the pane between live tailing, periodic
// refresh and off ("" or "off").
func (o *Orchestrator) ChangeRefreshInterval(ctx context.Context, key, interval string) error {
	if err := o.lock(); err != nil {
		return err
	}
	defer o.mu.Unlock()
	if _, err := o.paneLocked(key); err != nil {
		return err
	}
	return o.setRefreshLocked(ctx, key, interval)
}

func (o *Orchestrator) setRefreshLocked(ctx context.Context, key, interval string) error {
	if interval == "off" {
		interval = ""
	}
	var every time.Duration
	if interval != "" && interval != pane.LiveInterval {
		d, err := timerange.ParseRefreshInterval(interval)
		if err != nil || d <= 0 {
			return fmt.Errorf("%w: %q", model.ErrInvalidRefreshRate, interval)
		}
		every = d
	}

	s := o.panes[key]
	o.stopRefreshLocked(key)
	o.dispatch(key, pane.ChangeRefreshInterval{Interval: interval})
	o.notify(model.TransitionRefreshIntervalChanged, key)

	switch {
	case interval == pane.LiveInterval:
		if s.Runnable() == nil {
			return o.pipeline.Run(ctx, key, pipeline.RunOptions{})
		}
	case s.IsLive:
		if err := o.pipeline.Cancel(key); err != nil {
			return err
		}
	}
	if every > 0 {
		o.startRefreshLocked(key, every)
	}
	return nil
}

func (o *Orchestrator) startRefreshLocked(key string, every time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	o.refresh[key] = cancel
	o.clock.TickerFunc(ctx, every, func() error {
		o.mu.Lock()
		defer o.mu.Unlock()
		if ctx.Err() != nil || o.closed {
			return nil
		}
		if s, ok := o.panes[key]; !ok || s.Runnable() != nil || s.Loading {
			return nil
		}
		if err := o.pipeline.Run(ctx, key, pipeline.RunOptions{}); err != nil {
			o.logger.Warn(moduleName, "Refresh run failed", map[string]interface{}{"pane": key, "error": err.Error()})
		}
		return nil
	}, "orchestrator", "refresh")
}

func (o *Orchestrator) stopRefreshLocked(key string) {
	if cancel, ok := o.refresh[key]; ok {
		cancel()
		delete(o.refresh, key)
	}
}

func (o *Orchestrator) SetSupplementaryEnabled(ctx context.Context, key string, t model.SupplementaryQueryType, enabled bool) error {
	if err := o.lock(); err != nil {
		return err
	}
	defer o.mu.Unlock()
	return o.pipeline.SetSupplementaryEnabled(ctx, key, t, enabled)
}

// ScanStart runs the pane and keeps walking back one span at a time until a
// run returns data.
func (o *Orchestrator) ScanStart(ctx context.Context, key string) error {
	if err := o.lock(); err != nil {
		return err
	}
	defer o.mu.Unlock()
	s, err := o.paneLocked(key)
	if err != nil {
		return err
	}
	if err := s.Runnable(); err != nil {
		return err
	}
	o.dispatch(key, pane.ScanStart{})
	return o.pipeline.Run(ctx, key, pipeline.RunOptions{})
}

func (o *Orchestrator) ScanStop(key string) error {
	return o.update(key, model.TransitionPaneUpdated, pane.ScanStop{})
}

// ClearLogs hides the log rows received so far. Later live rows still show.
func (o *Orchestrator) ClearLogs(key string) error {
	return o.update(key, model.TransitionResponseUpdated, pane.ClearLogs{})
}

func (o *Orchestrator) ChangePanelsState(key string, panelsState model.PanelsState) error {
	return o.update(key, model.TransitionPaneUpdated, pane.ChangePanelsState{PanelsState: panelsState})
}

// ChangeSize records the pane width, which bounds the data points of later
// runs.
func (o *Orchestrator) ChangeSize(key string, width int) error {
	return o.update(key, model.TransitionPaneUpdated, pane.ChangeSize{Width: width})
}

func (o *Orchestrator) update(key string, t model.Transition, a pane.Action) error {
	if err := o.lock(); err != nil {
		return err
	}
	defer o.mu.Unlock()
	if _, err := o.paneLocked(key); err != nil {
		return err
	}
	o.dispatch(key, a)
	o.notify(t, key)
	return nil
}

// PaneUpdate is a minimal set of changes to an existing pane. Zero fields
// are left alone.
type PaneUpdate struct {
	Datasource         string
	Queries            []model.Query
	Range              *model.RawTimeRange
	PanelsState        model.PanelsState
	PanelsStateChanged bool
}

func (u PaneUpdate) Empty() bool {
	return u.Datasource == "" && u.Queries == nil && u.Range == nil && !u.PanelsStateChanged
}

// UpdatePane applies u and runs the pane once when the datasource, queries
// or range changed. A range-only change keeps the cache.
func (o *Orchestrator) UpdatePane(ctx context.Context, key string, u PaneUpdate) error {
	if u.Datasource != "" {
		if err := o.swapDatasource(ctx, key, u.Datasource, false); err != nil {
			return err
		}
	}

	if err := o.lock(); err != nil {
		return err
	}
	defer o.mu.Unlock()
	s, err := o.paneLocked(key)
	if err != nil {
		return err
	}

	if u.Queries != nil {
		o.dispatch(key, pane.SetQueries{Queries: model.EnsureUniqueKeys(u.Queries)})
		o.dispatch(key, pane.ClearCache{})
	}
	if u.Range != nil {
		tr, err := o.resolver.Resolve(*u.Range, s.Timezone)
		if err != nil {
			return err
		}
		o.dispatch(key, pane.ChangeRange{Range: tr})
		o.notify(model.TransitionRangeChanged, key)
	}
	if u.PanelsStateChanged {
		o.dispatch(key, pane.ChangePanelsState{PanelsState: u.PanelsState})
	}
	o.notify(model.TransitionPaneUpdated, key)

	if u.Datasource == "" && u.Queries == nil && u.Range == nil {
		return nil
	}
	if o.panes[key].Runnable() != nil {
		return nil
	}
	return o.pipeline.Run(ctx, key, pipeline.RunOptions{PreserveCache: u.Datasource == "" && u.Queries == nil})
}
