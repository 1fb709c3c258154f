// Package orchestrator owns the panes of one explore session. Every command
// runs under the session lock; query streams re-enter through the same lock
// so pane state is only ever touched by one goroutine at a time.
package orchestrator

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"explore-state-be/internal/pkg/logger"
	"explore-state-be/pkg/explore/correlation"
	"explore-state-be/pkg/explore/datasource"
	"explore-state-be/pkg/explore/history"
	"explore-state-be/pkg/explore/model"
	"explore-state-be/pkg/explore/pane"
	"explore-state-be/pkg/explore/pipeline"
	"explore-state-be/pkg/explore/preferences"
	"explore-state-be/pkg/explore/timerange"

	"github.com/coder/quartz"
	"github.com/google/uuid"
)

const (
	moduleName = "ORCHESTRATOR"
	MaxPanes   = 2
)

// Listener observes transitions. Listeners run with the session lock held
// and must not call back into the orchestrator.
type Listener func(t model.Transition, key string)

type Config struct {
	Pipeline        pipeline.Config
	DefaultRange    model.RawTimeRange
	DefaultTimezone string
	OrgID           int64
	// NewKey generates pane keys. Collisions are retried.
	NewKey func() string
}

type Dependencies struct {
	Registry    datasource.Registry
	Resolver    *timerange.Resolver
	History     *history.Recorder
	Preferences preferences.Store
	Saver       correlation.Saver
	Clock       quartz.Clock
	Logger      logger.ILogger
	Metrics     *pipeline.Metrics
}

type Orchestrator struct {
	mu          sync.Mutex
	order       []string
	panes       map[string]pane.State
	syncedTimes bool
	largerPane  string
	correlation correlation.Session
	refresh     map[string]context.CancelFunc
	listeners   map[int]Listener
	nextID      int
	closed      bool

	pipeline *pipeline.Pipeline
	registry datasource.Registry
	resolver *timerange.Resolver
	history  *history.Recorder
	prefs    preferences.Store
	saver    correlation.Saver
	clock    quartz.Clock
	logger   logger.ILogger
	cfg      Config
}

func New(deps Dependencies, cfg Config) *Orchestrator {
	if deps.Clock == nil {
		deps.Clock = quartz.NewReal()
	}
	if deps.Resolver == nil {
		deps.Resolver = timerange.NewResolver(deps.Clock)
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNopLogger()
	}
	if deps.History == nil {
		deps.History = history.NewRecorder(history.NewLocal(history.MaxEntries), nil, deps.Logger)
	}
	if cfg.DefaultRange.From == "" || cfg.DefaultRange.To == "" {
		cfg.DefaultRange = timerange.DefaultRange
	}
	if cfg.NewKey == nil {
		cfg.NewKey = func() string { return uuid.NewString()[:3] }
	}

	o := &Orchestrator{
		panes:     map[string]pane.State{},
		refresh:   map[string]context.CancelFunc{},
		listeners: map[int]Listener{},
		registry:  deps.Registry,
		resolver:  deps.Resolver,
		history:   deps.History,
		prefs:     deps.Preferences,
		saver:     deps.Saver,
		clock:     deps.Clock,
		logger:    deps.Logger,
		cfg:       cfg,
	}
	o.pipeline = pipeline.New(host{o}, pipeline.Dependencies{
		Registry:    deps.Registry,
		Resolver:    deps.Resolver,
		History:     deps.History,
		Preferences: deps.Preferences,
		Clock:       deps.Clock,
		Logger:      deps.Logger,
		Metrics:     deps.Metrics,
	}, cfg.Pipeline)
	return o
}

// host gives the pipeline access to pane state. Its methods other than Do
// expect the session lock to be held.
type host struct{ o *Orchestrator }

func (h host) Pane(key string) (pane.State, bool) {
	s, ok := h.o.panes[key]
	return s, ok
}

func (h host) Dispatch(key string, a pane.Action) {
	h.o.dispatch(key, a)
}

func (h host) Notify(t model.Transition, key string) {
	h.o.notify(t, key)
}

func (h host) Do(fn func()) {
	h.o.mu.Lock()
	defer h.o.mu.Unlock()
	if h.o.closed {
		return
	}
	fn()
}

func (o *Orchestrator) dispatch(key string, a pane.Action) {
	s, ok := o.panes[key]
	if !ok {
		return
	}
	o.panes[key] = pane.Reduce(s, a)
}

func (o *Orchestrator) notify(t model.Transition, key string) {
	ids := make([]int, 0, len(o.listeners))
	for id := range o.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		o.listeners[id](t, key)
	}
}

// Subscribe registers l and returns a function that removes it.
func (o *Orchestrator) Subscribe(l Listener) func() {
	o.mu.Lock()
	defer o.mu.Unlock()
	id := o.nextID
	o.nextID++
	o.listeners[id] = l
	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		delete(o.listeners, id)
	}
}

func (o *Orchestrator) lock() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return model.ErrSessionClosed
	}
	return nil
}

func (o *Orchestrator) paneLocked(key string) (pane.State, error) {
	s, ok := o.panes[key]
	if !ok {
		return pane.State{}, fmt.Errorf("%w: %s", model.ErrPaneNotFound, key)
	}
	return s, nil
}

// isLeft reports whether key is the first pane, which owns a correlation
// draft.
func (o *Orchestrator) isLeft(key string) bool {
	return len(o.order) > 0 && o.order[0] == key
}

// PaneInit describes a pane to create.
type PaneInit struct {
	// Datasource is a uid or name. Empty selects the last used datasource,
	// then the default one.
	Datasource  string
	Queries     []model.Query
	Range       model.RawTimeRange
	Timezone    string
	PanelsState model.PanelsState
}

// InitializePane creates the pane key, or re-creates it when it exists, and
// runs its queries when a datasource resolved.
func (o *Orchestrator) InitializePane(ctx context.Context, key string, init PaneInit) error {
	if err := o.lock(); err != nil {
		return err
	}
	_, exists := o.panes[key]
	full := !exists && len(o.order) >= MaxPanes
	o.mu.Unlock()
	if full {
		return model.ErrTooManyPanes
	}

	ds := o.lookupDatasource(ctx, init.Datasource)
	var override *model.DataSourceRef
	if ds != nil && !datasource.IsMixed(ds) && len(init.Queries) == 0 {
		override = datasource.RefOf(ds)
	}
	queries := o.pipeline.EnsureQueries(ctx, init.Queries, override)
	supplementary := o.supplementaryPreferences(ctx)

	if err := o.lock(); err != nil {
		return err
	}
	defer o.mu.Unlock()

	if _, exists := o.panes[key]; !exists && len(o.order) >= MaxPanes {
		return model.ErrTooManyPanes
	}

	tz := init.Timezone
	if tz == "" {
		tz = o.cfg.DefaultTimezone
	}
	raw := init.Range
	if raw.From == "" || raw.To == "" {
		raw = o.cfg.DefaultRange
	}
	tr, err := o.resolver.Resolve(raw, tz)
	if err != nil {
		o.logger.Warn(moduleName, "Falling back to default range", map[string]interface{}{
			"pane":  key,
			"from":  raw.From,
			"to":    raw.To,
			"error": err.Error(),
		})
		if tr, err = o.resolver.Resolve(o.cfg.DefaultRange, tz); err != nil {
			return err
		}
	}

	if old, ok := o.panes[key]; ok {
		pipeline.Release(old)
		o.stopRefreshLocked(key)
	} else {
		o.order = append(o.order, key)
	}
	o.panes[key] = pane.Reduce(pane.New(key), pane.Initialize{
		Datasource:    ds,
		Queries:       queries,
		Range:         tr,
		Timezone:      tz,
		PanelsState:   init.PanelsState,
		Supplementary: supplementary,
	})
	o.notify(model.TransitionPaneOpened, key)

	if ds == nil {
		o.logger.Warn(moduleName, "Pane has no datasource", map[string]interface{}{"pane": key})
		return nil
	}
	o.rememberDatasource(ctx, ds)
	return o.pipeline.Run(ctx, key, pipeline.RunOptions{})
}

// lookupDatasource resolves uidOrName, falling back to the last used and
// then the default datasource. It returns nil when none is configured.
func (o *Orchestrator) lookupDatasource(ctx context.Context, uidOrName string) datasource.DataSource {
	if uidOrName != "" {
		ds, err := o.registry.Get(ctx, uidOrName)
		if err == nil {
			return ds
		}
		o.logger.Warn(moduleName, "Datasource not found", map[string]interface{}{
			"datasource": uidOrName,
			"error":      err.Error(),
		})
	}
	ds, err := o.DefaultDatasource(ctx)
	if err != nil {
		return nil
	}
	return ds
}

// DefaultDatasource is the last used datasource of the organization when it
// still exists, else the registry default.
func (o *Orchestrator) DefaultDatasource(ctx context.Context) (datasource.DataSource, error) {
	if o.prefs != nil {
		if uid, err := o.prefs.LastUsedDatasource(ctx, o.cfg.OrgID); err == nil && uid != "" {
			if ds, err := o.registry.Get(ctx, uid); err == nil && !datasource.IsMixed(ds) {
				return ds, nil
			}
		}
	}
	return o.registry.Default(ctx)
}

func (o *Orchestrator) rememberDatasource(ctx context.Context, ds datasource.DataSource) {
	if o.prefs == nil || ds == nil || datasource.IsMixed(ds) {
		return
	}
	if err := o.prefs.SetLastUsedDatasource(ctx, o.cfg.OrgID, ds.Ref().UID); err != nil {
		o.logger.Warn(moduleName, "Failed to store last used datasource", map[string]interface{}{"error": err.Error()})
	}
}

func (o *Orchestrator) supplementaryPreferences(ctx context.Context) map[model.SupplementaryQueryType]bool {
	if o.prefs == nil {
		return nil
	}
	enabled, err := o.prefs.SupplementaryQueriesEnabled(ctx)
	if err != nil {
		o.logger.Warn(moduleName, "Failed to load supplementary query preferences", map[string]interface{}{"error": err.Error()})
		return nil
	}
	return enabled
}

// EnsureQueries exposes query normalization to collaborators that build
// pane descriptions, such as the address bar sync.
func (o *Orchestrator) EnsureQueries(ctx context.Context, queries []model.Query, override *model.DataSourceRef) []model.Query {
	return o.pipeline.EnsureQueries(ctx, queries, override)
}

func (o *Orchestrator) Registry() datasource.Registry {
	return o.registry
}

// Close releases every stream and timer. Later commands fail with
// model.ErrSessionClosed.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	for key, s := range o.panes {
		pipeline.Release(s)
		o.stopRefreshLocked(key)
	}
	o.closed = true
	o.logger.Debug(moduleName, "Session closed", map[string]interface{}{"panes": len(o.panes)})
}
