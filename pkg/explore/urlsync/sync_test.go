package urlsync

import (
	"context"
	"sync"
	"testing"
	"time"

	"explore-state-be/pkg/explore/datasource"
	"explore-state-be/pkg/explore/datasource/datasourcetest"
	"explore-state-be/pkg/explore/model"
	"explore-state-be/pkg/explore/orchestrator"
	"explore-state-be/pkg/explore/pipeline"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	fixedNow = time.Date(2024, time.March, 14, 10, 30, 0, 0, time.UTC)
	lastHour = model.RawTimeRange{From: "now-1h", To: "now"}
)

type syncEnv struct {
	t        *testing.T
	orch     *orchestrator.Orchestrator
	loki     *datasourcetest.DataSource
	prom     *datasourcetest.DataSource
	clock    *quartz.Mock
	location *MemoryLocation
	engine   *Engine

	mu          sync.Mutex
	transitions []model.Transition
}

func newSyncEnv(t *testing.T, initial string) *syncEnv {
	t.Helper()
	clock := quartz.NewMock(t)
	clock.Set(fixedNow)
	loki := datasourcetest.New("loki-1", "loki")
	prom := datasourcetest.New("prom-1", "prometheus")

	orch := orchestrator.New(orchestrator.Dependencies{
		Registry: datasource.NewStaticRegistry("loki-1", loki, prom),
		Clock:    clock,
	}, orchestrator.Config{
		Pipeline:        pipeline.Config{LiveThrottle: -1},
		DefaultTimezone: "utc",
	})
	location := NewMemoryLocation(initial)
	e := &syncEnv{
		t:        t,
		orch:     orch,
		loki:     loki,
		prom:     prom,
		clock:    clock,
		location: location,
		engine:   NewEngine(orch, location, OutboundOptions{Clock: clock}),
	}
	orch.Subscribe(func(tr model.Transition, _ string) {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.transitions = append(e.transitions, tr)
	})
	t.Cleanup(func() {
		e.engine.Stop()
		orch.Close()
	})
	return e
}

func (e *syncEnv) recorded() []model.Transition {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]model.Transition(nil), e.transitions...)
}

func (e *syncEnv) reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.transitions = nil
}

func encode(t *testing.T, panes ...NamedPane) string {
	t.Helper()
	raw, err := Encode(URLState{SchemaVersion: SchemaVersion, Panes: panes})
	require.NoError(t, err)
	return raw
}

func lokiPane(raw model.RawTimeRange, exprs ...string) PaneURLState {
	queries := make([]model.Query, len(exprs))
	for i, expr := range exprs {
		queries[i] = model.Query{RefID: model.NextRefID(queries[:i]), Expr: expr}
	}
	return PaneURLState{Datasource: "loki-1", Queries: queries, Range: raw}
}

func TestStartInitializesPanesFromLocation(t *testing.T) {
	e := newSyncEnv(t, encode(t, NamedPane{Key: "left", State: lokiPane(lastHour, `{job="api"}`)}))
	require.NoError(t, e.engine.Start(context.Background()))

	s, ok := e.orch.Pane("left")
	require.True(t, ok)
	assert.Equal(t, "loki-1", s.Datasource.Ref().UID)
	require.Len(t, s.Queries, 1)
	assert.Equal(t, `{job="api"}`, s.Queries[0].Expr)
	assert.Equal(t, 1, e.loki.QueryCount())
}

func TestAddingQueryInLocationRunsOnce(t *testing.T) {
	e := newSyncEnv(t, encode(t, NamedPane{Key: "left", State: lokiPane(lastHour, `{job="api"}`)}))
	ctx := context.Background()
	require.NoError(t, e.engine.Start(ctx))
	e.reset()

	next := encode(t, NamedPane{Key: "left", State: lokiPane(lastHour, `{job="api"}`, `{job="db"}`)})
	require.NoError(t, e.engine.Navigate(ctx, next))

	assert.Equal(t, 2, e.loki.QueryCount())
	s, _ := e.orch.Pane("left")
	require.Len(t, s.Queries, 2)
	assert.Equal(t, "B", s.Queries[1].RefID)

	runs := 0
	for _, tr := range e.recorded() {
		if tr == model.TransitionRunStarted {
			runs++
		}
	}
	assert.Equal(t, 1, runs)
}

func TestReparsingUnchangedLocationDispatchesNothing(t *testing.T) {
	initial := encode(t,
		NamedPane{Key: "left", State: lokiPane(lastHour, `{job="api"}`)},
		NamedPane{Key: "right", State: PaneURLState{
			Datasource: "prom-1",
			Queries:    []model.Query{{RefID: "A", Expr: "up"}},
			Range:      model.RawTimeRange{From: "now-6h", To: "now"},
		}},
	)
	e := newSyncEnv(t, initial)
	ctx := context.Background()
	require.NoError(t, e.engine.Start(ctx))
	e.engine.Flush()
	written := e.location.Current()
	e.reset()

	require.NoError(t, e.engine.inbound.Sync(ctx, initial))
	require.NoError(t, e.engine.inbound.Sync(ctx, written))

	assert.Empty(t, e.recorded())
	assert.Equal(t, 1, e.loki.QueryCount())
	assert.Equal(t, 1, e.prom.QueryCount())
}

func TestPanesMissingFromLocationAreClosed(t *testing.T) {
	both := encode(t,
		NamedPane{Key: "left", State: lokiPane(lastHour, "a")},
		NamedPane{Key: "right", State: lokiPane(model.RawTimeRange{From: "now-6h", To: "now"}, "b")},
	)
	e := newSyncEnv(t, both)
	ctx := context.Background()
	require.NoError(t, e.engine.Start(ctx))
	require.Equal(t, []string{"left", "right"}, e.orch.PaneKeys())

	require.NoError(t, e.engine.Navigate(ctx, encode(t, NamedPane{Key: "left", State: lokiPane(lastHour, "a")})))
	assert.Equal(t, []string{"left"}, e.orch.PaneKeys())
	assert.Equal(t, 2, e.location.Len())

	require.True(t, e.location.Back())
	assert.Equal(t, []string{"left", "right"}, e.orch.PaneKeys())
}

func TestInconsistentRangesTurnSyncOff(t *testing.T) {
	e := newSyncEnv(t, "")
	ctx := context.Background()
	require.NoError(t, e.engine.Start(ctx))
	require.NoError(t, e.orch.SetSyncedTimes(true))

	require.NoError(t, e.engine.Navigate(ctx, encode(t,
		NamedPane{Key: "left", State: lokiPane(lastHour, "a")},
		NamedPane{Key: "right", State: lokiPane(model.RawTimeRange{From: "now-6h", To: "now"}, "a")},
	)))
	assert.False(t, e.orch.SyncedTimes())
}

func TestMalformedPaneUsesDefaultDatasource(t *testing.T) {
	e := newSyncEnv(t, "left=%7B%22datasource%22")
	require.NoError(t, e.engine.Start(context.Background()))

	s, ok := e.orch.Pane("left")
	require.True(t, ok)
	assert.Equal(t, "loki-1", s.Datasource.Ref().UID)
	require.Len(t, s.Queries, 1)
	assert.True(t, s.Queries[0].IsEmpty())
	assert.Equal(t, lastHour, s.Range.Raw)
}

func TestResolveDatasource(t *testing.T) {
	e := newSyncEnv(t, "")
	in := e.engine.inbound
	ref := func(uid string) *model.DataSourceRef { return &model.DataSourceRef{UID: uid} }

	tests := []struct {
		name        string
		pane        PaneURLState
		wantUID     string
		wantQueries int
	}{
		{
			name:        "root datasource wins",
			pane:        PaneURLState{Datasource: "prom-1", Queries: []model.Query{{RefID: "A", Datasource: ref("loki-1")}}},
			wantUID:     "prom-1",
			wantQueries: 1,
		},
		{
			name:        "single query datasource",
			pane:        PaneURLState{Datasource: "gone", Queries: []model.Query{{RefID: "A", Datasource: ref("prom-1")}}},
			wantUID:     "prom-1",
			wantQueries: 1,
		},
		{
			name: "several query datasources make the pane mixed",
			pane: PaneURLState{Queries: []model.Query{
				{RefID: "A", Datasource: ref("prom-1")},
				{RefID: "B", Datasource: ref("loki-1")},
			}},
			wantUID:     datasource.MixedUID,
			wantQueries: 2,
		},
		{
			name: "unknown query datasources are dropped",
			pane: PaneURLState{Queries: []model.Query{
				{RefID: "A", Datasource: ref("prom-1")},
				{RefID: "B", Datasource: ref("gone")},
			}},
			wantUID:     "prom-1",
			wantQueries: 1,
		},
		{
			name:    "nothing resolvable",
			pane:    PaneURLState{Datasource: "gone", Queries: []model.Query{{RefID: "A", Datasource: ref("gone")}}},
			wantUID: "",
		},
		{
			name:    "empty pane",
			wantUID: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uid, queries := in.resolve(context.Background(), tt.pane)
			assert.Equal(t, tt.wantUID, uid)
			assert.Len(t, queries, tt.wantQueries)
		})
	}
}

func TestOutboundDebouncesWrites(t *testing.T) {
	e := newSyncEnv(t, "")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, e.engine.Start(ctx))

	require.NoError(t, e.orch.InitializePane(ctx, "left", orchestrator.PaneInit{Datasource: "loki-1", Range: lastHour}))
	e.clock.Advance(100 * time.Millisecond).MustWait(ctx)
	require.NoError(t, e.orch.ChangeRange(ctx, "left", model.RawTimeRange{From: "now-6h", To: "now"}))

	e.clock.Advance(150 * time.Millisecond).MustWait(ctx)
	assert.Equal(t, "", e.location.Current(), "write is still pending")

	e.clock.Advance(50 * time.Millisecond).MustWait(ctx)
	state, errs := Parse(e.location.Current())
	require.Empty(t, errs)
	p, ok := state.Pane("left")
	require.True(t, ok)
	assert.Equal(t, "now-6h", p.Range.From)
	assert.Equal(t, 1, e.location.Len(), "first write replaces")

	require.NoError(t, e.orch.ChangeRange(ctx, "left", lastHour))
	e.clock.Advance(DefaultDebounce).MustWait(ctx)
	assert.Equal(t, 2, e.location.Len(), "later writes push")

	require.NoError(t, e.orch.ChangePanelsState("left", model.PanelsState{"logs": {"visualisationType": "table"}}))
	e.clock.Advance(DefaultDebounce).MustWait(ctx)
	assert.Equal(t, 2, e.location.Len(), "panel state alone does not write")
}

func TestUserChangeAfterQuietNavigationPushes(t *testing.T) {
	initial := encode(t, NamedPane{Key: "left", State: lokiPane(lastHour, `{job="api"}`)})
	e := newSyncEnv(t, initial)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, e.engine.Start(ctx))
	e.engine.Flush()
	require.Equal(t, 1, e.location.Len())

	withPanels := lokiPane(lastHour, `{job="api"}`)
	withPanels.PanelsState = model.PanelsState{"logs": {"visualisationType": "table"}}
	require.NoError(t, e.engine.Navigate(ctx, encode(t, NamedPane{Key: "left", State: withPanels})))
	require.Equal(t, 2, e.location.Len())

	require.NoError(t, e.orch.ChangeRange(ctx, "left", model.RawTimeRange{From: "now-6h", To: "now"}))
	e.clock.Advance(DefaultDebounce).MustWait(ctx)
	assert.Equal(t, 3, e.location.Len(), "range change pushes a new entry")

	require.True(t, e.location.Back())
	state, errs := Parse(e.location.Current())
	require.Empty(t, errs)
	p, ok := state.Pane("left")
	require.True(t, ok)
	assert.Equal(t, "table", p.PanelsState["logs"]["visualisationType"])
}
