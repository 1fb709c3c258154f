package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"explore-state-be/pkg/explore/correlation"
	"explore-state-be/pkg/explore/datasource"
	"explore-state-be/pkg/explore/datasource/datasourcetest"
	"explore-state-be/pkg/explore/model"
	"explore-state-be/pkg/explore/pane"
	"explore-state-be/pkg/explore/pipeline"
	"explore-state-be/pkg/explore/preferences"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, time.March, 14, 10, 30, 0, 0, time.UTC)

type recorder struct {
	mu     sync.Mutex
	events []model.Transition
}

func (r *recorder) listen(t model.Transition, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, t)
}

func (r *recorder) index(t model.Transition) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.events {
		if e == t {
			return i
		}
	}
	return -1
}

type savedDrafts struct {
	drafts []correlation.Draft
}

func (s *savedDrafts) SaveCorrelation(_ context.Context, d correlation.Draft) error {
	s.drafts = append(s.drafts, d)
	return nil
}

type env struct {
	t     *testing.T
	o     *Orchestrator
	loki  *datasourcetest.DataSource
	prom  *datasourcetest.DataSource
	clock *quartz.Mock
	saver *savedDrafts
	prefs *preferences.Memory
}

func newEnv(t *testing.T) *env {
	t.Helper()
	clock := quartz.NewMock(t)
	clock.Set(fixedNow)

	loki := datasourcetest.New("loki-1", "loki")
	prom := datasourcetest.New("prom-1", "prometheus")
	saver := &savedDrafts{}
	prefs := preferences.NewMemory()

	keys := []string{"left", "right", "third"}
	o := New(Dependencies{
		Registry:    datasource.NewStaticRegistry("loki-1", loki, prom),
		Preferences: prefs,
		Saver:       saver,
		Clock:       clock,
	}, Config{
		Pipeline:        pipeline.Config{LiveThrottle: -1},
		DefaultTimezone: "utc",
		NewKey: func() string {
			k := keys[0]
			keys = keys[1:]
			return k
		},
	})
	t.Cleanup(o.Close)
	return &env{t: t, o: o, loki: loki, prom: prom, clock: clock, saver: saver, prefs: prefs}
}

var lastHour = model.RawTimeRange{From: "now-1h", To: "now"}

func (e *env) open(key string, raw model.RawTimeRange, exprs ...string) {
	e.t.Helper()
	queries := make([]model.Query, len(exprs))
	for i, expr := range exprs {
		queries[i] = model.Query{RefID: model.NextRefID(queries[:i]), Expr: expr}
	}
	require.NoError(e.t, e.o.InitializePane(context.Background(), key, PaneInit{
		Datasource: "loki-1",
		Queries:    queries,
		Range:      raw,
	}))
}

func (e *env) settle(ds *datasourcetest.DataSource, key string, rows int) {
	e.t.Helper()
	stream := ds.Last()
	require.NotNil(e.t, stream)
	values := make([]any, rows)
	times := make([]any, rows)
	for i := range values {
		values[i] = float64(i)
		times[i] = fixedNow
	}
	require.True(e.t, stream.Emit(model.DataQueryResponse{State: model.LoadingStateDone, Data: []model.Frame{{
		RefID: "A",
		Fields: []model.Field{
			{Name: "time", Type: model.FieldTypeTime, Values: times},
			{Name: "value", Type: model.FieldTypeNumber, Values: values},
		},
	}}}))
	stream.Complete()
	require.Eventually(e.t, func() bool {
		s, _ := e.o.Pane(key)
		return s.QuerySubscription == nil && !s.Loading
	}, 2*time.Second, 5*time.Millisecond)
}

func TestInitializePaneRunsQueries(t *testing.T) {
	e := newEnv(t)
	e.open("left", lastHour, `{job="api"}`)

	s, ok := e.o.Pane("left")
	require.True(t, ok)
	assert.Equal(t, "loki-1", s.Datasource.Ref().UID)
	assert.True(t, s.Loading)
	assert.Equal(t, 1, e.loki.QueryCount())
	assert.Equal(t, "explore_left", e.loki.Last().Request.RequestID)

	uid, _ := e.prefs.LastUsedDatasource(context.Background(), 0)
	assert.Equal(t, "loki-1", uid)
}

func TestInitializePaneFallsBackToDefaultDatasource(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.o.InitializePane(context.Background(), "left", PaneInit{Datasource: "missing"}))

	s, _ := e.o.Pane("left")
	assert.Equal(t, "loki-1", s.Datasource.Ref().UID)
	require.Len(t, s.Queries, 1)
	assert.True(t, s.Queries[0].IsEmpty())
	assert.Equal(t, 0, e.loki.QueryCount(), "an empty query set does not run")
}

func TestSplitOpenCopiesOriginAndSyncsTimes(t *testing.T) {
	e := newEnv(t)
	e.open("left", lastHour, `{job="api"}`)

	key, err := e.o.SplitOpen(context.Background(), SplitOptions{})
	require.NoError(t, err)
	assert.Equal(t, "right", key, "colliding generated keys are retried")

	panes := e.o.Panes()
	require.Len(t, panes, 2)
	assert.True(t, e.o.SyncedTimes())
	assert.Equal(t, panes[0].Queries[0].Expr, panes[1].Queries[0].Expr)
	assert.NotEqual(t, panes[0].Queries[0].Key, panes[1].Queries[0].Key)
	assert.Equal(t, panes[0].Range.Raw, panes[1].Range.Raw)
	assert.Equal(t, "explore_right", e.loki.Last().Request.RequestID)
}

func TestSplitOpenWithOwnRangeIsNotSynced(t *testing.T) {
	e := newEnv(t)
	e.open("left", lastHour, "a")

	_, err := e.o.SplitOpen(context.Background(), SplitOptions{Range: &model.RawTimeRange{From: "now-6h", To: "now"}})
	require.NoError(t, err)
	assert.False(t, e.o.SyncedTimes())
}

func TestSplitOpenReplacesSecondPane(t *testing.T) {
	e := newEnv(t)
	e.open("left", lastHour, "a")
	_, err := e.o.SplitOpen(context.Background(), SplitOptions{})
	require.NoError(t, err)
	rightStream := e.loki.Last()

	key, err := e.o.SplitOpen(context.Background(), SplitOptions{Datasource: "prom-1", Queries: []model.Query{{RefID: "A", Expr: "up"}}})
	require.NoError(t, err)

	assert.Equal(t, "third", key)
	assert.Equal(t, []string{"left", "third"}, e.o.PaneKeys())
	assert.True(t, rightStream.Cancelled())
	assert.Equal(t, 1, e.prom.QueryCount())
}

func TestSplitOpenFromReplacedPaneCopiesIt(t *testing.T) {
	e := newEnv(t)
	e.open("left", lastHour, "a")
	sixHours := model.RawTimeRange{From: "now-6h", To: "now"}
	_, err := e.o.SplitOpen(context.Background(), SplitOptions{
		Datasource: "prom-1",
		Queries:    []model.Query{{RefID: "A", Expr: "up"}},
		Range:      &sixHours,
	})
	require.NoError(t, err)
	require.False(t, e.o.SyncedTimes())

	key, err := e.o.SplitOpen(context.Background(), SplitOptions{Origin: "right"})
	require.NoError(t, err)

	assert.Equal(t, []string{"left", "third"}, e.o.PaneKeys())
	s, ok := e.o.Pane(key)
	require.True(t, ok)
	assert.Equal(t, "prom-1", s.Datasource.Ref().UID)
	require.Len(t, s.Queries, 1)
	assert.Equal(t, "up", s.Queries[0].Expr)
	assert.Equal(t, sixHours, s.Range.Raw)
	assert.True(t, e.o.SyncedTimes())
}

func TestSplitOpenFromUnknownOriginIsNotSynced(t *testing.T) {
	e := newEnv(t)
	e.open("left", lastHour, "a")

	_, err := e.o.SplitOpen(context.Background(), SplitOptions{Origin: "gone", Datasource: "prom-1"})
	require.NoError(t, err)

	assert.Equal(t, []string{"left", "right"}, e.o.PaneKeys())
	assert.False(t, e.o.SyncedTimes())
}

func TestSplitCloseReleasesPaneAndResetsLayout(t *testing.T) {
	e := newEnv(t)
	e.open("left", lastHour, "a")
	_, err := e.o.SplitOpen(context.Background(), SplitOptions{})
	require.NoError(t, err)
	require.NoError(t, e.o.Maximize("right"))
	assert.Equal(t, "right", e.o.LargerPane())
	stream := e.loki.Last()

	require.NoError(t, e.o.SplitClose("right"))

	assert.True(t, stream.Cancelled())
	assert.Equal(t, []string{"left"}, e.o.PaneKeys())
	assert.Empty(t, e.o.LargerPane())
	assert.False(t, e.o.SyncedTimes())
	assert.ErrorIs(t, e.o.SplitClose("right"), model.ErrPaneNotFound)
}

func TestSyncedRangeChangeRunsBothPanes(t *testing.T) {
	e := newEnv(t)
	e.open("left", lastHour, "a")
	_, err := e.o.SplitOpen(context.Background(), SplitOptions{})
	require.NoError(t, err)
	before := e.loki.QueryCount()

	sixHours := model.RawTimeRange{From: "now-6h", To: "now"}
	require.NoError(t, e.o.ChangeRange(context.Background(), "left", sixHours))

	assert.Equal(t, before+2, e.loki.QueryCount())
	for _, p := range e.o.Panes() {
		assert.Equal(t, sixHours, p.Range.Raw, p.Key)
	}

	require.NoError(t, e.o.SetSyncedTimes(false))
	require.NoError(t, e.o.ChangeRange(context.Background(), "right", lastHour))
	left, _ := e.o.Pane("left")
	assert.Equal(t, sixHours, left.Range.Raw)
}

func TestToggleSyncTimesCopiesRange(t *testing.T) {
	e := newEnv(t)
	e.open("left", lastHour, "a")
	_, err := e.o.SplitOpen(context.Background(), SplitOptions{Range: &model.RawTimeRange{From: "now-6h", To: "now"}})
	require.NoError(t, err)

	require.NoError(t, e.o.ToggleSyncTimes(context.Background(), "left"))

	assert.True(t, e.o.SyncedTimes())
	right, _ := e.o.Pane("right")
	assert.Equal(t, lastHour, right.Range.Raw)
}

func TestReturningToCachedRangeSkipsQuery(t *testing.T) {
	e := newEnv(t)
	first := model.AbsoluteTimeRange{From: fixedNow.Add(-time.Hour).UnixMilli(), To: fixedNow.UnixMilli()}
	second := model.AbsoluteTimeRange{From: fixedNow.Add(-2 * time.Hour).UnixMilli(), To: fixedNow.Add(-time.Hour).UnixMilli()}

	e.open("left", first.Raw(), "a")
	e.settle(e.loki, "left", 3)
	require.NoError(t, e.o.ChangeRange(context.Background(), "left", second.Raw()))
	e.settle(e.loki, "left", 1)
	require.Equal(t, 2, e.loki.QueryCount())

	require.NoError(t, e.o.ChangeRange(context.Background(), "left", first.Raw()))

	s, _ := e.o.Pane("left")
	assert.Equal(t, 2, e.loki.QueryCount())
	assert.Equal(t, model.LoadingStateDone, s.QueryResponse.State)
	assert.Equal(t, 3, s.QueryResponse.Series[0].Length())
	assert.Len(t, s.Cache, 2)
}

func TestChangeDatasourceLeavesLiveModeFirst(t *testing.T) {
	e := newEnv(t)
	rec := &recorder{}
	e.o.Subscribe(rec.listen)
	e.open("left", lastHour, "a")

	require.NoError(t, e.o.ChangeRefreshInterval(context.Background(), "left", pane.LiveInterval))
	live := e.loki.Last()
	assert.True(t, live.Request.LiveStreaming)

	require.NoError(t, e.o.ChangeDatasource(context.Background(), "left", "prom-1", DatasourceOptions{ImportQueries: true}))

	s, _ := e.o.Pane("left")
	assert.False(t, s.IsLive)
	assert.Empty(t, s.RefreshInterval)
	assert.Equal(t, "prom-1", s.Datasource.Ref().UID)
	assert.True(t, live.Cancelled())
	require.Len(t, s.Queries, 1)
	assert.Equal(t, "prom-1", s.Queries[0].DatasourceUID(), "untranslatable queries reset for the new datasource")

	refreshOff := rec.index(model.TransitionRefreshIntervalChanged)
	swapped := rec.index(model.TransitionDatasourceChanged)
	require.GreaterOrEqual(t, refreshOff, 0)
	assert.Less(t, refreshOff, swapped)
}

func TestChangeDatasourceFromMixedRetagsQueries(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	require.NoError(t, e.o.InitializePane(ctx, "left", PaneInit{
		Datasource: datasource.MixedUID,
		Queries: []model.Query{
			{RefID: "A", Expr: `{job="api"}`, Datasource: &model.DataSourceRef{UID: "loki-1", Type: "loki"}},
			{RefID: "B", Expr: "up", Datasource: &model.DataSourceRef{UID: "prom-1", Type: "prometheus"}},
		},
		Range: lastHour,
	}))

	require.NoError(t, e.o.ChangeDatasource(ctx, "left", "prom-1", DatasourceOptions{}))

	s, _ := e.o.Pane("left")
	require.Len(t, s.Queries, 2)
	for _, q := range s.Queries {
		assert.Equal(t, "prom-1", q.DatasourceUID())
	}
	req := e.prom.Last().Request
	require.Len(t, req.Targets, 2)
	for _, q := range req.Targets {
		assert.Equal(t, "prom-1", q.DatasourceUID())
	}
}

func TestChangeRefreshIntervalRunsOnTicker(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	e := newEnv(t)
	trap := e.clock.Trap().TickerFunc("orchestrator", "refresh")
	defer trap.Close()

	e.open("left", lastHour, "a")
	e.settle(e.loki, "left", 1)

	require.NoError(t, e.o.ChangeRefreshInterval(ctx, "left", "5s"))
	call, err := trap.Wait(ctx)
	require.NoError(t, err)
	require.NoError(t, call.Release(ctx))

	e.clock.Advance(5 * time.Second).MustWait(ctx)
	assert.Equal(t, 2, e.loki.QueryCount())

	assert.ErrorIs(t, e.o.ChangeRefreshInterval(ctx, "left", "soon"), model.ErrInvalidRefreshRate)
	require.NoError(t, e.o.ChangeRefreshInterval(ctx, "left", "off"))
	e.clock.Advance(5 * time.Second).MustWait(ctx)
	assert.Equal(t, 2, e.loki.QueryCount())
}

func TestUpdatePaneRunsOnce(t *testing.T) {
	e := newEnv(t)
	e.open("left", lastHour, "a")
	require.Equal(t, 1, e.loki.QueryCount())

	s, _ := e.o.Pane("left")
	queries := append(model.CloneQueries(s.Queries), model.Query{RefID: "B", Expr: "b"})
	require.NoError(t, e.o.UpdatePane(context.Background(), "left", PaneUpdate{Queries: queries}))

	s, _ = e.o.Pane("left")
	assert.Len(t, s.Queries, 2)
	assert.Equal(t, 2, e.loki.QueryCount())

	require.NoError(t, e.o.UpdatePane(context.Background(), "left", PaneUpdate{PanelsState: model.PanelsState{"logs": {"id": "x"}}, PanelsStateChanged: true}))
	assert.Equal(t, 2, e.loki.QueryCount(), "panel state alone does not run")
}

func TestAddQueryRow(t *testing.T) {
	e := newEnv(t)
	e.open("left", lastHour, "a", "b")

	q, err := e.o.AddQueryRow(context.Background(), "left", 0)
	require.NoError(t, err)

	s, _ := e.o.Pane("left")
	require.Len(t, s.Queries, 3)
	assert.Equal(t, q.Key, s.Queries[1].Key)
	assert.Equal(t, "C", q.RefID)
	assert.Equal(t, "loki-1", q.DatasourceUID())

	_, err = e.o.AddQueryRow(context.Background(), "left", 7)
	assert.ErrorIs(t, err, model.ErrInvalidQueryIndex)
}

func TestScanAndClearLogs(t *testing.T) {
	e := newEnv(t)
	e.open("left", lastHour, "a")

	require.NoError(t, e.o.ScanStart(context.Background(), "left"))
	s, _ := e.o.Pane("left")
	assert.True(t, s.Scanning)
	require.NoError(t, e.o.ScanStop("left"))
	s, _ = e.o.Pane("left")
	assert.False(t, s.Scanning)

	require.NoError(t, e.o.ChangeSize("left", 640))
	require.NoError(t, e.o.RunQueries(context.Background(), "left"))
	assert.Equal(t, 640, e.loki.Last().Request.MaxDataPoints)
}

func TestClosePaneWithDirtyDraftPrompts(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.open("left", lastHour, "a")
	_, err := e.o.SplitOpen(ctx, SplitOptions{})
	require.NoError(t, err)

	require.NoError(t, e.o.StartCorrelation(correlation.Draft{SourceUID: "loki-1", TargetUID: "loki-1", Label: "logs"}))
	require.NoError(t, e.o.SetCorrelationDirty(true, true))

	prompt, err := e.o.RequestClosePane(ctx, "left")
	require.NoError(t, err)
	require.NotNil(t, prompt)
	assert.Equal(t, correlation.CorrelationLostMessage(correlation.ActionClosePane), prompt.Message)
	assert.Len(t, e.o.Panes(), 2, "nothing closes before the prompt is resolved")

	require.NoError(t, e.o.ResolveCorrelationPrompt(ctx, correlation.ResolutionSave))

	assert.Equal(t, []string{"right"}, e.o.PaneKeys())
	assert.Len(t, e.saver.drafts, 1)
	assert.False(t, e.o.Correlation().EditorMode)
}

func TestChangeDatasourcePromptCanBeCancelled(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.open("left", lastHour, "a")
	_, err := e.o.SplitOpen(ctx, SplitOptions{})
	require.NoError(t, err)
	require.NoError(t, e.o.StartCorrelation(correlation.Draft{}))

	require.NoError(t, e.o.ChangeQueries(ctx, "right", []model.Query{{RefID: "A", Expr: "edited"}}))
	assert.True(t, e.o.Correlation().QueryEditorDirty)

	prompt, err := e.o.RequestChangeDatasource(ctx, "right", "prom-1")
	require.NoError(t, err)
	require.NotNil(t, prompt)
	assert.True(t, e.o.Correlation().IsExiting)

	require.NoError(t, e.o.ResolveCorrelationPrompt(ctx, correlation.ResolutionCancel))
	right, _ := e.o.Pane("right")
	assert.Equal(t, "loki-1", right.Datasource.Ref().UID)
	assert.False(t, e.o.Correlation().IsExiting)

	prompt, err = e.o.RequestChangeDatasource(ctx, "left", "prom-1")
	require.NoError(t, err)
	assert.Nil(t, prompt, "a clean draft does not guard the draft side")
	left, _ := e.o.Pane("left")
	assert.Equal(t, "prom-1", left.Datasource.Ref().UID)
	assert.False(t, e.o.Correlation().EditorMode)
}

func TestCloseReleasesEverything(t *testing.T) {
	e := newEnv(t)
	e.open("left", lastHour, "a")
	stream := e.loki.Last()

	e.o.Close()

	assert.True(t, stream.Cancelled())
	assert.ErrorIs(t, e.o.RunQueries(context.Background(), "left"), model.ErrSessionClosed)
}
