package testdata

import (
	"context"
	"testing"
	"time"

	"explore-state-be/pkg/explore/model"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func request(targets ...model.Query) *model.QueryRequest {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return &model.QueryRequest{
		RequestID:     "explore_left",
		Targets:       targets,
		Range:         model.TimeRange{From: from, To: from.Add(time.Hour)},
		IntervalMs:    60000,
		MaxDataPoints: 1000,
	}
}

func collect(t *testing.T, ch <-chan model.DataQueryResponse) []model.DataQueryResponse {
	t.Helper()
	var out []model.DataQueryResponse
	timeout := time.After(5 * time.Second)
	for {
		select {
		case resp, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, resp)
		case <-timeout:
			t.Fatal("stream did not complete")
		}
	}
}

func TestRandomWalkIsDeterministic(t *testing.T) {
	ds := New("td", "TestData", quartz.NewReal())
	req := request(model.Query{RefID: "A", Expr: "cpu"})

	first := collect(t, ds.Query(context.Background(), req))
	second := collect(t, ds.Query(context.Background(), req))

	require.Len(t, first, 1)
	assert.Equal(t, model.LoadingStateDone, first[0].State)
	require.Len(t, first[0].Data, 1)
	assert.Equal(t, 61, first[0].Data[0].Length())
	assert.Equal(t, first, second)
}

func TestErrorScenarios(t *testing.T) {
	ds := New("td", "TestData", quartz.NewReal())

	resp := collect(t, ds.Query(context.Background(), request(model.Query{RefID: "A", QueryType: ScenarioError})))
	require.Len(t, resp, 1)
	assert.Equal(t, model.LoadingStateError, resp[0].State)
	assert.Equal(t, model.ErrorKindGeneric, resp[0].Error.Kind)

	resp = collect(t, ds.Query(context.Background(), request(model.Query{RefID: "A", QueryType: ScenarioTimeout})))
	require.Len(t, resp, 1)
	assert.Equal(t, model.ErrorKindTimeout, resp[0].Error.Kind)
}

func TestSlowScenarioStopsOnCancel(t *testing.T) {
	ds := New("td", "TestData", quartz.NewReal(), WithSlowDelay(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())

	ch := ds.Query(ctx, request(model.Query{RefID: "A", QueryType: ScenarioSlow}))
	cancel()

	assert.Empty(t, collect(t, ch))
}

func TestLiveStreamAccumulatesRows(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	clock := quartz.NewMock(t)
	trap := clock.Trap().NewTicker("testdata", "live")
	defer trap.Close()

	ds := New("td", "TestData", clock, WithLiveInterval(time.Second))
	req := request(model.Query{RefID: "A", Expr: "{job=\"x\"}", QueryType: ScenarioLogs})
	req.LiveStreaming = true
	ch := ds.Query(ctx, req)

	call, err := trap.Wait(ctx)
	require.NoError(t, err)
	require.NoError(t, call.Release(ctx))

	clock.Advance(time.Second).MustWait(ctx)
	first := <-ch
	clock.Advance(time.Second).MustWait(ctx)
	second := <-ch

	assert.Equal(t, model.LoadingStateStreaming, first.State)
	assert.Equal(t, 1, first.Data[0].Length())
	assert.Equal(t, 2, second.Data[0].Length())
}

func TestSupplementaryProviders(t *testing.T) {
	ds := New("td", "TestData", quartz.NewReal())

	assert.Nil(t, ds.DataProvider(model.SupplementaryLogsVolume, request(model.Query{RefID: "A"})))

	req := request(model.Query{RefID: "A", Expr: "{job=\"x\"}", QueryType: ScenarioLogs})
	provider := ds.DataProvider(model.SupplementaryLogsVolume, req)
	require.NotNil(t, provider)

	resp := collect(t, provider(context.Background()))
	require.Len(t, resp, 2)
	assert.Equal(t, model.LoadingStateLoading, resp[0].State)
	assert.Equal(t, model.LoadingStateDone, resp[1].State)
	assert.Equal(t, volumeBuckets, resp[1].Data[0].Length())

	sample := collect(t, ds.DataProvider(model.SupplementaryLogsSample, req)(context.Background()))
	assert.Equal(t, sampleLines, sample[1].Data[0].Length())
}
