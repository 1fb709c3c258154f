// Package testdata is a synthetic datasource. Each query picks a scenario
// through its queryType, which makes it useful both for demos and for
// driving the query pipeline in tests.
package testdata

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"time"

	"explore-state-be/pkg/explore/datasource"
	"explore-state-be/pkg/explore/model"

	"github.com/coder/quartz"
)

const PluginID = "grafana-testdata-datasource"

const (
	ScenarioRandomWalk = "random_walk"
	ScenarioLogs       = "logs"
	ScenarioNoData     = "no_data"
	ScenarioError      = "error"
	ScenarioTimeout    = "timeout"
	ScenarioSlow       = "slow"
)

const maxLiveRows = 1000

type DataSource struct {
	uid          string
	name         string
	clock        quartz.Clock
	liveInterval time.Duration
	slowDelay    time.Duration
	logLines     int
}

type Option func(*DataSource)

func WithLiveInterval(d time.Duration) Option {
	return func(ds *DataSource) { ds.liveInterval = d }
}

func WithSlowDelay(d time.Duration) Option {
	return func(ds *DataSource) { ds.slowDelay = d }
}

func WithLogLines(n int) Option {
	return func(ds *DataSource) { ds.logLines = n }
}

func New(uid, name string, clock quartz.Clock, opts ...Option) *DataSource {
	ds := &DataSource{
		uid:          uid,
		name:         name,
		clock:        clock,
		liveInterval: time.Second,
		slowDelay:    5 * time.Second,
		logLines:     20,
	}
	for _, opt := range opts {
		opt(ds)
	}
	return ds
}

func (d *DataSource) Ref() model.DataSourceRef {
	return model.DataSourceRef{UID: d.uid, Type: PluginID}
}

func (d *DataSource) Name() string {
	return d.name
}

func (d *DataSource) Meta() datasource.Meta {
	return datasource.Meta{ID: PluginID, Name: "TestData"}
}

func (d *DataSource) DefaultQuery() model.Query {
	return model.Query{QueryType: ScenarioRandomWalk}
}

// ImportQueries keeps the expression of each query and drops everything
// that only made sense to the source datasource.
func (d *DataSource) ImportQueries(ctx context.Context, queries []model.Query, from datasource.DataSource) ([]model.Query, error) {
	out := make([]model.Query, 0, len(queries))
	for _, q := range queries {
		out = append(out, model.Query{RefID: q.RefID, Expr: q.Expr, QueryType: scenarioFor(q.Expr)})
	}
	return out, nil
}

func scenarioFor(expr string) string {
	if len(expr) > 0 && expr[0] == '{' {
		return ScenarioLogs
	}
	return ScenarioRandomWalk
}

func scenario(q model.Query) string {
	if q.QueryType == "" {
		return ScenarioRandomWalk
	}
	return q.QueryType
}

func (d *DataSource) Query(ctx context.Context, req *model.QueryRequest) <-chan model.DataQueryResponse {
	out := make(chan model.DataQueryResponse, 1)

	go func() {
		defer close(out)

		if req.LiveStreaming {
			d.stream(ctx, req, out)
			return
		}
		if hasScenario(req, ScenarioSlow) {
			timer := d.clock.NewTimer(d.slowDelay, "testdata", "slow")
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
			}
		}
		send(ctx, out, d.respond(req))
	}()
	return out
}

func (d *DataSource) respond(req *model.QueryRequest) model.DataQueryResponse {
	resp := model.DataQueryResponse{Key: req.RequestID, State: model.LoadingStateDone, Data: []model.Frame{}}
	for _, q := range req.Targets {
		if q.Hide {
			continue
		}
		switch scenario(q) {
		case ScenarioLogs:
			resp.Data = append(resp.Data, d.logsFrame(q, req.Range, d.logLines))
		case ScenarioNoData:
			resp.Data = append(resp.Data, emptyFrame(q))
		case ScenarioError:
			resp.State = model.LoadingStateError
			resp.Error = &model.QueryError{Message: "testdata: scenario error", RefID: q.RefID}
		case ScenarioTimeout:
			resp.State = model.LoadingStateError
			resp.Error = &model.QueryError{Message: "testdata: request timed out", RefID: q.RefID, Kind: model.ErrorKindTimeout}
		default:
			resp.Data = append(resp.Data, randomWalk(q, req))
		}
	}
	return resp
}

func (d *DataSource) stream(ctx context.Context, req *model.QueryRequest, out chan<- model.DataQueryResponse) {
	ticker := d.clock.NewTicker(d.liveInterval, "testdata", "live")
	defer ticker.Stop()

	var rows []model.LogRow
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for _, q := range req.Targets {
				if q.Hide {
					continue
				}
				rows = append(rows, model.LogRow{
					Timestamp: now,
					Line:      fmt.Sprintf("level=info msg=%q seq=%d", q.Expr, len(rows)),
					Labels:    map[string]string{"job": "testdata"},
					RefID:     q.RefID,
				})
			}
			if len(rows) > maxLiveRows {
				rows = rows[len(rows)-maxLiveRows:]
			}
			resp := model.DataQueryResponse{
				Key:   req.RequestID,
				State: model.LoadingStateStreaming,
				Data:  []model.Frame{rowsFrame(req.Targets[0].RefID, rows)},
			}
			if !send(ctx, out, resp) {
				return
			}
		}
	}
}

func send(ctx context.Context, out chan<- model.DataQueryResponse, resp model.DataQueryResponse) bool {
	select {
	case out <- resp:
		return true
	case <-ctx.Done():
		return false
	}
}

func hasScenario(req *model.QueryRequest, s string) bool {
	for _, q := range req.Targets {
		if !q.Hide && scenario(q) == s {
			return true
		}
	}
	return false
}

func seedFor(q model.Query) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(q.RefID + "|" + q.Expr))
	return h.Sum64()
}

func randomWalk(q model.Query, req *model.QueryRequest) model.Frame {
	abs := req.Range.Absolute()
	step := req.IntervalMs
	if step <= 0 {
		step = 1000
	}
	if req.MaxDataPoints > 0 && abs.Span()/step > int64(req.MaxDataPoints) {
		step = abs.Span() / int64(req.MaxDataPoints)
	}

	rng := rand.New(rand.NewPCG(seedFor(q), uint64(abs.From)))
	times := []any{}
	values := []any{}
	value := rng.Float64() * 100
	for ts := abs.From; ts <= abs.To; ts += step {
		value += rng.Float64() - 0.5
		times = append(times, time.UnixMilli(ts).UTC())
		values = append(values, value)
	}

	return model.Frame{
		Name:  q.RefID + "-series",
		RefID: q.RefID,
		Meta:  &model.FrameMeta{PreferredVisualisationType: model.VisualisationGraph},
		Fields: []model.Field{
			{Name: "time", Type: model.FieldTypeTime, Values: times},
			{Name: "value", Type: model.FieldTypeNumber, Values: values},
		},
	}
}

func (d *DataSource) logsFrame(q model.Query, tr model.TimeRange, lines int) model.Frame {
	abs := tr.Absolute()
	rows := make([]model.LogRow, 0, lines)
	if lines > 0 {
		step := abs.Span() / int64(lines)
		for i := 0; i < lines; i++ {
			rows = append(rows, model.LogRow{
				Timestamp: time.UnixMilli(abs.To - int64(i)*step).UTC(),
				Line:      fmt.Sprintf("level=info msg=%q n=%d", q.Expr, i),
				Labels:    map[string]string{"job": "testdata", "level": "info"},
				RefID:     q.RefID,
			})
		}
	}
	return rowsFrame(q.RefID, rows)
}

func rowsFrame(refID string, rows []model.LogRow) model.Frame {
	times := make([]any, len(rows))
	lines := make([]any, len(rows))
	labels := make([]any, len(rows))
	for i, r := range rows {
		times[i] = r.Timestamp
		lines[i] = r.Line
		labels[i] = r.Labels
	}
	return model.Frame{
		RefID: refID,
		Meta:  &model.FrameMeta{PreferredVisualisationType: model.VisualisationLogs},
		Fields: []model.Field{
			{Name: "timestamp", Type: model.FieldTypeTime, Values: times},
			{Name: "body", Type: model.FieldTypeString, Values: lines},
			{Name: "labels", Type: model.FieldTypeOther, Values: labels},
		},
	}
}

func emptyFrame(q model.Query) model.Frame {
	return model.Frame{
		RefID: q.RefID,
		Fields: []model.Field{
			{Name: "time", Type: model.FieldTypeTime, Values: []any{}},
			{Name: "value", Type: model.FieldTypeNumber, Values: []any{}},
		},
	}
}
