package testdata

import (
	"context"
	"time"

	"explore-state-be/pkg/explore/datasource"
	"explore-state-be/pkg/explore/model"
)

const (
	volumeBuckets = 10
	sampleLines   = 5
)

func (d *DataSource) SupportedSupplementaryQueryTypes() []model.SupplementaryQueryType {
	return []model.SupplementaryQueryType{model.SupplementaryLogsVolume, model.SupplementaryLogsSample}
}

// DataProvider derives volume and sample queries from the logs queries of
// req. Requests without logs queries get no provider.
func (d *DataSource) DataProvider(t model.SupplementaryQueryType, req *model.QueryRequest) datasource.DataProvider {
	var logs []model.Query
	for _, q := range req.Targets {
		if !q.Hide && scenario(q) == ScenarioLogs {
			logs = append(logs, q)
		}
	}
	if len(logs) == 0 {
		return nil
	}

	req = req.Clone()
	switch t {
	case model.SupplementaryLogsVolume:
		return func(ctx context.Context) <-chan model.DataQueryResponse {
			return d.emit(ctx, req, func() []model.Frame {
				frames := make([]model.Frame, 0, len(logs))
				for _, q := range logs {
					frames = append(frames, volumeFrame(q, req.Range.Absolute(), d.logLines))
				}
				return frames
			})
		}
	case model.SupplementaryLogsSample:
		return func(ctx context.Context) <-chan model.DataQueryResponse {
			return d.emit(ctx, req, func() []model.Frame {
				frames := make([]model.Frame, 0, len(logs))
				for _, q := range logs {
					frames = append(frames, d.logsFrame(q, req.Range, min(sampleLines, d.logLines)))
				}
				return frames
			})
		}
	}
	return nil
}

// emit sends a Loading response followed by the Done payload.
func (d *DataSource) emit(ctx context.Context, req *model.QueryRequest, build func() []model.Frame) <-chan model.DataQueryResponse {
	out := make(chan model.DataQueryResponse, 2)
	go func() {
		defer close(out)
		if !send(ctx, out, model.DataQueryResponse{Key: req.RequestID, State: model.LoadingStateLoading}) {
			return
		}
		send(ctx, out, model.DataQueryResponse{Key: req.RequestID, State: model.LoadingStateDone, Data: build()})
	}()
	return out
}

func volumeFrame(q model.Query, abs model.AbsoluteTimeRange, lines int) model.Frame {
	step := abs.Span() / volumeBuckets
	times := make([]any, volumeBuckets)
	counts := make([]any, volumeBuckets)
	for i := 0; i < volumeBuckets; i++ {
		times[i] = time.UnixMilli(abs.From + int64(i)*step).UTC()
		counts[i] = float64(lines / volumeBuckets)
	}
	return model.Frame{
		Name:  "logs volume",
		RefID: q.RefID,
		Meta: &model.FrameMeta{
			PreferredVisualisationType: model.VisualisationGraph,
			Custom:                     map[string]any{"sourceQuery": q.RefID},
		},
		Fields: []model.Field{
			{Name: "time", Type: model.FieldTypeTime, Values: times},
			{Name: "count", Type: model.FieldTypeNumber, Values: counts, Labels: map[string]string{"level": "info"}},
		},
	}
}
