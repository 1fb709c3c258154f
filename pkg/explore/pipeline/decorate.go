package pipeline

import (
	"time"

	"explore-state-be/pkg/explore/model"
)

// Decorate turns a raw emission into panel data with series bucketed by the
// visualisation that renders them and log rows extracted.
func Decorate(resp model.DataQueryResponse, req *model.QueryRequest) model.PanelData {
	state := resp.State
	if state == "" {
		state = model.LoadingStateDone
		if resp.Error != nil {
			state = model.LoadingStateError
		}
	}

	data := model.PanelData{State: state, Series: resp.Data, Error: resp.Error, Request: req}
	if data.Series == nil {
		data.Series = []model.Frame{}
	}
	if req != nil {
		data.TimeRange = req.Range
	}

	for _, f := range data.Series {
		switch classify(f) {
		case model.VisualisationGraph:
			data.GraphFrames = append(data.GraphFrames, f)
			data.TableFrames = append(data.TableFrames, f)
		case model.VisualisationLogs:
			data.LogsFrames = append(data.LogsFrames, f)
		case model.VisualisationTrace:
			data.TraceFrames = append(data.TraceFrames, f)
		case model.VisualisationNodeGraph:
			data.NodeGraphFrames = append(data.NodeGraphFrames, f)
		case model.VisualisationFlameGraph:
			data.FlameGraphFrames = append(data.FlameGraphFrames, f)
		case model.VisualisationRawPrometheus:
			data.RawPrometheusFrames = append(data.RawPrometheusFrames, f)
			data.TableFrames = append(data.TableFrames, f)
		default:
			data.TableFrames = append(data.TableFrames, f)
		}
	}
	if len(data.LogsFrames) > 0 {
		data.LogsResult = &model.LogsResult{Rows: logRows(data.LogsFrames)}
	}
	return data
}

func classify(f model.Frame) model.VisualisationType {
	if f.Meta != nil && f.Meta.PreferredVisualisationType != "" {
		return f.Meta.PreferredVisualisationType
	}

	var hasTime, hasNumber, hasString, hasTraceID bool
	for _, field := range f.Fields {
		switch field.Type {
		case model.FieldTypeTime:
			hasTime = true
		case model.FieldTypeNumber:
			hasNumber = true
		case model.FieldTypeString:
			hasString = true
		}
		if field.Name == "traceID" || field.Name == "traceId" {
			hasTraceID = true
		}
	}
	switch {
	case hasTraceID && !hasTime:
		return model.VisualisationTrace
	case hasTime && hasNumber:
		return model.VisualisationGraph
	case hasTime && hasString:
		return model.VisualisationLogs
	}
	return model.VisualisationTable
}

func logRows(frames []model.Frame) []model.LogRow {
	var rows []model.LogRow
	for _, f := range frames {
		timeIdx, lineIdx, labelsIdx := -1, -1, -1
		for i, field := range f.Fields {
			switch {
			case field.Type == model.FieldTypeTime && timeIdx < 0:
				timeIdx = i
			case field.Name == "body" || field.Name == "line" || field.Name == "Line":
				lineIdx = i
			case field.Name == "labels":
				labelsIdx = i
			case field.Type == model.FieldTypeString && lineIdx < 0:
				lineIdx = i
			}
		}
		if lineIdx < 0 {
			continue
		}

		lineField := f.Fields[lineIdx]
		for i, v := range lineField.Values {
			row := model.LogRow{RefID: f.RefID, Labels: lineField.Labels}
			row.Line, _ = v.(string)
			if timeIdx >= 0 && i < len(f.Fields[timeIdx].Values) {
				row.Timestamp, _ = f.Fields[timeIdx].Values[i].(time.Time)
			}
			if labelsIdx >= 0 && i < len(f.Fields[labelsIdx].Values) {
				if labels := toLabels(f.Fields[labelsIdx].Values[i]); labels != nil {
					row.Labels = labels
				}
			}
			rows = append(rows, row)
		}
	}
	return rows
}

func toLabels(v any) map[string]string {
	switch t := v.(type) {
	case map[string]string:
		return t
	case map[string]any:
		out := make(map[string]string, len(t))
		for k, val := range t {
			if s, ok := val.(string); ok {
				out[k] = s
			}
		}
		return out
	}
	return nil
}
