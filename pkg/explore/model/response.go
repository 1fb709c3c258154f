package model

import (
	"time"
)

type LoadingState string

const (
	LoadingStateNotStarted LoadingState = "NotStarted"
	LoadingStateLoading    LoadingState = "Loading"
	LoadingStateStreaming  LoadingState = "Streaming"
	LoadingStateDone       LoadingState = "Done"
	LoadingStateError      LoadingState = "Error"
)

func (s LoadingState) IsTerminal() bool {
	return s == LoadingStateDone || s == LoadingStateError
}

func (s LoadingState) IsLoading() bool {
	return s == LoadingStateLoading || s == LoadingStateStreaming
}

type ErrorKind string

const (
	ErrorKindGeneric   ErrorKind = ""
	ErrorKindCancelled ErrorKind = "cancelled"
	ErrorKindTimeout   ErrorKind = "timeout"
)

type QueryError struct {
	Message string    `json:"message"`
	RefID   string    `json:"refId,omitempty"`
	Status  int       `json:"status,omitempty"`
	Kind    ErrorKind `json:"kind,omitempty"`
}

func (e *QueryError) Error() string {
	return e.Message
}

type FieldType string

const (
	FieldTypeTime   FieldType = "time"
	FieldTypeNumber FieldType = "number"
	FieldTypeString FieldType = "string"
	FieldTypeOther  FieldType = "other"
)

type Field struct {
	Name   string            `json:"name"`
	Type   FieldType         `json:"type"`
	Values []any             `json:"values"`
	Labels map[string]string `json:"labels,omitempty"`
}

type VisualisationType string

const (
	VisualisationGraph         VisualisationType = "graph"
	VisualisationTable         VisualisationType = "table"
	VisualisationLogs          VisualisationType = "logs"
	VisualisationTrace         VisualisationType = "trace"
	VisualisationNodeGraph     VisualisationType = "nodeGraph"
	VisualisationFlameGraph    VisualisationType = "flamegraph"
	VisualisationRawPrometheus VisualisationType = "rawPrometheus"
)

type FrameMeta struct {
	PreferredVisualisationType VisualisationType `json:"preferredVisualisationType,omitempty"`
	Custom                     map[string]any    `json:"custom,omitempty"`
}

// Frame is a columnar result set.
type Frame struct {
	Name   string     `json:"name,omitempty"`
	RefID  string     `json:"refId,omitempty"`
	Meta   *FrameMeta `json:"meta,omitempty"`
	Fields []Field    `json:"fields"`
}

// Length is the row count of the frame.
func (f Frame) Length() int {
	if len(f.Fields) == 0 {
		return 0
	}
	return len(f.Fields[0].Values)
}

// DataQueryResponse is a single emission of a datasource stream.
type DataQueryResponse struct {
	Key   string       `json:"key,omitempty"`
	State LoadingState `json:"state"`
	Data  []Frame      `json:"data"`
	Error *QueryError  `json:"error,omitempty"`
}

type LogRow struct {
	Timestamp time.Time         `json:"timestamp"`
	Line      string            `json:"line"`
	Labels    map[string]string `json:"labels,omitempty"`
	RefID     string            `json:"refId,omitempty"`
}

type LogsResult struct {
	Rows []LogRow `json:"rows"`
}

// PanelData is a response decorated for display: series are bucketed by the
// visualisation that renders them.
type PanelData struct {
	State     LoadingState  `json:"state"`
	Series    []Frame       `json:"series"`
	Error     *QueryError   `json:"error,omitempty"`
	Request   *QueryRequest `json:"request,omitempty"`
	TimeRange TimeRange     `json:"timeRange"`

	GraphFrames         []Frame     `json:"graphFrames,omitempty"`
	TableFrames         []Frame     `json:"tableFrames,omitempty"`
	LogsFrames          []Frame     `json:"logsFrames,omitempty"`
	TraceFrames         []Frame     `json:"traceFrames,omitempty"`
	NodeGraphFrames     []Frame     `json:"nodeGraphFrames,omitempty"`
	FlameGraphFrames    []Frame     `json:"flameGraphFrames,omitempty"`
	RawPrometheusFrames []Frame     `json:"rawPrometheusFrames,omitempty"`
	LogsResult          *LogsResult `json:"logsResult,omitempty"`
}

func EmptyPanelData() PanelData {
	return PanelData{State: LoadingStateNotStarted}
}

// HasResults reports whether any series carries at least one row.
func (p PanelData) HasResults() bool {
	for _, f := range p.Series {
		if f.Length() > 0 {
			return true
		}
	}
	return false
}
