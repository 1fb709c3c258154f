package model

import (
	"fmt"
	"strings"
	"time"
)

const AppExplore = "explore"

type QueryRequest struct {
	RequestID     string    `json:"requestId"`
	App           string    `json:"app"`
	Targets       []Query   `json:"targets"`
	Range         TimeRange `json:"range"`
	Timezone      string    `json:"timezone,omitempty"`
	Interval      string    `json:"interval"`
	IntervalMs    int64     `json:"intervalMs"`
	MaxDataPoints int       `json:"maxDataPoints"`
	LiveStreaming bool      `json:"liveStreaming,omitempty"`
	StartTime     time.Time `json:"startTime"`
}

// Clone copies the request with its own target slice.
func (r *QueryRequest) Clone() *QueryRequest {
	c := *r
	c.Targets = CloneQueries(r.Targets)
	return &c
}

type SupplementaryQueryType string

const (
	SupplementaryLogsVolume SupplementaryQueryType = "LogsVolume"
	SupplementaryLogsSample SupplementaryQueryType = "LogsSample"
)

// SupplementaryQueryTypes lists every known supplementary query type in a
// stable order.
var SupplementaryQueryTypes = []SupplementaryQueryType{
	SupplementaryLogsVolume,
	SupplementaryLogsSample,
}

// SnakeCase renders the type as used in request ids, e.g. "logs_volume".
func (t SupplementaryQueryType) SnakeCase() string {
	var b strings.Builder
	for i, r := range string(t) {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ParseSupplementaryQueryType accepts "LogsVolume" as well as
// "logs_volume".
func ParseSupplementaryQueryType(s string) (SupplementaryQueryType, error) {
	for _, t := range SupplementaryQueryTypes {
		if s == string(t) || s == t.SnakeCase() {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSupplement, s)
}

// PanelsState holds per-visualisation view state, e.g. the selected trace
// span or the logs display mode.
type PanelsState map[string]map[string]any

// Pruned drops empty values and empty panels. It returns nil when nothing
// remains.
func (p PanelsState) Pruned() PanelsState {
	out := PanelsState{}
	for panel, values := range p {
		kept := map[string]any{}
		for k, v := range values {
			if isEmptyValue(v) {
				continue
			}
			kept[k] = v
		}
		if len(kept) > 0 {
			out[panel] = kept
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func isEmptyValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case map[string]any:
		return len(t) == 0
	case []any:
		return len(t) == 0
	}
	return false
}
