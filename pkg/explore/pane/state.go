// Package pane holds the state of a single explore pane and the pure
// reducer that applies actions to it.
package pane

import (
	"fmt"

	"explore-state-be/pkg/explore/datasource"
	"explore-state-be/pkg/explore/model"
	"explore-state-be/pkg/explore/querycache"
)

// LiveInterval is the refresh interval that turns a pane into a live tail.
const LiveInterval = "LIVE"

// Subscription is a handle on a running stream.
type Subscription interface {
	Unsubscribe()
}

type SupplementaryQuery struct {
	Enabled          bool
	Data             *model.PanelData
	DataProvider     datasource.DataProvider
	DataSubscription Subscription
}

type State struct {
	Key               string
	Initialized       bool
	Datasource        datasource.DataSource
	DatasourceMissing bool

	Queries   []model.Query
	QueryKeys []string

	Range         model.TimeRange
	AbsoluteRange model.AbsoluteTimeRange
	Timezone      string

	RefreshInterval string
	IsLive          bool
	Scanning        bool
	Loading         bool

	QueryResponse     model.PanelData
	QuerySubscription Subscription
	Cache             []querycache.Entry

	SupplementaryQueries map[model.SupplementaryQueryType]SupplementaryQuery

	PanelsState    model.PanelsState
	ContainerWidth int
	// ClearedRows is the number of leading log rows hidden by ClearLogs.
	ClearedRows int
}

func New(key string) State {
	s := State{
		Key:                  key,
		QueryResponse:        model.EmptyPanelData(),
		SupplementaryQueries: map[model.SupplementaryQueryType]SupplementaryQuery{},
	}
	for _, t := range model.SupplementaryQueryTypes {
		s.SupplementaryQueries[t] = SupplementaryQuery{Enabled: true}
	}
	return s
}

// QueryKeys derives a stable identity per query row from the datasource uid
// or the query key, plus the row index.
func QueryKeys(queries []model.Query) []string {
	keys := make([]string, len(queries))
	for i, q := range queries {
		primary := q.DatasourceUID()
		if primary == "" {
			primary = q.Key
		}
		keys[i] = fmt.Sprintf("%s-%d", primary, i)
	}
	return keys
}

// RequestID is the id of the main query request of the pane.
func RequestID(key string) string {
	return "explore_" + key
}

// Runnable reports why the pane cannot run, or nil.
func (s State) Runnable() error {
	if s.DatasourceMissing || s.Datasource == nil {
		return model.ErrDatasourceMissing
	}
	return nil
}

// VisibleLogRows applies ClearLogs to rows.
func (s State) VisibleLogRows(rows []model.LogRow) []model.LogRow {
	if s.ClearedRows <= 0 {
		return rows
	}
	if s.ClearedRows >= len(rows) {
		return []model.LogRow{}
	}
	return rows[s.ClearedRows:]
}
