package pane

import (
	"maps"

	"explore-state-be/pkg/explore/model"
	"explore-state-be/pkg/explore/querycache"
)

// Reduce returns the state after applying a. It never mutates slices or
// maps reachable from s, so earlier snapshots stay valid. Stream handles are
// stored but never released here; releasing them is the caller's job.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case Initialize:
		s.Initialized = true
		s.Datasource = a.Datasource
		s.DatasourceMissing = a.Datasource == nil
		s.Queries = a.Queries
		s.QueryKeys = QueryKeys(a.Queries)
		s.Range = a.Range
		s.AbsoluteRange = a.Range.Absolute()
		s.Timezone = a.Timezone
		s.PanelsState = a.PanelsState
		s.QueryResponse = model.EmptyPanelData()
		s.Cache = nil
		s.SupplementaryQueries = map[model.SupplementaryQueryType]SupplementaryQuery{}
		for _, t := range model.SupplementaryQueryTypes {
			enabled, ok := a.Supplementary[t]
			s.SupplementaryQueries[t] = SupplementaryQuery{Enabled: enabled || !ok}
		}

	case SetQueries:
		s.Queries = a.Queries
		s.QueryKeys = QueryKeys(a.Queries)

	case AddQueryRow:
		at := min(max(a.Index+1, 0), len(s.Queries))
		queries := make([]model.Query, 0, len(s.Queries)+1)
		queries = append(queries, s.Queries[:at]...)
		queries = append(queries, a.Query)
		queries = append(queries, s.Queries[at:]...)
		s.Queries = queries
		s.QueryKeys = QueryKeys(queries)

	case UpdateDatasourceInstance:
		s.Datasource = a.Datasource
		s.DatasourceMissing = a.Datasource == nil
		s.QueryResponse = model.EmptyPanelData()
		s.QuerySubscription = nil
		s.Loading = false
		s.IsLive = false
		s.RefreshInterval = ""
		s.ClearedRows = 0
		s.Cache = nil
		s.QueryKeys = QueryKeys(s.Queries)
		supplementary := make(map[model.SupplementaryQueryType]SupplementaryQuery, len(s.SupplementaryQueries))
		for t, sq := range s.SupplementaryQueries {
			supplementary[t] = SupplementaryQuery{Enabled: sq.Enabled}
		}
		s.SupplementaryQueries = supplementary

	case QueriesImported:
		s.Queries = a.Queries
		s.QueryKeys = QueryKeys(a.Queries)

	case ChangeRange:
		s.Range = a.Range
		s.AbsoluteRange = a.Range.Absolute()

	case ChangeRefreshInterval:
		live := a.Interval == LiveInterval
		if s.IsLive && !live {
			s.ClearedRows = 0
		}
		s.RefreshInterval = a.Interval
		s.IsLive = live

	case QueryStarted:
		s.Loading = true
		s.QuerySubscription = a.Subscription
		s.ClearedRows = 0
		s.QueryResponse.State = model.LoadingStateLoading
		s.QueryResponse.Request = a.Request

	case QueryStreamUpdated:
		resp := a.Response
		if s.IsLive && s.ClearedRows > 0 && resp.LogsResult != nil {
			logs := *resp.LogsResult
			logs.Rows = s.VisibleLogRows(logs.Rows)
			resp.LogsResult = &logs
		}
		s.QueryResponse = resp
		s.Loading = resp.State.IsLoading()

	case QueryFinished:
		s.QuerySubscription = nil
		s.Loading = false

	case ClearQueryResults:
		s.QueryResponse = model.EmptyPanelData()
		s.Loading = false

	case CancelQueries:
		s.QuerySubscription = nil
		s.Loading = false

	case ScanStart:
		s.Scanning = true

	case ScanStop:
		s.Scanning = false

	case AddResultsToCache:
		s.Cache = querycache.Put(s.Cache, s.AbsoluteRange, s.QueryResponse)

	case ClearCache:
		s.Cache = nil

	case SetSupplementaryEnabled:
		s = withSupplementary(s, a.Type, func(sq *SupplementaryQuery) {
			sq.Enabled = a.Enabled
			if !a.Enabled {
				sq.DataSubscription = nil
			}
		})

	case SetSupplementaryProvider:
		s = withSupplementary(s, a.Type, func(sq *SupplementaryQuery) {
			sq.DataProvider = a.Provider
		})

	case SetSupplementarySubscription:
		s = withSupplementary(s, a.Type, func(sq *SupplementaryQuery) {
			sq.DataSubscription = a.Subscription
		})

	case SupplementaryDataUpdated:
		data := a.Data
		s = withSupplementary(s, a.Type, func(sq *SupplementaryQuery) {
			sq.Data = &data
		})

	case CleanSupplementaryQuery:
		s = withSupplementary(s, a.Type, func(sq *SupplementaryQuery) {
			sq.Data = nil
			sq.DataSubscription = nil
		})

	case CleanSupplementaryProvider:
		s = withSupplementary(s, a.Type, func(sq *SupplementaryQuery) {
			sq.DataProvider = nil
		})

	case ClearLogs:
		if s.QueryResponse.LogsResult == nil {
			return s
		}
		s.ClearedRows += len(s.QueryResponse.LogsResult.Rows)
		logs := *s.QueryResponse.LogsResult
		logs.Rows = []model.LogRow{}
		s.QueryResponse.LogsResult = &logs

	case ChangePanelsState:
		s.PanelsState = a.PanelsState

	case ChangeSize:
		s.ContainerWidth = a.Width

	case SetDatasourceMissing:
		s.Datasource = nil
		s.DatasourceMissing = true
	}
	return s
}

func withSupplementary(s State, t model.SupplementaryQueryType, fn func(*SupplementaryQuery)) State {
	supplementary := maps.Clone(s.SupplementaryQueries)
	if supplementary == nil {
		supplementary = map[model.SupplementaryQueryType]SupplementaryQuery{}
	}
	sq := supplementary[t]
	fn(&sq)
	supplementary[t] = sq
	s.SupplementaryQueries = supplementary
	return s
}
