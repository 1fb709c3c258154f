package pane

import (
	"explore-state-be/pkg/explore/datasource"
	"explore-state-be/pkg/explore/model"
)

// Action is a state change applied by Reduce.
type Action interface {
	paneAction()
}

type action struct{}

func (action) paneAction() {}

type Initialize struct {
	action
	Datasource  datasource.DataSource
	Queries     []model.Query
	Range       model.TimeRange
	Timezone    string
	PanelsState model.PanelsState
	// Supplementary carries the persisted enabled flags. Types that are
	// absent stay enabled.
	Supplementary map[model.SupplementaryQueryType]bool
}

type SetQueries struct {
	action
	Queries []model.Query
}

// AddQueryRow inserts Query right after the row at Index.
type AddQueryRow struct {
	action
	Index int
	Query model.Query
}

type UpdateDatasourceInstance struct {
	action
	Datasource datasource.DataSource
}

type QueriesImported struct {
	action
	Queries []model.Query
}

type ChangeRange struct {
	action
	Range model.TimeRange
}

type ChangeRefreshInterval struct {
	action
	Interval string
}

type QueryStarted struct {
	action
	Subscription Subscription
	Request      *model.QueryRequest
}

type QueryStreamUpdated struct {
	action
	Response model.PanelData
}

// QueryFinished marks the main stream as completed.
type QueryFinished struct {
	action
}

// ClearQueryResults resets the response, used when there is nothing to run.
type ClearQueryResults struct {
	action
}

type CancelQueries struct {
	action
}

type ScanStart struct {
	action
}

type ScanStop struct {
	action
}

type AddResultsToCache struct {
	action
}

type ClearCache struct {
	action
}

type SetSupplementaryEnabled struct {
	action
	Type    model.SupplementaryQueryType
	Enabled bool
}

type SetSupplementaryProvider struct {
	action
	Type     model.SupplementaryQueryType
	Provider datasource.DataProvider
}

type SetSupplementarySubscription struct {
	action
	Type         model.SupplementaryQueryType
	Subscription Subscription
}

type SupplementaryDataUpdated struct {
	action
	Type model.SupplementaryQueryType
	Data model.PanelData
}

// CleanSupplementaryQuery drops the data and subscription of a type.
type CleanSupplementaryQuery struct {
	action
	Type model.SupplementaryQueryType
}

type CleanSupplementaryProvider struct {
	action
	Type model.SupplementaryQueryType
}

type ClearLogs struct {
	action
}

type ChangePanelsState struct {
	action
	PanelsState model.PanelsState
}

type ChangeSize struct {
	action
	Width int
}

type SetDatasourceMissing struct {
	action
}
