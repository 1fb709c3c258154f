package dto

import (
	"time"

	"explore-state-be/pkg/explore/correlation"
	"explore-state-be/pkg/explore/model"
)

type CreateSessionRequest struct {
	// URL is the address bar query string the session starts from.
	URL   string `json:"url"`
	OrgID int64  `json:"orgId" validate:"min=0"`
}

type NavigateRequest struct {
	URL string `json:"url"`
}

type SplitOpenRequest struct {
	Origin      string              `json:"origin"`
	Datasource  string              `json:"datasource"`
	Queries     []model.Query       `json:"queries"`
	Range       *model.RawTimeRange `json:"range"`
	PanelsState model.PanelsState   `json:"panelsState"`
}

type PaneRefRequest struct {
	Pane string `json:"pane" validate:"required"`
}

type ChangeRangeRequest struct {
	From string `json:"from" validate:"required"`
	To   string `json:"to" validate:"required"`
}

type ChangeQueriesRequest struct {
	Queries []model.Query `json:"queries" validate:"required"`
	// Run commits the queries and runs them; otherwise they are only edited.
	Run bool `json:"run"`
}

type AddQueryRowRequest struct {
	Index int `json:"index" validate:"min=0"`
}

type ChangeDatasourceRequest struct {
	UID           string `json:"uid" validate:"required"`
	ImportQueries bool   `json:"importQueries"`
}

type ChangeRefreshRequest struct {
	Interval string `json:"interval"`
}

type SupplementaryToggleRequest struct {
	Enabled bool `json:"enabled"`
}

type ShiftTimeRequest struct {
	Direction int `json:"direction" validate:"oneof=-1 1"`
}

type ZoomOutRequest struct {
	Factor float64 `json:"factor" validate:"omitempty,gte=1"`
}

type PanelsStateRequest struct {
	PanelsState model.PanelsState `json:"panelsState"`
}

type StartCorrelationRequest struct {
	Draft correlation.Draft `json:"draft"`
	// Edit marks the draft as an existing correlation being edited.
	Edit bool `json:"edit"`
}

type CorrelationDirtyRequest struct {
	CorrelationDirty bool `json:"correlationDirty"`
	QueryEditorDirty bool `json:"queryEditorDirty"`
}

type ResolveCorrelationRequest struct {
	Resolution string `json:"resolution" validate:"required,oneof=cancel continue discard save"`
}

type DatasourceResponse struct {
	UID   string `json:"uid"`
	Type  string `json:"type"`
	Name  string `json:"name"`
	Mixed bool   `json:"mixed,omitempty"`
}

type SupplementaryResponse struct {
	Enabled bool             `json:"enabled"`
	Data    *model.PanelData `json:"data,omitempty"`
}

type PaneResponse struct {
	Key               string                                                `json:"key"`
	Datasource        *DatasourceResponse                                   `json:"datasource,omitempty"`
	DatasourceMissing bool                                                  `json:"datasourceMissing,omitempty"`
	Queries           []model.Query                                         `json:"queries"`
	QueryKeys         []string                                              `json:"queryKeys"`
	Range             model.TimeRange                                       `json:"range"`
	AbsoluteRange     model.AbsoluteTimeRange                               `json:"absoluteRange"`
	Timezone          string                                                `json:"timezone"`
	RefreshInterval   string                                                `json:"refreshInterval,omitempty"`
	IsLive            bool                                                  `json:"isLive"`
	Scanning          bool                                                  `json:"scanning"`
	Loading           bool                                                  `json:"loading"`
	QueryResponse     model.PanelData                                       `json:"queryResponse"`
	Supplementary     map[model.SupplementaryQueryType]SupplementaryResponse `json:"supplementaryQueries"`
	PanelsState       model.PanelsState                                     `json:"panelsState,omitempty"`
	CachedRanges      int                                                   `json:"cachedRanges"`
}

type SessionResponse struct {
	ID          string              `json:"id"`
	UserID      string              `json:"userId"`
	CreatedAt   time.Time           `json:"createdAt"`
	URL         string              `json:"url"`
	SyncedTimes bool                `json:"syncedTimes"`
	LargerPane  string              `json:"largerPane,omitempty"`
	Panes       []PaneResponse      `json:"panes"`
	Correlation correlation.Session `json:"correlation"`
}

// CommandResponse is returned by commands a correlation editor may
// intercept. Prompt is set when the command was parked.
type CommandResponse struct {
	Prompt  *correlation.Prompt `json:"prompt,omitempty"`
	Session *SessionResponse    `json:"session"`
}

type SplitOpenResponse struct {
	PaneKey string           `json:"paneKey"`
	Session *SessionResponse `json:"session"`
}

type AddQueryRowResponse struct {
	Query   model.Query      `json:"query"`
	Session *SessionResponse `json:"session"`
}

// StreamMessage is what the session websocket receives.
type StreamMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type LocationMessage struct {
	URL  string `json:"url"`
	Mode string `json:"mode"`
}

type CorrelationResponse struct {
	Id              string                       `json:"id"`
	SourceUid       string                       `json:"sourceUid"`
	TargetUid       string                       `json:"targetUid"`
	Label           string                       `json:"label"`
	Description     string                       `json:"description,omitempty"`
	Field           string                       `json:"field"`
	TargetQuery     *model.Query                 `json:"targetQuery,omitempty"`
	Transformations []correlation.Transformation `json:"transformations,omitempty"`
	CreatedAt       time.Time                    `json:"createdAt"`
}
