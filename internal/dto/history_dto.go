package dto

import (
	"time"

	"explore-state-be/pkg/explore/model"

	"github.com/google/uuid"
)

// PublishHistoryMessage is queued on the history topic and persisted by the
// consumer.
type PublishHistoryMessage struct {
	UserId         uuid.UUID     `json:"user_id"`
	OrgId          int64         `json:"org_id"`
	DatasourceUid  string        `json:"datasource_uid"`
	DatasourceType string        `json:"datasource_type"`
	DatasourceName string        `json:"datasource_name"`
	Queries        []model.Query `json:"queries"`
	Starred        bool          `json:"starred"`
	CreatedAt      time.Time     `json:"created_at"`
}

type HistoryListRequest struct {
	DatasourceUID string `query:"datasourceUid"`
	Search        string `query:"search"`
	Starred       bool   `query:"starred"`
	Page          int    `query:"page" validate:"min=0"`
	Limit         int    `query:"limit" validate:"min=0,max=100"`
}

type HistoryEntryResponse struct {
	Id             uuid.UUID     `json:"id"`
	DatasourceUid  string        `json:"datasourceUid"`
	DatasourceType string        `json:"datasourceType"`
	DatasourceName string        `json:"datasourceName"`
	Queries        []model.Query `json:"queries"`
	Starred        bool          `json:"starred"`
	CreatedAt      time.Time     `json:"createdAt"`
}

type HistoryListResponse struct {
	Items []HistoryEntryResponse `json:"items"`
	Total int64                  `json:"total"`
	Page  int                    `json:"page"`
	Limit int                    `json:"limit"`
}

type StarHistoryRequest struct {
	Starred bool `json:"starred"`
}
