package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type QueryHistory struct {
	Id             uuid.UUID
	UserId         uuid.UUID
	OrgId          int64
	DatasourceUid  string
	DatasourceType string
	DatasourceName string
	Queries        json.RawMessage
	Starred        bool
	CreatedAt      time.Time
}
