package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type QueryHistory struct {
	Id             uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserId         uuid.UUID      `gorm:"type:uuid;not null;index:idx_query_history_user_created,priority:1"`
	OrgId          int64          `gorm:"not null;default:0"`
	DatasourceUid  string         `gorm:"type:varchar(255);not null;index"`
	DatasourceType string         `gorm:"type:varchar(255)"`
	DatasourceName string         `gorm:"type:varchar(255)"`
	Queries        datatypes.JSON `gorm:"type:jsonb;not null"`
	Starred        bool           `gorm:"not null;default:false"`
	CreatedAt      time.Time      `gorm:"autoCreateTime;index:idx_query_history_user_created,priority:2,sort:desc"`
}

func (QueryHistory) TableName() string {
	return "explore_query_history"
}
