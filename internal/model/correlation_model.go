package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Correlation struct {
	Id              uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserId          uuid.UUID      `gorm:"type:uuid;not null;index"`
	SourceUid       string         `gorm:"type:varchar(255);not null;index"`
	TargetUid       string         `gorm:"type:varchar(255);not null"`
	Label           string         `gorm:"type:varchar(255);not null"`
	Description     string         `gorm:"type:text"`
	Field           string         `gorm:"type:varchar(255)"`
	TargetQuery     datatypes.JSON `gorm:"type:jsonb"`
	Transformations datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt       time.Time      `gorm:"autoCreateTime"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime"`
	DeletedAt       gorm.DeletedAt `gorm:"index"`
}

func (Correlation) TableName() string {
	return "explore_correlations"
}
