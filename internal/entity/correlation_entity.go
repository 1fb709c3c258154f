package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Correlation struct {
	Id              uuid.UUID
	UserId          uuid.UUID
	SourceUid       string
	TargetUid       string
	Label           string
	Description     string
	Field           string
	TargetQuery     json.RawMessage
	Transformations json.RawMessage
	CreatedAt       time.Time
	UpdatedAt       *time.Time
	DeletedAt       *time.Time
	IsDeleted       bool
}
