package specification

import (
	"time"

	"gorm.io/gorm"
)

type ByDatasourceUID struct {
	UID string
}

func (s ByDatasourceUID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("datasource_uid = ?", s.UID)
}

type StarredOnly struct{}

func (s StarredOnly) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("starred = ?", true)
}

// CreatedBefore matches rows older than Time.
type CreatedBefore struct {
	Time time.Time
}

func (s CreatedBefore) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("created_at < ?", s.Time)
}

type BySourceUID struct {
	UID string
}

func (s BySourceUID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("source_uid = ?", s.UID)
}

// HistorySearch matches entries whose queries contain Query, case-insensitive.
type HistorySearch struct {
	Query string
}

func (s HistorySearch) Apply(db *gorm.DB) *gorm.DB {
	pattern := "%" + s.Query + "%"
	return db.Where("queries::text ILIKE ?", pattern)
}
