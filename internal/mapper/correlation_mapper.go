package mapper

import (
	"time"

	"explore-state-be/internal/entity"
	"explore-state-be/internal/model"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type CorrelationMapper struct{}

func NewCorrelationMapper() *CorrelationMapper {
	return &CorrelationMapper{}
}

func (m *CorrelationMapper) ToEntity(c *model.Correlation) *entity.Correlation {
	if c == nil {
		return nil
	}
	var deletedAt *time.Time
	if c.DeletedAt.Valid {
		t := c.DeletedAt.Time
		deletedAt = &t
	}
	var updatedAt *time.Time
	if !c.UpdatedAt.IsZero() {
		t := c.UpdatedAt
		updatedAt = &t
	}

	return &entity.Correlation{
		Id:              c.Id,
		UserId:          c.UserId,
		SourceUid:       c.SourceUid,
		TargetUid:       c.TargetUid,
		Label:           c.Label,
		Description:     c.Description,
		Field:           c.Field,
		TargetQuery:     []byte(c.TargetQuery),
		Transformations: []byte(c.Transformations),
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       updatedAt,
		DeletedAt:       deletedAt,
		IsDeleted:       c.DeletedAt.Valid,
	}
}

func (m *CorrelationMapper) ToModel(c *entity.Correlation) *model.Correlation {
	if c == nil {
		return nil
	}
	var deletedAt gorm.DeletedAt
	if c.DeletedAt != nil {
		deletedAt = gorm.DeletedAt{Time: *c.DeletedAt, Valid: true}
	}
	var updatedAt time.Time
	if c.UpdatedAt != nil {
		updatedAt = *c.UpdatedAt
	}

	return &model.Correlation{
		Id:              c.Id,
		UserId:          c.UserId,
		SourceUid:       c.SourceUid,
		TargetUid:       c.TargetUid,
		Label:           c.Label,
		Description:     c.Description,
		Field:           c.Field,
		TargetQuery:     datatypes.JSON(c.TargetQuery),
		Transformations: datatypes.JSON(c.Transformations),
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       updatedAt,
		DeletedAt:       deletedAt,
	}
}

func (m *CorrelationMapper) ToEntities(rows []*model.Correlation) []*entity.Correlation {
	entities := make([]*entity.Correlation, len(rows))
	for i, c := range rows {
		entities[i] = m.ToEntity(c)
	}
	return entities
}
