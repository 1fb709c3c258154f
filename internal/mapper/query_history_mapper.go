package mapper

import (
	"explore-state-be/internal/entity"
	"explore-state-be/internal/model"

	"gorm.io/datatypes"
)

type QueryHistoryMapper struct{}

func NewQueryHistoryMapper() *QueryHistoryMapper {
	return &QueryHistoryMapper{}
}

func (m *QueryHistoryMapper) ToEntity(h *model.QueryHistory) *entity.QueryHistory {
	if h == nil {
		return nil
	}
	return &entity.QueryHistory{
		Id:             h.Id,
		UserId:         h.UserId,
		OrgId:          h.OrgId,
		DatasourceUid:  h.DatasourceUid,
		DatasourceType: h.DatasourceType,
		DatasourceName: h.DatasourceName,
		Queries:        []byte(h.Queries),
		Starred:        h.Starred,
		CreatedAt:      h.CreatedAt,
	}
}

func (m *QueryHistoryMapper) ToModel(h *entity.QueryHistory) *model.QueryHistory {
	if h == nil {
		return nil
	}
	return &model.QueryHistory{
		Id:             h.Id,
		UserId:         h.UserId,
		OrgId:          h.OrgId,
		DatasourceUid:  h.DatasourceUid,
		DatasourceType: h.DatasourceType,
		DatasourceName: h.DatasourceName,
		Queries:        datatypes.JSON(h.Queries),
		Starred:        h.Starred,
		CreatedAt:      h.CreatedAt,
	}
}

func (m *QueryHistoryMapper) ToEntities(rows []*model.QueryHistory) []*entity.QueryHistory {
	entities := make([]*entity.QueryHistory, len(rows))
	for i, h := range rows {
		entities[i] = m.ToEntity(h)
	}
	return entities
}
