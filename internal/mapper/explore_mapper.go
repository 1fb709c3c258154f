package mapper

import (
	"encoding/json"

	"explore-state-be/internal/dto"
	"explore-state-be/internal/entity"
	"explore-state-be/pkg/explore/datasource"
	"explore-state-be/pkg/explore/model"
	"explore-state-be/pkg/explore/orchestrator"
	"explore-state-be/pkg/explore/pane"
	"explore-state-be/pkg/explore/session"
)

type ExploreMapper struct{}

func NewExploreMapper() *ExploreMapper {
	return &ExploreMapper{}
}

func (m *ExploreMapper) ToSessionResponse(s *session.Session) *dto.SessionResponse {
	snap := s.Orchestrator.Snapshot()
	return m.FromSnapshot(s, snap)
}

func (m *ExploreMapper) FromSnapshot(s *session.Session, snap orchestrator.Snapshot) *dto.SessionResponse {
	panes := make([]dto.PaneResponse, len(snap.Panes))
	for i, p := range snap.Panes {
		panes[i] = m.ToPaneResponse(p)
	}
	return &dto.SessionResponse{
		ID:          s.ID,
		UserID:      s.UserID,
		CreatedAt:   s.CreatedAt,
		URL:         s.Location.Current(),
		SyncedTimes: snap.SyncedTimes,
		LargerPane:  snap.LargerPane,
		Panes:       panes,
		Correlation: snap.Correlation,
	}
}

func (m *ExploreMapper) ToPaneResponse(p pane.State) dto.PaneResponse {
	res := dto.PaneResponse{
		Key:               p.Key,
		DatasourceMissing: p.DatasourceMissing,
		Queries:           model.CloneQueries(p.Queries),
		QueryKeys:         append([]string(nil), p.QueryKeys...),
		Range:             p.Range,
		AbsoluteRange:     p.AbsoluteRange,
		Timezone:          p.Timezone,
		RefreshInterval:   p.RefreshInterval,
		IsLive:            p.IsLive,
		Scanning:          p.Scanning,
		Loading:           p.Loading,
		QueryResponse:     p.QueryResponse,
		Supplementary:     make(map[model.SupplementaryQueryType]dto.SupplementaryResponse, len(p.SupplementaryQueries)),
		PanelsState:       p.PanelsState,
		CachedRanges:      len(p.Cache),
	}
	if p.Datasource != nil {
		ref := p.Datasource.Ref()
		res.Datasource = &dto.DatasourceResponse{
			UID:   ref.UID,
			Type:  ref.Type,
			Name:  p.Datasource.Name(),
			Mixed: datasource.IsMixed(p.Datasource),
		}
	}
	for t, sq := range p.SupplementaryQueries {
		res.Supplementary[t] = dto.SupplementaryResponse{Enabled: sq.Enabled, Data: sq.Data}
	}
	return res
}

func (m *ExploreMapper) ToHistoryResponse(h *entity.QueryHistory) dto.HistoryEntryResponse {
	res := dto.HistoryEntryResponse{
		Id:             h.Id,
		DatasourceUid:  h.DatasourceUid,
		DatasourceType: h.DatasourceType,
		DatasourceName: h.DatasourceName,
		Starred:        h.Starred,
		CreatedAt:      h.CreatedAt,
	}
	// Rows written by older builds may hold malformed json; show them empty.
	_ = json.Unmarshal(h.Queries, &res.Queries)
	return res
}

func (m *ExploreMapper) ToHistoryResponses(rows []*entity.QueryHistory) []dto.HistoryEntryResponse {
	out := make([]dto.HistoryEntryResponse, len(rows))
	for i, h := range rows {
		out[i] = m.ToHistoryResponse(h)
	}
	return out
}
