package datasource

import (
	"context"
	"fmt"

	"explore-state-be/pkg/explore/model"

	"golang.org/x/sync/errgroup"
)

// Mixed fans a request out to the datasource of each query and merges the
// resulting streams into one.
type Mixed struct {
	registry Registry
}

func NewMixed(registry Registry) *Mixed {
	return &Mixed{registry: registry}
}

func (m *Mixed) Ref() model.DataSourceRef {
	return model.DataSourceRef{UID: MixedUID, Type: MixedType}
}

func (m *Mixed) Name() string {
	return MixedUID
}

func (m *Mixed) Meta() Meta {
	return Meta{ID: MixedType, Name: "Mixed", Mixed: true}
}

type queryGroup struct {
	ref     *model.DataSourceRef
	targets []model.Query
}

func groupTargets(targets []model.Query) []queryGroup {
	var groups []queryGroup
	index := map[string]int{}
	for _, q := range targets {
		uid := q.DatasourceUID()
		i, ok := index[uid]
		if !ok {
			i = len(groups)
			index[uid] = i
			groups = append(groups, queryGroup{ref: q.Datasource})
		}
		groups[i].targets = append(groups[i].targets, q)
	}
	return groups
}

type groupUpdate struct {
	index int
	resp  model.DataQueryResponse
}

func (m *Mixed) Query(ctx context.Context, req *model.QueryRequest) <-chan model.DataQueryResponse {
	out := make(chan model.DataQueryResponse)

	go func() {
		defer close(out)

		groups := groupTargets(req.Targets)
		latest := make([]*model.DataQueryResponse, len(groups))
		updates := make(chan groupUpdate)

		var g errgroup.Group
		for i, grp := range groups {
			ds, err := m.registry.GetByRef(ctx, grp.ref)
			if err != nil {
				latest[i] = &model.DataQueryResponse{
					State: model.LoadingStateError,
					Error: &model.QueryError{Message: err.Error(), RefID: grp.targets[0].RefID},
				}
				continue
			}

			sub := req.Clone()
			sub.Targets = grp.targets
			sub.RequestID = fmt.Sprintf("%s_%d", req.RequestID, i)
			g.Go(func() error {
				for resp := range ds.Query(ctx, sub) {
					select {
					case updates <- groupUpdate{index: i, resp: resp}:
					case <-ctx.Done():
						return nil
					}
				}
				return nil
			})
		}
		go func() {
			_ = g.Wait()
			close(updates)
		}()

		emitted := false
		for u := range updates {
			resp := u.resp
			latest[u.index] = &resp
			emitted = true
			select {
			case out <- mergeResponses(latest):
			case <-ctx.Done():
			}
		}
		if !emitted {
			select {
			case out <- mergeResponses(latest):
			case <-ctx.Done():
			}
		}
	}()
	return out
}

func mergeResponses(latest []*model.DataQueryResponse) model.DataQueryResponse {
	merged := model.DataQueryResponse{State: model.LoadingStateDone}
	for _, r := range latest {
		if r == nil {
			merged.State = model.LoadingStateLoading
			continue
		}
		merged.Data = append(merged.Data, r.Data...)
		if r.Error != nil && merged.Error == nil {
			merged.Error = r.Error
		}
		switch {
		case r.State == model.LoadingStateLoading:
			merged.State = model.LoadingStateLoading
		case r.State == model.LoadingStateStreaming && merged.State != model.LoadingStateLoading:
			merged.State = model.LoadingStateStreaming
		}
	}
	if merged.Error != nil && merged.State == model.LoadingStateDone {
		merged.State = model.LoadingStateError
	}
	return merged
}
