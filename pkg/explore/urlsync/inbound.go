package urlsync

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"explore-state-be/internal/pkg/logger"
	"explore-state-be/pkg/explore/datasource"
	"explore-state-be/pkg/explore/model"
	"explore-state-be/pkg/explore/orchestrator"
	"explore-state-be/pkg/explore/pane"
)

const inboundModule = "URLSYNC"

// Inbound applies address bar states to an orchestrator.
type Inbound struct {
	orch   *orchestrator.Orchestrator
	logger logger.ILogger
}

func NewInbound(orch *orchestrator.Orchestrator, log logger.ILogger) *Inbound {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Inbound{orch: orch, logger: log}
}

// Sync makes the panes match rawQuery. Panes missing from it are closed,
// new ones are created and existing ones receive the smallest update that
// reaches the described state. Malformed panes fall back to defaults and
// never stop the rest from syncing.
func (in *Inbound) Sync(ctx context.Context, rawQuery string) error {
	state, parseErrs := Parse(rawQuery)
	for _, err := range parseErrs {
		in.logger.Warn(inboundModule, "Malformed address bar parameter", map[string]interface{}{"error": err.Error()})
	}
	panes := state.Panes
	if len(panes) > orchestrator.MaxPanes {
		in.logger.Warn(inboundModule, "Ignoring extra panes", map[string]interface{}{
			"panes":   len(panes),
			"maximum": orchestrator.MaxPanes,
		})
		panes = panes[:orchestrator.MaxPanes]
	}
	wanted := make(map[string]bool, len(panes))
	for _, p := range panes {
		wanted[p.Key] = true
	}

	var errs []error
	for _, key := range in.orch.PaneKeys() {
		if !wanted[key] {
			if err := in.orch.SplitClose(key); err != nil {
				errs = append(errs, fmt.Errorf("closing pane %q: %w", key, err))
			}
		}
	}

	if len(panes) == orchestrator.MaxPanes && panes[0].State.Range != panes[1].State.Range && in.orch.SyncedTimes() {
		if err := in.orch.SetSyncedTimes(false); err != nil {
			errs = append(errs, err)
		}
	}

	for _, p := range panes {
		current, exists := in.orch.Pane(p.Key)
		var err error
		if exists {
			err = in.update(ctx, current, p.State)
		} else {
			err = in.initialize(ctx, p.Key, p.State)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("pane %q: %w", p.Key, err))
		}
	}
	return errors.Join(errs...)
}

func (in *Inbound) initialize(ctx context.Context, key string, ps PaneURLState) error {
	uid, queries := in.resolve(ctx, ps)
	return in.orch.InitializePane(ctx, key, orchestrator.PaneInit{
		Datasource:  uid,
		Queries:     queries,
		Range:       ps.Range,
		PanelsState: ps.PanelsState,
	})
}

func (in *Inbound) update(ctx context.Context, current pane.State, ps PaneURLState) error {
	uid, queries := in.resolve(ctx, ps)
	have := FromPane(current)
	if uid == "" {
		uid = have.Datasource
	}

	var override *model.DataSourceRef
	if ds, err := in.orch.Registry().Get(ctx, uid); err == nil && !datasource.IsMixed(ds) && len(queries) == 0 {
		override = datasource.RefOf(ds)
	}
	want := PaneURLState{
		Datasource:  uid,
		Queries:     in.orch.EnsureQueries(ctx, queries, override),
		Range:       ps.Range,
		PanelsState: ps.PanelsState,
	}
	if want.Range.From == "" || want.Range.To == "" {
		want.Range = have.Range
	}

	diff := DiffPanes(have, want)
	if !diff.Any() {
		return nil
	}
	var u orchestrator.PaneUpdate
	if diff.Datasource {
		u.Datasource = want.Datasource
	}
	if diff.Queries || diff.Datasource {
		u.Queries = want.Queries
	}
	if diff.Range {
		u.Range = &want.Range
	}
	if diff.PanelsState {
		u.PanelsState = want.PanelsState
		u.PanelsStateChanged = true
	}
	in.logger.Debug(inboundModule, "Updating pane from address bar", map[string]interface{}{
		"pane":        current.Key,
		"datasource":  diff.Datasource,
		"queries":     diff.Queries,
		"range":       diff.Range,
		"panelsState": diff.PanelsState,
	})
	return in.orch.UpdatePane(ctx, current.Key, u)
}

// resolve picks the pane datasource. The root datasource wins when it
// exists. Otherwise queries pointing at unknown datasources are dropped
// and the datasources of the remaining ones decide: one distinct
// datasource is used as is, several make the pane mixed. An empty uid
// leaves the choice to the orchestrator default.
func (in *Inbound) resolve(ctx context.Context, ps PaneURLState) (string, []model.Query) {
	registry := in.orch.Registry()
	if ps.Datasource != "" {
		if ds, err := registry.Get(ctx, ps.Datasource); err == nil {
			return ds.Ref().UID, ps.Queries
		}
		in.logger.Warn(inboundModule, "Unknown pane datasource", map[string]interface{}{"datasource": ps.Datasource})
	}

	var uids []string
	kept := make([]model.Query, 0, len(ps.Queries))
	for _, q := range ps.Queries {
		if q.Datasource == nil || q.Datasource.UID == "" {
			kept = append(kept, q)
			continue
		}
		ds, err := registry.GetByRef(ctx, q.Datasource)
		if err != nil {
			continue
		}
		uid := ds.Ref().UID
		if !slices.Contains(uids, uid) {
			uids = append(uids, uid)
		}
		kept = append(kept, q)
	}

	switch len(uids) {
	case 0:
		if len(kept) == 0 {
			return "", nil
		}
		return "", kept
	case 1:
		return uids[0], kept
	default:
		return datasource.MixedUID, kept
	}
}
