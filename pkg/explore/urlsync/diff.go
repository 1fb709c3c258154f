package urlsync

import (
	"encoding/json"

	"explore-state-be/pkg/explore/model"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// Diff lists the parts of a pane description that changed.
type Diff struct {
	Datasource  bool
	Queries     bool
	Range       bool
	PanelsState bool
}

func (d Diff) Any() bool {
	return d.Datasource || d.Queries || d.Range || d.PanelsState
}

// DiffPanes compares two descriptions the way they would be written to the
// address bar, so key and ref id bookkeeping never counts as a change.
func DiffPanes(current, incoming PaneURLState) Diff {
	current, incoming = current.comparable(), incoming.comparable()
	return Diff{
		Datasource:  current.Datasource != incoming.Datasource,
		Queries:     !jsonEqual(current.Queries, incoming.Queries),
		Range:       current.Range != incoming.Range,
		PanelsState: !jsonEqual(current.PanelsState, incoming.PanelsState),
	}
}

func (p PaneURLState) comparable() PaneURLState {
	p = p.normalized()
	p.Queries = model.WithUniqueRefIDs(p.Queries)
	return p
}

// Equal reports whether a and b describe the same panes in the same order.
func Equal(a, b URLState) bool {
	if a.OrgID != b.OrgID || len(a.Panes) != len(b.Panes) {
		return false
	}
	for i := range a.Panes {
		if a.Panes[i].Key != b.Panes[i].Key || DiffPanes(a.Panes[i].State, b.Panes[i].State).Any() {
			return false
		}
	}
	return true
}

// jsonEqual compares the JSON forms of a and b, treating nil and empty
// collections alike.
func jsonEqual(a, b any) bool {
	return cmp.Equal(toJSONValue(a), toJSONValue(b), cmpopts.EquateEmpty())
}

func toJSONValue(v any) any {
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}
