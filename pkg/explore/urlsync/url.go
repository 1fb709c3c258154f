// Package urlsync keeps the address bar and the panes of a session in step.
// Inbound applies address bar changes to the orchestrator; Outbound writes
// committed pane state back, debounced.
package urlsync

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"explore-state-be/pkg/explore/datasource"
	"explore-state-be/pkg/explore/model"
	"explore-state-be/pkg/explore/pane"
)

const (
	SchemaVersion = 1

	paramSchemaVersion = "schemaVersion"
	paramOrgID         = "orgId"
)

// PaneURLState is the part of a pane that lives in the address bar.
type PaneURLState struct {
	Datasource  string             `json:"datasource"`
	Queries     []model.Query      `json:"queries"`
	Range       model.RawTimeRange `json:"range"`
	PanelsState model.PanelsState  `json:"panelsState,omitempty"`
}

type NamedPane struct {
	Key   string
	State PaneURLState
}

// URLState is the parsed address bar. Panes keep their order of appearance.
type URLState struct {
	SchemaVersion int
	OrgID         int64
	Panes         []NamedPane
}

func (u URLState) Pane(key string) (PaneURLState, bool) {
	for _, p := range u.Panes {
		if p.Key == key {
			return p.State, true
		}
	}
	return PaneURLState{}, false
}

// Parse reads a raw query string. Malformed panes are kept with an empty
// description so that they fall back to defaults; their errors are
// returned alongside.
func Parse(rawQuery string) (URLState, []error) {
	state := URLState{SchemaVersion: SchemaVersion}
	var errs []error
	seen := map[string]bool{}

	for _, part := range strings.Split(strings.TrimPrefix(rawQuery, "?"), "&") {
		if part == "" {
			continue
		}
		rawKey, rawValue, _ := strings.Cut(part, "=")
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			errs = append(errs, fmt.Errorf("param %q: %w", rawKey, err))
			continue
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			errs = append(errs, fmt.Errorf("param %q: %w", key, err))
			value = ""
		}

		switch key {
		case paramSchemaVersion:
			if v, err := strconv.Atoi(value); err == nil {
				state.SchemaVersion = v
			}
		case paramOrgID:
			if v, err := strconv.ParseInt(value, 10, 64); err == nil {
				state.OrgID = v
			}
		default:
			if seen[key] {
				continue
			}
			seen[key] = true
			var ps PaneURLState
			if value != "" {
				if err := json.Unmarshal([]byte(value), &ps); err != nil {
					errs = append(errs, fmt.Errorf("pane %q: %w", key, err))
					ps = PaneURLState{}
				}
			}
			state.Panes = append(state.Panes, NamedPane{Key: key, State: ps})
		}
	}
	return state, errs
}

// Encode writes state as a query string, panes in order.
func Encode(state URLState) (string, error) {
	var b strings.Builder
	b.WriteString(paramSchemaVersion + "=" + strconv.Itoa(state.SchemaVersion))
	if state.OrgID != 0 {
		b.WriteString("&" + paramOrgID + "=" + strconv.FormatInt(state.OrgID, 10))
	}
	for _, p := range state.Panes {
		raw, err := json.Marshal(p.State.normalized())
		if err != nil {
			return "", fmt.Errorf("encoding pane %q: %w", p.Key, err)
		}
		b.WriteString("&" + url.QueryEscape(p.Key) + "=" + url.QueryEscape(string(raw)))
	}
	return b.String(), nil
}

// normalized drops what never belongs in the address bar: query keys and
// empty panel state.
func (p PaneURLState) normalized() PaneURLState {
	p.Queries = model.StripKeys(p.Queries)
	if p.Queries == nil {
		p.Queries = []model.Query{}
	}
	p.PanelsState = p.PanelsState.Pruned()
	return p
}

// FromPane describes s the way it is written to the address bar.
func FromPane(s pane.State) PaneURLState {
	ps := PaneURLState{
		Queries:     model.CloneQueries(s.Queries),
		Range:       s.Range.Raw,
		PanelsState: s.PanelsState,
	}
	if s.Datasource != nil {
		ps.Datasource = s.Datasource.Ref().UID
		if datasource.IsMixed(s.Datasource) {
			ps.Datasource = datasource.MixedUID
		}
	}
	return ps.normalized()
}

// FromPanes builds the address bar state of a session.
func FromPanes(panes []pane.State, orgID int64) URLState {
	state := URLState{SchemaVersion: SchemaVersion, OrgID: orgID}
	for _, s := range panes {
		state.Panes = append(state.Panes, NamedPane{Key: s.Key, State: FromPane(s)})
	}
	return state
}
