package model

import (
	"encoding/json"
	"fmt"
	"maps"

	"github.com/google/uuid"
)

// DataSourceRef points at a configured datasource.
type DataSourceRef struct {
	UID  string `json:"uid,omitempty"`
	Type string `json:"type,omitempty"`
}

// Query is one query row of a pane. Datasource specific fields that explore
// does not interpret are kept in Model and serialized inline.
type Query struct {
	RefID      string         `json:"refId"`
	Key        string         `json:"key,omitempty"`
	Datasource *DataSourceRef `json:"datasource,omitempty"`
	Hide       bool           `json:"hide,omitempty"`
	QueryType  string         `json:"queryType,omitempty"`
	Expr       string         `json:"expr,omitempty"`
	Model      map[string]any `json:"-"`
}

var queryFields = map[string]struct{}{
	"refId":      {},
	"key":        {},
	"datasource": {},
	"hide":       {},
	"queryType":  {},
	"expr":       {},
}

type queryAlias Query

func (q Query) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(queryAlias(q))
	if err != nil || len(q.Model) == 0 {
		return base, err
	}

	merged := make(map[string]any, len(q.Model)+len(queryFields))
	for k, v := range q.Model {
		if _, known := queryFields[k]; !known {
			merged[k] = v
		}
	}
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	return json.Marshal(merged)
}

func (q *Query) UnmarshalJSON(b []byte) error {
	var alias queryAlias
	if err := json.Unmarshal(b, &alias); err != nil {
		return err
	}
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	for k := range queryFields {
		delete(raw, k)
	}

	*q = Query(alias)
	q.Model = nil
	if len(raw) > 0 {
		q.Model = raw
	}
	return nil
}

// Clone returns a copy that shares no mutable state with q.
func (q Query) Clone() Query {
	if q.Datasource != nil {
		ref := *q.Datasource
		q.Datasource = &ref
	}
	q.Model = maps.Clone(q.Model)
	return q
}

// IsEmpty reports whether the query carries anything besides its identity.
func (q Query) IsEmpty() bool {
	return q.Expr == "" && q.QueryType == "" && len(q.Model) == 0
}

// DatasourceUID returns the per-query datasource uid, or "" when unset.
func (q Query) DatasourceUID() string {
	if q.Datasource == nil {
		return ""
	}
	return q.Datasource.UID
}

func CloneQueries(queries []Query) []Query {
	if queries == nil {
		return nil
	}
	out := make([]Query, len(queries))
	for i, q := range queries {
		out[i] = q.Clone()
	}
	return out
}

// HasNonEmptyQuery reports whether at least one visible query has content.
func HasNonEmptyQuery(queries []Query) bool {
	for _, q := range queries {
		if !q.Hide && !q.IsEmpty() {
			return true
		}
	}
	return false
}

// GenerateKey returns a fresh query key for the row at index.
func GenerateKey(index int) string {
	return fmt.Sprintf("Q-%s-%d", uuid.NewString(), index)
}

// NextRefID returns the first ref id (A..Z, AA..AZ, ...) not used by queries.
func NextRefID(queries []Query) string {
	used := make(map[string]struct{}, len(queries))
	for _, q := range queries {
		used[q.RefID] = struct{}{}
	}
	for n := 0; ; n++ {
		id := refIDFromIndex(n)
		if _, taken := used[id]; !taken {
			return id
		}
	}
}

func refIDFromIndex(n int) string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	id := ""
	for {
		id = string(letters[n%26]) + id
		n = n/26 - 1
		if n < 0 {
			return id
		}
	}
}

// WithUniqueRefIDs reassigns duplicated or missing ref ids, keeping the first
// occurrence of each.
func WithUniqueRefIDs(queries []Query) []Query {
	out := CloneQueries(queries)
	seen := make(map[string]struct{}, len(out))
	for i := range out {
		if _, dup := seen[out[i].RefID]; dup || out[i].RefID == "" {
			out[i].RefID = nextFreeRefID(out, seen)
		}
		seen[out[i].RefID] = struct{}{}
	}
	return out
}

func nextFreeRefID(queries []Query, assigned map[string]struct{}) string {
	for n := 0; ; n++ {
		id := refIDFromIndex(n)
		if _, taken := assigned[id]; taken {
			continue
		}
		inUse := false
		for _, q := range queries {
			if q.RefID == id {
				inUse = true
				break
			}
		}
		if !inUse {
			return id
		}
	}
}

// WithFreshKeys assigns newly generated keys to every query.
func WithFreshKeys(queries []Query) []Query {
	out := CloneQueries(queries)
	for i := range out {
		out[i].Key = GenerateKey(i)
	}
	return out
}

// EnsureUniqueKeys fills in missing keys and regenerates duplicated ones.
func EnsureUniqueKeys(queries []Query) []Query {
	out := CloneQueries(queries)
	seen := make(map[string]struct{}, len(out))
	for i := range out {
		if _, dup := seen[out[i].Key]; dup || out[i].Key == "" {
			out[i].Key = GenerateKey(i)
		}
		seen[out[i].Key] = struct{}{}
	}
	return out
}

// StripKeys returns copies of queries without their keys, the form in which
// queries are written to the address bar.
func StripKeys(queries []Query) []Query {
	out := CloneQueries(queries)
	for i := range out {
		out[i].Key = ""
	}
	return out
}
