// Package querycache keeps the last few completed responses of a pane keyed
// by the absolute range they were fetched for.
package querycache

import (
	"fmt"

	"explore-state-be/pkg/explore/model"
)

const MaxEntries = 5

type Entry struct {
	Key   string
	Value model.PanelData
}

func Key(r model.AbsoluteTimeRange) string {
	return fmt.Sprintf("from=%d&to=%d", r.From, r.To)
}

// Get returns the cached payload for r, if any.
func Get(cache []Entry, r model.AbsoluteTimeRange) (model.PanelData, bool) {
	key := Key(r)
	for _, e := range cache {
		if e.Key == key {
			return e.Value, true
		}
	}
	return model.PanelData{}, false
}

// Put returns cache with value stored under r. Loading payloads are not
// cached and an existing entry for the same range is never replaced. The
// input slice is not modified.
func Put(cache []Entry, r model.AbsoluteTimeRange, value model.PanelData) []Entry {
	if value.State == model.LoadingStateLoading {
		return cache
	}
	key := Key(r)
	for _, e := range cache {
		if e.Key == key {
			return cache
		}
	}

	out := make([]Entry, 0, MaxEntries)
	out = append(out, Entry{Key: key, Value: value})
	for _, e := range cache {
		if len(out) == MaxEntries {
			break
		}
		out = append(out, e)
	}
	return out
}
