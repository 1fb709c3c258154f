package model

import (
	"strconv"
	"strings"
	"time"
)

// RawTimeRange is a time range as the user wrote it: relative expressions
// such as "now-1h" or absolute epoch milliseconds.
type RawTimeRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// IsRelative reports whether either bound depends on the current time.
func (r RawTimeRange) IsRelative() bool {
	return strings.Contains(r.From, "now") || strings.Contains(r.To, "now")
}

// TimeRange is a resolved range together with the raw form it came from.
type TimeRange struct {
	From time.Time    `json:"from"`
	To   time.Time    `json:"to"`
	Raw  RawTimeRange `json:"raw"`
}

func (t TimeRange) Absolute() AbsoluteTimeRange {
	return AbsoluteTimeRange{From: t.From.UnixMilli(), To: t.To.UnixMilli()}
}

// AbsoluteTimeRange holds epoch milliseconds.
type AbsoluteTimeRange struct {
	From int64 `json:"from"`
	To   int64 `json:"to"`
}

func (a AbsoluteTimeRange) Span() int64 {
	return a.To - a.From
}

// Raw renders the range as epoch millisecond strings, which resolve to the
// same instants in every time zone.
func (a AbsoluteTimeRange) Raw() RawTimeRange {
	return RawTimeRange{
		From: strconv.FormatInt(a.From, 10),
		To:   strconv.FormatInt(a.To, 10),
	}
}
