package timerange

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"explore-state-be/pkg/explore/model"

	"github.com/coder/quartz"
	"github.com/jinzhu/now"
)

// DefaultRange is used for panes that open without a range.
var DefaultRange = model.RawTimeRange{From: "now-1h", To: "now"}

var absoluteFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"20060102T150405",
}

// Resolver turns raw range expressions into instants. It reads the current
// time from its clock so relative ranges can be tested deterministically.
type Resolver struct {
	clock     quartz.Clock
	weekStart time.Weekday
}

type Option func(*Resolver)

func WithWeekStart(day time.Weekday) Option {
	return func(r *Resolver) {
		r.weekStart = day
	}
}

func NewResolver(clock quartz.Clock, opts ...Option) *Resolver {
	r := &Resolver{clock: clock, weekStart: time.Monday}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resolver) Now() time.Time {
	return r.clock.Now()
}

// Location maps a pane time zone setting onto a location. The empty string
// and "browser" mean the server's local zone.
func Location(tz string) (*time.Location, error) {
	switch strings.ToLower(tz) {
	case "", "browser":
		return time.Local, nil
	case "utc":
		return time.UTC, nil
	}
	return time.LoadLocation(tz)
}

// Resolve evaluates both bounds of raw in the given time zone. Rounding
// operators round the lower bound down and the upper bound up.
func (r *Resolver) Resolve(raw model.RawTimeRange, tz string) (model.TimeRange, error) {
	loc, err := Location(tz)
	if err != nil {
		return model.TimeRange{}, fmt.Errorf("%w: time zone %q: %v", model.ErrInvalidTimeRange, tz, err)
	}
	current := r.clock.Now().In(loc)

	from, err := r.parse(raw.From, false, loc, current)
	if err != nil {
		return model.TimeRange{}, err
	}
	to, err := r.parse(raw.To, true, loc, current)
	if err != nil {
		return model.TimeRange{}, err
	}
	return model.TimeRange{From: from, To: to, Raw: raw}, nil
}

// ResolveAbsolute builds a range whose raw form is epoch milliseconds.
func ResolveAbsolute(abs model.AbsoluteTimeRange) model.TimeRange {
	return model.TimeRange{
		From: time.UnixMilli(abs.From),
		To:   time.UnixMilli(abs.To),
		Raw:  abs.Raw(),
	}
}

func (r *Resolver) parse(expr string, roundUp bool, loc *time.Location, current time.Time) (time.Time, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return time.Time{}, fmt.Errorf("%w: empty bound", model.ErrInvalidTimeRange)
	}

	var anchor time.Time
	var math string
	switch {
	case strings.HasPrefix(expr, "now"):
		anchor = current
		math = expr[len("now"):]
	default:
		base := expr
		if idx := strings.Index(expr, "||"); idx >= 0 {
			base, math = expr[:idx], expr[idx+2:]
		}
		t, err := parseAbsolute(base, loc)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %q", model.ErrInvalidTimeRange, expr)
		}
		anchor = t
	}

	t, err := r.applyMath(anchor, math, roundUp, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %v", model.ErrInvalidTimeRange, expr, err)
	}
	return t, nil
}

func parseAbsolute(s string, loc *time.Location) (time.Time, error) {
	// Eight digits are a compact date, not epoch milliseconds.
	if len(s) == 8 {
		if t, err := time.ParseInLocation("20060102", s, loc); err == nil {
			return t, nil
		}
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms), nil
	}
	for _, layout := range absoluteFormats {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	cfg := &now.Config{TimeLocation: loc}
	return cfg.Parse(s)
}

// applyMath evaluates date math such as "-1h", "/d" or "-7d/w".
func (r *Resolver) applyMath(t time.Time, math string, roundUp bool, loc *time.Location) (time.Time, error) {
	cfg := &now.Config{WeekStartDay: r.weekStart, TimeLocation: loc}
	t = t.In(loc)

	for i := 0; i < len(math); {
		op := math[i]
		i++
		if op != '/' && op != '+' && op != '-' {
			return time.Time{}, fmt.Errorf("unexpected %q", op)
		}

		num := 1
		start := i
		for i < len(math) && math[i] >= '0' && math[i] <= '9' {
			i++
		}
		if i > start {
			n, err := strconv.Atoi(math[start:i])
			if err != nil {
				return time.Time{}, err
			}
			num = n
		}
		if op == '/' && num != 1 {
			return time.Time{}, fmt.Errorf("rounding only supports whole single units")
		}
		if i >= len(math) {
			return time.Time{}, fmt.Errorf("missing unit")
		}
		unit := math[i]
		i++

		if op == '/' {
			rounded, err := round(cfg.With(t), unit, roundUp)
			if err != nil {
				return time.Time{}, err
			}
			t = rounded
			continue
		}
		if op == '-' {
			num = -num
		}
		shifted, err := add(t, num, unit)
		if err != nil {
			return time.Time{}, err
		}
		t = shifted
	}
	return t, nil
}

func round(n *now.Now, unit byte, up bool) (time.Time, error) {
	var t time.Time
	switch unit {
	case 'y':
		t = pick(up, n.EndOfYear, n.BeginningOfYear)
	case 'Q':
		t = pick(up, n.EndOfQuarter, n.BeginningOfQuarter)
	case 'M':
		t = pick(up, n.EndOfMonth, n.BeginningOfMonth)
	case 'w':
		t = pick(up, n.EndOfWeek, n.BeginningOfWeek)
	case 'd':
		t = pick(up, n.EndOfDay, n.BeginningOfDay)
	case 'h':
		t = pick(up, n.EndOfHour, n.BeginningOfHour)
	case 'm':
		t = pick(up, n.EndOfMinute, n.BeginningOfMinute)
	case 's':
		t = n.Time.Truncate(time.Second)
		if up {
			t = t.Add(time.Second - time.Millisecond)
		}
		return t, nil
	default:
		return time.Time{}, fmt.Errorf("unknown unit %q", unit)
	}
	return t.Truncate(time.Millisecond), nil
}

func pick(up bool, end, begin func() time.Time) time.Time {
	if up {
		return end()
	}
	return begin()
}

func add(t time.Time, num int, unit byte) (time.Time, error) {
	switch unit {
	case 'y':
		return t.AddDate(num, 0, 0), nil
	case 'Q':
		return t.AddDate(0, 3*num, 0), nil
	case 'M':
		return t.AddDate(0, num, 0), nil
	case 'w':
		return t.AddDate(0, 0, 7*num), nil
	case 'd':
		return t.AddDate(0, 0, num), nil
	case 'h':
		return t.Add(time.Duration(num) * time.Hour), nil
	case 'm':
		return t.Add(time.Duration(num) * time.Minute), nil
	case 's':
		return t.Add(time.Duration(num) * time.Second), nil
	}
	return time.Time{}, fmt.Errorf("unknown unit %q", unit)
}
