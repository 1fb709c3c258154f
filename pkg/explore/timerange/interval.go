package timerange

import (
	"time"

	"explore-state-be/pkg/explore/model"

	prommodel "github.com/prometheus/common/model"
)

type step struct {
	below int64
	ms    int64
}

var roundingSteps = []step{
	{10, 1},
	{15, 10},
	{35, 20},
	{75, 50},
	{150, 100},
	{350, 200},
	{750, 500},
	{1500, 1000},
	{3500, 2000},
	{7500, 5000},
	{12500, 10000},
	{17500, 15000},
	{25000, 20000},
	{45000, 30000},
	{90000, 60000},
	{210000, 120000},
	{450000, 300000},
	{750000, 600000},
	{1050000, 900000},
	{1500000, 1200000},
	{2700000, 1800000},
	{5400000, 3600000},
	{9000000, 7200000},
	{16200000, 10800000},
	{24300000, 21600000},
	{64800000, 43200000},
	{129600000, 86400000},
	{604800000, 86400000},
	{1814400000, 604800000},
	{3628800000, 2592000000},
}

// RoundInterval snaps a raw interval onto a human friendly step.
func RoundInterval(ms int64) int64 {
	for _, s := range roundingSteps {
		if ms < s.below {
			return s.ms
		}
	}
	return 31536000000
}

// CalculateInterval derives the query interval for a range rendered at the
// given resolution. minInterval, when set, is a lower bound.
func CalculateInterval(abs model.AbsoluteTimeRange, resolution int, minInterval string) (string, int64) {
	if resolution <= 0 {
		resolution = 1000
	}
	ms := RoundInterval(abs.Span() / int64(resolution))

	if minInterval != "" {
		if d, err := prommodel.ParseDuration(minInterval); err == nil {
			if low := time.Duration(d).Milliseconds(); low > ms {
				ms = low
			}
		}
	}
	return FormatInterval(ms), ms
}

// FormatInterval renders milliseconds the way interval variables are
// written, e.g. "500ms", "30s", "2h".
func FormatInterval(ms int64) string {
	return prommodel.Duration(time.Duration(ms) * time.Millisecond).String()
}

// ParseRefreshInterval parses auto refresh settings such as "5s" or "1m".
func ParseRefreshInterval(s string) (time.Duration, error) {
	d, err := prommodel.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	return time.Duration(d), nil
}
