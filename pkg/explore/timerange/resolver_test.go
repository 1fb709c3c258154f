package timerange

import (
	"testing"
	"time"

	"explore-state-be/pkg/explore/model"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, time.March, 14, 10, 30, 15, 0, time.UTC)

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	clock := quartz.NewMock(t)
	clock.Set(fixedNow)
	return NewResolver(clock)
}

func TestResolveRelative(t *testing.T) {
	r := newTestResolver(t)

	tests := []struct {
		name     string
		raw      model.RawTimeRange
		wantFrom time.Time
		wantTo   time.Time
	}{
		{
			name:     "last hour",
			raw:      model.RawTimeRange{From: "now-1h", To: "now"},
			wantFrom: fixedNow.Add(-time.Hour),
			wantTo:   fixedNow,
		},
		{
			name:     "today so far",
			raw:      model.RawTimeRange{From: "now/d", To: "now"},
			wantFrom: time.Date(2024, time.March, 14, 0, 0, 0, 0, time.UTC),
			wantTo:   fixedNow,
		},
		{
			name:     "yesterday rounds both ends",
			raw:      model.RawTimeRange{From: "now-1d/d", To: "now-1d/d"},
			wantFrom: time.Date(2024, time.March, 13, 0, 0, 0, 0, time.UTC),
			wantTo:   time.Date(2024, time.March, 13, 23, 59, 59, int(999*time.Millisecond), time.UTC),
		},
		{
			name:     "previous week starts on monday",
			raw:      model.RawTimeRange{From: "now-1w/w", To: "now"},
			wantFrom: time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC),
			wantTo:   fixedNow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := r.Resolve(tt.raw, "utc")
			require.NoError(t, err)
			assert.True(t, tt.wantFrom.Equal(tr.From), "from = %s, want %s", tr.From, tt.wantFrom)
			assert.True(t, tt.wantTo.Equal(tr.To), "to = %s, want %s", tr.To, tt.wantTo)
			assert.Equal(t, tt.raw, tr.Raw)
		})
	}
}

func TestResolveRoundsInPaneTimeZone(t *testing.T) {
	r := newTestResolver(t)

	tr, err := r.Resolve(model.RawTimeRange{From: "now/d", To: "now"}, "Asia/Tokyo")
	require.NoError(t, err)

	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	assert.True(t, time.Date(2024, time.March, 14, 0, 0, 0, 0, tokyo).Equal(tr.From))
}

func TestResolveAbsoluteIsZoneIndependent(t *testing.T) {
	r := newTestResolver(t)
	first, err := r.Resolve(model.RawTimeRange{From: "now-6h", To: "now-1h"}, "utc")
	require.NoError(t, err)

	raw := first.Absolute().Raw()
	for _, tz := range []string{"utc", "Europe/Berlin", "America/New_York", "browser"} {
		again, err := r.Resolve(raw, tz)
		require.NoError(t, err)
		assert.Equal(t, first.Absolute(), again.Absolute(), tz)
	}
}

func TestResolveDateStrings(t *testing.T) {
	r := newTestResolver(t)

	tr, err := r.Resolve(model.RawTimeRange{From: "2024-01-01T00:00:00Z", To: "2024-01-01||+1d"}, "utc")
	require.NoError(t, err)
	assert.Equal(t, int64(86400000), tr.Absolute().Span())

	tr, err = r.Resolve(model.RawTimeRange{From: "20240301", To: "20240302T120000"}, "utc")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC), tr.From.UTC())
	assert.Equal(t, time.Date(2024, time.March, 2, 12, 0, 0, 0, time.UTC), tr.To.UTC())

	tr, err = r.Resolve(model.RawTimeRange{From: "1709251200000", To: "1709337600000"}, "utc")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC), tr.From.UTC())
}

func TestResolveInvalid(t *testing.T) {
	r := newTestResolver(t)

	for _, raw := range []model.RawTimeRange{
		{From: "", To: "now"},
		{From: "now-1x", To: "now"},
		{From: "now/2d", To: "now"},
		{From: "now-", To: "now"},
		{From: "now-1h", To: "now"},
	} {
		_, err := r.Resolve(raw, "Not/AZone")
		assert.ErrorIs(t, err, model.ErrInvalidTimeRange, raw)
	}

	_, err := r.Resolve(model.RawTimeRange{From: "now-1x", To: "now"}, "utc")
	assert.ErrorIs(t, err, model.ErrInvalidTimeRange)
}

func TestResolveFollowsClock(t *testing.T) {
	clock := quartz.NewMock(t)
	clock.Set(fixedNow)
	r := NewResolver(clock)

	before, err := r.Resolve(DefaultRange, "utc")
	require.NoError(t, err)

	clock.Set(fixedNow.Add(10 * time.Minute))
	after, err := r.Resolve(DefaultRange, "utc")
	require.NoError(t, err)

	assert.Equal(t, int64(10*60*1000), after.Absolute().To-before.Absolute().To)
}
