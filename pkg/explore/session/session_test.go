package session

import (
	"context"
	"net/url"
	"testing"
	"time"

	"explore-state-be/pkg/explore/datasource"
	"explore-state-be/pkg/explore/datasource/datasourcetest"
	"explore-state-be/pkg/explore/model"
	"explore-state-be/pkg/explore/orchestrator"
	"explore-state-be/pkg/explore/pipeline"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAppliesInitialURL(t *testing.T) {
	clock := quartz.NewMock(t)
	clock.Set(time.Date(2024, time.March, 14, 10, 30, 0, 0, time.UTC))
	loki := datasourcetest.New("loki-1", "loki")

	pane := `{"datasource":"loki-1","queries":[{"refId":"A","expr":"{job=\"api\"}"}],"range":{"from":"now-1h","to":"now"}}`
	s, err := Open(context.Background(), Options{
		UserID:     "user-1",
		InitialURL: "schemaVersion=1&left=" + url.QueryEscape(pane),
		Orchestrator: orchestrator.Config{
			Pipeline:        pipeline.Config{LiveThrottle: -1},
			DefaultTimezone: "utc",
		},
		Dependencies: orchestrator.Dependencies{
			Registry: datasource.NewStaticRegistry("loki-1", loki),
			Clock:    clock,
		},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, []string{"left"}, s.Orchestrator.PaneKeys())
	assert.Equal(t, 1, loki.QueryCount())

	closed := 0
	s.OnClose(func() { closed++ })
	s.Close()
	s.Close()
	assert.Equal(t, 1, closed)
	assert.Eventually(t, loki.Last().Cancelled, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, s.Orchestrator.RunQueries(context.Background(), "left"), model.ErrSessionClosed)
}
