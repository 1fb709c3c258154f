package memory

import (
	"context"
	"testing"
	"time"

	"explore-state-be/pkg/explore/datasource"
	"explore-state-be/pkg/explore/datasource/datasourcetest"
	"explore-state-be/pkg/explore/model"
	"explore-state-be/pkg/explore/orchestrator"
	"explore-state-be/pkg/explore/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openSession(t *testing.T, id string) *session.Session {
	t.Helper()
	s, err := session.Open(context.Background(), session.Options{
		ID: id,
		Dependencies: orchestrator.Dependencies{
			Registry: datasource.NewStaticRegistry("loki-1", datasourcetest.New("loki-1", "loki")),
		},
	})
	require.NoError(t, err)
	return s
}

func TestDeleteClosesSession(t *testing.T) {
	repo := NewSessionRepository(time.Hour, time.Hour)
	s := openSession(t, "abc")
	repo.Save(s)

	got, ok := repo.Get("abc")
	require.True(t, ok)
	assert.Same(t, s, got)

	repo.Delete("abc")
	_, ok = repo.Get("abc")
	assert.False(t, ok)
	assert.ErrorIs(t, s.Orchestrator.SplitClose("left"), model.ErrSessionClosed)
}

func TestExpiredSessionsAreClosed(t *testing.T) {
	repo := NewSessionRepository(20*time.Millisecond, 5*time.Millisecond)
	s := openSession(t, "short")
	repo.Save(s)

	require.Eventually(t, func() bool {
		return s.Orchestrator.SplitClose("left") == model.ErrSessionClosed
	}, 2*time.Second, 10*time.Millisecond)
	assert.Zero(t, repo.Count())
}

func TestCloseAll(t *testing.T) {
	repo := NewSessionRepository(time.Hour, time.Hour)
	a, b := openSession(t, "a"), openSession(t, "b")
	repo.Save(a)
	repo.Save(b)

	repo.CloseAll()
	assert.Zero(t, repo.Count())
	assert.ErrorIs(t, a.Orchestrator.EvenResize(), model.ErrSessionClosed)
	assert.ErrorIs(t, b.Orchestrator.EvenResize(), model.ErrSessionClosed)
}
