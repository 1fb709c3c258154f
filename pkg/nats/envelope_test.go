package nats

import (
	"testing"
	"time"

	"explore-state-be/pkg/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeKeepsTypeAndTime(t *testing.T) {
	at := time.Date(2024, time.March, 14, 10, 30, 0, 0, time.UTC)
	data, err := encode(events.CorrelationSaved("user-1", "c-1", "loki-1", "prom-1", "trace", at))
	require.NoError(t, err)

	got, err := decode(Subject(events.TypeCorrelationSaved), data)
	require.NoError(t, err)
	assert.Equal(t, events.TypeCorrelationSaved, got.Type)
	assert.True(t, at.Equal(got.OccurredAt))
	assert.Equal(t, "user-1", got.UserID())
	assert.Equal(t, "prom-1", got.Data["target_uid"])
}

func TestDecodeFallsBackToSubject(t *testing.T) {
	got, err := decode("events.HISTORY_ADDED", []byte(`{"data":{"user_id":"u"}}`))
	require.NoError(t, err)
	assert.Equal(t, events.TypeHistoryAdded, got.Type)
	assert.False(t, got.OccurredAt.IsZero())
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := decode("events.X", []byte("not json"))
	assert.Error(t, err)
}
