package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"explore-state-be/internal/dto"
	"explore-state-be/internal/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T, rdb *redis.Client) *Hub {
	t.Helper()
	h := NewHub(rdb, logger.NewNopLogger())
	go h.Run()
	t.Cleanup(h.Stop)
	return h
}

func attach(t *testing.T, h *Hub, sessionID string, userID uuid.UUID) *Client {
	t.Helper()
	c := newClient(h, nil, sessionID, userID)
	require.True(t, h.add(c))
	return c
}

func receive(t *testing.T, c *Client) dto.StreamMessage {
	t.Helper()
	select {
	case raw := <-c.Send:
		var msg dto.StreamMessage
		require.NoError(t, json.Unmarshal(raw, &msg))
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message")
		return dto.StreamMessage{}
	}
}

func assertSilent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case raw := <-c.Send:
		t.Fatalf("unexpected message %s", raw)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSendToSessionReachesOnlyThatSession(t *testing.T) {
	h := startHub(t, nil)
	user := uuid.New()
	a1 := attach(t, h, "s-a", user)
	a2 := attach(t, h, "s-a", user)
	b := attach(t, h, "s-b", user)
	assert.Equal(t, 2, h.Connected("s-a"))

	h.SendToSession("s-a", "state", map[string]string{"k": "v"})

	assert.Equal(t, "state", receive(t, a1).Type)
	assert.Equal(t, "state", receive(t, a2).Type)
	assertSilent(t, b)
}

func TestUnregisterClosesSend(t *testing.T) {
	h := startHub(t, nil)
	c := attach(t, h, "s-a", uuid.New())

	h.unregister <- c
	_, ok := <-c.Send
	assert.False(t, ok)
	assert.Eventually(t, func() bool { return h.Connected("s-a") == 0 }, time.Second, 5*time.Millisecond)
}

func TestSendToUserFansOutAcrossInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	newClientFor := func() *redis.Client {
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = rdb.Close() })
		return rdb
	}
	here, there := startHub(t, newClientFor()), startHub(t, newClientFor())
	user, other := uuid.New(), uuid.New()

	local := attach(t, here, "s-1", user)
	remote := attach(t, there, "s-2", user)
	stranger := attach(t, there, "s-3", other)

	probe := newClientFor()
	require.Eventually(t, func() bool {
		subs := probe.PubSubNumSub(context.Background(), clusterChannel).Val()
		return subs[clusterChannel] == 2
	}, time.Second, 10*time.Millisecond)

	here.SendToUser(user, "event", map[string]string{"type": "HISTORY_ADDED"})

	assert.Equal(t, "event", receive(t, local).Type)
	assert.Equal(t, "event", receive(t, remote).Type)
	assertSilent(t, local)
	assertSilent(t, stranger)
}
