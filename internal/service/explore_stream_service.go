package service

import (
	"context"
	"time"

	"explore-state-be/internal/dto"
	"explore-state-be/internal/mapper"
	"explore-state-be/internal/pkg/logger"
	"explore-state-be/pkg/events"
	"explore-state-be/pkg/explore/model"
	"explore-state-be/pkg/explore/session"
	"explore-state-be/pkg/explore/urlsync"
	pktNats "explore-state-be/pkg/nats"

	"github.com/coder/quartz"
	"github.com/google/uuid"
)

const (
	streamModule = "STREAM"

	MessageState    = "state"
	MessageLocation = "location"
	MessageEvent    = "event"
)

// StreamHub delivers messages to websocket clients.
type StreamHub interface {
	SendToSession(sessionID, msgType string, data interface{})
	SendToUser(userID uuid.UUID, msgType string, data interface{})
}

type IExploreStreamService interface {
	// Attach starts pushing the state and address bar of s to its
	// websocket clients until s is closed.
	Attach(s *session.Session)
	// SendSnapshot pushes the current state of s right away.
	SendSnapshot(s *session.Session)
	// Listen forwards explore domain events to the sessions of their user.
	Listen(ctx context.Context, subscriber *pktNats.Subscriber) error
}

type exploreStreamService struct {
	hub       StreamHub
	mapper    *mapper.ExploreMapper
	clock     quartz.Clock
	minPeriod time.Duration
	logger    logger.ILogger
}

func NewExploreStreamService(hub StreamHub, clock quartz.Clock, minPeriod time.Duration, log logger.ILogger) IExploreStreamService {
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &exploreStreamService{
		hub:       hub,
		mapper:    mapper.NewExploreMapper(),
		clock:     clock,
		minPeriod: minPeriod,
		logger:    log,
	}
}

func (s *exploreStreamService) Attach(sess *session.Session) {
	b := &stateBroadcaster{
		send:      func() { s.SendSnapshot(sess) },
		clock:     s.clock,
		minPeriod: s.minPeriod,
		dirty:     make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	go b.run()

	unsubscribe := sess.Orchestrator.Subscribe(func(model.Transition, string) { b.mark() })
	sess.Location.OnWrite(func(rawQuery string, mode urlsync.WriteMode) {
		s.hub.SendToSession(sess.ID, MessageLocation, dto.LocationMessage{URL: rawQuery, Mode: string(mode)})
	})
	sess.OnClose(func() {
		unsubscribe()
		sess.Location.OnWrite(nil)
		b.stop()
	})
}

func (s *exploreStreamService) SendSnapshot(sess *session.Session) {
	s.hub.SendToSession(sess.ID, MessageState, s.mapper.ToSessionResponse(sess))
}

func (s *exploreStreamService) Listen(ctx context.Context, subscriber *pktNats.Subscriber) error {
	for _, eventType := range []string{events.TypeHistoryAdded, events.TypeCorrelationSaved, events.TypeSessionClosed} {
		durable := "explore-stream-" + eventType
		if err := subscriber.Subscribe(ctx, pktNats.Subject(eventType), durable, s.forward); err != nil {
			return err
		}
	}
	return nil
}

func (s *exploreStreamService) forward(_ context.Context, event events.BaseEvent) error {
	userID, err := uuid.Parse(event.UserID())
	if err != nil {
		s.logger.Warn(streamModule, "Event without user, dropping", map[string]interface{}{"type": event.Type})
		return nil
	}
	s.hub.SendToUser(userID, MessageEvent, map[string]interface{}{
		"type":       event.Type,
		"data":       event.Data,
		"occurredAt": event.OccurredAt,
	})
	return nil
}

// stateBroadcaster coalesces transitions into snapshots sent at most once
// per minPeriod.
type stateBroadcaster struct {
	send      func()
	clock     quartz.Clock
	minPeriod time.Duration
	dirty     chan struct{}
	done      chan struct{}
}

// mark runs under the orchestrator lock and must not block.
func (b *stateBroadcaster) mark() {
	select {
	case b.dirty <- struct{}{}:
	default:
	}
}

func (b *stateBroadcaster) stop() {
	close(b.done)
}

func (b *stateBroadcaster) run() {
	for {
		select {
		case <-b.done:
			return
		case <-b.dirty:
		}
		b.send()

		if b.minPeriod <= 0 {
			continue
		}
		t := b.clock.NewTimer(b.minPeriod, "stream", "broadcast")
		select {
		case <-b.done:
			t.Stop()
			return
		case <-t.C:
		}
	}
}
