package handler

import (
	"explore-state-be/internal/pkg/logger"
	"explore-state-be/internal/pkg/serverutils"
	"explore-state-be/internal/service"
	internalWS "explore-state-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

const streamModule = "ExploreStreamHandler"

// ExploreStreamHandler upgrades a session's websocket. The peer receives a
// state snapshot on connect, then state, location and event messages.
type ExploreStreamHandler struct {
	explore service.IExploreService
	stream  service.IExploreStreamService
	hub     *internalWS.Hub
	logger  logger.ILogger
}

func NewExploreStreamHandler(explore service.IExploreService, stream service.IExploreStreamService, hub *internalWS.Hub, log logger.ILogger) *ExploreStreamHandler {
	return &ExploreStreamHandler{
		explore: explore,
		stream:  stream,
		hub:     hub,
		logger:  log,
	}
}

func (h *ExploreStreamHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/explore/v1/sessions/:id/stream", h.ServeWs)
}

// ServeWs authenticates the handshake, which browsers can only do through
// the "token" query parameter, and attaches the socket to the session.
func (h *ExploreStreamHandler) ServeWs(c *fiber.Ctx) error {
	userID, err := serverutils.ParseUserToken(serverutils.BearerToken(c))
	if err != nil {
		h.logger.Warn(streamModule, "Rejected websocket handshake", map[string]interface{}{"error": err.Error()})
		return c.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(fiber.StatusUnauthorized, err.Error()))
	}

	sessionID := c.Params("id")
	sess, err := h.explore.Session(userID, sessionID)
	if err != nil {
		return err
	}

	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	return websocket.New(func(conn *websocket.Conn) {
		h.logger.Info(streamModule, "Starting session stream", map[string]interface{}{
			"session": sessionID,
			"user_id": userID.String(),
		})
		internalWS.ServeWs(h.hub, conn, sessionID, userID, func() {
			h.stream.SendSnapshot(sess)
		})
		h.logger.Info(streamModule, "Session stream ended", map[string]interface{}{"session": sessionID})
	})(c)
}
