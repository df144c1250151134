package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Windi-Fikriyansyah/gigbid/internal/errs"
	"github.com/Windi-Fikriyansyah/gigbid/internal/middleware"
	"github.com/Windi-Fikriyansyah/gigbid/internal/realtime"
)

const localWSUser = "wsUserId"

type NotificationHandler struct {
	Hub    *realtime.Hub
	Tokens middleware.AccessVerifier
	Log    zerolog.Logger
}

func NewNotificationHandler(hub *realtime.Hub, tokens middleware.AccessVerifier, log zerolog.Logger) *NotificationHandler {
	return &NotificationHandler{Hub: hub, Tokens: tokens, Log: log}
}

func (h *NotificationHandler) Routes(r fiber.Router) {
	r.Get("/ws/notifications", h.Upgrade, websocket.New(h.WebSocketHandler))
}

// Upgrade authenticates the handshake. Browsers cannot set headers on a
// websocket request, so the access token comes from ?token= or the cookie.
func (h *NotificationHandler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	raw := c.Query("token")
	if raw == "" {
		raw = c.Cookies(middleware.AccessCookie)
	}
	if raw == "" {
		return errs.Unauthorized("missing access token")
	}
	claims, err := h.Tokens.VerifyAccessToken(raw)
	if err != nil {
		return err
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return errs.Unauthorized("invalid access token")
	}

	c.Locals(localWSUser, userID)
	return c.Next()
}

func (h *NotificationHandler) WebSocketHandler(c *websocket.Conn) {
	userID, ok := c.Locals(localWSUser).(uuid.UUID)
	if !ok {
		_ = c.Close()
		return
	}

	client := realtime.NewClient(userID, realtime.NewWebSocketConn(c))
	h.Log.Debug().Str("user_id", userID.String()).Str("client_id", client.ID).Msg("websocket connected")
	h.Hub.Serve(client)
	h.Log.Debug().Str("user_id", userID.String()).Str("client_id", client.ID).Msg("websocket disconnected")
}
