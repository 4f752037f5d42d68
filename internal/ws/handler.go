package ws

import (
	"context"
	"net/http"
	"strings"

	log "github.com/carousell/ct-go/pkg/logger/log_context"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/velora/chat-core/internal/config"
	"github.com/velora/chat-core/internal/models"
	"github.com/velora/chat-core/internal/ratelimit"
	"github.com/velora/chat-core/internal/usecase"
)

// Handler upgrades authenticated HTTP requests into chat sessions.
type Handler struct {
	conf     config.ServerConfig
	upgrader websocket.Upgrader
	hub      *Hub
	auth     *usecase.AuthUseCase
	chat     *usecase.ChatUseCase
	limits   *ratelimit.Bank
}

func NewHandler(conf *config.Config, hub *Hub, auth *usecase.AuthUseCase, chat *usecase.ChatUseCase, limits *ratelimit.Bank) *Handler {
	h := &Handler{
		conf:   conf.Server,
		hub:    hub,
		auth:   auth,
		chat:   chat,
		limits: limits,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(conf.Server.AllowedOrigins),
	}
	return h
}

// Serve is the websocket endpoint. Authentication happens before the
// upgrade so a rejected handshake stays a plain HTTP error.
func (h *Handler) Serve(c echo.Context) error {
	ctx := c.Request().Context()
	ip := c.RealIP()

	token := extractToken(c)
	if token == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing session token")
	}

	user, err := h.auth.Authenticate(ctx, token, ip)
	if err != nil {
		log.Warnw(ctx, "websocket auth rejected", "ip", ip, "error", err)
		if err == models.ErrRateLimited {
			return echo.NewHTTPError(http.StatusTooManyRequests, "too many connection attempts")
		}
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication failed")
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Warnw(ctx, "websocket upgrade failed", "ip", ip, "error", err)
		return nil
	}

	connectionID := uuid.NewString()
	client := newClient(h.hub, conn, user.ID, connectionID, ip, h.conf)
	session := newSession(user, connectionID, ip, client, h.hub, h.chat, h.limits)
	client.session = session

	h.hub.Register(client)
	channels, err := h.chat.RegisterSession(ctx, user, connectionID)
	if err != nil {
		log.Errorw(ctx, "session registration failed", "user_id", user.ID.Hex(), "error", err)
		h.hub.Unregister(client)
		conn.Close()
		return nil
	}

	// the request context dies when this handler returns; the pumps live
	// for the whole connection
	pumpCtx := context.Background()

	// the write pump must be running before any ack is enqueued
	go client.writePump(pumpCtx)
	for _, channel := range channels {
		h.hub.Emit(client, models.EventChannelJoined, models.ChannelAckEvent{ChannelID: channel.ID.Hex()})
	}
	go client.readPump(pumpCtx)
	return nil
}

func extractToken(c echo.Context) string {
	if auth := c.Request().Header.Get("Authorization"); auth != "" {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return c.QueryParam("token")
}

func originChecker(allowed []string) func(*http.Request) bool {
	for _, origin := range allowed {
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
	}
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		set[origin] = struct{}{}
	}
	return func(r *http.Request) bool {
		_, ok := set[r.Header.Get("Origin")]
		return ok
	}
}
