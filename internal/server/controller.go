package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/velora/chat-core/internal/server/middleware"
	"github.com/velora/chat-core/internal/usecase"
)

// Controller is the REST read-and-moderation surface next to the socket:
// channel listing, history pages, and message edit/delete.
type Controller interface {
	Health(c echo.Context) error
	GetChannels(c echo.Context) error
	GetChannelMessages(c echo.Context) error
	EditMessage(c echo.Context) error
	DeleteMessage(c echo.Context) error
}

type controller struct {
	chat      *usecase.ChatUseCase
	directory *usecase.DirectoryUseCase
}

func NewController(chat *usecase.ChatUseCase, directory *usecase.DirectoryUseCase) Controller {
	return &controller{
		chat:      chat,
		directory: directory,
	}
}

func (h *controller) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "chat-core",
	})
}

func (h *controller) GetChannels(c echo.Context) error {
	user := middleware.UserFromContext(c)

	channels, err := h.directory.ListChannelsForUser(c.Request().Context(), user.ID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, channels)
}

type channelMessagesRequest struct {
	ChannelID string `param:"id" validate:"required,objectid"`
	Before    string `query:"before"`
	Limit     int    `query:"limit"`
}

func (h *controller) GetChannelMessages(c echo.Context) error {
	var req channelMessagesRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	user := middleware.UserFromContext(c)
	history, err := h.chat.ChannelHistory(c.Request().Context(), user, c.RealIP(), req.ChannelID, req.Before, req.Limit)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, history)
}

type editMessageRequest struct {
	MessageID string `param:"id" validate:"required,objectid"`
	Content   string `json:"content" validate:"required"`
}

func (h *controller) EditMessage(c echo.Context) error {
	var req editMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	user := middleware.UserFromContext(c)
	message, err := h.chat.EditMessage(c.Request().Context(), user, c.RealIP(), req.MessageID, req.Content)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, message)
}

func (h *controller) DeleteMessage(c echo.Context) error {
	user := middleware.UserFromContext(c)
	if err := h.chat.DeleteMessage(c.Request().Context(), user, c.RealIP(), c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
