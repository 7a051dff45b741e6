package handlers

import (
	"encoding/base64"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// SendHandler serves message submission and the per-chat state pokes
// (typing, mute, delete).
type SendHandler struct {
	bridge Bridge
	logger *slog.Logger
}

func NewSendHandler(log *slog.Logger, bridge Bridge) *SendHandler {
	return &SendHandler{bridge: bridge, logger: log.With(slog.String("handler", "send"))}
}

func (h *SendHandler) Register(e *echo.Echo) {
	e.POST("/sendMessage/:contact_id", h.SendMessage)
	e.POST("/setTypingStatus/:contact_id", h.SetTypingStatus)
	e.POST("/clearState/:contact_id", h.ClearState)
	e.POST("/setMute/:contact_id/:mute_level", h.SetMute)
	e.POST("/deleteMessage/:message_id/:everyone", h.DeleteMessage)
}

type sendMessagePayload struct {
	MessageText     string `json:"messageText"`
	MediaBase64     string `json:"mediaBase64"`
	MimeType        string `json:"mimeType"`
	ReplyTo         string `json:"replyTo"`
	SendAsVoiceNote bool   `json:"sendAsVoiceNote"`
	SendAsPhoto     bool   `json:"sendAsPhoto"`
}

// SendMessage dispatches on the payload flags: voice note and photo
// both carry base64 media, everything else is plain text.
func (h *SendHandler) SendMessage(c echo.Context) error {
	contactID := c.Param("contact_id")
	var payload sendMessagePayload
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()

	switch {
	case payload.SendAsVoiceNote && payload.MediaBase64 != "":
		data, err := base64.StdEncoding.DecodeString(payload.MediaBase64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid media encoding")
		}
		if _, err := h.bridge.SendVoiceNote(ctx, contactID, data, payload.ReplyTo); err != nil {
			return httpError(err)
		}
	case payload.SendAsPhoto && payload.MediaBase64 != "":
		data, err := base64.StdEncoding.DecodeString(payload.MediaBase64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid media encoding")
		}
		if _, err := h.bridge.SendImage(ctx, contactID, data, payload.MessageText, payload.ReplyTo); err != nil {
			return httpError(err)
		}
	case payload.MessageText != "":
		if _, err := h.bridge.SendText(ctx, contactID, payload.MessageText, payload.ReplyTo); err != nil {
			return httpError(err)
		}
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "unsupported message payload")
	}
	return c.JSON(http.StatusOK, okResponse)
}

func (h *SendHandler) SetTypingStatus(c echo.Context) error {
	if err := h.bridge.SetTyping(c.Request().Context(), c.Param("contact_id"), true); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{})
}

func (h *SendHandler) ClearState(c echo.Context) error {
	if err := h.bridge.SetTyping(c.Request().Context(), c.Param("contact_id"), false); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{})
}

func (h *SendHandler) SetMute(c echo.Context) error {
	level, err := strconv.Atoi(c.Param("mute_level"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid mute level")
	}
	if err := h.bridge.SetMuteLevel(c.Param("contact_id"), level); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, okResponse)
}

// DeleteMessage redacts on the backend regardless of the everyone flag;
// the backend has no local-only deletion.
func (h *SendHandler) DeleteMessage(c echo.Context) error {
	if err := h.bridge.DeleteMessage(c.Request().Context(), c.Param("message_id")); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, okResponse)
}
