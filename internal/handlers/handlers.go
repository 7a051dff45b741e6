// Package handlers exposes the REST facade the legacy mobile client
// talks to. Routes, parameter names, and response shapes follow the
// client's expectations exactly, including the GET/POST registration of
// most read endpoints.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/whatsappx/wsplbridge/internal/backend"
	"github.com/whatsappx/wsplbridge/internal/bridge"
	"github.com/whatsappx/wsplbridge/internal/legacy"
	"github.com/whatsappx/wsplbridge/internal/state"
	"github.com/whatsappx/wsplbridge/internal/transcode"
)

// Bridge is the service surface the handlers consume.
type Bridge interface {
	Ready() bool

	Chats(ctx context.Context) (bridge.ChatListing, error)
	Contacts(ctx context.Context) ([]legacy.Contact, error)
	Groups(ctx context.Context) ([]legacy.Chat, error)
	GroupInfo(ctx context.Context, contactID string) (legacy.Chat, error)
	ChatMessages(ctx context.Context, contactID string, lightweight bool) ([]legacy.Message, error)
	SyncChat(ctx context.Context, contactID string) error
	MessageRecord(messageID string) (state.MessageRecord, error)

	SendText(ctx context.Context, contactID, text, replyTo string) (string, error)
	SendImage(ctx context.Context, contactID string, data []byte, caption, replyTo string) (string, error)
	SendVoiceNote(ctx context.Context, contactID string, data []byte, replyTo string) (string, error)

	SetTyping(ctx context.Context, contactID string, typing bool) error
	MarkRead(ctx context.Context, contactID string) error
	DeleteChat(ctx context.Context, contactID string) error
	DeleteMessage(ctx context.Context, messageID string) error
	LeaveGroup(ctx context.Context, contactID string) error
	CreateChat(ctx context.Context, name string, invitees []string) (string, error)

	SetMuteLevel(contactID string, level int) error
	ToggleBlock(ctx context.Context, contactID string) (bool, error)
	SetStatusMessage(ctx context.Context, status string) error

	MessageMedia(ctx context.Context, messageID string) ([]byte, string, error)
	AudioAsMP3(ctx context.Context, messageID string) (*transcode.Output, error)
	VideoAsQuickTime(ctx context.Context, data []byte) (*transcode.Output, error)
	VideoThumbnail(ctx context.Context, messageID string) (*transcode.Output, error)
	ProfileImage(ctx context.Context, contactID string) ([]byte, string, error)
}

// okResponse is what mutating endpoints return on success.
var okResponse = map[string]string{"response": "ok"}

// boolQuery interprets the truthy query values the legacy client sends.
func boolQuery(value string) bool {
	switch value {
	case "1", "true", "True", "yes":
		return true
	}
	return false
}

// getAndPost registers the same handler under both verbs; the legacy
// client is inconsistent about which one it uses per endpoint.
func getAndPost(e *echo.Echo, path string, h echo.HandlerFunc) {
	e.GET(path, h)
	e.POST(path, h)
}

// httpError maps service errors onto the status codes the client
// handles: 404 for absent entities, 400 for scope misuse, 500 with the
// underlying text for everything else.
func httpError(err error) error {
	switch {
	case errors.Is(err, bridge.ErrUnknownContact),
		errors.Is(err, backend.ErrNotFound),
		errors.Is(err, backend.ErrNoMedia):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, bridge.ErrNotGroup):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

// streamOutput sends a transcode result and releases its artifacts when
// the response body is done.
func streamOutput(c echo.Context, out *transcode.Output) error {
	defer out.Close()
	f, err := out.Open()
	if err != nil {
		return httpError(err)
	}
	defer f.Close()
	return c.Stream(http.StatusOK, out.ContentType, f)
}
