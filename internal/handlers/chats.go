package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/whatsappx/wsplbridge/internal/legacy"
)

// ChatsHandler serves chat listings, message history, and the per-chat
// mutations.
type ChatsHandler struct {
	bridge Bridge
	logger *slog.Logger
}

func NewChatsHandler(log *slog.Logger, bridge Bridge) *ChatsHandler {
	return &ChatsHandler{bridge: bridge, logger: log.With(slog.String("handler", "chats"))}
}

func (h *ChatsHandler) Register(e *echo.Echo) {
	getAndPost(e, "/getChats", h.GetChats)
	getAndPost(e, "/getBroadcasts", h.GetBroadcasts)
	getAndPost(e, "/getChatMessages/:contact_id", h.GetChatMessages)
	getAndPost(e, "/getQuotedMessage/:message_id", h.GetQuotedMessage)
	e.POST("/syncChat/:contact_id", h.SyncChat)
	e.POST("/deleteChat/:contact_id", h.DeleteChat)
	e.POST("/readChat/:contact_id", h.ReadChat)
	e.POST("/seenBroadcast/:message_id", h.SeenBroadcast)
}

type chatListResponse struct {
	ChatList  []legacy.Chat `json:"chatList"`
	GroupList []legacy.Chat `json:"groupList"`
}

func (h *ChatsHandler) GetChats(c echo.Context) error {
	listing, err := h.bridge.Chats(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, chatListResponse{
		ChatList:  listing.Chats,
		GroupList: listing.Groups,
	})
}

// GetBroadcasts always reports an empty list: the backend has no
// broadcast-list concept, and the client treats an empty result as
// "none configured".
func (h *ChatsHandler) GetBroadcasts(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"broadcastList": []any{}})
}

type chatMessagesResponse struct {
	ChatMessages []legacy.Message `json:"chatMessages"`
	FromNumber   string           `json:"fromNumber"`
}

func (h *ChatsHandler) GetChatMessages(c echo.Context) error {
	contactID := c.Param("contact_id")
	lightweight := boolQuery(c.QueryParam("isLight"))
	messages, err := h.bridge.ChatMessages(c.Request().Context(), contactID, lightweight)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, chatMessagesResponse{
		ChatMessages: messages,
		FromNumber:   contactID,
	})
}

type quotedRef struct {
	ID   string `json:"id"`
	Body string `json:"body"`
	Type string `json:"type"`
}

type quotedMessageResponse struct {
	OriginalMessage string    `json:"originalMessage"`
	QuotedMessage   quotedRef `json:"quotedMessage"`
}

func (h *ChatsHandler) GetQuotedMessage(c echo.Context) error {
	record, err := h.bridge.MessageRecord(c.Param("message_id"))
	if err != nil {
		return httpError(err)
	}
	quoted := record.Payload.Data.QuotedMsg
	if quoted == nil {
		return echo.NewHTTPError(http.StatusNotFound, "quoted message not available")
	}
	return c.JSON(http.StatusOK, quotedMessageResponse{
		OriginalMessage: record.Payload.Body,
		QuotedMessage: quotedRef{
			ID:   record.Payload.Data.QuotedStanzaID,
			Body: quoted.Body,
			Type: quoted.Type,
		},
	})
}

func (h *ChatsHandler) SyncChat(c echo.Context) error {
	if err := h.bridge.SyncChat(c.Request().Context(), c.Param("contact_id")); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{})
}

func (h *ChatsHandler) DeleteChat(c echo.Context) error {
	if err := h.bridge.DeleteChat(c.Request().Context(), c.Param("contact_id")); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, okResponse)
}

func (h *ChatsHandler) ReadChat(c echo.Context) error {
	if err := h.bridge.MarkRead(c.Request().Context(), c.Param("contact_id")); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, okResponse)
}

// SeenBroadcast is accepted and ignored; there are no broadcasts to
// mark seen.
func (h *ChatsHandler) SeenBroadcast(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{})
}
