package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/whatsappx/wsplbridge/internal/legacy"
)

// ContactsHandler serves the contact book and per-contact account
// toggles.
type ContactsHandler struct {
	bridge Bridge
	logger *slog.Logger
}

func NewContactsHandler(log *slog.Logger, bridge Bridge) *ContactsHandler {
	return &ContactsHandler{bridge: bridge, logger: log.With(slog.String("handler", "contacts"))}
}

func (h *ContactsHandler) Register(e *echo.Echo) {
	getAndPost(e, "/getContacts", h.GetContacts)
	e.POST("/setBlock/:contact_id", h.SetBlock)
	e.POST("/setStatusInfo/:status", h.SetStatusInfo)
}

type contactListResponse struct {
	ContactList []legacy.Contact `json:"contactList"`
}

func (h *ContactsHandler) GetContacts(c echo.Context) error {
	contacts, err := h.bridge.Contacts(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, contactListResponse{ContactList: contacts})
}

func (h *ContactsHandler) SetBlock(c echo.Context) error {
	blocked, err := h.bridge.ToggleBlock(c.Request().Context(), c.Param("contact_id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"response": "ok", "blocked": blocked})
}

func (h *ContactsHandler) SetStatusInfo(c echo.Context) error {
	if err := h.bridge.SetStatusMessage(c.Request().Context(), c.Param("status")); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, okResponse)
}
