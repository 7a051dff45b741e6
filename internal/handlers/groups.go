package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/whatsappx/wsplbridge/internal/legacy"
)

// GroupsHandler serves group listings and group membership operations.
type GroupsHandler struct {
	bridge Bridge
	logger *slog.Logger
}

func NewGroupsHandler(log *slog.Logger, bridge Bridge) *GroupsHandler {
	return &GroupsHandler{bridge: bridge, logger: log.With(slog.String("handler", "groups"))}
}

func (h *GroupsHandler) Register(e *echo.Echo) {
	getAndPost(e, "/getGroups", h.GetGroups)
	getAndPost(e, "/getGroupInfo/:contact_id", h.GetGroupInfo)
	e.POST("/leaveGroup/:group_id", h.LeaveGroup)
	e.POST("/createRoom", h.CreateRoom)
}

type groupListResponse struct {
	GroupList []legacy.Chat `json:"groupList"`
}

func (h *GroupsHandler) GetGroups(c echo.Context) error {
	groups, err := h.bridge.Groups(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, groupListResponse{GroupList: groups})
}

func (h *GroupsHandler) GetGroupInfo(c echo.Context) error {
	chat, err := h.bridge.GroupInfo(c.Request().Context(), c.Param("contact_id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, chat)
}

func (h *GroupsHandler) LeaveGroup(c echo.Context) error {
	if err := h.bridge.LeaveGroup(c.Request().Context(), c.Param("group_id")); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, okResponse)
}

type createRoomPayload struct {
	Name     string   `json:"name"`
	Invitees []string `json:"invitees"`
}

func (h *GroupsHandler) CreateRoom(c echo.Context) error {
	var payload createRoomPayload
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if payload.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "room name is required")
	}
	roomID, err := h.bridge.CreateChat(c.Request().Context(), payload.Name, payload.Invitees)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"room_id": roomID})
}
