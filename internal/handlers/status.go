package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

// placeholderQR is a 1x1 transparent PNG data URI. The client polls /qr
// until pairing completes; a token-authenticated backend has no QR to
// show, so an inert image keeps the pairing screen happy.
const placeholderQR = "data:image/png;base64," +
	"iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR4nGMAAQAABQABDQottAAAAABJRU5ErkJggg=="

// StatusHandler serves the liveness and pairing probes.
type StatusHandler struct {
	bridge Bridge
	logger *slog.Logger
}

func NewStatusHandler(log *slog.Logger, bridge Bridge) *StatusHandler {
	return &StatusHandler{bridge: bridge, logger: log.With(slog.String("handler", "status"))}
}

func (h *StatusHandler) Register(e *echo.Echo) {
	e.GET("/", h.Index)
	e.GET("/loggedInYet", h.LoggedInYet)
	e.GET("/qr", h.QR)
}

func (h *StatusHandler) Index(c echo.Context) error {
	return c.String(http.StatusOK, "WhatsApp Legacy Matrix bridge")
}

func (h *StatusHandler) LoggedInYet(c echo.Context) error {
	if h.bridge.Ready() {
		return c.String(http.StatusOK, "true")
	}
	return c.String(http.StatusOK, "false")
}

func (h *StatusHandler) QR(c echo.Context) error {
	if h.bridge.Ready() {
		return c.String(http.StatusOK, "Success")
	}
	return c.String(http.StatusOK, placeholderQR)
}
