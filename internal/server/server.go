package server

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/whatsappx/wsplbridge/internal/handlers"
	"github.com/whatsappx/wsplbridge/internal/logger"
)

type Server struct {
	echo *echo.Echo
	addr string
}

func NewServer(addr string, statusHandler *handlers.StatusHandler, chatsHandler *handlers.ChatsHandler, contactsHandler *handlers.ContactsHandler, groupsHandler *handlers.GroupsHandler, mediaHandler *handlers.MediaHandler, sendHandler *handlers.SendHandler) *Server {
	if addr == "" {
		addr = ":7301"
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = legacyErrorHandler

	if statusHandler != nil {
		statusHandler.Register(e)
	}
	if chatsHandler != nil {
		chatsHandler.Register(e)
	}
	if contactsHandler != nil {
		contactsHandler.Register(e)
	}
	if groupsHandler != nil {
		groupsHandler.Register(e)
	}
	if mediaHandler != nil {
		mediaHandler.Register(e)
	}
	if sendHandler != nil {
		sendHandler.Register(e)
	}

	return &Server{
		echo: e,
		addr: addr,
	}
}

// legacyErrorHandler writes errors as plain text; the legacy client
// displays the body verbatim and cannot parse echo's JSON error shape.
// Errors after the response headers went out are logged, never re-sent.
func legacyErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		logger.L.Warn("error after response committed", "path", c.Path(), "error", err)
		return
	}
	code := http.StatusInternalServerError
	message := err.Error()
	if httpErr, ok := err.(*echo.HTTPError); ok {
		code = httpErr.Code
		if msg, ok := httpErr.Message.(string); ok {
			message = msg
		}
	}
	if err := c.String(code, message); err != nil {
		logger.L.Error("failed to write error response", "error", err)
	}
}

func (s *Server) Start() error {
	return s.echo.Start(s.addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
