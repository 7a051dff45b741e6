package handlers

import (
	"crypto/md5"
	"encoding/hex"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// MediaHandler serves avatars, message attachments, and the transcoded
// audio/video variants the legacy client can actually play.
type MediaHandler struct {
	bridge Bridge
	logger *slog.Logger
}

func NewMediaHandler(log *slog.Logger, bridge Bridge) *MediaHandler {
	return &MediaHandler{bridge: bridge, logger: log.With(slog.String("handler", "media"))}
}

func (h *MediaHandler) Register(e *echo.Echo) {
	getAndPost(e, "/getProfileImg/:contact_id", h.ProfileImg)
	getAndPost(e, "/getGroupImg/:contact_id", h.ProfileImg)
	getAndPost(e, "/getProfileImgHash/:contact_id", h.ProfileImgHash)
	getAndPost(e, "/getGroupImgHash/:contact_id", h.ProfileImgHash)
	getAndPost(e, "/getAudioData/:audio_id", h.AudioData)
	getAndPost(e, "/getMediaData/:media_id", h.MediaData)
	getAndPost(e, "/getVideoThumbnail/:media_id", h.VideoThumbnail)
}

func (h *MediaHandler) ProfileImg(c echo.Context) error {
	data, mime, err := h.bridge.ProfileImage(c.Request().Context(), c.Param("contact_id"))
	if err != nil {
		return httpError(err)
	}
	return c.Blob(http.StatusOK, mime, data)
}

// ProfileImgHash returns the md5 of the avatar bytes, or the literal
// string "null" when there is none. The client compares hashes to skip
// re-downloading unchanged avatars.
func (h *MediaHandler) ProfileImgHash(c echo.Context) error {
	data, _, err := h.bridge.ProfileImage(c.Request().Context(), c.Param("contact_id"))
	if err != nil {
		return c.String(http.StatusOK, "null")
	}
	sum := md5.Sum(data)
	return c.String(http.StatusOK, hex.EncodeToString(sum[:]))
}

func (h *MediaHandler) AudioData(c echo.Context) error {
	out, err := h.bridge.AudioAsMP3(c.Request().Context(), c.Param("audio_id"))
	if err != nil {
		return httpError(err)
	}
	return streamOutput(c, out)
}

// MediaData returns an attachment as stored, except video, which is
// rewrapped into the QuickTime container the client's player needs.
func (h *MediaHandler) MediaData(c echo.Context) error {
	ctx := c.Request().Context()
	data, mime, err := h.bridge.MessageMedia(ctx, c.Param("media_id"))
	if err != nil {
		return httpError(err)
	}
	if strings.HasPrefix(mime, "video/") {
		out, err := h.bridge.VideoAsQuickTime(ctx, data)
		if err != nil {
			return httpError(err)
		}
		return streamOutput(c, out)
	}
	return c.Blob(http.StatusOK, mime, data)
}

func (h *MediaHandler) VideoThumbnail(c echo.Context) error {
	out, err := h.bridge.VideoThumbnail(c.Request().Context(), c.Param("media_id"))
	if err != nil {
		return httpError(err)
	}
	return streamOutput(c, out)
}
