package matrix

import (
	"strconv"
	"strings"

	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/whatsappx/wsplbridge/internal/backend"
	"github.com/whatsappx/wsplbridge/internal/legacy"
)

// legacyType maps a Matrix message onto the type vocabulary the legacy
// client knows. Audio with the voice-message marker becomes a push-to-
// talk note.
func legacyType(content *event.MessageEventContent) string {
	switch content.MsgType {
	case event.MsgText, event.MsgNotice, event.MsgEmote:
		return "chat"
	case event.MsgImage:
		return "image"
	case event.MsgVideo:
		return "video"
	case event.MsgAudio:
		if content.MSC3245Voice != nil {
			return "ptt"
		}
		return "audio"
	case event.MsgFile:
		return "document"
	case event.MsgLocation:
		return "location"
	}
	return "chat"
}

func isMedia(msgType string) bool {
	switch msgType {
	case "image", "video", "audio", "ptt", "document", "sticker":
		return true
	}
	return false
}

// parseGeoURI extracts latitude and longitude from a geo: URI. Malformed
// URIs yield nil coordinates rather than an error.
func parseGeoURI(uri string) (lat, lng *float64) {
	coords, ok := strings.CutPrefix(uri, "geo:")
	if !ok {
		return nil, nil
	}
	if i := strings.IndexByte(coords, ';'); i >= 0 {
		coords = coords[:i]
	}
	parts := strings.Split(coords, ",")
	if len(parts) < 2 {
		return nil, nil
	}
	la, err1 := strconv.ParseFloat(parts[0], 64)
	ln, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil {
		return nil, nil
	}
	return &la, &ln
}

// toMessage converts one Matrix room event into the backend-neutral
// message shape. isGroup scoping comes from the caller because the
// event itself does not carry it.
func (c *Client) toMessage(evt *event.Event, isGroup bool) backend.Message {
	content := evt.Content.AsMessage()
	msgType := legacyType(content)
	if evt.Type == event.EventSticker {
		msgType = "sticker"
	}

	m := backend.Message{
		ID:        evt.ID.String(),
		ChatID:    evt.RoomID.String(),
		ContactID: legacy.ContactIDFromRoom(evt.RoomID.String()),
		IsGroup:   isGroup,
		FromMe:    evt.Sender == c.mx.UserID,
		Type:      msgType,
		Timestamp: evt.Timestamp / 1000,
	}
	if isGroup && !m.FromMe {
		m.AuthorID = legacy.ContactIDFromUser(evt.Sender.String())
	}
	if replyTo := content.RelatesTo.GetReplyTo(); replyTo != "" {
		m.ReplyToID = replyTo.String()
	}

	if isMedia(msgType) {
		m.Caption = content.Body
		m.MediaRef = string(content.URL)
		if info := content.Info; info != nil {
			m.MimeType = info.MimeType
			m.Size = int64(info.Size)
			m.Width = info.Width
			m.Height = info.Height
			m.Duration = info.Duration / 1000
		}
	} else {
		m.Text = content.Body
	}
	if msgType == "location" {
		m.Text = content.Body
		m.Caption = ""
		m.Latitude, m.Longitude = parseGeoURI(content.GeoURI)
	}
	return m
}

func contentURI(ref string) (id.ContentURI, error) {
	return id.ParseContentURI(ref)
}
