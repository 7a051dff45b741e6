package bridge

import (
	"github.com/whatsappx/wsplbridge/internal/backend"
	"github.com/whatsappx/wsplbridge/internal/legacy"
	"github.com/whatsappx/wsplbridge/internal/state"
)

// ackDelivered is reported for incoming messages, ackRead for own ones.
const (
	ackDelivered = 2
	ackRead      = 4
)

func ackFor(fromMe bool) int {
	if fromMe {
		return ackRead
	}
	return ackDelivered
}

// emptyMessage is the placeholder lastMessage for chats with no cached
// history. The client tolerates zero values but not a missing object.
func emptyMessage() legacy.Message {
	return legacy.Message{Type: "chat"}
}

// convertMessage shapes a backend message into the legacy record,
// promoting a media caption into the body. Quoted-message context is
// resolved separately because it needs the cache.
func convertMessage(m backend.Message) legacy.Message {
	remote := legacy.JID(m.ContactID, m.IsGroup)
	msg := legacy.Message{
		Type:      m.Type,
		Body:      m.Text,
		Timestamp: m.Timestamp,
		FromMe:    m.FromMe,
		Ack:       ackFor(m.FromMe),
		Duration:  m.Duration,
		ID: legacy.MessageID{
			Serialized: m.ID,
			FromMe:     m.FromMe,
			Remote:     remote,
			ID:         m.ID,
		},
		Data: legacy.MessageData{
			MimeType: m.MimeType,
			Size:     m.Size,
			Width:    m.Width,
			Height:   m.Height,
			Caption:  m.Caption,
			Lat:      m.Latitude,
			Lng:      m.Longitude,
			MediaURL: m.MediaRef,
		},
	}
	if m.AuthorID != "" {
		author := legacy.Participant{User: m.AuthorID}
		msg.Data.Author = author
		msg.ID.Participant = author
	}
	msg.PromoteCaption()
	return msg
}

func chatFromSnapshot(snap state.RoomSnapshot, muteExpiration int64, last legacy.Message) legacy.Chat {
	return legacy.Chat{
		ID:             legacy.ChatID{User: snap.ContactID, Server: legacy.Server(snap.IsGroup)},
		Name:           snap.Name,
		IsGroup:        snap.IsGroup,
		Timestamp:      snap.LastEventTS,
		MuteExpiration: muteExpiration,
		UnreadCount:    snap.UnreadCount,
		LastMessage:    last,
		// idServer carries the full scoped identifier, not the bare
		// server token.
		IDServer: legacy.JID(snap.ContactID, snap.IsGroup),
	}
}

func contactFromSnapshot(snap state.RoomSnapshot, about string) legacy.Contact {
	return contact(snap.ContactID, snap.Name, about, false)
}

func contactFromProfile(p backend.Profile) legacy.Contact {
	return contact(p.ContactID, p.DisplayName, p.StatusMessage, false)
}

// selfContact is the fixed record for the bridged account. The legacy
// client shows it under the literal name "You", never the backend
// display name.
func selfContact(userID string) legacy.Contact {
	return contact(legacy.ContactIDFromUser(userID), "You", "", true)
}

func contact(contactID, name, about string, isMe bool) legacy.Contact {
	return legacy.Contact{
		ID:              legacy.ChatID{User: contactID, Server: legacy.Server(false)},
		Number:          contactID,
		Name:            name,
		ShortName:       name,
		Pushname:        name,
		FormattedNumber: name,
		IsWAContact:     true,
		IsMyContact:     true,
		IsMe:            isMe,
		ProfileAbout:    about,
		CommonGroups:    []string{},
	}
}
