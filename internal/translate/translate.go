// Package translate maps backend events onto the fixed legacy
// notification vocabulary. The mapping is pure and stateless; events
// outside the table are deliberately dropped.
package translate

import (
	"github.com/whatsappx/wsplbridge/internal/backend"
	"github.com/whatsappx/wsplbridge/internal/gateway"
	"github.com/whatsappx/wsplbridge/internal/legacy"
)

// Translate converts one backend event into a notification envelope.
// The second return is false for unmapped events (drop, not an error).
func Translate(ev backend.Event) (gateway.Envelope, bool) {
	switch ev.Kind {
	case backend.EventMessage:
		if ev.Message == nil {
			return gateway.Envelope{}, false
		}
		if ev.Message.Broadcast {
			return envelope(gateway.KindNewBroadcastNoti, nil), true
		}
		body := map[string]any{
			"msgBody": ev.Message.Text,
			"from":    legacy.StripJID(ev.Message.ContactID),
			"type":    ev.Message.Type,
		}
		if ev.Message.AuthorID != "" {
			body["author"] = legacy.StripJID(ev.Message.AuthorID)
		}
		return envelope(gateway.KindNewMessageNoti, body), true

	case backend.EventAck:
		return envelope(gateway.KindAckMessage, map[string]any{
			"from":  legacy.StripJID(ev.ContactID),
			"msgId": ev.MessageID,
			"ack":   ev.AckLevel,
		}), true

	case backend.EventRevoke:
		return envelope(gateway.KindRevokeMessage, nil), true

	case backend.EventMembership:
		// Generic nudge: the client refetches the chat on NEW_MESSAGE.
		return envelope(gateway.KindNewMessage, nil), true

	case backend.EventPresence:
		return envelope(gateway.KindContactChangeState, map[string]any{
			"status": ev.Status,
			"from":   legacy.StripJID(ev.ContactID),
		}), true
	}

	// Unmapped event kind: dropped by policy.
	return gateway.Envelope{}, false
}

func envelope(kind string, body map[string]any) gateway.Envelope {
	return gateway.Envelope{
		Sender:   gateway.SenderGateway,
		Response: kind,
		Body:     body,
	}
}
