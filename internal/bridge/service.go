// Package bridge is the stateful core between the messaging backend and
// the two legacy-facing surfaces. It keeps room and message state warm,
// shapes backend data into legacy payloads, and turns backend events
// into notification-channel broadcasts.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/whatsappx/wsplbridge/internal/backend"
	"github.com/whatsappx/wsplbridge/internal/gateway"
	"github.com/whatsappx/wsplbridge/internal/legacy"
	"github.com/whatsappx/wsplbridge/internal/state"
	"github.com/whatsappx/wsplbridge/internal/transcode"
	"github.com/whatsappx/wsplbridge/internal/translate"
)

var (
	// ErrUnknownContact means no chat is known for the given contact id.
	ErrUnknownContact = errors.New("unknown contact id")
	// ErrNotGroup means a group operation targeted an individual chat.
	ErrNotGroup = errors.New("contact is not a group")
)

// Notifier receives translated notification envelopes. The TCP gateway
// satisfies it.
type Notifier interface {
	Broadcast(env gateway.Envelope)
}

// Service composes the backend client with the bridge-side caches and
// the notification sink.
type Service struct {
	logger   *slog.Logger
	client   backend.Client
	notifier Notifier
	trans    *transcode.Transcoder
	rooms    *state.RoomDirectory
	cache    *state.MessageCache
	mutes    *state.MuteStore
}

func New(log *slog.Logger, client backend.Client, notifier Notifier, trans *transcode.Transcoder,
	rooms *state.RoomDirectory, cache *state.MessageCache, mutes *state.MuteStore) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		logger:   log.With("component", "bridge"),
		client:   client,
		notifier: notifier,
		trans:    trans,
		rooms:    rooms,
		cache:    cache,
		mutes:    mutes,
	}
}

// Run starts the backend session and consumes its event stream until
// ctx is canceled or the stream closes.
func (s *Service) Run(ctx context.Context) error {
	if err := s.client.Start(ctx); err != nil {
		return fmt.Errorf("start backend: %w", err)
	}
	if err := s.refreshRooms(ctx); err != nil {
		s.logger.Warn("initial room refresh failed", "error", err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-s.client.Events():
			if !ok {
				return nil
			}
			s.handleEvent(ev)
		}
	}
}

// Ready reports whether the backend finished its initial sync.
func (s *Service) Ready() bool {
	return s.client.Ready()
}

func (s *Service) refreshRooms(ctx context.Context) error {
	chats, err := s.client.Chats(ctx)
	if err != nil {
		return err
	}
	for _, chat := range chats {
		s.rooms.Upsert(snapshotFromChat(chat))
	}
	return nil
}

func snapshotFromChat(chat backend.Chat) state.RoomSnapshot {
	return state.RoomSnapshot{
		RoomID:        chat.ID,
		ContactID:     chat.ContactID,
		IsGroup:       chat.IsGroup,
		Name:          chat.Name,
		AvatarRef:     chat.AvatarRef,
		LastEventTS:   chat.LastEventTS,
		LastMessageID: chat.LastMessageID,
		UnreadCount:   chat.UnreadCount,
		Participants:  chat.Participants,
	}
}

func (s *Service) handleEvent(ev backend.Event) {
	switch ev.Kind {
	case backend.EventMessage:
		if ev.Message == nil {
			return
		}
		s.absorbMessage(*ev.Message)
		s.emit(ev)
		// Every stored message is immediately acknowledged so the
		// client stops resending it.
		s.emit(backend.Event{
			Kind:      backend.EventAck,
			ContactID: ev.Message.ContactID,
			MessageID: ev.Message.ID,
			AckLevel:  ackFor(ev.Message.FromMe),
		})
	case backend.EventMembership:
		s.absorbMembership(ev)
		s.emit(ev)
	default:
		s.emit(ev)
	}
}

func (s *Service) emit(ev backend.Event) {
	env, ok := translate.Translate(ev)
	if !ok {
		s.logger.Debug("dropping unmapped backend event", "kind", ev.Kind)
		return
	}
	s.notifier.Broadcast(env)
}

func (s *Service) absorbMessage(m backend.Message) {
	snap, ok := s.rooms.Get(m.ChatID)
	if !ok {
		snap = state.RoomSnapshot{
			RoomID:    m.ChatID,
			ContactID: m.ContactID,
			IsGroup:   m.IsGroup,
		}
	}
	snap.LastEventTS = m.Timestamp
	snap.LastMessageID = m.ID
	if !m.FromMe {
		snap.UnreadCount++
	}
	s.rooms.Upsert(snap)

	s.cache.Add(state.MessageRecord{
		EventID:   m.ID,
		RoomID:    m.ChatID,
		ContactID: m.ContactID,
		IsGroup:   m.IsGroup,
		Payload:   s.shapeMessage(m),
	})
}

func (s *Service) absorbMembership(ev backend.Event) {
	if ev.UserID == "" {
		return
	}
	snap, ok := s.rooms.ByContactID(ev.ContactID)
	if !ok {
		return
	}
	if !slices.Contains(snap.Participants, ev.UserID) {
		snap.Participants = append(snap.Participants, ev.UserID)
		s.rooms.Upsert(snap)
	}
}

// shapeMessage converts a backend message and resolves its reply
// context against the cache.
func (s *Service) shapeMessage(m backend.Message) legacy.Message {
	msg := convertMessage(m)
	if m.ReplyToID == "" {
		return msg
	}
	quoted, ok := s.cache.Message(m.ReplyToID)
	if !ok {
		return msg
	}
	msg.HasQuotedMsg = true
	msg.Data.QuotedStanzaID = m.ReplyToID
	msg.Data.QuotedMsg = &legacy.QuotedMessage{
		Body: quoted.Payload.Body,
		Type: quoted.Payload.Type,
	}
	participant := quoted.Payload.Data.Author
	if participant.User == "" {
		participant = legacy.Participant{User: quoted.ContactID}
	}
	msg.Data.QuotedParticipant = &participant
	return msg
}
