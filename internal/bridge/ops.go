package bridge

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/whatsappx/wsplbridge/internal/backend"
	"github.com/whatsappx/wsplbridge/internal/legacy"
	"github.com/whatsappx/wsplbridge/internal/state"
	"github.com/whatsappx/wsplbridge/internal/transcode"
)

// lightweightHistoryLimit caps /getChatMessages?isLight responses.
const lightweightHistoryLimit = 100

// ChatListing splits the chat inventory the way /getChats reports it.
type ChatListing struct {
	Chats  []legacy.Chat
	Groups []legacy.Chat
}

// Chats returns every known chat, newest activity first, split into
// individual chats and groups.
func (s *Service) Chats(ctx context.Context) (ChatListing, error) {
	snaps := s.rooms.All()
	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].LastEventTS > snaps[j].LastEventTS
	})
	listing := ChatListing{Chats: []legacy.Chat{}, Groups: []legacy.Chat{}}
	for _, snap := range snaps {
		chat := s.chatFor(snap)
		if snap.IsGroup {
			listing.Groups = append(listing.Groups, chat)
		} else {
			listing.Chats = append(listing.Chats, chat)
		}
	}
	return listing, nil
}

// Groups returns the group chats with their descriptions resolved.
// Descriptions need one backend fetch per group; failures degrade to an
// empty description instead of failing the listing.
func (s *Service) Groups(ctx context.Context) ([]legacy.Chat, error) {
	snaps := s.rooms.All()
	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].LastEventTS > snaps[j].LastEventTS
	})
	groups := []legacy.Chat{}
	for _, snap := range snaps {
		if !snap.IsGroup {
			continue
		}
		chat := s.chatFor(snap)
		desc, err := s.client.Description(ctx, snap.RoomID)
		if err != nil {
			s.logger.Warn("group description fetch failed", "room", snap.RoomID, "error", err)
		} else {
			chat.GroupDesc = desc
		}
		groups = append(groups, chat)
	}
	return groups, nil
}

// GroupInfo returns a single group chat by contact id.
func (s *Service) GroupInfo(ctx context.Context, contactID string) (legacy.Chat, error) {
	snap, ok := s.rooms.ByContactID(contactID)
	if !ok {
		return legacy.Chat{}, ErrUnknownContact
	}
	if !snap.IsGroup {
		return legacy.Chat{}, ErrNotGroup
	}
	chat := s.chatFor(snap)
	desc, err := s.client.Description(ctx, snap.RoomID)
	if err == nil {
		chat.GroupDesc = desc
	}
	return chat, nil
}

func (s *Service) chatFor(snap state.RoomSnapshot) legacy.Chat {
	last := emptyMessage()
	if snap.LastMessageID != "" {
		if record, ok := s.cache.Message(snap.LastMessageID); ok {
			last = record.Payload
		}
	}
	return chatFromSnapshot(snap, s.mutes.Get(snap.ContactID), last)
}

// Contacts assembles the contact book: the bridged account itself,
// every individual chat peer, and every room participant, deduplicated
// by number and sorted case-insensitively by name.
func (s *Service) Contacts(ctx context.Context) ([]legacy.Contact, error) {
	self := selfContact(s.client.SelfID())
	contacts := []legacy.Contact{self}
	seen := map[string]bool{self.Number: true}

	for _, snap := range s.rooms.All() {
		if !snap.IsGroup && !seen[snap.ContactID] {
			about, err := s.client.Description(ctx, snap.RoomID)
			if err != nil {
				s.logger.Warn("chat topic fetch failed", "room", snap.RoomID, "error", err)
			}
			contacts = append(contacts, contactFromSnapshot(snap, about))
			seen[snap.ContactID] = true
		}
		// Peers known only through room membership still belong in the
		// contact book, one-on-one rooms included.
		for _, userID := range snap.Participants {
			if userID == s.client.SelfID() {
				continue
			}
			profile, err := s.client.Profile(ctx, userID)
			if err != nil {
				s.logger.Warn("participant profile fetch failed", "user", userID, "error", err)
				continue
			}
			if seen[profile.ContactID] {
				continue
			}
			contacts = append(contacts, contactFromProfile(profile))
			seen[profile.ContactID] = true
		}
	}

	sort.Slice(contacts, func(i, j int) bool {
		return strings.ToLower(contacts[i].Name) < strings.ToLower(contacts[j].Name)
	})
	return contacts, nil
}

// ChatMessages returns the cached history of a chat, oldest first. A
// lightweight request is capped at lightweightHistoryLimit records; a
// full request is effectively uncapped.
func (s *Service) ChatMessages(ctx context.Context, contactID string, lightweight bool) ([]legacy.Message, error) {
	snap, ok := s.rooms.ByContactID(contactID)
	if !ok {
		return nil, ErrUnknownContact
	}
	limit := uint32(math.MaxUint32)
	if lightweight {
		limit = lightweightHistoryLimit
	}
	// A short cache means history beyond the live tail was never
	// fetched; a single live message must not mask the backlog.
	if uint32(s.cache.RoomLen(snap.RoomID)) < limit {
		if err := s.backfill(ctx, snap, limit); err != nil {
			return nil, err
		}
	}
	records := s.cache.Room(snap.RoomID)
	if uint32(len(records)) > limit {
		records = records[uint32(len(records))-limit:]
	}
	messages := make([]legacy.Message, 0, len(records))
	for _, record := range records {
		messages = append(messages, record.Payload)
	}
	return messages, nil
}

// backfill rebuilds a room's cache from backend history. The fetched
// window includes any live messages already absorbed, so the room is
// cleared first instead of appending duplicates out of order.
func (s *Service) backfill(ctx context.Context, snap state.RoomSnapshot, limit uint32) error {
	history, err := s.client.History(ctx, snap.RoomID, limit)
	if err != nil {
		return fmt.Errorf("history backfill: %w", err)
	}
	s.cache.ClearRoom(snap.RoomID)
	for _, m := range history {
		s.cache.Add(state.MessageRecord{
			EventID:   m.ID,
			RoomID:    snap.RoomID,
			ContactID: snap.ContactID,
			IsGroup:   snap.IsGroup,
			Payload:   s.shapeMessage(m),
		})
	}
	return nil
}

// SyncChat backfills a chat's history and refreshes its snapshot.
func (s *Service) SyncChat(ctx context.Context, contactID string) error {
	snap, ok := s.rooms.ByContactID(contactID)
	if !ok {
		return ErrUnknownContact
	}
	if err := s.backfill(ctx, snap, lightweightHistoryLimit); err != nil {
		return err
	}
	return s.refreshRooms(ctx)
}

// MessageRecord looks up a cached message by its id.
func (s *Service) MessageRecord(messageID string) (state.MessageRecord, error) {
	record, ok := s.cache.Message(messageID)
	if !ok {
		return state.MessageRecord{}, backend.ErrNotFound
	}
	return record, nil
}

// SendText delivers a text message, optionally as a reply.
func (s *Service) SendText(ctx context.Context, contactID, text, replyTo string) (string, error) {
	snap, ok := s.rooms.ByContactID(contactID)
	if !ok {
		return "", ErrUnknownContact
	}
	return s.client.SendText(ctx, snap.RoomID, text, replyTo)
}

// SendImage delivers an image; the mime type is sniffed from the bytes.
func (s *Service) SendImage(ctx context.Context, contactID string, data []byte, caption, replyTo string) (string, error) {
	snap, ok := s.rooms.ByContactID(contactID)
	if !ok {
		return "", ErrUnknownContact
	}
	mime := mimetype.Detect(data).String()
	return s.client.SendImage(ctx, snap.RoomID, data, mime, caption, replyTo)
}

// SendVoiceNote converts a recorded clip to ogg/opus and delivers it as
// a voice message.
func (s *Service) SendVoiceNote(ctx context.Context, contactID string, data []byte, replyTo string) (string, error) {
	snap, ok := s.rooms.ByContactID(contactID)
	if !ok {
		return "", ErrUnknownContact
	}
	ogg, err := s.trans.VoiceNoteToOgg(ctx, data)
	if err != nil {
		return "", err
	}
	return s.client.SendVoice(ctx, snap.RoomID, ogg, replyTo)
}

// SetTyping toggles the typing indicator in a chat.
func (s *Service) SetTyping(ctx context.Context, contactID string, typing bool) error {
	snap, ok := s.rooms.ByContactID(contactID)
	if !ok {
		return ErrUnknownContact
	}
	return s.client.SetTyping(ctx, snap.RoomID, typing)
}

// MarkRead acknowledges the newest message of a chat and resets the
// unread counter.
func (s *Service) MarkRead(ctx context.Context, contactID string) error {
	snap, ok := s.rooms.ByContactID(contactID)
	if !ok {
		return ErrUnknownContact
	}
	if snap.LastMessageID != "" {
		if err := s.client.MarkRead(ctx, snap.RoomID, snap.LastMessageID); err != nil {
			return err
		}
	}
	snap.UnreadCount = 0
	s.rooms.Upsert(snap)
	return nil
}

// DeleteChat clears a chat's cached history.
func (s *Service) DeleteChat(ctx context.Context, contactID string) error {
	snap, ok := s.rooms.ByContactID(contactID)
	if !ok {
		return ErrUnknownContact
	}
	s.cache.ClearRoom(snap.RoomID)
	snap.UnreadCount = 0
	snap.LastMessageID = ""
	s.rooms.Upsert(snap)
	return nil
}

// DeleteMessage redacts a message on the backend.
func (s *Service) DeleteMessage(ctx context.Context, messageID string) error {
	record, err := s.MessageRecord(messageID)
	if err != nil {
		return err
	}
	return s.client.RedactMessage(ctx, record.RoomID, messageID)
}

// LeaveGroup leaves a group chat and forgets it.
func (s *Service) LeaveGroup(ctx context.Context, contactID string) error {
	snap, ok := s.rooms.ByContactID(contactID)
	if !ok {
		return ErrUnknownContact
	}
	if !snap.IsGroup {
		return ErrNotGroup
	}
	if err := s.client.LeaveChat(ctx, snap.RoomID); err != nil {
		return err
	}
	s.cache.ClearRoom(snap.RoomID)
	s.rooms.Delete(snap.RoomID)
	return nil
}

// CreateChat creates a new backend chat, registers its snapshot, and
// returns the new chat id.
func (s *Service) CreateChat(ctx context.Context, name string, invitees []string) (string, error) {
	roomID, err := s.client.CreateChat(ctx, name, invitees)
	if err != nil {
		return "", err
	}
	if err := s.refreshRooms(ctx); err != nil {
		s.logger.Warn("room refresh after create failed", "error", err)
	}
	return roomID, nil
}

// SetMuteLevel records a mute grade for a contact.
func (s *Service) SetMuteLevel(contactID string, level int) error {
	return s.mutes.SetLevel(contactID, level, time.Now())
}

// ToggleBlock flips the blocked state of a contact.
func (s *Service) ToggleBlock(ctx context.Context, contactID string) (bool, error) {
	return s.client.ToggleBlock(ctx, contactID)
}

// SetStatusMessage updates the bridged account's status text.
func (s *Service) SetStatusMessage(ctx context.Context, status string) error {
	return s.client.SetStatusMessage(ctx, status)
}

// MessageMedia downloads the media payload attached to a message.
func (s *Service) MessageMedia(ctx context.Context, messageID string) ([]byte, string, error) {
	record, err := s.MessageRecord(messageID)
	if err != nil {
		return nil, "", err
	}
	ref := record.Payload.Data.MediaURL
	if ref == "" {
		return nil, "", backend.ErrNoMedia
	}
	return s.client.DownloadMedia(ctx, ref)
}

// AudioAsMP3 downloads a message's audio payload converted to mp3.
func (s *Service) AudioAsMP3(ctx context.Context, messageID string) (*transcode.Output, error) {
	data, _, err := s.MessageMedia(ctx, messageID)
	if err != nil {
		return nil, err
	}
	return s.trans.AudioToMP3(ctx, data)
}

// VideoAsQuickTime converts raw video bytes into the container the
// legacy client plays.
func (s *Service) VideoAsQuickTime(ctx context.Context, data []byte) (*transcode.Output, error) {
	return s.trans.VideoToQuickTime(ctx, data)
}

// VideoThumbnail renders a poster frame for a video message.
func (s *Service) VideoThumbnail(ctx context.Context, messageID string) (*transcode.Output, error) {
	data, mime, err := s.MessageMedia(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(mime, "video/") {
		return nil, backend.ErrNoMedia
	}
	return s.trans.VideoThumbnail(ctx, data)
}

// ProfileImage downloads the avatar of a chat or contact.
func (s *Service) ProfileImage(ctx context.Context, contactID string) ([]byte, string, error) {
	snap, ok := s.rooms.ByContactID(contactID)
	if !ok {
		return nil, "", ErrUnknownContact
	}
	if snap.AvatarRef == "" {
		return nil, "", backend.ErrNoMedia
	}
	return s.client.DownloadMedia(ctx, snap.AvatarRef)
}
