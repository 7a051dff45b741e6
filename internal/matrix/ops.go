package matrix

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/whatsappx/wsplbridge/internal/backend"
	"github.com/whatsappx/wsplbridge/internal/legacy"
)

// historyPageLimit caps a single /messages page; the homeserver clamps
// larger values anyway.
const historyPageLimit = 1000

const typingTimeout = 30 * time.Second

// Chats enumerates the joined rooms as backend chat summaries. Member
// lists and last-message probes are per room; failures degrade the
// entry instead of failing the listing.
func (c *Client) Chats(ctx context.Context) ([]backend.Chat, error) {
	joined, err := c.mx.JoinedRooms(ctx)
	if err != nil {
		return nil, fmt.Errorf("joined rooms: %w", err)
	}
	chats := make([]backend.Chat, 0, len(joined.JoinedRooms))
	for _, roomID := range joined.JoinedRooms {
		chat, err := c.chatSummary(ctx, roomID)
		if err != nil {
			c.logger.Warn("room summary failed", "room", roomID, "error", err)
			continue
		}
		chats = append(chats, chat)
	}
	return chats, nil
}

func (c *Client) chatSummary(ctx context.Context, roomID id.RoomID) (backend.Chat, error) {
	members, err := c.mx.JoinedMembers(ctx, roomID)
	if err != nil {
		return backend.Chat{}, err
	}
	isGroup := len(members.Joined) > 2
	c.mu.Lock()
	c.groups[roomID] = isGroup
	c.mu.Unlock()

	participants := make([]string, 0, len(members.Joined))
	var peerName string
	for userID, member := range members.Joined {
		c.storeProfile(userID, member.DisplayName, string(member.AvatarURL))
		participants = append(participants, userID.String())
		if userID != c.mx.UserID {
			peerName = member.DisplayName
			if peerName == "" {
				peerName = userID.String()
			}
		}
	}

	chat := backend.Chat{
		ID:           roomID.String(),
		ContactID:    legacy.ContactIDFromRoom(roomID.String()),
		IsGroup:      isGroup,
		Name:         c.roomName(ctx, roomID, peerName),
		AvatarRef:    c.roomAvatar(ctx, roomID),
		Participants: participants,
	}
	if last, ok := c.lastMessage(ctx, roomID, isGroup); ok {
		chat.LastEventTS = last.Timestamp
		chat.LastMessageID = last.ID
	}
	return chat, nil
}

func (c *Client) roomName(ctx context.Context, roomID id.RoomID, fallback string) string {
	var content event.RoomNameEventContent
	if err := c.mx.StateEvent(ctx, roomID, event.StateRoomName, "", &content); err == nil && content.Name != "" {
		return content.Name
	}
	return fallback
}

func (c *Client) roomAvatar(ctx context.Context, roomID id.RoomID) string {
	var content event.RoomAvatarEventContent
	if err := c.mx.StateEvent(ctx, roomID, event.StateRoomAvatar, "", &content); err != nil {
		return ""
	}
	return string(content.URL)
}

func (c *Client) lastMessage(ctx context.Context, roomID id.RoomID, isGroup bool) (backend.Message, bool) {
	resp, err := c.mx.Messages(ctx, roomID, "", "", mautrix.DirectionBackward, nil, 1)
	if err != nil || len(resp.Chunk) == 0 {
		return backend.Message{}, false
	}
	evt := resp.Chunk[0]
	if evt.Type != event.EventMessage && evt.Type != event.EventSticker {
		return backend.Message{}, false
	}
	return c.toMessage(evt, isGroup), true
}

// Description returns the room topic, empty when the room has none.
func (c *Client) Description(ctx context.Context, chatID string) (string, error) {
	var content event.TopicEventContent
	err := c.mx.StateEvent(ctx, id.RoomID(chatID), event.StateTopic, "", &content)
	if errors.Is(err, mautrix.MNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return content.Topic, nil
}

func (c *Client) Profile(ctx context.Context, userID string) (backend.Profile, error) {
	uid := id.UserID(userID)
	c.mu.RLock()
	profile, ok := c.profiles[uid]
	c.mu.RUnlock()
	if ok && profile.DisplayName != "" {
		return profile, nil
	}
	resp, err := c.mx.GetProfile(ctx, uid)
	if err != nil {
		return backend.Profile{}, fmt.Errorf("profile %s: %w", userID, err)
	}
	c.storeProfile(uid, resp.DisplayName, resp.AvatarURL.String())
	// The status text lives on presence, not the profile. Best effort:
	// many homeservers disable presence entirely.
	if presence, err := c.mx.GetPresence(ctx, uid); err == nil {
		c.storeStatus(uid, presence.StatusMsg)
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.profiles[uid], nil
}

// History pages a room's timeline backwards and returns the converted
// messages oldest first.
func (c *Client) History(ctx context.Context, chatID string, limit uint32) ([]backend.Message, error) {
	roomID := id.RoomID(chatID)
	pageLimit := int(limit)
	if limit > historyPageLimit {
		pageLimit = historyPageLimit
	}
	resp, err := c.mx.Messages(ctx, roomID, "", "", mautrix.DirectionBackward, nil, pageLimit)
	if err != nil {
		return nil, fmt.Errorf("history %s: %w", chatID, err)
	}
	isGroup := c.isGroup(ctx, roomID)
	messages := make([]backend.Message, 0, len(resp.Chunk))
	for i := len(resp.Chunk) - 1; i >= 0; i-- {
		evt := resp.Chunk[i]
		if evt.Type != event.EventMessage && evt.Type != event.EventSticker {
			continue
		}
		messages = append(messages, c.toMessage(evt, isGroup))
	}
	return messages, nil
}

// MessageByID fetches one event from the room timeline.
func (c *Client) MessageByID(ctx context.Context, chatID, messageID string) (backend.Message, error) {
	roomID := id.RoomID(chatID)
	evt, err := c.mx.GetEvent(ctx, roomID, id.EventID(messageID))
	if errors.Is(err, mautrix.MNotFound) {
		return backend.Message{}, backend.ErrNotFound
	}
	if err != nil {
		return backend.Message{}, err
	}
	if err := evt.Content.ParseRaw(evt.Type); err != nil {
		return backend.Message{}, err
	}
	return c.toMessage(evt, c.isGroup(ctx, roomID)), nil
}

func (c *Client) SendText(ctx context.Context, chatID, text, replyTo string) (string, error) {
	content := &event.MessageEventContent{MsgType: event.MsgText, Body: text}
	setReply(content, replyTo)
	return c.send(ctx, chatID, content)
}

func (c *Client) SendImage(ctx context.Context, chatID string, data []byte, mimeType, caption, replyTo string) (string, error) {
	upload, err := c.mx.UploadBytes(ctx, data, mimeType)
	if err != nil {
		return "", fmt.Errorf("upload image: %w", err)
	}
	body := caption
	if body == "" {
		body = "image"
	}
	content := &event.MessageEventContent{
		MsgType: event.MsgImage,
		Body:    body,
		URL:     upload.ContentURI.CUString(),
		Info:    &event.FileInfo{MimeType: mimeType, Size: len(data)},
	}
	setReply(content, replyTo)
	return c.send(ctx, chatID, content)
}

func (c *Client) SendVoice(ctx context.Context, chatID string, oggData []byte, replyTo string) (string, error) {
	upload, err := c.mx.UploadBytes(ctx, oggData, "audio/ogg")
	if err != nil {
		return "", fmt.Errorf("upload voice note: %w", err)
	}
	content := &event.MessageEventContent{
		MsgType:      event.MsgAudio,
		Body:         "Voice message",
		URL:          upload.ContentURI.CUString(),
		Info:         &event.FileInfo{MimeType: "audio/ogg", Size: len(oggData)},
		MSC3245Voice: &event.MSC3245Voice{},
	}
	setReply(content, replyTo)
	return c.send(ctx, chatID, content)
}

func setReply(content *event.MessageEventContent, replyTo string) {
	if replyTo == "" {
		return
	}
	content.RelatesTo = &event.RelatesTo{
		InReplyTo: &event.InReplyTo{EventID: id.EventID(replyTo)},
	}
}

func (c *Client) send(ctx context.Context, chatID string, content *event.MessageEventContent) (string, error) {
	resp, err := c.mx.SendMessageEvent(ctx, id.RoomID(chatID), event.EventMessage, content)
	if err != nil {
		return "", fmt.Errorf("send to %s: %w", chatID, err)
	}
	return resp.EventID.String(), nil
}

func (c *Client) SetTyping(ctx context.Context, chatID string, typing bool) error {
	_, err := c.mx.UserTyping(ctx, id.RoomID(chatID), typing, typingTimeout)
	return err
}

func (c *Client) MarkRead(ctx context.Context, chatID, messageID string) error {
	return c.mx.MarkRead(ctx, id.RoomID(chatID), id.EventID(messageID))
}

func (c *Client) RedactMessage(ctx context.Context, chatID, messageID string) error {
	_, err := c.mx.RedactEvent(ctx, id.RoomID(chatID), id.EventID(messageID))
	return err
}

func (c *Client) LeaveChat(ctx context.Context, chatID string) error {
	_, err := c.mx.LeaveRoom(ctx, id.RoomID(chatID))
	return err
}

// CreateChat creates a room and invites the users behind the given
// contact ids. Unknown contact ids are skipped.
func (c *Client) CreateChat(ctx context.Context, name string, invitees []string) (string, error) {
	invite := make([]id.UserID, 0, len(invitees))
	for _, contactID := range invitees {
		userID, ok := c.userFor(contactID)
		if !ok {
			c.logger.Warn("skipping unknown invitee", "contact", contactID)
			continue
		}
		invite = append(invite, userID)
	}
	resp, err := c.mx.CreateRoom(ctx, &mautrix.ReqCreateRoom{
		Name:     name,
		Invite:   invite,
		Preset:   "private_chat",
		IsDirect: len(invite) == 1,
	})
	if err != nil {
		return "", fmt.Errorf("create room: %w", err)
	}
	return resp.RoomID.String(), nil
}

// ToggleBlock flips the user's presence on the m.ignored_user_list
// account data and reports the new blocked state.
func (c *Client) ToggleBlock(ctx context.Context, contactID string) (bool, error) {
	userID, ok := c.userFor(contactID)
	if !ok {
		return false, backend.ErrNotFound
	}
	var list event.IgnoredUserListEventContent
	err := c.mx.GetAccountData(ctx, event.AccountDataIgnoredUserList.Type, &list)
	if err != nil && !errors.Is(err, mautrix.MNotFound) {
		return false, fmt.Errorf("ignored user list: %w", err)
	}
	if list.IgnoredUsers == nil {
		list.IgnoredUsers = map[id.UserID]event.IgnoredUser{}
	}
	var blocked bool
	if _, ignored := list.IgnoredUsers[userID]; ignored {
		delete(list.IgnoredUsers, userID)
	} else {
		list.IgnoredUsers[userID] = event.IgnoredUser{}
		blocked = true
	}
	if err := c.mx.SetAccountData(ctx, event.AccountDataIgnoredUserList.Type, &list); err != nil {
		return false, fmt.Errorf("update ignored user list: %w", err)
	}
	return blocked, nil
}

func (c *Client) SetStatusMessage(ctx context.Context, status string) error {
	return c.mx.SetPresence(ctx, mautrix.ReqPresence{
		Presence:  event.PresenceOnline,
		StatusMsg: status,
	})
}

// DownloadMedia fetches an mxc object and sniffs its content type.
func (c *Client) DownloadMedia(ctx context.Context, ref string) ([]byte, string, error) {
	uri, err := contentURI(ref)
	if err != nil {
		return nil, "", fmt.Errorf("bad media ref %q: %w", ref, err)
	}
	data, err := c.mx.DownloadBytes(ctx, uri)
	if err != nil {
		return nil, "", fmt.Errorf("download %s: %w", ref, err)
	}
	return data, mimetype.Detect(data).String(), nil
}
