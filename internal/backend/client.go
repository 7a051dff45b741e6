package backend

import (
	"context"
	"errors"
)

var (
	// ErrNotFound indicates the requested entity does not exist on the backend.
	ErrNotFound = errors.New("backend entity not found")
	// ErrNoMedia indicates the referenced message carries no media payload.
	ErrNoMedia = errors.New("message has no media attached")
	// ErrNotReady indicates the backend session has not finished its initial sync.
	ErrNotReady = errors.New("backend not ready")
)

// Client is the capability surface of the messaging backend. The bridge
// treats it as a black box; implementations own their wire protocol,
// authentication, and internal consistency.
type Client interface {
	// Start connects and begins feeding Events. It blocks until the
	// initial sync finished or ctx is canceled.
	Start(ctx context.Context) error
	Close() error

	// Ready reports whether the initial sync completed.
	Ready() bool
	// SelfID is the backend user id of the bridged account.
	SelfID() string

	Chats(ctx context.Context) ([]Chat, error)
	// Description fetches a chat's topic/description. Chat summaries do
	// not carry it; group listings call this per group.
	Description(ctx context.Context, chatID string) (string, error)
	Profile(ctx context.Context, userID string) (Profile, error)

	// History returns up to limit messages for a chat, oldest first.
	History(ctx context.Context, chatID string, limit uint32) ([]Message, error)
	// MessageByID looks a single message up in the given chat.
	MessageByID(ctx context.Context, chatID, messageID string) (Message, error)

	SendText(ctx context.Context, chatID, text, replyTo string) (string, error)
	SendImage(ctx context.Context, chatID string, data []byte, mimeType, caption, replyTo string) (string, error)
	SendVoice(ctx context.Context, chatID string, oggData []byte, replyTo string) (string, error)

	SetTyping(ctx context.Context, chatID string, typing bool) error
	MarkRead(ctx context.Context, chatID, messageID string) error
	RedactMessage(ctx context.Context, chatID, messageID string) error
	LeaveChat(ctx context.Context, chatID string) error
	CreateChat(ctx context.Context, name string, invitees []string) (string, error)

	// ToggleBlock flips the blocked state of the user behind the given
	// contact id and reports the new state.
	ToggleBlock(ctx context.Context, contactID string) (bool, error)
	SetStatusMessage(ctx context.Context, status string) error

	// DownloadMedia resolves a MediaRef/AvatarRef to its bytes and mime type.
	DownloadMedia(ctx context.Context, ref string) ([]byte, string, error)

	// Events is the stream of backend events, in emission order.
	Events() <-chan Event
}
