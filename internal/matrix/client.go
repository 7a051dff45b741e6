// Package matrix implements the backend boundary on top of a Matrix
// homeserver using mautrix. One bridged Matrix account stands in for
// the phone the legacy client believes it is paired with.
package matrix

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/whatsappx/wsplbridge/internal/backend"
	"github.com/whatsappx/wsplbridge/internal/config"
	"github.com/whatsappx/wsplbridge/internal/legacy"
)

const eventBuffer = 256

// Client adapts a mautrix session to the backend boundary.
type Client struct {
	logger *slog.Logger
	mx     *mautrix.Client
	cfg    config.MatrixConfig

	events chan backend.Event

	mu       sync.RWMutex
	ready    bool
	groups   map[id.RoomID]bool
	profiles map[id.UserID]backend.Profile
	users    map[string]id.UserID
	typing   map[id.RoomID]map[id.UserID]bool

	readyOnce  sync.Once
	readyCh    chan struct{}
	cancelSync context.CancelFunc
	syncDone   chan struct{}
}

var _ backend.Client = (*Client)(nil)

func New(log *slog.Logger, cfg config.MatrixConfig) (*Client, error) {
	if log == nil {
		log = slog.Default()
	}
	mx, err := mautrix.NewClient(cfg.Homeserver, id.UserID(cfg.UserID), cfg.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("matrix client: %w", err)
	}
	if cfg.DeviceID != "" {
		mx.DeviceID = id.DeviceID(cfg.DeviceID)
	}
	return &Client{
		logger:   log.With("component", "matrix"),
		mx:       mx,
		cfg:      cfg,
		events:   make(chan backend.Event, eventBuffer),
		groups:   map[id.RoomID]bool{},
		profiles: map[id.UserID]backend.Profile{},
		users:    map[string]id.UserID{},
		typing:   map[id.RoomID]map[id.UserID]bool{},
		readyCh:  make(chan struct{}),
	}, nil
}

// Start registers the sync handlers, launches the sync loop, and blocks
// until the first sync batch lands or ctx is canceled.
func (c *Client) Start(ctx context.Context) error {
	syncer := c.mx.Syncer.(*mautrix.DefaultSyncer)
	// onSynced must run before DontProcessOldEvents: the latter aborts
	// the listener chain on the initial sync, which is exactly the sync
	// that flips readiness.
	syncer.OnSync(c.onSynced)
	// Events delivered before the first complete sync are history, not
	// live traffic, and must not reach the notification channel.
	syncer.OnSync(c.mx.DontProcessOldEvents)
	syncer.OnEventType(event.EventMessage, c.onMessage)
	syncer.OnEventType(event.EventSticker, c.onMessage)
	syncer.OnEventType(event.EventRedaction, c.onRedaction)
	syncer.OnEventType(event.StateMember, c.onMember)
	syncer.OnEventType(event.EphemeralEventTyping, c.onTyping)

	syncCtx, cancel := context.WithCancel(context.Background())
	c.cancelSync = cancel
	c.syncDone = make(chan struct{})
	go func() {
		defer close(c.syncDone)
		if err := c.mx.SyncWithContext(syncCtx); err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Error("sync loop ended", "error", err)
		}
	}()

	select {
	case <-c.readyCh:
		c.logger.Info("initial sync complete", "user", c.cfg.UserID)
		return nil
	case <-ctx.Done():
		cancel()
		return ctx.Err()
	}
}

func (c *Client) Close() error {
	if c.cancelSync != nil {
		c.cancelSync()
		<-c.syncDone
	}
	return nil
}

func (c *Client) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ready
}

func (c *Client) SelfID() string {
	return c.cfg.UserID
}

func (c *Client) Events() <-chan backend.Event {
	return c.events
}

func (c *Client) onSynced(ctx context.Context, resp *mautrix.RespSync, since string) bool {
	c.mu.Lock()
	c.ready = true
	c.mu.Unlock()
	c.readyOnce.Do(func() { close(c.readyCh) })
	return true
}

// emit hands an event to the consumer without ever blocking the sync
// loop. A full buffer drops the event.
func (c *Client) emit(ev backend.Event) {
	select {
	case c.events <- ev:
	default:
		c.logger.Warn("event buffer full, dropping", "kind", ev.Kind)
	}
}

func (c *Client) onMessage(ctx context.Context, evt *event.Event) {
	c.rememberUser(evt.Sender)
	m := c.toMessage(evt, c.isGroup(ctx, evt.RoomID))
	c.emit(backend.Event{Kind: backend.EventMessage, ContactID: m.ContactID, Message: &m})
}

func (c *Client) onRedaction(ctx context.Context, evt *event.Event) {
	c.emit(backend.Event{
		Kind:      backend.EventRevoke,
		ContactID: legacy.ContactIDFromRoom(evt.RoomID.String()),
		MessageID: evt.Redacts.String(),
	})
}

func (c *Client) onMember(ctx context.Context, evt *event.Event) {
	userID := id.UserID(evt.GetStateKey())
	content := evt.Content.AsMember()
	c.storeProfile(userID, content.Displayname, string(content.AvatarURL))
	if content.Membership != event.MembershipJoin && content.Membership != event.MembershipLeave {
		return
	}
	c.emit(backend.Event{
		Kind:      backend.EventMembership,
		ContactID: legacy.ContactIDFromRoom(evt.RoomID.String()),
		UserID:    userID.String(),
	})
}

// onTyping diffs the room's typing set against the previous one and
// reports composing/paused transitions per user.
func (c *Client) onTyping(ctx context.Context, evt *event.Event) {
	content := evt.Content.AsTyping()
	contactID := legacy.ContactIDFromRoom(evt.RoomID.String())

	now := map[id.UserID]bool{}
	for _, userID := range content.UserIDs {
		if userID == c.mx.UserID {
			continue
		}
		now[userID] = true
	}

	c.mu.Lock()
	before := c.typing[evt.RoomID]
	c.typing[evt.RoomID] = now
	c.mu.Unlock()

	for userID := range now {
		if !before[userID] {
			c.emit(backend.Event{Kind: backend.EventPresence, ContactID: contactID, Status: "composing", UserID: userID.String()})
		}
	}
	for userID := range before {
		if !now[userID] {
			c.emit(backend.Event{Kind: backend.EventPresence, ContactID: contactID, Status: "paused", UserID: userID.String()})
		}
	}
}

// isGroup reports whether a room has more than two joined members,
// resolving and caching on first sight.
func (c *Client) isGroup(ctx context.Context, roomID id.RoomID) bool {
	c.mu.RLock()
	group, ok := c.groups[roomID]
	c.mu.RUnlock()
	if ok {
		return group
	}
	members, err := c.mx.JoinedMembers(ctx, roomID)
	if err != nil {
		c.logger.Warn("member lookup failed", "room", roomID, "error", err)
		return false
	}
	group = len(members.Joined) > 2
	c.mu.Lock()
	c.groups[roomID] = group
	c.mu.Unlock()
	return group
}

func (c *Client) rememberUser(userID id.UserID) {
	c.mu.Lock()
	c.users[legacy.ContactIDFromUser(userID.String())] = userID
	c.mu.Unlock()
}

func (c *Client) storeProfile(userID id.UserID, displayName, avatarRef string) {
	c.rememberUser(userID)
	c.mu.Lock()
	defer c.mu.Unlock()
	profile := c.profiles[userID]
	profile.UserID = userID.String()
	profile.ContactID = legacy.ContactIDFromUser(userID.String())
	if displayName != "" {
		profile.DisplayName = displayName
	}
	if avatarRef != "" {
		profile.AvatarRef = avatarRef
	}
	c.profiles[userID] = profile
}

func (c *Client) storeStatus(userID id.UserID, statusMsg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	profile := c.profiles[userID]
	profile.StatusMessage = statusMsg
	c.profiles[userID] = profile
}

func (c *Client) userFor(contactID string) (id.UserID, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	userID, ok := c.users[contactID]
	return userID, ok
}
