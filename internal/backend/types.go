// Package backend defines the boundary to the messaging backend: the
// chat/contact/message operations the compatibility layer needs and the
// asynchronous event stream feeding the notification gateway.
package backend

// EventKind discriminates the backend event categories the bridge
// understands.
type EventKind string

const (
	EventMessage    EventKind = "message"
	EventAck        EventKind = "ack"
	EventRevoke     EventKind = "revoke"
	EventMembership EventKind = "membership"
	EventPresence   EventKind = "presence"
)

// Message is one chat message in backend-neutral shape. ContactID and
// AuthorID are raw ids without legacy scope suffixes.
type Message struct {
	ID        string
	ChatID    string
	ContactID string
	IsGroup   bool
	AuthorID  string
	FromMe    bool
	Type      string
	Text      string
	Caption   string
	Timestamp int64
	Duration  int
	MimeType  string
	Size      int64
	Width     int
	Height    int
	Latitude  *float64
	Longitude *float64
	MediaRef  string
	ReplyToID string
	Broadcast bool
}

// Chat is a backend chat summary. Topic is deliberately absent: the
// legacy group description requires a separate Description fetch.
type Chat struct {
	ID            string
	ContactID     string
	IsGroup       bool
	Name          string
	AvatarRef     string
	LastEventTS   int64
	LastMessageID string
	UnreadCount   int
	Participants  []string
}

// Profile is the displayable identity of a backend user. ContactID is
// the stable legacy-raw id derived for the user.
type Profile struct {
	UserID        string
	ContactID     string
	DisplayName   string
	AvatarRef     string
	StatusMessage string
}

// Event is one item of the backend event stream. Exactly the fields
// relevant to its Kind are set.
type Event struct {
	Kind      EventKind
	ContactID string
	Message   *Message
	MessageID string
	AckLevel  int
	Status    string
	UserID    string
}
