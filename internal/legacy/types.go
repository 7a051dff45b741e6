package legacy

// ChatID is the two-part id object on chat and contact records.
type ChatID struct {
	User   string `json:"user"`
	Server string `json:"server"`
}

// Participant wraps a contact id the way the client expects nested
// author references.
type Participant struct {
	User string `json:"user"`
}

// MessageID is the composite message id envelope.
type MessageID struct {
	Serialized  string      `json:"_serialized"`
	FromMe      bool        `json:"fromMe"`
	Remote      string      `json:"remote"`
	ID          string      `json:"id"`
	Participant Participant `json:"participant"`
}

// QuotedMessage is the reply excerpt nested under _data.
type QuotedMessage struct {
	Body string `json:"body"`
	Type string `json:"type"`
}

// MessageData is the _data blob carried on every message record.
type MessageData struct {
	Author            Participant    `json:"author"`
	QuotedMsg         *QuotedMessage `json:"quotedMsg"`
	QuotedParticipant *Participant   `json:"quotedParticipant"`
	QuotedStanzaID    string         `json:"quotedStanzaID,omitempty"`
	MimeType          string         `json:"mimetype,omitempty"`
	Size              int64          `json:"size,omitempty"`
	Width             int            `json:"width,omitempty"`
	Height            int            `json:"height,omitempty"`
	Caption           string         `json:"caption,omitempty"`
	Lat               *float64       `json:"lat,omitempty"`
	Lng               *float64       `json:"lng,omitempty"`
	MediaURL          string         `json:"mxcUrl,omitempty"`
}

// Message is one chat message shaped for the legacy client.
type Message struct {
	Type         string      `json:"type"`
	Body         string      `json:"body"`
	Timestamp    int64       `json:"timestamp"`
	FromMe       bool        `json:"fromMe"`
	Ack          int         `json:"ack"`
	Duration     int         `json:"duration"`
	ID           MessageID   `json:"id"`
	Data         MessageData `json:"_data"`
	HasQuotedMsg bool        `json:"hasQuotedMsg"`
}

// PromoteCaption moves a populated caption into the primary body field
// and clears the caption. The legacy client only reads body.
func (m *Message) PromoteCaption() {
	if m.Data.Caption == "" {
		return
	}
	m.Body = m.Data.Caption
	m.Data.Caption = ""
}

// Chat is one entry of the chat listing.
type Chat struct {
	ID             ChatID  `json:"id"`
	Name           string  `json:"name"`
	IsGroup        bool    `json:"isGroup"`
	Timestamp      int64   `json:"timestamp"`
	MuteExpiration int64   `json:"muteExpiration"`
	UnreadCount    int     `json:"unreadCount"`
	GroupDesc      string  `json:"groupDesc"`
	LastMessage    Message `json:"lastMessage"`
	IDServer       string  `json:"idServer"`
}

// Contact is one entry of the contact listing.
type Contact struct {
	ID              ChatID   `json:"id"`
	Number          string   `json:"number"`
	Name            string   `json:"name"`
	ShortName       string   `json:"shortName"`
	Pushname        string   `json:"pushname"`
	FormattedNumber string   `json:"formattedNumber"`
	IsWAContact     bool     `json:"isWAContact"`
	IsMyContact     bool     `json:"isMyContact"`
	IsMe            bool     `json:"isMe"`
	ProfileAbout    string   `json:"profileAbout"`
	CommonGroups    []string `json:"commonGroups"`
}
