package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/whatsappx/wsplbridge/internal/backend"
	"github.com/whatsappx/wsplbridge/internal/bridge"
	"github.com/whatsappx/wsplbridge/internal/legacy"
	"github.com/whatsappx/wsplbridge/internal/state"
	"github.com/whatsappx/wsplbridge/internal/transcode"
)

// stubBridge satisfies Bridge with canned data and call recording.
type stubBridge struct {
	ready    bool
	listing  bridge.ChatListing
	contacts []legacy.Contact
	groups   []legacy.Chat
	messages []legacy.Message
	record   state.MessageRecord
	avatar   []byte

	err error

	sentTexts  []string
	sentVoice  int
	sentPhotos int
	muted      map[string]int
	typing     []bool
}

func (s *stubBridge) Ready() bool { return s.ready }

func (s *stubBridge) Chats(context.Context) (bridge.ChatListing, error) {
	return s.listing, s.err
}

func (s *stubBridge) Contacts(context.Context) ([]legacy.Contact, error) {
	return s.contacts, s.err
}

func (s *stubBridge) Groups(context.Context) ([]legacy.Chat, error) { return s.groups, s.err }

func (s *stubBridge) GroupInfo(context.Context, string) (legacy.Chat, error) {
	if len(s.groups) == 0 {
		return legacy.Chat{}, s.err
	}
	return s.groups[0], s.err
}

func (s *stubBridge) ChatMessages(context.Context, string, bool) ([]legacy.Message, error) {
	return s.messages, s.err
}

func (s *stubBridge) SyncChat(context.Context, string) error { return s.err }

func (s *stubBridge) MessageRecord(string) (state.MessageRecord, error) {
	return s.record, s.err
}

func (s *stubBridge) SendText(_ context.Context, contactID, text, _ string) (string, error) {
	s.sentTexts = append(s.sentTexts, contactID+":"+text)
	return "$sent", s.err
}

func (s *stubBridge) SendImage(context.Context, string, []byte, string, string) (string, error) {
	s.sentPhotos++
	return "$sent", s.err
}

func (s *stubBridge) SendVoiceNote(context.Context, string, []byte, string) (string, error) {
	s.sentVoice++
	return "$sent", s.err
}

func (s *stubBridge) SetTyping(_ context.Context, _ string, typing bool) error {
	s.typing = append(s.typing, typing)
	return s.err
}

func (s *stubBridge) MarkRead(context.Context, string) error      { return s.err }
func (s *stubBridge) DeleteChat(context.Context, string) error    { return s.err }
func (s *stubBridge) DeleteMessage(context.Context, string) error { return s.err }
func (s *stubBridge) LeaveGroup(context.Context, string) error    { return s.err }

func (s *stubBridge) CreateChat(context.Context, string, []string) (string, error) {
	return "!new:example.org", s.err
}

func (s *stubBridge) SetMuteLevel(contactID string, level int) error {
	if s.muted == nil {
		s.muted = map[string]int{}
	}
	s.muted[contactID] = level
	return s.err
}

func (s *stubBridge) ToggleBlock(context.Context, string) (bool, error) { return true, s.err }
func (s *stubBridge) SetStatusMessage(context.Context, string) error    { return s.err }

func (s *stubBridge) MessageMedia(context.Context, string) ([]byte, string, error) {
	return s.avatar, "image/png", s.err
}

func (s *stubBridge) AudioAsMP3(context.Context, string) (*transcode.Output, error) {
	return nil, errors.New("no transcoder in tests")
}

func (s *stubBridge) VideoAsQuickTime(context.Context, []byte) (*transcode.Output, error) {
	return nil, errors.New("no transcoder in tests")
}

func (s *stubBridge) VideoThumbnail(context.Context, string) (*transcode.Output, error) {
	return nil, errors.New("no transcoder in tests")
}

func (s *stubBridge) ProfileImage(context.Context, string) ([]byte, string, error) {
	if s.avatar == nil {
		return nil, "", backend.ErrNoMedia
	}
	return s.avatar, "image/png", s.err
}

func request(t *testing.T, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestLoggedInYet(t *testing.T) {
	t.Parallel()
	h := NewStatusHandler(slog.Default(), &stubBridge{ready: false})

	c, rec := request(t, http.MethodGet, "/loggedInYet", "")
	if err := h.LoggedInYet(c); err != nil {
		t.Fatal(err)
	}
	if rec.Body.String() != "false" {
		t.Fatalf("body = %q, want false", rec.Body.String())
	}

	h = NewStatusHandler(slog.Default(), &stubBridge{ready: true})
	c, rec = request(t, http.MethodGet, "/loggedInYet", "")
	if err := h.LoggedInYet(c); err != nil {
		t.Fatal(err)
	}
	if rec.Body.String() != "true" {
		t.Fatalf("body = %q, want true", rec.Body.String())
	}
}

func TestQRPlaceholderUntilReady(t *testing.T) {
	t.Parallel()
	h := NewStatusHandler(slog.Default(), &stubBridge{})
	c, rec := request(t, http.MethodGet, "/qr", "")
	if err := h.QR(c); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(rec.Body.String(), "data:image/png;base64,") {
		t.Fatalf("expected placeholder image, got %q", rec.Body.String())
	}
}

func TestGetChatsShape(t *testing.T) {
	t.Parallel()
	stub := &stubBridge{listing: bridge.ChatListing{
		Chats:  []legacy.Chat{{Name: "Alice"}},
		Groups: []legacy.Chat{{Name: "Team", IsGroup: true}},
	}}
	h := NewChatsHandler(slog.Default(), stub)

	c, rec := request(t, http.MethodGet, "/getChats", "")
	if err := h.GetChats(c); err != nil {
		t.Fatal(err)
	}
	var body map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if _, ok := body["chatList"]; !ok {
		t.Fatal("missing chatList")
	}
	if _, ok := body["groupList"]; !ok {
		t.Fatal("missing groupList")
	}
}

func TestGetBroadcastsAlwaysEmpty(t *testing.T) {
	t.Parallel()
	h := NewChatsHandler(slog.Default(), &stubBridge{})
	c, rec := request(t, http.MethodGet, "/getBroadcasts", "")
	if err := h.GetBroadcasts(c); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(rec.Body.String()) != `{"broadcastList":[]}` {
		t.Fatalf("body = %q", rec.Body.String())
	}
}

func TestGetChatMessagesEchoesFromNumber(t *testing.T) {
	t.Parallel()
	stub := &stubBridge{messages: []legacy.Message{{Body: "hi"}}}
	h := NewChatsHandler(slog.Default(), stub)

	c, rec := request(t, http.MethodGet, "/getChatMessages/12345?isLight=1", "")
	c.SetPath("/getChatMessages/:contact_id")
	c.SetParamNames("contact_id")
	c.SetParamValues("12345")
	if err := h.GetChatMessages(c); err != nil {
		t.Fatal(err)
	}
	var body chatMessagesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.FromNumber != "12345" {
		t.Fatalf("fromNumber = %q", body.FromNumber)
	}
	if len(body.ChatMessages) != 1 {
		t.Fatalf("chatMessages = %d", len(body.ChatMessages))
	}
}

func TestGetChatMessagesUnknownContact(t *testing.T) {
	t.Parallel()
	h := NewChatsHandler(slog.Default(), &stubBridge{err: bridge.ErrUnknownContact})

	c, _ := request(t, http.MethodGet, "/getChatMessages/zzz", "")
	c.SetPath("/getChatMessages/:contact_id")
	c.SetParamNames("contact_id")
	c.SetParamValues("zzz")
	err := h.GetChatMessages(c)
	httpErr := &echo.HTTPError{}
	if !errors.As(err, &httpErr) || httpErr.Code != http.StatusNotFound {
		t.Fatalf("err = %v, want 404", err)
	}
}

func TestGetQuotedMessage(t *testing.T) {
	t.Parallel()
	stub := &stubBridge{record: state.MessageRecord{
		EventID: "$evt1",
		Payload: legacy.Message{
			Body: "reply text",
			Data: legacy.MessageData{
				QuotedMsg:      &legacy.QuotedMessage{Body: "original", Type: "chat"},
				QuotedStanzaID: "$orig",
			},
		},
	}}
	h := NewChatsHandler(slog.Default(), stub)

	c, rec := request(t, http.MethodGet, "/getQuotedMessage/$evt1", "")
	c.SetPath("/getQuotedMessage/:message_id")
	c.SetParamNames("message_id")
	c.SetParamValues("$evt1")
	if err := h.GetQuotedMessage(c); err != nil {
		t.Fatal(err)
	}
	var body quotedMessageResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.OriginalMessage != "reply text" || body.QuotedMessage.Body != "original" {
		t.Fatalf("body = %#v", body)
	}
	if body.QuotedMessage.ID != "$orig" {
		t.Fatalf("quoted id = %q", body.QuotedMessage.ID)
	}
}

func TestGetQuotedMessageWithoutQuote(t *testing.T) {
	t.Parallel()
	stub := &stubBridge{record: state.MessageRecord{Payload: legacy.Message{Body: "plain"}}}
	h := NewChatsHandler(slog.Default(), stub)

	c, _ := request(t, http.MethodGet, "/getQuotedMessage/$evt1", "")
	c.SetPath("/getQuotedMessage/:message_id")
	c.SetParamNames("message_id")
	c.SetParamValues("$evt1")
	err := h.GetQuotedMessage(c)
	httpErr := &echo.HTTPError{}
	if !errors.As(err, &httpErr) || httpErr.Code != http.StatusNotFound {
		t.Fatalf("err = %v, want 404", err)
	}
}

func TestSendMessageDispatch(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		payload string
		check   func(t *testing.T, stub *stubBridge)
	}{
		{
			name:    "text",
			payload: `{"messageText":"hello"}`,
			check: func(t *testing.T, stub *stubBridge) {
				if len(stub.sentTexts) != 1 || stub.sentTexts[0] != "c0ffee:hello" {
					t.Fatalf("sentTexts = %v", stub.sentTexts)
				}
			},
		},
		{
			name:    "voice note",
			payload: `{"sendAsVoiceNote":true,"mediaBase64":"aGVsbG8="}`,
			check: func(t *testing.T, stub *stubBridge) {
				if stub.sentVoice != 1 {
					t.Fatalf("sentVoice = %d", stub.sentVoice)
				}
			},
		},
		{
			name:    "photo",
			payload: `{"sendAsPhoto":true,"mediaBase64":"aGVsbG8=","messageText":"caption"}`,
			check: func(t *testing.T, stub *stubBridge) {
				if stub.sentPhotos != 1 {
					t.Fatalf("sentPhotos = %d", stub.sentPhotos)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			stub := &stubBridge{}
			h := NewSendHandler(slog.Default(), stub)

			c, rec := request(t, http.MethodPost, "/sendMessage/c0ffee", tt.payload)
			c.SetPath("/sendMessage/:contact_id")
			c.SetParamNames("contact_id")
			c.SetParamValues("c0ffee")
			if err := h.SendMessage(c); err != nil {
				t.Fatal(err)
			}
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			tt.check(t, stub)
		})
	}
}

func TestSendMessageEmptyPayloadRejected(t *testing.T) {
	t.Parallel()
	h := NewSendHandler(slog.Default(), &stubBridge{})

	c, _ := request(t, http.MethodPost, "/sendMessage/c0ffee", `{}`)
	c.SetPath("/sendMessage/:contact_id")
	c.SetParamNames("contact_id")
	c.SetParamValues("c0ffee")
	err := h.SendMessage(c)
	httpErr := &echo.HTTPError{}
	if !errors.As(err, &httpErr) || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("err = %v, want 400", err)
	}
}

func TestSetMuteParsesLevel(t *testing.T) {
	t.Parallel()
	stub := &stubBridge{}
	h := NewSendHandler(slog.Default(), stub)

	c, _ := request(t, http.MethodPost, "/setMute/c0ffee/1", "")
	c.SetPath("/setMute/:contact_id/:mute_level")
	c.SetParamNames("contact_id", "mute_level")
	c.SetParamValues("c0ffee", "1")
	if err := h.SetMute(c); err != nil {
		t.Fatal(err)
	}
	if stub.muted["c0ffee"] != 1 {
		t.Fatalf("muted = %v", stub.muted)
	}

	c, _ = request(t, http.MethodPost, "/setMute/c0ffee/x", "")
	c.SetPath("/setMute/:contact_id/:mute_level")
	c.SetParamNames("contact_id", "mute_level")
	c.SetParamValues("c0ffee", "x")
	err := h.SetMute(c)
	httpErr := &echo.HTTPError{}
	if !errors.As(err, &httpErr) || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("err = %v, want 400", err)
	}
}

func TestTypingAndClearState(t *testing.T) {
	t.Parallel()
	stub := &stubBridge{}
	h := NewSendHandler(slog.Default(), stub)

	c, _ := request(t, http.MethodPost, "/setTypingStatus/c0ffee", "")
	c.SetPath("/setTypingStatus/:contact_id")
	c.SetParamNames("contact_id")
	c.SetParamValues("c0ffee")
	if err := h.SetTypingStatus(c); err != nil {
		t.Fatal(err)
	}

	c, _ = request(t, http.MethodPost, "/clearState/c0ffee", "")
	c.SetPath("/clearState/:contact_id")
	c.SetParamNames("contact_id")
	c.SetParamValues("c0ffee")
	if err := h.ClearState(c); err != nil {
		t.Fatal(err)
	}

	if len(stub.typing) != 2 || !stub.typing[0] || stub.typing[1] {
		t.Fatalf("typing calls = %v, want [true false]", stub.typing)
	}
}

func TestProfileImgHashNullWhenMissing(t *testing.T) {
	t.Parallel()
	h := NewMediaHandler(slog.Default(), &stubBridge{})

	c, rec := request(t, http.MethodGet, "/getProfileImgHash/c0ffee", "")
	c.SetPath("/getProfileImgHash/:contact_id")
	c.SetParamNames("contact_id")
	c.SetParamValues("c0ffee")
	if err := h.ProfileImgHash(c); err != nil {
		t.Fatal(err)
	}
	if rec.Body.String() != "null" {
		t.Fatalf("body = %q, want null", rec.Body.String())
	}
}

func TestProfileImgHashIsMD5(t *testing.T) {
	t.Parallel()
	h := NewMediaHandler(slog.Default(), &stubBridge{avatar: []byte("avatar-bytes")})

	c, rec := request(t, http.MethodGet, "/getProfileImgHash/c0ffee", "")
	c.SetPath("/getProfileImgHash/:contact_id")
	c.SetParamNames("contact_id")
	c.SetParamValues("c0ffee")
	if err := h.ProfileImgHash(c); err != nil {
		t.Fatal(err)
	}
	// md5("avatar-bytes")
	if rec.Body.String() != "129923a34895b8f9fd798e67be2fa95f" {
		t.Fatalf("hash = %q", rec.Body.String())
	}
}

func TestGroupInfoNotGroup(t *testing.T) {
	t.Parallel()
	h := NewGroupsHandler(slog.Default(), &stubBridge{err: bridge.ErrNotGroup})

	c, _ := request(t, http.MethodGet, "/getGroupInfo/c0ffee", "")
	c.SetPath("/getGroupInfo/:contact_id")
	c.SetParamNames("contact_id")
	c.SetParamValues("c0ffee")
	err := h.GetGroupInfo(c)
	httpErr := &echo.HTTPError{}
	if !errors.As(err, &httpErr) || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("err = %v, want 400", err)
	}
}

func TestCreateRoomRequiresName(t *testing.T) {
	t.Parallel()
	h := NewGroupsHandler(slog.Default(), &stubBridge{})

	c, _ := request(t, http.MethodPost, "/createRoom", `{"invitees":["aaa"]}`)
	err := h.CreateRoom(c)
	httpErr := &echo.HTTPError{}
	if !errors.As(err, &httpErr) || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("err = %v, want 400", err)
	}
}
