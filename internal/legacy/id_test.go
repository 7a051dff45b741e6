package legacy

import (
	"crypto/md5"
	"crypto/sha1"
	"encoding/hex"
	"testing"
)

func TestJIDRoundTrip(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		raw     string
		isGroup bool
		want    string
	}{
		{name: "individual", raw: "12345", isGroup: false, want: "12345@c.us"},
		{name: "group", raw: "12345", isGroup: true, want: "12345@g.us"},
		{name: "hex id", raw: "a1b2c3d4e5f60718", isGroup: true, want: "a1b2c3d4e5f60718@g.us"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			jid := JID(tc.raw, tc.isGroup)
			if jid != tc.want {
				t.Fatalf("JID = %q, want %q", jid, tc.want)
			}
			if got := StripJID(jid); got != tc.raw {
				t.Fatalf("StripJID(%q) = %q, want %q", jid, got, tc.raw)
			}
		})
	}
}

func TestJIDSuffixesNotInterchangeable(t *testing.T) {
	t.Parallel()

	if JID("12345", true) == JID("12345", false) {
		t.Fatal("group and individual jids must differ for the same raw id")
	}
}

func TestStripJIDWithoutSuffix(t *testing.T) {
	t.Parallel()

	if got := StripJID("12345"); got != "12345" {
		t.Fatalf("StripJID = %q", got)
	}
}

func TestContactIDDerivation(t *testing.T) {
	t.Parallel()

	roomID := "!abc:example.org"
	sum := sha1.Sum([]byte(roomID))
	if got, want := ContactIDFromRoom(roomID), hex.EncodeToString(sum[:])[:16]; got != want {
		t.Fatalf("ContactIDFromRoom = %q, want %q", got, want)
	}
	if len(ContactIDFromRoom(roomID)) != 16 {
		t.Fatal("room contact id must be 16 chars")
	}

	userID := "@alice:example.org"
	usum := md5.Sum([]byte(userID))
	if got, want := ContactIDFromUser(userID), hex.EncodeToString(usum[:])[:16]; got != want {
		t.Fatalf("ContactIDFromUser = %q, want %q", got, want)
	}
}

func TestPromoteCaption(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name        string
		body        string
		caption     string
		wantBody    string
		wantCaption string
	}{
		{name: "caption into empty body", body: "", caption: "a photo", wantBody: "a photo"},
		{name: "no caption", body: "hello", caption: "", wantBody: "hello"},
		{name: "caption equals body", body: "dup", caption: "dup", wantBody: "dup"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			msg := Message{Body: tc.body, Data: MessageData{Caption: tc.caption}}
			msg.PromoteCaption()
			if msg.Body != tc.wantBody {
				t.Fatalf("body = %q, want %q", msg.Body, tc.wantBody)
			}
			if msg.Data.Caption != tc.wantCaption {
				t.Fatalf("caption = %q, want empty", msg.Data.Caption)
			}
		})
	}
}
