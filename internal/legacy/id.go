// Package legacy holds the identifier and payload shapes the legacy
// mobile client expects. Everything here mirrors the client's wire
// contract byte for byte; do not "clean up" field names.
package legacy

import (
	"crypto/md5"
	"crypto/sha1"
	"encoding/hex"
	"strings"
)

// Scope suffixes the client uses to tell individual chats and groups
// apart. The suffix is chosen by an explicit flag, never guessed from
// the raw id.
const (
	SuffixIndividual = "@c.us"
	SuffixGroup      = "@g.us"
)

// JID appends the scope suffix for the given namespace to a raw
// contact id.
func JID(contactID string, isGroup bool) string {
	if isGroup {
		return contactID + SuffixGroup
	}
	return contactID + SuffixIndividual
}

// StripJID removes whichever scope suffix is present. Ids without a
// suffix pass through unchanged, so StripJID(JID(x, g)) == x for all x.
func StripJID(jid string) string {
	if s, ok := strings.CutSuffix(jid, SuffixGroup); ok {
		return s
	}
	if s, ok := strings.CutSuffix(jid, SuffixIndividual); ok {
		return s
	}
	return jid
}

// Server returns the scope-suffix server token without the "@".
func Server(isGroup bool) string {
	if isGroup {
		return "g.us"
	}
	return "c.us"
}

// ContactIDFromRoom derives the stable 16-hex-char contact id the
// client sees for a backend room.
func ContactIDFromRoom(roomID string) string {
	sum := sha1.Sum([]byte(roomID))
	return hex.EncodeToString(sum[:])[:16]
}

// ContactIDFromUser derives the contact id for a backend user.
func ContactIDFromUser(userID string) string {
	sum := md5.Sum([]byte(userID))
	return hex.EncodeToString(sum[:])[:16]
}
