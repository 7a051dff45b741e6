package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Mute level grades the legacy client sends on /setMute.
const (
	MuteLevelOff     = -1
	MuteLevel8Hours  = 0
	MuteLevelWeek    = 1
	MuteLevelForever = 2
)

const muteForeverOffset = 10 * 365 * 24 * time.Hour

// MuteStore persists per-contact mute expirations (unix seconds) to a
// JSON file. A zero expiration means not muted. An empty path keeps the
// store memory-only.
type MuteStore struct {
	mu   sync.Mutex
	path string
	data map[string]int64
}

func NewMuteStore(path string) (*MuteStore, error) {
	store := &MuteStore{path: path, data: map[string]int64{}}
	if path == "" {
		return store, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, err
			}
			return store, store.flush()
		}
		return nil, err
	}
	if err := json.Unmarshal(raw, &store.data); err != nil {
		return nil, err
	}
	return store, nil
}

// Get returns the mute expiration for a contact, zero if unmuted.
func (s *MuteStore) Get(contactID string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[contactID]
}

// SetLevel applies a graded mute level relative to now and persists it.
func (s *MuteStore) SetLevel(contactID string, level int, now time.Time) error {
	var expiration int64
	switch level {
	case MuteLevelOff:
		expiration = 0
	case MuteLevel8Hours:
		expiration = now.Add(8 * time.Hour).Unix()
	case MuteLevelWeek:
		expiration = now.Add(7 * 24 * time.Hour).Unix()
	case MuteLevelForever:
		expiration = now.Add(muteForeverOffset).Unix()
	default:
		expiration = now.Unix()
	}
	return s.set(contactID, expiration)
}

func (s *MuteStore) set(contactID string, expiration int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if expiration <= 0 {
		delete(s.data, contactID)
	} else {
		s.data[contactID] = expiration
	}
	return s.flush()
}

func (s *MuteStore) flush() error {
	if s.path == "" {
		return nil
	}
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, raw, 0o644)
}
