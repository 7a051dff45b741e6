package state

import (
	"sync"

	"github.com/whatsappx/wsplbridge/internal/legacy"
)

// DefaultMaxMessagesPerRoom caps the per-room message deque.
const DefaultMaxMessagesPerRoom = 512

// MessageRecord is one cached message, already shaped for the legacy
// client, together with its routing context.
type MessageRecord struct {
	EventID   string
	RoomID    string
	ContactID string
	IsGroup   bool
	Payload   legacy.Message
}

// MessageCache keeps a bounded per-room history with a global event-id
// index. The oldest record per room is evicted first.
type MessageCache struct {
	mu    sync.RWMutex
	rooms map[string][]MessageRecord
	index map[string]MessageRecord
	max   int
}

func NewMessageCache(maxPerRoom int) *MessageCache {
	if maxPerRoom <= 0 {
		maxPerRoom = DefaultMaxMessagesPerRoom
	}
	return &MessageCache{
		rooms: map[string][]MessageRecord{},
		index: map[string]MessageRecord{},
		max:   maxPerRoom,
	}
}

// Add appends a record to its room, evicting from the front when the
// room exceeds the cap. Re-adding an event id replaces the index entry.
func (c *MessageCache) Add(record MessageRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	room := append(c.rooms[record.RoomID], record)
	c.index[record.EventID] = record
	for len(room) > c.max {
		evicted := room[0]
		room = room[1:]
		if evicted.EventID != record.EventID {
			delete(c.index, evicted.EventID)
		}
	}
	c.rooms[record.RoomID] = room
}

// Room returns the cached records for a room, oldest first.
func (c *MessageCache) Room(roomID string) []MessageRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	room := c.rooms[roomID]
	out := make([]MessageRecord, len(room))
	copy(out, room)
	return out
}

// RoomLen reports how many records a room holds.
func (c *MessageCache) RoomLen(roomID string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rooms[roomID])
}

// Message looks a record up by event id.
func (c *MessageCache) Message(eventID string) (MessageRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	record, ok := c.index[eventID]
	return record, ok
}

// ClearRoom drops a room's records and their index entries.
func (c *MessageCache) ClearRoom(roomID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, record := range c.rooms[roomID] {
		delete(c.index, record.EventID)
	}
	delete(c.rooms, roomID)
}
