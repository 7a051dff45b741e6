// Package state keeps the bridge-side caches: the room directory, the
// per-room message cache, and the persisted mute table. All three are
// safe for concurrent use.
package state

import "sync"

// RoomSnapshot is the bridge's view of one backend chat.
type RoomSnapshot struct {
	RoomID        string
	ContactID     string
	IsGroup       bool
	Name          string
	AvatarRef     string
	LastEventTS   int64
	LastMessageID string
	UnreadCount   int
	Participants  []string
}

// RoomDirectory indexes room snapshots by room id and contact id.
type RoomDirectory struct {
	mu    sync.RWMutex
	rooms map[string]RoomSnapshot
}

func NewRoomDirectory() *RoomDirectory {
	return &RoomDirectory{rooms: map[string]RoomSnapshot{}}
}

// Upsert stores or replaces a snapshot.
func (d *RoomDirectory) Upsert(snapshot RoomSnapshot) {
	d.mu.Lock()
	d.rooms[snapshot.RoomID] = snapshot
	d.mu.Unlock()
}

// Get returns the snapshot for a room id.
func (d *RoomDirectory) Get(roomID string) (RoomSnapshot, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	snap, ok := d.rooms[roomID]
	return snap, ok
}

// Delete removes a room's snapshot.
func (d *RoomDirectory) Delete(roomID string) {
	d.mu.Lock()
	delete(d.rooms, roomID)
	d.mu.Unlock()
}

// ByContactID finds the snapshot whose contact id matches.
func (d *RoomDirectory) ByContactID(contactID string) (RoomSnapshot, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, snap := range d.rooms {
		if snap.ContactID == contactID {
			return snap, true
		}
	}
	return RoomSnapshot{}, false
}

// All returns a copy of every snapshot.
func (d *RoomDirectory) All() []RoomSnapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]RoomSnapshot, 0, len(d.rooms))
	for _, snap := range d.rooms {
		out = append(out, snap)
	}
	return out
}
