package relay

import (
	"sort"
	"sync"

	domain "github.com/example/signaling-relay/domain/relay"
)

type member struct {
	displayName string
	joinSeq     uint64
}

type room struct {
	members     map[string]member              // connectionID -> member
	lastActions map[string]domain.ActionRecord // displayName -> latest record
	nextJoin    uint64
	nextAction  uint64
}

// JoinResult is what a newcomer needs to know about the room it entered.
type JoinResult struct {
	// Existing lists the members present before the join, in join order.
	Existing []domain.Peer
	// Cached holds the last action of every display name, in receipt order.
	Cached []domain.ActionRecord
	// Total is the member count including the newcomer.
	Total int
}

// Directory tracks room membership and the per-room last-action cache.
// A room exists only while it has at least one member.
type Directory struct {
	mu    sync.Mutex
	rooms map[string]*room
}

// NewDirectory creates an empty directory.
func NewDirectory() *Directory {
	return &Directory{
		rooms: make(map[string]*room),
	}
}

// Join adds a connection to a room, creating the room if needed.
func (d *Directory) Join(roomID, connectionID, displayName string) JoinResult {
	d.mu.Lock()
	defer d.mu.Unlock()

	r, ok := d.rooms[roomID]
	if !ok {
		r = &room{
			members:     make(map[string]member),
			lastActions: make(map[string]domain.ActionRecord),
		}
		d.rooms[roomID] = r
	}

	delete(r.members, connectionID)
	result := JoinResult{
		Existing: r.peers(),
		Cached:   r.cached(),
	}

	r.nextJoin++
	r.members[connectionID] = member{displayName: displayName, joinSeq: r.nextJoin}
	result.Total = len(r.members)
	return result
}

// Leave removes a connection from a room and returns the members that remain.
// The room and its cache are deleted when the last member leaves. removed is
// false when the room or the membership did not exist.
func (d *Directory) Leave(roomID, connectionID string) (remaining []domain.Peer, removed bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	r, ok := d.rooms[roomID]
	if !ok {
		return nil, false
	}
	if _, ok := r.members[connectionID]; !ok {
		return r.peers(), false
	}

	delete(r.members, connectionID)
	if len(r.members) == 0 {
		delete(d.rooms, roomID)
		return []domain.Peer{}, true
	}
	return r.peers(), true
}

// RecordAction stores record as the latest action of its display name and
// stamps it with the room's receipt sequence. The returned members are the
// recipients, captured under the same lock as the cache update, so a peer
// joining concurrently sees the record either cached or live, never both.
// ok is false, dropping the record, when the room no longer exists.
func (d *Directory) RecordAction(roomID string, record domain.ActionRecord) (stamped domain.ActionRecord, members []domain.Peer, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	r, found := d.rooms[roomID]
	if !found {
		return record, nil, false
	}

	r.nextAction++
	record.Seq = r.nextAction
	r.lastActions[record.DisplayName] = record
	return record, r.peers(), true
}

// Members returns the current members of a room, empty if it does not exist.
func (d *Directory) Members(roomID string) []domain.Peer {
	d.mu.Lock()
	defer d.mu.Unlock()

	r, ok := d.rooms[roomID]
	if !ok {
		return []domain.Peer{}
	}
	return r.peers()
}

// Snapshot returns a copy of a room's members and cached actions.
func (d *Directory) Snapshot(roomID string) (domain.RoomSnapshot, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	r, ok := d.rooms[roomID]
	if !ok {
		return domain.RoomSnapshot{}, false
	}
	return domain.RoomSnapshot{
		RoomID:      roomID,
		Members:     r.peers(),
		LastActions: r.cached(),
	}, true
}

// Rooms lists every live room ordered by ID.
func (d *Directory) Rooms() []domain.RoomSummary {
	d.mu.Lock()
	defer d.mu.Unlock()

	result := make([]domain.RoomSummary, 0, len(d.rooms))
	for id, r := range d.rooms {
		result = append(result, domain.RoomSummary{
			RoomID:        id,
			Members:       len(r.members),
			CachedActions: len(r.lastActions),
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].RoomID < result[j].RoomID })
	return result
}

// Len returns the number of live rooms.
func (d *Directory) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.rooms)
}

// peers must be called with the directory lock held.
func (r *room) peers() []domain.Peer {
	ids := make([]string, 0, len(r.members))
	for id := range r.members {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return r.members[ids[i]].joinSeq < r.members[ids[j]].joinSeq
	})

	result := make([]domain.Peer, 0, len(ids))
	for _, id := range ids {
		result = append(result, domain.Peer{
			ConnectionID: id,
			DisplayName:  r.members[id].displayName,
		})
	}
	return result
}

// cached must be called with the directory lock held.
func (r *room) cached() []domain.ActionRecord {
	result := make([]domain.ActionRecord, 0, len(r.lastActions))
	for _, rec := range r.lastActions {
		result = append(result, rec)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Seq < result[j].Seq })
	return result
}
