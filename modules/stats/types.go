package stats

import (
	"sync/atomic"
	"time"
)

// ServiceGetStats is the request-reply service exposing relay counters.
const ServiceGetStats = "get-stats"

// Snapshot is a point-in-time copy of the relay counters.
type Snapshot struct {
	PeersJoined      int64      `json:"peers_joined"`
	PeersLeft        int64      `json:"peers_left"`
	ActivePeers      int64      `json:"active_peers"`
	ActionsRelayed   int64      `json:"actions_relayed"`
	ActionDeliveries int64      `json:"action_deliveries"`
	RoomsClosed      int64      `json:"rooms_closed"`
	LastEventAt      *time.Time `json:"last_event_at,omitempty"`
}

// Counters accumulates relay activity. All methods are safe for concurrent use.
type Counters struct {
	peersJoined      atomic.Int64
	peersLeft        atomic.Int64
	actionsRelayed   atomic.Int64
	actionDeliveries atomic.Int64
	roomsClosed      atomic.Int64
	lastEventAt      atomic.Int64 // unix nanoseconds
}

// NewCounters creates zeroed counters.
func NewCounters() *Counters {
	return &Counters{}
}

func (c *Counters) touch(at time.Time) {
	if at.IsZero() {
		at = time.Now()
	}
	ts := at.UnixNano()
	for {
		cur := c.lastEventAt.Load()
		if ts <= cur || c.lastEventAt.CompareAndSwap(cur, ts) {
			return
		}
	}
}

// RecordJoin counts a peer joining a room.
func (c *Counters) RecordJoin(at time.Time) {
	c.peersJoined.Add(1)
	c.touch(at)
}

// RecordLeave counts a joined peer disconnecting.
func (c *Counters) RecordLeave(at time.Time) {
	c.peersLeft.Add(1)
	c.touch(at)
}

// RecordAction counts an action and the number of members it reached.
func (c *Counters) RecordAction(recipients int, at time.Time) {
	c.actionsRelayed.Add(1)
	c.actionDeliveries.Add(int64(recipients))
	c.touch(at)
}

// RecordRoomClosed counts a room being deleted.
func (c *Counters) RecordRoomClosed(at time.Time) {
	c.roomsClosed.Add(1)
	c.touch(at)
}

// Snapshot returns the current counter values.
func (c *Counters) Snapshot() Snapshot {
	s := Snapshot{
		PeersJoined:      c.peersJoined.Load(),
		PeersLeft:        c.peersLeft.Load(),
		ActionsRelayed:   c.actionsRelayed.Load(),
		ActionDeliveries: c.actionDeliveries.Load(),
		RoomsClosed:      c.roomsClosed.Load(),
	}
	s.ActivePeers = s.PeersJoined - s.PeersLeft
	if ts := c.lastEventAt.Load(); ts > 0 {
		t := time.Unix(0, ts).UTC()
		s.LastEventAt = &t
	}
	return s
}
