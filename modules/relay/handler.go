package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	domain "github.com/example/signaling-relay/domain/relay"
	"github.com/go-monolith/mono/pkg/types"
)

// DefaultRoomID is used when a join does not name a room.
const DefaultRoomID = "default"

// Transport delivers envelopes to connections. Neither method may block.
// Send reports false when the envelope could not be queued; Broadcast
// encodes the envelope once and returns how many connections it was
// queued for.
type Transport interface {
	Send(connectionID string, env domain.Envelope) bool
	Broadcast(connectionIDs []string, env domain.Envelope) int
}

// Observer is notified after state changes have been applied and the
// resulting envelopes sent.
type Observer interface {
	PeerJoined(ctx context.Context, roomID string, peer domain.Peer, totalMembers int)
	PeerLeft(ctx context.Context, roomID string, peer domain.Peer, remainingMembers int)
	ActionBroadcast(ctx context.Context, roomID string, record domain.ActionRecord, recipients int)
	RoomClosed(ctx context.Context, roomID string)
}

type nopObserver struct{}

func (nopObserver) PeerJoined(context.Context, string, domain.Peer, int)              {}
func (nopObserver) PeerLeft(context.Context, string, domain.Peer, int)                {}
func (nopObserver) ActionBroadcast(context.Context, string, domain.ActionRecord, int) {}
func (nopObserver) RoomClosed(context.Context, string)                                {}

// SessionState is the protocol state of a single connection.
type SessionState int

const (
	StateUnbound SessionState = iota
	StateJoined
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateUnbound:
		return "unbound"
	case StateJoined:
		return "joined"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Session is the per-connection protocol state. A session is driven by the
// connection's read loop only and is not safe for concurrent use.
type Session struct {
	ID       string
	state    SessionState
	identity domain.Identity
}

// State returns the current protocol state.
func (s *Session) State() SessionState {
	return s.state
}

// Identity returns the room and display name the session joined with.
func (s *Session) Identity() domain.Identity {
	return s.identity
}

// Handler runs the relay protocol against the shared registry and directory.
type Handler struct {
	registry    *Registry
	directory   *Directory
	transport   Transport
	observer    Observer
	logger      types.Logger
	defaultRoom string
	now         func() time.Time
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithObserver sets the lifecycle observer.
func WithObserver(o Observer) HandlerOption {
	return func(h *Handler) {
		if o != nil {
			h.observer = o
		}
	}
}

// WithDefaultRoom overrides the room used when a join omits one.
func WithDefaultRoom(roomID string) HandlerOption {
	return func(h *Handler) {
		if roomID != "" {
			h.defaultRoom = roomID
		}
	}
}

// WithClock overrides the clock used to stamp actions.
func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// NewHandler creates a protocol handler.
func NewHandler(registry *Registry, directory *Directory, transport Transport, logger types.Logger, opts ...HandlerOption) *Handler {
	h := &Handler{
		registry:    registry,
		directory:   directory,
		transport:   transport,
		observer:    nopObserver{},
		logger:      logger,
		defaultRoom: DefaultRoomID,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Open starts a session for a newly established connection and tells the
// client its connection ID.
func (h *Handler) Open(connectionID string) *Session {
	s := &Session{ID: connectionID, state: StateUnbound}
	h.send(connectionID, EventConnected, connectedPayload{ConnectionID: connectionID})
	return s
}

// Disconnect runs cleanup for a closed connection. It is safe to call more
// than once.
func (h *Handler) Disconnect(ctx context.Context, s *Session) {
	if err := h.Handle(ctx, s, Inbound{Type: EventDisconnect}); err != nil {
		h.logger.Debug("Disconnect ignored", "connectionID", s.ID, "error", err)
	}
}

// Handle processes one event for a session. Returned errors describe why an
// event was dropped; the session stays usable.
func (h *Handler) Handle(ctx context.Context, s *Session, in Inbound) error {
	if s.state == StateClosed {
		return ErrSessionClosed
	}

	switch in.Type {
	case EventJoin:
		return h.handleJoin(ctx, s, in.Payload)
	case EventOffer, EventAnswer:
		return h.handleRelay(s, in.Type, in.Payload, true)
	case EventICE:
		return h.handleRelay(s, in.Type, in.Payload, false)
	case EventAction:
		return h.handleAction(ctx, s, in.Payload)
	case EventDisconnect:
		h.handleDisconnect(ctx, s)
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, in.Type)
	}
}

func (h *Handler) handleJoin(ctx context.Context, s *Session, raw json.RawMessage) error {
	if s.state != StateUnbound {
		return ErrAlreadyJoined
	}

	p, err := decodeJoin(raw)
	if err != nil {
		return err
	}
	roomID := p.RoomID
	if roomID == "" {
		roomID = h.defaultRoom
	}
	name := p.DisplayName
	if name == "" {
		name = FallbackDisplayName(s.ID)
	}

	h.registry.Bind(s.ID, roomID, name)
	result := h.directory.Join(roomID, s.ID, name)
	s.state = StateJoined
	s.identity = domain.Identity{RoomID: roomID, DisplayName: name}

	h.send(s.ID, EventExistingUsers, result.Existing)
	if len(result.Cached) > 0 {
		h.send(s.ID, EventExistingActions, result.Cached)
	}

	joined := userJoinedPayload{
		ConnectionID: s.ID,
		DisplayName:  name,
		TotalMembers: result.Total,
	}
	h.broadcast(result.Existing, EventUserJoined, joined)

	h.logger.Info("Peer joined room",
		"connectionID", s.ID,
		"roomID", roomID,
		"displayName", name,
		"members", result.Total)
	h.observer.PeerJoined(ctx, roomID, domain.Peer{ConnectionID: s.ID, DisplayName: name}, result.Total)
	return nil
}

func (h *Handler) handleRelay(s *Session, eventType string, raw json.RawMessage, withName bool) error {
	sender, err := h.joinedIdentity(s)
	if err != nil {
		return err
	}

	to, fields, err := decodeTargeted(raw)
	if err != nil {
		return err
	}
	target, ok := h.registry.Lookup(to)
	if !ok || target.RoomID != sender.RoomID {
		return fmt.Errorf("%w: %s", ErrUnknownTarget, to)
	}

	fields["from"] = mustRaw(s.ID)
	if withName {
		fields["displayName"] = mustRaw(sender.DisplayName)
	}
	h.send(to, eventType, fields)
	return nil
}

func (h *Handler) handleAction(ctx context.Context, s *Session, raw json.RawMessage) error {
	sender, err := h.joinedIdentity(s)
	if err != nil {
		return err
	}

	p, err := decodeAction(raw)
	if err != nil {
		return err
	}
	timestamp := p.Timestamp
	if len(timestamp) == 0 {
		timestamp = mustRaw(h.now().UnixMilli())
	}

	record, members, ok := h.directory.RecordAction(sender.RoomID, domain.ActionRecord{
		ConnectionID: s.ID,
		DisplayName:  sender.DisplayName,
		Action:       p.Action,
		Timestamp:    timestamp,
	})
	if !ok {
		h.logger.Debug("Action dropped for missing room", "connectionID", s.ID, "roomID", sender.RoomID)
		return nil
	}

	h.broadcast(members, EventAction, record)
	h.observer.ActionBroadcast(ctx, sender.RoomID, record, len(members))
	return nil
}

func (h *Handler) handleDisconnect(ctx context.Context, s *Session) {
	s.state = StateClosed

	identity, ok := h.registry.Unbind(s.ID)
	if !ok {
		h.logger.Debug("Unbound connection closed", "connectionID", s.ID)
		return
	}

	remaining, removed := h.directory.Leave(identity.RoomID, s.ID)
	if !removed {
		return
	}

	peer := domain.Peer{ConnectionID: s.ID, DisplayName: identity.DisplayName}
	h.broadcast(remaining, EventUserLeft, peer)

	h.logger.Info("Peer left room",
		"connectionID", s.ID,
		"roomID", identity.RoomID,
		"remaining", len(remaining))
	h.observer.PeerLeft(ctx, identity.RoomID, peer, len(remaining))
	if len(remaining) == 0 {
		h.logger.Info("Room closed", "roomID", identity.RoomID)
		h.observer.RoomClosed(ctx, identity.RoomID)
	}
}

func (h *Handler) joinedIdentity(s *Session) (domain.Identity, error) {
	if s.state != StateJoined {
		return domain.Identity{}, ErrNotJoined
	}
	identity, ok := h.registry.Lookup(s.ID)
	if !ok {
		return domain.Identity{}, ErrNotJoined
	}
	return identity, nil
}

func (h *Handler) send(connectionID, eventType string, payload any) {
	if !h.transport.Send(connectionID, domain.Envelope{Type: eventType, Payload: payload}) {
		h.logger.Debug("Envelope not delivered", "connectionID", connectionID, "type", eventType)
	}
}

func (h *Handler) broadcast(peers []domain.Peer, eventType string, payload any) {
	if len(peers) == 0 {
		return
	}
	ids := make([]string, 0, len(peers))
	for _, p := range peers {
		ids = append(ids, p.ConnectionID)
	}
	if n := h.transport.Broadcast(ids, domain.Envelope{Type: eventType, Payload: payload}); n < len(ids) {
		h.logger.Debug("Broadcast partially delivered", "type", eventType, "delivered", n, "recipients", len(ids))
	}
}

func mustRaw(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}
