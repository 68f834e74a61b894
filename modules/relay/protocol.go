package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Inbound event types.
const (
	EventJoin       = "join"
	EventOffer      = "offer"
	EventAnswer     = "answer"
	EventICE        = "ice"
	EventAction     = "action"
	EventDisconnect = "disconnect"
)

// Outbound event types.
const (
	EventConnected       = "connected"
	EventExistingUsers   = "existingUsers"
	EventExistingActions = "existingActions"
	EventUserJoined      = "userJoined"
	EventUserLeft        = "userLeft"
)

// Validation constants
const (
	MaxDisplayNameLength = 50
	MaxRoomIDLength      = 100
	MaxActionLength      = 2000

	fallbackNamePrefix = "User"
	fallbackNameChars  = 6
)

// Event processing errors. They are returned for logging only and never
// reach clients.
var (
	ErrMalformedEvent = errors.New("malformed event")
	ErrNotJoined      = errors.New("connection has not joined a room")
	ErrAlreadyJoined  = errors.New("connection already joined a room")
	ErrSessionClosed  = errors.New("session is closed")
	ErrUnknownTarget  = errors.New("target connection not in room")
	ErrUnknownEvent   = errors.New("unknown event type")
)

// Inbound is a single decoded client frame.
type Inbound struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// DecodeInbound parses a client frame. Disconnect cannot be sent over the
// wire; it is raised by the transport.
func DecodeInbound(data []byte) (Inbound, error) {
	var in Inbound
	if err := json.Unmarshal(data, &in); err != nil {
		return Inbound{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	switch in.Type {
	case "":
		return Inbound{}, fmt.Errorf("%w: missing type", ErrMalformedEvent)
	case EventDisconnect:
		return Inbound{}, fmt.Errorf("%w: disconnect is transport-only", ErrMalformedEvent)
	}
	return in, nil
}

type joinPayload struct {
	RoomID      string `json:"roomId"`
	DisplayName string `json:"displayName"`
}

type actionPayload struct {
	Action    string          `json:"action"`
	Timestamp json.RawMessage `json:"timestamp"`
}

type userJoinedPayload struct {
	ConnectionID string `json:"connectionId"`
	DisplayName  string `json:"displayName"`
	TotalMembers int    `json:"totalMembers"`
}

type connectedPayload struct {
	ConnectionID string `json:"connectionId"`
}

// ValidateDisplayName validates a client-supplied display name. Empty names
// are allowed and replaced by a fallback.
func ValidateDisplayName(name string) error {
	if len(name) > MaxDisplayNameLength {
		return fmt.Errorf("%w: display name exceeds %d bytes", ErrMalformedEvent, MaxDisplayNameLength)
	}
	if !utf8.ValidString(name) {
		return fmt.Errorf("%w: display name is not valid UTF-8", ErrMalformedEvent)
	}
	return nil
}

// ValidateRoomID validates a client-supplied room ID.
func ValidateRoomID(roomID string) error {
	if len(roomID) > MaxRoomIDLength {
		return fmt.Errorf("%w: room id exceeds %d bytes", ErrMalformedEvent, MaxRoomIDLength)
	}
	if !utf8.ValidString(roomID) {
		return fmt.Errorf("%w: room id is not valid UTF-8", ErrMalformedEvent)
	}
	return nil
}

// ValidateAction validates caption text after trimming.
func ValidateAction(text string) error {
	if text == "" {
		return fmt.Errorf("%w: empty action", ErrMalformedEvent)
	}
	if len(text) > MaxActionLength {
		return fmt.Errorf("%w: action exceeds %d bytes", ErrMalformedEvent, MaxActionLength)
	}
	if !utf8.ValidString(text) {
		return fmt.Errorf("%w: action is not valid UTF-8", ErrMalformedEvent)
	}
	return nil
}

// FallbackDisplayName derives a label for a connection that joined without one.
func FallbackDisplayName(connectionID string) string {
	id := connectionID
	if len(id) > fallbackNameChars {
		id = id[:fallbackNameChars]
	}
	return fallbackNamePrefix + id
}

func decodeJoin(raw json.RawMessage) (joinPayload, error) {
	var p joinPayload
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &p); err != nil {
			return p, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
	}
	p.RoomID = strings.TrimSpace(p.RoomID)
	p.DisplayName = strings.TrimSpace(p.DisplayName)
	if err := ValidateRoomID(p.RoomID); err != nil {
		return p, err
	}
	if err := ValidateDisplayName(p.DisplayName); err != nil {
		return p, err
	}
	return p, nil
}

func decodeAction(raw json.RawMessage) (actionPayload, error) {
	var p actionPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	p.Action = strings.TrimSpace(p.Action)
	if err := ValidateAction(p.Action); err != nil {
		return p, err
	}
	// Any JSON value is accepted as a timestamp; null counts as absent.
	if string(p.Timestamp) == "null" {
		p.Timestamp = nil
	}
	return p, nil
}

// decodeTargeted splits a relay payload into its target and the remaining
// fields, which are forwarded untouched.
func decodeTargeted(raw json.RawMessage) (string, map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if fields == nil {
		return "", nil, fmt.Errorf("%w: missing payload", ErrMalformedEvent)
	}

	var to string
	rawTo, ok := fields["to"]
	if !ok {
		return "", nil, fmt.Errorf("%w: missing target", ErrMalformedEvent)
	}
	if err := json.Unmarshal(rawTo, &to); err != nil || to == "" {
		return "", nil, fmt.Errorf("%w: invalid target", ErrMalformedEvent)
	}
	delete(fields, "to")
	return to, fields, nil
}
