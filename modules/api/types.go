package api

import domain "github.com/example/signaling-relay/domain/relay"

// RoomListResponse is the API response for listing rooms.
type RoomListResponse struct {
	Rooms       []domain.RoomSummary `json:"rooms"`
	Connections int                  `json:"connections"`
}

// ErrorResponse is the API error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HealthResponse is the API health check response.
type HealthResponse struct {
	Status  string         `json:"status"`
	Details map[string]any `json:"details,omitempty"`
}
