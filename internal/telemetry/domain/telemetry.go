package domain

import (
	"encoding/json"
	"time"
)

// Event types emitted by the auth server.
const (
	EventTypeRequest = "grpc_request"
	EventTypeAuth    = "auth_event"
)

// Event is one telemetry record. UserID and SessionID are empty for anonymous calls.
type Event struct {
	UserID    string          `json:"user_id,omitempty"`
	SessionID string          `json:"session_id,omitempty"`
	EventType string          `json:"event_type"`
	Source    string          `json:"source"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// RequestMetadata is the Metadata shape of grpc_request events.
type RequestMetadata struct {
	FullMethod string `json:"full_method"`
	StatusCode string `json:"status_code"`
	DurationMs int64  `json:"duration_ms"`
	ClientIP   string `json:"client_ip"`
}
