package models

import "time"

// Link event types recorded in the event log.
const (
	EventConnected    = "CONNECTED"
	EventDisconnected = "DISCONNECTED"
	EventReconnecting = "RECONNECTING"
	EventError        = "ERROR"
	EventAlert        = "ALERT"
	EventCommand      = "COMMAND"
	EventVideo        = "VIDEO"
)

// LinkEvent is a single log entry.
type LinkEvent struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`        // CONNECTED | DISCONNECTED | RECONNECTING | ERROR | ALERT | COMMAND | VIDEO
	Description string    `json:"description"` // human-readable
	Metadata    any       `json:"metadata,omitempty"`
}
