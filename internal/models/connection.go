package models

import "time"

// ConnectionState is the lifecycle state of the robot control link.
type ConnectionState string

const (
	ConnDisconnected ConnectionState = "disconnected"
	ConnConnecting   ConnectionState = "connecting"
	ConnConnected    ConnectionState = "connected"
	ConnReconnecting ConnectionState = "reconnecting"
	ConnError        ConnectionState = "error"
)

// ConnectionStats is the traffic summary exposed to the UI.
type ConnectionStats struct {
	MessagesSent      uint64    `json:"messages_sent"`
	MessagesReceived  uint64    `json:"messages_received"`
	MalformedMessages uint64    `json:"malformed_messages"`
	LastMessageAt     time.Time `json:"last_message_at,omitempty"`
	AverageLatencyMs  int64     `json:"average_latency_ms"`
	ReconnectAttempts int       `json:"reconnect_attempts"`
}
