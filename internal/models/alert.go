package models

import "time"

// AlertKind is the severity of a user-facing alert.
type AlertKind string

const (
	AlertInfo    AlertKind = "info"
	AlertWarning AlertKind = "warning"
	AlertError   AlertKind = "error"
	AlertSuccess AlertKind = "success"
)

// Alert is one entry of the notification list.
type Alert struct {
	ID              string    `json:"id"`
	Message         string    `json:"message"`
	Kind            AlertKind `json:"kind"`
	Timestamp       time.Time `json:"timestamp"`
	OccurrenceCount int       `json:"occurrence_count"`
	ExpiresAt       time.Time `json:"expires_at,omitempty"` // zero = sticky
}
