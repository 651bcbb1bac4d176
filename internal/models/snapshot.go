package models

import "time"

// Snapshot is everything the UI renders, taken at one instant.
type Snapshot struct {
	Connection ConnectionState `json:"connection"`
	Telemetry  TelemetryRecord `json:"telemetry"`
	Health     SystemHealth    `json:"health"`
	Camera     CameraAddress   `json:"camera"`
	Video      VideoStatus     `json:"video"`
	Alerts     []Alert         `json:"alerts"`
	Stats      ConnectionStats `json:"stats"`
	Feedback   Feedback        `json:"feedback"`
	TakenAt    time.Time       `json:"taken_at"`
}

// Feedback lets the UI play a cue whenever Seq changes.
type Feedback struct {
	Seq     uint64 `json:"seq"`
	Command string `json:"command,omitempty"`
}
