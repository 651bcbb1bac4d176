package models

import "time"

// Telemetry defaults applied before the first message arrives.
const (
	DefaultBatteryVoltage = 14.8 // nominal full 4S pack
	DefaultBackStatus     = "offline"
	BackStatusOK          = "ok"
	MaxGasLevel           = 4095 // 12-bit ADC
)

// TelemetryRecord is the canonical, always fully-populated robot snapshot.
type TelemetryRecord struct {
	DistanceCm      float64 `json:"distance_cm"`
	GasLevel        int     `json:"gas_level"`       // 0..4095
	BatteryVoltage  float64 `json:"battery_voltage"` // V
	SignalStrength  int     `json:"signal_strength"` // dBm
	CameraIP        string  `json:"camera_ip"`       // "" until discovered
	CameraOnline    bool    `json:"camera_online"`
	FrontOnline     bool    `json:"front_online"`
	BackStatus      string  `json:"back_status"` // "ok" | "offline" | firmware text
	EmergencyActive bool    `json:"emergency_active"`
	AutoModeActive  bool    `json:"auto_mode_active"`
	UptimeSeconds   int64   `json:"uptime_seconds"`
}

// DefaultTelemetry returns the record consumers see before any telemetry.
func DefaultTelemetry() TelemetryRecord {
	return TelemetryRecord{
		BatteryVoltage: DefaultBatteryVoltage,
		BackStatus:     DefaultBackStatus,
	}
}

// TelemetrySample is one persisted point of telemetry history.
type TelemetrySample struct {
	ID         int64           `json:"id"`
	RecordedAt time.Time       `json:"recorded_at"`
	Record     TelemetryRecord `json:"record"`
}
