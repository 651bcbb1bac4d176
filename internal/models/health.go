package models

// HealthStatus grades one robot subsystem.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthWarning  HealthStatus = "warning"
	HealthCritical HealthStatus = "critical"
	HealthOffline  HealthStatus = "offline"
)

// SystemHealth is derived from telemetry and link state; it is never stored.
type SystemHealth struct {
	Brain  HealthStatus `json:"brain"`  // rear controller
	Motors HealthStatus `json:"motors"` // front motor controller
	Vision HealthStatus `json:"vision"` // camera board
}

// OfflineHealth is the health shown before anything is known.
func OfflineHealth() SystemHealth {
	return SystemHealth{Brain: HealthOffline, Motors: HealthOffline, Vision: HealthOffline}
}
