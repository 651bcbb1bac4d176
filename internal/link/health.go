package link

import "nightfall_dashboard/internal/models"

// DeriveHealth grades each subsystem from the latest telemetry, link state
// and camera stream. Brain and motors go offline while the link is down
// since the record no longer reflects the robot.
func DeriveHealth(rec models.TelemetryRecord, conn models.ConnectionState, video models.VideoStatus, cam models.CameraAddress) models.SystemHealth {
	h := models.OfflineHealth()

	if conn == models.ConnConnected {
		h.Brain = models.HealthCritical
		if rec.BackStatus == models.BackStatusOK {
			h.Brain = models.HealthHealthy
		}
		h.Motors = models.HealthCritical
		if rec.FrontOnline {
			h.Motors = models.HealthHealthy
		}
	}

	if video.State == models.VideoConnected {
		h.Vision = models.HealthHealthy
		if cam.Assumed {
			h.Vision = models.HealthWarning
		}
	}
	return h
}
