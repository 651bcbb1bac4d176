package link

import (
	"math"
	"strings"

	"nightfall_dashboard/internal/models"
)

// Field aliases across firmware revisions; the first alias present with a
// usable value wins.
var (
	distanceKeys  = []string{"dist", "d", "distance"}
	gasKeys       = []string{"gas", "g"}
	batteryKeys   = []string{"battery", "v", "voltage"}
	signalKeys    = []string{"signal_strength", "rssi", "signal"}
	cameraIPKeys  = []string{"cam_ip", "camera_ip"}
	cameraOnKeys  = []string{"camera_status", "cam_status", "camera_online"}
	frontKeys     = []string{"front_status", "fo", "front_online"}
	backKeys      = []string{"back_status", "back"}
	emergencyKeys = []string{"emergency", "e"}
	autoKeys      = []string{"auto", "auto_mode"}
	uptimeKeys    = []string{"uptime"}
)

// DecodeTelemetry merges an untrusted payload into prev. Fields that are
// missing or have the wrong type keep their previous value, so the result is
// always fully populated. It never fails.
func DecodeTelemetry(prev models.TelemetryRecord, payload map[string]any) models.TelemetryRecord {
	rec := prev
	if payload == nil {
		return rec
	}

	if v, ok := lookupNumber(payload, distanceKeys, nonNegative); ok {
		rec.DistanceCm = v
	}
	if v, ok := lookupNumber(payload, gasKeys, gasRange); ok {
		rec.GasLevel = int(math.Round(v))
	}
	if v, ok := lookupNumber(payload, batteryKeys, nonNegative); ok {
		rec.BatteryVoltage = v
	}
	if v, ok := lookupNumber(payload, signalKeys, nil); ok {
		rec.SignalStrength = int(math.Round(v))
	}
	if v, ok := lookupNumber(payload, uptimeKeys, nonNegative); ok {
		rec.UptimeSeconds = int64(v)
	}
	if s, ok := lookupString(payload, cameraIPKeys); ok {
		rec.CameraIP = strings.TrimSpace(s)
	}
	if b, ok := lookupFlag(payload, cameraOnKeys); ok {
		rec.CameraOnline = b
	}
	if b, ok := lookupFlag(payload, frontKeys); ok {
		rec.FrontOnline = b
	}
	if s, ok := lookupBackStatus(payload); ok {
		rec.BackStatus = s
	}
	if b, ok := lookupBool(payload, emergencyKeys); ok {
		rec.EmergencyActive = b
	}
	if b, ok := lookupBool(payload, autoKeys); ok {
		rec.AutoModeActive = b
	}
	return rec
}

func nonNegative(v float64) bool { return v >= 0 }

func gasRange(v float64) bool { return v >= 0 && v <= models.MaxGasLevel }

func lookupNumber(p map[string]any, keys []string, valid func(float64) bool) (float64, bool) {
	for _, k := range keys {
		var v float64
		switch n := p[k].(type) {
		case float64:
			v = n
		case int:
			v = float64(n)
		case int64:
			v = float64(n)
		default:
			continue
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		if valid != nil && !valid(v) {
			continue
		}
		return v, true
	}
	return 0, false
}

func lookupString(p map[string]any, keys []string) (string, bool) {
	for _, k := range keys {
		if s, ok := p[k].(string); ok {
			return s, true
		}
	}
	return "", false
}

func lookupBool(p map[string]any, keys []string) (bool, bool) {
	for _, k := range keys {
		switch v := p[k].(type) {
		case bool:
			return v, true
		case float64:
			// firmware sends 0/1 for some flags
			if v == 0 || v == 1 {
				return v == 1, true
			}
		}
	}
	return false, false
}

// lookupFlag is lookupBool that also accepts status words.
func lookupFlag(p map[string]any, keys []string) (bool, bool) {
	if b, ok := lookupBool(p, keys); ok {
		return b, true
	}
	s, ok := lookupString(p, keys)
	if !ok {
		return false, false
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ok", "online", "on", "true":
		return true, true
	case "offline", "off", "false", "error":
		return false, true
	}
	return false, false
}

func lookupBackStatus(p map[string]any) (string, bool) {
	for _, k := range backKeys {
		switch v := p[k].(type) {
		case bool:
			if v {
				return models.BackStatusOK, true
			}
			return models.DefaultBackStatus, true
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s, true
			}
		}
	}
	return "", false
}
