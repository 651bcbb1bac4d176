// Package alert keeps the operator notification list.
package alert

import (
	"time"

	"github.com/google/uuid"

	"nightfall_dashboard/internal/models"
)

// List policy.
const (
	DefaultDuration = 5 * time.Second
	DedupWindow     = 500 * time.Millisecond
	MaxAlerts       = 10
	MaxErrorAlerts  = 3
)

// Aggregator merges repeated alerts, expires them and bounds the list.
// Time is always passed in; it owns no timers and is not safe for
// concurrent use.
type Aggregator struct {
	alerts []models.Alert // newest first
	dedup  time.Duration
	newID  func() string
}

// NewAggregator returns an empty list with the default dedup window.
func NewAggregator() *Aggregator {
	return &Aggregator{
		dedup: DedupWindow,
		newID: func() string { return uuid.NewString() },
	}
}

// Emit records message at now. ttl 0 keeps the alert until dismissed. The
// returned bool is false when the alert was dropped as a duplicate inside
// the dedup window.
func (a *Aggregator) Emit(now time.Time, message string, kind models.AlertKind, ttl time.Duration) (models.Alert, bool) {
	a.prune(now)

	for i, existing := range a.alerts {
		if existing.Message != message {
			continue
		}
		if now.Sub(existing.Timestamp) < a.dedup {
			return existing, false
		}
		existing.OccurrenceCount++
		existing.Timestamp = now
		existing.Kind = kind
		existing.ExpiresAt = expiry(now, ttl)
		a.alerts = append(a.alerts[:i], a.alerts[i+1:]...)
		a.push(existing)
		return existing, true
	}

	al := models.Alert{
		ID:              a.newID(),
		Message:         message,
		Kind:            kind,
		Timestamp:       now,
		OccurrenceCount: 1,
		ExpiresAt:       expiry(now, ttl),
	}
	a.push(al)
	return al, true
}

// Dismiss removes the alert with id and reports whether it existed.
func (a *Aggregator) Dismiss(id string) bool {
	for i, al := range a.alerts {
		if al.ID == id {
			a.alerts = append(a.alerts[:i], a.alerts[i+1:]...)
			return true
		}
	}
	return false
}

// List drops expired alerts and returns a copy, newest first.
func (a *Aggregator) List(now time.Time) []models.Alert {
	a.prune(now)
	out := make([]models.Alert, len(a.alerts))
	copy(out, a.alerts)
	return out
}

func (a *Aggregator) push(al models.Alert) {
	a.alerts = append([]models.Alert{al}, a.alerts...)

	// sticky errors stay until dismissed and do not count toward the error cap
	nErr := 0
	kept := a.alerts[:0]
	for _, x := range a.alerts {
		if x.Kind == models.AlertError && !x.ExpiresAt.IsZero() {
			nErr++
			if nErr > MaxErrorAlerts {
				continue
			}
		}
		kept = append(kept, x)
	}
	a.alerts = kept
	if len(a.alerts) > MaxAlerts {
		a.alerts = a.alerts[:MaxAlerts]
	}
}

func (a *Aggregator) prune(now time.Time) {
	kept := a.alerts[:0]
	for _, al := range a.alerts {
		if !al.ExpiresAt.IsZero() && !now.Before(al.ExpiresAt) {
			continue
		}
		kept = append(kept, al)
	}
	a.alerts = kept
}

func expiry(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}
