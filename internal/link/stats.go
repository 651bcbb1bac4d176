package link

import (
	"math"
	"sync/atomic"
	"time"

	"nightfall_dashboard/internal/models"
)

// stats are the traffic counters of one Manager. Counters are atomics so
// Send can update them without the state lock.
type stats struct {
	sent      atomic.Uint64
	received  atomic.Uint64
	malformed atomic.Uint64

	// guarded by Manager.mu
	lastMessageAt time.Time
	avgLatencyMs  int64
	attempts      int
}

// observeLatency folds a round-trip sample into the running average.
func (s *stats) observeLatency(sampleMs int64) {
	s.avgLatencyMs = int64(math.Round(float64(s.avgLatencyMs+sampleMs) / 2))
}

func (s *stats) snapshot() models.ConnectionStats {
	return models.ConnectionStats{
		MessagesSent:      s.sent.Load(),
		MessagesReceived:  s.received.Load(),
		MalformedMessages: s.malformed.Load(),
		LastMessageAt:     s.lastMessageAt,
		AverageLatencyMs:  s.avgLatencyMs,
		ReconnectAttempts: s.attempts,
	}
}
