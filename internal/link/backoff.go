package link

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Reconnect schedule: 2s, 4s, 8s, 16s, then give up.
const (
	retryInitialInterval = 2 * time.Second
	retryMaxInterval     = 16 * time.Second
	retryMultiplier      = 2
	MaxReconnectAttempts = 4
)

// newRetrySchedule returns a deterministic doubling schedule capped at
// MaxReconnectAttempts. NextBackOff yields backoff.Stop once exhausted.
func newRetrySchedule() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retryInitialInterval
	b.Multiplier = retryMultiplier
	b.RandomizationFactor = 0
	b.MaxInterval = retryMaxInterval
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithMaxRetries(b, MaxReconnectAttempts)
}
