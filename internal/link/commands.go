package link

import (
	"errors"
	"fmt"
	"time"

	"nightfall_dashboard/internal/models"
)

// DefaultThrottle is the minimum spacing between accepted commands.
const DefaultThrottle = 50 * time.Millisecond

var (
	ErrNotConnected = errors.New("robot link not connected")
	ErrThrottled    = errors.New("command throttled")
)

// Throttle returns the current minimum spacing between commands.
func (m *Manager) Throttle() time.Duration {
	return time.Duration(m.throttle.Load())
}

// SetThrottle changes the command spacing; non-positive values are ignored.
func (m *Manager) SetThrottle(d time.Duration) {
	if d <= 0 {
		return
	}
	m.throttle.Store(int64(d))
}

// Send encodes and writes cmd. It fails with ErrNotConnected unless the link
// is connected and with ErrThrottled when the previous accepted command is
// younger than the throttle interval. Rejected commands leave the throttle
// window untouched.
func (m *Manager) Send(cmd models.MotorCommand) error {
	m.sendMu.Lock()
	defer m.sendMu.Unlock()

	m.mu.Lock()
	closed, state, conn := m.closed, m.fsm.State(), m.conn
	m.mu.Unlock()

	if closed {
		return ErrClosed
	}
	if state != models.ConnConnected || conn == nil {
		m.metrics.CommandRejected("not_connected")
		return ErrNotConnected
	}

	now := m.clock.Now()
	if !m.lastSent.IsZero() && now.Sub(m.lastSent) < m.Throttle() {
		m.metrics.CommandRejected("throttled")
		return ErrThrottled
	}

	raw, err := m.codec.EncodeCommand(cmd)
	if err != nil {
		m.metrics.CommandRejected("unsupported")
		return fmt.Errorf("encode %s: %w", cmd, err)
	}
	if err := conn.WriteMessage(raw); err != nil {
		m.metrics.CommandRejected("write_failed")
		return fmt.Errorf("write %s: %w", cmd, err)
	}

	m.lastSent = now
	m.stats.sent.Add(1)
	m.metrics.MessageSent()
	m.log.Debugw("link_command_sent", "command", cmd.String())
	m.listener.OnCommand(cmd)
	return nil
}
