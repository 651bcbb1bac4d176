// Package link owns the WebSocket connection to the robot: dialing,
// decoding inbound frames, keep-alive, reconnect with backoff and the
// throttled command channel.
package link

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"k8s.io/utils/clock"

	"nightfall_dashboard/internal/alert"
	"nightfall_dashboard/internal/logger"
	"nightfall_dashboard/internal/metrics"
	"nightfall_dashboard/internal/models"
	"nightfall_dashboard/internal/protocol"
	"nightfall_dashboard/internal/transport"
)

// Alert texts shown to the operator.
const (
	MsgConnected       = "Connected to robot successfully"
	MsgInvalidData     = "Invalid data received from robot"
	MsgTransportError  = "WebSocket connection error"
	MsgReconnectFailed = "Failed to reconnect to robot. Please check connection."
)

// DefaultKeepAlive is the ping period for protocols that support it.
const DefaultKeepAlive = 5 * time.Second

// ErrClosed is returned once Close has been called.
var ErrClosed = errors.New("link manager closed")

// Listener receives everything the link learns. OnCommand runs on the
// caller's goroutine from Send, serialised with other sends only. The other
// callbacks run on the manager's goroutines with its state lock held, in
// arrival order, so they must not call back into the Manager except State.
type Listener interface {
	OnState(state models.ConnectionState)
	OnTelemetry(rec models.TelemetryRecord)
	OnCamera(addr models.CameraAddress)
	OnAlert(message string, kind models.AlertKind, ttl time.Duration)
	OnCommand(cmd models.MotorCommand)
}

// Options configures a Manager. Zero values fall back to defaults.
type Options struct {
	URL           string
	Codec         protocol.Codec
	Dialer        transport.Dialer
	Clock         clock.WithTicker
	Logger        *logger.Logger
	Metrics       *metrics.Collector
	AutoReconnect bool
	KeepAlive     time.Duration
	Throttle      time.Duration
}

// Manager is one robot link. All handlers run behind mu.
type Manager struct {
	url       string
	codec     protocol.Codec
	dialer    transport.Dialer
	clock     clock.WithTicker
	log       *logger.Logger
	metrics   *metrics.Collector
	listener  Listener
	keepAlive time.Duration

	mu            sync.Mutex
	fsm           *stateMachine
	gen           uint64
	stop          chan struct{}
	cancelDial    context.CancelFunc
	conn          transport.Conn
	retry         backoff.BackOff
	autoReconnect bool
	closed        bool
	telemetry     models.TelemetryRecord
	camera        string
	stats         stats

	sendMu   sync.Mutex
	lastSent time.Time
	throttle atomic.Int64
}

// NewManager builds a disconnected Manager. listener must not be nil.
func NewManager(opts Options, listener Listener) *Manager {
	m := &Manager{
		url:           opts.URL,
		codec:         opts.Codec,
		dialer:        opts.Dialer,
		clock:         opts.Clock,
		log:           opts.Logger,
		metrics:       opts.Metrics,
		listener:      listener,
		keepAlive:     opts.KeepAlive,
		stop:          make(chan struct{}),
		retry:         newRetrySchedule(),
		autoReconnect: opts.AutoReconnect,
		telemetry:     models.DefaultTelemetry(),
	}
	if m.codec == nil {
		m.codec, _ = protocol.New(protocol.RevisionVector)
	}
	if m.dialer == nil {
		m.dialer = transport.NewWebSocketDialer()
	}
	if m.clock == nil {
		m.clock = clock.RealClock{}
	}
	if m.log == nil {
		m.log = logger.Nop()
	}
	if m.keepAlive == 0 {
		m.keepAlive = DefaultKeepAlive
	}
	throttle := opts.Throttle
	if throttle <= 0 {
		throttle = DefaultThrottle
	}
	m.throttle.Store(int64(throttle))
	m.fsm = newStateMachine(m.enterState)
	return m
}

func (m *Manager) enterState(s models.ConnectionState) {
	m.log.Debugw("link_state", "state", s, "url", m.url)
	m.metrics.SetLinkState(s)
	m.listener.OnState(s)
}

// State is safe to call from Listener callbacks.
func (m *Manager) State() models.ConnectionState {
	return m.fsm.State()
}

// Telemetry returns the latest decoded record.
func (m *Manager) Telemetry() models.TelemetryRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.telemetry
}

// Stats returns the traffic counters.
func (m *Manager) Stats() models.ConnectionStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats.snapshot()
}

// SetAutoReconnect toggles scheduling of retries after a close.
func (m *Manager) SetAutoReconnect(on bool) {
	m.mu.Lock()
	m.autoReconnect = on
	m.mu.Unlock()
}

// Connect opens the link. It is a no-op while connecting or connected and
// cancels a pending reconnect timer otherwise. The dial runs in the background.
func (m *Manager) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	switch m.fsm.State() {
	case models.ConnConnecting, models.ConnConnected:
		return nil
	}
	m.connectLocked()
	return nil
}

// Reconnect drops any current connection, resets the retry budget and dials.
func (m *Manager) Reconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.retry.Reset()
	m.stats.attempts = 0
	switch m.fsm.State() {
	case models.ConnConnecting, models.ConnConnected:
		m.resetLocked()
		m.fireLocked(EventClose)
	}
	m.connectLocked()
	return nil
}

// Disconnect tears the link down without scheduling a retry.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disconnectLocked()
}

// Close disconnects and makes the Manager unusable.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.disconnectLocked()
	m.closed = true
	return nil
}

func (m *Manager) disconnectLocked() {
	m.resetLocked()
	if m.fsm.State() != models.ConnDisconnected {
		m.fireLocked(EventClose)
	}
}

// resetLocked ends the current generation: timers stop, the dial is aborted
// and the transport is closed. Late events of that generation are dropped.
func (m *Manager) resetLocked() {
	m.gen++
	close(m.stop)
	m.stop = make(chan struct{})
	if m.cancelDial != nil {
		m.cancelDial()
		m.cancelDial = nil
	}
	if m.conn != nil {
		if err := m.conn.Close(); err != nil {
			m.log.Debugw("link_close_failed", "err", err)
		}
		m.conn = nil
	}
}

func (m *Manager) fireLocked(event string) {
	if err := m.fsm.fire(event); err != nil {
		m.log.Warnw("link_transition_rejected", "event", event, "state", m.fsm.State(), "err", err)
	}
}

func (m *Manager) connectLocked() {
	m.resetLocked()
	m.fireLocked(EventConnect)

	ctx, cancel := context.WithCancel(context.Background())
	m.cancelDial = cancel
	go m.dial(ctx, m.gen)
}

func (m *Manager) dial(ctx context.Context, gen uint64) {
	conn, err := m.dialer.Dial(ctx, m.url)

	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	m.cancelDial = nil
	if err != nil {
		m.log.Warnw("link_dial_failed", "url", m.url, "err", err)
		m.failLocked()
		return
	}

	m.conn = conn
	m.fireLocked(EventOpen)
	m.retry.Reset()
	m.stats.attempts = 0
	m.log.Infow("link_connected", "url", m.url, "protocol", m.codec.Revision())
	m.alertLocked(MsgConnected, models.AlertSuccess, alert.DefaultDuration)

	go m.readLoop(conn, gen)
	if _, err := m.codec.EncodePing(0); err == nil && m.keepAlive > 0 {
		go m.keepAliveLoop(conn, m.stop)
	}
}

// failLocked handles a dial failure or a broken transport.
func (m *Manager) failLocked() {
	m.fireLocked(EventFail)
	m.alertLocked(MsgTransportError, models.AlertError, alert.DefaultDuration)
	m.closeLocked()
}

// closeLocked moves to disconnected and schedules a retry when allowed.
func (m *Manager) closeLocked() {
	m.resetLocked()
	if m.fsm.State() != models.ConnDisconnected {
		m.fireLocked(EventClose)
	}
	if m.autoReconnect && !m.closed {
		m.scheduleRetryLocked()
	}
}

func (m *Manager) scheduleRetryLocked() {
	delay := m.retry.NextBackOff()
	if delay == backoff.Stop {
		m.log.Warnw("link_reconnect_exhausted", "url", m.url, "attempts", m.stats.attempts)
		m.alertLocked(MsgReconnectFailed, models.AlertError, 0)
		return
	}

	m.stats.attempts++
	m.metrics.ReconnectScheduled()
	m.fireLocked(EventRetry)
	m.log.Infow("link_reconnect_scheduled", "attempt", m.stats.attempts, "delay", delay)
	// shown until the retry fires
	m.alertLocked(fmt.Sprintf("Reconnecting in %ds...", int(delay/time.Second)), models.AlertWarning, delay)

	gen, stop := m.gen, m.stop
	t := m.clock.NewTimer(delay)
	go func() {
		select {
		case <-t.C():
		case <-stop:
			t.Stop()
			return
		}
		m.mu.Lock()
		defer m.mu.Unlock()
		if gen != m.gen || m.closed {
			return
		}
		m.connectLocked()
	}()
}

func (m *Manager) readLoop(conn transport.Conn, gen uint64) {
	for {
		data, err := conn.ReadMessage()

		m.mu.Lock()
		if gen != m.gen {
			m.mu.Unlock()
			return
		}
		if err != nil {
			if transport.IsClosed(err) {
				m.log.Infow("link_closed", "url", m.url, "err", err)
				m.closeLocked()
			} else {
				m.log.Warnw("link_read_failed", "url", m.url, "err", err)
				m.failLocked()
			}
			m.mu.Unlock()
			return
		}
		m.handleLocked(data)
		m.mu.Unlock()
	}
}

func (m *Manager) keepAliveLoop(conn transport.Conn, stop <-chan struct{}) {
	t := m.clock.NewTicker(m.keepAlive)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case now := <-t.C():
			raw, err := m.codec.EncodePing(now.UnixMilli())
			if err != nil {
				return
			}
			if err := conn.WriteMessage(raw); err != nil {
				m.log.Debugw("link_ping_failed", "err", err)
			}
		}
	}
}

func (m *Manager) handleLocked(data []byte) {
	now := m.clock.Now()
	m.stats.received.Add(1)
	m.stats.lastMessageAt = now
	m.metrics.MessageReceived()

	msg, err := m.codec.Decode(data)
	if err != nil {
		m.stats.malformed.Add(1)
		m.metrics.MessageMalformed()
		m.log.Warnw("link_malformed_message", "err", err, "size", len(data))
		m.alertLocked(MsgInvalidData, models.AlertWarning, alert.DefaultDuration)
		return
	}

	switch msg.Kind {
	case protocol.KindPong:
		sample := now.UnixMilli() - msg.Timestamp
		if sample < 0 {
			return
		}
		m.stats.observeLatency(sample)
		m.metrics.ObserveLatency(time.Duration(sample) * time.Millisecond)
	case protocol.KindTelemetry:
		m.telemetry = DecodeTelemetry(m.telemetry, msg.Payload)
		m.listener.OnTelemetry(m.telemetry)
		m.updateCameraLocked(m.telemetry.CameraIP, 0)
	case protocol.KindCamera:
		m.telemetry.CameraIP = msg.CameraIP
		m.telemetry.CameraOnline = true
		m.telemetry.SignalStrength = msg.RSSI
		m.listener.OnTelemetry(m.telemetry)
		m.updateCameraLocked(msg.CameraIP, msg.RSSI)
	default:
		m.log.Debugw("link_unknown_message", "size", len(data))
	}
}

func (m *Manager) updateCameraLocked(ip string, rssi int) {
	if ip == "" || ip == m.camera {
		return
	}
	m.camera = ip
	m.log.Infow("link_camera_discovered", "ip", ip)
	m.listener.OnCamera(models.CameraAddress{IP: ip, RSSI: rssi})
}

func (m *Manager) alertLocked(message string, kind models.AlertKind, ttl time.Duration) {
	m.listener.OnAlert(message, kind, ttl)
}
