package link

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	testingclock "k8s.io/utils/clock/testing"

	"nightfall_dashboard/internal/models"
	"nightfall_dashboard/internal/protocol"
	"nightfall_dashboard/internal/transport"
)

var errDialRefused = errors.New("connection refused")

// fakeConn is an in-memory robot connection.
type fakeConn struct {
	inbound chan []byte
	done    chan struct{}
	once    sync.Once

	mu      sync.Mutex
	written [][]byte
	readErr error
}

func newFakeConn() *fakeConn {
	return &fakeConn{inbound: make(chan []byte, 16), done: make(chan struct{})}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case msg := <-c.inbound:
		return msg, nil
	case <-c.done:
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.readErr != nil {
			return nil, c.readErr
		}
		return nil, io.EOF
	}
}

func (c *fakeConn) WriteMessage(data []byte) error {
	select {
	case <-c.done:
		return io.ErrClosedPipe
	default:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

// drop simulates the robot going away with err (nil means orderly close).
func (c *fakeConn) drop(err error) {
	c.mu.Lock()
	c.readErr = err
	c.mu.Unlock()
	c.Close()
}

func (c *fakeConn) Written() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.written))
	for i, w := range c.written {
		out[i] = string(w)
	}
	return out
}

// fakeDialer hands out queued results; with an empty queue it refuses.
type fakeDialer struct {
	mu      sync.Mutex
	results []dialResult
	dials   chan *fakeConn
	block   chan struct{} // when set, Dial waits on it or ctx
}

type dialResult struct {
	conn *fakeConn
	err  error
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{dials: make(chan *fakeConn, 16)}
}

func (d *fakeDialer) succeed(c *fakeConn) {
	d.mu.Lock()
	d.results = append(d.results, dialResult{conn: c})
	d.mu.Unlock()
}

func (d *fakeDialer) Dial(ctx context.Context, _ string) (transport.Conn, error) {
	d.mu.Lock()
	block := d.block
	var res dialResult
	if len(d.results) > 0 {
		res = d.results[0]
		d.results = d.results[1:]
	} else {
		res = dialResult{err: errDialRefused}
	}
	d.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			d.dials <- nil
			return nil, ctx.Err()
		}
	}
	d.dials <- res.conn
	if res.err != nil {
		return nil, res.err
	}
	return res.conn, nil
}

// recorder is a Listener that keeps everything it hears.
type recorder struct {
	mu        sync.Mutex
	states    []models.ConnectionState
	telemetry []models.TelemetryRecord
	cameras   []models.CameraAddress
	alerts    []recordedAlert
	commands  []models.MotorCommand

	// afterCommand runs outside mu once a command is recorded
	afterCommand func(models.MotorCommand)
}

type recordedAlert struct {
	message string
	kind    models.AlertKind
	ttl     time.Duration
}

func (r *recorder) OnState(s models.ConnectionState) {
	r.mu.Lock()
	r.states = append(r.states, s)
	r.mu.Unlock()
}

func (r *recorder) OnTelemetry(rec models.TelemetryRecord) {
	r.mu.Lock()
	r.telemetry = append(r.telemetry, rec)
	r.mu.Unlock()
}

func (r *recorder) OnCamera(a models.CameraAddress) {
	r.mu.Lock()
	r.cameras = append(r.cameras, a)
	r.mu.Unlock()
}

func (r *recorder) OnAlert(msg string, kind models.AlertKind, ttl time.Duration) {
	r.mu.Lock()
	r.alerts = append(r.alerts, recordedAlert{msg, kind, ttl})
	r.mu.Unlock()
}

func (r *recorder) OnCommand(cmd models.MotorCommand) {
	r.mu.Lock()
	r.commands = append(r.commands, cmd)
	hook := r.afterCommand
	r.mu.Unlock()
	if hook != nil {
		hook(cmd)
	}
}

func (r *recorder) States() []models.ConnectionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.ConnectionState(nil), r.states...)
}

func (r *recorder) Alerts() []recordedAlert {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedAlert(nil), r.alerts...)
}

func (r *recorder) countAlerts(msg string) int {
	n := 0
	for _, a := range r.Alerts() {
		if a.message == msg {
			n++
		}
	}
	return n
}

type harness struct {
	m      *Manager
	clock  *testingclock.FakeClock
	dialer *fakeDialer
	rec    *recorder
}

func newHarness(t *testing.T, rev protocol.Revision, autoReconnect bool) *harness {
	t.Helper()
	codec, err := protocol.New(rev)
	if err != nil {
		t.Fatal(err)
	}
	h := &harness{
		clock:  testingclock.NewFakeClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)),
		dialer: newFakeDialer(),
		rec:    &recorder{},
	}
	h.m = NewManager(Options{
		URL:           "ws://robot.test:8888",
		Codec:         codec,
		Dialer:        h.dialer,
		Clock:         h.clock,
		AutoReconnect: autoReconnect,
	}, h.rec)
	t.Cleanup(func() { _ = h.m.Close() })
	return h
}

// waitDial blocks until the dialer has been called once.
func (h *harness) waitDial(t *testing.T) *fakeConn {
	t.Helper()
	select {
	case c := <-h.dialer.dials:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dial")
		return nil
	}
}

func (h *harness) expectNoDial(t *testing.T) {
	t.Helper()
	select {
	case <-h.dialer.dials:
		t.Fatal("unexpected dial")
	case <-time.After(50 * time.Millisecond):
	}
}

// connect dials a fresh fakeConn and waits until the link is connected.
func (h *harness) connect(t *testing.T) *fakeConn {
	t.Helper()
	conn := newFakeConn()
	h.dialer.succeed(conn)
	if err := h.m.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	h.waitDial(t)
	waitFor(t, "connected", func() bool { return h.m.State() == models.ConnConnected })
	return conn
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
