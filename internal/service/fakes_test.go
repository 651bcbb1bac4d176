package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"nightfall_dashboard/internal/models"
	"nightfall_dashboard/internal/transport"
)

// fakeEventRepo records appends and serves canned List results.
type fakeEventRepo struct {
	mu       sync.Mutex
	appended []models.LinkEvent

	gotFrom time.Time
	gotTo   time.Time
	gotType string
	events  []models.LinkEvent
	err     error
	calls   int
}

func (f *fakeEventRepo) Append(_ context.Context, e models.LinkEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appended = append(f.appended, e)
	return nil
}

func (f *fakeEventRepo) List(_ context.Context, from, to time.Time, typ string) ([]models.LinkEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.gotFrom, f.gotTo, f.gotType = from, to, typ
	return f.events, f.err
}

func (f *fakeEventRepo) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.appended))
	for _, e := range f.appended {
		out = append(out, e.Type)
	}
	return out
}

// fakeTelemetryRepo keeps samples in memory.
type fakeTelemetryRepo struct {
	mu        sync.Mutex
	samples   []models.TelemetrySample
	trimCalls []int
	listLimit int
	appendErr error
}

func (f *fakeTelemetryRepo) Append(_ context.Context, s models.TelemetrySample) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return 0, f.appendErr
	}
	s.ID = int64(len(f.samples) + 1)
	f.samples = append(f.samples, s)
	return s.ID, nil
}

func (f *fakeTelemetryRepo) Trim(_ context.Context, keep int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trimCalls = append(f.trimCalls, keep)
	if len(f.samples) <= keep {
		return 0, nil
	}
	n := len(f.samples) - keep
	f.samples = append([]models.TelemetrySample(nil), f.samples[n:]...)
	return int64(n), nil
}

func (f *fakeTelemetryRepo) List(_ context.Context, limit int) ([]models.TelemetrySample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listLimit = limit
	if limit < len(f.samples) {
		return append([]models.TelemetrySample(nil), f.samples[len(f.samples)-limit:]...), nil
	}
	return append([]models.TelemetrySample(nil), f.samples...), nil
}

func (f *fakeTelemetryRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.samples)
}

// fakeConn is a robot connection fed from a channel.
type fakeConn struct {
	inbound chan []byte
	done    chan struct{}
	once    sync.Once

	mu      sync.Mutex
	written [][]byte
}

func newFakeConn() *fakeConn {
	return &fakeConn{inbound: make(chan []byte, 16), done: make(chan struct{})}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case b := <-c.inbound:
		return b, nil
	case <-c.done:
		return nil, io.EOF
	}
}

func (c *fakeConn) WriteMessage(data []byte) error {
	select {
	case <-c.done:
		return errors.New("write on closed conn")
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

func (c *fakeConn) writes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.written))
	for i, w := range c.written {
		out[i] = string(w)
	}
	return out
}

type fakeDialer struct {
	conn *fakeConn
}

func (d *fakeDialer) Dial(ctx context.Context, _ string) (transport.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return d.conn, nil
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func contains(ss []string, want string) bool {
	for _, s := range ss {
		if s == want {
			return true
		}
	}
	return false
}
