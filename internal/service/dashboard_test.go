package service

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	testingclock "k8s.io/utils/clock/testing"

	"nightfall_dashboard/internal/config"
	"nightfall_dashboard/internal/link"
	"nightfall_dashboard/internal/models"
)

type dashHarness struct {
	d     *DashboardService
	conn  *fakeConn
	repo  *fakeEventRepo
	clock *testingclock.FakeClock
}

// newDashHarness builds a dashboard with robot autoconnect and camera
// autostart off; mutate may turn them back on.
func newDashHarness(t *testing.T, mutate func(*config.Config)) *dashHarness {
	t.Helper()

	cfg := config.Default()
	cfg.Robot.AutoConnect = false
	cfg.Robot.AutoReconnect = false
	cfg.Camera.AutoStart = false
	if mutate != nil {
		mutate(&cfg)
	}

	h := &dashHarness{
		conn:  newFakeConn(),
		repo:  &fakeEventRepo{},
		clock: testingclock.NewFakeClock(time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)),
	}
	d, err := NewDashboard(DashboardOptions{
		Config: cfg,
		Dialer: &fakeDialer{conn: h.conn},
		Clock:  h.clock,
		Events: h.repo,
	})
	if err != nil {
		t.Fatalf("NewDashboard: %v", err)
	}
	h.d = d
	return h
}

func (h *dashHarness) run(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = h.d.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func hasAlert(alerts []models.Alert, msg string) (models.Alert, bool) {
	for _, a := range alerts {
		if a.Message == msg {
			return a, true
		}
	}
	return models.Alert{}, false
}

// cameraServer answers with single JPEG bodies so the reader picks the
// refresh mode and reports connected straight away.
func cameraServer(t *testing.T) (port int) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		if r.Method == http.MethodHead {
			return
		}
		w.Write([]byte{0xff, 0xd8, 0xff, 0xd9})
	}))
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse %s: %v", srv.URL, err)
	}
	_, p, _ := net.SplitHostPort(u.Host)
	port, _ = strconv.Atoi(p)
	return port
}

func TestNewDashboard_UnknownProtocol(t *testing.T) {
	cfg := config.Default()
	cfg.Robot.Protocol = "morse"
	if _, err := NewDashboard(DashboardOptions{Config: cfg}); err == nil {
		t.Fatal("expected error for unknown protocol")
	}
}

func TestSendCommand_NotConnectedRaisesAlert(t *testing.T) {
	h := newDashHarness(t, nil)

	err := h.d.SendCommand(models.Named(models.CmdForward))
	if !errors.Is(err, link.ErrNotConnected) {
		t.Fatalf("want ErrNotConnected, got %v", err)
	}
	al, ok := hasAlert(h.d.Alerts(), MsgNotConnected)
	if !ok || al.Kind != models.AlertError {
		t.Fatalf("missing not-connected alert: %+v", h.d.Alerts())
	}
}

func TestEmergencyAlertStaysUntilReset(t *testing.T) {
	h := newDashHarness(t, func(c *config.Config) { c.Robot.AutoConnect = true })
	h.run(t)
	waitFor(t, "connected", func() bool { return h.d.LinkState() == models.ConnConnected })

	if _, ok := hasAlert(h.d.Alerts(), link.MsgConnected); !ok {
		t.Fatalf("missing success alert: %+v", h.d.Alerts())
	}

	if err := h.d.SendCommand(models.Named(models.CmdEmergency)); err != nil {
		t.Fatalf("emergency: %v", err)
	}
	if w := h.conn.writes(); len(w) == 0 || w[len(w)-1] != `{"L":0,"R":0}` {
		t.Fatalf("unexpected writes %v", w)
	}

	h.clock.Step(10 * time.Second)
	al, ok := hasAlert(h.d.Alerts(), MsgEmergency)
	if !ok || !al.ExpiresAt.IsZero() {
		t.Fatalf("emergency alert must be sticky: %+v", h.d.Alerts())
	}
	if _, ok := hasAlert(h.d.Alerts(), link.MsgConnected); ok {
		t.Fatal("success alert should have expired")
	}

	if err := h.d.SendCommand(models.Named(models.CmdEmergencyReset)); err != nil {
		t.Fatalf("emergency_reset: %v", err)
	}
	if _, ok := hasAlert(h.d.Alerts(), MsgEmergency); ok {
		t.Fatal("emergency alert should be dismissed by reset")
	}

	waitFor(t, "command events", func() bool {
		n := 0
		for _, typ := range h.repo.types() {
			if typ == models.EventCommand {
				n++
			}
		}
		return n == 2
	})
}

func TestTelemetryFlowsIntoSnapshot(t *testing.T) {
	h := newDashHarness(t, func(c *config.Config) { c.Robot.AutoConnect = true })
	h.run(t)
	waitFor(t, "connected", func() bool { return h.d.LinkState() == models.ConnConnected })

	h.conn.inbound <- []byte(`{"type":"telemetry","payload":{"dist":42,"back_status":"ok","front_status":true}}`)
	waitFor(t, "telemetry", func() bool { return h.d.Snapshot().Telemetry.DistanceCm == 42 })

	snap := h.d.Snapshot()
	if snap.Connection != models.ConnConnected {
		t.Fatalf("connection = %s", snap.Connection)
	}
	if snap.Health.Brain != models.HealthHealthy || snap.Health.Motors != models.HealthHealthy {
		t.Fatalf("unexpected health %+v", snap.Health)
	}
	if snap.Health.Vision != models.HealthOffline {
		t.Fatalf("vision should be offline without video, got %s", snap.Health.Vision)
	}
	if snap.Stats.MessagesReceived != 1 {
		t.Fatalf("received = %d", snap.Stats.MessagesReceived)
	}
	if !snap.TakenAt.Equal(h.clock.Now()) {
		t.Fatalf("taken_at = %v", snap.TakenAt)
	}

	waitFor(t, "connected event", func() bool { return contains(h.repo.types(), models.EventConnected) })
}

func TestCameraDiscoverySwitchesVideo(t *testing.T) {
	port := cameraServer(t)
	h := newDashHarness(t, func(c *config.Config) {
		c.Robot.AutoConnect = true
		c.Camera.AutoStart = true
		c.Camera.FallbackIP = "127.0.0.1"
		c.Camera.Port = port
	})
	h.run(t)

	waitFor(t, "fallback stream", func() bool {
		s := h.d.Snapshot()
		return s.Video.State == models.VideoConnected && strings.Contains(s.Video.URL, "127.0.0.1")
	})
	snap := h.d.Snapshot()
	if !snap.Camera.Assumed || snap.Health.Vision != models.HealthWarning {
		t.Fatalf("fallback address must be assumed: %+v %+v", snap.Camera, snap.Health)
	}

	waitFor(t, "connected", func() bool { return h.d.LinkState() == models.ConnConnected })
	h.conn.inbound <- []byte(`{"type":"cam_telemetry","ip":"localhost","rssi":-60}`)

	waitFor(t, "discovered stream", func() bool {
		s := h.d.Snapshot()
		return s.Video.State == models.VideoConnected && strings.Contains(s.Video.URL, "localhost")
	})
	snap = h.d.Snapshot()
	if snap.Camera.Assumed || snap.Camera.RSSI != -60 || snap.Health.Vision != models.HealthHealthy {
		t.Fatalf("discovered address not applied: %+v %+v", snap.Camera, snap.Health)
	}
	if snap.Telemetry.CameraIP != "localhost" {
		t.Fatalf("telemetry camera ip = %q", snap.Telemetry.CameraIP)
	}
}

func TestVideoErrorRaisesAlertAndEvents(t *testing.T) {
	h := newDashHarness(t, nil)
	h.run(t)

	h.d.OnVideo(models.VideoStatus{State: models.VideoConnecting, URL: "http://cam/stream"})
	h.d.OnVideo(models.VideoStatus{State: models.VideoError, URL: "http://cam/stream", Error: "Camera unreachable: no route"})
	h.d.OnVideo(models.VideoStatus{State: models.VideoError, URL: "http://cam/stream", Error: "Camera unreachable: no route"})

	al, ok := hasAlert(h.d.Alerts(), "Camera unreachable: no route")
	if !ok || al.Kind != models.AlertError || al.OccurrenceCount != 1 {
		t.Fatalf("unexpected alerts %+v", h.d.Alerts())
	}

	waitFor(t, "video and alert events", func() bool {
		types := h.repo.types()
		n := 0
		for _, typ := range types {
			if typ == models.EventVideo {
				n++
			}
		}
		return n == 2 && contains(types, models.EventAlert)
	})
}

func TestFeedbackFollowsSoundSetting(t *testing.T) {
	h := newDashHarness(t, func(c *config.Config) { c.Robot.AutoConnect = true })
	h.run(t)
	waitFor(t, "connected", func() bool { return h.d.LinkState() == models.ConnConnected })

	if err := h.d.SendCommand(models.Vector(100, 100)); err != nil {
		t.Fatalf("send: %v", err)
	}
	if seq := h.d.Snapshot().Feedback.Seq; seq != 0 {
		t.Fatalf("sounds are off, seq = %d", seq)
	}

	cfg := config.Default()
	cfg.Settings.EnableSounds = true
	cfg.Settings.CommandThrottle = 200 * time.Millisecond
	h.d.ApplySettings(cfg.Robot, cfg.Settings)
	if got := h.d.link.Throttle(); got != 200*time.Millisecond {
		t.Fatalf("throttle = %v", got)
	}

	h.clock.Step(100 * time.Millisecond)
	if err := h.d.SendCommand(models.Named(models.CmdForward)); !errors.Is(err, link.ErrThrottled) {
		t.Fatalf("want ErrThrottled, got %v", err)
	}
	if len(h.d.Alerts()) != 1 {
		t.Fatalf("throttled commands must not alert: %+v", h.d.Alerts())
	}

	h.clock.Step(100 * time.Millisecond)
	if err := h.d.SendCommand(models.Named(models.CmdForward)); err != nil {
		t.Fatalf("send: %v", err)
	}
	fb := h.d.Snapshot().Feedback
	if fb.Seq != 1 || fb.Command != "forward" {
		t.Fatalf("feedback = %+v", fb)
	}
}

func TestStartVideoNeedsAddress(t *testing.T) {
	h := newDashHarness(t, func(c *config.Config) { c.Camera.FallbackIP = "" })
	if err := h.d.StartVideo(""); !errors.Is(err, ErrNoCamera) {
		t.Fatalf("want ErrNoCamera, got %v", err)
	}
	if err := h.d.RetryVideo(); err == nil {
		t.Fatal("retry without a previous start must fail")
	}
}

func TestDismissAlert(t *testing.T) {
	h := newDashHarness(t, nil)
	h.d.OnAlert("Low battery", models.AlertWarning, 0)

	alerts := h.d.Alerts()
	if len(alerts) != 1 {
		t.Fatalf("alerts = %+v", alerts)
	}
	if !h.d.DismissAlert(alerts[0].ID) {
		t.Fatal("dismiss returned false")
	}
	if h.d.DismissAlert(alerts[0].ID) {
		t.Fatal("second dismiss must report false")
	}
	if len(h.d.Alerts()) != 0 {
		t.Fatal("alert still listed")
	}
}

func TestRunClosesLinkOnCancel(t *testing.T) {
	h := newDashHarness(t, func(c *config.Config) { c.Robot.AutoConnect = true })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.d.Run(ctx) }()
	waitFor(t, "connected", func() bool { return h.d.LinkState() == models.ConnConnected })

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	if err := h.d.Connect(); !errors.Is(err, link.ErrClosed) {
		t.Fatalf("want ErrClosed after shutdown, got %v", err)
	}
	if h.d.LinkState() != models.ConnDisconnected {
		t.Fatalf("state = %s", h.d.LinkState())
	}
}
