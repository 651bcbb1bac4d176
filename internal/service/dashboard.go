package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"nightfall_dashboard/internal/alert"
	"nightfall_dashboard/internal/config"
	"nightfall_dashboard/internal/link"
	"nightfall_dashboard/internal/logger"
	"nightfall_dashboard/internal/metrics"
	"nightfall_dashboard/internal/models"
	"nightfall_dashboard/internal/protocol"
	"nightfall_dashboard/internal/repository"
	"nightfall_dashboard/internal/transport"
	"nightfall_dashboard/internal/video"
)

// Operator-facing alert texts raised by the dashboard itself.
const (
	MsgNotConnected = "Cannot send command: Not connected to robot"
	MsgSendFailed   = "Failed to send motor command"
	MsgEmergency    = "EMERGENCY STOP ACTIVATED"
	MsgCameraError  = "Camera stream error"
)

const eventQueueSize = 64

var ErrNoCamera = errors.New("no camera address known")

// DashboardOptions wires a DashboardService. Nil fields get defaults.
type DashboardOptions struct {
	Config     config.Config
	Dialer     transport.Dialer
	HTTPClient *http.Client
	Clock      clock.WithTicker
	Logger     *logger.Logger
	Metrics    *metrics.Collector
	Events     repository.EventRepo
}

// DashboardService owns the robot link and the camera reader and folds
// everything they report into one operator view.
type DashboardService struct {
	camera  config.Camera
	clock   clock.WithTicker
	log     *logger.Logger
	metrics *metrics.Collector
	events  repository.EventRepo

	link   *link.Manager
	video  *video.Manager
	canvas *video.Canvas

	autoConnect bool

	mu          sync.Mutex
	state       models.ConnectionState
	telemetry   models.TelemetryRecord
	address     models.CameraAddress
	videoStatus models.VideoStatus
	alerts      *alert.Aggregator
	emergencyID string
	feedback    models.Feedback
	sounds      bool

	cameraCh chan models.CameraAddress
	eventCh  chan models.LinkEvent
}

var _ link.Listener = (*DashboardService)(nil)
var _ video.Listener = (*DashboardService)(nil)

// NewDashboard builds the link and video managers. Nothing is started
// until Run.
func NewDashboard(opts DashboardOptions) (*DashboardService, error) {
	cfg := opts.Config
	codec, err := protocol.New(cfg.Robot.Protocol)
	if err != nil {
		return nil, fmt.Errorf("robot protocol: %w", err)
	}

	d := &DashboardService{
		camera:      cfg.Camera,
		clock:       opts.Clock,
		log:         opts.Logger,
		metrics:     opts.Metrics,
		events:      opts.Events,
		canvas:      video.NewCanvas(),
		autoConnect: cfg.Robot.AutoConnect,
		state:       models.ConnDisconnected,
		telemetry:   models.DefaultTelemetry(),
		videoStatus: models.VideoStatus{State: models.VideoDisconnected},
		alerts:      alert.NewAggregator(),
		sounds:      cfg.Settings.EnableSounds,
		cameraCh:    make(chan models.CameraAddress, 1),
		eventCh:     make(chan models.LinkEvent, eventQueueSize),
	}
	if d.clock == nil {
		d.clock = clock.RealClock{}
	}
	if d.log == nil {
		d.log = logger.Nop()
	}

	dialer := opts.Dialer
	if dialer == nil {
		dialer = &transport.WebSocketDialer{
			HandshakeTimeout: cfg.Robot.HandshakeTimeout,
			ReadTimeout:      cfg.Robot.ReadTimeout,
			WriteWait:        transport.DefaultWriteWait,
		}
	}

	d.link = link.NewManager(link.Options{
		URL:           cfg.Robot.URL,
		Codec:         codec,
		Dialer:        dialer,
		Clock:         d.clock,
		Logger:        d.log,
		Metrics:       d.metrics,
		AutoReconnect: cfg.Robot.AutoReconnect,
		KeepAlive:     cfg.Robot.KeepAlive,
		Throttle:      cfg.Settings.CommandThrottle,
	}, d)

	d.video = video.NewManager(video.Options{
		Client:          opts.HTTPClient,
		Clock:           d.clock,
		Logger:          d.log,
		Metrics:         d.metrics,
		Surface:         d.canvas,
		ProbeTimeout:    cfg.Camera.ProbeTimeout,
		RefreshInterval: cfg.Camera.RefreshInterval,
	}, d)

	return d, nil
}

// Run connects the link, starts the camera on its fallback address and then
// serves camera switches and event persistence until ctx is done. Both
// managers are torn down before Run returns.
func (d *DashboardService) Run(ctx context.Context) error {
	if d.autoConnect {
		if err := d.link.Connect(); err != nil {
			return err
		}
	}
	if d.camera.AutoStart {
		d.mu.Lock()
		if d.address.IP == "" && d.camera.FallbackIP != "" {
			d.setAddressLocked(models.CameraAddress{IP: d.camera.FallbackIP, Assumed: true})
		}
		d.mu.Unlock()
	}

	for {
		select {
		case <-ctx.Done():
			_ = d.link.Close()
			d.video.Stop()
			d.flushEvents()
			return nil
		case addr := <-d.cameraCh:
			d.video.Start(d.camera.StreamURL(addr.IP))
		case ev := <-d.eventCh:
			d.persist(ctx, ev)
		}
	}
}

func (d *DashboardService) persist(ctx context.Context, ev models.LinkEvent) {
	if d.events == nil {
		return
	}
	if err := d.events.Append(ctx, ev); err != nil {
		d.log.Warnw("event_persist_failed", "type", ev.Type, "err", err)
	}
}

func (d *DashboardService) flushEvents() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		select {
		case ev := <-d.eventCh:
			d.persist(ctx, ev)
		default:
			return
		}
	}
}

// ApplySettings applies the hot-reloadable subset of the configuration.
func (d *DashboardService) ApplySettings(robot config.Robot, s config.Settings) {
	d.link.SetThrottle(s.CommandThrottle)
	d.link.SetAutoReconnect(robot.AutoReconnect)
	d.mu.Lock()
	d.sounds = s.EnableSounds
	d.mu.Unlock()
}

// --- link.Listener ---

func (d *DashboardService) OnState(s models.ConnectionState) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = s

	var typ string
	switch s {
	case models.ConnConnected:
		typ = models.EventConnected
	case models.ConnDisconnected:
		typ = models.EventDisconnected
	case models.ConnReconnecting:
		typ = models.EventReconnecting
	case models.ConnError:
		typ = models.EventError
	default:
		return
	}
	d.enqueueLocked(typ, "link "+string(s), nil)
}

func (d *DashboardService) OnTelemetry(rec models.TelemetryRecord) {
	d.mu.Lock()
	d.telemetry = rec
	d.mu.Unlock()
}

func (d *DashboardService) OnCamera(addr models.CameraAddress) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.setAddressLocked(addr)
}

func (d *DashboardService) OnAlert(message string, kind models.AlertKind, ttl time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.raiseLocked(message, kind, ttl)
}

func (d *DashboardService) OnCommand(cmd models.MotorCommand) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sounds {
		d.feedback.Seq++
		d.feedback.Command = cmd.String()
	}
	switch cmd.Name {
	case models.CmdEmergency, models.CmdEmergencyReset, models.CmdAutoToggle:
		d.enqueueLocked(models.EventCommand, string(cmd.Name), nil)
	}
}

// --- video.Listener ---

func (d *DashboardService) OnVideo(st models.VideoStatus) {
	d.mu.Lock()
	defer d.mu.Unlock()
	prev := d.videoStatus
	d.videoStatus = st
	if prev.State == st.State {
		return
	}
	d.enqueueLocked(models.EventVideo, "video "+string(st.State), map[string]any{
		"url":  st.URL,
		"mode": st.Mode,
	})
	if st.State == models.VideoError {
		msg := st.Error
		if msg == "" {
			msg = MsgCameraError
		}
		d.raiseLocked(msg, models.AlertError, alert.DefaultDuration)
	}
}

func (d *DashboardService) setAddressLocked(addr models.CameraAddress) {
	d.address = addr
	select {
	case <-d.cameraCh:
	default:
	}
	d.cameraCh <- addr
}

func (d *DashboardService) raiseLocked(message string, kind models.AlertKind, ttl time.Duration) (models.Alert, bool) {
	al, ok := d.alerts.Emit(d.clock.Now(), message, kind, ttl)
	if !ok {
		return al, false
	}
	d.metrics.AlertRaised(kind)
	d.enqueueLocked(models.EventAlert, message, map[string]any{
		"kind":  kind,
		"count": al.OccurrenceCount,
	})
	return al, true
}

func (d *DashboardService) enqueueLocked(typ, description string, meta any) {
	ev := models.LinkEvent{
		OccurredAt:  d.clock.Now(),
		Type:        typ,
		Description: description,
		Metadata:    meta,
	}
	select {
	case d.eventCh <- ev:
	default:
		d.log.Warnw("event_queue_full", "type", typ)
	}
}

// --- operator API ---

// Snapshot is the whole operator view at this instant.
func (d *DashboardService) Snapshot() models.Snapshot {
	stats := d.link.Stats()
	now := d.clock.Now()

	d.mu.Lock()
	defer d.mu.Unlock()
	return models.Snapshot{
		Connection: d.state,
		Telemetry:  d.telemetry,
		Health:     link.DeriveHealth(d.telemetry, d.state, d.videoStatus, d.address),
		Camera:     d.address,
		Video:      d.videoStatus,
		Alerts:     d.alerts.List(now),
		Stats:      stats,
		Feedback:   d.feedback,
		TakenAt:    now,
	}
}

func (d *DashboardService) LinkState() models.ConnectionState { return d.link.State() }

// Telemetry returns the last record seen by the dashboard.
func (d *DashboardService) Telemetry() models.TelemetryRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.telemetry
}

func (d *DashboardService) Connect() error   { return d.link.Connect() }
func (d *DashboardService) Reconnect() error { return d.link.Reconnect() }
func (d *DashboardService) Disconnect()      { d.link.Disconnect() }

// SendCommand forwards cmd to the robot and turns failures into alerts.
// Throttled commands are dropped silently.
func (d *DashboardService) SendCommand(cmd models.MotorCommand) error {
	err := d.link.Send(cmd)

	d.mu.Lock()
	defer d.mu.Unlock()
	switch {
	case err == nil:
		switch cmd.Name {
		case models.CmdEmergency:
			if al, ok := d.raiseLocked(MsgEmergency, models.AlertError, 0); ok {
				d.emergencyID = al.ID
			}
		case models.CmdEmergencyReset:
			if d.emergencyID != "" {
				d.alerts.Dismiss(d.emergencyID)
				d.emergencyID = ""
			}
		}
	case errors.Is(err, link.ErrNotConnected):
		d.raiseLocked(MsgNotConnected, models.AlertError, alert.DefaultDuration)
	case errors.Is(err, link.ErrThrottled), errors.Is(err, link.ErrClosed):
	case errors.Is(err, protocol.ErrUnsupportedCommand):
	default:
		d.log.Errorw("command_send_failed", "command", cmd.String(), "err", err)
		d.raiseLocked(MsgSendFailed, models.AlertError, alert.DefaultDuration)
	}
	return err
}

func (d *DashboardService) VideoStatus() models.VideoStatus { return d.video.Status() }

// StartVideo streams from ip, or from the known camera address when ip is
// empty. An explicit address is treated as discovered.
func (d *DashboardService) StartVideo(ip string) error {
	ip = strings.TrimSpace(ip)

	d.mu.Lock()
	addr := d.address
	if ip != "" {
		addr = models.CameraAddress{IP: ip}
		d.address = addr
	} else if addr.IP == "" && d.camera.FallbackIP != "" {
		addr = models.CameraAddress{IP: d.camera.FallbackIP, Assumed: true}
		d.address = addr
	}
	d.mu.Unlock()

	if addr.IP == "" {
		return ErrNoCamera
	}
	d.video.Start(d.camera.StreamURL(addr.IP))
	return nil
}

func (d *DashboardService) StopVideo()        { d.video.Stop() }
func (d *DashboardService) RetryVideo() error { return d.video.Retry() }

// Frame returns the latest rendered frame as JPEG.
func (d *DashboardService) Frame() ([]byte, bool, error) { return d.canvas.Snapshot() }

func (d *DashboardService) Alerts() []models.Alert {
	now := d.clock.Now()
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.alerts.List(now)
}

func (d *DashboardService) DismissAlert(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if id == d.emergencyID {
		d.emergencyID = ""
	}
	return d.alerts.Dismiss(id)
}
