// Package video reads the robot camera's MJPEG stream independently of the
// control link.
package video

import (
	"context"
	"net/http"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"nightfall_dashboard/internal/logger"
	"nightfall_dashboard/internal/metrics"
	"nightfall_dashboard/internal/models"
)

const fpsWindow = time.Second

// Listener is told about every status change. It is called with the
// manager's state lock held and must not call back into the Manager.
type Listener interface {
	OnVideo(status models.VideoStatus)
}

type Options struct {
	Client          *http.Client
	Clock           clock.WithTicker
	Logger          *logger.Logger
	Metrics         *metrics.Collector
	Surface         Surface
	ProbeTimeout    time.Duration
	RefreshInterval time.Duration
}

// Manager runs at most one camera reader at a time.
type Manager struct {
	client          *http.Client
	clock           clock.WithTicker
	log             *logger.Logger
	metrics         *metrics.Collector
	surface         Surface
	listener        Listener
	probeTimeout    time.Duration
	refreshInterval time.Duration

	startMu sync.Mutex // serialises Start, Stop and Retry

	mu      sync.Mutex
	status  models.VideoStatus
	gen     uint64
	cancel  context.CancelFunc
	done    chan struct{}
	lastURL string
	meter   *frameRate
}

func NewManager(opts Options, listener Listener) *Manager {
	m := &Manager{
		client:          opts.Client,
		clock:           opts.Clock,
		log:             opts.Logger,
		metrics:         opts.Metrics,
		surface:         opts.Surface,
		listener:        listener,
		probeTimeout:    opts.ProbeTimeout,
		refreshInterval: opts.RefreshInterval,
		status:          models.VideoStatus{State: models.VideoDisconnected},
		meter:           newFrameRate(fpsWindow),
	}
	if m.client == nil {
		m.client = &http.Client{}
	}
	if m.clock == nil {
		m.clock = clock.RealClock{}
	}
	if m.log == nil {
		m.log = logger.Nop()
	}
	if m.surface == nil {
		m.surface = NewCanvas()
	}
	if m.probeTimeout <= 0 {
		m.probeTimeout = DefaultProbeTimeout
	}
	if m.refreshInterval <= 0 {
		m.refreshInterval = DefaultRefreshInterval
	}
	return m
}

// Status returns the current stream status.
func (m *Manager) Status() models.VideoStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Start streams from url. It is a no-op while a reader for the same url is
// active; any other reader is stopped and awaited first.
func (m *Manager) Start(url string) {
	m.startMu.Lock()
	defer m.startMu.Unlock()

	m.mu.Lock()
	active := m.cancel != nil && m.status.URL == url
	m.mu.Unlock()
	if active {
		return
	}
	m.stopLocked()
	m.startLocked(url)
}

// Stop aborts the reader and returns to disconnected. Safe in any state.
func (m *Manager) Stop() {
	m.startMu.Lock()
	defer m.startMu.Unlock()
	m.stopLocked()
}

// Retry restarts the last started url.
func (m *Manager) Retry() error {
	m.startMu.Lock()
	defer m.startMu.Unlock()

	m.mu.Lock()
	url := m.lastURL
	m.mu.Unlock()
	if url == "" {
		return ErrNoSource
	}
	m.stopLocked()
	m.startLocked(url)
	return nil
}

func (m *Manager) startLocked(url string) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	m.mu.Lock()
	m.gen++
	gen := m.gen
	m.cancel = cancel
	m.done = done
	m.lastURL = url
	m.meter.reset()
	m.setStatusLocked(models.VideoStatus{State: models.VideoConnecting, URL: url})
	m.mu.Unlock()

	m.log.Infow("video_start", "url", url)
	go m.run(ctx, gen, url, done)
}

// stopLocked requires startMu.
func (m *Manager) stopLocked() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.gen++
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	m.surface.Clear()

	m.mu.Lock()
	if m.status.State != models.VideoDisconnected || m.status.FPS != 0 || m.status.Error != "" {
		m.setStatusLocked(models.VideoStatus{State: models.VideoDisconnected, URL: m.status.URL})
	}
	m.mu.Unlock()
}

func (m *Manager) run(ctx context.Context, gen uint64, url string, done chan struct{}) {
	defer close(done)

	var st strategy
	if boundary := probeBoundary(ctx, m.client, url, m.probeTimeout); boundary != "" {
		st = multipartStrategy{client: m.client, boundary: boundary}
	} else {
		st = refreshStrategy{client: m.client, clock: m.clock, interval: m.refreshInterval}
	}
	if ctx.Err() != nil {
		return
	}
	m.log.Infow("video_mode_selected", "url", url, "mode", st.mode())

	fpsCtx, stopFPS := context.WithCancel(ctx)
	defer stopFPS()
	go m.publishFPS(fpsCtx, gen)

	err := st.run(ctx, url, &runSession{m: m, gen: gen, mode: st.mode()})
	if ctx.Err() != nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		return
	}
	m.log.Warnw("video_stream_failed", "url", url, "mode", st.mode(), "err", err)
	m.cancel()
	m.cancel, m.done = nil, nil
	m.setStatusLocked(models.VideoStatus{
		State: models.VideoError,
		Mode:  st.mode(),
		URL:   url,
		Error: describe(err),
	})
}

func (m *Manager) publishFPS(ctx context.Context, gen uint64) {
	t := m.clock.NewTicker(fpsWindow)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C():
			m.mu.Lock()
			if gen == m.gen && m.status.State == models.VideoConnected {
				if fps := m.meter.rate(now); fps != m.status.FPS {
					st := m.status
					st.FPS = fps
					m.setStatusLocked(st)
				}
			}
			m.mu.Unlock()
		}
	}
}

func (m *Manager) setStatusLocked(st models.VideoStatus) {
	m.status = st
	m.metrics.SetVideoState(st.State)
	m.metrics.SetVideoFPS(st.FPS)
	if m.listener != nil {
		m.listener.OnVideo(st)
	}
}

// runSession ties strategy callbacks to the generation that started them.
type runSession struct {
	m    *Manager
	gen  uint64
	mode models.VideoMode
}

func (s *runSession) opened() {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if s.gen != s.m.gen {
		return
	}
	st := s.m.status
	st.State = models.VideoConnected
	st.Mode = s.mode
	s.m.setStatusLocked(st)
}

func (s *runSession) frame(jpeg []byte) {
	if err := s.m.surface.Draw(jpeg); err != nil {
		// corrupted frames are common on weak links
		s.m.log.Debugw("video_frame_dropped", "err", err)
		return
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if s.gen != s.m.gen {
		return
	}
	s.m.meter.add(s.m.clock.Now())
	s.m.metrics.FrameDecoded()
}
