// Package metrics exposes link and video telemetry to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"nightfall_dashboard/internal/models"
)

const namespace = "nightfall"

var (
	linkStates  = []models.ConnectionState{models.ConnDisconnected, models.ConnConnecting, models.ConnConnected, models.ConnReconnecting, models.ConnError}
	videoStates = []models.VideoStreamState{models.VideoDisconnected, models.VideoConnecting, models.VideoConnected, models.VideoError}
)

// Collector owns a private registry. A nil *Collector is valid and records
// nothing, so components can run without metrics.
type Collector struct {
	registry *prometheus.Registry

	linkState         *prometheus.GaugeVec
	messages          *prometheus.CounterVec
	reconnects        prometheus.Counter
	latency           prometheus.Histogram
	commandRejections *prometheus.CounterVec
	alerts            *prometheus.CounterVec
	videoState        *prometheus.GaugeVec
	videoFPS          prometheus.Gauge
	videoFrames       prometheus.Counter
	historySamples    prometheus.Counter
}

// New registers all series plus the Go and process collectors.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		linkState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "link_state",
			Help:      "Robot link state (1 for the current state).",
		}, []string{"state"}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "link_messages_total",
			Help:      "Robot link messages by direction (sent, received, malformed).",
		}, []string{"direction"}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "link_reconnects_total",
			Help:      "Reconnect attempts scheduled after a close.",
		}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "link_round_trip_seconds",
			Help:      "Ping/pong round trip time.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
		commandRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "command_rejections_total",
			Help:      "Commands not sent, by reason.",
		}, []string{"reason"}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Alerts raised, by kind.",
		}, []string{"kind"}),
		videoState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "video_state",
			Help:      "Camera stream state (1 for the current state).",
		}, []string{"state"}),
		videoFPS: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "video_fps",
			Help:      "Frames rendered during the last second.",
		}),
		videoFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "video_frames_total",
			Help:      "Frames decoded from the camera.",
		}),
		historySamples: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telemetry_history_samples_total",
			Help:      "Telemetry samples written to history.",
		}),
	}

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.linkState, c.messages, c.reconnects, c.latency, c.commandRejections,
		c.alerts, c.videoState, c.videoFPS, c.videoFrames, c.historySamples,
	)
	c.SetLinkState(models.ConnDisconnected)
	c.SetVideoState(models.VideoDisconnected)
	return c
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *Collector) SetLinkState(s models.ConnectionState) {
	if c == nil {
		return
	}
	for _, st := range linkStates {
		v := 0.0
		if st == s {
			v = 1
		}
		c.linkState.WithLabelValues(string(st)).Set(v)
	}
}

func (c *Collector) MessageSent() {
	if c != nil {
		c.messages.WithLabelValues("sent").Inc()
	}
}

func (c *Collector) MessageReceived() {
	if c != nil {
		c.messages.WithLabelValues("received").Inc()
	}
}

func (c *Collector) MessageMalformed() {
	if c != nil {
		c.messages.WithLabelValues("malformed").Inc()
	}
}

func (c *Collector) ReconnectScheduled() {
	if c != nil {
		c.reconnects.Inc()
	}
}

func (c *Collector) ObserveLatency(d time.Duration) {
	if c != nil {
		c.latency.Observe(d.Seconds())
	}
}

func (c *Collector) CommandRejected(reason string) {
	if c != nil {
		c.commandRejections.WithLabelValues(reason).Inc()
	}
}

func (c *Collector) AlertRaised(kind models.AlertKind) {
	if c != nil {
		c.alerts.WithLabelValues(string(kind)).Inc()
	}
}

func (c *Collector) SetVideoState(s models.VideoStreamState) {
	if c == nil {
		return
	}
	for _, st := range videoStates {
		v := 0.0
		if st == s {
			v = 1
		}
		c.videoState.WithLabelValues(string(st)).Set(v)
	}
}

func (c *Collector) SetVideoFPS(fps int) {
	if c != nil {
		c.videoFPS.Set(float64(fps))
	}
}

func (c *Collector) FrameDecoded() {
	if c != nil {
		c.videoFrames.Inc()
	}
}

func (c *Collector) HistorySampled() {
	if c != nil {
		c.historySamples.Inc()
	}
}
