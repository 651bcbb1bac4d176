package service

import (
	"context"
	"sync/atomic"
	"time"

	"k8s.io/utils/clock"

	"nightfall_dashboard/internal/logger"
	"nightfall_dashboard/internal/metrics"
	"nightfall_dashboard/internal/models"
	"nightfall_dashboard/internal/repository"
)

// TelemetrySource is where the recorder reads the live record from.
type TelemetrySource interface {
	LinkState() models.ConnectionState
	Telemetry() models.TelemetryRecord
}

// HistoryService samples live telemetry into a bounded history.
type HistoryService struct {
	repo    repository.TelemetryRepo
	source  TelemetrySource
	clock   clock.WithTicker
	log     *logger.Logger
	metrics *metrics.Collector
	keep    atomic.Int64
}

func NewHistoryService(repo repository.TelemetryRepo, source TelemetrySource, keep int, clk clock.WithTicker, log *logger.Logger, m *metrics.Collector) *HistoryService {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if log == nil {
		log = logger.Nop()
	}
	s := &HistoryService{repo: repo, source: source, clock: clk, log: log, metrics: m}
	s.SetLimit(keep)
	return s
}

// SetLimit changes how many samples are kept. Non-positive values are ignored.
func (s *HistoryService) SetLimit(keep int) {
	if keep > 0 {
		s.keep.Store(int64(keep))
	}
}

func (s *HistoryService) Limit() int { return int(s.keep.Load()) }

// Run samples every tick until ctx is canceled. Samples are only taken while
// the link is connected and only when the record changed.
func (s *HistoryService) Run(ctx context.Context, tick time.Duration) {
	t := s.clock.NewTicker(tick)
	defer t.Stop()

	var (
		last models.TelemetryRecord
		have bool
	)
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C():
			if s.source.LinkState() != models.ConnConnected {
				continue
			}
			rec := s.source.Telemetry()
			if have && rec == last {
				continue
			}
			if _, err := s.repo.Append(ctx, models.TelemetrySample{RecordedAt: now.UTC(), Record: rec}); err != nil {
				s.log.Warnw("history_append_failed", "err", err)
				continue
			}
			last, have = rec, true
			s.metrics.HistorySampled()

			if _, err := s.repo.Trim(ctx, s.Limit()); err != nil {
				s.log.Warnw("history_trim_failed", "err", err)
			}
		}
	}
}

// List returns up to limit samples, oldest first. limit is clamped to the
// configured history length.
func (s *HistoryService) List(ctx context.Context, limit int) ([]models.TelemetrySample, error) {
	keep := s.Limit()
	if limit <= 0 || limit > keep {
		limit = keep
	}
	return s.repo.List(ctx, limit)
}
