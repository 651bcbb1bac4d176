package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"nightfall_dashboard/internal/models"
	"nightfall_dashboard/internal/repository"
)

// LogFilter narrows the event log by time range and type.
type LogFilter struct {
	From time.Time
	To   time.Time
	Type string
}

type EventLogService struct {
	eventRepo repository.EventRepo
}

func NewEventLogService(eventRepo repository.EventRepo) *EventLogService {
	return &EventLogService{eventRepo: eventRepo}
}

var (
	ErrInvalidFrom      = errors.New("invalid 'from' time; use RFC3339 or YYYY-MM-DD")
	ErrInvalidTo        = errors.New("invalid 'to' time; use RFC3339 or YYYY-MM-DD")
	ErrInvalidTimeRange = errors.New("'from' must be <= 'to'")
	ErrUnknownEventType = errors.New("unknown event type")
)

const (
	layoutDateTime = "2006-01-02 15:04:05"
	layoutDate     = "2006-01-02"
)

var eventTypes = map[string]struct{}{
	models.EventConnected:    {},
	models.EventDisconnected: {},
	models.EventReconnecting: {},
	models.EventError:        {},
	models.EventAlert:        {},
	models.EventCommand:      {},
	models.EventVideo:        {},
}

// ParseLogFilter builds a filter from query values. Times are RFC3339,
// "YYYY-MM-DD HH:MM:SS" or "YYYY-MM-DD" in UTC; a date-only 'to' covers
// the whole day. Empty values leave that bound open.
func ParseLogFilter(from, to, typ string) (LogFilter, error) {
	var f LogFilter
	var err error
	if from = strings.TrimSpace(from); from != "" {
		if f.From, err = parseFilterTime(from); err != nil {
			return LogFilter{}, fmt.Errorf("%w: %v", ErrInvalidFrom, err)
		}
	}
	if to = strings.TrimSpace(to); to != "" {
		if f.To, err = parseFilterTime(to); err != nil {
			return LogFilter{}, fmt.Errorf("%w: %v", ErrInvalidTo, err)
		}
		if !strings.ContainsAny(to, "T ") {
			f.To = f.To.Add(24*time.Hour - time.Nanosecond)
		}
	}
	if f.Type = normalizeEventType(typ); f.Type != "" {
		if _, ok := eventTypes[f.Type]; !ok {
			return LogFilter{}, fmt.Errorf("%w %q", ErrUnknownEventType, f.Type)
		}
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.From.After(f.To) {
		return LogFilter{}, ErrInvalidTimeRange
	}
	return f, nil
}

func parseFilterTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, layoutDateTime, layoutDate} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", s)
}

// normalizeToUTC returns t in UTC, preserving zero time values.
func normalizeToUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

func normalizeEventType(s string) string {
	return strings.TrimSpace(strings.ToUpper(s))
}

func normalizeAndValidateFilter(f LogFilter) (time.Time, time.Time, string, error) {
	from := normalizeToUTC(f.From)
	to := normalizeToUTC(f.To)

	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return time.Time{}, time.Time{}, "", ErrInvalidTimeRange
	}
	return from, to, normalizeEventType(f.Type), nil
}

func (s *EventLogService) List(ctx context.Context, f LogFilter) ([]models.LinkEvent, error) {
	from, to, typ, err := normalizeAndValidateFilter(f)
	if err != nil {
		return nil, err
	}
	return s.eventRepo.List(ctx, from, to, typ)
}
