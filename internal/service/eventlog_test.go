package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"nightfall_dashboard/internal/models"
)

func Test_normalizeEventType(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in, exp string
	}{
		{"", ""},
		{"  ALERT ", "ALERT"},
		{"reconnecting", "RECONNECTING"},
	}
	for _, c := range cases {
		if got := normalizeEventType(c.in); got != c.exp {
			t.Errorf("normalizeEventType(%q) = %q; want %q", c.in, got, c.exp)
		}
	}
}

func Test_normalizeAndValidateFilter(t *testing.T) {
	t.Parallel()

	local := time.FixedZone("UTC+2", 2*3600)
	from := time.Date(2026, time.September, 10, 10, 0, 0, 0, local)
	to := time.Date(2026, time.September, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		in      LogFilter
		wantErr error
		check   func(t *testing.T, from, to time.Time, typ string)
	}{
		{
			name: "empty filter passes through",
			in:   LogFilter{},
			check: func(t *testing.T, from, to time.Time, typ string) {
				if !from.IsZero() || !to.IsZero() || typ != "" {
					t.Fatalf("unexpected %v %v %q", from, to, typ)
				}
			},
		},
		{
			name: "converted to UTC and type normalised",
			in:   LogFilter{From: from, To: to, Type: " video "},
			check: func(t *testing.T, f, tt time.Time, typ string) {
				if f.Location() != time.UTC || !f.Equal(from) {
					t.Fatalf("from = %v", f)
				}
				if !tt.Equal(to) || typ != "VIDEO" {
					t.Fatalf("to = %v type = %q", tt, typ)
				}
			},
		},
		{
			name:    "inverted range",
			in:      LogFilter{From: to.Add(time.Hour), To: to},
			wantErr: ErrInvalidTimeRange,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f, to, typ, err := normalizeAndValidateFilter(tt.in)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v; want %v", err, tt.wantErr)
			}
			if tt.check != nil {
				tt.check(t, f, to, typ)
			}
		})
	}
}

func TestEventLogService_List(t *testing.T) {
	repo := &fakeEventRepo{events: []models.LinkEvent{{EventID: "1", Type: models.EventConnected}}}
	svc := NewEventLogService(repo)

	out, err := svc.List(context.Background(), LogFilter{Type: "connected"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(out) != 1 || repo.gotType != "CONNECTED" {
		t.Fatalf("unexpected result %v type %q", out, repo.gotType)
	}
}

func TestEventLogService_List_InvalidRangeSkipsRepo(t *testing.T) {
	repo := &fakeEventRepo{}
	svc := NewEventLogService(repo)

	now := time.Now()
	_, err := svc.List(context.Background(), LogFilter{From: now, To: now.Add(-time.Minute)})
	if !errors.Is(err, ErrInvalidTimeRange) {
		t.Fatalf("want ErrInvalidTimeRange, got %v", err)
	}
	if repo.calls != 0 {
		t.Fatalf("repo must not be called, got %d calls", repo.calls)
	}
}

func TestEventLogService_List_RepoError(t *testing.T) {
	boom := errors.New("db down")
	svc := NewEventLogService(&fakeEventRepo{err: boom})
	if _, err := svc.List(context.Background(), LogFilter{}); !errors.Is(err, boom) {
		t.Fatalf("want %v, got %v", boom, err)
	}
}

func TestParseLogFilter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		from, to, typ string
		want          LogFilter
		wantErr       error
	}{
		{name: "all open"},
		{
			name: "rfc3339 bounds kept exact",
			from: "2026-03-01T10:00:00+02:00", to: "2026-03-01T12:00:00Z", typ: " alert ",
			want: LogFilter{
				From: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
				To:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
				Type: models.EventAlert,
			},
		},
		{
			name: "date-only to is end of day",
			from: "2026-03-01 06:30:00", to: "2026-03-01",
			want: LogFilter{
				From: time.Date(2026, 3, 1, 6, 30, 0, 0, time.UTC),
				To:   time.Date(2026, 3, 1, 23, 59, 59, 999999999, time.UTC),
			},
		},
		{name: "bad from", from: "yesterday", wantErr: ErrInvalidFrom},
		{name: "bad to", to: "2026-13-01", wantErr: ErrInvalidTo},
		{name: "inverted", from: "2026-03-02", to: "2026-03-01", wantErr: ErrInvalidTimeRange},
		{name: "same day range", from: "2026-03-01", to: "2026-03-01",
			want: LogFilter{
				From: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
				To:   time.Date(2026, 3, 1, 23, 59, 59, 999999999, time.UTC),
			}},
		{name: "unknown type", typ: "furnace", wantErr: ErrUnknownEventType},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseLogFilter(tt.from, tt.to, tt.typ)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v; want %v", err, tt.wantErr)
			}
			if !got.From.Equal(tt.want.From) || !got.To.Equal(tt.want.To) || got.Type != tt.want.Type {
				t.Fatalf("got %+v; want %+v", got, tt.want)
			}
		})
	}
}
