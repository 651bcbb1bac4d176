package video

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"k8s.io/utils/clock"

	"nightfall_dashboard/internal/models"
)

// Refresh mode tuning.
const (
	DefaultRefreshInterval = 100 * time.Millisecond
	maxFallbackFailures    = 5
	readChunk              = 32 << 10
)

// session is the manager side of one running stream.
type session interface {
	opened()
	frame(jpeg []byte)
}

// strategy renders one stream until it fails or ctx is cancelled.
type strategy interface {
	mode() models.VideoMode
	run(ctx context.Context, streamURL string, s session) error
}

// multipartStrategy reads the endless multipart body and cuts frames out of it.
type multipartStrategy struct {
	client   *http.Client
	boundary string
}

func (multipartStrategy) mode() models.VideoMode { return models.VideoModeMultipart }

func (m multipartStrategy) run(ctx context.Context, streamURL string, s session) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Cache-Control", "no-store")
	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &httpStatusError{code: resp.StatusCode, status: resp.Status}
	}
	s.opened()

	scanner := newFrameScanner(m.boundary)
	buf := make([]byte, readChunk)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			frames, scanErr := scanner.feed(buf[:n])
			for _, f := range frames {
				s.frame(f)
			}
			if scanErr != nil {
				return scanErr
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return ErrStreamEnded
			}
			return err
		}
	}
}

// refreshStrategy re-requests the endpoint on a fixed period and shows the
// first complete JPEG of each response. It tolerates a few failed loads in
// a row before giving up.
type refreshStrategy struct {
	client   *http.Client
	clock    clock.WithTicker
	interval time.Duration
}

func (refreshStrategy) mode() models.VideoMode { return models.VideoModeFallback }

func (r refreshStrategy) run(ctx context.Context, streamURL string, s session) error {
	s.opened()

	t := r.clock.NewTicker(r.interval)
	defer t.Stop()

	failures := 0
	for {
		frame, err := r.load(ctx, streamURL)
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			failures++
			if failures >= maxFallbackFailures {
				return err
			}
		default:
			failures = 0
			s.frame(frame)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C():
		}
	}
}

func (r refreshStrategy) load(ctx context.Context, streamURL string) ([]byte, error) {
	u, err := url.Parse(streamURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("_t", strconv.FormatInt(r.clock.Now().UnixMilli(), 10))
	u.RawQuery = q.Encode()

	ctx, cancel := context.WithTimeout(ctx, DefaultProbeTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &httpStatusError{code: resp.StatusCode, status: resp.Status}
	}

	// The endpoint may itself be an endless stream, so stop at the first image.
	var data []byte
	buf := make([]byte, readChunk)
	for len(data) <= maxBuffered {
		n, err := resp.Body.Read(buf)
		data = append(data, buf[:n]...)
		if frame, ok := firstJPEG(data); ok {
			return frame, nil
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("no JPEG image in %d byte response", len(data))
			}
			return nil, err
		}
	}
	return nil, errFrameTooLarge
}
