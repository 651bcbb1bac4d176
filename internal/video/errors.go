package video

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

var (
	// ErrStreamEnded is reported when the camera closes a multipart stream.
	ErrStreamEnded = errors.New("camera stream ended")
	// ErrNoSource is returned by Retry before any Start.
	ErrNoSource = errors.New("no camera stream to retry")
)

// httpStatusError is a non-200 response from the camera.
type httpStatusError struct {
	code   int
	status string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("HTTP %s", e.status)
}

// describe turns a stream failure into the text shown to the operator.
func describe(err error) string {
	if err == nil {
		return ""
	}
	var status *httpStatusError
	switch {
	case errors.Is(err, ErrStreamEnded):
		return ErrStreamEnded.Error()
	case errors.As(err, &status):
		switch status.code {
		case 401, 403:
			return "Camera refused access (" + status.Error() + ")"
		case 404:
			return "Camera stream not found (" + status.Error() + ")"
		}
		return "Camera returned " + status.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return "Camera did not respond in time"
	case errors.Is(err, errFrameTooLarge):
		return "Camera sent an oversized frame"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "Camera did not respond in time"
	}

	msg := strings.ToLower(err.Error())
	for _, kw := range []string{"connection refused", "no route to host", "unreachable", "no such host", "reset by peer"} {
		if strings.Contains(msg, kw) {
			return "Camera unreachable: " + err.Error()
		}
	}
	return "Camera stream error: " + err.Error()
}
