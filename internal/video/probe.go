package video

import (
	"context"
	"mime"
	"net/http"
	"strings"
	"time"
)

// DefaultProbeTimeout bounds the HEAD request that discovers the boundary.
const DefaultProbeTimeout = 3 * time.Second

// probeBoundary asks the camera for its Content-Type without downloading
// the stream. It returns "" when no multipart boundary can be discovered,
// including when the camera rejects HEAD.
func probeBoundary(ctx context.Context, client *http.Client, url string, timeout time.Duration) string {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("Cache-Control", "no-store")
	resp, err := client.Do(req)
	if err != nil {
		return ""
	}
	_ = resp.Body.Close()
	return boundaryFromContentType(resp.Header.Get("Content-Type"))
}

func boundaryFromContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		return ""
	}
	return strings.TrimPrefix(params["boundary"], "--")
}
