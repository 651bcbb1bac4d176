package models

// VideoStreamState is the lifecycle state of the camera stream.
type VideoStreamState string

const (
	VideoDisconnected VideoStreamState = "disconnected"
	VideoConnecting   VideoStreamState = "connecting"
	VideoConnected    VideoStreamState = "connected"
	VideoError        VideoStreamState = "error"
)

// VideoMode is the rendering strategy picked by the boundary probe.
type VideoMode string

const (
	VideoModeNone      VideoMode = ""
	VideoModeMultipart VideoMode = "multipart"
	VideoModeFallback  VideoMode = "fallback"
)

// VideoStatus is what observers see of the camera stream.
type VideoStatus struct {
	State VideoStreamState `json:"state"`
	Mode  VideoMode        `json:"mode,omitempty"`
	URL   string           `json:"url,omitempty"`
	Error string           `json:"error,omitempty"`
	FPS   int              `json:"fps"`
}

// CameraAddress is the camera host the video side should stream from.
// Assumed marks the configured fallback rather than a discovered address.
type CameraAddress struct {
	IP      string `json:"ip"`
	RSSI    int    `json:"rssi,omitempty"`
	Assumed bool   `json:"assumed"`
}
