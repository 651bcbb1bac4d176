// Package protocol holds the wire codecs spoken by the robot firmware.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"nightfall_dashboard/internal/models"
)

// Revision selects a firmware wire format.
type Revision string

const (
	// RevisionVector speaks {"L","R"} power vectors and enveloped telemetry.
	RevisionVector Revision = "vector"
	// RevisionNamed speaks {"command":"..."} and compact telemetry.
	RevisionNamed Revision = "named"
)

var (
	ErrMalformed          = errors.New("malformed message")
	ErrUnsupportedCommand = errors.New("command not supported by protocol revision")
	ErrPingUnsupported    = errors.New("protocol revision has no ping")
	ErrUnknownRevision    = errors.New("unknown protocol revision")
)

// Kind is the discriminant of an inbound message.
type Kind int

const (
	KindUnknown Kind = iota
	KindTelemetry
	KindPong
	KindCamera
)

func (k Kind) String() string {
	switch k {
	case KindTelemetry:
		return "telemetry"
	case KindPong:
		return "pong"
	case KindCamera:
		return "camera"
	default:
		return "unknown"
	}
}

// Message is a decoded inbound frame.
type Message struct {
	Kind      Kind
	Payload   map[string]any // telemetry fields, raw and untrusted
	Timestamp int64          // pong echo, ms
	CameraIP  string
	RSSI      int
}

// Codec converts between models and one firmware revision's bytes.
type Codec interface {
	Revision() Revision
	Decode(raw []byte) (Message, error)
	EncodeCommand(cmd models.MotorCommand) ([]byte, error)
	EncodePing(tsMillis int64) ([]byte, error)
}

// New returns the codec for rev.
func New(rev Revision) (Codec, error) {
	switch Revision(strings.ToLower(string(rev))) {
	case RevisionVector, "":
		return vectorCodec{}, nil
	case RevisionNamed:
		return namedCodec{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownRevision, rev)
	}
}

// decodeObject parses raw as a JSON object; anything else is malformed.
func decodeObject(raw []byte) (map[string]any, error) {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if obj == nil {
		return nil, fmt.Errorf("%w: not an object", ErrMalformed)
	}
	return obj, nil
}

// decodeCamera handles the camera board's discovery beacon, shared by both revisions.
func decodeCamera(obj map[string]any) (Message, error) {
	ip, ok := obj["ip"].(string)
	if !ok || strings.TrimSpace(ip) == "" {
		return Message{}, fmt.Errorf("%w: cam_telemetry without ip", ErrMalformed)
	}
	msg := Message{Kind: KindCamera, CameraIP: strings.TrimSpace(ip)}
	if rssi, ok := obj["rssi"].(float64); ok {
		msg.RSSI = int(rssi)
	}
	return msg, nil
}
