package protocol

import (
	"encoding/json"
	"fmt"

	"nightfall_dashboard/internal/models"
)

// Power presets for named commands on the vector revision.
var namedVectors = map[models.CommandName][2]int{
	models.CmdForward:        {200, 200},
	models.CmdBackward:       {-150, -150},
	models.CmdLeft:           {-100, 100},
	models.CmdRight:          {100, -100},
	models.CmdRotate:         {140, -140},
	models.CmdStop:           {0, 0},
	models.CmdEmergency:      {0, 0},
	models.CmdEmergencyReset: {0, 0},
}

type vectorCodec struct{}

type vectorFrame struct {
	L int `json:"L"`
	R int `json:"R"`
}

type envelope struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp *int64          `json:"timestamp,omitempty"`
}

func (vectorCodec) Revision() Revision { return RevisionVector }

func (vectorCodec) Decode(raw []byte) (Message, error) {
	obj, err := decodeObject(raw)
	if err != nil {
		return Message{}, err
	}
	typ, _ := obj["type"].(string)
	switch typ {
	case "telemetry":
		payload, ok := obj["payload"].(map[string]any)
		if !ok {
			return Message{}, fmt.Errorf("%w: telemetry without object payload", ErrMalformed)
		}
		return Message{Kind: KindTelemetry, Payload: payload}, nil
	case "pong":
		ts, ok := obj["timestamp"].(float64)
		if !ok {
			return Message{}, fmt.Errorf("%w: pong without timestamp", ErrMalformed)
		}
		return Message{Kind: KindPong, Timestamp: int64(ts)}, nil
	case "cam_telemetry":
		return decodeCamera(obj)
	default:
		return Message{Kind: KindUnknown}, nil
	}
}

func (vectorCodec) EncodeCommand(cmd models.MotorCommand) ([]byte, error) {
	l, r := cmd.Left, cmd.Right
	if cmd.IsNamed() {
		v, ok := namedVectors[cmd.Name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedCommand, cmd.Name)
		}
		l, r = v[0], v[1]
	}
	return json.Marshal(vectorFrame{L: l, R: r})
}

func (vectorCodec) EncodePing(tsMillis int64) ([]byte, error) {
	return json.Marshal(envelope{Type: "ping", Timestamp: &tsMillis})
}
