package protocol

import (
	"encoding/json"

	"nightfall_dashboard/internal/models"
)

// compactKeys are the short field names the rear controller broadcasts.
var compactKeys = []string{"d", "g", "v", "e", "fo", "auto"}

type namedCodec struct{}

type namedFrame struct {
	Command models.CommandName `json:"command"`
}

func (namedCodec) Revision() Revision { return RevisionNamed }

func (namedCodec) Decode(raw []byte) (Message, error) {
	obj, err := decodeObject(raw)
	if err != nil {
		return Message{}, err
	}
	if typ, _ := obj["type"].(string); typ == "cam_telemetry" {
		return decodeCamera(obj)
	}
	for _, k := range compactKeys {
		if _, ok := obj[k]; ok {
			// Only the rear controller emits this frame, so receiving it means it is up.
			if _, set := obj["back_status"]; !set {
				obj["back_status"] = models.BackStatusOK
			}
			return Message{Kind: KindTelemetry, Payload: obj}, nil
		}
	}
	return Message{Kind: KindUnknown}, nil
}

func (namedCodec) EncodeCommand(cmd models.MotorCommand) ([]byte, error) {
	name := cmd.Name
	if !cmd.IsNamed() {
		name = nearestNamed(cmd.Left, cmd.Right)
	}
	return json.Marshal(namedFrame{Command: name})
}

func (namedCodec) EncodePing(int64) ([]byte, error) {
	return nil, ErrPingUnsupported
}

// nearestNamed maps a power vector onto the discrete command set.
func nearestNamed(l, r int) models.CommandName {
	switch {
	case l == 0 && r == 0:
		return models.CmdStop
	case l > 0 && r > 0:
		return models.CmdForward
	case l < 0 && r < 0:
		return models.CmdBackward
	case l < r:
		return models.CmdLeft
	default:
		return models.CmdRight
	}
}
