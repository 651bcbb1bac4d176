package models

import "fmt"

// CommandName is a discrete drive command understood by the firmware.
type CommandName string

const (
	CmdForward        CommandName = "forward"
	CmdBackward       CommandName = "backward"
	CmdLeft           CommandName = "left"
	CmdRight          CommandName = "right"
	CmdStop           CommandName = "stop"
	CmdEmergency      CommandName = "emergency"
	CmdEmergencyReset CommandName = "emergency_reset"
	CmdAutoToggle     CommandName = "auto_toggle"
	CmdRotate         CommandName = "rotate"
)

var knownCommands = map[CommandName]struct{}{
	CmdForward: {}, CmdBackward: {}, CmdLeft: {}, CmdRight: {}, CmdStop: {},
	CmdEmergency: {}, CmdEmergencyReset: {}, CmdAutoToggle: {}, CmdRotate: {},
}

// ParseCommandName validates a command name coming from the API.
func ParseCommandName(s string) (CommandName, error) {
	n := CommandName(s)
	if _, ok := knownCommands[n]; !ok {
		return "", fmt.Errorf("unknown command %q", s)
	}
	return n, nil
}

// MotorCommand is either a named command or a left/right power vector.
type MotorCommand struct {
	Name  CommandName `json:"command,omitempty"`
	Left  int         `json:"left"`
	Right int         `json:"right"`
}

// Vector builds a power command.
func Vector(left, right int) MotorCommand {
	return MotorCommand{Left: left, Right: right}
}

// Named builds a discrete command.
func Named(n CommandName) MotorCommand {
	return MotorCommand{Name: n}
}

// IsNamed reports whether the command carries a discrete name.
func (c MotorCommand) IsNamed() bool { return c.Name != "" }

func (c MotorCommand) String() string {
	if c.IsNamed() {
		return string(c.Name)
	}
	return fmt.Sprintf("L=%d R=%d", c.Left, c.Right)
}
