package link

import (
	"context"
	"errors"

	"github.com/looplab/fsm"

	"nightfall_dashboard/internal/models"
)

// Link state machine events.
const (
	EventConnect = "connect"
	EventOpen    = "open"
	EventFail    = "fail"
	EventClose   = "close"
	EventRetry   = "retry"
)

var (
	stDisconnected = string(models.ConnDisconnected)
	stConnecting   = string(models.ConnConnecting)
	stConnected    = string(models.ConnConnected)
	stReconnecting = string(models.ConnReconnecting)
	stError        = string(models.ConnError)
)

// stateMachine is the connection lifecycle with no transport attached.
type stateMachine struct {
	*fsm.FSM
}

// newStateMachine starts disconnected and calls onEnter after every
// transition.
func newStateMachine(onEnter func(models.ConnectionState)) *stateMachine {
	events := fsm.Events{
		{Name: EventConnect, Src: []string{stDisconnected, stReconnecting, stError}, Dst: stConnecting},
		{Name: EventOpen, Src: []string{stConnecting}, Dst: stConnected},
		{Name: EventFail, Src: []string{stConnecting, stConnected}, Dst: stError},
		{Name: EventClose, Src: []string{stConnecting, stConnected, stError, stReconnecting}, Dst: stDisconnected},
		{Name: EventRetry, Src: []string{stDisconnected}, Dst: stReconnecting},
	}
	callbacks := fsm.Callbacks{
		"enter_state": func(_ context.Context, e *fsm.Event) {
			if onEnter != nil {
				onEnter(models.ConnectionState(e.Dst))
			}
		},
	}
	return &stateMachine{FSM: fsm.NewFSM(stDisconnected, events, callbacks)}
}

func (s *stateMachine) State() models.ConnectionState {
	return models.ConnectionState(s.Current())
}

// fire runs event and treats a self transition as success.
func (s *stateMachine) fire(event string) error {
	err := s.Event(context.Background(), event)
	var noTransition fsm.NoTransitionError
	if errors.As(err, &noTransition) {
		return nil
	}
	return err
}
