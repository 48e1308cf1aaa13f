package fsm

import "fmt"

type State string

type Event string

const (
	StateIdle      State = "idle"
	StateAnnounced State = "announced"
	StateRunning   State = "running"
	StateStopped   State = "stopped"
	StateError     State = "error"
)

const (
	EventAnnounce Event = "announce"
	EventStart    Event = "start"
	EventStop     Event = "stop"
	EventFail     Event = "fail"
)

func Transition(current State, event Event) (State, error) {
	if event == EventFail {
		return StateError, nil
	}

	switch current {
	case StateIdle:
		switch event {
		case EventAnnounce:
			return StateAnnounced, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateAnnounced:
		switch event {
		case EventStart:
			return StateRunning, nil
		case EventStop:
			return StateStopped, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateRunning:
		switch event {
		case EventStop:
			return StateStopped, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateStopped, StateError:
		return current, invalidTransition(current, event)
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
