package recorder

import (
	"context"
	"errors"
	"fmt"

	"github.com/looplab/fsm"
)

// State is a controller state.
type State string

const (
	StateIdle             State = "idle"
	StateAcquiring        State = "acquiring"
	StateRecording        State = "recording"
	StatePaused           State = "paused"
	StateStopping         State = "stopping"
	StateStopped          State = "stopped"
	StateRecoveredStopped State = "recovered"
)

// Active reports whether a live capture exists in this state.
func (s State) Active() bool {
	return s == StateRecording || s == StatePaused
}

// HasResult reports whether a finished recording awaits save or discard.
func (s State) HasResult() bool {
	return s == StateStopped || s == StateRecoveredStopped
}

const (
	evStart    = "start"
	evAcquired = "acquired"
	evPause    = "pause"
	evResume   = "resume"
	evStop     = "stop"
	evFinalize = "finalize"
	evSaved    = "saved"
	evDiscard  = "discard"
	evRecover  = "recover"
	evAbort    = "abort"
	evReset    = "reset"
)

func newStateMachine() *fsm.FSM {
	return fsm.NewFSM(
		string(StateIdle),
		fsm.Events{
			{Name: evStart, Src: []string{string(StateIdle)}, Dst: string(StateAcquiring)},
			{Name: evAcquired, Src: []string{string(StateAcquiring)}, Dst: string(StateRecording)},
			{Name: evPause, Src: []string{string(StateRecording)}, Dst: string(StatePaused)},
			{Name: evResume, Src: []string{string(StatePaused)}, Dst: string(StateRecording)},
			{Name: evStop, Src: []string{string(StateRecording), string(StatePaused)}, Dst: string(StateStopping)},
			{Name: evFinalize, Src: []string{string(StateStopping)}, Dst: string(StateStopped)},
			{Name: evSaved, Src: []string{string(StateStopped), string(StateRecoveredStopped)}, Dst: string(StateIdle)},
			{Name: evDiscard, Src: []string{string(StateStopped), string(StateRecoveredStopped)}, Dst: string(StateIdle)},
			{Name: evRecover, Src: []string{string(StateIdle)}, Dst: string(StateRecoveredStopped)},
			{Name: evAbort, Src: []string{string(StateAcquiring), string(StateRecording), string(StatePaused), string(StateStopping)}, Dst: string(StateIdle)},
			{Name: evReset, Src: []string{
				string(StateAcquiring), string(StateRecording), string(StatePaused),
				string(StateStopping), string(StateStopped), string(StateRecoveredStopped),
			}, Dst: string(StateIdle)},
		},
		fsm.Callbacks{},
	)
}

// fire runs one transition, translating fsm errors into ErrInvalidTransition.
func fire(ctx context.Context, m *fsm.FSM, event string) error {
	if err := m.Event(ctx, event); err != nil {
		var noTransition fsm.NoTransitionError
		if errors.As(err, &noTransition) {
			return nil
		}
		return fmt.Errorf("%w: cannot %s while %s", ErrInvalidTransition, event, m.Current())
	}
	return nil
}
