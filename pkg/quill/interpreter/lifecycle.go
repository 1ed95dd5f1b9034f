package interpreter

import (
	"context"

	"github.com/qmuntal/stateless"
	"go.uber.org/zap"
)

// State is the interpreter lifecycle state.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StatePaused  State = "paused"
	StateEnded   State = "ended"
	StateErrored State = "errored"
)

type trigger string

const (
	triggerExecute trigger = "execute"
	triggerPause   trigger = "pause"
	triggerResume  trigger = "resume"
	triggerFinish  trigger = "finish"
	triggerFail    trigger = "fail"
)

// newLifecycle builds the state machine
//
//	idle -> running <-> paused
//	running -> ended | errored
//
// with the current state stored in *state.
func newLifecycle(state *State, logger *zap.Logger) *stateless.StateMachine {
	fsm := stateless.NewStateMachineWithExternalStorage(func(_ context.Context) (stateless.State, error) {
		return *state, nil
	}, func(_ context.Context, s stateless.State) error {
		*state = s.(State)
		return nil
	}, stateless.FiringImmediate)

	fsm.Configure(StateIdle).
		Permit(triggerExecute, StateRunning)
	fsm.Configure(StateRunning).
		Permit(triggerPause, StatePaused).
		Permit(triggerFinish, StateEnded).
		Permit(triggerFail, StateErrored)
	fsm.Configure(StatePaused).
		Permit(triggerResume, StateRunning)

	fsm.OnTransitioned(func(_ context.Context, t stateless.Transition) {
		logger.Debug("interpreter state changed",
			zap.Any("from", t.Source),
			zap.Any("to", t.Destination),
			zap.Any("trigger", t.Trigger),
		)
	})

	return fsm
}
