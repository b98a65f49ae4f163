package engine

import "slices"

// State is a step of query handling.
type State string

const (
	StateIdle                 State = "IDLE"
	StateRetrieving           State = "RETRIEVING"
	StateRespondingFromMemory State = "RESPONDING_FROM_MEMORY"
	StateInvokingFallback     State = "INVOKING_FALLBACK"
	StateDegradedResponse     State = "DEGRADED_RESPONSE"
	StateRecording            State = "RECORDING"
)

// transitions lists the legal moves of the state machine.
var transitions = map[State][]State{
	StateIdle:                 {StateRetrieving},
	StateRetrieving:           {StateRespondingFromMemory, StateInvokingFallback},
	StateRespondingFromMemory: {StateRecording, StateIdle},
	StateInvokingFallback:     {StateRecording, StateDegradedResponse, StateIdle},
	StateDegradedResponse:     {StateRecording, StateIdle},
	StateRecording:            {StateIdle},
}

// CanTransition reports whether the machine may move from one state to
// another.
func CanTransition(from, to State) bool {
	return slices.Contains(transitions[from], to)
}

// Source says where an answer came from.
type Source string

const (
	SourceMemory   Source = "memory"
	SourceModel    Source = "model"
	SourceDegraded Source = "degraded"
)
