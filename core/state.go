package core

// RunState is the control plane's per-task state.
type RunState string

const (
	StateSubmitted     RunState = "SUBMITTED"
	StateRouted        RunState = "ROUTED"
	StateAwaitingReply RunState = "AWAITING_REPLY"
	StateCompleted     RunState = "COMPLETED"
	StateFailed        RunState = "FAILED"
)

// IsTerminal reports whether no further transitions are allowed.
func (s RunState) IsTerminal() bool { return s == StateCompleted || s == StateFailed }

// transitions lists the allowed edges. AWAITING_REPLY -> ROUTED is the
// multi-hop re-entry after a worker result was delegated onwards.
var transitions = map[RunState][]RunState{
	StateSubmitted:     {StateRouted, StateFailed},
	StateRouted:        {StateAwaitingReply, StateFailed},
	StateAwaitingReply: {StateCompleted, StateFailed, StateRouted},
}

// CanTransition reports whether from -> to is a legal state change.
func CanTransition(from, to RunState) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
