package task

import "time"

// State is a Task's position in its lifecycle state machine.
type State string

const (
	Queued     State = "QUEUED"
	Started    State = "STARTED"
	Running    State = "RUNNING"
	Completed  State = "COMPLETED"
	Failed     State = "FAILED"
	Terminated State = "TERMINATED"
	Killed     State = "KILLED"
	Error      State = "ERROR"
)

// terminal is the set of states a Task never leaves once entered.
var terminal = map[State]bool{
	Completed:  true,
	Failed:     true,
	Terminated: true,
	Killed:     true,
	Error:      true,
}

// IsTerminal reports whether s is a terminal state.
func (s State) IsTerminal() bool {
	return terminal[s]
}

// legalTransitions encodes spec's exact state graph: QUEUED -> STARTED ->
// RUNNING -> {COMPLETED, FAILED, TERMINATED, KILLED, ERROR}, plus the
// direct QUEUED -> TERMINATED path for cancelling a not-yet-started task,
// the direct QUEUED -> FAILED path for a task whose dependency ended in a
// non-COMPLETED terminal state, and direct STARTED -> {COMPLETED, FAILED,
// TERMINATED, KILLED, ERROR} for a child that reaches a terminal state
// before being observed RUNNING.
var legalTransitions = map[State]map[State]bool{
	Queued: {
		Started:    true,
		Terminated: true, // cancelled before admission took effect
		Failed:     true, // dependency failed before admission
	},
	Started: {
		Running:    true,
		Completed:  true, // fast-exiting child, no observed output
		Failed:     true,
		Terminated: true,
		Killed:     true,
		Error:      true,
	},
	Running: {
		Completed:  true,
		Failed:     true,
		Terminated: true,
		Killed:     true,
		Error:      true,
	},
}

// CanTransition reports whether moving from `from` to `to` is legal.
// Terminal states never transition further, matching the "terminal
// immutability" invariant of the data model.
func CanTransition(from, to State) bool {
	if from.IsTerminal() {
		return false
	}
	return legalTransitions[from][to]
}

// Transition records one state change and when it happened, matching the
// teacher's PhaseTransition shape (pkg/agent's LoopState history).
type Transition struct {
	From   State
	To     State
	Reason string
	At     time.Time
}
