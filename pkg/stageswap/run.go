package stageswap

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RunState is a step of the per-run state machine.
type RunState int

const (
	StatePending RunState = iota
	StateExtracted
	StateStaged
	StateValidated
	StateCommitted
	StateAborted
)

func (s RunState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateExtracted:
		return "extracted"
	case StateStaged:
		return "staged"
	case StateValidated:
		return "validated"
	case StateCommitted:
		return "committed"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// IsTerminal reports whether no further transition is allowed.
func (s RunState) IsTerminal() bool {
	return s == StateCommitted || s == StateAborted
}

// Run tracks one pipeline invocation.
//
// Thread-Safety: NOT safe for concurrent use; a run is single-threaded.
type Run struct {
	ID        uuid.UUID
	Pipeline  string
	StartedAt time.Time

	state RunState
	err   error
}

// NewRun starts a run in the Pending state.
func NewRun(id uuid.UUID, pipeline string) *Run {
	return &Run{ID: id, Pipeline: pipeline, StartedAt: time.Now()}
}

// State returns the current state.
func (r *Run) State() RunState {
	return r.state
}

// Err returns the error that aborted the run, or nil.
func (r *Run) Err() error {
	return r.err
}

// Advance moves the run forward by exactly one step.
// Skipping a step or leaving a terminal state is a programmer error.
func (r *Run) Advance(next RunState) error {
	if r.state.IsTerminal() {
		return fmt.Errorf("run %s is %s, cannot move to %s", r.ID, r.state, next)
	}
	if next != r.state+1 || next == StateAborted {
		return fmt.Errorf("run %s cannot move from %s to %s", r.ID, r.state, next)
	}
	r.state = next
	return nil
}

// Abort moves the run to Aborted and records err. It returns err so callers can
// write `return run.Abort(err)`. Aborting a terminal run leaves its state alone.
func (r *Run) Abort(err error) error {
	if !r.state.IsTerminal() {
		r.state = StateAborted
		r.err = err
	}
	return err
}
