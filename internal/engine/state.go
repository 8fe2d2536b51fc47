package engine

import (
	"errors"
	"fmt"
	"sync"
)

// State tracks where a coordinator run is. A run moves Idle -> Checking ->
// Reported, then either through Applying -> Applied or to Cancelled. Partial
// check success still reaches Reported; degraded sources are not a failure
// state.
type State string

const (
	StateIdle      State = "idle"
	StateChecking  State = "checking"
	StateReported  State = "reported"
	StateApplying  State = "applying"
	StateApplied   State = "applied"
	StateCancelled State = "cancelled"
)

// ErrInvalidTransition reports an operation called in the wrong state, e.g.
// Apply before Check.
var ErrInvalidTransition = errors.New("invalid state transition")

var transitions = map[State][]State{
	StateIdle:     {StateChecking},
	StateChecking: {StateReported, StateIdle},
	StateReported: {StateApplying, StateCancelled, StateChecking},
	StateApplying: {StateApplied, StateCancelled},
	// Terminal states allow a fresh check.
	StateApplied:   {StateChecking},
	StateCancelled: {StateChecking},
}

type stateMachine struct {
	mu    sync.Mutex
	state State
}

func newStateMachine() *stateMachine {
	return &stateMachine{state: StateIdle}
}

func (m *stateMachine) current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *stateMachine) to(next State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, allowed := range transitions[m.state] {
		if allowed == next {
			m.state = next
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.state, next)
}
