package workflows

import "fmt"

// TransitionError is returned when a transition is attempted from a state
// that does not allow it. The subject's state must be left untouched by the
// caller when this is returned.
type TransitionError[S comparable] struct {
	From S
	To   S
}

func (e *TransitionError[S]) Error() string {
	return fmt.Sprintf("transition not allowed: %v -> %v", e.From, e.To)
}

// StateMachine enforces status transitions from a fixed transition table.
type StateMachine[S comparable] struct {
	allowedTransitions map[S][]S
}

// NewStateMachine creates a state machine with the given allowed transitions.
func NewStateMachine[S comparable](transitions map[S][]S) *StateMachine[S] {
	return &StateMachine[S]{allowedTransitions: transitions}
}

// CanTransition checks if a status transition is allowed.
func (sm *StateMachine[S]) CanTransition(from, to S) bool {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return false
	}
	for _, allowedTo := range allowed {
		if allowedTo == to {
			return true
		}
	}
	return false
}

// Transition validates the move and returns a *TransitionError if it is not
// in the table. Invalid transitions fail loudly, never silently no-op.
func (sm *StateMachine[S]) Transition(from, to S) error {
	if !sm.CanTransition(from, to) {
		return &TransitionError[S]{From: from, To: to}
	}
	return nil
}

// GetAllowedTransitions returns the allowed next statuses for a given status.
func (sm *StateMachine[S]) GetAllowedTransitions(from S) []S {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return nil
	}
	return allowed
}
