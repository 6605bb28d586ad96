// Package issue tracks the validation issues of one review run from the
// moment they are reported until a reviewer fixes the field or the form is
// regenerated.
package issue

import (
	"errors"
	"fmt"
	"sync"
)

// State represents the lifecycle state of an issue.
type State int

const (
	// StateOpen - Issue is shown to the reviewer.
	StateOpen State = iota
	// StateResolved - The reviewer corrected the field.
	StateResolved
	// StateDismissed - The form was regenerated; the issue no longer applies.
	StateDismissed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateOpen:
		return "OPEN"
	case StateResolved:
		return "RESOLVED"
	case StateDismissed:
		return "DISMISSED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// IsTerminal returns true if the state is terminal (RESOLVED or DISMISSED).
func (s State) IsTerminal() bool {
	return s == StateResolved || s == StateDismissed
}

// Errors for invalid state transitions.
var (
	ErrAlreadyResolved = errors.New("issue is already resolved")
	ErrDismissed       = errors.New("issue was dismissed")
)

// Lifecycle manages the state machine for a single issue.
// Thread-safe for concurrent access.
//
// State transitions:
//
//	OPEN ──→ Resolve() ──→ RESOLVED
//	  │
//	  └───→ Dismiss() ──→ DISMISSED
//
// Both target states are terminal.
type Lifecycle struct {
	mu      sync.RWMutex
	issueID string
	state   State
}

// NewLifecycle creates a new issue lifecycle in OPEN state.
func NewLifecycle(issueID string) *Lifecycle {
	return &Lifecycle{
		issueID: issueID,
		state:   StateOpen,
	}
}

// IssueID returns the issue ID.
func (l *Lifecycle) IssueID() string {
	return l.issueID
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// IsOpen returns true while the issue awaits a reviewer.
func (l *Lifecycle) IsOpen() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state == StateOpen
}

// Resolve transitions to RESOLVED.
func (l *Lifecycle) Resolve() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StateOpen:
		l.state = StateResolved
		return nil
	case StateResolved:
		return ErrAlreadyResolved
	case StateDismissed:
		return ErrDismissed
	default:
		return fmt.Errorf("unexpected state: %v", l.state)
	}
}

// Dismiss transitions to DISMISSED.
// Returns true if the issue was dismissed, false if already in a terminal state.
func (l *Lifecycle) Dismiss() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state.IsTerminal() {
		return false
	}
	l.state = StateDismissed
	return true
}
