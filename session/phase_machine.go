package session

import (
	"errors"
	"fmt"
	"sync"
)

// Phase is the coarse state of a session.
type Phase int

const (
	PhaseSetup Phase = iota
	PhaseIndexing
	PhaseReady
)

func (p Phase) String() string {
	switch p {
	case PhaseSetup:
		return "SETUP"
	case PhaseIndexing:
		return "INDEXING"
	case PhaseReady:
		return "READY"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// ErrInvalidTransition is returned for a transition the machine does not allow.
var ErrInvalidTransition = errors.New("invalid phase transition")

var allowedTransitions = map[Phase][]Phase{
	PhaseSetup:    {PhaseIndexing},
	PhaseIndexing: {PhaseReady, PhaseSetup},
}

// PhaseMachine tracks SETUP -> INDEXING -> READY. READY is final; a failed
// indexing run falls back to SETUP.
type PhaseMachine struct {
	mu        sync.Mutex
	current   Phase
	listeners []func(from, to Phase)
}

func NewPhaseMachine() *PhaseMachine {
	return &PhaseMachine{current: PhaseSetup}
}

func (m *PhaseMachine) Current() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Transition moves to next and notifies listeners outside the lock.
func (m *PhaseMachine) Transition(next Phase) error {
	m.mu.Lock()
	from := m.current
	if !canTransition(from, next) {
		m.mu.Unlock()
		return fmt.Errorf("%s -> %s: %w", from, next, ErrInvalidTransition)
	}
	m.current = next
	listeners := m.listeners
	m.mu.Unlock()

	for _, listener := range listeners {
		listener(from, next)
	}
	return nil
}

// Subscribe registers a listener for every successful transition.
func (m *PhaseMachine) Subscribe(listener func(from, to Phase)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(append([]func(from, to Phase){}, m.listeners...), listener)
}

func canTransition(from, to Phase) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
