// Package session owns the interpretation session: its state machine, the
// pipeline wiring, and ordered event delivery to subscribers.
package session

import (
	"errors"
	"fmt"
	"sync"
)

// State represents the lifecycle state of a session.
type State int

const (
	// StateIdle - session created, not yet connecting.
	StateIdle State = iota
	// StateConnecting - capture device and recognition stream being opened.
	StateConnecting
	// StateActive - pipeline running.
	StateActive
	// StateError - a fatal pipeline error ended the session.
	StateError
	// StateDisconnected - session over. Terminal.
	StateDisconnected
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateError:
		return "error"
	case StateDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// IsTerminal returns true if no further transitions are possible. A new
// start call creates a new session; terminal sessions are never reused.
func (s State) IsTerminal() bool {
	return s == StateError || s == StateDisconnected
}

// Errors for invalid state transitions.
var (
	ErrNotIdle       = errors.New("session is not idle")
	ErrNotConnecting = errors.New("session is not connecting")
	ErrTerminal      = errors.New("session already ended")
)

// Machine manages the state transitions for one session.
// Thread-safe for concurrent access.
//
// Transitions:
//
//	idle → connecting → active → disconnected
//	         │            │
//	         └── error ←──┘ → disconnected
type Machine struct {
	mu    sync.RWMutex
	state State
}

// NewMachine creates a machine in the idle state.
func NewMachine() *Machine {
	return &Machine{state: StateIdle}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Connect transitions idle → connecting.
func (m *Machine) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateIdle {
		return ErrNotIdle
	}
	m.state = StateConnecting
	return nil
}

// Activate transitions connecting → active.
func (m *Machine) Activate() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateConnecting {
		return ErrNotConnecting
	}
	m.state = StateActive
	return nil
}

// Fail transitions connecting or active → error. Returns false if the
// session was already terminal.
func (m *Machine) Fail() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.IsTerminal() {
		return false
	}
	m.state = StateError
	return true
}

// Disconnect moves the session to disconnected from any state. Returns
// false if it was already disconnected, making repeated end calls no-ops.
func (m *Machine) Disconnect() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateDisconnected {
		return false
	}
	m.state = StateDisconnected
	return true
}
