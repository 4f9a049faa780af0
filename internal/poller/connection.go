// internal/poller/connection.go
package poller

import (
	"context"
	"errors"
	"sync"
)

// ConnState is the transport lifecycle state.
type ConnState int

const (
	Disconnected ConnState = iota
	Connecting
	Connected
	Closed
)

func (s ConnState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Closed:
		return "closed"
	}
	return "invalid"
}

// ConnectionManager owns the transport of the current cycle.
// Lifecycle is connect -> one cycle -> close, repeated every cycle.
// Connection failures are not retried; the next cycle dials from scratch.
type ConnectionManager struct {
	mu sync.Mutex

	endpoint string
	factory  Factory

	state ConnState
	tr    Transport
}

// NewConnectionManager dials endpoint through factory on demand.
func NewConnectionManager(endpoint string, factory Factory) *ConnectionManager {
	return &ConnectionManager{
		endpoint: endpoint,
		factory:  factory,
		state:    Disconnected,
	}
}

// Endpoint returns the managed endpoint.
func (m *ConnectionManager) Endpoint() string { return m.endpoint }

// State returns the current lifecycle state.
func (m *ConnectionManager) State() ConnState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// EnsureConnected returns a connected transport, making one connect attempt
// if needed. Failure is a *LinkDownFailure.
func (m *ConnectionManager) EnsureConnected(ctx context.Context) (Transport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.tr != nil && m.tr.Connected() {
		m.state = Connected
		return m.tr, nil
	}

	m.state = Connecting

	if m.tr == nil {
		if m.factory == nil {
			m.state = Disconnected
			return nil, &LinkDownFailure{Endpoint: m.endpoint, Err: errors.New("no transport factory")}
		}
		tr, err := m.factory()
		if err != nil {
			m.state = Disconnected
			return nil, &LinkDownFailure{Endpoint: m.endpoint, Err: err}
		}
		m.tr = tr
	}

	if err := m.tr.Connect(ctx); err != nil {
		m.discardLocked()
		m.state = Disconnected
		return nil, &LinkDownFailure{Endpoint: m.endpoint, Err: err}
	}
	if !m.tr.Connected() {
		m.discardLocked()
		m.state = Disconnected
		return nil, &LinkDownFailure{Endpoint: m.endpoint, Err: errors.New("transport not connected after connect")}
	}

	m.state = Connected
	return m.tr, nil
}

// Close releases the transport. Always called at cycle end.
func (m *ConnectionManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var err error
	if m.tr != nil {
		err = m.tr.Close()
		m.tr = nil
	}
	m.state = Closed
	return err
}

func (m *ConnectionManager) discardLocked() {
	if m.tr != nil {
		_ = m.tr.Close()
		m.tr = nil
	}
}
