package streamer

import (
	"sync/atomic"

	"github.com/tastyware/tastytrade/src/metrics"
)

// ConnectionState tracks where the feed connection is in its lifecycle.
// Failed is terminal for an engine instance; the supervisor builds a fresh
// engine to leave it.
type ConnectionState int32

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateAuthenticatingChannel
	StateReady
	StateClosing
	StateFailed
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateAuthenticatingChannel:
		return "AuthenticatingChannel"
	case StateReady:
		return "Ready"
	case StateClosing:
		return "Closing"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// -----------------------------------------------------------------------------

// StateVar is the shared connection state cell. The engine goroutine writes
// it, any goroutine may read it.
type StateVar struct {
	v atomic.Int32
}

func (s *StateVar) Load() ConnectionState {
	return ConnectionState(s.v.Load())
}

func (s *StateVar) Store(state ConnectionState) {
	s.v.Store(int32(state))
	metrics.ConnectionState.Set(float64(state))
}
