package interfaces

import "context"

// -----------------------------------------------------------------------------
// ITransport is a bidirectional whole-message stream. The protocol engine is
// agnostic to the underlying framing technology as long as complete text
// messages are delivered in order.
// -----------------------------------------------------------------------------

type ITransport interface {

	// ReadMessage blocks until the next whole message arrives or the
	// connection fails.
	ReadMessage() ([]byte, error)

	// -----------------------------------------------------------------------------

	// WriteMessage sends one whole message. Callers must serialize writes.
	WriteMessage(data []byte) error

	// -----------------------------------------------------------------------------

	// Close tears the connection down. Safe to call more than once.
	Close() error
}

// -----------------------------------------------------------------------------
// ITransportDialer opens transports. Injected so the engine can be driven by
// an in-memory fake in tests.
// -----------------------------------------------------------------------------

type ITransportDialer interface {

	// Dial connects to url and returns a ready transport.
	Dial(ctx context.Context, url string) (ITransport, error)
}
