package helpers

import (
	"errors"
	"fmt"

	"github.com/tastyware/tastytrade/src/logger"
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

// StreamError is the base error carrying the component and operation that
// produced it.
type StreamError struct {
	Component string
	Op        string
	Cause     error
}

func (e *StreamError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Component, e.Op, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Component, e.Op)
}

func (e *StreamError) Unwrap() error {
	return e.Cause
}

// Distinct error types for errors.As matching.

// MalformedEventError: the codec could not decode a frame. The frame is
// dropped and the stream continues.
type MalformedEventError struct{ StreamError }

// ProtocolViolationError: the server broke the handshake or frame-ordering
// contract. Fatal to the current connection.
type ProtocolViolationError struct{ StreamError }

// TransportError: socket-level failure. Triggers reconnect.
type TransportError struct{ StreamError }

// ConnectionLostError: the retry budget is exhausted. Fatal; surfaced to
// every blocked consumer.
type ConnectionLostError struct{ StreamError }

// ConfigurationError: invalid or incomplete configuration.
type ConfigurationError struct{ StreamError }

// DatabaseError: event store failure.
type DatabaseError struct{ StreamError }

// -----------------------------------------------------------------------------

func NewMalformedEventError(op string, cause error) error {
	return &MalformedEventError{StreamError{Component: "codec", Op: op, Cause: cause}}
}

func NewProtocolViolationError(op string, cause error) error {
	return &ProtocolViolationError{StreamError{Component: "engine", Op: op, Cause: cause}}
}

func NewTransportError(op string, cause error) error {
	return &TransportError{StreamError{Component: "transport", Op: op, Cause: cause}}
}

func NewConnectionLostError(op string, cause error) error {
	return &ConnectionLostError{StreamError{Component: "supervisor", Op: op, Cause: cause}}
}

// -----------------------------------------------------------------------------

func IsMalformedEvent(err error) bool {
	var e *MalformedEventError
	return errors.As(err, &e)
}

func IsProtocolViolation(err error) bool {
	var e *ProtocolViolationError
	return errors.As(err, &e)
}

func IsTransportError(err error) bool {
	var e *TransportError
	return errors.As(err, &e)
}

func IsConnectionLost(err error) bool {
	var e *ConnectionLostError
	return errors.As(err, &e)
}

// -----------------------------------------------------------------------------
// Error Handler
// -----------------------------------------------------------------------------

// ErrorHandler counts consecutive failures against a restart threshold. The
// recorder uses it to decide when a dead store connection is worth rebuilding
// instead of logging the same flush error forever.
type ErrorHandler struct {
	Logger                 *logger.Logger
	ErrorCount             int
	MaxErrorsBeforeRestart int
}

func NewErrorHandler(log *logger.Logger, maxErrors int) *ErrorHandler {
	if maxErrors <= 0 {
		maxErrors = 10
	}
	return &ErrorHandler{
		Logger:                 log,
		MaxErrorsBeforeRestart: maxErrors,
	}
}

// -----------------------------------------------------------------------------

func (e *ErrorHandler) ResetErrorCount() {
	e.ErrorCount = 0
}

// -----------------------------------------------------------------------------

// Handle logs an error and tracks it against the restart threshold. A nil
// error counts as a success and resets the streak.
func (e *ErrorHandler) Handle(err error, context string) {
	if err == nil {
		e.ErrorCount = 0
		return
	}
	e.ErrorCount++
	e.Logger.Error("Error in %s: %v", context, err)
}

// -----------------------------------------------------------------------------

// ShouldRestart reports whether the accumulated error count crossed the
// restart threshold.
func (e *ErrorHandler) ShouldRestart() bool {
	return e.ErrorCount >= e.MaxErrorsBeforeRestart
}
