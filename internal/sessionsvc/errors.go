package sessionsvc

import (
	"errors"
	"fmt"
)

var (
	// ErrTransportUnavailable means no transport backend can reach the
	// requested controller at all. Fatal to the attempt, never retried.
	ErrTransportUnavailable = errors.New("transport unavailable")

	// ErrNoGATT means a device was found but does not expose the
	// controller service. Fatal to the attempt.
	ErrNoGATT = errors.New("device does not expose the controller service")

	// ErrUserCancelled means the user dismissed the device selection.
	// Not an error state: the session silently returns to Disconnected.
	ErrUserCancelled = errors.New("device selection cancelled")

	// ErrSessionBusy means a connection attempt is already in flight or
	// the side is already streaming.
	ErrSessionBusy = errors.New("session is not disconnected")
)

// TransportError wraps any failure during link establishment, configuration
// writes or report subscription. It aborts the current attempt and moves the
// session back to Disconnected.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
