package sessionsvc

import (
	"context"

	"github.com/joyconduit/jc2-agent/internal/joycon"
	"github.com/joyconduit/jc2-agent/pkg/bus"
)

type (
	BackendBus       = bus.Bus[string, BackendEvent]
	BackendPublisher = bus.Publisher[BackendEvent]
)

// Backend is the transport boundary. Link-layer discovery, pairing and
// connection establishment live behind it; the session only assumes it
// delivers ordered report buffers and accepts command writes.
type Backend interface {
	// Start runs the backend until ctx is cancelled, publishing
	// availability changes through pub.
	Start(ctx context.Context, pub BackendPublisher) error
	Ready() <-chan struct{}
	// Connect establishes a link to the controller of the given side and
	// resolves its input/command channels. Connect honors ctx
	// cancellation, so a hung link establishment can be abandoned by the
	// caller.
	Connect(ctx context.Context, side joycon.Side) (Link, error)
}

// Link is one established transport connection.
type Link interface {
	// Write sends one command buffer. Fire-and-forget beyond the
	// transport's own delivery confirmation.
	Write(ctx context.Context, cmd []byte) error
	// Reports returns the inbound report stream. The channel is closed
	// when the link is lost or closed.
	Reports() <-chan []byte
	Close() error
}

type BackendEvent struct {
	ControllersChanged *BackendEventControllersChanged
}

type BackendEventControllersChanged struct {
	Connected    []BackendController
	Disconnected []joycon.Side
}

// BackendController describes a reachable controller advertised by a
// backend.
type BackendController struct {
	Side joycon.Side
	ID   string
	Name string
}
