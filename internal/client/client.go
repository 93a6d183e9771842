// Package client implements the driver-side mirror of the receiver
// transports (C8): it opens the same MQ/pipe pair a receiver listens on,
// waits for the "ready" handshake, and turns Requests into Responses.
package client

import (
	"errors"

	"github.com/rwth-ice/vpti/internal/wire"
)

// ErrNotReady is returned by SendRequest when the client has not observed
// the transport's "ready" handshake yet (via WaitForReady/CheckForReady).
var ErrNotReady = errors.New("client: not ready")

// Client is the driver-side mirror of a receiver's transport.
type Client interface {
	// Start opens the underlying transport. It must be called before
	// CheckForReady, WaitForReady, or SendRequest.
	Start() error

	// CheckForReady makes one non-blocking attempt to observe the "ready"
	// handshake, returning true only if it was seen.
	CheckForReady() bool

	// WaitForReady blocks until the "ready" handshake is observed.
	WaitForReady() error

	// ResetReady clears the ready state, so requests are rejected again
	// until WaitForReady/CheckForReady observes a new handshake. Used to
	// reuse a Client across a VP restart without reopening the transport.
	ResetReady()

	// SendRequest writes req and blocks for the matching Response.
	SendRequest(req wire.Request) (wire.Response, error)

	// Close releases the underlying transport's resources.
	Close() error
}
