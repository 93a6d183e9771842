// Package transport implements the two pluggable VPTI wire transports: a
// POSIX message queue pair and an anonymous pipe pair (§4.2).
package transport

import "github.com/rwth-ice/vpti/internal/wire"

// Transport is the capability set every variant implements: start the
// handshake, send exactly one response, receive exactly one request, and
// report whether Start has completed successfully.
type Transport interface {
	// Start opens the underlying queues/descriptors and signals readiness to
	// the driver. It does not drain messages left over from a previous run.
	Start() error

	// IsStarted reports whether Start has completed successfully.
	IsStarted() bool

	// ReceiveRequest blocks for exactly one framed request.
	ReceiveRequest() (wire.Request, error)

	// SendResponse writes exactly one framed response. It never partially
	// emits a response on success.
	SendResponse(res wire.Response) error

	// Close releases the underlying resources.
	Close() error
}
