// Package constants holds tunable defaults shared across the VPTI packages.
package constants

import "time"

// Coverage map sizing (§4.5).
const (
	// MapSizePow2 is the power-of-two exponent of the coverage map.
	MapSizePow2 = 16
	// MapSize is the fixed size of the coverage hit-count map in bytes.
	MapSize = 1 << MapSizePow2
)

// MQ transport limits (§6).
const (
	// MQMaxMsg is the maximum number of queued messages per POSIX mqueue.
	MQMaxMsg = 10
	// MQMaxLength is the maximum size, in bytes, of a single mqueue message.
	MQMaxLength = 256
	// MQRequestPerms are the permission bits used when creating the request queue.
	MQRequestPerms = 0660
	// MQResponsePerms are the permission bits used when creating the response queue.
	MQResponsePerms = 0644
)

// Pipe transport limits (§4.2).
const (
	// PipeReadErrorMax bounds consecutive failed (error or zero-byte) reads
	// before giving up.
	PipeReadErrorMax = 5
)

// ReadyMessage is the literal handshake payload emitted by a transport on start.
const ReadyMessage = "ready"

// Timeouts used while polling for readiness or draining stale queue contents.
const (
	// ReadyPollInterval is how often WaitForReady retries CheckForReady, and
	// how often the MQ client re-polls its response queue while waiting for
	// a response.
	ReadyPollInterval = 20 * time.Millisecond

	// DrainPollTimeout bounds how long start() spends draining stale
	// messages from a freshly opened queue before giving up.
	DrainPollTimeout = 50 * time.Millisecond
)
