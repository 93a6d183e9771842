//go:build linux

package client

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/rwth-ice/vpti/internal/constants"
	"github.com/rwth-ice/vpti/internal/interfaces"
	"github.com/rwth-ice/vpti/internal/transport"
	"github.com/rwth-ice/vpti/internal/wire"
)

const mqIDSize = 4 // big-endian receiver identifier prefix, matches internal/transport/mq.go

// MQClient is the driver-side mirror of transport.MQ: it writes framed
// requests to the request queue and reads framed responses (and the
// initial "ready" handshake) off the response queue, filtered by
// ReceiverID the same way the receiver filters incoming requests.
type MQClient struct {
	RequestName  string
	ResponseName string
	ReceiverID   uint32
	Logger       interfaces.Logger

	mu      sync.Mutex
	reqFD   int
	resFD   int
	started bool
	ready   bool
}

// Start opens both queues and drains any stale messages left over on the
// response queue from a previous run, within constants.DrainPollTimeout.
func (c *MQClient) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return nil
	}

	attr := &transport.MQAttr{Maxmsg: int64(constants.MQMaxMsg), Msgsize: int64(constants.MQMaxLength)}

	// Both the client and the receiver open the queues with O_CREAT, so
	// either side may start first. Creation modes here mirror testing_client.cpp exactly, which
	// swaps MQRequestPerms/MQResponsePerms relative to how the receiver
	// side (internal/transport/mq.go) names them.
	reqFD, err := transport.MQOpen(c.RequestName, unix.O_WRONLY|unix.O_CREAT, uint32(constants.MQResponsePerms), attr)
	if err != nil {
		return fmt.Errorf("mq client: opening request queue %q: %w", c.RequestName, err)
	}

	resFD, err := transport.MQOpen(c.ResponseName, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CREAT, uint32(constants.MQRequestPerms), attr)
	if err != nil {
		transport.MQClose(reqFD)
		return fmt.Errorf("mq client: opening response queue %q: %w", c.ResponseName, err)
	}

	c.reqFD = reqFD
	c.resFD = resFD
	c.started = true

	c.drainStale()
	return nil
}

// drainStale discards messages already queued on the response queue when
// Start is called, so a leftover "ready" or response from a previous run
// isn't mistaken for a fresh one.
func (c *MQClient) drainStale() {
	deadline := time.Now().Add(constants.DrainPollTimeout)
	buf := make([]byte, constants.MQMaxLength)
	for time.Now().Before(deadline) {
		if _, err := transport.MQTimedReceive(c.resFD, buf); err != nil {
			if errors.Is(err, unix.EAGAIN) {
				return
			}
			return
		}
	}
}

// CheckForReady makes one non-blocking attempt to read the "ready"
// handshake off the response queue.
func (c *MQClient) CheckForReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.checkForReadyLocked()
}

func (c *MQClient) checkForReadyLocked() bool {
	if !c.started {
		return false
	}
	buf := make([]byte, constants.MQMaxLength)
	n, err := transport.MQTimedReceive(c.resFD, buf)
	if err != nil {
		return false
	}
	payload := buf[:n]
	if len(payload) >= mqIDSize && string(payload[mqIDSize:]) == constants.ReadyMessage {
		c.ready = true
		return true
	}
	return false
}

// WaitForReady blocks, polling at constants.ReadyPollInterval, until the
// "ready" handshake is observed.
func (c *MQClient) WaitForReady() error {
	for {
		if c.CheckForReady() {
			return nil
		}
		time.Sleep(constants.ReadyPollInterval)
	}
}

// ResetReady clears the ready state so SendRequest rejects again until a
// fresh handshake is observed.
func (c *MQClient) ResetReady() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ready = false
}

// SendRequest writes req, framed with the ReceiverID prefix, then blocks
// (polling at constants.ReadyPollInterval) for the matching response.
func (c *MQClient) SendRequest(req wire.Request) (wire.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started {
		return wire.Response{}, ErrNotReady
	}
	if !c.ready {
		return wire.Response{}, ErrNotReady
	}

	buf := make([]byte, mqIDSize+1+len(req.Data))
	wire.PutUint32(buf, 0, c.ReceiverID)
	buf[mqIDSize] = byte(req.Command)
	copy(buf[mqIDSize+1:], req.Data)

	if len(buf) > constants.MQMaxLength {
		return wire.Response{}, fmt.Errorf("mq client: request %d bytes exceeds MQMaxLength %d", len(buf), constants.MQMaxLength)
	}

	if err := transport.MQTimedSend(c.reqFD, buf, 0); err != nil {
		return wire.Response{}, fmt.Errorf("mq client: send request: %w", err)
	}

	resBuf := make([]byte, constants.MQMaxLength)
	for {
		n, err := transport.MQTimedReceive(c.resFD, resBuf)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) {
				time.Sleep(constants.ReadyPollInterval)
				continue
			}
			return wire.Response{}, fmt.Errorf("mq client: receive response: %w", err)
		}
		payload := resBuf[:n]
		if len(payload) < mqIDSize+1 {
			continue
		}
		id := wire.Uint32(payload, 0)
		if c.ReceiverID != 0 && id != 0 && id != c.ReceiverID {
			continue
		}
		return wire.Response{Status: wire.Status(payload[mqIDSize]), Data: append([]byte(nil), payload[mqIDSize+1:]...)}, nil
	}
}

// Close releases both queue descriptors.
func (c *MQClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return nil
	}
	err1 := transport.MQClose(c.reqFD)
	err2 := transport.MQClose(c.resFD)
	c.started = false
	if err1 != nil {
		return err1
	}
	return err2
}

var _ Client = (*MQClient)(nil)
