//go:build linux

package transport

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/rwth-ice/vpti/internal/constants"
	"github.com/rwth-ice/vpti/internal/interfaces"
	"github.com/rwth-ice/vpti/internal/wire"
)

// MQ is the POSIX message queue transport variant (§4.2). Every message is
// atomic and capped at constants.MQMaxLength bytes. Requests/responses are
// prefixed with a 4-byte big-endian receiver identifier so several
// receivers can share one queue pair; ReceiverID 0 accepts every message
// (the common single-receiver case).
type MQ struct {
	RequestName  string
	ResponseName string
	ReceiverID   uint32
	Logger       interfaces.Logger

	mu      sync.Mutex
	reqFD   int
	resFD   int
	started bool
}

const mqIDSize = 4 // big-endian receiver identifier prefix

// Start opens both queues, then publishes the "ready" handshake on the
// response queue.
func (m *MQ) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	attr := &MQAttr{Maxmsg: int64(constants.MQMaxMsg), Msgsize: int64(constants.MQMaxLength)}

	reqFD, err := MQOpen(m.RequestName, unix.O_RDWR|unix.O_CREAT, uint32(constants.MQRequestPerms), attr)
	if err != nil {
		return fmt.Errorf("mq: opening request queue %q: %w", m.RequestName, err)
	}

	resFD, err := MQOpen(m.ResponseName, unix.O_WRONLY|unix.O_CREAT, uint32(constants.MQResponsePerms), attr)
	if err != nil {
		MQClose(reqFD)
		return fmt.Errorf("mq: opening response queue %q: %w", m.ResponseName, err)
	}

	m.reqFD, m.resFD = reqFD, resFD

	ready := make([]byte, mqIDSize+len(constants.ReadyMessage))
	wire.PutUint32(ready, 0, m.ReceiverID)
	copy(ready[mqIDSize:], constants.ReadyMessage)

	if err := MQTimedSend(resFD, ready, 0); err != nil {
		return fmt.Errorf("mq: sending ready handshake: %w", err)
	}

	m.started = true
	if m.Logger != nil {
		m.Logger.Infof("mq transport ready: request=%s response=%s", m.RequestName, m.ResponseName)
	}
	return nil
}

// IsStarted reports whether Start completed successfully.
func (m *MQ) IsStarted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

// SendResponse writes one atomic status+data message.
func (m *MQ) SendResponse(res wire.Response) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started {
		return fmt.Errorf("mq: transport not started")
	}
	if mqIDSize+1+len(res.Data) > constants.MQMaxLength {
		return fmt.Errorf("mq: response of %d bytes exceeds MQ_MAX_LENGTH %d: %w", len(res.Data), constants.MQMaxLength, ErrResponseTooLarge)
	}

	buf := make([]byte, mqIDSize+1+len(res.Data))
	wire.PutUint32(buf, 0, m.ReceiverID)
	buf[mqIDSize] = byte(res.Status)
	copy(buf[mqIDSize+1:], res.Data)

	return MQTimedSend(m.resFD, buf, 0)
}

// ReceiveRequest blocks for exactly one request addressed to this
// receiver. Messages addressed to a different receiver identifier are
// requeued and receiving retries, per the multi-receiver dialect.
// The lock is not held across the blocking receive, so Close can proceed
// while a receive is pending.
func (m *MQ) ReceiveRequest() (wire.Request, error) {
	m.mu.Lock()
	started, reqFD := m.started, m.reqFD
	m.mu.Unlock()
	if !started {
		return wire.Request{}, fmt.Errorf("mq: transport not started")
	}

	buf := make([]byte, constants.MQMaxLength)
	for {
		n, err := MQTimedReceive(reqFD, buf)
		if err != nil {
			return wire.Request{}, fmt.Errorf("mq: receiving request: %w", err)
		}
		if n < mqIDSize+1 {
			return wire.Request{}, fmt.Errorf("mq: message of %d bytes too short for a valid request: %w", n, ErrMalformedFrame)
		}

		id := wire.Uint32(buf, 0)
		if m.ReceiverID != 0 && id != 0 && id != m.ReceiverID {
			// Not addressed to us: put it back and try again.
			if err := MQTimedSend(reqFD, buf[:n], 0); err != nil {
				return wire.Request{}, fmt.Errorf("mq: requeuing foreign message: %w", err)
			}
			continue
		}

		data := make([]byte, n-mqIDSize-1)
		copy(data, buf[mqIDSize+1:n])
		return wire.Request{Command: wire.Command(buf[mqIDSize]), Data: data}, nil
	}
}

// Close releases both queue descriptors.
func (m *MQ) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started {
		return nil
	}
	err1 := MQClose(m.reqFD)
	err2 := MQClose(m.resFD)
	m.started = false
	if err1 != nil {
		return err1
	}
	return err2
}

var _ Transport = (*MQ)(nil)
