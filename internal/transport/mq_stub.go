//go:build !linux

package transport

import (
	"fmt"

	"github.com/rwth-ice/vpti/internal/interfaces"
	"github.com/rwth-ice/vpti/internal/wire"
)

// MQ is unavailable outside Linux: POSIX message queues are a Linux-only
// kernel facility here (glibc's mqueue veneer is not implemented on the
// other platforms the pack's dependencies target).
type MQ struct {
	RequestName  string
	ResponseName string
	ReceiverID   uint32
	Logger       interfaces.Logger
}

func (m *MQ) Start() error { return fmt.Errorf("mq: message queue transport requires linux") }

func (m *MQ) IsStarted() bool { return false }

func (m *MQ) SendResponse(res wire.Response) error {
	return fmt.Errorf("mq: message queue transport requires linux")
}

func (m *MQ) ReceiveRequest() (wire.Request, error) {
	return wire.Request{}, fmt.Errorf("mq: message queue transport requires linux")
}

func (m *MQ) Close() error { return nil }

var _ Transport = (*MQ)(nil)
