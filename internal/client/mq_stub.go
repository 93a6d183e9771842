//go:build !linux

package client

import (
	"fmt"

	"github.com/rwth-ice/vpti/internal/interfaces"
	"github.com/rwth-ice/vpti/internal/wire"
)

// MQClient is unavailable outside Linux; see internal/transport.MQ.
type MQClient struct {
	RequestName  string
	ResponseName string
	ReceiverID   uint32
	Logger       interfaces.Logger
}

func (c *MQClient) Start() error { return fmt.Errorf("mq client: message queue transport requires linux") }

func (c *MQClient) CheckForReady() bool { return false }

func (c *MQClient) WaitForReady() error {
	return fmt.Errorf("mq client: message queue transport requires linux")
}

func (c *MQClient) ResetReady() {}

func (c *MQClient) SendRequest(req wire.Request) (wire.Response, error) {
	return wire.Response{}, fmt.Errorf("mq client: message queue transport requires linux")
}

func (c *MQClient) Close() error { return nil }

var _ Client = (*MQClient)(nil)
