package vpti

import (
	"github.com/rwth-ice/vpti/internal/client"
	"github.com/rwth-ice/vpti/internal/wire"
)

// Client is the driver-side mirror of a Receiver: it writes Requests to a
// Transport's request side and blocks for matching Responses. Use
// NewMQClient or NewPipeClient to talk to a NewMQReceiver/NewPipeReceiver.
type Client = client.Client

// PipeClientOptions configures NewPipeClient.
type PipeClientOptions = client.PipeClientOptions

// ErrNotReady is returned by a Client's SendRequest before the transport's
// "ready" handshake has been observed via WaitForReady/CheckForReady.
var ErrNotReady = client.ErrNotReady

// NewMQClient constructs a Client over a POSIX message queue pair,
// addressing (and expecting replies tagged for) receiverID in the
// multi-receiver MQ dialect. requestName/responseName/receiverID must
// match the NewMQReceiver on the other end.
func NewMQClient(requestName, responseName string, receiverID uint32) Client {
	return &client.MQClient{
		RequestName:  requestName,
		ResponseName: responseName,
		ReceiverID:   receiverID,
	}
}

// NewPipeClient constructs a Client over an anonymous pipe pair identified
// by the given request (write side) and response (read side) file
// descriptors, matching the file descriptors passed to NewPipeReceiver.
func NewPipeClient(requestFD, responseFD int, options PipeClientOptions) Client {
	return client.NewPipeClient(requestFD, responseFD, options)
}

// NewRequest builds a Request with the given command and payload, for use
// with a Client's SendRequest.
func NewRequest(cmd wire.Command, data []byte) wire.Request {
	return wire.Request{Command: cmd, Data: data}
}
