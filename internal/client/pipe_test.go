package client

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rwth-ice/vpti/internal/transport"
	"github.com/rwth-ice/vpti/internal/wire"
)

// newPipeClientPair wires a PipeClient to a transport.Pipe over two real OS
// pipes, so the pair can be exercised end to end without forking a process.
func newPipeClientPair(t *testing.T) (*PipeClient, *transport.Pipe) {
	t.Helper()
	reqR, reqW, err := os.Pipe()
	require.NoError(t, err)
	resR, resW, err := os.Pipe()
	require.NoError(t, err)

	t.Cleanup(func() {
		reqR.Close()
		resW.Close()
	})

	server := transport.NewPipe(int(reqR.Fd()), int(resW.Fd()))
	c := NewPipeClient(int(reqW.Fd()), int(resR.Fd()), PipeClientOptions{})
	return c, server
}

func TestPipeClientWaitForReadyObservesHandshake(t *testing.T) {
	c, server := newPipeClientPair(t)
	require.NoError(t, c.Start())
	require.NoError(t, server.Start())

	require.NoError(t, c.WaitForReady())
}

func TestPipeClientSendRequestRoundTrips(t *testing.T) {
	c, server := newPipeClientPair(t)
	require.NoError(t, c.Start())
	require.NoError(t, server.Start())
	require.NoError(t, c.WaitForReady())

	done := make(chan struct{})
	go func() {
		defer close(done)
		req, err := server.ReceiveRequest()
		require.NoError(t, err)
		require.Equal(t, wire.SetBreakpoint, req.Command)
		require.Equal(t, []byte{0xAA}, req.Data)
		require.NoError(t, server.SendResponse(wire.Response{Status: wire.StatusOK, Data: []byte{1, 2, 3}}))
	}()

	res, err := c.SendRequest(wire.Request{Command: wire.SetBreakpoint, Data: []byte{0xAA}})
	require.NoError(t, err)
	require.Equal(t, wire.StatusOK, res.Status)
	require.Equal(t, []byte{1, 2, 3}, res.Data)
	<-done
}

func TestPipeClientSendRequestBeforeReadyFails(t *testing.T) {
	c, _ := newPipeClientPair(t)
	require.NoError(t, c.Start())

	_, err := c.SendRequest(wire.Request{Command: wire.Continue})
	require.ErrorIs(t, err, ErrNotReady)
}

func TestPipeClientResetReadyRequiresFreshHandshake(t *testing.T) {
	c, server := newPipeClientPair(t)
	require.NoError(t, c.Start())
	require.NoError(t, server.Start())
	require.NoError(t, c.WaitForReady())

	c.ResetReady()
	_, err := c.SendRequest(wire.Request{Command: wire.Continue})
	require.ErrorIs(t, err, ErrNotReady)
}
