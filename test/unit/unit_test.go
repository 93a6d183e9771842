//go:build !integration

// Package unit holds tests that exercise the VPTI library without any
// privileged OS facility (no mqueue, no System-V shm).
package unit

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rwth-ice/vpti"
	"github.com/rwth-ice/vpti/internal/wire"
)

// newPipeReceiverPair wires a Receiver's pipe transport to a pair of real OS
// pipes a test driver can write to/read from directly.
func newPipeReceiverPair(t *testing.T, handler vpti.Handler) (*vpti.Receiver, *os.File, *os.File) {
	t.Helper()
	reqR, reqW, err := os.Pipe()
	require.NoError(t, err)
	resR, resW, err := os.Pipe()
	require.NoError(t, err)
	t.Cleanup(func() {
		reqW.Close()
		resR.Close()
	})

	r, err := vpti.NewPipeReceiver(int(reqR.Fd()), int(resW.Fd()), handler, nil)
	require.NoError(t, err)
	return r, reqW, resR
}

func TestMockHandlerSatisfiesHandlerInterface(t *testing.T) {
	var _ vpti.Handler = vpti.NewMockHandler()
}

func TestReceiverOverPipeServesSetBreakpoint(t *testing.T) {
	handler := vpti.NewMockHandler()
	r, reqW, resR := newPipeReceiverPair(t, handler)
	require.NoError(t, r.Start())
	defer r.Stop(0)

	_, _ = resR.Read(make([]byte, 6)) // drain the "ready\x00" handshake

	header := make([]byte, 5)
	header[0] = byte(wire.SetBreakpoint)
	wire.PutUint32(header, 1, 2)
	_, err := reqW.Write(header)
	require.NoError(t, err)
	_, err = reqW.Write([]byte{0x00, 0x05})
	require.NoError(t, err)

	resHeader := make([]byte, 5)
	_, err = resR.Read(resHeader)
	require.NoError(t, err)
	require.Equal(t, byte(wire.StatusOK), resHeader[0])
}

func TestReceiverOverPipeRejectsMalformedRequest(t *testing.T) {
	handler := vpti.NewMockHandler()
	r, reqW, resR := newPipeReceiverPair(t, handler)
	require.NoError(t, r.Start())
	defer r.Stop(0)

	_, _ = resR.Read(make([]byte, 6))

	header := make([]byte, 5)
	header[0] = byte(wire.SetBreakpoint)
	wire.PutUint32(header, 1, 1) // SetBreakpoint needs symbol+offset, one byte is too short
	_, err := reqW.Write(header)
	require.NoError(t, err)
	_, err = reqW.Write([]byte{0x00})
	require.NoError(t, err)

	resHeader := make([]byte, 5)
	_, err = resR.Read(resHeader)
	require.NoError(t, err)
	require.Equal(t, byte(wire.StatusMalformed), resHeader[0])
}

func TestMetricsRecordAcrossReceiverRequests(t *testing.T) {
	handler := vpti.NewMockHandler()
	r, reqW, resR := newPipeReceiverPair(t, handler)
	require.NoError(t, r.Start())
	defer r.Stop(0)

	_, _ = resR.Read(make([]byte, 6))

	go handler.PostEvent(wire.Event{Kind: wire.EventVPEnd})

	header := make([]byte, 5)
	header[0] = byte(wire.Continue)
	_, err := reqW.Write(header)
	require.NoError(t, err)
	_, err = resR.Read(make([]byte, 5))
	require.NoError(t, err)

	snap := r.MetricsSnapshot()
	require.Equal(t, uint64(1), snap.RequestsByCommand[wire.Continue])
}

func TestErrorCodeTaxonomy(t *testing.T) {
	require.True(t, vpti.IsCode(vpti.NewProtocolError("op", "bad"), vpti.CodeProtocol))
	require.True(t, vpti.IsCode(vpti.NewHandlerError("op", assertErr{}), vpti.CodeHandler))
	require.True(t, vpti.IsCode(vpti.NewTransportError("op", assertErr{}), vpti.CodeTransport))
	require.True(t, vpti.IsCode(vpti.NewResourceError("op", assertErr{}), vpti.CodeResource))
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
