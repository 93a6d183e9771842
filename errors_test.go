package vpti

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewErrorFormatsOpAndCode(t *testing.T) {
	err := NewError("dispatch", CodeProtocol, "bad length")
	require.Equal(t, "dispatch", err.Op)
	require.Equal(t, CodeProtocol, err.Code)
	require.Equal(t, "vpti: dispatch: bad length (protocol error)", err.Error())
}

func TestNewProtocolError(t *testing.T) {
	err := NewProtocolError("SET_BREAKPOINT", "length 0, expected minimum 2")
	require.Equal(t, CodeProtocol, err.Code)
	require.True(t, IsCode(err, CodeProtocol))
}

func TestWrapErrorPreservesCategoryAcrossBoundaries(t *testing.T) {
	inner := errors.New("short read")
	wrapped := NewTransportError("mq.ReceiveRequest", inner)
	rewrapped := WrapError("Receiver.loop", CodeHandler, wrapped)

	require.Equal(t, CodeTransport, rewrapped.Code)
	require.Equal(t, "Receiver.loop", rewrapped.Op)
	require.ErrorIs(t, rewrapped, wrapped)
}

func TestWrapErrorNilIsNil(t *testing.T) {
	require.Nil(t, WrapError("op", CodeResource, nil))
}

func TestIsCode(t *testing.T) {
	err := NewResourceError("shm.Attach", errors.New("no such segment"))
	require.True(t, IsCode(err, CodeResource))
	require.False(t, IsCode(err, CodeProtocol))
	require.False(t, IsCode(nil, CodeResource))
}

func TestErrorIsMatchesByCode(t *testing.T) {
	a := NewHandlerError("DoRun", errors.New("unknown symbol"))
	b := &Error{Code: CodeHandler}
	require.True(t, errors.Is(a, b))

	c := &Error{Code: CodeProtocol}
	require.False(t, errors.Is(a, c))
}

func TestErrorUnwrapReachesInner(t *testing.T) {
	inner := errors.New("ENOSPC")
	err := NewResourceError("eventqueue.NewQueue", inner)
	require.ErrorIs(t, err, inner)
}
