package eventqueue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rwth-ice/vpti/internal/wire"
)

func TestPostBlocksUntilContinue(t *testing.T) {
	q := NewQueue()
	postReturned := make(chan error, 1)

	go func() {
		postReturned <- q.Post(wire.Event{Kind: wire.EventVPEnd})
	}()

	select {
	case <-postReturned:
		t.Fatal("Post returned before Continue drained the event")
	case <-time.After(20 * time.Millisecond):
	}

	ev, err := q.Continue()
	require.NoError(t, err)
	require.Equal(t, wire.EventVPEnd, ev.Kind)

	select {
	case err := <-postReturned:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Post did not return after Continue")
	}
}

func TestContinueBlocksUntilPost(t *testing.T) {
	q := NewQueue()
	received := make(chan wire.Event, 1)

	go func() {
		ev, err := q.Continue()
		require.NoError(t, err)
		received <- ev
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, q.Post(wire.Event{Kind: wire.EventBreakpointHit}))

	select {
	case ev := <-received:
		require.Equal(t, wire.EventBreakpointHit, ev.Kind)
	case <-time.After(time.Second):
		t.Fatal("Continue did not return after Post")
	}
}

func TestCloseUnblocksPendingPost(t *testing.T) {
	q := NewQueue()
	postReturned := make(chan error, 1)

	go func() {
		postReturned <- q.Post(wire.Event{Kind: wire.EventMMIORead})
	}()

	time.Sleep(10 * time.Millisecond)
	// The slot is buffered, so Post has already handed off the event and is
	// now waiting for resume; no Continue is issued, so only Close can free it.

	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case err := <-postReturned:
		require.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("Post did not unblock after Close")
	}
}

func TestCloseUnblocksPendingContinue(t *testing.T) {
	q := NewQueue()
	result := make(chan error, 1)

	go func() {
		_, err := q.Continue()
		result <- err
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case err := <-result:
		require.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("Continue did not unblock after Close")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	q := NewQueue()
	require.NotPanics(t, func() {
		q.Close()
		q.Close()
	})
}

func TestBufPoolRoundTrip(t *testing.T) {
	buf := getPayload(8)
	require.Len(t, buf, 8)
	putPayload(buf)

	big := getPayload(payloadBucketSize + 16)
	require.Len(t, big, payloadBucketSize+16)
	putPayload(big) // must not panic even though it is not pool-owned
}
