package shm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// Segment.CopyFrom/CopyTo are exercised directly against a Segment built
// around a plain byte slice, avoiding a real shmget/shmat round trip for
// the pure-logic parts of the gateway (actual attach/detach needs a live
// kernel segment and is covered by the build-tagged integration suite).
func newTestSegment(size int, writable bool) *Segment {
	return &Segment{addr: make([]byte, size), writable: writable}
}

func TestCopyFromCopiesWholeBuffer(t *testing.T) {
	seg := newTestSegment(8, false)
	copy(seg.addr, []byte{1, 2, 3, 4, 5, 6, 7, 8})

	dst := make([]byte, 4)
	n := seg.CopyFrom(dst, false)
	require.Equal(t, 4, n)
	require.Equal(t, []byte{1, 2, 3, 4}, dst)
}

func TestCopyFromStopsOnNUL(t *testing.T) {
	seg := newTestSegment(8, false)
	copy(seg.addr, []byte{'h', 'i', 0, 'x', 'x', 'x', 'x', 'x'})

	dst := make([]byte, 8)
	n := seg.CopyFrom(dst, true)
	require.Equal(t, 2, n)
	require.Equal(t, []byte{'h', 'i'}, dst[:n])
}

func TestCopyToRejectsReadOnlySegment(t *testing.T) {
	seg := newTestSegment(8, false)
	err := seg.CopyTo(0, []byte{1, 2, 3})
	require.Error(t, err)
}

func TestCopyToRejectsOverflow(t *testing.T) {
	seg := newTestSegment(4, true)
	err := seg.CopyTo(2, []byte{1, 2, 3})
	require.Error(t, err)
}

func TestCopyToWritesAtOffset(t *testing.T) {
	seg := newTestSegment(8, true)
	require.NoError(t, seg.CopyTo(2, []byte{0xAA, 0xBB}))
	require.Equal(t, byte(0xAA), seg.addr[2])
	require.Equal(t, byte(0xBB), seg.addr[3])
}

func TestSizeReportsSegmentLength(t *testing.T) {
	seg := newTestSegment(128, true)
	require.Equal(t, 128, seg.Size())
}
