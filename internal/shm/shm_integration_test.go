//go:build linux

package shm

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// requireSysVShm skips the test if the kernel refuses to create a System V
// shared memory segment (some sandboxes disable SysV IPC entirely),
// mirroring the teacher's requireRoot/requireUblkModule skip guards.
func requireSysVShm(t *testing.T) int {
	t.Helper()
	id, err := unix.SysvShmGet(unix.IPC_PRIVATE, 4096, unix.IPC_CREAT|0600)
	if err != nil {
		t.Skipf("System V shared memory unavailable: %v", err)
	}
	t.Cleanup(func() { unix.SysvShmCtl(id, unix.IPC_RMID, nil) })
	return id
}

func TestAttachRWRoundTripsThroughRealSegment(t *testing.T) {
	id := requireSysVShm(t)

	writer, err := AttachRW(id)
	require.NoError(t, err)
	require.NoError(t, writer.CopyTo(0, []byte("hello vpti")))
	require.NoError(t, writer.Detach())

	reader, err := AttachRO(id)
	require.NoError(t, err)
	defer reader.Detach()

	dst := make([]byte, len("hello vpti"))
	n := reader.CopyFrom(dst, false)
	require.Equal(t, len(dst), n)
	require.Equal(t, "hello vpti", string(dst))
}

func TestAttachROReportsSegmentSize(t *testing.T) {
	id := requireSysVShm(t)
	seg, err := AttachRO(id)
	require.NoError(t, err)
	defer seg.Detach()
	require.Equal(t, 4096, seg.Size())
}
