// Package shm wraps System V shared memory (shmget/shmat/shmdt) behind a
// small attach/copy gateway, used by DO_RUN_SHM and GET_CODE_COVERAGE_SHM
// to move bulk data without a round trip through the transport (§4.3).
package shm

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Segment is an attached System V shared memory segment.
type Segment struct {
	id       int
	addr     []byte
	writable bool
}

// AttachRO attaches the existing segment identified by shmid read-only.
func AttachRO(shmid int) (*Segment, error) {
	return attach(shmid, unix.SHM_RDONLY)
}

// AttachRW attaches the existing segment identified by shmid read-write.
func AttachRW(shmid int) (*Segment, error) {
	return attach(shmid, 0)
}

// attach shmat()s the segment identified by shmid directly. shmid is the
// wire value the driver already obtained from its own shmget, not an IPC
// key to look up: the original does shmat(shm_id, nullptr, flag) with no
// shmget of its own (testing_receiver.cpp's GET_CODE_COVERAGE_SHM/DO_RUN_SHM
// handlers).
func attach(shmid int, shmFlg int) (*Segment, error) {
	addr, err := unix.SysvShmAttach(shmid, 0, shmFlg)
	if err != nil {
		return nil, fmt.Errorf("shm: shmat id=%d: %w", shmid, err)
	}

	return &Segment{
		id:       shmid,
		addr:     addr,
		writable: shmFlg&unix.SHM_RDONLY == 0,
	}, nil
}

// Size returns the segment's size in bytes.
func (s *Segment) Size() int {
	return len(s.addr)
}

// CopyFrom copies up to len(dst) bytes from the segment into dst and
// returns the number of bytes copied. If stopOnNUL is true, copying stops
// at the first zero byte (used for NUL-terminated test-case buffers).
func (s *Segment) CopyFrom(dst []byte, stopOnNUL bool) int {
	n := len(dst)
	if n > len(s.addr) {
		n = len(s.addr)
	}
	if !stopOnNUL {
		copy(dst, s.addr[:n])
		return n
	}
	for i := 0; i < n; i++ {
		if s.addr[i] == 0 {
			return i
		}
		dst[i] = s.addr[i]
	}
	return n
}

// CopyTo copies src into the segment starting at offset. It returns an
// error if the segment is read-only or src does not fit.
func (s *Segment) CopyTo(offset int, src []byte) error {
	if !s.writable {
		return fmt.Errorf("shm: segment id=%d is read-only", s.id)
	}
	if offset < 0 || offset+len(src) > len(s.addr) {
		return fmt.Errorf("shm: write of %d bytes at offset %d exceeds segment size %d", len(src), offset, len(s.addr))
	}
	copy(s.addr[offset:], src)
	return nil
}

// Detach unmaps the segment from this process's address space. It does
// not destroy the segment; the owning driver process remains responsible
// for that (§4.3).
func (s *Segment) Detach() error {
	if err := unix.SysvShmDetach(s.addr); err != nil {
		return fmt.Errorf("shm: shmdt id=%d: %w", s.id, err)
	}
	return nil
}
