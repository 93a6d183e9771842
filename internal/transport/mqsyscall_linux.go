//go:build linux

package transport

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// MQAttr mirrors struct mq_attr from <mqueue.h>. golang.org/x/sys/unix does
// not wrap POSIX message queues at all (they are a libc/glibc veneer over
// a handful of raw syscalls), so the ABI struct and syscall numbers are
// reproduced here directly, in the same raw-syscall style the teacher uses
// for io_uring (internal/uring/minimal.go).
type MQAttr struct {
	Flags    int64
	Maxmsg   int64
	Msgsize  int64
	Curmsgs  int64
	reserved [4]int64
}

// MQOpen opens or creates the named message queue.
func MQOpen(name string, flags int, mode uint32, attr *MQAttr) (int, error) {
	namePtr, err := unix.BytePtrFromString(name)
	if err != nil {
		return -1, err
	}
	fd, _, errno := unix.Syscall6(unix.SYS_MQ_OPEN,
		uintptr(unsafe.Pointer(namePtr)),
		uintptr(flags),
		uintptr(mode),
		uintptr(unsafe.Pointer(attr)),
		0, 0)
	if errno != 0 {
		return -1, fmt.Errorf("mq_open %q: %w", name, errno)
	}
	return int(fd), nil
}

// MQTimedSend sends one atomic message with no timeout (abs_timeout = NULL
// blocks indefinitely, matching the original's plain mq_send usage).
func MQTimedSend(mqd int, msg []byte, prio uint) error {
	var msgPtr unsafe.Pointer
	if len(msg) > 0 {
		msgPtr = unsafe.Pointer(&msg[0])
	}
	_, _, errno := unix.Syscall6(unix.SYS_MQ_TIMEDSEND,
		uintptr(mqd),
		uintptr(msgPtr),
		uintptr(len(msg)),
		uintptr(prio),
		0, 0)
	if errno != 0 {
		return fmt.Errorf("mq_send: %w", errno)
	}
	return nil
}

// MQTimedReceive blocks until one message is available and returns its
// length.
func MQTimedReceive(mqd int, buf []byte) (int, error) {
	var bufPtr unsafe.Pointer
	if len(buf) > 0 {
		bufPtr = unsafe.Pointer(&buf[0])
	}
	n, _, errno := unix.Syscall6(unix.SYS_MQ_TIMEDRECEIVE,
		uintptr(mqd),
		uintptr(bufPtr),
		uintptr(len(buf)),
		0, 0, 0)
	if errno != 0 {
		return 0, fmt.Errorf("mq_receive: %w", errno)
	}
	return int(n), nil
}

// MQClose releases the message queue descriptor.
func MQClose(mqd int) error {
	return unix.Close(mqd)
}

// MQUnlink removes a named message queue from the filesystem namespace.
func MQUnlink(name string) error {
	namePtr, err := unix.BytePtrFromString(name)
	if err != nil {
		return err
	}
	_, _, errno := unix.Syscall(unix.SYS_MQ_UNLINK, uintptr(unsafe.Pointer(namePtr)), 0, 0)
	if errno != 0 {
		return fmt.Errorf("mq_unlink %q: %w", name, errno)
	}
	return nil
}
