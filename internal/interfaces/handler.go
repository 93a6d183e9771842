// Package interfaces provides internal interface definitions for VPTI.
// These are separate from the root package's re-exported aliases to avoid
// import cycles between the public API and the internal dispatch/transport
// layers (mirrors the teacher's internal/interfaces/backend.go split).
package interfaces

import "github.com/rwth-ice/vpti/internal/wire"

// FixedRead is one (address, byte) pair of a SET_FIXED_READ payload (§4.6).
type FixedRead struct {
	Address uint64
	Value   byte
}

// Handler is the VP-facing contract the receiver dispatcher (C6) invokes
// after validating and decoding a request. Implementations live with the
// virtual-platform simulation and are free to block the calling goroutine
// (the dispatcher runs on the receiver thread, §5).
type Handler interface {
	// Continue resumes the simulation up to its next suspend point by
	// draining one event from the event channel (C4). It is the unique
	// release point that lets the simulation thread advance (§4.4).
	Continue() (wire.Status, wire.Event)

	// Kill tears down the VP. If gracefully is false, teardown is
	// immediate and may leave queued events undelivered (§5).
	Kill(gracefully bool) wire.Status

	// SetBreakpoint arms a breakpoint at symbol+offset. Hitting it later
	// produces a BREAKPOINT_HIT event.
	SetBreakpoint(symbol string, offset uint8) wire.Status

	// RemoveBreakpoint disarms a previously set breakpoint.
	RemoveBreakpoint(symbol string) wire.Status

	// EnableMMIOTracking intercepts MMIO accesses in [start, end) according
	// to mode (0: read/write, 1: read, 2: write). A second call overwrites
	// the previous range and mode.
	EnableMMIOTracking(start, end uint64, mode uint8) wire.Status

	// DisableMMIOTracking turns off MMIO interception entirely.
	DisableMMIOTracking() wire.Status

	// SetMMIOValue supplies the bytes returned to the guest for the MMIO
	// read that produced the most recent MMIO_READ event.
	SetMMIOValue(value []byte) wire.Status

	// AddToMMIOReadQueue pre-seeds data as read data for accesses of the
	// given width at address; a matching read is satisfied without
	// suspending the simulation. len(data) need not equal width.
	AddToMMIOReadQueue(address uint64, width uint32, data []byte) wire.Status

	// SetCPUInterruptTrigger arms an interrupt at interruptAddr to fire
	// when the program counter reaches triggerAddr.
	SetCPUInterruptTrigger(interruptAddr, triggerAddr uint64) wire.Status

	// EnableCodeCoverage installs the basic-block hook that records hits
	// into the coverage map (C5).
	EnableCodeCoverage() wire.Status

	// DisableCodeCoverage removes the basic-block hook.
	DisableCodeCoverage() wire.Status

	// ResetCodeCoverage zeroes the coverage map and its auxiliary state.
	ResetCodeCoverage() wire.Status

	// GetCodeCoverage returns the coverage map's raw bytes.
	GetCodeCoverage() (wire.Status, []byte)

	// SetReturnCodeAddress arms a breakpoint at address; when hit, the
	// named register's value is captured as the run's return code.
	SetReturnCodeAddress(address uint64, registerName string) wire.Status

	// GetReturnCode returns the most recently captured return code and
	// resets the capture state.
	GetReturnCode() (wire.Status, uint64)

	// DoRun executes from startBreakpoint to endBreakpoint with mmio read
	// data pre-seeded at (mmioAddress, mmioWidth), then reports the
	// nominated register as the run's return code.
	DoRun(startBreakpoint, endBreakpoint string, mmioAddress uint64, mmioWidth uint32, mmioData []byte, registerName string) wire.Status

	// SetErrorSymbol watches symbol; encountering it during simulation
	// stops execution and produces an ERROR_SYMBOL_HIT event.
	SetErrorSymbol(symbol string) wire.Status

	// SetFixedRead arms one or more fixed MMIO read responses by address.
	SetFixedRead(entries []FixedRead) wire.Status

	// GetCPUPC returns the current program counter.
	GetCPUPC() (wire.Status, uint64)

	// JumpCPUTo sets the program counter to address.
	JumpCPUTo(address uint64) wire.Status

	// StoreCPURegisters snapshots all registers except the program counter.
	StoreCPURegisters() wire.Status

	// RestoreCPURegisters restores the snapshot taken by StoreCPURegisters.
	RestoreCPURegisters() wire.Status
}

// Logger is the minimal logging contract the transport/dispatch layers
// depend on, matching the teacher's internal/interfaces.Logger shape.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Observer receives counters for requests, responses and events as they
// cross the dispatcher. Implementations must be safe for concurrent use
// since both the receiver and simulation threads may report (§5).
type Observer interface {
	ObserveRequest(cmd wire.Command, status wire.Status, latencyNs uint64)
	ObserveEvent(kind wire.EventKind)
}
