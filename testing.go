package vpti

import (
	"sync"

	"github.com/rwth-ice/vpti/internal/coverage"
	"github.com/rwth-ice/vpti/internal/eventqueue"
	"github.com/rwth-ice/vpti/internal/wire"
)

// MockHandler provides a minimal, in-memory Handler implementation for
// testing drivers and receivers without a real VP simulation attached. It
// tracks method calls for verification and wires a real coverage map and
// event queue so CONTINUE/event round-trips behave like a real Handler.
type MockHandler struct {
	mu sync.Mutex

	coverage *coverage.Map
	events   *eventqueue.Queue

	killed      bool
	killedGrace bool

	breakpoints      map[string]uint8
	mmioTrackStart   uint64
	mmioTrackEnd     uint64
	mmioTrackMode    uint8
	mmioTrackEnabled bool
	lastMMIOValue    []byte
	mmioReadQueue    map[uint64][]byte
	fixedReads       map[uint64]byte

	interruptTriggers map[uint64]uint64

	returnCodeAddress uint64
	returnCodeReg     string
	returnCode        uint64
	returnCodeSet     bool

	errorSymbol string

	pc            uint64
	storedPC      uint64
	registersOK   bool

	// Call tracking
	continueCalls int
	doRunCalls    []DoRunCall
}

// DoRunCall records the arguments of one DoRun invocation.
type DoRunCall struct {
	StartBreakpoint string
	EndBreakpoint   string
	MMIOAddress     uint64
	MMIOWidth       uint32
	MMIOData        []byte
	RegisterName    string
}

// NewMockHandler returns a ready-to-use MockHandler with an empty, disabled
// coverage map and an open event queue.
func NewMockHandler() *MockHandler {
	return &MockHandler{
		coverage:          coverage.NewMap(),
		events:            eventqueue.NewQueue(),
		breakpoints:       make(map[string]uint8),
		mmioReadQueue:     make(map[uint64][]byte),
		fixedReads:        make(map[uint64]byte),
		interruptTriggers: make(map[uint64]uint64),
	}
}

// Coverage returns the handler's coverage map, so a test can drive
// SetBlock directly to simulate basic-block execution.
func (h *MockHandler) Coverage() *coverage.Map {
	return h.coverage
}

// Events returns the handler's event queue, so a test can Post events the
// way a simulation thread would.
func (h *MockHandler) Events() *eventqueue.Queue {
	return h.events
}

// PostEvent posts an event onto the handler's queue. It blocks until the
// driver side drains it via Continue, matching the real suspend-on-event
// discipline.
func (h *MockHandler) PostEvent(ev wire.Event) error {
	return h.events.Post(ev)
}

func (h *MockHandler) Continue() (wire.Status, wire.Event) {
	h.mu.Lock()
	h.continueCalls++
	h.mu.Unlock()

	ev, err := h.events.Continue()
	if err != nil {
		return wire.StatusError, wire.Event{}
	}
	return wire.StatusOK, ev
}

func (h *MockHandler) Kill(gracefully bool) wire.Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.killed = true
	h.killedGrace = gracefully
	h.events.Close()
	return wire.StatusOK
}

func (h *MockHandler) SetBreakpoint(symbol string, offset uint8) wire.Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.breakpoints[symbol] = offset
	return wire.StatusOK
}

func (h *MockHandler) RemoveBreakpoint(symbol string) wire.Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.breakpoints[symbol]; !ok {
		return wire.StatusError
	}
	delete(h.breakpoints, symbol)
	return wire.StatusOK
}

func (h *MockHandler) EnableMMIOTracking(start, end uint64, mode uint8) wire.Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.mmioTrackStart = start
	h.mmioTrackEnd = end
	h.mmioTrackMode = mode
	h.mmioTrackEnabled = true
	return wire.StatusOK
}

func (h *MockHandler) DisableMMIOTracking() wire.Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.mmioTrackEnabled = false
	return wire.StatusOK
}

func (h *MockHandler) SetMMIOValue(value []byte) wire.Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastMMIOValue = append([]byte(nil), value...)
	return wire.StatusOK
}

func (h *MockHandler) AddToMMIOReadQueue(address uint64, width uint32, data []byte) wire.Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.mmioReadQueue[address] = append(h.mmioReadQueue[address], data...)
	return wire.StatusOK
}

func (h *MockHandler) SetCPUInterruptTrigger(interruptAddr, triggerAddr uint64) wire.Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.interruptTriggers[triggerAddr] = interruptAddr
	return wire.StatusOK
}

func (h *MockHandler) EnableCodeCoverage() wire.Status {
	h.coverage.Enable()
	return wire.StatusOK
}

func (h *MockHandler) DisableCodeCoverage() wire.Status {
	h.coverage.Disable()
	return wire.StatusOK
}

func (h *MockHandler) ResetCodeCoverage() wire.Status {
	h.coverage.Reset()
	return wire.StatusOK
}

func (h *MockHandler) GetCodeCoverage() (wire.Status, []byte) {
	return wire.StatusOK, h.coverage.Bytes()
}

func (h *MockHandler) SetReturnCodeAddress(address uint64, registerName string) wire.Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.returnCodeAddress = address
	h.returnCodeReg = registerName
	h.returnCodeSet = false
	return wire.StatusOK
}

func (h *MockHandler) GetReturnCode() (wire.Status, uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.returnCodeSet {
		return wire.StatusError, 0
	}
	code := h.returnCode
	h.returnCodeSet = false
	return wire.StatusOK, code
}

// SetReturnCodeForTest lets a test simulate the return-code breakpoint
// firing, without needing a real CPU register snapshot.
func (h *MockHandler) SetReturnCodeForTest(code uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.returnCode = code
	h.returnCodeSet = true
}

func (h *MockHandler) DoRun(startBreakpoint, endBreakpoint string, mmioAddress uint64, mmioWidth uint32, mmioData []byte, registerName string) wire.Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.doRunCalls = append(h.doRunCalls, DoRunCall{
		StartBreakpoint: startBreakpoint,
		EndBreakpoint:   endBreakpoint,
		MMIOAddress:     mmioAddress,
		MMIOWidth:       mmioWidth,
		MMIOData:        append([]byte(nil), mmioData...),
		RegisterName:    registerName,
	})
	return wire.StatusOK
}

// DoRunCalls returns a copy of every DoRun invocation recorded so far.
func (h *MockHandler) DoRunCalls() []DoRunCall {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]DoRunCall, len(h.doRunCalls))
	copy(out, h.doRunCalls)
	return out
}

func (h *MockHandler) SetErrorSymbol(symbol string) wire.Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errorSymbol = symbol
	return wire.StatusOK
}

func (h *MockHandler) SetFixedRead(entries []FixedRead) wire.Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, e := range entries {
		h.fixedReads[e.Address] = e.Value
	}
	return wire.StatusOK
}

func (h *MockHandler) GetCPUPC() (wire.Status, uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return wire.StatusOK, h.pc
}

func (h *MockHandler) JumpCPUTo(address uint64) wire.Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pc = address
	return wire.StatusOK
}

func (h *MockHandler) StoreCPURegisters() wire.Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.storedPC = h.pc
	h.registersOK = true
	return wire.StatusOK
}

func (h *MockHandler) RestoreCPURegisters() wire.Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.registersOK {
		return wire.StatusError
	}
	h.pc = h.storedPC
	return wire.StatusOK
}

// IsKilled reports whether Kill has been called, and with which mode.
func (h *MockHandler) IsKilled() (killed, gracefully bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.killed, h.killedGrace
}

// ContinueCalls returns how many times Continue has been invoked.
func (h *MockHandler) ContinueCalls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.continueCalls
}

// Compile-time interface check.
var _ Handler = (*MockHandler)(nil)
