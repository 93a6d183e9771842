// Package coverage implements the fixed-size basic-block hit-count map
// fed by VP simulation hooks and read back through GET_CODE_COVERAGE and
// GET_CODE_COVERAGE_SHM (§4.5).
package coverage

import "sync"

// MapSize is the fixed coverage map size, matching AFL's default
// SHM map size (2^16 bytes).
const MapSize = 1 << 16

// Compile-time size check, mirroring the teacher's struct-size assertions
// (internal/uapi/structs.go).
var _ [MapSize]byte

// Map is a thread-safe AFL-style hit-count map. SetBlock is called by the
// VP simulation on every basic-block transition; Bytes/Reset are called
// from the dispatcher on GET_CODE_COVERAGE/RESET_CODE_COVERAGE (§4.5).
type Map struct {
	mu        sync.Mutex
	enabled   bool
	bits      [MapSize]byte
	prevBBLoc uint64
}

// NewMap returns an empty, disabled coverage map.
func NewMap() *Map {
	return &Map{}
}

// Enable turns on recording; SetBlock is a no-op while disabled.
func (m *Map) Enable() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = true
}

// Disable turns off recording. The accumulated map is left untouched.
func (m *Map) Disable() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = false
}

// Enabled reports whether recording is currently active.
func (m *Map) Enabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled
}

// SetBlock records a hit for the basic block at pc, XOR-mixing its
// location with the previously executed block so that edges, not just
// blocks, are distinguishable (the classic AFL instrumentation trick).
// prevBBLoc is then updated to the current location shifted right by one
// bit, so that A->B and B->A edges map to distinct map slots. The hit
// counter saturates at 255 instead of wrapping to zero.
func (m *Map) SetBlock(pc uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.enabled {
		return
	}
	currBBLoc := ((pc >> 4) ^ (pc << 8)) & (MapSize - 1)
	if idx := currBBLoc ^ m.prevBBLoc; m.bits[idx] != 0xFF {
		m.bits[idx]++
	}
	m.prevBBLoc = currBBLoc >> 1
}

// Reset zeroes the map and the auxiliary previous-block-location state, so
// that edges recorded before a reset never bleed into the next run.
func (m *Map) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.bits {
		m.bits[i] = 0
	}
	m.prevBBLoc = 0
}

// Bytes returns a copy of the raw map contents.
func (m *Map) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]byte, MapSize)
	copy(out, m.bits[:])
	return out
}
