// Package dispatch implements the receiver-side command dispatcher (C6):
// it decodes a wire.Request's payload according to its command's length
// invariants, calls the matching Handler method, and encodes the reply.
// Every case here is transcribed from the original handle_request switch,
// field offsets and all; see each case's comment for the exact layout.
package dispatch

import (
	"bytes"
	"fmt"
	"time"

	"github.com/rwth-ice/vpti/internal/coverage"
	"github.com/rwth-ice/vpti/internal/interfaces"
	"github.com/rwth-ice/vpti/internal/shm"
	"github.com/rwth-ice/vpti/internal/wire"
)

// Dispatcher decodes requests, invokes the VP Handler, and encodes
// responses. It is safe to call Handle from a single goroutine at a time
// (the receiver loop); Handler implementations are responsible for their
// own internal synchronization against the simulation thread.
type Dispatcher struct {
	Handler  interfaces.Handler
	Logger   interfaces.Logger
	Observer interfaces.Observer
}

// Handle decodes and executes one request, returning the response to send
// back over the transport.
func (d *Dispatcher) Handle(req wire.Request) wire.Response {
	start := time.Now()
	res := d.dispatch(req)
	if d.Observer != nil {
		d.Observer.ObserveRequest(req.Command, res.Status, uint64(time.Since(start).Nanoseconds()))
	}
	return res
}

func (d *Dispatcher) logf(format string, args ...any) {
	if d.Logger != nil {
		d.Logger.Errorf(format, args...)
	}
}

// malformed builds a MALFORMED response and logs why.
func (d *Dispatcher) malformed(cmd wire.Command, reason string) wire.Response {
	d.logf("request %s malformed: %s", cmd, reason)
	res := wire.Response{}
	wire.RespondMalformed(&res)
	return res
}

func (d *Dispatcher) checkExact(cmd wire.Command, data []byte, want int) (wire.Response, bool) {
	if len(data) != want {
		return d.malformed(cmd, fmt.Sprintf("length %d, expected exactly %d", len(data), want)), false
	}
	return wire.Response{}, true
}

func (d *Dispatcher) checkMin(cmd wire.Command, data []byte, want int) (wire.Response, bool) {
	if len(data) < want {
		return d.malformed(cmd, fmt.Sprintf("length %d, expected at least %d", len(data), want)), false
	}
	return wire.Response{}, true
}

func (d *Dispatcher) dispatch(req wire.Request) wire.Response {
	data := req.Data

	switch req.Command {

	case wire.Continue:
		// No data.
		if res, ok := d.checkExact(req.Command, data, 0); !ok {
			return res
		}
		status, ev := d.Handler.Continue()
		if d.Observer != nil {
			d.Observer.ObserveEvent(ev.Kind)
		}
		payload := make([]byte, 1+len(ev.Payload))
		payload[0] = byte(ev.Kind)
		copy(payload[1:], ev.Payload)
		return wire.Response{Status: status, Data: payload}

	case wire.Kill:
		// gracefully(1)
		if res, ok := d.checkExact(req.Command, data, 1); !ok {
			return res
		}
		status := d.Handler.Kill(data[0] != 0)
		return wire.Response{Status: status}

	case wire.SetBreakpoint:
		// offset(1) ‖ symbol(>=1)
		if res, ok := d.checkMin(req.Command, data, 2); !ok {
			return res
		}
		offset := data[0]
		symbol := string(data[1:])
		return wire.Response{Status: d.Handler.SetBreakpoint(symbol, offset)}

	case wire.RemoveBreakpoint:
		// symbol(>=1)
		if res, ok := d.checkMin(req.Command, data, 1); !ok {
			return res
		}
		return wire.Response{Status: d.Handler.RemoveBreakpoint(string(data))}

	case wire.EnableMMIOTracking:
		// start(8) ‖ end(8) ‖ mode(1)
		if res, ok := d.checkExact(req.Command, data, 17); !ok {
			return res
		}
		start := wire.Uint64(data, 0)
		end := wire.Uint64(data, 8)
		mode := data[16]
		return wire.Response{Status: d.Handler.EnableMMIOTracking(start, end, mode)}

	case wire.DisableMMIOTracking:
		if res, ok := d.checkExact(req.Command, data, 0); !ok {
			return res
		}
		return wire.Response{Status: d.Handler.DisableMMIOTracking()}

	case wire.SetMMIOValue:
		// value(>=1)
		if res, ok := d.checkMin(req.Command, data, 1); !ok {
			return res
		}
		return wire.Response{Status: d.Handler.SetMMIOValue(data)}

	case wire.AddToMMIOReadQueue:
		// address(8) ‖ width(4) ‖ data_len(4) ‖ data(data_len)
		if res, ok := d.checkMin(req.Command, data, 17); !ok {
			return res
		}
		address := wire.Uint64(data, 0)
		width := wire.Uint32(data, 8)
		dataLen := wire.Uint32(data, 12)
		if res, ok := d.checkExact(req.Command, data, 16+int(dataLen)); !ok {
			return res
		}
		return wire.Response{Status: d.Handler.AddToMMIOReadQueue(address, width, data[16:16+dataLen])}

	case wire.SetCPUInterruptTrigger:
		// interrupt_address(8) ‖ trigger_address(8)
		if res, ok := d.checkExact(req.Command, data, 16); !ok {
			return res
		}
		interruptAddr := wire.Uint64(data, 0)
		triggerAddr := wire.Uint64(data, 8)
		return wire.Response{Status: d.Handler.SetCPUInterruptTrigger(interruptAddr, triggerAddr)}

	case wire.EnableCodeCoverage:
		if res, ok := d.checkExact(req.Command, data, 0); !ok {
			return res
		}
		return wire.Response{Status: d.Handler.EnableCodeCoverage()}

	case wire.DisableCodeCoverage:
		if res, ok := d.checkExact(req.Command, data, 0); !ok {
			return res
		}
		return wire.Response{Status: d.Handler.DisableCodeCoverage()}

	case wire.GetCodeCoverage:
		if res, ok := d.checkExact(req.Command, data, 0); !ok {
			return res
		}
		status, cov := d.Handler.GetCodeCoverage()
		if cov == nil {
			// A nil coverage buffer forces ERROR even if the handler itself
			// reported OK (original's nullptr-coverage-string quirk).
			d.logf("coverage buffer was nil for %s", req.Command)
			return wire.Response{Status: wire.StatusError}
		}
		out := make([]byte, 4+len(cov))
		wire.PutUint32(out, 0, uint32(len(cov)))
		copy(out[4:], cov)
		return wire.Response{Status: status, Data: out}

	case wire.GetCodeCoverageSHM:
		// shm_id(4) ‖ offset(4)
		if res, ok := d.checkExact(req.Command, data, 8); !ok {
			return res
		}
		shmID := int(wire.Uint32(data, 0))
		offset := int(wire.Uint32(data, 4))
		return wire.Response{Status: d.writeCoverageToSHM(shmID, offset)}

	case wire.ResetCodeCoverage:
		if res, ok := d.checkExact(req.Command, data, 0); !ok {
			return res
		}
		return wire.Response{Status: d.Handler.ResetCodeCoverage()}

	case wire.SetReturnCodeAddress:
		// address(8) ‖ register_name(>=1)
		if res, ok := d.checkMin(req.Command, data, 9); !ok {
			return res
		}
		address := wire.Uint64(data, 0)
		regName := string(data[8:])
		return wire.Response{Status: d.Handler.SetReturnCodeAddress(address, regName)}

	case wire.GetReturnCode:
		if res, ok := d.checkExact(req.Command, data, 0); !ok {
			return res
		}
		status, code := d.Handler.GetReturnCode()
		out := make([]byte, 8)
		wire.PutUint64(out, 0, code)
		return wire.Response{Status: status, Data: out}

	case wire.DoRun:
		return d.handleDoRun(req.Command, data)

	case wire.DoRunSHM:
		return d.handleDoRunSHM(req.Command, data)

	case wire.SetErrorSymbol:
		// symbol(>=1)
		if res, ok := d.checkMin(req.Command, data, 1); !ok {
			return res
		}
		return wire.Response{Status: d.Handler.SetErrorSymbol(string(data))}

	case wire.SetFixedRead:
		return d.handleSetFixedRead(req.Command, data)

	case wire.GetCPUPC:
		if res, ok := d.checkExact(req.Command, data, 0); !ok {
			return res
		}
		status, pc := d.Handler.GetCPUPC()
		out := make([]byte, 8)
		wire.PutUint64(out, 0, pc)
		return wire.Response{Status: status, Data: out}

	case wire.JumpCPUTo:
		// address(8)
		if res, ok := d.checkExact(req.Command, data, 8); !ok {
			return res
		}
		return wire.Response{Status: d.Handler.JumpCPUTo(wire.Uint64(data, 0))}

	case wire.StoreCPURegisters:
		if res, ok := d.checkExact(req.Command, data, 0); !ok {
			return res
		}
		return wire.Response{Status: d.Handler.StoreCPURegisters()}

	case wire.RestoreCPURegisters:
		if res, ok := d.checkExact(req.Command, data, 0); !ok {
			return res
		}
		return wire.Response{Status: d.Handler.RestoreCPURegisters()}

	default:
		return d.malformed(req.Command, "unrecognized command")
	}
}

// handleDoRun decodes:
//
//	address(8) ‖ width(4) ‖ data_len(4) ‖ start_len(1) ‖ end_len(1) ‖ reg_len(1) ‖
//	start(start_len) ‖ end(end_len) ‖ reg(reg_len) ‖ data(data_len)
func (d *Dispatcher) handleDoRun(cmd wire.Command, data []byte) wire.Response {
	if res, ok := d.checkMin(cmd, data, 20); !ok {
		return res
	}
	address := wire.Uint64(data, 0)
	width := wire.Uint32(data, 8)
	dataLen := int(wire.Uint32(data, 12))
	startLen := int(data[16])
	endLen := int(data[17])
	regLen := int(data[18])

	want := 19 + startLen + endLen + regLen + dataLen
	if res, ok := d.checkExact(cmd, data, want); !ok {
		return res
	}

	pos := 19
	start := string(data[pos : pos+startLen])
	pos += startLen
	end := string(data[pos : pos+endLen])
	pos += endLen
	reg := string(data[pos : pos+regLen])
	pos += regLen
	mmioData := data[pos : pos+dataLen]

	return wire.Response{Status: d.Handler.DoRun(start, end, address, width, mmioData, reg)}
}

// handleDoRunSHM decodes:
//
//	address(8) ‖ width(4) ‖ shm_id(4) ‖ shm_offset(4) ‖ stop_on_nul(1) ‖
//	start_len(1) ‖ end_len(1) ‖ reg_len(1) ‖ start(start_len) ‖ end(end_len) ‖ reg(reg_len)
func (d *Dispatcher) handleDoRunSHM(cmd wire.Command, data []byte) wire.Response {
	if res, ok := d.checkMin(cmd, data, 25); !ok {
		return res
	}
	address := wire.Uint64(data, 0)
	width := wire.Uint32(data, 8)
	shmID := int(wire.Uint32(data, 12))
	offset := int(wire.Uint32(data, 16))
	stopOnNUL := data[20] != 0
	startLen := int(data[21])
	endLen := int(data[22])
	regLen := int(data[23])

	want := 24 + startLen + endLen + regLen
	if res, ok := d.checkExact(cmd, data, want); !ok {
		return res
	}

	pos := 24
	start := string(data[pos : pos+startLen])
	pos += startLen
	end := string(data[pos : pos+endLen])
	pos += endLen
	reg := string(data[pos : pos+regLen])

	seg, err := shm.AttachRO(shmID)
	if err != nil {
		d.logf("do_run_shm: %s", err)
		return wire.Response{Status: wire.StatusError}
	}
	defer seg.Detach()

	readLen := seg.Size() - offset
	if readLen < 0 {
		d.logf("do_run_shm: offset %d exceeds segment size %d", offset, seg.Size())
		return wire.Response{Status: wire.StatusError}
	}
	whole := make([]byte, seg.Size())
	seg.CopyFrom(whole, false)
	buf := whole[offset:]
	if stopOnNUL {
		if i := bytes.IndexByte(buf, 0); i >= 0 {
			buf = buf[:i]
		}
	}

	return wire.Response{Status: d.Handler.DoRun(start, end, address, width, buf, reg)}
}

// handleSetFixedRead decodes count(1) ‖ (address(8) ‖ value(1)) × count.
func (d *Dispatcher) handleSetFixedRead(cmd wire.Command, data []byte) wire.Response {
	if res, ok := d.checkMin(cmd, data, 10); !ok {
		return res
	}
	count := int(data[0])
	want := 1 + count*9
	if res, ok := d.checkExact(cmd, data, want); !ok {
		return res
	}

	entries := make([]interfaces.FixedRead, count)
	for i := 0; i < count; i++ {
		base := 1 + i*9
		entries[i] = interfaces.FixedRead{
			Address: wire.Uint64(data, base),
			Value:   data[base+8],
		}
	}
	return wire.Response{Status: d.Handler.SetFixedRead(entries)}
}

// writeCoverageToSHM fetches the coverage map's bytes from the handler and
// copies them into the shared memory segment identified by shmID at
// offset, mirroring handle_get_code_coverage_shm.
func (d *Dispatcher) writeCoverageToSHM(shmID, offset int) wire.Status {
	_, cov := d.Handler.GetCodeCoverage()
	if cov == nil {
		d.logf("coverage buffer was nil for GET_CODE_COVERAGE_SHM")
		return wire.StatusError
	}
	if len(cov) != coverage.MapSize {
		d.logf("coverage buffer size %d does not match map size %d", len(cov), coverage.MapSize)
		return wire.StatusError
	}

	seg, err := shm.AttachRW(shmID)
	if err != nil {
		d.logf("get_code_coverage_shm: %s", err)
		return wire.StatusError
	}
	defer seg.Detach()

	if err := seg.CopyTo(offset, cov); err != nil {
		d.logf("get_code_coverage_shm: %s", err)
		return wire.StatusError
	}
	return wire.StatusOK
}
