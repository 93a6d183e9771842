package transport

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/rwth-ice/vpti/internal/constants"
	"github.com/rwth-ice/vpti/internal/interfaces"
	"github.com/rwth-ice/vpti/internal/wire"
)

// Pipe is the anonymous pipe transport variant (§4.2). Both directions use
// length-prefixed frames: command/status (1 byte) ‖ data_len (u32 BE) ‖
// data. Reads loop until data_len bytes are received or
// constants.PipeReadErrorMax consecutive errors/EOFs occur.
type Pipe struct {
	RequestFD  int
	ResponseFD int
	Logger     interfaces.Logger

	mu      sync.Mutex
	started bool
}

// NewPipe returns a Pipe transport bound to the given request (read side)
// and response (write side) file descriptors.
func NewPipe(requestFD, responseFD int) *Pipe {
	return &Pipe{RequestFD: requestFD, ResponseFD: responseFD}
}

// DupToFixedFDs dup2()s the request/response descriptors onto fixed target
// descriptors, used so a forked/exec'd VP process inherits well-known FD
// numbers instead of ones chosen by the OS (§4.8).
func (p *Pipe) DupToFixedFDs(requestTarget, responseTarget int) error {
	if err := unix.Dup2(p.RequestFD, requestTarget); err != nil {
		return fmt.Errorf("pipe: dup2 request fd: %w", err)
	}
	if err := unix.Dup2(p.ResponseFD, responseTarget); err != nil {
		return fmt.Errorf("pipe: dup2 response fd: %w", err)
	}
	p.RequestFD, p.ResponseFD = requestTarget, responseTarget
	return nil
}

// Start writes the "ready\0" handshake to the response descriptor.
func (p *Pipe) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	ready := append([]byte(constants.ReadyMessage), 0)
	if err := writeFull(p.ResponseFD, ready); err != nil {
		return fmt.Errorf("pipe: sending ready handshake: %w", err)
	}

	p.started = true
	if p.Logger != nil {
		p.Logger.Infof("pipe transport ready")
	}
	return nil
}

// IsStarted reports whether Start completed successfully.
func (p *Pipe) IsStarted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started
}

// SendResponse writes status ‖ data_len(u32 BE) ‖ data as one frame.
func (p *Pipe) SendResponse(res wire.Response) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return fmt.Errorf("pipe: transport not started")
	}

	header := make([]byte, 5)
	header[0] = byte(res.Status)
	wire.PutUint32(header, 1, uint32(len(res.Data)))

	if err := writeFull(p.ResponseFD, header); err != nil {
		return fmt.Errorf("pipe: writing response header: %w", err)
	}
	if len(res.Data) > 0 {
		if err := writeFull(p.ResponseFD, res.Data); err != nil {
			return fmt.Errorf("pipe: writing response data: %w", err)
		}
	}
	return nil
}

// ReceiveRequest blocks for exactly one framed request. The lock is not held
// across the blocking reads, so Close can proceed while a receive is pending.
func (p *Pipe) ReceiveRequest() (wire.Request, error) {
	p.mu.Lock()
	started := p.started
	p.mu.Unlock()
	if !started {
		return wire.Request{}, fmt.Errorf("pipe: transport not started")
	}

	header := make([]byte, 5)
	if err := readFull(p.RequestFD, header); err != nil {
		return wire.Request{}, fmt.Errorf("pipe: reading request header: %w", err)
	}

	cmd := wire.Command(header[0])
	length := wire.Uint32(header, 1)

	var data []byte
	if length > 0 {
		data = make([]byte, length)
		if err := readFull(p.RequestFD, data); err != nil {
			return wire.Request{}, fmt.Errorf("pipe: reading request data: %w", err)
		}
	}
	return wire.Request{Command: cmd, Data: data}, nil
}

// Close closes both pipe descriptors.
func (p *Pipe) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	err1 := unix.Close(p.RequestFD)
	err2 := unix.Close(p.ResponseFD)
	p.started = false
	if err1 != nil {
		return err1
	}
	return err2
}

// writeFull writes all of buf, looping over short writes.
func writeFull(fd int, buf []byte) error {
	for len(buf) > 0 {
		n, err := unix.Write(fd, buf)
		if err != nil {
			return err
		}
		buf = buf[n:]
	}
	return nil
}

// readFull reads exactly len(buf) bytes, looping over short reads and giving
// up after constants.PipeReadErrorMax consecutive errors or EOFs, per the
// original pipe_testing_communication::receive_request retry loop.
func readFull(fd int, buf []byte) error {
	received := 0
	errorCount := 0
	for received < len(buf) {
		n, err := unix.Read(fd, buf[received:])
		switch {
		case err != nil:
			errorCount++
		case n == 0:
			errorCount++
		default:
			received += n
			errorCount = 0
			continue
		}
		if errorCount >= constants.PipeReadErrorMax {
			return fmt.Errorf("maximum of %d read errors reached after %d/%d bytes", constants.PipeReadErrorMax, received, len(buf))
		}
	}
	return nil
}

var _ Transport = (*Pipe)(nil)
