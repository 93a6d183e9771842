package client

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/rwth-ice/vpti/internal/constants"
	"github.com/rwth-ice/vpti/internal/interfaces"
	"github.com/rwth-ice/vpti/internal/wire"
)

// PipeClientOptions configures a PipeClient.
type PipeClientOptions struct {
	// DupToFDs, if non-zero, dup2()s [RequestFD, ResponseFD] onto these two
	// target descriptors before use, so a forked/exec'd VP process inherits
	// well-known FD numbers (mirrors pipe_testing_client's fixed-fd
	// constructor variant). Zero value leaves the descriptors untouched.
	DupToFDs [2]int
	Logger   interfaces.Logger
}

// PipeClient is the driver-side mirror of transport.Pipe: it writes framed
// requests to RequestFD and reads framed responses (and the "ready"
// handshake) off ResponseFD.
type PipeClient struct {
	RequestFD  int
	ResponseFD int
	Options    PipeClientOptions

	mu      sync.Mutex
	started bool
	ready   bool
}

// NewPipeClient returns a PipeClient bound to the given request (write
// side) and response (read side) file descriptors.
func NewPipeClient(requestFD, responseFD int, options PipeClientOptions) *PipeClient {
	return &PipeClient{RequestFD: requestFD, ResponseFD: responseFD, Options: options}
}

// Start optionally dup2()s onto fixed descriptors, then marks the client
// ready to poll/wait for the handshake.
func (p *PipeClient) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return nil
	}

	if p.Options.DupToFDs != [2]int{} {
		if err := unix.Dup2(p.RequestFD, p.Options.DupToFDs[0]); err != nil {
			return fmt.Errorf("pipe client: dup2 request fd: %w", err)
		}
		if err := unix.Dup2(p.ResponseFD, p.Options.DupToFDs[1]); err != nil {
			return fmt.Errorf("pipe client: dup2 response fd: %w", err)
		}
		p.RequestFD, p.ResponseFD = p.Options.DupToFDs[0], p.Options.DupToFDs[1]
	}

	p.started = true
	return nil
}

// CheckForReady makes one attempt to read the "ready\0" handshake. Since a
// pipe read blocks until data or EOF arrives, this is only truly
// non-blocking when combined with a non-blocking ResponseFD; callers that
// want a guaranteed-non-blocking poll should set O_NONBLOCK on ResponseFD
// before calling Start.
func (p *PipeClient) CheckForReady() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.checkForReadyLocked()
}

func (p *PipeClient) checkForReadyLocked() bool {
	if !p.started {
		return false
	}
	want := append([]byte(constants.ReadyMessage), 0)
	buf := make([]byte, len(want))
	n, err := unix.Read(p.ResponseFD, buf)
	if err != nil || n == 0 {
		return false
	}
	if bytes.Equal(buf[:n], want) {
		p.ready = true
		return true
	}
	return false
}

// WaitForReady blocks, polling at constants.ReadyPollInterval, until the
// "ready" handshake is observed.
func (p *PipeClient) WaitForReady() error {
	for {
		if p.CheckForReady() {
			return nil
		}
		time.Sleep(constants.ReadyPollInterval)
	}
}

// ResetReady clears the ready state.
func (p *PipeClient) ResetReady() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ready = false
}

// SendRequest writes a length-prefixed request frame and blocks for the
// matching response frame.
func (p *PipeClient) SendRequest(req wire.Request) (wire.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started || !p.ready {
		return wire.Response{}, ErrNotReady
	}

	header := make([]byte, 5)
	header[0] = byte(req.Command)
	wire.PutUint32(header, 1, uint32(len(req.Data)))

	if err := writeFull(p.RequestFD, header); err != nil {
		return wire.Response{}, fmt.Errorf("pipe client: writing request header: %w", err)
	}
	if len(req.Data) > 0 {
		if err := writeFull(p.RequestFD, req.Data); err != nil {
			return wire.Response{}, fmt.Errorf("pipe client: writing request data: %w", err)
		}
	}

	resHeader := make([]byte, 5)
	if err := readFull(p.ResponseFD, resHeader); err != nil {
		return wire.Response{}, fmt.Errorf("pipe client: reading response header: %w", err)
	}
	status := wire.Status(resHeader[0])
	length := wire.Uint32(resHeader, 1)

	var data []byte
	if length > 0 {
		data = make([]byte, length)
		if err := readFull(p.ResponseFD, data); err != nil {
			return wire.Response{}, fmt.Errorf("pipe client: reading response data: %w", err)
		}
	}
	return wire.Response{Status: status, Data: data}, nil
}

// Close closes both pipe descriptors.
func (p *PipeClient) Close() error {
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
// original pipe_testing_communication::receive_response retry loop.
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

var _ Client = (*PipeClient)(nil)
