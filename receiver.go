// Package vpti provides a Go control-plane library for the virtual
// platform testing interface: a receiver embedded in a VP simulation
// answers driver commands over a POSIX message queue or anonymous pipe,
// tracks code coverage, and reports asynchronous VP events.
package vpti

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rwth-ice/vpti/internal/coverage"
	"github.com/rwth-ice/vpti/internal/dispatch"
	"github.com/rwth-ice/vpti/internal/interfaces"
	"github.com/rwth-ice/vpti/internal/logging"
	"github.com/rwth-ice/vpti/internal/transport"
	"github.com/rwth-ice/vpti/internal/wire"
)

// Handler is the VP-facing contract a Receiver dispatches requests to.
// See internal/interfaces.Handler for the full method documentation.
type Handler = interfaces.Handler

// Logger is the logging contract accepted by Options.
type Logger = interfaces.Logger

// Observer receives per-request and per-event counters as they cross the
// receiver's dispatcher.
type Observer = interfaces.Observer

// FixedRead is one (address, byte) pair of a SET_FIXED_READ payload.
type FixedRead = interfaces.FixedRead

// Transport is the wire-level request/response carrier a Receiver runs
// its loop over. NewMQReceiver and NewPipeReceiver construct the two
// built-in implementations; NewReceiver accepts any Transport, including
// one supplied by a caller for tests.
type Transport = transport.Transport

// Options contains additional options for receiver creation.
type Options struct {
	// Context for cancellation (if nil, uses context.Background()).
	Context context.Context

	// Logger for debug/info messages (if nil, uses logging.Default(), which
	// writes to stderr at info level).
	Logger Logger

	// Observer for metrics collection (if nil, uses a MetricsObserver
	// wrapping a freshly created Metrics instance).
	Observer Observer

	// Coverage is the coverage map returned by Receiver.Coverage.
	// GET_CODE_COVERAGE/GET_CODE_COVERAGE_SHM take their bytes from
	// Handler.GetCodeCoverage, not from this map; pass the same
	// *coverage.Map instance the Handler's simulation hook writes to via
	// SetBlock so both refer to one state. If nil, a fresh, disabled map is
	// created (unreachable by the Handler).
	Coverage *coverage.Map
}

// ReceiverState represents the current state of a Receiver.
type ReceiverState string

const (
	ReceiverStateCreated ReceiverState = "created"
	ReceiverStateRunning ReceiverState = "running"
	ReceiverStateStopped ReceiverState = "stopped"
)

// Receiver runs the C7 receiver loop: it reads requests off a Transport,
// dispatches them to a Handler, and writes back responses, until Stop is
// called or the loop's Transport reports a fatal error.
type Receiver struct {
	transport  Transport
	dispatcher *dispatch.Dispatcher
	coverage   *coverage.Map
	logger     Logger
	metrics    *Metrics

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	started bool
	stopped bool
	loopErr error
	done    chan struct{}
}

// NewReceiver constructs a Receiver over an already-configured Transport.
// Most callers want NewMQReceiver or NewPipeReceiver instead; NewReceiver
// is for custom or in-process transports (e.g. in tests).
func NewReceiver(t Transport, handler Handler, options *Options) (*Receiver, error) {
	if t == nil {
		return nil, NewError("NewReceiver", CodeResource, "transport must not be nil")
	}
	if handler == nil {
		return nil, NewError("NewReceiver", CodeResource, "handler must not be nil")
	}
	if options == nil {
		options = &Options{}
	}

	ctx := options.Context
	if ctx == nil {
		ctx = context.Background()
	}

	metrics := NewMetrics()
	var observer Observer = options.Observer
	if observer == nil {
		observer = NewMetricsObserver(metrics)
	}

	logger := options.Logger
	if logger == nil {
		logger = logging.Default()
	}

	cov := options.Coverage
	if cov == nil {
		cov = coverage.NewMap()
	}

	r := &Receiver{
		transport: t,
		dispatcher: &dispatch.Dispatcher{
			Handler:  handler,
			Logger:   logger,
			Observer: observer,
		},
		coverage: cov,
		logger:   logger,
		metrics:  metrics,
		done:     make(chan struct{}),
	}
	r.ctx, r.cancel = context.WithCancel(ctx)
	return r, nil
}

// NewMQReceiver constructs a Receiver over a POSIX message queue pair
// identified by requestName/responseName, filtering (and tagging replies
// with) receiverID in the multi-receiver MQ dialect.
func NewMQReceiver(requestName, responseName string, receiverID uint32, handler Handler, options *Options) (*Receiver, error) {
	mq := &transport.MQ{
		RequestName:  requestName,
		ResponseName: responseName,
		ReceiverID:   receiverID,
	}
	if options != nil && options.Logger != nil {
		mq.Logger = options.Logger
	}
	return NewReceiver(mq, handler, options)
}

// NewPipeReceiver constructs a Receiver over an anonymous pipe pair
// identified by the given request/response file descriptors.
func NewPipeReceiver(requestFD, responseFD int, handler Handler, options *Options) (*Receiver, error) {
	p := transport.NewPipe(requestFD, responseFD)
	if options != nil && options.Logger != nil {
		p.Logger = options.Logger
	}
	return NewReceiver(p, handler, options)
}

// Start opens the transport (emitting its "ready" handshake) and launches
// the receiver loop in a new goroutine. Start returns once the handshake
// has been sent; it does not wait for the loop to exit.
func (r *Receiver) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return NewError("Receiver.Start", CodeResource, "already started")
	}
	if err := r.transport.Start(); err != nil {
		return NewResourceError("Receiver.Start", err)
	}
	r.started = true
	go r.loop()
	return nil
}

// loop is the C7 receiver loop: read a request, dispatch it, write the
// response, repeat until the context is cancelled or the transport fails.
func (r *Receiver) loop() {
	defer close(r.done)
	for {
		select {
		case <-r.ctx.Done():
			return
		default:
		}

		req, err := r.transport.ReceiveRequest()
		if err != nil {
			if r.ctx.Err() != nil {
				return
			}
			if errors.Is(err, transport.ErrMalformedFrame) {
				r.logger.Errorf("receiver loop: dropping malformed request: %v", err)
				r.metrics.MalformedRequests.Add(1)
				continue
			}
			r.logger.Errorf("receiver loop: read request: %v", err)
			r.mu.Lock()
			r.loopErr = NewTransportError("Receiver.loop", err)
			r.mu.Unlock()
			return
		}

		res := r.dispatcher.Handle(req)

		if err := r.transport.SendResponse(res); err != nil {
			if errors.Is(err, transport.ErrResponseTooLarge) {
				r.logger.Errorf("receiver loop: response for %s too large, reporting error status: %v", req.Command, err)
				if fallbackErr := r.transport.SendResponse(wire.Response{Status: wire.StatusError}); fallbackErr != nil {
					r.logger.Errorf("receiver loop: send fallback error response for %s: %v", req.Command, fallbackErr)
					r.mu.Lock()
					r.loopErr = NewTransportError("Receiver.loop", fallbackErr)
					r.mu.Unlock()
					return
				}
				continue
			}
			r.logger.Errorf("receiver loop: send response for %s: %v", req.Command, err)
			r.mu.Lock()
			r.loopErr = NewTransportError("Receiver.loop", err)
			r.mu.Unlock()
			return
		}
	}
}

// Stop cancels the receiver loop and closes its transport. It blocks
// until the loop goroutine has exited or timeout elapses.
func (r *Receiver) Stop(timeout time.Duration) error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil
	}
	r.stopped = true
	r.mu.Unlock()

	r.cancel()
	r.metrics.Stop()

	select {
	case <-r.done:
	case <-time.After(timeout):
	}

	if err := r.transport.Close(); err != nil {
		return NewTransportError("Receiver.Stop", err)
	}
	return nil
}

// State reports the receiver's current lifecycle state.
func (r *Receiver) State() ReceiverState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started {
		return ReceiverStateCreated
	}
	select {
	case <-r.done:
		return ReceiverStateStopped
	default:
		return ReceiverStateRunning
	}
}

// Err returns the error that caused the receiver loop to exit, if any.
func (r *Receiver) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loopErr
}

// Coverage returns the receiver's coverage map (Options.Coverage, or the
// fresh map created in its place). It reflects what GET_CODE_COVERAGE and
// GET_CODE_COVERAGE_SHM report only when it is the map the Handler's
// GetCodeCoverage reads.
func (r *Receiver) Coverage() *coverage.Map {
	return r.coverage
}

// Metrics returns the receiver's metrics instance.
func (r *Receiver) Metrics() *Metrics {
	return r.metrics
}

// MetricsSnapshot returns a point-in-time snapshot of receiver metrics.
func (r *Receiver) MetricsSnapshot() MetricsSnapshot {
	return r.metrics.Snapshot()
}

// PostEvent is a convenience for Handler implementations that want a
// ready-made description of an event's wire encoding without depending on
// internal/wire directly (e.g. when building BREAKPOINT_HIT payloads).
func PostEvent(kind wire.EventKind, payload []byte) wire.Event {
	return wire.Event{Kind: kind, Payload: payload}
}
