package vpti

import (
	"sync/atomic"
	"time"

	"github.com/rwth-ice/vpti/internal/wire"
)

// LatencyBuckets defines the request-latency histogram buckets in
// nanoseconds, covering 1us to 10s with logarithmic spacing.
var LatencyBuckets = []uint64{
	1_000,          // 1us
	10_000,         // 10us
	100_000,        // 100us
	1_000_000,      // 1ms
	10_000_000,     // 10ms
	100_000_000,    // 100ms
	1_000_000_000,  // 1s
	10_000_000_000, // 10s
}

const (
	numLatencyBuckets = 8
	numCommands       = int(wire.NumCommands)
	numEventKinds     = int(wire.NumEventKinds)
)

// Metrics tracks request/event throughput and latency for a receiver.
type Metrics struct {
	// Per-command counters, indexed by wire.Command.
	RequestsByCommand [numCommands]atomic.Uint64
	ErrorsByCommand    [numCommands]atomic.Uint64

	// MalformedRequests counts requests rejected before dispatch even
	// identified a handler method (bad length, unknown command byte).
	MalformedRequests atomic.Uint64

	// EventsByKind counts events posted through the event queue, indexed
	// by wire.EventKind.
	EventsByKind [numEventKinds]atomic.Uint64

	// Performance tracking
	TotalLatencyNs atomic.Uint64
	RequestCount   atomic.Uint64

	// Latency histogram buckets (cumulative counts)
	LatencyBuckets [numLatencyBuckets]atomic.Uint64

	// Receiver lifecycle
	StartTime atomic.Int64 // UnixNano
	StopTime  atomic.Int64 // UnixNano
}

// NewMetrics creates a new metrics instance with StartTime set to now.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordRequest records a dispatched request's command, resulting status,
// and latency. Commands outside the known range are never indexed out of
// bounds: they are not counted per command (and so are absent from the
// snapshot's TotalRequests/TotalErrors), but still count toward
// MalformedRequests when malformed and toward the latency statistics.
func (m *Metrics) RecordRequest(cmd wire.Command, status wire.Status, latencyNs uint64) {
	if int(cmd) < numCommands {
		m.RequestsByCommand[cmd].Add(1)
		if status != wire.StatusOK {
			m.ErrorsByCommand[cmd].Add(1)
		}
	}
	if status == wire.StatusMalformed {
		m.MalformedRequests.Add(1)
	}
	m.recordLatency(latencyNs)
}

// RecordEvent records an event of the given kind posted to the event queue.
func (m *Metrics) RecordEvent(kind wire.EventKind) {
	if int(kind) < numEventKinds {
		m.EventsByKind[kind].Add(1)
	}
}

// recordLatency records request latency and updates the histogram.
func (m *Metrics) recordLatency(latencyNs uint64) {
	m.TotalLatencyNs.Add(latencyNs)
	m.RequestCount.Add(1)

	for i, bucket := range LatencyBuckets {
		if latencyNs <= bucket {
			m.LatencyBuckets[i].Add(1)
		}
	}
}

// Stop marks the receiver as stopped.
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// MetricsSnapshot is a point-in-time, non-atomic copy of Metrics suitable
// for logging or exposing over a status endpoint.
type MetricsSnapshot struct {
	RequestsByCommand [numCommands]uint64
	ErrorsByCommand    [numCommands]uint64
	MalformedRequests  uint64
	EventsByKind       [numEventKinds]uint64

	TotalRequests uint64
	TotalErrors   uint64
	RequestRate   float64 // requests per second
	ErrorRate     float64 // percentage of requests resulting in a non-OK status

	AvgLatencyNs uint64
	UptimeNs     uint64

	LatencyP50Ns  uint64
	LatencyP99Ns  uint64
	LatencyP999Ns uint64

	LatencyHistogram [numLatencyBuckets]uint64
}

// Snapshot creates a point-in-time snapshot of the metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	var snap MetricsSnapshot

	for i := 0; i < numCommands; i++ {
		snap.RequestsByCommand[i] = m.RequestsByCommand[i].Load()
		snap.ErrorsByCommand[i] = m.ErrorsByCommand[i].Load()
		snap.TotalRequests += snap.RequestsByCommand[i]
		snap.TotalErrors += snap.ErrorsByCommand[i]
	}
	snap.MalformedRequests = m.MalformedRequests.Load()
	for i := 0; i < numEventKinds; i++ {
		snap.EventsByKind[i] = m.EventsByKind[i].Load()
	}

	requestCount := m.RequestCount.Load()
	totalLatencyNs := m.TotalLatencyNs.Load()
	if requestCount > 0 {
		snap.AvgLatencyNs = totalLatencyNs / requestCount
	}

	startTime := m.StartTime.Load()
	stopTime := m.StopTime.Load()
	if stopTime > 0 {
		snap.UptimeNs = uint64(stopTime - startTime)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - startTime)
	}

	if snap.UptimeNs > 0 {
		uptimeSeconds := float64(snap.UptimeNs) / 1e9
		snap.RequestRate = float64(snap.TotalRequests) / uptimeSeconds
	}
	if snap.TotalRequests > 0 {
		snap.ErrorRate = float64(snap.TotalErrors) / float64(snap.TotalRequests) * 100.0
	}

	for i := 0; i < numLatencyBuckets; i++ {
		snap.LatencyHistogram[i] = m.LatencyBuckets[i].Load()
	}

	if requestCount > 0 {
		snap.LatencyP50Ns = m.calculatePercentile(0.50)
		snap.LatencyP99Ns = m.calculatePercentile(0.99)
		snap.LatencyP999Ns = m.calculatePercentile(0.999)
	}

	return snap
}

// calculatePercentile estimates the latency at the given percentile (0.0-1.0)
// using linear interpolation between histogram buckets.
func (m *Metrics) calculatePercentile(percentile float64) uint64 {
	totalOps := m.RequestCount.Load()
	if totalOps == 0 {
		return 0
	}

	targetCount := uint64(float64(totalOps) * percentile)

	prevBucket := uint64(0)
	for i, bucket := range LatencyBuckets {
		bucketCount := m.LatencyBuckets[i].Load()
		if bucketCount >= targetCount {
			prevCount := uint64(0)
			if i > 0 {
				prevCount = m.LatencyBuckets[i-1].Load()
			}
			if bucketCount == prevCount {
				return bucket
			}
			fraction := float64(targetCount-prevCount) / float64(bucketCount-prevCount)
			return prevBucket + uint64(fraction*float64(bucket-prevBucket))
		}
		prevBucket = bucket
	}

	return LatencyBuckets[numLatencyBuckets-1]
}

// Reset resets all metrics counters. Useful for tests and for reusing a
// receiver across multiple simulation runs.
func (m *Metrics) Reset() {
	for i := 0; i < numCommands; i++ {
		m.RequestsByCommand[i].Store(0)
		m.ErrorsByCommand[i].Store(0)
	}
	m.MalformedRequests.Store(0)
	for i := 0; i < numEventKinds; i++ {
		m.EventsByKind[i].Store(0)
	}
	m.TotalLatencyNs.Store(0)
	m.RequestCount.Store(0)
	for i := 0; i < numLatencyBuckets; i++ {
		m.LatencyBuckets[i].Store(0)
	}
	m.StartTime.Store(time.Now().UnixNano())
	m.StopTime.Store(0)
}

// MetricsObserver adapts Metrics to interfaces.Observer so a Dispatcher can
// feed it directly.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates an observer that records to the given metrics.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveRequest(cmd wire.Command, status wire.Status, latencyNs uint64) {
	o.metrics.RecordRequest(cmd, status, latencyNs)
}

func (o *MetricsObserver) ObserveEvent(kind wire.EventKind) {
	o.metrics.RecordEvent(kind)
}

// NoOpObserver is a no-op implementation of interfaces.Observer.
type NoOpObserver struct{}

func (NoOpObserver) ObserveRequest(wire.Command, wire.Status, uint64) {}
func (NoOpObserver) ObserveEvent(wire.EventKind)                      {}
