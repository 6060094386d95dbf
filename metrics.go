package goReset

import (
	"sync/atomic"
	"time"
)

// MetricID names one engine counter.
type MetricID uint16

const (
	// MetricCodeRequested counts codes issued and handed to the notifier.
	MetricCodeRequested MetricID = iota
	// MetricCodeRateLimited counts code requests rejected by the limiter.
	MetricCodeRateLimited
	// MetricCodeUnknownIdentity counts code requests for emails the resolver does not know.
	MetricCodeUnknownIdentity
	// MetricCodeDeliveryFailed counts notifier failures that triggered a rollback.
	MetricCodeDeliveryFailed
	// MetricCodeVerifySuccess counts codes consumed by a valid verify.
	MetricCodeVerifySuccess
	// MetricCodeVerifyMismatch counts verifies with a wrong code.
	MetricCodeVerifyMismatch
	// MetricCodeVerifyExpired counts verifies that found an expired code.
	MetricCodeVerifyExpired
	// MetricCodeVerifyNoPending counts verifies with no pending code.
	MetricCodeVerifyNoPending
	// MetricTokenMinted counts reset tokens minted and registered.
	MetricTokenMinted
	// MetricTokenSinkFailed counts token sink persistence failures.
	MetricTokenSinkFailed
	// MetricTokenMarkedUsed counts successful mark-used calls, repeats included.
	MetricTokenMarkedUsed
	// MetricTokenLive counts liveness checks that found a live token.
	MetricTokenLive
	// MetricTokenNotLive counts liveness checks that found a used, expired or unknown token.
	MetricTokenNotLive
	// MetricSweepRun counts completed sweeps of the ephemeral store.
	MetricSweepRun
	// MetricSweepFailure counts failed sweeps.
	MetricSweepFailure
	// MetricSweepPurged counts entries removed by sweeps.
	MetricSweepPurged
	// MetricVerifyLatency is the code verification latency histogram.
	MetricVerifyLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds lock-free engine counters and the verify latency histogram.
// A nil or disabled Metrics ignores every update.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of all counters. Histogram buckets
// are non-cumulative.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics returns a Metrics configured by cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether the latency histogram is recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to id.
func (m *Metrics) Inc(id MetricID) {
	m.Add(id, 1)
}

// Add adds n to id.
func (m *Metrics) Add(id MetricID, n uint64) {
	if m == nil || !m.enabled || id >= metricIDCount || n == 0 {
		return
	}
	atomic.AddUint64(&m.counters[id].value, n)
}

// Observe records d in the histogram for id. Only MetricVerifyLatency has a
// histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricVerifyLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current value of id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies all counters. It returns empty maps when disabled.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if id == MetricVerifyLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricVerifyLatency].buckets[i])
		}
		s.Histograms[MetricVerifyLatency] = buckets
	}

	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
