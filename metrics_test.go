package goReset

import (
	"sync"
	"testing"
	"time"
)

func TestMetricsDisabledNoIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	m.Inc(MetricCodeRequested)

	if got := m.Value(MetricCodeRequested); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestMetricsEnabledIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Inc(MetricCodeRequested)
	m.Inc(MetricCodeRequested)
	m.Add(MetricSweepPurged, 40)

	if got := m.Value(MetricCodeRequested); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
	if got := m.Value(MetricSweepPurged); got != 40 {
		t.Fatalf("expected 40, got %d", got)
	}
}

func TestMetricsConcurrentIncrementSafe(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const goroutines = 32
	const perG = 4000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perG; j++ {
				m.Inc(MetricTokenMarkedUsed)
			}
		}()
	}
	wg.Wait()

	want := uint64(goroutines * perG)
	if got := m.Value(MetricTokenMarkedUsed); got != want {
		t.Fatalf("expected %d, got %d", want, got)
	}
}

func TestMetricsHistogramBucketCorrectness(t *testing.T) {
	m := NewMetrics(MetricsConfig{
		Enabled:                 true,
		EnableLatencyHistograms: true,
	})

	observations := []time.Duration{
		5 * time.Millisecond,
		10 * time.Millisecond,
		25 * time.Millisecond,
		50 * time.Millisecond,
		100 * time.Millisecond,
		250 * time.Millisecond,
		500 * time.Millisecond,
		700 * time.Millisecond,
	}

	for _, d := range observations {
		m.Observe(MetricVerifyLatency, d)
	}

	snap := m.Snapshot()
	buckets := snap.Histograms[MetricVerifyLatency]
	if len(buckets) != 8 {
		t.Fatalf("expected 8 buckets, got %d", len(buckets))
	}

	for i, v := range buckets {
		if v != 1 {
			t.Fatalf("bucket %d expected 1, got %d", i, v)
		}
	}
}

func TestMetricsObserveIgnoresCounters(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	m.Observe(MetricCodeRequested, time.Millisecond)

	snap := m.Snapshot()
	if _, ok := snap.Histograms[MetricCodeRequested]; ok {
		t.Fatal("only the verify latency has a histogram")
	}
	if _, ok := snap.Counters[MetricVerifyLatency]; ok {
		t.Fatal("latency must not appear as a counter")
	}
}

func TestMetricsSnapshotConsistency(t *testing.T) {
	m := NewMetrics(MetricsConfig{
		Enabled:                 true,
		EnableLatencyHistograms: true,
	})
	m.Inc(MetricCodeVerifySuccess)
	m.Inc(MetricCodeVerifyMismatch)
	m.Inc(MetricCodeVerifyMismatch)
	m.Observe(MetricVerifyLatency, 2*time.Millisecond)

	snap := m.Snapshot()

	if snap.Counters[MetricCodeVerifySuccess] != 1 {
		t.Fatalf("expected MetricCodeVerifySuccess=1 got %d", snap.Counters[MetricCodeVerifySuccess])
	}
	if snap.Counters[MetricCodeVerifyMismatch] != 2 {
		t.Fatalf("expected MetricCodeVerifyMismatch=2 got %d", snap.Counters[MetricCodeVerifyMismatch])
	}
	if snap.Histograms[MetricVerifyLatency][0] != 1 {
		t.Fatalf("expected first histogram bucket=1 got %d", snap.Histograms[MetricVerifyLatency][0])
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.Inc(MetricTokenMinted)
	m.Observe(MetricVerifyLatency, time.Second)
	if m.Value(MetricTokenMinted) != 0 || m.Enabled() {
		t.Fatal("nil metrics must read as zero and disabled")
	}
}
