package otel

import (
	"context"
	"sync"
	"testing"

	goReset "github.com/MrEthical07/goReset"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot goReset.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() goReset.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := goReset.MetricsSnapshot{
		Counters:   make(map[goReset.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[goReset.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		next := make([]uint64, len(buckets))
		copy(next, buckets)
		out.Histograms[k] = next
	}
	return out
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func TestExporterRegistersAndCollects(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("goreset-test")

	src := &fakeSource{
		snapshot: goReset.MetricsSnapshot{
			Counters: map[goReset.MetricID]uint64{
				goReset.MetricCodeRequested: 3,
			},
			Histograms: map[goReset.MetricID][]uint64{
				goReset.MetricVerifyLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
		dropped: 1,
	}

	exp, err := NewOTelExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(rm.ScopeMetrics) == 0 {
		t.Fatal("expected collected metrics, got none")
	}
}

func TestExporterRejectsNilSource(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("goreset-test")

	if _, err := NewOTelExporterFromSource(meter, nil); err == nil {
		t.Fatal("expected error for nil source")
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("goreset-test")

	src := &fakeSource{
		snapshot: goReset.MetricsSnapshot{
			Counters: map[goReset.MetricID]uint64{
				goReset.MetricCodeRequested: 1,
			},
			Histograms: map[goReset.MetricID][]uint64{
				goReset.MetricVerifyLatency: {1, 0, 0, 0, 0, 0, 0, 0},
			},
		},
	}

	exp, err := NewOTelExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[goReset.MetricCodeRequested] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}

func TestExporterReportsCounterValue(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("goreset-test")

	src := &fakeSource{
		snapshot: goReset.MetricsSnapshot{
			Counters: map[goReset.MetricID]uint64{
				goReset.MetricTokenMinted: 5,
			},
			Histograms: map[goReset.MetricID][]uint64{},
		},
		dropped: 4,
	}

	exp, err := NewOTelExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer func() { _ = exp.Close() }()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	values := map[string]int64{}
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok && len(sum.DataPoints) > 0 {
				values[m.Name] = sum.DataPoints[0].Value
			}
		}
	}
	if values["goreset_token_minted_total"] != 5 {
		t.Fatalf("expected token minted 5, got %v", values)
	}
	if values["goreset_audit_dropped_total"] != 4 {
		t.Fatalf("expected audit dropped 4, got %v", values)
	}
}

func TestExporterLabelsVerifyOutcomes(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("goreset-test")

	src := &fakeSource{
		snapshot: goReset.MetricsSnapshot{
			Counters: map[goReset.MetricID]uint64{
				goReset.MetricCodeVerifySuccess:   7,
				goReset.MetricCodeVerifyMismatch:  3,
				goReset.MetricCodeVerifyExpired:   2,
				goReset.MetricCodeVerifyNoPending: 1,
			},
			Histograms: map[goReset.MetricID][]uint64{},
		},
	}

	exp, err := NewOTelExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer func() { _ = exp.Close() }()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	byOutcome := map[string]int64{}
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			switch m.Name {
			case "goreset_code_verify_success_total", "goreset_code_verify_mismatch_total",
				"goreset_code_verify_expired_total", "goreset_code_verify_no_pending_total":
				t.Fatalf("per-outcome instrument %s must not be registered", m.Name)
			case "goreset_code_verify_total":
				sum, ok := m.Data.(metricdata.Sum[int64])
				if !ok {
					t.Fatalf("unexpected data type %T", m.Data)
				}
				for _, dp := range sum.DataPoints {
					outcome, ok := dp.Attributes.Value("outcome")
					if !ok {
						t.Fatalf("data point without outcome attribute: %v", dp.Attributes)
					}
					byOutcome[outcome.AsString()] = dp.Value
				}
			}
		}
	}

	want := map[string]int64{"valid": 7, "mismatch": 3, "expired": 2, "no_pending": 1}
	if len(byOutcome) != len(want) {
		t.Fatalf("expected outcomes %v, got %v", want, byOutcome)
	}
	for outcome, v := range want {
		if byOutcome[outcome] != v {
			t.Fatalf("outcome %s = %d, want %d (all %v)", outcome, byOutcome[outcome], v, byOutcome)
		}
	}
}
