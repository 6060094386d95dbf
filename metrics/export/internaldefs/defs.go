package internaldefs

import (
	goReset "github.com/MrEthical07/goReset"
)

// CounterDef maps an engine counter to its exported name.
type CounterDef struct {
	ID   goReset.MetricID
	Name string
	Help string
}

// HistogramDef maps an engine histogram to its exported base name.
type HistogramDef struct {
	ID   goReset.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: goReset.MetricCodeRequested, Name: "goreset_code_requested_total", Help: "Verification codes issued and handed to the notifier."},
	{ID: goReset.MetricCodeRateLimited, Name: "goreset_code_rate_limited_total", Help: "Code requests rejected by the rate limiter."},
	{ID: goReset.MetricCodeUnknownIdentity, Name: "goreset_code_unknown_identity_total", Help: "Code requests for unknown emails."},
	{ID: goReset.MetricCodeDeliveryFailed, Name: "goreset_code_delivery_failed_total", Help: "Code deliveries that failed and were rolled back."},
	{ID: goReset.MetricCodeVerifySuccess, Name: "goreset_code_verify_success_total", Help: "Codes consumed by a successful verification."},
	{ID: goReset.MetricCodeVerifyMismatch, Name: "goreset_code_verify_mismatch_total", Help: "Verifications with a wrong code."},
	{ID: goReset.MetricCodeVerifyExpired, Name: "goreset_code_verify_expired_total", Help: "Verifications that found an expired code."},
	{ID: goReset.MetricCodeVerifyNoPending, Name: "goreset_code_verify_no_pending_total", Help: "Verifications with no pending code."},
	{ID: goReset.MetricTokenMinted, Name: "goreset_token_minted_total", Help: "Reset tokens minted and registered."},
	{ID: goReset.MetricTokenSinkFailed, Name: "goreset_token_sink_failed_total", Help: "Token sink persistence failures."},
	{ID: goReset.MetricTokenMarkedUsed, Name: "goreset_token_marked_used_total", Help: "Successful mark-used calls."},
	{ID: goReset.MetricTokenLive, Name: "goreset_token_live_total", Help: "Liveness checks that found a live token."},
	{ID: goReset.MetricTokenNotLive, Name: "goreset_token_not_live_total", Help: "Liveness checks that found a used, expired or unknown token."},
	{ID: goReset.MetricSweepRun, Name: "goreset_sweep_run_total", Help: "Completed sweeps of the ephemeral store."},
	{ID: goReset.MetricSweepFailure, Name: "goreset_sweep_failure_total", Help: "Failed sweeps of the ephemeral store."},
	{ID: goReset.MetricSweepPurged, Name: "goreset_sweep_purged_total", Help: "Entries purged by sweeps."},
}

// CodeVerifyName is the single verify counter used by exporters that
// support attributes. Each outcome is one series.
const CodeVerifyName = "goreset_code_verify_total"

// VerifyOutcomeDef names the outcome attribute value for a verify counter.
type VerifyOutcomeDef struct {
	ID      goReset.MetricID
	Outcome string
}

// VerifyOutcomeDefs folds the per-outcome verify counters into CodeVerifyName.
var VerifyOutcomeDefs = []VerifyOutcomeDef{
	{ID: goReset.MetricCodeVerifySuccess, Outcome: "valid"},
	{ID: goReset.MetricCodeVerifyMismatch, Outcome: "mismatch"},
	{ID: goReset.MetricCodeVerifyExpired, Outcome: "expired"},
	{ID: goReset.MetricCodeVerifyNoPending, Outcome: "no_pending"},
}

// IsVerifyOutcome reports whether id is folded into CodeVerifyName.
func IsVerifyOutcome(id goReset.MetricID) bool {
	for _, def := range VerifyOutcomeDefs {
		if def.ID == id {
			return true
		}
	}
	return false
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goReset.MetricVerifyLatency, Name: "goreset_verify_latency_seconds", Help: "Code verification latency."},
}

// AuditDroppedName is the counter for audit events dropped under backpressure.
const AuditDroppedName = "goreset_audit_dropped_total"

// HistogramBounds are the upper bounds of the eight engine buckets, in seconds.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is HistogramBounds spelled for instrument names.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed eight-bucket array, zero-filling
// or truncating as needed.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
