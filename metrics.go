package authcore

import (
	"sync/atomic"
	"time"
)

// MetricID identifies a specific counter or histogram in the in-process
// metrics system.
type MetricID uint16

const (
	// MetricOTPGenerateSuccess counts successful passcode requests.
	MetricOTPGenerateSuccess MetricID = iota
	// MetricOTPGenerateFailure counts failed passcode requests.
	MetricOTPGenerateFailure
	// MetricOTPValidateSuccess counts completed OTP login sequences.
	MetricOTPValidateSuccess
	// MetricOTPValidateFailure counts OTP login sequences that failed at any step.
	MetricOTPValidateFailure
	// MetricNoGroups counts validations rejected for an empty group list.
	MetricNoGroups
	// MetricLoginSuccess counts successful legacy password logins.
	MetricLoginSuccess
	// MetricLoginFailure counts failed legacy password logins.
	MetricLoginFailure
	// MetricSignupSuccess counts successful registrations.
	MetricSignupSuccess
	// MetricSignupFailure counts failed registrations.
	MetricSignupFailure
	// MetricSignout counts signout operations.
	MetricSignout
	// MetricSessionRestored counts sessions restored at startup.
	MetricSessionRestored
	// MetricIntegrityWipe counts credential wipes after failed validation.
	MetricIntegrityWipe
	// MetricGlobalLogout counts forced resets from the gateway's logout signal.
	MetricGlobalLogout
	// MetricProfileUpdated counts partial profile merges.
	MetricProfileUpdated
	// MetricPollStarted counts connection attempts that entered polling.
	MetricPollStarted
	// MetricPollSuccess counts attempts that observed a completed authorization.
	MetricPollSuccess
	// MetricPollError counts attempts terminated by a status query failure.
	MetricPollError
	// MetricPollTimeout counts attempts terminated by the countdown.
	MetricPollTimeout
	// MetricPollCancelled counts attempts abandoned before a terminal state.
	MetricPollCancelled
	// MetricRedirectSuccess counts completed redirect exchanges.
	MetricRedirectSuccess
	// MetricRedirectFailure counts redirect resolutions that failed.
	MetricRedirectFailure
	// MetricRedirectReplay counts resolutions served from the one-shot cache.
	MetricRedirectReplay
	// MetricValidateOTPLatency is the latency histogram for the full OTP
	// validation sequence.
	MetricValidateOTPLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

// paddedCounter keeps each counter on its own cache line so concurrent
// increments do not false-share.
type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds atomic counters and an optional latency histogram.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time deep copy of all metrics.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics creates a [Metrics] instance configured by the given
// [MetricsConfig]. When Enabled is false, all operations are no-ops.
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

// Inc increments a counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records a latency sample. Only MetricValidateOTPLatency carries a
// histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricValidateOTPLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value reads a single counter.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies all counters and histogram buckets.
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
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricValidateOTPLatency].buckets[i])
		}
		s.Histograms[MetricValidateOTPLatency] = buckets
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
