package goSession

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one session counter.
type MetricID uint16

const (
	// MetricRestore counts Restore calls.
	MetricRestore MetricID = iota
	// MetricBackgroundCheck counts periodic expiration checks.
	MetricBackgroundCheck
	// MetricSessionRestored counts checks that found a valid persisted session.
	MetricSessionRestored
	// MetricSessionExpired counts checks that found an expired token.
	MetricSessionExpired
	// MetricLoginSuccess counts successful Login calls.
	MetricLoginSuccess
	// MetricLoginRejected counts Login calls refused for invalid input.
	MetricLoginRejected
	// MetricAuthRequestFailure counts SignIn/SignUp calls the backend rejected.
	MetricAuthRequestFailure
	// MetricLogoutExplicit counts Logout calls.
	MetricLogoutExplicit
	// MetricLogoutSilent counts SilentLogout calls, including signal- and expiry-driven ones.
	MetricLogoutSilent
	// MetricUnauthorizedSignal counts unauthorized signals received from the bus.
	MetricUnauthorizedSignal
	// MetricBackendLogoutFailure counts best-effort backend logouts that failed.
	MetricBackendLogoutFailure
	// MetricDeleteAccountSuccess counts successful account deletions.
	MetricDeleteAccountSuccess
	// MetricDeleteAccountFailure counts failed account deletions.
	MetricDeleteAccountFailure
	// MetricStorageError counts persisted-store read and write failures.
	MetricStorageError
	// MetricBackendLatency is the latency histogram of backend calls made by the Manager.
	MetricBackendLatency
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

// Metrics holds lock-free counters. A nil or disabled Metrics ignores
// every update.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of every counter.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in the histogram for id. Only MetricBackendLatency
// carries a histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enableLatency || id != MetricBackendLatency {
		return
	}
	atomic.AddUint64(&m.histograms[id].buckets[bucketIndex(d)], 1)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

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
		if id == MetricBackendLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := range buckets {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricBackendLatency].buckets[i])
		}
		s.Histograms[MetricBackendLatency] = buckets
	}

	return s
}

// Buckets are upper bounds in milliseconds: 25, 50, 100, 250, 500, 1000,
// 2500, +Inf.
func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 25:
		return 0
	case ms <= 50:
		return 1
	case ms <= 100:
		return 2
	case ms <= 250:
		return 3
	case ms <= 500:
		return 4
	case ms <= 1000:
		return 5
	case ms <= 2500:
		return 6
	default:
		return 7
	}
}
