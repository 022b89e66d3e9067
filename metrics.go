package goShield

import (
	"sync/atomic"
	"time"
)

// MetricID indexes one counter in the lock-free metric set.
type MetricID uint16

const (
	// MetricRequestAdmitted counts requests that passed the full pipeline.
	MetricRequestAdmitted MetricID = iota
	// MetricRequestRejected counts authentication rejections.
	MetricRequestRejected
	// MetricRequestRateLimited counts admission rejections.
	MetricRequestRateLimited
	// MetricRequestExcluded counts passthroughs on excluded paths.
	MetricRequestExcluded
	// MetricTokenIssued counts issued access and refresh tokens.
	MetricTokenIssued
	// MetricTokenVerified counts successful token verifications.
	MetricTokenVerified
	// MetricTokenRejected counts failed token verifications.
	MetricTokenRejected
	// MetricTokenRefreshed counts successful refresh rotations.
	MetricTokenRefreshed
	// MetricTokenRevoked counts explicit token revocations.
	MetricTokenRevoked
	// MetricAPIKeyCreated counts created API keys.
	MetricAPIKeyCreated
	// MetricAPIKeyRevoked counts revoked API keys.
	MetricAPIKeyRevoked
	// MetricAPIKeyRejected counts failed API key validations.
	MetricAPIKeyRejected
	// MetricPermissionDenied counts authorization (403-class) rejections.
	MetricPermissionDenied
	// MetricAuthorizeLatency is the Authorize latency histogram.
	MetricAuthorizeLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

// paddedCounter occupies a full cache line so hot counters on different
// cores never false-share.
type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is the lock-free counter set. A disabled Metrics is a no-op with
// near-zero cost on the request path.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of every counter and histogram.
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

// Inc adds one to the counter. Safe from any goroutine.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records an Authorize latency sample.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enableLatency || id != MetricAuthorizeLatency {
		return
	}
	atomic.AddUint64(&m.histograms[id].buckets[bucketIndex(d)], 1)
}

// Value reads one counter.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies all counters without taking any lock.
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
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricAuthorizeLatency].buckets[i])
		}
		s.Histograms[MetricAuthorizeLatency] = buckets
	}

	return s
}

func bucketIndex(d time.Duration) int {
	us := d.Microseconds()

	switch {
	case us <= 50:
		return 0
	case us <= 100:
		return 1
	case us <= 250:
		return 2
	case us <= 500:
		return 3
	case us <= 1000:
		return 4
	case us <= 2500:
		return 5
	case us <= 5000:
		return 6
	default:
		return 7
	}
}
