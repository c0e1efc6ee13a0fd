package suggest

import "sync"

// Metrics is a snapshot of the engine's counters.
type Metrics struct {
	RemoteCalls    int64
	RemoteErrors   int64
	CacheHits      int64
	LocalFallbacks int64
	RateLimitHits  int64
	Failures       int64
}

// metricsRecorder tracks engine activity. It is instance state, not a
// package singleton, so tests can run isolated engines.
type metricsRecorder struct {
	metrics Metrics
	mu      sync.Mutex
}

func (m *metricsRecorder) incRemoteCalls()    { m.mu.Lock(); m.metrics.RemoteCalls++; m.mu.Unlock() }
func (m *metricsRecorder) incRemoteErrors()   { m.mu.Lock(); m.metrics.RemoteErrors++; m.mu.Unlock() }
func (m *metricsRecorder) incCacheHits()      { m.mu.Lock(); m.metrics.CacheHits++; m.mu.Unlock() }
func (m *metricsRecorder) incLocalFallbacks() { m.mu.Lock(); m.metrics.LocalFallbacks++; m.mu.Unlock() }
func (m *metricsRecorder) incRateLimitHits()  { m.mu.Lock(); m.metrics.RateLimitHits++; m.mu.Unlock() }
func (m *metricsRecorder) incFailures()       { m.mu.Lock(); m.metrics.Failures++; m.mu.Unlock() }

func (m *metricsRecorder) snapshot() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.metrics
}

func (m *metricsRecorder) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics = Metrics{}
}
