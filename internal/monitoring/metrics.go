package monitoring

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics holds application metrics
type Metrics struct {
	RequestCount        int64
	ErrorCount          int64
	CacheHits           int64
	CacheMisses         int64
	AverageResponseTime int64 // in nanoseconds
	StartTime           time.Time

	// Scoring pipeline counters
	AssessmentCount       int64
	FallbackPredictions   int64
	DegradedExplanations  int64
	InsufficientDataCount int64
	RetrainCount          int64
	GamificationActions   int64

	// Enhanced metrics for percentiles and histograms
	ResponseTimes      []time.Duration
	ResponseTimesMutex sync.RWMutex

	// Status code tracking
	RequestCountByStatus map[int]int64
	StatusMutex          sync.RWMutex

	// Rate limit metrics
	RateLimitIPBlocks       int64
	RateLimitRedisErrors    int64
	RateLimitFallbackCount  int64
	RateLimitEndpointBlocks map[string]int64
	RateLimitMutex          sync.RWMutex
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		StartTime:               time.Now(),
		ResponseTimes:           make([]time.Duration, 0, 1000),
		RequestCountByStatus:    make(map[int]int64),
		RateLimitEndpointBlocks: make(map[string]int64),
	}
}

// IncrementRequest increments the request count
func (m *Metrics) IncrementRequest() {
	atomic.AddInt64(&m.RequestCount, 1)
}

// IncrementError increments the error count
func (m *Metrics) IncrementError() {
	atomic.AddInt64(&m.ErrorCount, 1)
}

// IncrementCacheHit increments cache hit count
func (m *Metrics) IncrementCacheHit() {
	atomic.AddInt64(&m.CacheHits, 1)
}

// IncrementCacheMiss increments cache miss count
func (m *Metrics) IncrementCacheMiss() {
	atomic.AddInt64(&m.CacheMisses, 1)
}

// IncrementAssessment increments the completed assessment count
func (m *Metrics) IncrementAssessment() {
	atomic.AddInt64(&m.AssessmentCount, 1)
}

// IncrementFallbackPrediction counts assessments served by the heuristic
// model path
func (m *Metrics) IncrementFallbackPrediction() {
	atomic.AddInt64(&m.FallbackPredictions, 1)
}

// IncrementDegradedExplanation counts assessments with static-importance
// attributions
func (m *Metrics) IncrementDegradedExplanation() {
	atomic.AddInt64(&m.DegradedExplanations, 1)
}

// IncrementInsufficientData counts assessments gated by obscurity
func (m *Metrics) IncrementInsufficientData() {
	atomic.AddInt64(&m.InsufficientDataCount, 1)
}

// IncrementRetrain increments the model retrain count
func (m *Metrics) IncrementRetrain() {
	atomic.AddInt64(&m.RetrainCount, 1)
}

// IncrementGamificationAction increments the recorded action count
func (m *Metrics) IncrementGamificationAction() {
	atomic.AddInt64(&m.GamificationActions, 1)
}

// RecordResponseTime records response time for averaging and percentiles
func (m *Metrics) RecordResponseTime(duration time.Duration) {
	// Update simple average
	current := atomic.LoadInt64(&m.AverageResponseTime)
	newAverage := (current + duration.Nanoseconds()) / 2
	atomic.StoreInt64(&m.AverageResponseTime, newAverage)

	// Store detailed response time for percentiles (keep last 1000 samples)
	m.ResponseTimesMutex.Lock()
	m.ResponseTimes = append(m.ResponseTimes, duration)
	if len(m.ResponseTimes) > 1000 {
		m.ResponseTimes = m.ResponseTimes[1:]
	}
	m.ResponseTimesMutex.Unlock()
}

// RecordRequestByStatus records request count by HTTP status code
func (m *Metrics) RecordRequestByStatus(statusCode int) {
	m.StatusMutex.Lock()
	defer m.StatusMutex.Unlock()
	m.RequestCountByStatus[statusCode]++
}

// GetPercentileResponseTime calculates percentile response time
func (m *Metrics) GetPercentileResponseTime(percentile float64) time.Duration {
	m.ResponseTimesMutex.RLock()
	defer m.ResponseTimesMutex.RUnlock()

	if len(m.ResponseTimes) == 0 {
		return 0
	}

	times := make([]time.Duration, len(m.ResponseTimes))
	copy(times, m.ResponseTimes)

	sort.Slice(times, func(i, j int) bool {
		return times[i] < times[j]
	})

	index := int(float64(len(times)-1) * percentile / 100.0)
	if index >= len(times) {
		index = len(times) - 1
	}

	return times[index]
}

// GetStatusCodeDistribution returns request count by status code
func (m *Metrics) GetStatusCodeDistribution() map[int]int64 {
	m.StatusMutex.RLock()
	defer m.StatusMutex.RUnlock()

	distribution := make(map[int]int64)
	for code, count := range m.RequestCountByStatus {
		distribution[code] = count
	}
	return distribution
}

// GetStats returns current metrics statistics
func (m *Metrics) GetStats() map[string]interface{} {
	requests := atomic.LoadInt64(&m.RequestCount)
	errors := atomic.LoadInt64(&m.ErrorCount)
	cacheHits := atomic.LoadInt64(&m.CacheHits)
	cacheMisses := atomic.LoadInt64(&m.CacheMisses)
	avgResponseTime := atomic.LoadInt64(&m.AverageResponseTime)

	errorRate := float64(0)
	if requests > 0 {
		errorRate = float64(errors) / float64(requests) * 100
	}

	cacheHitRate := float64(0)
	totalCacheRequests := cacheHits + cacheMisses
	if totalCacheRequests > 0 {
		cacheHitRate = float64(cacheHits) / float64(totalCacheRequests) * 100
	}

	assessments := atomic.LoadInt64(&m.AssessmentCount)
	fallbacks := atomic.LoadInt64(&m.FallbackPredictions)
	fallbackRate := float64(0)
	if assessments > 0 {
		fallbackRate = float64(fallbacks) / float64(assessments) * 100
	}

	uptime := time.Since(m.StartTime)

	return map[string]interface{}{
		"uptime_seconds":         uptime.Seconds(),
		"total_requests":         requests,
		"error_count":            errors,
		"error_rate_percent":     errorRate,
		"cache_hits":             cacheHits,
		"cache_misses":           cacheMisses,
		"cache_hit_rate_percent": cacheHitRate,
		"avg_response_time_ms":   float64(avgResponseTime) / 1000000,
		"start_time":             m.StartTime.Format(time.RFC3339),

		// Scoring pipeline
		"assessments_total":       assessments,
		"fallback_predictions":    fallbacks,
		"fallback_rate_percent":   fallbackRate,
		"degraded_explanations":   atomic.LoadInt64(&m.DegradedExplanations),
		"insufficient_data_total": atomic.LoadInt64(&m.InsufficientDataCount),
		"model_retrains":          atomic.LoadInt64(&m.RetrainCount),
		"gamification_actions":    atomic.LoadInt64(&m.GamificationActions),

		// Enhanced metrics
		"p50_response_time_ms":     float64(m.GetPercentileResponseTime(50)) / 1000000,
		"p95_response_time_ms":     float64(m.GetPercentileResponseTime(95)) / 1000000,
		"p99_response_time_ms":     float64(m.GetPercentileResponseTime(99)) / 1000000,
		"status_code_distribution": m.GetStatusCodeDistribution(),
	}
}

// Reset resets all metrics (useful for testing)
func (m *Metrics) Reset() {
	atomic.StoreInt64(&m.RequestCount, 0)
	atomic.StoreInt64(&m.ErrorCount, 0)
	atomic.StoreInt64(&m.CacheHits, 0)
	atomic.StoreInt64(&m.CacheMisses, 0)
	atomic.StoreInt64(&m.AverageResponseTime, 0)
	atomic.StoreInt64(&m.AssessmentCount, 0)
	atomic.StoreInt64(&m.FallbackPredictions, 0)
	atomic.StoreInt64(&m.DegradedExplanations, 0)
	atomic.StoreInt64(&m.InsufficientDataCount, 0)
	atomic.StoreInt64(&m.RetrainCount, 0)
	atomic.StoreInt64(&m.GamificationActions, 0)
	atomic.StoreInt64(&m.RateLimitIPBlocks, 0)
	atomic.StoreInt64(&m.RateLimitRedisErrors, 0)
	atomic.StoreInt64(&m.RateLimitFallbackCount, 0)

	m.ResponseTimesMutex.Lock()
	m.ResponseTimes = m.ResponseTimes[:0]
	m.ResponseTimesMutex.Unlock()

	m.StatusMutex.Lock()
	m.RequestCountByStatus = make(map[int]int64)
	m.StatusMutex.Unlock()

	m.RateLimitMutex.Lock()
	m.RateLimitEndpointBlocks = make(map[string]int64)
	m.RateLimitMutex.Unlock()

	m.StartTime = time.Now()
}

// IncrementRateLimitIPBlock increments IP-based rate limit blocks
func (m *Metrics) IncrementRateLimitIPBlock() {
	atomic.AddInt64(&m.RateLimitIPBlocks, 1)
}

// IncrementRateLimitRedisError increments Redis error count for rate limiting
func (m *Metrics) IncrementRateLimitRedisError() {
	atomic.AddInt64(&m.RateLimitRedisErrors, 1)
}

// IncrementRateLimitFallback increments fallback rate limiter usage count
func (m *Metrics) IncrementRateLimitFallback() {
	atomic.AddInt64(&m.RateLimitFallbackCount, 1)
}

// IncrementRateLimitEndpoint increments rate limit blocks for a specific endpoint
func (m *Metrics) IncrementRateLimitEndpoint(endpoint string) {
	m.RateLimitMutex.Lock()
	defer m.RateLimitMutex.Unlock()
	m.RateLimitEndpointBlocks[endpoint]++
}

// GetRateLimitStats returns rate limiting statistics
func (m *Metrics) GetRateLimitStats() map[string]interface{} {
	m.RateLimitMutex.RLock()
	endpointBlocksCopy := make(map[string]int64, len(m.RateLimitEndpointBlocks))
	for k, v := range m.RateLimitEndpointBlocks {
		endpointBlocksCopy[k] = v
	}
	m.RateLimitMutex.RUnlock()

	return map[string]interface{}{
		"ip_blocks":       atomic.LoadInt64(&m.RateLimitIPBlocks),
		"redis_errors":    atomic.LoadInt64(&m.RateLimitRedisErrors),
		"fallback_count":  atomic.LoadInt64(&m.RateLimitFallbackCount),
		"endpoint_blocks": endpointBlocksCopy,
	}
}
