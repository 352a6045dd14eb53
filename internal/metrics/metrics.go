package metrics

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"llmarena/internal/core"
)

const qpsWindow = time.Minute

// counters are updated without taking the service lock.
type counters struct {
	modelCalls     atomic.Int64
	modelSuccesses atomic.Int64
	modelFailures  atomic.Int64
	modelLatencyMs atomic.Int64
	cacheHits      atomic.Int64
	cacheMisses    atomic.Int64
	httpRequests   atomic.Int64
	httpLatencyMs  atomic.Int64
}

// MetricsConfig configuration for MetricsService
type MetricsConfig struct {
	SaveInterval time.Duration
	HistorySize  int
	Storage      core.StorageInterface
	Logger       core.Logger
}

// MetricsService collects model call metrics and persists them through a StorageInterface.
type MetricsService struct {
	counters counters

	mu              sync.Mutex
	history         []core.RequestRecord
	recent          []time.Time
	lastRequestTime time.Time
	lastSaveTime    time.Time

	maxHistorySize  int
	minSaveInterval time.Duration
	storage         core.StorageInterface
	logger          core.Logger

	closeOnce sync.Once
	closeErr  error
}

var _ core.MetricsCollector = (*MetricsService)(nil)

// NewMetricsService creates a new MetricsService
func NewMetricsService(config MetricsConfig) *MetricsService {
	if config.HistorySize <= 0 {
		config.HistorySize = core.HistoryBufferSize
	}
	if config.Logger == nil {
		config.Logger = &core.NopLogger{}
	}
	return &MetricsService{
		maxHistorySize:  config.HistorySize,
		minSaveInterval: config.SaveInterval,
		storage:         config.Storage,
		logger:          config.Logger,
	}
}

// RecordModelCall records the outcome of one upstream model call.
func (ms *MetricsService) RecordModelCall(model, endpoint string, success bool, duration time.Duration) {
	ms.RecordRequest(success, duration.Milliseconds(), model, endpoint)
}

// RecordRequest records a model call result; responseTime is in milliseconds.
func (ms *MetricsService) RecordRequest(success bool, responseTime int64, model string, endpoint string) {
	ms.counters.modelCalls.Add(1)
	ms.counters.modelLatencyMs.Add(responseTime)
	if success {
		ms.counters.modelSuccesses.Add(1)
	} else {
		ms.counters.modelFailures.Add(1)
	}

	now := time.Now()
	ms.mu.Lock()
	ms.lastRequestTime = now
	ms.recent = append(pruneBefore(ms.recent, now.Add(-qpsWindow)), now)
	ms.history = append(ms.history, core.RequestRecord{
		Timestamp:    now,
		Success:      success,
		ResponseTime: responseTime,
		Model:        model,
		Endpoint:     endpoint,
	})
	if overflow := len(ms.history) - ms.maxHistorySize; overflow > 0 {
		ms.history = append(ms.history[:0], ms.history[overflow:]...)
	}
	ms.mu.Unlock()

	ms.SaveStatsDebounced()
}

// pruneBefore drops the leading timestamps older than cutoff.
func pruneBefore(times []time.Time, cutoff time.Time) []time.Time {
	i := sort.Search(len(times), func(i int) bool { return !times[i].Before(cutoff) })
	if i == 0 {
		return times
	}
	return append(times[:0], times[i:]...)
}

// RecordHTTPRequest records the latency of one served API request.
func (ms *MetricsService) RecordHTTPRequest(duration time.Duration) {
	ms.counters.httpRequests.Add(1)
	ms.counters.httpLatencyMs.Add(duration.Milliseconds())
}

// HTTPCounts returns the number of served API requests and their mean latency in milliseconds.
func (ms *MetricsService) HTTPCounts() (requests, avgResponseTime int64) {
	requests = ms.counters.httpRequests.Load()
	if requests == 0 {
		return 0, 0
	}
	return requests, ms.counters.httpLatencyMs.Load() / requests
}

// RecordCacheHit records cache hit
func (ms *MetricsService) RecordCacheHit() { ms.counters.cacheHits.Add(1) }

// RecordCacheMiss records cache miss
func (ms *MetricsService) RecordCacheMiss() { ms.counters.cacheMisses.Add(1) }

// CacheCounts returns the catalog cache hit and miss counters.
func (ms *MetricsService) CacheCounts() (hits, misses int64) {
	return ms.counters.cacheHits.Load(), ms.counters.cacheMisses.Load()
}

// GetQPS returns model calls per second over the last minute.
func (ms *MetricsService) GetQPS() float64 {
	ms.mu.Lock()
	ms.recent = pruneBefore(ms.recent, time.Now().Add(-qpsWindow))
	n := len(ms.recent)
	ms.mu.Unlock()

	return math.Round(float64(n)/qpsWindow.Seconds()*1000) / 1000
}

// GetRequestStats returns current stats snapshot
func (ms *MetricsService) GetRequestStats() core.RequestStats {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	return core.RequestStats{
		TotalRequests:      ms.counters.modelCalls.Load(),
		SuccessfulRequests: ms.counters.modelSuccesses.Load(),
		FailedRequests:     ms.counters.modelFailures.Load(),
		TotalResponseTime:  ms.counters.modelLatencyMs.Load(),
		LastRequestTime:    ms.lastRequestTime,
		RequestHistory:     append([]core.RequestRecord(nil), ms.history...),
	}
}

// GetPeriodStats summarizes the records newer than each of the given hour windows.
func GetPeriodStats(history []core.RequestRecord, hourPeriods ...int) map[int]core.PeriodStats {
	if len(hourPeriods) == 0 {
		return nil
	}

	now := time.Now()
	result := make(map[int]core.PeriodStats, len(hourPeriods))
	for _, hours := range hourPeriods {
		cutoff := now.Add(-time.Duration(hours) * time.Hour)
		var requests, successes, latency int64
		for _, record := range history {
			if !record.Timestamp.After(cutoff) {
				continue
			}
			requests++
			latency += record.ResponseTime
			if record.Success {
				successes++
			}
		}

		stats := core.PeriodStats{
			Requests: requests,
			QPS:      float64(requests) / (float64(hours) * 3600.0),
		}
		if requests > 0 {
			stats.SuccessRate = float64(successes) / float64(requests) * 100
			stats.AvgResponseTime = latency / requests
		}
		result[hours] = stats
	}
	return result
}

// GetModelStats groups history by model, sorted by model ID.
func GetModelStats(history []core.RequestRecord) []core.ModelStats {
	byModel := make(map[string]*core.ModelStats)
	totalTime := make(map[string]int64)

	for _, record := range history {
		s, ok := byModel[record.Model]
		if !ok {
			s = &core.ModelStats{Model: record.Model}
			byModel[record.Model] = s
		}
		s.Requests++
		if !record.Success {
			s.Failures++
		}
		totalTime[record.Model] += record.ResponseTime
	}

	result := make([]core.ModelStats, 0, len(byModel))
	for model, s := range byModel {
		s.SuccessRate = float64(s.Requests-s.Failures) / float64(s.Requests) * 100
		s.AvgResponseTime = totalTime[model] / s.Requests
		result = append(result, *s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Model < result[j].Model })
	return result
}

// LoadStats restores counters and history from storage.
func (ms *MetricsService) LoadStats() error {
	if ms.storage == nil {
		return nil
	}
	stats, err := ms.storage.LoadStats()
	if err != nil {
		return err
	}

	ms.counters.modelCalls.Store(stats.TotalRequests)
	ms.counters.modelSuccesses.Store(stats.SuccessfulRequests)
	ms.counters.modelFailures.Store(stats.FailedRequests)
	ms.counters.modelLatencyMs.Store(stats.TotalResponseTime)

	history := stats.RequestHistory
	if len(history) > ms.maxHistorySize {
		history = history[len(history)-ms.maxHistorySize:]
	}

	ms.mu.Lock()
	ms.lastRequestTime = stats.LastRequestTime
	ms.history = append([]core.RequestRecord(nil), history...)
	ms.mu.Unlock()

	ms.logger.Info("Loaded stats: %d model calls on record", stats.TotalRequests)
	return nil
}

// SaveStatsDebounced persists stats at most once per save interval.
func (ms *MetricsService) SaveStatsDebounced() {
	if ms.storage == nil {
		return
	}

	now := time.Now()
	ms.mu.Lock()
	if now.Sub(ms.lastSaveTime) < ms.minSaveInterval {
		ms.mu.Unlock()
		return
	}
	ms.lastSaveTime = now
	ms.mu.Unlock()

	stats := ms.GetRequestStats()
	if err := ms.storage.SaveStats(&stats); err != nil {
		ms.logger.Warn("Failed to save stats: %v", err)
	}
}

// Close saves final stats. Safe to call more than once.
func (ms *MetricsService) Close() error {
	ms.closeOnce.Do(func() {
		if ms.storage != nil {
			stats := ms.GetRequestStats()
			ms.closeErr = ms.storage.SaveStats(&stats)
		}
	})
	return ms.closeErr
}
