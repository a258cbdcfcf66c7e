package reliability

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"
)

// Endpoint names recorded by the upstream clients
const (
	EndpointQuotes           = "yahoo-quotes"
	EndpointHistory          = "yahoo-history"
	EndpointSearch           = "yahoo-search"
	EndpointDividends        = "yahoo-dividends"
	EndpointCDI              = "bcb-cdi"
	EndpointExchangeRate     = "exchange-rate"
	EndpointAggregatorAuth   = "pluggy-auth"
	EndpointAggregatorAccts  = "pluggy-accounts"
	EndpointAggregatorInvest = "pluggy-investments"
)

const (
	// DefaultMaxCallsPerEndpoint bounds the in-memory history per endpoint
	DefaultMaxCallsPerEndpoint = 1000
	// DefaultMetricsWindow is how long call records are kept by Cleanup
	DefaultMetricsWindow = 24 * time.Hour

	downSuccessRate     = 50.0
	degradedSuccessRate = 90.0
	degradedResponseMs  = 10000.0
)

// HealthStatus is the aggregate state of the upstream integrations
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthDown     HealthStatus = "down"
)

// CallRecord is one measured upstream call
type CallRecord struct {
	At       time.Time     `json:"at"`
	Duration time.Duration `json:"duration"`
	Success  bool          `json:"success"`
	Code     ErrorCode     `json:"code,omitempty"`
}

// EndpointStats summarises the retained calls for one endpoint
type EndpointStats struct {
	Endpoint         string            `json:"endpoint"`
	TotalCalls       int               `json:"total_calls"`
	SuccessRate      float64           `json:"success_rate"`
	AvgResponseMs    float64           `json:"avg_response_ms"`
	StdDevResponseMs float64           `json:"stddev_response_ms"`
	P95ResponseMs    float64           `json:"p95_response_ms"`
	ErrorBreakdown   map[ErrorCode]int `json:"error_breakdown"`
}

// SystemHealth is the roll-up over every endpoint with recorded calls
type SystemHealth struct {
	Status         HealthStatus    `json:"status"`
	AvgSuccessRate float64         `json:"avg_success_rate"`
	AvgResponseMs  float64         `json:"avg_response_ms"`
	Endpoints      []EndpointStats `json:"endpoints"`
	CheckedAt      time.Time       `json:"checked_at"`
}

// Monitor keeps a bounded history of upstream calls per endpoint
type Monitor struct {
	mu       sync.RWMutex
	calls    map[string][]CallRecord
	maxCalls int
	now      func() time.Time
	log      zerolog.Logger
}

// NewMonitor creates a monitor that keeps DefaultMaxCallsPerEndpoint calls per endpoint
func NewMonitor(log zerolog.Logger) *Monitor {
	return &Monitor{
		calls:    make(map[string][]CallRecord),
		maxCalls: DefaultMaxCallsPerEndpoint,
		now:      time.Now,
		log:      log.With().Str("component", "monitor").Logger(),
	}
}

// SetClock replaces the time source, for tests
func (m *Monitor) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// RecordCall stores one call, dropping the oldest beyond the per-endpoint bound
func (m *Monitor) RecordCall(endpoint string, d time.Duration, success bool, code ErrorCode) {
	m.mu.Lock()
	defer m.mu.Unlock()

	records := append(m.calls[endpoint], CallRecord{
		At:       m.now(),
		Duration: d,
		Success:  success,
		Code:     code,
	})
	if over := len(records) - m.maxCalls; over > 0 {
		records = append(records[:0:0], records[over:]...)
	}
	m.calls[endpoint] = records
}

// Measure runs fn and records its duration and outcome under endpoint
func Measure[T any](m *Monitor, endpoint string, fn func() (T, error)) (T, error) {
	if m == nil {
		return fn()
	}

	start := time.Now()
	result, err := fn()
	elapsed := time.Since(start)

	if err != nil {
		classified := Classify(err)
		m.RecordCall(endpoint, elapsed, false, classified.Code)
		m.log.Debug().
			Str("endpoint", endpoint).
			Str("code", string(classified.Code)).
			Dur("duration", elapsed).
			Err(err).
			Msg("Upstream call failed")
		return result, err
	}

	m.RecordCall(endpoint, elapsed, true, "")
	return result, nil
}

// EndpointStats returns statistics for one endpoint; an unknown endpoint has zero calls
func (m *Monitor) EndpointStats(endpoint string) EndpointStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return computeStats(endpoint, m.calls[endpoint])
}

// AllStats returns statistics for every endpoint, sorted by name
func (m *Monitor) AllStats() []EndpointStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.calls))
	for name, records := range m.calls {
		if len(records) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	out := make([]EndpointStats, 0, len(names))
	for _, name := range names {
		out = append(out, computeStats(name, m.calls[name]))
	}
	return out
}

// SystemHealth is down below 50% average success, degraded below 90% or
// above 10s average response. No recorded calls counts as healthy.
func (m *Monitor) SystemHealth() SystemHealth {
	endpoints := m.AllStats()

	m.mu.RLock()
	checkedAt := m.now()
	m.mu.RUnlock()

	health := SystemHealth{Status: HealthHealthy, Endpoints: endpoints, CheckedAt: checkedAt}
	if len(endpoints) == 0 {
		return health
	}

	rates := make([]float64, len(endpoints))
	times := make([]float64, len(endpoints))
	for i, s := range endpoints {
		rates[i] = s.SuccessRate
		times[i] = s.AvgResponseMs
	}
	health.AvgSuccessRate = stat.Mean(rates, nil)
	health.AvgResponseMs = stat.Mean(times, nil)

	switch {
	case health.AvgSuccessRate < downSuccessRate:
		health.Status = HealthDown
	case health.AvgSuccessRate < degradedSuccessRate || health.AvgResponseMs > degradedResponseMs:
		health.Status = HealthDegraded
	}
	return health
}

// Cleanup drops records older than window and returns how many were removed
func (m *Monitor) Cleanup(window time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-window)
	removed := 0
	for name, records := range m.calls {
		kept := records[:0]
		for _, r := range records {
			if r.At.After(cutoff) {
				kept = append(kept, r)
			}
		}
		removed += len(records) - len(kept)
		if len(kept) == 0 {
			delete(m.calls, name)
			continue
		}
		m.calls[name] = kept
	}
	return removed
}

// Export returns a copy of every retained record
func (m *Monitor) Export() map[string][]CallRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string][]CallRecord, len(m.calls))
	for name, records := range m.calls {
		out[name] = append([]CallRecord(nil), records...)
	}
	return out
}

func computeStats(endpoint string, records []CallRecord) EndpointStats {
	s := EndpointStats{Endpoint: endpoint, ErrorBreakdown: map[ErrorCode]int{}}
	if len(records) == 0 {
		return s
	}

	durations := make([]float64, len(records))
	successes := 0
	for i, r := range records {
		durations[i] = float64(r.Duration) / float64(time.Millisecond)
		if r.Success {
			successes++
		} else if r.Code != "" {
			s.ErrorBreakdown[r.Code]++
		}
	}

	s.TotalCalls = len(records)
	s.SuccessRate = float64(successes) / float64(len(records)) * 100
	if len(durations) > 1 {
		s.AvgResponseMs, s.StdDevResponseMs = stat.MeanStdDev(durations, nil)
	} else {
		s.AvgResponseMs = durations[0]
	}

	sort.Float64s(durations)
	s.P95ResponseMs = stat.Quantile(0.95, stat.Empirical, durations, nil)
	return s
}
