// Package benchmark builds accumulated benchmark series (CDI) for comparing
// portfolio performance.
package benchmark

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aristath/famfin/internal/clientdata"
	"github.com/aristath/famfin/internal/clients/bcb"
	"github.com/aristath/famfin/internal/reliability"
	"github.com/rs/zerolog"
)

// DefaultDays is the number of daily observations used when none is given
const DefaultDays = 5 * 365

// MaxDays bounds a single request
const MaxDays = 20 * 365

// RateSource provides daily CDI rates, oldest first
type RateSource interface {
	CDI(ctx context.Context, n int) ([]bcb.DailyRate, error)
}

// Series is an accumulated index starting at 1.0. Timestamps are Unix milliseconds.
type Series struct {
	Timestamps []int64   `json:"timestamps"`
	Prices     []float64 `json:"prices"`
}

// CumulativeReturn is the percent change from the first to the last point
func (s Series) CumulativeReturn() float64 {
	if len(s.Prices) == 0 {
		return 0
	}
	return (s.Prices[len(s.Prices)-1] - 1) * 100
}

// Service builds CDI series backed by the persisted client-data cache
type Service struct {
	source    RateSource
	cacheRepo *clientdata.Repository
	monitor   *reliability.Monitor
	policy    reliability.Policy
	log       zerolog.Logger
}

// NewService creates a benchmark service. cacheRepo and monitor may be nil.
func NewService(source RateSource, cacheRepo *clientdata.Repository, monitor *reliability.Monitor, policy reliability.Policy, log zerolog.Logger) *Service {
	return &Service{
		source:    source,
		cacheRepo: cacheRepo,
		monitor:   monitor,
		policy:    policy,
		log:       log.With().Str("service", "benchmark").Logger(),
	}
}

// CDIHistory returns the CDI accumulated over the last lastDays observations.
// A fresh cached series is returned as is; when the upstream fails an expired
// one is served instead.
func (s *Service) CDIHistory(ctx context.Context, lastDays int) (Series, error) {
	if lastDays <= 0 {
		lastDays = DefaultDays
	}
	if lastDays > MaxDays {
		return Series{}, fmt.Errorf("lastDays must be at most %d, got %d", MaxDays, lastDays)
	}

	key := strconv.Itoa(lastDays)
	var cached Series
	if s.cacheRepo != nil {
		if ok, err := s.cacheRepo.LoadFresh(clientdata.TableCDIHistory, key, &cached); err != nil {
			s.log.Warn().Err(err).Msg("Failed to read CDI cache")
		} else if ok {
			return cached, nil
		}
	}

	series, err := s.fetch(ctx, lastDays)
	if err != nil {
		if s.cacheRepo != nil {
			if ok, _ := s.cacheRepo.LoadStale(clientdata.TableCDIHistory, key, &cached); ok {
				s.log.Warn().Err(err).Int("days", lastDays).Msg("CDI fetch failed, serving stale cache")
				return cached, nil
			}
		}
		return Series{}, err
	}
	return series, nil
}

// Refresh fetches the default series regardless of cache freshness
func (s *Service) Refresh(ctx context.Context) error {
	_, err := s.fetch(ctx, DefaultDays)
	return err
}

func (s *Service) fetch(ctx context.Context, lastDays int) (Series, error) {
	rates, err := reliability.Do(ctx, s.policy, func(ctx context.Context) ([]bcb.DailyRate, error) {
		return reliability.Measure(s.monitor, reliability.EndpointCDI, func() ([]bcb.DailyRate, error) {
			return s.source.CDI(ctx, lastDays)
		})
	})
	if err != nil {
		return Series{}, fmt.Errorf("failed to fetch CDI history: %w", err)
	}

	series := Accumulate(rates)
	if s.cacheRepo != nil {
		if err := s.cacheRepo.Store(clientdata.TableCDIHistory, strconv.Itoa(lastDays), series, clientdata.TTLCDIHistory); err != nil {
			s.log.Warn().Err(err).Msg("Failed to cache CDI history")
		}
	}

	s.log.Debug().Int("days", lastDays).Int("points", len(series.Prices)).Msg("CDI history built")
	return series, nil
}

// Accumulate compounds daily percentage rates into an index starting at 1.0.
// rates must be sorted oldest first.
func Accumulate(rates []bcb.DailyRate) Series {
	series := Series{
		Timestamps: make([]int64, 0, len(rates)),
		Prices:     make([]float64, 0, len(rates)),
	}

	factor := 1.0
	for _, r := range rates {
		factor *= 1 + r.Rate/100
		series.Timestamps = append(series.Timestamps, r.Date.UnixMilli())
		series.Prices = append(series.Prices, factor)
	}
	return series
}
