// Package dividends summarizes dividend payments per symbol.
package dividends

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aristath/famfin/internal/clientdata"
	"github.com/aristath/famfin/internal/domain"
	"github.com/aristath/famfin/internal/reliability"
	"github.com/aristath/famfin/internal/utils"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"
)

// DefaultMonths is the summary window when none is given
const DefaultMonths = 12

// Summary aggregates the dividends paid by a symbol over a window
type Summary struct {
	LastDividendDate   *time.Time        `json:"last_dividend_date"`
	Symbol             string            `json:"symbol"`
	History            []domain.Dividend `json:"history"` // Newest first
	Months             int               `json:"months"`
	Payments           int               `json:"payments"`
	TotalDividends     float64           `json:"total_dividends"`
	LastDividendAmount float64           `json:"last_dividend_amount"`
	AveragePayment     float64           `json:"average_payment"`
	StdDevPayment      float64           `json:"stddev_payment"`
}

// Service fetches dividend events with retries and a persisted cache
type Service struct {
	provider    domain.DividendProvider
	cacheRepo   *clientdata.Repository
	monitor     *reliability.Monitor
	policy      reliability.Policy
	fanOutLimit int
	now         func() time.Time
	log         zerolog.Logger
}

// NewService creates a dividend service. cacheRepo and monitor may be nil.
func NewService(
	provider domain.DividendProvider,
	cacheRepo *clientdata.Repository,
	monitor *reliability.Monitor,
	policy reliability.Policy,
	fanOutLimit int,
	log zerolog.Logger,
) *Service {
	return &Service{
		provider:    provider,
		cacheRepo:   cacheRepo,
		monitor:     monitor,
		policy:      policy,
		fanOutLimit: fanOutLimit,
		now:         time.Now,
		log:         log.With().Str("service", "dividends").Logger(),
	}
}

func historyCacheKey(symbol string, from, to time.Time) string {
	return fmt.Sprintf("%s:%s:%s", symbol, from.Format("2006-01-02"), to.Format("2006-01-02"))
}

// History returns the dividends paid by symbol in [from, to], oldest first.
// When the upstream fails, an expired cached copy is served if one exists.
func (s *Service) History(ctx context.Context, symbol string, from, to time.Time) ([]domain.Dividend, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	if to.Before(from) {
		return nil, fmt.Errorf("invalid range: %s is after %s", from.Format("2006-01-02"), to.Format("2006-01-02"))
	}

	key := historyCacheKey(symbol, from, to)
	var cached []domain.Dividend
	if s.cacheRepo != nil {
		if ok, err := s.cacheRepo.LoadFresh(clientdata.TableDividendHistory, key, &cached); err != nil {
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to read dividend cache")
		} else if ok {
			return cached, nil
		}
	}

	events, err := reliability.Do(ctx, s.policy, func(ctx context.Context) ([]domain.Dividend, error) {
		return reliability.Measure(s.monitor, reliability.EndpointDividends, func() ([]domain.Dividend, error) {
			return s.provider.GetDividends(ctx, symbol, from, to)
		})
	})
	if err != nil {
		if s.cacheRepo != nil {
			if ok, _ := s.cacheRepo.LoadStale(clientdata.TableDividendHistory, key, &cached); ok {
				s.log.Warn().Err(err).Str("symbol", symbol).Msg("Dividend fetch failed, serving stale cache")
				return cached, nil
			}
		}
		return nil, fmt.Errorf("failed to fetch dividends for %s: %w", symbol, err)
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Date.Before(events[j].Date)
	})

	if s.cacheRepo != nil {
		if err := s.cacheRepo.Store(clientdata.TableDividendHistory, key, events, clientdata.TTLDividends); err != nil {
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to cache dividends")
		}
	}
	return events, nil
}

// Summary aggregates the last months*30 days of dividends. An upstream failure
// yields an empty summary rather than an error.
func (s *Service) Summary(ctx context.Context, symbol string, months int) Summary {
	if months <= 0 {
		months = DefaultMonths
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	to := s.now().UTC()
	from := to.AddDate(0, 0, -months*30)

	events, err := s.History(ctx, symbol, from, to)
	if err != nil {
		s.log.Warn().Err(err).Str("symbol", symbol).Int("months", months).Msg("Dividend summary unavailable")
		events = nil
	}
	return summarize(symbol, months, events)
}

// Summaries computes Summary for each symbol concurrently
func (s *Service) Summaries(ctx context.Context, symbols []string, months int) map[string]Summary {
	symbols = utils.NormalizeSymbols(symbols)
	results := utils.FanOut(ctx, symbols, s.fanOutLimit, func(ctx context.Context, symbol string) (Summary, error) {
		return s.Summary(ctx, symbol, months), nil
	})
	return utils.Successes(results)
}

func summarize(symbol string, months int, events []domain.Dividend) Summary {
	summary := Summary{
		Symbol:  symbol,
		Months:  months,
		History: make([]domain.Dividend, 0, len(events)),
	}
	if len(events) == 0 {
		return summary
	}

	amounts := make([]float64, 0, len(events))
	for i := len(events) - 1; i >= 0; i-- {
		summary.History = append(summary.History, events[i])
		summary.TotalDividends += events[i].Amount
		amounts = append(amounts, events[i].Amount)
	}

	last := summary.History[0]
	summary.LastDividendDate = &last.Date
	summary.LastDividendAmount = last.Amount
	summary.Payments = len(amounts)
	if len(amounts) > 1 {
		summary.AveragePayment, summary.StdDevPayment = stat.MeanStdDev(amounts, nil)
	} else {
		summary.AveragePayment = amounts[0]
	}
	return summary
}
