// Package market serves live quotes and price history with in-memory caching,
// retries and per-symbol failure reporting.
package market

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aristath/famfin/internal/clientdata"
	"github.com/aristath/famfin/internal/domain"
	"github.com/aristath/famfin/internal/reliability"
	"github.com/aristath/famfin/internal/utils"
	"github.com/rs/zerolog"
)

// DefaultHistoryPeriod is used when History is called without a period
const DefaultHistoryPeriod = "1mo"

// Input errors, reported to clients as bad requests
var (
	ErrSymbolRequired = errors.New("symbol is required")
	ErrInvalidPeriod  = errors.New("invalid period")
	ErrQueryTooShort  = errors.New("search query must have at least 2 characters")
)

// ErrSearchUnavailable is returned when no symbol searcher is configured
var ErrSearchUnavailable = errors.New("symbol search is not available")

// MinSearchLength is the shortest query sent upstream
const MinSearchLength = 2

// ValidPeriods are the history ranges accepted upstream
var ValidPeriods = []string{"1d", "5d", "1mo", "3mo", "6mo", "1y", "2y", "5y", "10y", "ytd", "max"}

// QuoteResult is the outcome of a batch lookup. Every requested symbol appears
// in exactly one of the two maps.
type QuoteResult struct {
	Quotes map[string]domain.Quote                `json:"quotes"`
	Errors map[string]*reliability.FinancialError `json:"errors,omitempty"`
}

// FirstError returns the error of the first failed symbol in sorted order
func (r QuoteResult) FirstError() error {
	if len(r.Errors) == 0 {
		return nil
	}
	symbols := make([]string, 0, len(r.Errors))
	for s := range r.Errors {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return r.Errors[symbols[0]]
}

// Caches groups the in-memory caches a QuoteService reads and fills
type Caches struct {
	Quotes  *clientdata.Cache[domain.Quote]
	Batches *clientdata.Cache[map[string]domain.Quote]
	History *clientdata.Cache[[]domain.PricePoint]
	Search  *clientdata.Cache[[]domain.SymbolMatch]
}

// NewCaches creates the quote caches and registers them for housekeeping when
// registry is non-nil. A non-positive quoteTTL uses clientdata.QuoteTTL.
func NewCaches(registry *clientdata.Registry, quoteTTL time.Duration) Caches {
	if quoteTTL <= 0 {
		quoteTTL = clientdata.QuoteTTL
	}
	c := Caches{
		Quotes:  clientdata.NewCache[domain.Quote]("quotes", quoteTTL),
		Batches: clientdata.NewCache[map[string]domain.Quote]("quote_batches", quoteTTL),
		History: clientdata.NewCache[[]domain.PricePoint]("price_history", clientdata.HistoryTTL),
		Search:  clientdata.NewCache[[]domain.SymbolMatch]("symbol_search", clientdata.SearchTTL),
	}
	if registry != nil {
		registry.Register(c.Quotes)
		registry.Register(c.Batches)
		registry.Register(c.History)
		registry.Register(c.Search)
	}
	return c
}

// Config tunes a QuoteService
type Config struct {
	BaseCurrency domain.Currency
	FanOutLimit  int
	Policy       reliability.Policy
	Searcher     domain.SymbolSearcher // Optional, enables Search
}

// QuoteService fetches quotes cache-first and converts them to the base currency
type QuoteService struct {
	provider     domain.MarketDataProvider
	searcher     domain.SymbolSearcher
	converter    domain.CurrencyConverter
	caches       Caches
	monitor      *reliability.Monitor
	policy       reliability.Policy
	baseCurrency domain.Currency
	fanOutLimit  int
	log          zerolog.Logger
}

// NewQuoteService creates a quote service. converter and monitor may be nil.
func NewQuoteService(
	provider domain.MarketDataProvider,
	converter domain.CurrencyConverter,
	caches Caches,
	monitor *reliability.Monitor,
	cfg Config,
	log zerolog.Logger,
) *QuoteService {
	s := &QuoteService{
		provider:     provider,
		searcher:     cfg.Searcher,
		converter:    converter,
		caches:       caches,
		monitor:      monitor,
		policy:       cfg.Policy,
		baseCurrency: domain.Currency(strings.ToUpper(string(cfg.BaseCurrency))),
		fanOutLimit:  cfg.FanOutLimit,
		log:          log.With().Str("service", "market").Logger(),
	}
	if s.policy.OnRetry == nil {
		s.policy.OnRetry = func(attempt int, delay time.Duration, err *reliability.FinancialError) {
			s.log.Debug().
				Int("attempt", attempt+1).
				Dur("delay", delay).
				Str("code", string(err.Code)).
				Msg("Retrying upstream call")
		}
	}
	return s
}

// GetQuotes returns quotes for symbols. Symbols are uppercased and deduplicated.
// A symbol that fails upstream is reported in Errors and never fails the batch.
func (s *QuoteService) GetQuotes(ctx context.Context, symbols []string) QuoteResult {
	symbols = utils.NormalizeSymbols(symbols)
	result := QuoteResult{
		Quotes: make(map[string]domain.Quote, len(symbols)),
		Errors: make(map[string]*reliability.FinancialError),
	}
	if len(symbols) == 0 {
		return result
	}

	batchKey := clientdata.QuotesKey(symbols)
	if cached, ok := s.caches.Batches.Get(batchKey); ok {
		for symbol, q := range cached {
			result.Quotes[symbol] = q
		}
		return result
	}

	defer utils.OperationTimer("get_quotes", s.log)()

	var missing []string
	for _, symbol := range symbols {
		if q, ok := s.caches.Quotes.Get(clientdata.QuoteKey(symbol)); ok {
			result.Quotes[symbol] = q
			continue
		}
		missing = append(missing, symbol)
	}

	for _, r := range utils.FanOut(ctx, missing, s.fanOutLimit, s.fetchQuote) {
		if r.Err != nil {
			fe := reliability.Classify(r.Err)
			s.log.Warn().
				Err(r.Err).
				Str("symbol", r.Key).
				Str("code", string(fe.Code)).
				Msg("Failed to fetch quote")
			result.Errors[r.Key] = fe
			continue
		}
		s.caches.Quotes.Set(clientdata.QuoteKey(r.Key), r.Value, 0)
		result.Quotes[r.Key] = r.Value
	}

	// Partial batches are not cached so failed symbols are retried next call
	if len(result.Errors) == 0 {
		batch := make(map[string]domain.Quote, len(result.Quotes))
		for symbol, q := range result.Quotes {
			batch[symbol] = q
		}
		s.caches.Batches.Set(batchKey, batch, 0)
	}

	s.log.Debug().
		Int("requested", len(symbols)).
		Int("fetched", len(missing)).
		Int("failed", len(result.Errors)).
		Msg("Quotes resolved")

	return result
}

// GetQuote returns a single symbol's quote
func (s *QuoteService) GetQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, ErrSymbolRequired
	}

	result := s.GetQuotes(ctx, []string{symbol})
	if fe, ok := result.Errors[symbol]; ok {
		return nil, fe
	}
	q := result.Quotes[symbol]
	return &q, nil
}

func (s *QuoteService) fetchQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	q, err := reliability.Do(ctx, s.policy, func(ctx context.Context) (*domain.Quote, error) {
		return reliability.Measure(s.monitor, reliability.EndpointQuotes, func() (*domain.Quote, error) {
			return s.provider.GetQuote(ctx, symbol)
		})
	})
	if err != nil {
		return domain.Quote{}, err
	}

	quote := *q
	quote.Symbol = symbol
	if quote.FetchedAt.IsZero() {
		quote.FetchedAt = time.Now()
	}
	return s.toBaseCurrency(ctx, quote), nil
}

// toBaseCurrency converts price and change into the base currency. A failed
// conversion keeps the listing currency and is only logged.
func (s *QuoteService) toBaseCurrency(ctx context.Context, q domain.Quote) domain.Quote {
	if s.converter == nil || s.baseCurrency == "" || q.Currency == "" || q.Currency == s.baseCurrency {
		return q
	}

	price, err := s.converter.Convert(ctx, q.Price, q.Currency, s.baseCurrency)
	if err != nil {
		s.log.Warn().
			Err(err).
			Str("symbol", q.Symbol).
			Str("from", string(q.Currency)).
			Str("to", string(s.baseCurrency)).
			Msg("Currency conversion failed, keeping listing currency")
		return q
	}

	if q.Price != 0 {
		q.Change *= price / q.Price
	}
	q.OriginalCurrency = q.Currency
	q.OriginalPrice = q.Price
	q.Price = price
	q.Currency = s.baseCurrency
	return q
}

// IsValidPeriod reports whether period is one of ValidPeriods
func IsValidPeriod(period string) bool {
	for _, p := range ValidPeriods {
		if p == period {
			return true
		}
	}
	return false
}

// History returns daily bars for symbol over period, in the listing currency
func (s *QuoteService) History(ctx context.Context, symbol, period string) ([]domain.PricePoint, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, ErrSymbolRequired
	}
	if period == "" {
		period = DefaultHistoryPeriod
	}
	if !IsValidPeriod(period) {
		return nil, fmt.Errorf("%w %q, expected one of %s", ErrInvalidPeriod, period, strings.Join(ValidPeriods, ", "))
	}

	key := clientdata.HistoryKey(symbol, period)
	if cached, ok := s.caches.History.Get(key); ok {
		return cached, nil
	}

	points, err := reliability.Do(ctx, s.policy, func(ctx context.Context) ([]domain.PricePoint, error) {
		return reliability.Measure(s.monitor, reliability.EndpointHistory, func() ([]domain.PricePoint, error) {
			return s.provider.GetHistory(ctx, symbol, period)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch history for %s: %w", symbol, err)
	}

	s.caches.History.Set(key, points, 0)
	return points, nil
}

// Search returns tickers matching query, cached per normalized query
func (s *QuoteService) Search(ctx context.Context, query string) ([]domain.SymbolMatch, error) {
	query = strings.TrimSpace(query)
	if len([]rune(query)) < MinSearchLength {
		return nil, ErrQueryTooShort
	}
	if s.searcher == nil {
		return nil, ErrSearchUnavailable
	}

	key := clientdata.SearchKey(query)
	if cached, ok := s.caches.Search.Get(key); ok {
		return cached, nil
	}

	matches, err := reliability.Do(ctx, s.policy, func(ctx context.Context) ([]domain.SymbolMatch, error) {
		return reliability.Measure(s.monitor, reliability.EndpointSearch, func() ([]domain.SymbolMatch, error) {
			return s.searcher.Search(ctx, query)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search %q: %w", query, err)
	}

	s.caches.Search.Set(key, matches, 0)
	return matches, nil
}
