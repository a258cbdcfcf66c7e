package testing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aristath/famfin/internal/domain"
)

// ErrMockNotFound is returned by mocks for symbols they were not given
var ErrMockNotFound = errors.New("invalid symbol: not configured in mock")

// MockQuoteProvider is a mock implementation of domain.MarketDataProvider for testing
type MockQuoteProvider struct {
	mu      sync.RWMutex
	quotes  map[string]domain.Quote
	history map[string][]domain.PricePoint
	errs    map[string][]error // queued per symbol, consumed one per call
	calls   map[string]int
	delay   time.Duration
}

// NewMockQuoteProvider creates a new mock quote provider
func NewMockQuoteProvider() *MockQuoteProvider {
	return &MockQuoteProvider{
		quotes:  make(map[string]domain.Quote),
		history: make(map[string][]domain.PricePoint),
		errs:    make(map[string][]error),
		calls:   make(map[string]int),
	}
}

// SetPrice sets the quote returned for symbol
func (m *MockQuoteProvider) SetPrice(symbol string, price float64, currency domain.Currency) {
	m.mu.Lock()
	defer m.mu.Unlock()
	symbol = strings.ToUpper(symbol)
	m.quotes[symbol] = domain.Quote{Symbol: symbol, Name: symbol, Price: price, Currency: currency}
}

// SetHistory sets the bars returned for symbol
func (m *MockQuoteProvider) SetHistory(symbol string, points []domain.PricePoint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history[strings.ToUpper(symbol)] = points
}

// QueueErrors makes the next len(errs) calls for symbol fail in order
func (m *MockQuoteProvider) QueueErrors(symbol string, errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	symbol = strings.ToUpper(symbol)
	m.errs[symbol] = append(m.errs[symbol], errs...)
}

// SetDelay makes every call wait before answering
func (m *MockQuoteProvider) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// Calls returns how many times symbol was requested
func (m *MockQuoteProvider) Calls(symbol string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls[strings.ToUpper(symbol)]
}

func (m *MockQuoteProvider) begin(ctx context.Context, symbol string) error {
	m.mu.Lock()
	m.calls[symbol]++
	delay := m.delay
	var err error
	if queued := m.errs[symbol]; len(queued) > 0 {
		err, m.errs[symbol] = queued[0], queued[1:]
	}
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}

// GetQuote returns the configured quote for symbol
func (m *MockQuoteProvider) GetQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	symbol = strings.ToUpper(symbol)
	if err := m.begin(ctx, symbol); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.quotes[symbol]
	if !ok {
		return nil, fmt.Errorf("%s: %w", symbol, ErrMockNotFound)
	}
	q.FetchedAt = time.Now()
	return &q, nil
}

// GetHistory returns the configured bars for symbol
func (m *MockQuoteProvider) GetHistory(ctx context.Context, symbol, period string) ([]domain.PricePoint, error) {
	symbol = strings.ToUpper(symbol)
	if err := m.begin(ctx, symbol); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	points, ok := m.history[symbol]
	if !ok {
		return nil, fmt.Errorf("%s: %w", symbol, ErrMockNotFound)
	}
	return append([]domain.PricePoint(nil), points...), nil
}

// MockCurrencyConverter is a mock implementation of domain.CurrencyConverter with fixed rates
type MockCurrencyConverter struct {
	mu    sync.RWMutex
	rates map[string]float64
	err   error
}

// NewMockCurrencyConverter creates a converter with no rates
func NewMockCurrencyConverter() *MockCurrencyConverter {
	return &MockCurrencyConverter{rates: make(map[string]float64)}
}

// SetRate sets the from->to rate
func (m *MockCurrencyConverter) SetRate(from, to domain.Currency, rate float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rates[string(from)+":"+string(to)] = rate
}

// SetError makes every conversion fail
func (m *MockCurrencyConverter) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Convert applies the configured rate
func (m *MockCurrencyConverter) Convert(_ context.Context, amount float64, from, to domain.Currency) (float64, error) {
	if from == to {
		return amount, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return 0, m.err
	}
	rate, ok := m.rates[string(from)+":"+string(to)]
	if !ok {
		return 0, fmt.Errorf("no rate for %s->%s", from, to)
	}
	return amount * rate, nil
}
