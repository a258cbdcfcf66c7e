package domain

import (
	"context"
	"time"
)

// QuoteProvider fetches live prices for a single symbol.
// Implementations map user-facing tickers to their upstream symbol themselves.
type QuoteProvider interface {
	GetQuote(ctx context.Context, symbol string) (*Quote, error)
}

// HistoryProvider fetches daily price history for a period such as "1mo", "1y" or "max".
type HistoryProvider interface {
	GetHistory(ctx context.Context, symbol, period string) ([]PricePoint, error)
}

// MarketDataProvider is the union served by the Yahoo clients
type MarketDataProvider interface {
	QuoteProvider
	HistoryProvider
}

// SymbolSearcher looks up tickers by free-text query
type SymbolSearcher interface {
	Search(ctx context.Context, query string) ([]SymbolMatch, error)
}

// DividendProvider fetches dividend events in [from, to]
type DividendProvider interface {
	GetDividends(ctx context.Context, symbol string, from, to time.Time) ([]Dividend, error)
}

// CurrencyConverter converts an amount between currencies
type CurrencyConverter interface {
	Convert(ctx context.Context, amount float64, from, to Currency) (float64, error)
}
