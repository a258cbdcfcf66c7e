package yahoo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/famfin/internal/domain"
	"github.com/rs/zerolog"
	"github.com/wnjoon/go-yfinance/pkg/models"
	"github.com/wnjoon/go-yfinance/pkg/multi"
	"github.com/wnjoon/go-yfinance/pkg/ticker"
)

// NativeClient serves quotes and history through the go-yfinance library,
// which handles Yahoo's cookie and crumb handshake itself
type NativeClient struct {
	now func() time.Time
	log zerolog.Logger
}

// NewNativeClient creates a go-yfinance backed provider
func NewNativeClient(log zerolog.Logger) *NativeClient {
	return &NativeClient{
		now: time.Now,
		log: log.With().Str("client", "yahoo_native").Logger(),
	}
}

// GetQuote gets the latest price for symbol, falling back from the quote
// endpoint to the info summary and then to the previous close
func (c *NativeClient) GetQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	plain := strings.ToUpper(strings.TrimSpace(symbol))
	yahooSymbol := MapSymbol(plain)

	t, err := ticker.New(yahooSymbol)
	if err != nil {
		return nil, fmt.Errorf("failed to create ticker: %w", err)
	}
	defer t.Close()

	q := &domain.Quote{
		FetchedAt: c.now(),
		Symbol:    plain,
		Name:      plain,
		Currency:  InferCurrency(yahooSymbol),
	}

	if quote, err := t.Quote(); err == nil && quote != nil && quote.RegularMarketPrice > 0 {
		q.Price = quote.RegularMarketPrice
	}

	info, err := t.Info()
	if err == nil && info != nil {
		switch {
		case info.LongName != "":
			q.Name = info.LongName
		case info.ShortName != "":
			q.Name = info.ShortName
		}
		if q.Price <= 0 && info.CurrentPrice > 0 {
			q.Price = info.CurrentPrice
		}
		if q.Price <= 0 && info.RegularMarketPreviousClose > 0 {
			q.Price = info.RegularMarketPreviousClose
		}
		if info.RegularMarketPreviousClose > 0 && q.Price > 0 {
			q.Change = q.Price - info.RegularMarketPreviousClose
			q.ChangePercent = q.Change / info.RegularMarketPreviousClose * 100
		}
	}

	if q.Price <= 0 {
		return nil, fmt.Errorf("invalid symbol %s: no valid price", plain)
	}
	return q, nil
}

// GetHistory fetches daily auto-adjusted bars for a period such as "1y"
func (c *NativeClient) GetHistory(ctx context.Context, symbol, period string) ([]domain.PricePoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t, err := ticker.New(MapSymbol(symbol))
	if err != nil {
		return nil, fmt.Errorf("failed to create ticker: %w", err)
	}
	defer t.Close()

	params := models.HistoryParams{
		Period:     period,
		Interval:   "1d",
		AutoAdjust: true,
	}

	bars, err := t.History(params)
	if err != nil {
		return nil, fmt.Errorf("failed to get historical prices: %w", err)
	}

	points := make([]domain.PricePoint, 0, len(bars))
	for _, bar := range bars {
		points = append(points, domain.PricePoint{
			Date:     bar.Date,
			Open:     bar.Open,
			High:     bar.High,
			Low:      bar.Low,
			Close:    bar.Close,
			Volume:   int64(bar.Volume),
			AdjClose: bar.AdjClose,
		})
	}
	return points, nil
}

// GetLatestCloses downloads recent bars for many symbols in one batch and
// returns the last close per symbol. Symbols that fail are logged and omitted.
func (c *NativeClient) GetLatestCloses(ctx context.Context, symbols []string) (map[string]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(symbols) == 0 {
		return map[string]float64{}, nil
	}

	yahooToPlain := make(map[string]string, len(symbols))
	yahooSymbols := make([]string, 0, len(symbols))
	for _, s := range symbols {
		plain := strings.ToUpper(strings.TrimSpace(s))
		mapped := MapSymbol(plain)
		if _, dup := yahooToPlain[mapped]; dup {
			continue
		}
		yahooToPlain[mapped] = plain
		yahooSymbols = append(yahooSymbols, mapped)
	}

	params := models.DefaultDownloadParams()
	params.Symbols = yahooSymbols
	params.Period = "5d"
	params.Interval = "1d"

	result, err := multi.Download(yahooSymbols, &params)
	if err != nil {
		return nil, fmt.Errorf("failed to download batch: %w", err)
	}

	closes := make(map[string]float64, len(yahooSymbols))
	for _, yahooSymbol := range yahooSymbols {
		if symErr, failed := result.Errors[yahooSymbol]; failed {
			c.log.Warn().Err(symErr).Str("symbol", yahooSymbol).Msg("Batch download failed for symbol")
			continue
		}
		bars := result.Data[yahooSymbol]
		for i := len(bars) - 1; i >= 0; i-- {
			if bars[i].Close > 0 {
				closes[yahooToPlain[yahooSymbol]] = bars[i].Close
				break
			}
		}
	}
	return closes, nil
}
