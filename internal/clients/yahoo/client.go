// Package yahoo fetches quotes, price history and dividends from Yahoo Finance.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/famfin/internal/domain"
	"github.com/aristath/famfin/internal/reliability"
	"github.com/rs/zerolog"
)

const (
	// DefaultBaseURL is the public Yahoo Finance query host
	DefaultBaseURL = "https://query1.finance.yahoo.com"

	userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"
)

// Client is a Yahoo Finance JSON API client
type Client struct {
	baseURL string
	client  *http.Client
	now     func() time.Time
	log     zerolog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithBaseURL points the client at another host, such as an httptest server
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithTimeout overrides the HTTP timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.client.Timeout = timeout
	}
}

// NewClient creates a new Yahoo Finance client
func NewClient(log zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		now: time.Now,
		log: log.With().Str("client", "yahoo").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type quoteResponse struct {
	QuoteResponse struct {
		Result []map[string]interface{} `json:"result"`
		Error  interface{}              `json:"error"`
	} `json:"quoteResponse"`
}

// GetQuote fetches the latest quote for symbol. The returned quote carries the
// caller's symbol, not the mapped Yahoo one.
func (c *Client) GetQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	quotes, err := c.GetQuotes(ctx, []string{symbol})
	if err != nil {
		return nil, err
	}
	quote, ok := quotes[strings.ToUpper(strings.TrimSpace(symbol))]
	if !ok {
		return nil, fmt.Errorf("invalid symbol %s: no quote data returned", symbol)
	}
	return &quote, nil
}

// GetQuotes fetches several symbols in one request. Symbols Yahoo does not
// know, or that come back without a price, are absent from the result.
func (c *Client) GetQuotes(ctx context.Context, symbols []string) (map[string]domain.Quote, error) {
	if len(symbols) == 0 {
		return map[string]domain.Quote{}, nil
	}

	// Yahoo symbol -> caller's symbol
	requested := make(map[string]string, len(symbols))
	yahooSymbols := make([]string, 0, len(symbols))
	for _, s := range symbols {
		plain := strings.ToUpper(strings.TrimSpace(s))
		mapped := MapSymbol(plain)
		if _, dup := requested[mapped]; dup {
			continue
		}
		requested[mapped] = plain
		yahooSymbols = append(yahooSymbols, mapped)
	}

	params := url.Values{}
	params.Set("symbols", strings.Join(yahooSymbols, ","))

	var result quoteResponse
	if err := c.getJSON(ctx, "/v7/finance/quote", params, &result); err != nil {
		return nil, fmt.Errorf("failed to fetch quotes: %w", err)
	}
	if result.QuoteResponse.Error != nil {
		return nil, fmt.Errorf("Yahoo Finance API error: %v", result.QuoteResponse.Error)
	}

	fetchedAt := c.now()
	quotes := make(map[string]domain.Quote, len(result.QuoteResponse.Result))
	for _, raw := range result.QuoteResponse.Result {
		price, ok := getFloat64(raw, "regularMarketPrice")
		if !ok || price <= 0 {
			continue
		}

		yahooSymbol := getString(raw, "symbol", "")
		plain, ok := requested[strings.ToUpper(yahooSymbol)]
		if !ok {
			plain = UnmapSymbol(yahooSymbol)
		}

		quote := domain.Quote{
			FetchedAt: fetchedAt,
			Symbol:    plain,
			Name:      getString(raw, "longName", getString(raw, "shortName", plain)),
			Currency:  domain.Currency(getString(raw, "currency", string(InferCurrency(yahooSymbol)))),
			Price:     price,
		}
		quote.Change, _ = getFloat64(raw, "regularMarketChange")
		quote.ChangePercent, _ = getFloat64(raw, "regularMarketChangePercent")
		if ts, ok := getFloat64(raw, "regularMarketTime"); ok && ts > 0 {
			quote.MarketTime = time.Unix(int64(ts), 0).UTC()
		}
		quotes[plain] = quote
	}

	c.log.Debug().
		Int("requested", len(yahooSymbols)).
		Int("returned", len(quotes)).
		Msg("Fetched quotes")

	return quotes, nil
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp []int64 `json:"timestamp"`
			Events    struct {
				Dividends map[string]struct {
					Amount float64 `json:"amount"`
					Date   int64   `json:"date"`
				} `json:"dividends"`
			} `json:"events"`
			Indicators struct {
				Quote []struct {
					Open   []float64 `json:"open"`
					High   []float64 `json:"high"`
					Low    []float64 `json:"low"`
					Close  []float64 `json:"close"`
					Volume []int64   `json:"volume"`
				} `json:"quote"`
				AdjClose []struct {
					AdjClose []float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (c *Client) fetchChart(ctx context.Context, symbol string, params url.Values) (*chartResponse, error) {
	yahooSymbol := MapSymbol(symbol)

	var result chartResponse
	if err := c.getJSON(ctx, "/v8/finance/chart/"+url.PathEscape(yahooSymbol), params, &result); err != nil {
		return nil, err
	}
	if e := result.Chart.Error; e != nil {
		if strings.EqualFold(e.Code, "Not Found") {
			return nil, fmt.Errorf("invalid symbol %s: %s", symbol, e.Description)
		}
		return nil, fmt.Errorf("Yahoo Finance API error for %s: %s %s", symbol, e.Code, e.Description)
	}
	return &result, nil
}

// GetHistory fetches daily bars for a range such as "1mo", "1y" or "max".
// Days where Yahoo reports no prices are skipped.
func (c *Client) GetHistory(ctx context.Context, symbol, period string) ([]domain.PricePoint, error) {
	params := url.Values{}
	params.Set("interval", "1d")
	params.Set("range", period)

	result, err := c.fetchChart(ctx, symbol, params)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch history for %s: %w", symbol, err)
	}

	if len(result.Chart.Result) == 0 || len(result.Chart.Result[0].Indicators.Quote) == 0 {
		c.log.Warn().Str("symbol", symbol).Msg("No historical data returned")
		return []domain.PricePoint{}, nil
	}

	chart := result.Chart.Result[0]
	quote := chart.Indicators.Quote[0]

	var adjClose []float64
	if len(chart.Indicators.AdjClose) > 0 {
		adjClose = chart.Indicators.AdjClose[0].AdjClose
	}

	points := make([]domain.PricePoint, 0, len(chart.Timestamp))
	for i, ts := range chart.Timestamp {
		if i >= len(quote.Open) || i >= len(quote.High) || i >= len(quote.Low) || i >= len(quote.Close) {
			continue
		}
		// JSON nulls decode as zero
		if quote.Open[i] == 0 && quote.High[i] == 0 && quote.Low[i] == 0 && quote.Close[i] == 0 {
			continue
		}

		point := domain.PricePoint{
			Date:     time.Unix(ts, 0).UTC(),
			Open:     quote.Open[i],
			High:     quote.High[i],
			Low:      quote.Low[i],
			Close:    quote.Close[i],
			AdjClose: quote.Close[i],
		}
		if i < len(quote.Volume) {
			point.Volume = quote.Volume[i]
		}
		if i < len(adjClose) && adjClose[i] != 0 {
			point.AdjClose = adjClose[i]
		}
		points = append(points, point)
	}

	return points, nil
}

// GetDividends fetches dividend events paid in [from, to], oldest first
func (c *Client) GetDividends(ctx context.Context, symbol string, from, to time.Time) ([]domain.Dividend, error) {
	params := url.Values{}
	params.Set("interval", "1d")
	params.Set("events", "div")
	params.Set("period1", strconv.FormatInt(from.Unix(), 10))
	params.Set("period2", strconv.FormatInt(to.Unix(), 10))

	result, err := c.fetchChart(ctx, symbol, params)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch dividends for %s: %w", symbol, err)
	}

	if len(result.Chart.Result) == 0 {
		return []domain.Dividend{}, nil
	}

	events := result.Chart.Result[0].Events.Dividends
	dividends := make([]domain.Dividend, 0, len(events))
	for _, ev := range events {
		dividends = append(dividends, domain.Dividend{
			Date:   time.Unix(ev.Date, 0).UTC(),
			Amount: ev.Amount,
		})
	}
	sort.Slice(dividends, func(i, j int) bool {
		return dividends[i].Date.Before(dividends[j].Date)
	})

	return dividends, nil
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out interface{}) error {
	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	// Yahoo rejects requests without a browser-like agent
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return &reliability.HTTPError{StatusCode: resp.StatusCode, URL: c.baseURL + path, Body: string(body)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// Helper functions to safely extract values from the untyped quote map

func getFloat64(m map[string]interface{}, key string) (float64, bool) {
	switch v := m[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

func getString(m map[string]interface{}, key string, defaultVal string) string {
	if v, ok := m[key].(string); ok && v != "" {
		return v
	}
	return defaultVal
}
