// Package exchangerate provides currency exchange rate fetching and caching functionality.
package exchangerate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aristath/famfin/internal/clientdata"
	"github.com/aristath/famfin/internal/domain"
	"github.com/aristath/famfin/internal/reliability"
	"github.com/rs/zerolog"
)

// DefaultBaseURL is the exchangerate-api.com v4 endpoint
const DefaultBaseURL = "https://api.exchangerate-api.com/v4/latest"

// Client for exchangerate-api.com
type Client struct {
	baseURL   string
	client    *http.Client
	log       zerolog.Logger
	cacheRepo *clientdata.Repository
	monitor   *reliability.Monitor
}

// NewClient creates a new exchangerate-api.com client.
// cacheRepo and monitor are optional; nil disables caching or call recording.
func NewClient(baseURL string, cacheRepo *clientdata.Repository, monitor *reliability.Monitor, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    &http.Client{Timeout: 10 * time.Second},
		log:       log.With().Str("client", "exchangerate-api").Logger(),
		cacheRepo: cacheRepo,
		monitor:   monitor,
	}
}

// cachedExchangeRate is the structure stored in the cache
type cachedExchangeRate struct {
	Rate float64 `json:"rate"`
}

// Convert converts amount between currencies using GetRate
func (c *Client) Convert(ctx context.Context, amount float64, from, to domain.Currency) (float64, error) {
	rate, err := c.GetRate(ctx, string(from), string(to))
	if err != nil {
		return 0, err
	}
	return amount * rate, nil
}

// GetRate fetches an exchange rate with cache.
// If the API fails, returns stale cached data if available.
func (c *Client) GetRate(ctx context.Context, fromCurrency, toCurrency string) (float64, error) {
	fromCurrency = strings.ToUpper(fromCurrency)
	toCurrency = strings.ToUpper(toCurrency)
	if fromCurrency == toCurrency {
		return 1.0, nil
	}

	cacheKey := fromCurrency + ":" + toCurrency

	if c.cacheRepo != nil {
		var cached cachedExchangeRate
		if ok, err := c.cacheRepo.LoadFresh(clientdata.TableExchangeRates, cacheKey, &cached); err == nil && ok {
			c.log.Debug().
				Str("from", fromCurrency).
				Str("to", toCurrency).
				Float64("rate", cached.Rate).
				Msg("Cache hit")
			return cached.Rate, nil
		}
	}

	rate, err := reliability.Measure(c.monitor, reliability.EndpointExchangeRate, func() (float64, error) {
		return c.fetchRate(ctx, fromCurrency, toCurrency)
	})
	if err != nil {
		if staleRate, ok := c.getStaleFromCache(cacheKey); ok {
			c.log.Warn().
				Err(err).
				Str("from", fromCurrency).
				Str("to", toCurrency).
				Float64("rate", staleRate).
				Msg("API failed, using stale cached rate")
			return staleRate, nil
		}
		return 0, err
	}

	if c.cacheRepo != nil {
		cached := cachedExchangeRate{Rate: rate}
		if err := c.cacheRepo.Store(clientdata.TableExchangeRates, cacheKey, cached, clientdata.TTLExchangeRate); err != nil {
			c.log.Warn().Err(err).Str("pair", cacheKey).Msg("Failed to cache exchange rate")
		}
	}

	c.log.Info().
		Str("from", fromCurrency).
		Str("to", toCurrency).
		Float64("rate", rate).
		Msg("Fetched rate")

	return rate, nil
}

func (c *Client) fetchRate(ctx context.Context, fromCurrency, toCurrency string) (float64, error) {
	url := fmt.Sprintf("%s/%s", c.baseURL, fromCurrency)
	c.log.Debug().Str("url", url).Msg("Fetching rates")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return 0, &reliability.HTTPError{StatusCode: resp.StatusCode, URL: url, Body: string(body)}
	}

	var result struct {
		Rates map[string]float64 `json:"rates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("failed to parse response: %w", err)
	}

	rate, exists := result.Rates[toCurrency]
	if !exists || rate <= 0 {
		return 0, fmt.Errorf("rate not found for %s->%s", fromCurrency, toCurrency)
	}
	return rate, nil
}

// getStaleFromCache retrieves a cached rate even if expired
func (c *Client) getStaleFromCache(cacheKey string) (float64, bool) {
	if c.cacheRepo == nil {
		return 0, false
	}

	var cached cachedExchangeRate
	ok, err := c.cacheRepo.LoadStale(clientdata.TableExchangeRates, cacheKey, &cached)
	if err != nil || !ok {
		return 0, false
	}
	return cached.Rate, true
}
