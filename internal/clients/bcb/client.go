// Package bcb reads time series from the Banco Central do Brasil SGS API.
package bcb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/famfin/internal/reliability"
	"github.com/rs/zerolog"
)

const (
	// DefaultBaseURL is the public SGS host
	DefaultBaseURL = "https://api.bcb.gov.br"

	// SeriesCDI is the daily CDI rate series, in percent per day
	SeriesCDI = 12

	dateLayout = "02/01/2006"
)

// DailyRate is one observation of a daily percentage series
type DailyRate struct {
	Date time.Time `json:"date"`
	Rate float64   `json:"rate"` // Percent, e.g. 0.043739 means 0.043739%
}

// Client for the SGS "dados/serie" endpoint
type Client struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewClient creates a client. An empty baseURL uses DefaultBaseURL.
func NewClient(baseURL string, timeout time.Duration, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		log:     log.With().Str("client", "bcb").Logger(),
	}
}

type sgsRecord struct {
	Data  string `json:"data"`
	Valor string `json:"valor"`
}

// LastN fetches the last n observations of a series, sorted oldest first
func (c *Client) LastN(ctx context.Context, series, n int) ([]DailyRate, error) {
	if n <= 0 {
		return nil, fmt.Errorf("observation count must be positive, got %d", n)
	}

	reqURL := fmt.Sprintf("%s/dados/serie/bcdata.sgs.%d/dados/ultimos/%d?formato=json", c.baseURL, series, n)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch series %d: %w", series, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &reliability.HTTPError{StatusCode: resp.StatusCode, URL: reqURL, Body: string(body)}
	}

	var records []sgsRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("invalid data format from BCB: %w", err)
	}

	rates := make([]DailyRate, 0, len(records))
	for _, r := range records {
		date, err := time.Parse(dateLayout, r.Data)
		if err != nil {
			c.log.Warn().Str("date", r.Data).Msg("Skipping observation with unparseable date")
			continue
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(r.Valor), 64)
		if err != nil {
			c.log.Warn().Str("value", r.Valor).Msg("Skipping observation with unparseable value")
			continue
		}
		rates = append(rates, DailyRate{Date: date, Rate: value})
	}

	sort.SliceStable(rates, func(i, j int) bool {
		return rates[i].Date.Before(rates[j].Date)
	})

	c.log.Debug().Int("series", series).Int("observations", len(rates)).Msg("Fetched series")
	return rates, nil
}

// CDI fetches the last n daily CDI rates
func (c *Client) CDI(ctx context.Context, n int) ([]DailyRate, error) {
	return c.LastN(ctx, SeriesCDI, n)
}
