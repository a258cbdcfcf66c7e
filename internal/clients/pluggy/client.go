// Package pluggy is a client for the Pluggy open-finance aggregation API.
package pluggy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/aristath/famfin/internal/reliability"
	"github.com/rs/zerolog"
)

const (
	// DefaultBaseURL is the production Pluggy API
	DefaultBaseURL = "https://api.pluggy.ai"

	// API keys are valid for two hours; refresh a little early
	apiKeyLifetime = 110 * time.Minute
)

var (
	// ErrNotConfigured is returned when client credentials are missing
	ErrNotConfigured = errors.New("pluggy client id and secret are not configured")
	// ErrItemIDRequired is returned when an item-scoped call has no item id
	ErrItemIDRequired = errors.New("itemId is required")
)

// Account is a bank or card account under a connected item
type Account struct {
	ID           string  `json:"id"`
	ItemID       string  `json:"itemId,omitempty"`
	Type         string  `json:"type"`
	Subtype      string  `json:"subtype,omitempty"`
	Name         string  `json:"name"`
	Number       string  `json:"number,omitempty"`
	Balance      float64 `json:"balance"`
	CurrencyCode string  `json:"currencyCode"`
}

// Investment is a holding under a connected item
type Investment struct {
	ID           string   `json:"id"`
	ItemID       string   `json:"itemId,omitempty"`
	Name         string   `json:"name"`
	Code         string   `json:"code,omitempty"`
	Type         string   `json:"type"`
	Subtype      string   `json:"subtype,omitempty"`
	Balance      float64  `json:"balance"`
	Amount       float64  `json:"amount,omitempty"`
	Quantity     *float64 `json:"quantity,omitempty"`
	Value        *float64 `json:"value,omitempty"`
	CurrencyCode string   `json:"currencyCode"`
	Date         string   `json:"date,omitempty"`
}

// Config holds API credentials
type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

// Client talks to Pluggy, caching the API key between calls
type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	client       *http.Client
	log          zerolog.Logger

	mu        sync.Mutex
	apiKey    string
	keyExpiry time.Time
	now       func() time.Time
}

// NewClient creates a Pluggy client
func NewClient(cfg Config, log zerolog.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		client:       &http.Client{Timeout: timeout},
		log:          log.With().Str("client", "pluggy").Logger(),
		now:          time.Now,
	}
}

// Configured reports whether credentials are present
func (c *Client) Configured() bool {
	return c.clientID != "" && c.clientSecret != ""
}

// Authenticate returns a valid API key, requesting a new one when the cached key is stale
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.apiKey != "" && c.now().Before(c.keyExpiry) {
		return c.apiKey, nil
	}

	payload := map[string]string{"clientId": c.clientID, "clientSecret": c.clientSecret}
	var result struct {
		APIKey string `json:"apiKey"`
	}
	if err := c.do(ctx, http.MethodPost, "/auth", "", payload, &result); err != nil {
		return "", fmt.Errorf("failed to authenticate: %w", err)
	}
	if result.APIKey == "" {
		return "", fmt.Errorf("failed to authenticate: empty api key")
	}

	c.apiKey = result.APIKey
	c.keyExpiry = c.now().Add(apiKeyLifetime)
	c.log.Debug().Msg("Obtained API key")
	return c.apiKey, nil
}

// CreateConnectToken returns a short-lived token for the frontend connect widget
func (c *Client) CreateConnectToken(ctx context.Context) (string, error) {
	var result struct {
		AccessToken string `json:"accessToken"`
	}
	if err := c.authorized(ctx, http.MethodPost, "/connect_token", map[string]string{}, &result); err != nil {
		return "", fmt.Errorf("failed to create connect token: %w", err)
	}
	return result.AccessToken, nil
}

// Accounts lists the accounts of a connected item
func (c *Client) Accounts(ctx context.Context, itemID string) ([]Account, error) {
	if itemID == "" {
		return nil, ErrItemIDRequired
	}
	var result struct {
		Results []Account `json:"results"`
	}
	if err := c.authorized(ctx, http.MethodGet, "/accounts?itemId="+url.QueryEscape(itemID), nil, &result); err != nil {
		return nil, fmt.Errorf("failed to fetch accounts: %w", err)
	}
	return result.Results, nil
}

// Investments lists the investments of a connected item
func (c *Client) Investments(ctx context.Context, itemID string) ([]Investment, error) {
	if itemID == "" {
		return nil, ErrItemIDRequired
	}
	var result struct {
		Results []Investment `json:"results"`
	}
	if err := c.authorized(ctx, http.MethodGet, "/investments?itemId="+url.QueryEscape(itemID), nil, &result); err != nil {
		return nil, fmt.Errorf("failed to fetch investments: %w", err)
	}
	return result.Results, nil
}

// DeleteItem disconnects an item
func (c *Client) DeleteItem(ctx context.Context, itemID string) error {
	if itemID == "" {
		return ErrItemIDRequired
	}
	if err := c.authorized(ctx, http.MethodDelete, "/items/"+url.PathEscape(itemID), nil, nil); err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	return nil
}

// authorized runs a request with the API key, re-authenticating once if the key was rejected
func (c *Client) authorized(ctx context.Context, method, path string, payload, out interface{}) error {
	key, err := c.Authenticate(ctx)
	if err != nil {
		return err
	}

	err = c.do(ctx, method, path, key, payload, out)
	var httpErr *reliability.HTTPError
	if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusUnauthorized {
		c.invalidateKey()
		if key, err = c.Authenticate(ctx); err != nil {
			return err
		}
		err = c.do(ctx, method, path, key, payload, out)
	}
	return err
}

func (c *Client) invalidateKey() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.apiKey = ""
}

func (c *Client) do(ctx context.Context, method, path, apiKey string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-KEY", apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &reliability.HTTPError{StatusCode: resp.StatusCode, URL: c.baseURL + path, Body: string(respBody)}
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
