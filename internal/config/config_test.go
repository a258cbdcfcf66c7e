package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("FAMFIN_DATA_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "BRL", cfg.BaseCurrency)
	assert.Equal(t, "http", cfg.QuoteProvider)
	assert.Equal(t, 5*time.Minute, cfg.Cache.QuoteTTL)
	assert.Equal(t, 15*time.Minute, cfg.Cache.PortfolioTTL)
	assert.Equal(t, 3, cfg.Retry.MaxRetries)
	assert.Equal(t, time.Second, cfg.Retry.BaseDelay)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.False(t, cfg.Pluggy.Enabled())
	assert.False(t, cfg.Backup.Enabled())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("FAMFIN_DATA_DIR", t.TempDir())
	t.Setenv("PORT", "9090")
	t.Setenv("QUOTE_PROVIDER", "NATIVE")
	t.Setenv("QUOTE_CACHE_TTL", "2m")
	t.Setenv("RETRY_BASE_DELAY", "250")
	t.Setenv("PLUGGY_CLIENT_ID", "id")
	t.Setenv("PLUGGY_CLIENT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "native", cfg.QuoteProvider)
	assert.Equal(t, 2*time.Minute, cfg.Cache.QuoteTTL)
	assert.Equal(t, 250*time.Millisecond, cfg.Retry.BaseDelay)
	assert.True(t, cfg.Pluggy.Enabled())
}

func TestLoad_RejectsUnknownProvider(t *testing.T) {
	t.Setenv("FAMFIN_DATA_DIR", t.TempDir())
	t.Setenv("QUOTE_PROVIDER", "carrier-pigeon")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Port:          8080,
			BaseCurrency:  "BRL",
			QuoteProvider: "http",
			Cache:         CacheConfig{QuoteTTL: time.Minute, PortfolioTTL: time.Minute},
			Retry:         RetryConfig{MaxRetries: 3, BaseDelay: time.Second},
			FanOutLimit:   4,
		}
	}

	require.NoError(t, valid().Validate())

	c := valid()
	c.Retry.MaxRetries = -1
	assert.Error(t, c.Validate())

	c = valid()
	c.BaseCurrency = "REAL"
	assert.Error(t, c.Validate())

	c = valid()
	c.FanOutLimit = 0
	assert.Error(t, c.Validate())

	c = valid()
	c.Backup = BackupConfig{Bucket: "b", AccessKeyID: "only-id"}
	assert.Error(t, c.Validate())
}
