package clientdata

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	clock := newFakeClock()
	quotes := NewCache[float64]("quotes", QuoteTTL, WithClock(clock.Now))
	portfolios := NewCache[string]("portfolios", PortfolioTTL, WithClock(clock.Now))

	r := NewRegistry()
	r.Register(quotes)
	r.Register(portfolios)

	quotes.Set(QuoteKey("petr4"), 38.5, 0)
	portfolios.Set(PortfolioKey("manual", "u1"), "snapshot", 0)
	portfolios.Set(PortfolioKey("pluggy", "item"), "snapshot", 0)

	stats := r.Stats()
	require.Len(t, stats, 2)
	assert.Equal(t, "portfolios", stats[0].Name)
	assert.Equal(t, 2, stats[0].Size)
	assert.Equal(t, "quotes", stats[1].Name)

	// quotes expire first
	clock.Advance(6 * time.Minute)
	swept := r.Cleanup()
	assert.Equal(t, 1, swept["quotes"])
	assert.Equal(t, 0, swept["portfolios"])

	assert.Zero(t, r.ClearByPattern(nil))
	assert.Equal(t, 1, r.ClearByPattern(regexp.MustCompile(`^portfolio:pluggy:`)))

	r.ClearAll()
	for _, s := range r.Stats() {
		assert.Zero(t, s.Size)
	}
}
