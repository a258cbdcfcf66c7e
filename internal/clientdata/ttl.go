package clientdata

import "time"

// In-memory cache TTLs.
const (
	QuoteTTL     = 5 * time.Minute  // Live quotes
	PortfolioTTL = 15 * time.Minute // Broker/aggregator portfolio snapshots and computed summaries
	HistoryTTL   = time.Hour        // Daily price history
	SearchTTL    = time.Hour        // Ticker search results
)

// Persisted cache TTLs, added to time.Now() when storing to calculate expires_at.
const (
	TTLCDIHistory         = 12 * time.Hour // BCB publishes the CDI once per business day
	TTLExchangeRate       = time.Hour
	TTLDividends          = 24 * time.Hour
	TTLAggregatorSnapshot = 15 * time.Minute
)

// StaleRetention is how long an expired persisted entry is kept to serve as a
// fallback when the upstream is failing
const StaleRetention = 7 * 24 * time.Hour
