package yahoo

import (
	"regexp"
	"strings"

	"github.com/aristath/famfin/internal/domain"
)

// B3 tickers: four letters and a one or two digit share class (PETR4, TAEE11)
var b3Ticker = regexp.MustCompile(`^[A-Z]{4}[0-9]{1,2}$`)

var cryptoPairs = map[string]string{
	"BTC": "BTC-USD",
	"ETH": "ETH-USD",
}

// B3-listed ETFs that may be written without a share class digit
var b3ETFPrefixes = []string{"BOVA", "SMAL", "IVVB"}

const b3Suffix = ".SA"

// MapSymbol converts a user-facing ticker to the symbol Yahoo Finance expects.
// Symbols that already carry an exchange suffix or pair marker are returned as-is.
func MapSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if s == "" || strings.ContainsAny(s, ".-^=") {
		return s
	}

	if pair, ok := cryptoPairs[s]; ok {
		return pair
	}
	if b3Ticker.MatchString(s) {
		return s + b3Suffix
	}
	for _, prefix := range b3ETFPrefixes {
		if strings.HasPrefix(s, prefix) {
			return s + b3Suffix
		}
	}
	return s
}

// UnmapSymbol is the inverse of MapSymbol for the mappings it applies
func UnmapSymbol(yahooSymbol string) string {
	s := strings.ToUpper(strings.TrimSpace(yahooSymbol))
	for plain, pair := range cryptoPairs {
		if s == pair {
			return plain
		}
	}
	return strings.TrimSuffix(s, b3Suffix)
}

// InferCurrency guesses the trading currency from a Yahoo symbol when the
// upstream response does not carry one
func InferCurrency(yahooSymbol string) domain.Currency {
	if strings.HasSuffix(strings.ToUpper(yahooSymbol), b3Suffix) {
		return domain.CurrencyBRL
	}
	return domain.CurrencyUSD
}
