package clientdata

import (
	"sort"
	"strings"
)

// QuotesKey identifies a batch quote lookup: symbols are uppercased, sorted and
// comma-joined so any ordering of the same set shares an entry.
func QuotesKey(symbols []string) string {
	normalized := make([]string, 0, len(symbols))
	for _, s := range symbols {
		normalized = append(normalized, strings.ToUpper(strings.TrimSpace(s)))
	}
	sort.Strings(normalized)
	return "quotes:" + strings.Join(normalized, ",")
}

// QuoteKey identifies a single symbol's quote
func QuoteKey(symbol string) string {
	return "quote:" + strings.ToUpper(strings.TrimSpace(symbol))
}

// PortfolioKey identifies a portfolio snapshot from a source ("manual", "pluggy") for an owner
func PortfolioKey(source, owner string) string {
	return "portfolio:" + source + ":" + owner
}

// AccountsKey identifies the account list of an aggregator connection
func AccountsKey(connectionID string) string {
	return "accounts:" + connectionID
}

// TransactionsKey identifies an account's transactions, optionally bounded by a date range
func TransactionsKey(connectionID, accountID, from, to string) string {
	key := "transactions:" + connectionID + ":" + accountID
	if from != "" && to != "" {
		key += ":" + from + ":" + to
	}
	return key
}

// SearchKey identifies a ticker search; queries differing only in case or
// surrounding space share an entry
func SearchKey(query string) string {
	return "search:" + strings.ToLower(strings.TrimSpace(query))
}

// HistoryKey identifies a price history lookup
func HistoryKey(symbol, period string) string {
	return "history:" + strings.ToUpper(strings.TrimSpace(symbol)) + ":" + period
}
