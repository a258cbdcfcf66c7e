// Package positions derives portfolio holdings from a transaction history
// using the weighted average-cost method.
package positions

import (
	"sort"
	"strings"

	"github.com/aristath/famfin/internal/domain"
)

// ClosedEpsilon is the quantity at or below which a position counts as closed.
const ClosedEpsilon = 1e-6

// NormalizeTicker returns the grouping key for a ticker
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// running is the fold state for one ticker
type running struct {
	quantity  float64
	totalCost float64
	assetName string
	assetType string
}

// averagePrice is the current weighted average, 0 when nothing is held
func (r *running) averagePrice() float64 {
	if r.quantity > 0 {
		return r.totalCost / r.quantity
	}
	return 0
}

func (r *running) apply(tx domain.Transaction) {
	switch tx.Type {
	case domain.TransactionBuy:
		r.totalCost += tx.Quantity*tx.Price + tx.Fees
		r.quantity += tx.Quantity
	case domain.TransactionSell:
		r.totalCost -= tx.Quantity * r.averagePrice()
		r.quantity -= tx.Quantity
	}

	if tx.AssetName != "" {
		r.assetName = tx.AssetName
	}
	if tx.AssetType != "" {
		r.assetType = tx.AssetType
	}
}

// groupByTicker buckets transactions by normalized ticker and stable-sorts each
// bucket by date, so same-day trades keep their input order.
func groupByTicker(txs []domain.Transaction) map[string][]domain.Transaction {
	groups := make(map[string][]domain.Transaction)
	for _, tx := range txs {
		key := NormalizeTicker(tx.Ticker)
		groups[key] = append(groups[key], tx)
	}
	for _, group := range groups {
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Date.Before(group[j].Date)
		})
	}
	return groups
}

// ComputePositions folds a transaction list into open positions, one per ticker,
// ordered by ticker. It never fails: callers that need guarantees about the input
// run Validate/ValidateHistory at ingestion.
func ComputePositions(txs []domain.Transaction) []domain.Position {
	groups := groupByTicker(txs)

	result := make([]domain.Position, 0, len(groups))
	for ticker, group := range groups {
		var r running
		for _, tx := range group {
			r.apply(tx)
		}

		if r.quantity <= ClosedEpsilon {
			continue
		}

		result = append(result, domain.Position{
			Ticker:       ticker,
			AssetName:    r.assetName,
			AssetType:    r.assetType,
			Quantity:     r.quantity,
			TotalCost:    r.totalCost,
			AveragePrice: r.totalCost / r.quantity,
		})
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Ticker < result[j].Ticker
	})

	return result
}
