package positions

import "github.com/aristath/famfin/internal/domain"

// Summary aggregates enriched positions into portfolio totals
type Summary struct {
	Positions     []domain.EnrichedPosition `json:"positions"`
	TotalInvested float64                   `json:"total_invested"`
	MarketValue   float64                   `json:"market_value"`
	ProfitLoss    float64                   `json:"profit_loss"`
	Profitability float64                   `json:"profitability"`
	MissingQuotes []string                  `json:"missing_quotes,omitempty"`
}

// Enrich joins positions with quotes keyed by normalized ticker.
// A position without a quote keeps a zero price and is flagged QuoteMissing.
func Enrich(positions []domain.Position, quotes map[string]domain.Quote) []domain.EnrichedPosition {
	result := make([]domain.EnrichedPosition, 0, len(positions))
	for _, pos := range positions {
		ep := domain.EnrichedPosition{Position: pos}

		quote, ok := quotes[NormalizeTicker(pos.Ticker)]
		if !ok {
			ep.QuoteMissing = true
			result = append(result, ep)
			continue
		}

		if ep.AssetName == "" && quote.Name != "" {
			ep.AssetName = quote.Name
		}
		ep.CurrentPrice = quote.Price
		ep.MarketValue = pos.Quantity * quote.Price
		ep.ProfitLoss = ep.MarketValue - pos.TotalCost
		ep.Profitability = percentOf(ep.ProfitLoss, pos.TotalCost)

		result = append(result, ep)
	}
	return result
}

// Summarize totals enriched positions. Positions missing a quote count towards
// the invested amount only; profitability is measured over quoted positions.
func Summarize(enriched []domain.EnrichedPosition) Summary {
	s := Summary{Positions: enriched}
	var quotedCost float64
	for _, ep := range enriched {
		s.TotalInvested += ep.TotalCost
		if ep.QuoteMissing {
			s.MissingQuotes = append(s.MissingQuotes, ep.Ticker)
			continue
		}
		quotedCost += ep.TotalCost
		s.MarketValue += ep.MarketValue
		s.ProfitLoss += ep.ProfitLoss
	}
	s.Profitability = percentOf(s.ProfitLoss, quotedCost)
	return s
}

func percentOf(part, whole float64) float64 {
	if whole == 0 {
		return 0
	}
	return part / whole * 100
}
