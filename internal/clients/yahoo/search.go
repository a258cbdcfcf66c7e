package yahoo

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/aristath/famfin/internal/domain"
)

// SearchExchanges are the Yahoo exchange codes kept in search results:
// B3 (SAO), NASDAQ (NMS), NYSE (NYQ) and crypto pairs
var SearchExchanges = map[string]bool{
	"SAO":    true,
	"NMS":    true,
	"NYQ":    true,
	"CRYPTO": true,
}

type searchResponse struct {
	Quotes []struct {
		Symbol    string `json:"symbol"`
		ShortName string `json:"shortname"`
		LongName  string `json:"longname"`
		Exchange  string `json:"exchange"`
	} `json:"quotes"`
}

// Search looks up tickers matching query. Only listings on SearchExchanges are
// returned, with B3 symbols stripped of their .SA suffix.
func (c *Client) Search(ctx context.Context, query string) ([]domain.SymbolMatch, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []domain.SymbolMatch{}, nil
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("lang", "pt-BR")

	var result searchResponse
	if err := c.getJSON(ctx, "/v1/finance/search", params, &result); err != nil {
		return nil, fmt.Errorf("failed to search symbols: %w", err)
	}

	matches := make([]domain.SymbolMatch, 0, len(result.Quotes))
	for _, q := range result.Quotes {
		if q.Symbol == "" || !SearchExchanges[q.Exchange] {
			continue
		}
		name := q.LongName
		if name == "" {
			name = q.ShortName
		}
		matches = append(matches, domain.SymbolMatch{
			Symbol:   strings.TrimSuffix(q.Symbol, b3Suffix),
			Name:     name,
			Exchange: q.Exchange,
		})
	}

	c.log.Debug().Str("query", query).Int("matches", len(matches)).Msg("Searched symbols")
	return matches, nil
}
