package yahoo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aristath/famfin/internal/reliability"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(zerolog.Nop(), WithBaseURL(server.URL), WithTimeout(5*time.Second))
}

func TestClient_GetQuotes(t *testing.T) {
	var gotSymbols, gotAgent string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v7/finance/quote", r.URL.Path)
		gotSymbols = r.URL.Query().Get("symbols")
		gotAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"quoteResponse":{"result":[
			{"symbol":"PETR4.SA","longName":"Petroleo Brasileiro","currency":"BRL","regularMarketPrice":38.5,
			 "regularMarketChange":0.5,"regularMarketChangePercent":1.3,"regularMarketTime":1717243200},
			{"symbol":"AAPL","shortName":"Apple","regularMarketPrice":190.1},
			{"symbol":"DEAD3.SA","regularMarketPrice":null}
		],"error":null}}`))
	})

	quotes, err := client.GetQuotes(context.Background(), []string{"petr4", "AAPL", "DEAD3", "PETR4"})
	require.NoError(t, err)

	assert.Equal(t, "PETR4.SA,AAPL,DEAD3.SA", gotSymbols)
	assert.Contains(t, gotAgent, "Mozilla")
	require.Len(t, quotes, 2)

	petr := quotes["PETR4"]
	assert.Equal(t, "PETR4", petr.Symbol)
	assert.Equal(t, "Petroleo Brasileiro", petr.Name)
	assert.Equal(t, "BRL", string(petr.Currency))
	assert.Equal(t, 38.5, petr.Price)
	assert.Equal(t, 1.3, petr.ChangePercent)
	assert.Equal(t, int64(1717243200), petr.MarketTime.Unix())

	aapl := quotes["AAPL"]
	assert.Equal(t, "Apple", aapl.Name)
	assert.Equal(t, "USD", string(aapl.Currency))
}

func TestClient_GetQuote_Missing(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"quoteResponse":{"result":[],"error":null}}`))
	})

	_, err := client.GetQuote(context.Background(), "XXXX9")
	require.Error(t, err)
	assert.Equal(t, reliability.CodeInvalidSymbol, reliability.Classify(err).Code)
}

func TestClient_HTTPErrorsAreClassified(t *testing.T) {
	tests := []struct {
		status int
		code   reliability.ErrorCode
	}{
		{http.StatusTooManyRequests, reliability.CodeRateLimitExceeded},
		{http.StatusServiceUnavailable, reliability.CodeInstitutionUnavailable},
		{http.StatusNotFound, reliability.CodeInvalidSymbol},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.status)
			})

			_, err := client.GetQuote(context.Background(), "PETR4")
			require.Error(t, err)

			var httpErr *reliability.HTTPError
			require.ErrorAs(t, err, &httpErr)
			assert.Equal(t, tt.status, httpErr.StatusCode)
			assert.Equal(t, tt.code, reliability.Classify(err).Code)
		})
	}
}

func TestClient_GetHistory(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v8/finance/chart/VALE3.SA", r.URL.Path)
		assert.Equal(t, "1mo", r.URL.Query().Get("range"))
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		_, _ = w.Write([]byte(`{"chart":{"result":[{
			"timestamp":[1704186000,1704272400,1704358800],
			"indicators":{
				"quote":[{"open":[60,null,61],"high":[62,null,63],"low":[59,null,60],"close":[61,null,62],"volume":[1000,null,2000]}],
				"adjclose":[{"adjclose":[60.5,null,null]}]
			}}],"error":null}}`))
	})

	points, err := client.GetHistory(context.Background(), "VALE3", "1mo")
	require.NoError(t, err)
	require.Len(t, points, 2)

	assert.Equal(t, 61.0, points[0].Close)
	assert.Equal(t, 60.5, points[0].AdjClose)
	assert.Equal(t, int64(1000), points[0].Volume)
	assert.Equal(t, 62.0, points[1].AdjClose) // falls back to close
	assert.True(t, points[0].Date.Before(points[1].Date))
}

func TestClient_GetHistory_ChartError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`))
	})

	_, err := client.GetHistory(context.Background(), "GONE3", "1y")
	require.Error(t, err)
	assert.Equal(t, reliability.CodeInvalidSymbol, reliability.Classify(err).Code)
}

func TestClient_GetDividends(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/v8/finance/chart/ITSA4.SA", r.URL.Path)
		assert.Equal(t, "div", q.Get("events"))
		assert.Equal(t, "1704067200", q.Get("period1"))
		assert.Equal(t, "1735603200", q.Get("period2"))
		_, _ = w.Write([]byte(`{"chart":{"result":[{"events":{"dividends":{
			"1719792000":{"amount":0.02,"date":1719792000},
			"1704153600":{"amount":0.5,"date":1704153600}
		}}}],"error":null}}`))
	})

	divs, err := client.GetDividends(context.Background(), "ITSA4", from, to)
	require.NoError(t, err)
	require.Len(t, divs, 2)
	assert.Equal(t, 0.5, divs[0].Amount)
	assert.Equal(t, 0.02, divs[1].Amount)
}

func TestClient_GetDividends_NoEvents(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"chart":{"result":[{"timestamp":[1]}],"error":null}}`))
	})

	divs, err := client.GetDividends(context.Background(), "AAPL", time.Now().AddDate(-1, 0, 0), time.Now())
	require.NoError(t, err)
	assert.Empty(t, divs)
}

func TestClient_ContextCancelled(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.GetQuote(ctx, "PETR4")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
