package exchangerate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aristath/famfin/internal/clientdata"
	"github.com/aristath/famfin/internal/domain"
	"github.com/aristath/famfin/internal/reliability"
	testhelpers "github.com/aristath/famfin/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepo(t *testing.T) *clientdata.Repository {
	t.Helper()
	db := testhelpers.NewTestDB(t, "cache")
	return clientdata.NewRepository(db.Conn())
}

func TestClient_GetRate_FetchesAndCaches(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/USD", r.URL.Path)
		_, _ = w.Write([]byte(`{"base":"USD","rates":{"BRL":5.1,"EUR":0.92}}`))
	}))
	defer server.Close()

	monitor := reliability.NewMonitor(zerolog.Nop())
	client := NewClient(server.URL, newRepo(t), monitor, zerolog.Nop())

	rate, err := client.GetRate(context.Background(), "usd", "BRL")
	require.NoError(t, err)
	assert.Equal(t, 5.1, rate)

	rate, err = client.GetRate(context.Background(), "USD", "BRL")
	require.NoError(t, err)
	assert.Equal(t, 5.1, rate)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	assert.Equal(t, 1, monitor.EndpointStats(reliability.EndpointExchangeRate).TotalCalls)
}

func TestClient_Convert(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"rates":{"BRL":5.0}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil, zerolog.Nop())

	got, err := client.Convert(context.Background(), 10, domain.CurrencyUSD, domain.CurrencyBRL)
	require.NoError(t, err)
	assert.Equal(t, 50.0, got)

	same, err := client.Convert(context.Background(), 10, domain.CurrencyBRL, domain.CurrencyBRL)
	require.NoError(t, err)
	assert.Equal(t, 10.0, same)
}

func TestClient_StaleFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer server.Close()

	repo := newRepo(t)
	require.NoError(t, repo.Store(clientdata.TableExchangeRates, "EUR:BRL", cachedExchangeRate{Rate: 5.5}, -time.Hour))

	client := NewClient(server.URL, repo, nil, zerolog.Nop())

	rate, err := client.GetRate(context.Background(), "EUR", "BRL")
	require.NoError(t, err)
	assert.Equal(t, 5.5, rate)

	_, err = client.GetRate(context.Background(), "GBP", "BRL")
	require.Error(t, err)
	assert.Equal(t, reliability.CodeQuoteServiceDown, reliability.Classify(err).Code)
}

func TestClient_MissingRate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"rates":{"EUR":0.9}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil, zerolog.Nop())
	_, err := client.GetRate(context.Background(), "USD", "JPY")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate not found")
}
