package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRates struct {
	rates map[string]float64
	err   error
	calls int
}

func (s *stubRates) GetRate(_ context.Context, from, to string) (float64, error) {
	s.calls++
	if s.err != nil {
		return 0, s.err
	}
	if from == to {
		return 1, nil
	}
	rate, ok := s.rates[from+":"+to]
	if !ok {
		return 0, errors.New("no rate")
	}
	return rate, nil
}

func newTestRouter(rates RateSource) http.Handler {
	handler := NewHandler(rates, zerolog.Nop())
	router := chi.NewRouter()
	handler.RegisterRoutes(router)
	return router
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, out))
}

func TestHandleGetRate(t *testing.T) {
	rates := &stubRates{rates: map[string]float64{"USD:BRL": 5.0}}
	router := newTestRouter(rates)

	req := httptest.NewRequest(http.MethodGet, "/currency/rates/usd/brl", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var data map[string]interface{}
	decodeData(t, w, &data)
	assert.Equal(t, "USD", data["from_currency"])
	assert.Equal(t, "BRL", data["to_currency"])
	assert.Equal(t, 5.0, data["rate"])
}

func TestHandleGetRate_InvalidCurrency(t *testing.T) {
	rates := &stubRates{}
	router := newTestRouter(rates)

	req := httptest.NewRequest(http.MethodGet, "/currency/rates/DOLLARS/BRL", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, rates.calls)
}

func TestHandleGetRate_UpstreamFailure(t *testing.T) {
	router := newTestRouter(&stubRates{err: errors.New("dial tcp: connection refused")})

	req := httptest.NewRequest(http.MethodGet, "/currency/rates/USD/BRL", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestHandleConvert(t *testing.T) {
	tests := []struct {
		name       string
		body       map[string]interface{}
		wantStatus int
		wantAmount float64
	}{
		{
			name:       "converts amount",
			body:       map[string]interface{}{"from_currency": "EUR", "to_currency": "BRL", "amount": 100.0},
			wantStatus: http.StatusOK,
			wantAmount: 600,
		},
		{
			name:       "same currency passes through",
			body:       map[string]interface{}{"from_currency": "BRL", "to_currency": "brl", "amount": 42.5},
			wantStatus: http.StatusOK,
			wantAmount: 42.5,
		},
		{
			name:       "missing currency",
			body:       map[string]interface{}{"from_currency": "EUR", "amount": 100.0},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "non-positive amount",
			body:       map[string]interface{}{"from_currency": "EUR", "to_currency": "BRL", "amount": 0},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(&stubRates{rates: map[string]float64{"EUR:BRL": 6.0}})

			bodyBytes, err := json.Marshal(tt.body)
			require.NoError(t, err)

			req := httptest.NewRequest(http.MethodPost, "/currency/convert", bytes.NewReader(bodyBytes))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			require.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus != http.StatusOK {
				return
			}

			var resp ConvertResponse
			decodeData(t, w, &resp)
			assert.InDelta(t, tt.wantAmount, resp.ToAmount, 1e-9)
		})
	}
}

func TestHandleConvert_InvalidBody(t *testing.T) {
	router := newTestRouter(&stubRates{})

	req := httptest.NewRequest(http.MethodPost, "/currency/convert", bytes.NewReader([]byte("{")))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleGetAvailableCurrencies(t *testing.T) {
	router := newTestRouter(&stubRates{})

	req := httptest.NewRequest(http.MethodGet, "/currency/available-currencies", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var data map[string]interface{}
	decodeData(t, w, &data)
	assert.Equal(t, []interface{}{"BRL", "USD", "EUR"}, data["currencies"])
}
