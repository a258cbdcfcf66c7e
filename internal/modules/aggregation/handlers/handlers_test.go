package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aristath/famfin/internal/clients/pluggy"
	"github.com/aristath/famfin/internal/modules/aggregation"
	"github.com/aristath/famfin/internal/reliability"
	"github.com/aristath/famfin/internal/server/request"
	testingpkg "github.com/aristath/famfin/internal/testing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAggregator struct {
	configured bool
}

func (f fakeAggregator) Configured() bool { return f.configured }

func (f fakeAggregator) CreateConnectToken(context.Context) (string, error) {
	return "tok-1", nil
}

func (f fakeAggregator) Accounts(_ context.Context, itemID string) ([]pluggy.Account, error) {
	if itemID == "expired" {
		return nil, errors.New("item consent expired")
	}
	return []pluggy.Account{{ID: "acc-1", Name: "Checking", Balance: 100}}, nil
}

func (f fakeAggregator) Investments(_ context.Context, itemID string) ([]pluggy.Investment, error) {
	if itemID == "expired" {
		return nil, errors.New("item consent expired")
	}
	return []pluggy.Investment{{ID: "inv-1", Name: "CDB", Balance: 5000}}, nil
}

func (f fakeAggregator) DeleteItem(context.Context, string) error { return nil }

// newRouter serves alice, who linked item-1 and expired
func newRouter(t *testing.T, configured bool) *chi.Mux {
	t.Helper()

	items := aggregation.NewItemRepository(testingpkg.NewTestDB(t, "app").Conn(), zerolog.Nop())
	service := aggregation.NewService(fakeAggregator{configured: configured}, aggregation.NewCaches(nil, 0), nil, items, nil, reliability.Policy{}, 2, zerolog.Nop())
	router := chi.NewRouter()
	NewHandler(service, zerolog.Nop()).RegisterRoutes(router)

	if configured {
		for _, id := range []string{"item-1", "expired"} {
			rec := serveAs(router, "alice", http.MethodPost, "/aggregation/items", `{"item_id":"`+id+`","institution_name":"Banco"}`)
			require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		}
	}
	return router
}

func serveAs(router http.Handler, user, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(request.UserHeader, user)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func serve(router http.Handler, method, path string) *httptest.ResponseRecorder {
	return serveAs(router, "alice", method, path, "")
}

func TestAggregationRoutes(t *testing.T) {
	router := newRouter(t, true)

	rec := serve(router, http.MethodPost, "/aggregation/connect-token")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tok-1")

	rec = serve(router, http.MethodGet, "/aggregation/items/item-1/accounts")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "acc-1")

	rec = serve(router, http.MethodGet, "/aggregation/items/item-1/investments")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total_balance":5000`)

	rec = serve(router, http.MethodGet, "/aggregation/items/expired/accounts")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(router, http.MethodGet, "/aggregation/portfolio?items=item-1,expired")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), string(reliability.CodeConsentExpired))

	rec = serve(router, http.MethodGet, "/aggregation/portfolio?items=expired")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Without ?items= every linked item is fetched
	rec = serve(router, http.MethodGet, "/aggregation/portfolio")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"item-1"`)
	assert.Contains(t, rec.Body.String(), string(reliability.CodeConsentExpired))

	rec = serve(router, http.MethodDelete, "/aggregation/items/item-1/")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = serve(router, http.MethodGet, "/aggregation/items")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "item-1")
	assert.Contains(t, rec.Body.String(), `"institution_name":"Banco"`)
}

func TestAggregationRoutes_OtherUsersItems(t *testing.T) {
	router := newRouter(t, true)

	for _, path := range []string{
		"/aggregation/items/item-1/accounts",
		"/aggregation/items/item-1/investments",
		"/aggregation/portfolio?items=item-1",
	} {
		rec := serveAs(router, "bob", http.MethodGet, path, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}

	rec := serveAs(router, "bob", http.MethodDelete, "/aggregation/items/item-1/", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serveAs(router, "bob", http.MethodGet, "/aggregation/items", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"data":[]`)

	rec = serveAs(router, "bob", http.MethodPost, "/aggregation/items", `{"item_id":" "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAggregationRoutes_NotConfigured(t *testing.T) {
	router := newRouter(t, false)

	rec := serve(router, http.MethodGet, "/aggregation/items/item-1/accounts")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = serve(router, http.MethodPost, "/aggregation/connect-token")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
