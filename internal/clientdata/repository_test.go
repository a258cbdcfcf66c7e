package clientdata

import (
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testSchema mirrors the cache database schema
const testSchema = `
CREATE TABLE cdi_history (cache_key TEXT PRIMARY KEY, data TEXT NOT NULL, expires_at INTEGER NOT NULL);
CREATE TABLE exchange_rates (cache_key TEXT PRIMARY KEY, data TEXT NOT NULL, expires_at INTEGER NOT NULL);
CREATE TABLE dividend_history (cache_key TEXT PRIMARY KEY, data TEXT NOT NULL, expires_at INTEGER NOT NULL);
CREATE TABLE aggregator_snapshots (cache_key TEXT PRIMARY KEY, data TEXT NOT NULL, expires_at INTEGER NOT NULL);
`

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// a single connection keeps the in-memory database alive across queries
	db.SetMaxOpenConns(1)

	_, err = db.Exec(testSchema)
	require.NoError(t, err)

	t.Cleanup(func() { _ = db.Close() })
	return db
}

func insertRow(t *testing.T, db *sql.DB, table, key, data string, expiresAt int64) {
	t.Helper()
	_, err := db.Exec("INSERT INTO "+table+" (cache_key, data, expires_at) VALUES (?, ?, ?)", key, data, expiresAt)
	require.NoError(t, err)
}

func TestStore(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	data := map[string]interface{}{"pair": "USD:BRL", "rate": 5.12}
	require.NoError(t, repo.Store(TableExchangeRates, "USD:BRL", data, TTLExchangeRate))

	var stored string
	var expiresAt int64
	err := db.QueryRow("SELECT data, expires_at FROM exchange_rates WHERE cache_key = ?", "USD:BRL").Scan(&stored, &expiresAt)
	require.NoError(t, err)

	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(stored), &parsed))
	assert.Equal(t, 5.12, parsed["rate"])

	expected := time.Now().Add(TTLExchangeRate).Unix()
	assert.InDelta(t, expected, expiresAt, 2)
}

func TestStoreUpsert(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	require.NoError(t, repo.Store(TableExchangeRates, "USD:BRL", 5.0, time.Hour))
	require.NoError(t, repo.Store(TableExchangeRates, "USD:BRL", 5.5, time.Hour))

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM exchange_rates").Scan(&count))
	assert.Equal(t, 1, count)

	raw, err := repo.Get(TableExchangeRates, "USD:BRL")
	require.NoError(t, err)
	assert.JSONEq(t, "5.5", string(raw))
}

func TestGetIfFresh(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	now := time.Now().Unix()

	insertRow(t, db, TableCDIHistory, "fresh", `{"v":1}`, now+3600)
	insertRow(t, db, TableCDIHistory, "stale", `{"v":2}`, now-3600)

	raw, err := repo.GetIfFresh(TableCDIHistory, "fresh")
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":1}`, string(raw))

	raw, err = repo.GetIfFresh(TableCDIHistory, "stale")
	require.NoError(t, err)
	assert.Nil(t, raw)

	raw, err = repo.GetIfFresh(TableCDIHistory, "missing")
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestGet_ReturnsStaleData(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	insertRow(t, db, TableDividendHistory, "ITSA4", `[{"amount":0.02}]`, time.Now().Unix()-86400)

	raw, err := repo.Get(TableDividendHistory, "ITSA4")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"amount":0.02}]`, string(raw))

	raw, err = repo.Get(TableDividendHistory, "missing")
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestLoadFreshAndStale(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	type point struct {
		V float64 `json:"v"`
	}

	insertRow(t, db, TableCDIHistory, "old", `{"v":1.5}`, time.Now().Unix()-10)

	var p point
	ok, err := repo.LoadFresh(TableCDIHistory, "old", &p)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.LoadStale(TableCDIHistory, "old", &p)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1.5, p.V)

	insertRow(t, db, TableCDIHistory, "broken", `not json`, time.Now().Unix()+100)
	_, err = repo.LoadFresh(TableCDIHistory, "broken", &p)
	assert.Error(t, err)
}

func TestDelete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	require.NoError(t, repo.Store(TableAggregatorSnapshots, "item-1", []int{1}, time.Hour))
	require.NoError(t, repo.Delete(TableAggregatorSnapshots, "item-1"))
	require.NoError(t, repo.Delete(TableAggregatorSnapshots, "never-existed"))

	raw, err := repo.Get(TableAggregatorSnapshots, "item-1")
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestDeleteAllExpired(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	now := time.Now().Unix()

	retention := int64(StaleRetention / time.Second)
	for _, table := range AllTables {
		insertRow(t, db, table, "expired", "{}", now-retention-100)
		insertRow(t, db, table, "stale", "{}", now-100)
		insertRow(t, db, table, "fresh", "{}", now+100)
	}

	results, err := repo.DeleteAllExpired()
	require.NoError(t, err)

	for _, table := range AllTables {
		assert.Equal(t, int64(1), results[table], table)

		var count int
		require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&count))
		assert.Equal(t, 2, count, table, "stale rows are kept for fallback")
	}
}

func TestInvalidTableName(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	badTable := "users; DROP TABLE cdi_history"

	assert.Error(t, repo.Store(badTable, "k", 1, time.Hour))
	_, err := repo.Get(badTable, "k")
	assert.Error(t, err)
	_, err = repo.GetIfFresh(badTable, "k")
	assert.Error(t, err)
	assert.Error(t, repo.Delete(badTable, "k"))
	_, err = repo.DeleteExpired(badTable)
	assert.Error(t, err)
}
