package clientdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuotesKey_OrderIndependent(t *testing.T) {
	assert.Equal(t, "quotes:PETR4,VALE3", QuotesKey([]string{"vale3", "PETR4"}))
	assert.Equal(t, QuotesKey([]string{"A", "B"}), QuotesKey([]string{"B", "A"}))
}

func TestKeyGenerators(t *testing.T) {
	assert.Equal(t, "quote:ITSA4", QuoteKey(" itsa4 "))
	assert.Equal(t, "portfolio:pluggy:user-1", PortfolioKey("pluggy", "user-1"))
	assert.Equal(t, "accounts:item-9", AccountsKey("item-9"))
	assert.Equal(t, "transactions:c1:a1", TransactionsKey("c1", "a1", "", ""))
	assert.Equal(t, "transactions:c1:a1:2024-01-01:2024-02-01", TransactionsKey("c1", "a1", "2024-01-01", "2024-02-01"))
	assert.Equal(t, "history:BOVA11.SA:1y", HistoryKey("bova11.sa", "1y"))
}
