package positions

import (
	"math"
	"testing"
	"time"

	"github.com/aristath/famfin/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseDate = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func trade(ticker string, typ domain.TransactionType, qty, price, fees float64, day int) domain.Transaction {
	return domain.Transaction{
		Ticker:   ticker,
		Type:     typ,
		Quantity: qty,
		Price:    price,
		Fees:     fees,
		Date:     baseDate.AddDate(0, 0, day),
	}
}

func buy(ticker string, qty, price float64, day int) domain.Transaction {
	return trade(ticker, domain.TransactionBuy, qty, price, 0, day)
}

func sell(ticker string, qty, price float64, day int) domain.Transaction {
	return trade(ticker, domain.TransactionSell, qty, price, 0, day)
}

func findPosition(t *testing.T, positions []domain.Position, ticker string) domain.Position {
	t.Helper()
	for _, p := range positions {
		if p.Ticker == ticker {
			return p
		}
	}
	t.Fatalf("position %s not found in %+v", ticker, positions)
	return domain.Position{}
}

func TestComputePositions_AverageCost(t *testing.T) {
	positions := ComputePositions([]domain.Transaction{
		buy("PETR4", 10, 10, 0),
		buy("PETR4", 10, 20, 1),
	})

	require.Len(t, positions, 1)
	p := positions[0]
	assert.InDelta(t, 20, p.Quantity, 1e-9)
	assert.InDelta(t, 300, p.TotalCost, 1e-9)
	assert.InDelta(t, 15, p.AveragePrice, 1e-9)
}

func TestComputePositions_SellReducesCostProportionally(t *testing.T) {
	positions := ComputePositions([]domain.Transaction{
		buy("PETR4", 10, 10, 0),
		buy("PETR4", 10, 20, 1),
		sell("PETR4", 5, 30, 2),
	})

	require.Len(t, positions, 1)
	p := positions[0]
	assert.InDelta(t, 15, p.Quantity, 1e-9)
	assert.InDelta(t, 225, p.TotalCost, 1e-9)
	assert.InDelta(t, 15, p.AveragePrice, 1e-9)
}

func TestComputePositions_FeesIncludedInBasis(t *testing.T) {
	positions := ComputePositions([]domain.Transaction{
		trade("ITSA4", domain.TransactionBuy, 1, 100, 5, 0),
	})

	require.Len(t, positions, 1)
	assert.InDelta(t, 105, positions[0].TotalCost, 1e-9)
	assert.InDelta(t, 105, positions[0].AveragePrice, 1e-9)
}

func TestComputePositions_ClosedPositionOmitted(t *testing.T) {
	positions := ComputePositions([]domain.Transaction{
		buy("VALE3", 10, 10, 0),
		sell("VALE3", 10, 12, 1),
		buy("BBAS3", 1, 50, 0),
	})

	require.Len(t, positions, 1)
	assert.Equal(t, "BBAS3", positions[0].Ticker)
}

func TestComputePositions_DustBelowEpsilonOmitted(t *testing.T) {
	positions := ComputePositions([]domain.Transaction{
		buy("BTC", 1, 100000, 0),
		sell("BTC", 1-5e-7, 110000, 1),
	})

	assert.Empty(t, positions)
}

func TestComputePositions_StableOrderIsIdempotent(t *testing.T) {
	// Same-day trades per ticker keep their relative order; only the
	// interleaving across tickers and across days differs.
	a := []domain.Transaction{
		buy("PETR4", 10, 10, 0),
		buy("VALE3", 5, 60, 0),
		sell("PETR4", 4, 11, 1),
		buy("PETR4", 6, 12, 1),
		buy("VALE3", 5, 70, 2),
	}
	b := []domain.Transaction{
		buy("VALE3", 5, 70, 2),
		buy("VALE3", 5, 60, 0),
		buy("PETR4", 10, 10, 0),
		sell("PETR4", 4, 11, 1),
		buy("PETR4", 6, 12, 1),
	}

	assert.Equal(t, ComputePositions(a), ComputePositions(b))
	assert.Equal(t, ComputePositions(a), ComputePositions(a))
}

func TestComputePositions_SameDayOrderMatters(t *testing.T) {
	// On the same day, sell-then-buy and buy-then-sell give different bases,
	// which shows input order is preserved for ties.
	sellFirst := ComputePositions([]domain.Transaction{
		buy("X", 10, 10, 0),
		sell("X", 5, 10, 1),
		buy("X", 5, 20, 1),
	})
	buyFirst := ComputePositions([]domain.Transaction{
		buy("X", 10, 10, 0),
		buy("X", 5, 20, 1),
		sell("X", 5, 10, 1),
	})

	require.Len(t, sellFirst, 1)
	require.Len(t, buyFirst, 1)
	assert.InDelta(t, 150, sellFirst[0].TotalCost, 1e-9)
	assert.InDelta(t, 200.0/15.0*10, buyFirst[0].TotalCost, 1e-9)
}

func TestComputePositions_GroupsCaseInsensitively(t *testing.T) {
	positions := ComputePositions([]domain.Transaction{
		buy("petr4", 10, 10, 0),
		buy(" PETR4 ", 10, 20, 1),
	})

	require.Len(t, positions, 1)
	assert.Equal(t, "PETR4", positions[0].Ticker)
	assert.InDelta(t, 20, positions[0].Quantity, 1e-9)
}

func TestComputePositions_LastNonEmptyMetadataWins(t *testing.T) {
	first := buy("HGLG11", 1, 150, 0)
	first.AssetName = "CSHG Logistica"
	first.AssetType = "FII"
	second := buy("HGLG11", 1, 160, 1)
	third := buy("HGLG11", 1, 170, 2)
	third.AssetName = "CGHG Logistica FII"

	positions := ComputePositions([]domain.Transaction{third, first, second})

	require.Len(t, positions, 1)
	assert.Equal(t, "CGHG Logistica FII", positions[0].AssetName)
	assert.Equal(t, "FII", positions[0].AssetType)
}

func TestComputePositions_SortedByTicker(t *testing.T) {
	positions := ComputePositions([]domain.Transaction{
		buy("VALE3", 1, 1, 0),
		buy("ABEV3", 1, 1, 0),
		buy("MGLU3", 1, 1, 0),
	})

	require.Len(t, positions, 3)
	assert.Equal(t, []string{"ABEV3", "MGLU3", "VALE3"},
		[]string{positions[0].Ticker, positions[1].Ticker, positions[2].Ticker})
}

func TestComputePositions_SellWithoutHoldingsUsesZeroAverage(t *testing.T) {
	// The calculator is permissive; ValidateHistory rejects this at ingestion.
	positions := ComputePositions([]domain.Transaction{
		sell("X", 5, 10, 0),
		buy("X", 10, 10, 1),
	})

	require.Len(t, positions, 1)
	assert.InDelta(t, 5, positions[0].Quantity, 1e-9)
	assert.InDelta(t, 100, positions[0].TotalCost, 1e-9)
}

func TestComputePositions_Empty(t *testing.T) {
	assert.Empty(t, ComputePositions(nil))
}

func TestComputePositions_DoesNotMutateInput(t *testing.T) {
	input := []domain.Transaction{
		buy("X", 1, 10, 2),
		buy("X", 1, 10, 0),
	}
	ComputePositions(input)

	assert.Equal(t, baseDate.AddDate(0, 0, 2), input[0].Date)
	assert.False(t, math.IsNaN(input[0].Price))
}

func TestComputePositions_RepeatedPartialSellsKeepAverage(t *testing.T) {
	txs := []domain.Transaction{buy("HGLG11", 1000, 33.33, 0)}
	for day := 1; day <= 500; day++ {
		txs = append(txs, sell("HGLG11", 0.7, 40, day))
	}

	p := findPosition(t, ComputePositions(txs), "HGLG11")
	assert.InDelta(t, 650, p.Quantity, 1e-9)
	assert.InDelta(t, 33.33, p.AveragePrice, 1e-9)
	assert.InDelta(t, 650*33.33, p.TotalCost, 1e-6)
}
