package testing

import (
	"time"

	"github.com/aristath/famfin/internal/domain"
)

// Date parses a YYYY-MM-DD date in UTC and panics on bad input
func Date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

// Buy returns a buy transaction
func Buy(ticker string, quantity, price float64, date string) domain.Transaction {
	return domain.Transaction{
		Ticker:   ticker,
		Type:     domain.TransactionBuy,
		Quantity: quantity,
		Price:    price,
		Date:     Date(date),
	}
}

// Sell returns a sell transaction
func Sell(ticker string, quantity, price float64, date string) domain.Transaction {
	return domain.Transaction{
		Ticker:   ticker,
		Type:     domain.TransactionSell,
		Quantity: quantity,
		Price:    price,
		Date:     Date(date),
	}
}

// NewTransactionFixtures returns a small mixed history: two B3 stocks, a sell,
// and a crypto position
func NewTransactionFixtures() []domain.Transaction {
	petr := Buy("PETR4", 100, 30, "2024-01-10")
	petr.AssetName = "Petrobras PN"
	petr.AssetType = "STOCK"
	petr.Fees = 5

	vale := Buy("VALE3", 50, 70, "2024-02-01")
	vale.AssetType = "STOCK"

	btc := Buy("BTC", 0.01, 200000, "2024-03-15")
	btc.AssetType = "CRYPTO"

	return []domain.Transaction{
		petr,
		vale,
		Buy("PETR4", 100, 34, "2024-03-01"),
		Sell("PETR4", 50, 38, "2024-04-01"),
		btc,
	}
}
