// Package domain provides core domain models and types.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// Currency represents a currency code
type Currency string

const (
	CurrencyBRL Currency = "BRL"
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
)

// TransactionType is the side of an investment trade
type TransactionType string

const (
	TransactionBuy  TransactionType = "buy"
	TransactionSell TransactionType = "sell"
)

// ParseTransactionType normalizes user input ("BUY", " sell ") to a TransactionType
func ParseTransactionType(s string) (TransactionType, error) {
	switch TransactionType(strings.ToLower(strings.TrimSpace(s))) {
	case TransactionBuy:
		return TransactionBuy, nil
	case TransactionSell:
		return TransactionSell, nil
	}
	return "", fmt.Errorf("unknown transaction type %q", s)
}

// AssetType represents the kind of instrument held
type AssetType string

const (
	AssetTypeStock  AssetType = "STOCK"
	AssetTypeFII    AssetType = "FII" // Brazilian real-estate fund
	AssetTypeETF    AssetType = "ETF"
	AssetTypeBond   AssetType = "BOND"
	AssetTypeOption AssetType = "OPTION"
	AssetTypeCrypto AssetType = "CRYPTO"
)

// SupportedAssetTypes lists the asset types accepted at ingestion
var SupportedAssetTypes = []AssetType{
	AssetTypeStock, AssetTypeFII, AssetTypeETF, AssetTypeBond, AssetTypeOption, AssetTypeCrypto,
}

// IsSupportedAssetType reports whether t is one of SupportedAssetTypes.
// The empty string is accepted since the type is optional metadata.
func IsSupportedAssetType(t string) bool {
	if t == "" {
		return true
	}
	for _, s := range SupportedAssetTypes {
		if strings.EqualFold(string(s), t) {
			return true
		}
	}
	return false
}

// Transaction is a manually entered investment trade
type Transaction struct {
	Date      time.Time       `json:"transaction_date"`
	CreatedAt time.Time       `json:"created_at"`
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Ticker    string          `json:"ticker"`
	Type      TransactionType `json:"transaction_type"`
	AssetName string          `json:"asset_name"`
	AssetType string          `json:"asset_type"`
	Notes     string          `json:"notes,omitempty"`
	Quantity  float64         `json:"quantity"`
	Price     float64         `json:"price"`
	Fees      float64         `json:"fees"`
}

// Position is a holding derived from a ticker's full transaction history
type Position struct {
	Ticker       string  `json:"ticker"`
	AssetName    string  `json:"asset_name"`
	AssetType    string  `json:"asset_type"`
	Quantity     float64 `json:"quantity"`
	TotalCost    float64 `json:"total_cost"`
	AveragePrice float64 `json:"average_price"`
}

// EnrichedPosition is a Position joined with a live quote
type EnrichedPosition struct {
	Position
	CurrentPrice  float64 `json:"current_price"`
	MarketValue   float64 `json:"market_value"`
	ProfitLoss    float64 `json:"profit_loss"`
	Profitability float64 `json:"profitability"` // Percent of total cost
	QuoteMissing  bool    `json:"quote_missing,omitempty"`
}

// Quote is a point-in-time market price for a symbol
type Quote struct {
	FetchedAt     time.Time `json:"fetched_at"`
	MarketTime    time.Time `json:"market_time,omitempty"`
	Symbol        string    `json:"symbol"`
	Name          string    `json:"name,omitempty"`
	Currency      Currency  `json:"currency"`
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`

	// Set when Price was converted from the listing currency
	OriginalCurrency Currency `json:"original_currency,omitempty"`
	OriginalPrice    float64  `json:"original_price,omitempty"`
}

// PricePoint is a single daily OHLCV bar
type PricePoint struct {
	Date     time.Time `json:"date"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   int64     `json:"volume"`
	AdjClose float64   `json:"adj_close"`
}

// SymbolMatch is one result of a ticker search
type SymbolMatch struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Exchange string `json:"exchange"`
}

// Dividend is a single cash distribution paid per share
type Dividend struct {
	Date   time.Time `json:"date"`
	Amount float64   `json:"amount"`
}

// Money represents a monetary value with currency
type Money struct {
	Currency Currency `json:"currency"`
	Amount   float64  `json:"amount"`
}

// NewMoney creates a new Money value
func NewMoney(amount float64, currency Currency) Money {
	return Money{
		Amount:   amount,
		Currency: currency,
	}
}
