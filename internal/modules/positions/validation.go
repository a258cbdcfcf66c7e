package positions

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/aristath/famfin/internal/domain"
)

var (
	// ErrInvalidTransaction is matched by every field-level validation failure
	ErrInvalidTransaction = errors.New("invalid transaction")
	// ErrOversell is matched when a sell exceeds the quantity held at that point
	ErrOversell = errors.New("sell exceeds held quantity")
)

// ValidationError describes a single rejected field
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidTransaction
}

// OversellError reports the first sell that drives a ticker's quantity negative
type OversellError struct {
	Ticker    string
	Date      string
	Held      float64
	Requested float64
}

func (e *OversellError) Error() string {
	return fmt.Sprintf("sell of %g %s on %s exceeds held quantity %g", e.Requested, e.Ticker, e.Date, e.Held)
}

func (e *OversellError) Unwrap() error {
	return ErrOversell
}

// Validate checks the fields of a single transaction
func Validate(tx domain.Transaction) error {
	if NormalizeTicker(tx.Ticker) == "" {
		return &ValidationError{Field: "ticker", Reason: "required"}
	}
	if tx.Type != domain.TransactionBuy && tx.Type != domain.TransactionSell {
		return &ValidationError{Field: "transaction_type", Reason: fmt.Sprintf("must be buy or sell, got %q", tx.Type)}
	}
	if err := positiveFinite("quantity", tx.Quantity); err != nil {
		return err
	}
	if err := positiveFinite("price", tx.Price); err != nil {
		return err
	}
	if math.IsNaN(tx.Fees) || math.IsInf(tx.Fees, 0) || tx.Fees < 0 {
		return &ValidationError{Field: "fees", Reason: "must be a non-negative number"}
	}
	if tx.Date.IsZero() {
		return &ValidationError{Field: "transaction_date", Reason: "required"}
	}
	if !domain.IsSupportedAssetType(tx.AssetType) {
		return &ValidationError{Field: "asset_type", Reason: fmt.Sprintf("unsupported asset type %q", tx.AssetType)}
	}
	return nil
}

func positiveFinite(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return &ValidationError{Field: field, Reason: "must be a positive number"}
	}
	return nil
}

// ValidateHistory validates every transaction and replays each ticker in date
// order, rejecting the first sell that exceeds the running quantity.
// Short positions are not supported.
func ValidateHistory(txs []domain.Transaction) error {
	for i, tx := range txs {
		if err := Validate(tx); err != nil {
			return fmt.Errorf("transaction %d (%s): %w", i, tx.Ticker, err)
		}
	}

	groups := groupByTicker(txs)
	tickers := make([]string, 0, len(groups))
	for ticker := range groups {
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)

	for _, ticker := range tickers {
		var r running
		for _, tx := range groups[ticker] {
			if tx.Type == domain.TransactionSell && tx.Quantity > r.quantity+ClosedEpsilon {
				return &OversellError{
					Ticker:    ticker,
					Date:      tx.Date.Format("2006-01-02"),
					Held:      r.quantity,
					Requested: tx.Quantity,
				}
			}
			r.apply(tx)
		}
	}
	return nil
}
