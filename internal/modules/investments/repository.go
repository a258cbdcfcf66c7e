// Package investments stores manually entered trades and derives positions
// and portfolio summaries from them.
package investments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/famfin/internal/domain"
	"github.com/aristath/famfin/internal/utils"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrNotFound is returned when a transaction does not exist for the user
var ErrNotFound = errors.New("transaction not found")

const dateLayout = "2006-01-02"

// transactionColumns must match scanTransaction
const transactionColumns = `id, user_id, ticker, transaction_type, quantity, price, fees,
transaction_date, asset_name, asset_type, notes, created_at`

// Repository handles investment_transactions in the ledger database
type Repository struct {
	db  *sql.DB
	now func() time.Time
	log zerolog.Logger
}

// NewRepository creates a new transaction repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		now: time.Now,
		log: log.With().Str("repo", "investment_transactions").Logger(),
	}
}

// Create inserts tx, assigning ID and CreatedAt
func (r *Repository) Create(ctx context.Context, tx *domain.Transaction) error {
	tx.ID = uuid.New().String()
	tx.CreatedAt = r.now().UTC().Truncate(time.Second)

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO investment_transactions
		(id, user_id, ticker, transaction_type, quantity, price, fees,
		 transaction_date, asset_name, asset_type, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		tx.ID,
		tx.UserID,
		tx.Ticker,
		string(tx.Type),
		tx.Quantity,
		tx.Price,
		tx.Fees,
		tx.Date.Format(dateLayout),
		tx.AssetName,
		tx.AssetType,
		tx.Notes,
		tx.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	r.log.Info().
		Str("id", tx.ID).
		Str("ticker", tx.Ticker).
		Str("type", string(tx.Type)).
		Float64("quantity", tx.Quantity).
		Msg("Created transaction")
	return nil
}

// GetByID returns one of the user's transactions
func (r *Repository) GetByID(ctx context.Context, userID, id string) (*domain.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+transactionColumns+" FROM investment_transactions WHERE id = ? AND user_id = ?",
		id, userID,
	)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return &tx, nil
}

// ListByUser returns the user's transactions ordered by date, then insertion
func (r *Repository) ListByUser(ctx context.Context, userID string) ([]domain.Transaction, error) {
	done := utils.MeasureDBQuery("list_transactions", r.log)

	rows, err := r.db.QueryContext(ctx,
		"SELECT "+transactionColumns+" FROM investment_transactions WHERE user_id = ? ORDER BY transaction_date, created_at, rowid",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	txs, err := scanTransactions(rows)
	done(int64(len(txs)))
	return txs, err
}

// ListByTicker returns the user's transactions for one ticker
func (r *Repository) ListByTicker(ctx context.Context, userID, ticker string) ([]domain.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+transactionColumns+" FROM investment_transactions WHERE user_id = ? AND ticker = ? ORDER BY transaction_date, created_at, rowid",
		userID, ticker,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions for %s: %w", ticker, err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// Delete removes one of the user's transactions
func (r *Repository) Delete(ctx context.Context, userID, id string) error {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM investment_transactions WHERE id = ? AND user_id = ?",
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	r.log.Info().Str("id", id).Msg("Deleted transaction")
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(s scanner) (domain.Transaction, error) {
	var (
		tx        domain.Transaction
		txType    string
		date      string
		createdAt int64
	)
	err := s.Scan(
		&tx.ID,
		&tx.UserID,
		&tx.Ticker,
		&txType,
		&tx.Quantity,
		&tx.Price,
		&tx.Fees,
		&date,
		&tx.AssetName,
		&tx.AssetType,
		&tx.Notes,
		&createdAt,
	)
	if err != nil {
		return tx, err
	}

	tx.Type = domain.TransactionType(txType)
	tx.CreatedAt = time.Unix(createdAt, 0).UTC()
	if tx.Date, err = time.Parse(dateLayout, date); err != nil {
		return tx, fmt.Errorf("invalid transaction_date %q for %s: %w", date, tx.ID, err)
	}
	return tx, nil
}

func scanTransactions(rows *sql.Rows) ([]domain.Transaction, error) {
	var txs []domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return txs, nil
}
