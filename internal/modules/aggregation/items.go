package aggregation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrItemNotFound is returned for items the user has not linked
var ErrItemNotFound = errors.New("item not linked to this user")

// Item is a connection a user linked through the connect widget
type Item struct {
	CreatedAt       time.Time `json:"created_at"`
	ItemID          string    `json:"item_id"`
	InstitutionName string    `json:"institution_name"`
}

// ItemRepository records which user owns which aggregator item in the
// pluggy_items table of the app database
type ItemRepository struct {
	db  *sql.DB
	now func() time.Time
	log zerolog.Logger
}

// NewItemRepository creates a new item repository
func NewItemRepository(db *sql.DB, log zerolog.Logger) *ItemRepository {
	return &ItemRepository{
		db:  db,
		now: time.Now,
		log: log.With().Str("repo", "pluggy_items").Logger(),
	}
}

// Register links itemID to userID. Registering again keeps the original date
// and only replaces the institution name when a new one is given.
func (r *ItemRepository) Register(ctx context.Context, userID, itemID, institution string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO pluggy_items (user_id, item_id, institution_name, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, item_id) DO UPDATE SET
			institution_name = CASE WHEN excluded.institution_name = '' THEN institution_name
			                        ELSE excluded.institution_name END
	`, userID, itemID, strings.TrimSpace(institution), r.now().Unix())
	if err != nil {
		return fmt.Errorf("failed to register item: %w", err)
	}
	return nil
}

// List returns userID's items, oldest first
func (r *ItemRepository) List(ctx context.Context, userID string) ([]Item, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT item_id, institution_name, created_at FROM pluggy_items
		WHERE user_id = ? ORDER BY created_at, item_id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		var (
			item    Item
			created int64
		)
		if err := rows.Scan(&item.ItemID, &item.InstitutionName, &created); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		item.CreatedAt = time.Unix(created, 0).UTC()
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating items: %w", err)
	}
	return items, nil
}

// Owns reports whether userID linked itemID
func (r *ItemRepository) Owns(ctx context.Context, userID, itemID string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM pluggy_items WHERE user_id = ? AND item_id = ?", userID, itemID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check item owner: %w", err)
	}
	return n > 0, nil
}

// Remove unlinks itemID from userID
func (r *ItemRepository) Remove(ctx context.Context, userID, itemID string) error {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM pluggy_items WHERE user_id = ? AND item_id = ?", userID, itemID)
	if err != nil {
		return fmt.Errorf("failed to remove item: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrItemNotFound
	}
	return nil
}
