package budget

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/famfin/internal/database"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// entryColumns must match scanEntry
const entryColumns = `id, user_id, group_id, entry_type, category, amount, description, entry_date,
created_at, updated_at`

// Repository handles household_transactions in the ledger database
type Repository struct {
	db  *sql.DB
	now func() time.Time
	log zerolog.Logger
}

// NewRepository creates a new budget repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		now: time.Now,
		log: log.With().Str("repo", "household_transactions").Logger(),
	}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func (r *Repository) insert(ctx context.Context, db execer, entry *Entry) error {
	now := r.now().UTC().Truncate(time.Second)
	entry.ID = uuid.New().String()
	entry.CreatedAt = now
	entry.UpdatedAt = now

	_, err := db.ExecContext(ctx, `
		INSERT INTO household_transactions
		(id, user_id, group_id, entry_type, category, amount, description, entry_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		entry.ID,
		entry.UserID,
		nullString(entry.GroupID),
		entry.Type,
		entry.Category,
		entry.Amount,
		entry.Description,
		entry.Date,
		now.Unix(),
		now.Unix(),
	)
	return err
}

// Create inserts entry, assigning ID and timestamps
func (r *Repository) Create(ctx context.Context, entry *Entry) error {
	if err := r.insert(ctx, r.db, entry); err != nil {
		return fmt.Errorf("failed to create entry: %w", err)
	}
	return nil
}

// CreateMany inserts entries in one transaction
func (r *Repository) CreateMany(ctx context.Context, entries []*Entry) error {
	if len(entries) == 0 {
		return nil
	}
	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		for _, entry := range entries {
			if err := r.insert(ctx, tx, entry); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to import entries: %w", err)
	}
	r.log.Info().Int("count", len(entries)).Msg("Imported household entries")
	return nil
}

// Update overwrites the editable fields of entry. The author is kept.
func (r *Repository) Update(ctx context.Context, entry *Entry) error {
	current, err := r.GetByID(ctx, entry.ID)
	if err != nil {
		return err
	}
	entry.UserID = current.UserID
	entry.CreatedAt = current.CreatedAt
	entry.UpdatedAt = r.now().UTC().Truncate(time.Second)

	_, err = r.db.ExecContext(ctx, `
		UPDATE household_transactions SET
			group_id = ?, entry_type = ?, category = ?, amount = ?, description = ?,
			entry_date = ?, updated_at = ?
		WHERE id = ?
	`,
		nullString(entry.GroupID),
		entry.Type,
		entry.Category,
		entry.Amount,
		entry.Description,
		entry.Date,
		entry.UpdatedAt.Unix(),
		entry.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update entry: %w", err)
	}
	return nil
}

// GetByID returns an entry regardless of who can see it
func (r *Repository) GetByID(ctx context.Context, id string) (*Entry, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+entryColumns+" FROM household_transactions WHERE id = ?", id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}
	return &entry, nil
}

// Delete removes an entry
func (r *Repository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM household_transactions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns the entries userID wrote plus those shared with groupIDs,
// newest first. With filter.GroupID set only that group's entries are returned.
func (r *Repository) List(ctx context.Context, userID string, groupIDs []string, filter Filter) ([]Entry, error) {
	var (
		where []string
		args  []interface{}
	)

	if filter.GroupID != "" {
		where = append(where, "group_id = ?")
		args = append(args, filter.GroupID)
	} else {
		visible := "user_id = ?"
		args = append(args, userID)
		if len(groupIDs) > 0 {
			visible += " OR group_id IN (?" + strings.Repeat(", ?", len(groupIDs)-1) + ")"
			for _, id := range groupIDs {
				args = append(args, id)
			}
		}
		where = append(where, "("+visible+")")
	}
	if filter.From != "" {
		where = append(where, "entry_date >= ?")
		args = append(args, filter.From)
	}
	if filter.To != "" {
		where = append(where, "entry_date <= ?")
		args = append(args, filter.To)
	}
	if filter.Category != "" {
		where = append(where, "category = ?")
		args = append(args, filter.Category)
	}
	if filter.Type != "" {
		where = append(where, "entry_type = ?")
		args = append(args, filter.Type)
	}

	query := "SELECT " + entryColumns + " FROM household_transactions WHERE " +
		strings.Join(where, " AND ") + " ORDER BY entry_date DESC, created_at DESC"
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entries: %w", err)
	}
	return entries, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(s scanner) (Entry, error) {
	var (
		e                  Entry
		groupID            sql.NullString
		created, updatedAt int64
	)
	err := s.Scan(
		&e.ID,
		&e.UserID,
		&groupID,
		&e.Type,
		&e.Category,
		&e.Amount,
		&e.Description,
		&e.Date,
		&created,
		&updatedAt,
	)
	if err != nil {
		return e, err
	}
	e.GroupID = groupID.String
	e.CreatedAt = time.Unix(created, 0).UTC()
	e.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return e, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
