package groups

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

// joinCodeLength is the number of hex characters in a join code
const joinCodeLength = 8

// Repository handles family_groups and group_members in the app database
type Repository struct {
	db  *sql.DB
	now func() time.Time
	log zerolog.Logger
}

// NewRepository creates a new group repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		now: time.Now,
		log: log.With().Str("repo", "family_groups").Logger(),
	}
}

func newJoinCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:joinCodeLength])
}

// Create inserts the group and its owner membership in one transaction
func (r *Repository) Create(ctx context.Context, name, ownerID string) (*Group, error) {
	now := r.now().UTC().Truncate(time.Second)
	group := &Group{
		CreatedAt:   now,
		UpdatedAt:   now,
		ID:          uuid.New().String(),
		Name:        name,
		OwnerID:     ownerID,
		JoinCode:    newJoinCode(),
		Role:        RoleOwner,
		MemberCount: 1,
	}

	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO family_groups (id, name, owner_id, join_code, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, group.ID, group.Name, group.OwnerID, group.JoinCode, now.Unix(), now.Unix()); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO group_members (group_id, user_id, role, joined_at) VALUES (?, ?, ?, ?)",
			group.ID, ownerID, RoleOwner, now.Unix(),
		)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create group: %w", err)
	}
	return group, nil
}

const groupSelect = `
	SELECT g.id, g.name, g.owner_id, g.join_code, g.created_at, g.updated_at, m.role,
	       (SELECT COUNT(*) FROM group_members c WHERE c.group_id = g.id)
	FROM family_groups g
	JOIN group_members m ON m.group_id = g.id AND m.user_id = ?`

// GetForMember returns the group as seen by userID, or ErrNotFound when the
// group does not exist or userID is not a member
func (r *Repository) GetForMember(ctx context.Context, groupID, userID string) (*Group, error) {
	row := r.db.QueryRowContext(ctx, groupSelect+" WHERE g.id = ?", userID, groupID)
	group, err := scanGroup(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	return &group, nil
}

// ListForMember returns every group userID belongs to, by name
func (r *Repository) ListForMember(ctx context.Context, userID string) ([]Group, error) {
	rows, err := r.db.QueryContext(ctx, groupSelect+" ORDER BY g.name, g.created_at", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var groups []Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating groups: %w", err)
	}
	return groups, nil
}

// IDsForMember returns the ids of every group userID belongs to
func (r *Repository) IDsForMember(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT group_id FROM group_members WHERE user_id = ? ORDER BY group_id", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list group ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan group id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// FindByJoinCode returns the id of the group with code
func (r *Repository) FindByJoinCode(ctx context.Context, code string) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx, "SELECT id FROM family_groups WHERE join_code = ?", code).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrInvalidJoinCode
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up join code: %w", err)
	}
	return id, nil
}

// Rename changes the group name
func (r *Repository) Rename(ctx context.Context, groupID, name string) error {
	now := r.now().UTC().Unix()
	result, err := r.db.ExecContext(ctx, "UPDATE family_groups SET name = ?, updated_at = ? WHERE id = ?", name, now, groupID)
	if err != nil {
		return fmt.Errorf("failed to rename group: %w", err)
	}
	return requireAffected(result, ErrNotFound)
}

// Delete removes the group; memberships go with it
func (r *Repository) Delete(ctx context.Context, groupID string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM family_groups WHERE id = ?", groupID)
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	return requireAffected(result, ErrNotFound)
}

// MemberRole returns userID's role in the group, or "" when not a member
func (r *Repository) MemberRole(ctx context.Context, groupID, userID string) (string, error) {
	var role string
	err := r.db.QueryRowContext(ctx,
		"SELECT role FROM group_members WHERE group_id = ? AND user_id = ?", groupID, userID,
	).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get member role: %w", err)
	}
	return role, nil
}

// AddMember inserts a membership; an existing one is left unchanged
func (r *Repository) AddMember(ctx context.Context, groupID, userID, role string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO group_members (group_id, user_id, role, joined_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(group_id, user_id) DO NOTHING
	`, groupID, userID, role, r.now().UTC().Unix())
	if err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}
	return nil
}

// Members lists the group's members, owner first, then by join time
func (r *Repository) Members(ctx context.Context, groupID string) ([]Member, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, role, joined_at FROM group_members
		WHERE group_id = ?
		ORDER BY CASE role WHEN 'owner' THEN 0 WHEN 'editor' THEN 1 ELSE 2 END, joined_at, user_id
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		var (
			m      Member
			joined int64
		)
		if err := rows.Scan(&m.UserID, &m.Role, &joined); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		m.JoinedAt = time.Unix(joined, 0).UTC()
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating members: %w", err)
	}
	return members, nil
}

// RemoveMember deletes a membership
func (r *Repository) RemoveMember(ctx context.Context, groupID, userID string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM group_members WHERE group_id = ? AND user_id = ?", groupID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	return requireAffected(result, ErrMemberNotFound)
}

// UpdateRole changes a member's role
func (r *Repository) UpdateRole(ctx context.Context, groupID, userID, role string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE group_members SET role = ? WHERE group_id = ? AND user_id = ?", role, groupID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to update member role: %w", err)
	}
	return requireAffected(result, ErrMemberNotFound)
}

func requireAffected(result sql.Result, notFound error) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return notFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanGroup(s scanner) (Group, error) {
	var (
		g                  Group
		created, updatedAt int64
	)
	err := s.Scan(&g.ID, &g.Name, &g.OwnerID, &g.JoinCode, &created, &updatedAt, &g.Role, &g.MemberCount)
	if err != nil {
		return g, err
	}
	g.CreatedAt = time.Unix(created, 0).UTC()
	g.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return g, nil
}
