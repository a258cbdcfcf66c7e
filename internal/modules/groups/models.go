// Package groups manages family groups: households whose members share budget
// entries. Membership carries a role that decides who may manage the group.
package groups

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Member roles. The owner is fixed at creation and cannot leave the group.
const (
	RoleOwner  = "owner"
	RoleEditor = "editor"
	RoleMember = "member"
)

// MaxNameLength bounds a group name
const MaxNameLength = 100

// Errors returned by the service
var (
	ErrNotFound         = errors.New("group not found")
	ErrInvalidJoinCode  = errors.New("invalid join code")
	ErrForbidden        = errors.New("not allowed for this member")
	ErrInvalidGroup     = errors.New("invalid group")
	ErrInvalidRole      = errors.New("role must be editor or member")
	ErrMemberNotFound   = errors.New("member not found")
	ErrOwnerCannotLeave = errors.New("the owner cannot leave or be removed; delete the group instead")
)

// Group is a family group as seen by one of its members
type Group struct {
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	OwnerID     string    `json:"owner_id"`
	JoinCode    string    `json:"join_code"`
	Role        string    `json:"role"` // The caller's role
	MemberCount int       `json:"member_count"`
}

// Member is one user's membership
type Member struct {
	JoinedAt time.Time `json:"joined_at"`
	UserID   string    `json:"user_id"`
	Role     string    `json:"role"`
}

// CanManage reports whether role may edit other members' shared entries
func CanManage(role string) bool {
	return role == RoleOwner || role == RoleEditor
}

func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: name is required", ErrInvalidGroup)
	}
	if len([]rune(name)) > MaxNameLength {
		return "", fmt.Errorf("%w: name is longer than %d characters", ErrInvalidGroup, MaxNameLength)
	}
	return name, nil
}

func normalizeJoinCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
