package groups

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Service applies membership rules on top of the repository. Non-members get
// ErrNotFound for a group so its existence is not disclosed.
type Service struct {
	repo *Repository
	log  zerolog.Logger
}

// NewService creates a group service
func NewService(repo *Repository, log zerolog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With().Str("service", "groups").Logger(),
	}
}

// Create makes a new group owned by userID
func (s *Service) Create(ctx context.Context, userID, name string) (*Group, error) {
	name, err := normalizeName(name)
	if err != nil {
		return nil, err
	}
	group, err := s.repo.Create(ctx, name, userID)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("group_id", group.ID).Str("owner", userID).Msg("Group created")
	return group, nil
}

// List returns the groups userID belongs to
func (s *Service) List(ctx context.Context, userID string) ([]Group, error) {
	groups, err := s.repo.ListForMember(ctx, userID)
	if err != nil {
		return nil, err
	}
	if groups == nil {
		groups = []Group{}
	}
	return groups, nil
}

// Get returns a group userID belongs to
func (s *Service) Get(ctx context.Context, userID, groupID string) (*Group, error) {
	return s.repo.GetForMember(ctx, groupID, userID)
}

// Rename changes the name of a group owned by userID
func (s *Service) Rename(ctx context.Context, userID, groupID, name string) (*Group, error) {
	name, err := normalizeName(name)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireRole(ctx, userID, groupID, RoleOwner); err != nil {
		return nil, err
	}
	if err := s.repo.Rename(ctx, groupID, name); err != nil {
		return nil, err
	}
	return s.repo.GetForMember(ctx, groupID, userID)
}

// Delete removes a group owned by userID
func (s *Service) Delete(ctx context.Context, userID, groupID string) error {
	if _, err := s.requireRole(ctx, userID, groupID, RoleOwner); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, groupID); err != nil {
		return err
	}
	s.log.Info().Str("group_id", groupID).Msg("Group deleted")
	return nil
}

// Join adds userID to the group with code as a plain member. Joining a group
// one already belongs to keeps the existing role.
func (s *Service) Join(ctx context.Context, userID, code string) (*Group, error) {
	code = normalizeJoinCode(code)
	if code == "" {
		return nil, ErrInvalidJoinCode
	}
	groupID, err := s.repo.FindByJoinCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := s.repo.AddMember(ctx, groupID, userID, RoleMember); err != nil {
		return nil, err
	}
	s.log.Info().Str("group_id", groupID).Str("user_id", userID).Msg("Member joined group")
	return s.repo.GetForMember(ctx, groupID, userID)
}

// Members lists the members of a group userID belongs to
func (s *Service) Members(ctx context.Context, userID, groupID string) ([]Member, error) {
	if _, err := s.requireRole(ctx, userID, groupID); err != nil {
		return nil, err
	}
	return s.repo.Members(ctx, groupID)
}

// RemoveMember removes targetID from the group. Members may remove themselves
// (leave); removing anyone else takes the owner. The owner can never be removed.
func (s *Service) RemoveMember(ctx context.Context, userID, groupID, targetID string) error {
	role, err := s.requireRole(ctx, userID, groupID)
	if err != nil {
		return err
	}

	if targetID != userID {
		if role != RoleOwner {
			return ErrForbidden
		}
		targetRole, err := s.repo.MemberRole(ctx, groupID, targetID)
		if err != nil {
			return err
		}
		if targetRole == "" {
			return ErrMemberNotFound
		}
		role = targetRole
	}
	if role == RoleOwner {
		return ErrOwnerCannotLeave
	}

	if err := s.repo.RemoveMember(ctx, groupID, targetID); err != nil {
		return err
	}
	s.log.Info().Str("group_id", groupID).Str("user_id", targetID).Str("by", userID).Msg("Member removed")
	return nil
}

// UpdateRole sets targetID's role to editor or member. Only the owner may do it.
func (s *Service) UpdateRole(ctx context.Context, userID, groupID, targetID, role string) error {
	role = strings.ToLower(strings.TrimSpace(role))
	if role != RoleEditor && role != RoleMember {
		return ErrInvalidRole
	}
	if _, err := s.requireRole(ctx, userID, groupID, RoleOwner); err != nil {
		return err
	}
	if targetID == userID {
		return ErrOwnerCannotLeave
	}
	targetRole, err := s.repo.MemberRole(ctx, groupID, targetID)
	if err != nil {
		return err
	}
	if targetRole == "" {
		return ErrMemberNotFound
	}
	return s.repo.UpdateRole(ctx, groupID, targetID, role)
}

// Role returns userID's role in groupID, or "" when not a member
func (s *Service) Role(ctx context.Context, groupID, userID string) (string, error) {
	return s.repo.MemberRole(ctx, groupID, userID)
}

// GroupIDs returns the ids of the groups userID belongs to
func (s *Service) GroupIDs(ctx context.Context, userID string) ([]string, error) {
	return s.repo.IDsForMember(ctx, userID)
}

// requireRole returns userID's role, failing with ErrNotFound for non-members
// and ErrForbidden when allowed is non-empty and the role is not in it
func (s *Service) requireRole(ctx context.Context, userID, groupID string, allowed ...string) (string, error) {
	role, err := s.repo.MemberRole(ctx, groupID, userID)
	if err != nil {
		return "", fmt.Errorf("failed to check membership: %w", err)
	}
	if role == "" {
		return "", ErrNotFound
	}
	if len(allowed) == 0 {
		return role, nil
	}
	for _, a := range allowed {
		if role == a {
			return role, nil
		}
	}
	return "", ErrForbidden
}
