package budget

import (
	"context"
	"fmt"

	"github.com/aristath/famfin/internal/modules/groups"
	"github.com/rs/zerolog"
)

// Membership answers group questions for the budget. Role returns "" for
// non-members.
type Membership interface {
	Role(ctx context.Context, groupID, userID string) (string, error)
	GroupIDs(ctx context.Context, userID string) ([]string, error)
}

// Service applies visibility rules to household entries. A user sees their own
// entries and those shared with their groups. Entries can be changed by their
// author or by a group owner or editor.
type Service struct {
	repo    *Repository
	members Membership
	log     zerolog.Logger
}

// NewService creates a budget service
func NewService(repo *Repository, members Membership, log zerolog.Logger) *Service {
	return &Service{
		repo:    repo,
		members: members,
		log:     log.With().Str("service", "budget").Logger(),
	}
}

// Create records entry on behalf of userID
func (s *Service) Create(ctx context.Context, userID string, entry *Entry) error {
	entry.UserID = userID
	if err := entry.Validate(); err != nil {
		return err
	}
	if err := s.requireMember(ctx, userID, entry.GroupID); err != nil {
		return err
	}
	return s.repo.Create(ctx, entry)
}

// Get returns an entry visible to userID
func (s *Service) Get(ctx context.Context, userID, id string) (*Entry, error) {
	entry, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry.UserID == userID {
		return entry, nil
	}
	role, err := s.role(ctx, entry.GroupID, userID)
	if err != nil {
		return nil, err
	}
	if role == "" {
		return nil, ErrNotFound
	}
	return entry, nil
}

// Update replaces the editable fields of an entry userID may manage
func (s *Service) Update(ctx context.Context, userID string, entry *Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	current, err := s.Get(ctx, userID, entry.ID)
	if err != nil {
		return err
	}
	if err := s.requireManage(ctx, userID, current); err != nil {
		return err
	}
	if entry.GroupID != current.GroupID {
		if err := s.requireMember(ctx, userID, entry.GroupID); err != nil {
			return err
		}
	}
	return s.repo.Update(ctx, entry)
}

// Delete removes an entry userID may manage
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	current, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.requireManage(ctx, userID, current); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// List returns the entries visible to userID matching filter
func (s *Service) List(ctx context.Context, userID string, filter Filter) ([]Entry, error) {
	var groupIDs []string
	if filter.GroupID != "" {
		if err := s.requireMember(ctx, userID, filter.GroupID); err != nil {
			return nil, err
		}
	} else if s.members != nil {
		ids, err := s.members.GroupIDs(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to list groups: %w", err)
		}
		groupIDs = ids
	}

	entries, err := s.repo.List(ctx, userID, groupIDs, filter)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries, nil
}

// Import records a batch of entries for userID. Invalid rows are skipped and
// reported by index; the valid ones are stored together.
func (s *Service) Import(ctx context.Context, userID string, entries []Entry) (ImportResult, error) {
	result := ImportResult{Errors: map[int]string{}}
	allowed := map[string]error{}
	valid := make([]*Entry, 0, len(entries))

	for i := range entries {
		entry := &entries[i]
		entry.UserID = userID
		if err := entry.Validate(); err != nil {
			result.Errors[i] = err.Error()
			continue
		}
		if entry.GroupID != "" {
			if _, checked := allowed[entry.GroupID]; !checked {
				allowed[entry.GroupID] = s.requireMember(ctx, userID, entry.GroupID)
			}
			if err := allowed[entry.GroupID]; err != nil {
				result.Errors[i] = err.Error()
				continue
			}
		}
		valid = append(valid, entry)
	}

	if err := s.repo.CreateMany(ctx, valid); err != nil {
		return result, err
	}
	result.Imported = len(valid)
	result.Skipped = len(result.Errors)
	return result, nil
}

// Report summarizes the entries visible to userID matching filter
func (s *Service) Report(ctx context.Context, userID string, filter Filter, monthStartDay int) (Report, error) {
	entries, err := s.List(ctx, userID, filter)
	if err != nil {
		return Report{}, err
	}
	return BuildReport(entries, monthStartDay), nil
}

func (s *Service) role(ctx context.Context, groupID, userID string) (string, error) {
	if groupID == "" || s.members == nil {
		return "", nil
	}
	role, err := s.members.Role(ctx, groupID, userID)
	if err != nil {
		return "", fmt.Errorf("failed to check membership: %w", err)
	}
	return role, nil
}

func (s *Service) requireMember(ctx context.Context, userID, groupID string) error {
	if groupID == "" {
		return nil
	}
	role, err := s.role(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if role == "" {
		return ErrNotMember
	}
	return nil
}

func (s *Service) requireManage(ctx context.Context, userID string, entry *Entry) error {
	if entry.UserID == userID {
		return nil
	}
	role, err := s.role(ctx, entry.GroupID, userID)
	if err != nil {
		return err
	}
	if !groups.CanManage(role) {
		return ErrForbidden
	}
	return nil
}
