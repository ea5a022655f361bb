package users

import (
	"context"
	"fmt"
	"html"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

const maxNameLength = 80

// LocalService implements Service and Provisioner on top of a Repository.
type LocalService struct {
	repo   Repository
	policy *bluemonday.Policy
	now    func() time.Time
}

// LocalOption customises a LocalService.
type LocalOption func(*LocalService)

// WithNow overrides the clock used for timestamps.
func WithNow(now func() time.Time) LocalOption {
	return func(s *LocalService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewLocalService constructs a LocalService. A nil repository falls back to an empty MemoryRepository.
func NewLocalService(repo Repository, opts ...LocalOption) *LocalService {
	if repo == nil {
		repo = NewMemoryRepository()
	}
	svc := &LocalService{
		repo:   repo,
		policy: bluemonday.StrictPolicy(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// GetUser loads a user by ID.
func (s *LocalService) GetUser(ctx context.Context, id string) (*User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, &ValidationError{Field: "id", Message: "is required"}
	}
	return s.repo.Get(ctx, id)
}

// UpdateUser applies the non-nil fields of req and persists the result.
func (s *LocalService) UpdateUser(ctx context.Context, req UpdateRequest) (*User, error) {
	id := strings.TrimSpace(req.ID)
	if id == "" {
		return nil, &ValidationError{Field: "id", Message: "is required"}
	}

	var (
		name, email string
		err         error
	)
	if req.Name != nil {
		if name, err = s.cleanName(*req.Name); err != nil {
			return nil, err
		}
	}
	if req.Email != nil {
		if email, err = cleanEmail(*req.Email); err != nil {
			return nil, err
		}
	}

	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		user.Name = name
	}
	if req.Email != nil {
		user.Email = email
	}
	user.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("users: update %s: %w", id, err)
	}
	return user, nil
}

// Provision makes sure a record exists for user, filling blank fields of an existing one.
func (s *LocalService) Provision(ctx context.Context, user User) (*User, error) {
	user.ID = strings.TrimSpace(user.ID)
	if user.ID == "" {
		return nil, &ValidationError{Field: "id", Message: "is required"}
	}
	if name, err := s.cleanName(user.Name); err == nil {
		user.Name = name
	} else {
		user.Name = ""
	}
	if email, err := cleanEmail(user.Email); err == nil {
		user.Email = email
	} else {
		user.Email = ""
	}
	now := s.now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	return s.repo.Upsert(ctx, &user)
}

func (s *LocalService) cleanName(raw string) (string, error) {
	name := strings.Join(strings.Fields(html.UnescapeString(s.policy.Sanitize(raw))), " ")
	if name == "" {
		return "", &ValidationError{Field: "name", Message: "is required"}
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return "", &ValidationError{Field: "name", Message: fmt.Sprintf("must be at most %d characters", maxNameLength)}
	}
	return name, nil
}

func cleanEmail(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", &ValidationError{Field: "email", Message: "is required"}
	}
	addr, err := mail.ParseAddress(trimmed)
	if err != nil || addr.Address != trimmed {
		return "", &ValidationError{Field: "email", Message: "is not a valid address"}
	}
	return strings.ToLower(addr.Address), nil
}
