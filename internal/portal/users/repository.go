package users

import (
	"context"
	"strings"
	"sync"
)

// Repository persists user records.
type Repository interface {
	Get(ctx context.Context, id string) (*User, error)
	// Update overwrites an existing record and returns ErrNotFound when absent.
	Update(ctx context.Context, user *User) error
	// Upsert inserts the record, or fills empty name/email on an existing one, and returns the stored row.
	Upsert(ctx context.Context, user *User) (*User, error)
}

// MemoryRepository is a process-local Repository.
type MemoryRepository struct {
	mu    sync.RWMutex
	users map[string]User
}

// NewMemoryRepository constructs a repository seeded with the provided users.
func NewMemoryRepository(seed ...User) *MemoryRepository {
	repo := &MemoryRepository{users: make(map[string]User, len(seed))}
	for _, u := range seed {
		repo.users[u.ID] = u
	}
	return repo
}

// Get returns a copy of the stored user.
func (r *MemoryRepository) Get(ctx context.Context, id string) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

// Update replaces an existing user.
func (r *MemoryRepository) Update(ctx context.Context, user *User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return ErrNotFound
	}
	r.users[user.ID] = *user
	return nil
}

// Upsert inserts a new user or backfills blank fields of an existing one.
func (r *MemoryRepository) Upsert(ctx context.Context, user *User) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.users[user.ID]
	if !ok {
		r.users[user.ID] = *user
		stored := *user
		return &stored, nil
	}
	changed := false
	if strings.TrimSpace(existing.Name) == "" && user.Name != "" {
		existing.Name = user.Name
		changed = true
	}
	if strings.TrimSpace(existing.Email) == "" && user.Email != "" {
		existing.Email = user.Email
		changed = true
	}
	if changed {
		existing.UpdatedAt = user.UpdatedAt
		r.users[user.ID] = existing
	}
	return &existing, nil
}
