// Package users exposes the user resource: lookup and partial update, with
// local, remote and cached implementations sharing the Service contract.
package users

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates the requested user does not exist.
	ErrNotFound = errors.New("users: not found")
	// ErrInvalid indicates the request failed validation.
	ErrInvalid = errors.New("users: invalid request")
)

// User is the public representation of an account record.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// UpdateRequest describes a partial update. Nil fields are left unchanged.
type UpdateRequest struct {
	ID    string  `json:"-"`
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
}

// Service fetches and updates users.
type Service interface {
	GetUser(ctx context.Context, id string) (*User, error)
	UpdateUser(ctx context.Context, req UpdateRequest) (*User, error)
}

// Provisioner creates the record for a freshly authenticated account when missing.
type Provisioner interface {
	Provision(ctx context.Context, user User) (*User, error)
}

// ValidationError reports a single rejected field. It matches ErrInvalid via errors.Is.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "users: " + e.Field + ": " + e.Message
}

// Is lets callers test for ErrInvalid.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalid
}

// StringPtr is a convenience for building UpdateRequest values.
func StringPtr(v string) *string {
	return &v
}
