package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// PasswordAccount is a statically configured login.
type PasswordAccount struct {
	Email        string
	Name         string
	PasswordHash string
	Roles        []string
}

// PasswordAuthenticator verifies email/password pairs against bcrypt hashes.
type PasswordAuthenticator struct {
	accounts  map[string]PasswordAccount
	dummyHash []byte
}

// NewPasswordAuthenticator indexes accounts by lower-cased email.
func NewPasswordAuthenticator(accounts []PasswordAccount) (*PasswordAuthenticator, error) {
	if len(accounts) == 0 {
		return nil, errors.New("password auth requires at least one account")
	}
	index := make(map[string]PasswordAccount, len(accounts))
	for _, acct := range accounts {
		email := strings.ToLower(strings.TrimSpace(acct.Email))
		if email == "" {
			return nil, errors.New("password account email is required")
		}
		if _, err := bcrypt.Cost([]byte(acct.PasswordHash)); err != nil {
			return nil, fmt.Errorf("password account %s: %w", email, err)
		}
		acct.Email = email
		index[email] = acct
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("portal-dummy-password"), bcrypt.MinCost)
	if err != nil {
		return nil, fmt.Errorf("password auth: %w", err)
	}
	return &PasswordAuthenticator{accounts: index, dummyHash: dummy}, nil
}

// Authenticate checks creds.Email/creds.Password. Token-only credentials are not supported.
func (p *PasswordAuthenticator) Authenticate(_ *http.Request, creds Credentials) (*User, error) {
	email := strings.ToLower(strings.TrimSpace(creds.Email))
	if email == "" {
		if strings.TrimSpace(creds.Token) != "" {
			return nil, ErrUnsupportedCredentials
		}
		return nil, NewAuthError(ReasonMissingToken, ErrUnauthorized)
	}

	acct, ok := p.accounts[email]
	if !ok {
		_ = bcrypt.CompareHashAndPassword(p.dummyHash, []byte(creds.Password))
		return nil, NewAuthError(ReasonInvalidCredentials, ErrUnauthorized)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(creds.Password)); err != nil {
		return nil, NewAuthError(ReasonInvalidCredentials, ErrUnauthorized)
	}

	name := strings.TrimSpace(acct.Name)
	if name == "" {
		name = email
	}
	return &User{
		UID:   email,
		Email: email,
		Name:  name,
		Roles: append([]string(nil), acct.Roles...),
	}, nil
}
