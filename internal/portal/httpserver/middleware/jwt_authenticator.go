package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims is the payload of tokens issued by JWTAuthenticator.Sign.
type TokenClaims struct {
	Email string   `json:"email,omitempty"`
	Name  string   `json:"name,omitempty"`
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// JWTAuthenticator validates HS256 bearer tokens.
type JWTAuthenticator struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewJWTAuthenticator requires a shared secret of at least 32 bytes.
func NewJWTAuthenticator(secret, issuer string) (*JWTAuthenticator, error) {
	if len(secret) < 32 {
		return nil, errors.New("jwt secret must be at least 32 bytes")
	}
	return &JWTAuthenticator{secret: []byte(secret), issuer: strings.TrimSpace(issuer), now: time.Now}, nil
}

// Sign issues a token for user valid for ttl.
func (j *JWTAuthenticator) Sign(user User, ttl time.Duration) (string, error) {
	if strings.TrimSpace(user.UID) == "" {
		return "", errors.New("jwt subject is required")
	}
	now := j.now()
	claims := TokenClaims{
		Email: user.Email,
		Name:  user.Name,
		Roles: user.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.UID,
			Issuer:    j.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(j.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Authenticate validates creds.Token. Email/password credentials are not supported.
func (j *JWTAuthenticator) Authenticate(_ *http.Request, creds Credentials) (*User, error) {
	raw := strings.TrimSpace(creds.Token)
	if raw == "" {
		if strings.TrimSpace(creds.Email) != "" {
			return nil, ErrUnsupportedCredentials
		}
		return nil, NewAuthError(ReasonMissingToken, ErrUnauthorized)
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	}
	if j.issuer != "" {
		options = append(options, jwt.WithIssuer(j.issuer))
	}
	parser := jwt.NewParser(options...)

	var claims TokenClaims
	_, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return j.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, NewAuthError(ReasonTokenExpired, err)
		}
		return nil, NewAuthError(ReasonTokenInvalid, err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, NewAuthError(ReasonTokenInvalid, errors.New("token subject missing"))
	}

	return &User{
		UID:   claims.Subject,
		Email: claims.Email,
		Name:  claims.Name,
		Roles: claims.Roles,
	}, nil
}
