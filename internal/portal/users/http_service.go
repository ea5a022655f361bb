package users

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
)

// HTTPClient matches the subset of http.Client used by HTTPService.
type HTTPClient interface {
	Do(*http.Request) (*http.Response, error)
}

// HTTPService implements Service against a remote portal API.
type HTTPService struct {
	base   *url.URL
	client HTTPClient
	token  string
}

// HTTPOption customises an HTTPService.
type HTTPOption func(*HTTPService)

// WithBearerToken sends the token as an Authorization header on every request.
func WithBearerToken(token string) HTTPOption {
	return func(s *HTTPService) {
		s.token = strings.TrimSpace(token)
	}
}

// NewHTTPService constructs a Service rooted at baseURL.
func NewHTTPService(baseURL string, client HTTPClient, opts ...HTTPOption) (*HTTPService, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("users: base URL is required")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("users: parse base URL: %w", err)
	}
	if !strings.HasSuffix(parsed.Path, "/") {
		parsed.Path += "/"
	}
	if client == nil {
		client = http.DefaultClient
	}
	svc := &HTTPService{base: parsed, client: client}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// GetUser issues GET /api/users/{id}.
func (s *HTTPService) GetUser(ctx context.Context, id string) (*User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, &ValidationError{Field: "id", Message: "is required"}
	}
	req, err := s.newRequest(ctx, http.MethodGet, userPath(id), nil)
	if err != nil {
		return nil, err
	}
	return s.doUser(req, "get user")
}

// UpdateUser issues PUT /api/users/{id} with the non-nil fields.
func (s *HTTPService) UpdateUser(ctx context.Context, in UpdateRequest) (*User, error) {
	id := strings.TrimSpace(in.ID)
	if id == "" {
		return nil, &ValidationError{Field: "id", Message: "is required"}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(in); err != nil {
		return nil, fmt.Errorf("users: encode payload: %w", err)
	}
	req, err := s.newRequest(ctx, http.MethodPut, userPath(id), &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return s.doUser(req, "update user")
}

func (s *HTTPService) doUser(req *http.Request, op string) (*User, error) {
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("users: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errorFromResponse(resp)
	}

	var payload User
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("users: decode %s: %w", op, err)
	}
	return &payload, nil
}

func (s *HTTPService) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	target := s.base.String() + strings.TrimPrefix(endpoint, "/")
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("users: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	return req, nil
}

func userPath(id string) string {
	return path.Join("/api/users", url.PathEscape(id))
}

func errorFromResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))

	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	message := strings.TrimSpace(string(body))
	if len(body) > 0 {
		if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
			message = payload.Message
		}
	}
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, message)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", ErrInvalid, message)
	}
	return fmt.Errorf("users: backend error (%d): %s", resp.StatusCode, message)
}
