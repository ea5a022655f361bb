// Package api serves the JSON user resource.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	custommw "finitefield.org/portal/internal/portal/httpserver/middleware"
	"finitefield.org/portal/internal/portal/httpx"
	"finitefield.org/portal/internal/portal/observability"
	"finitefield.org/portal/internal/portal/rbac"
	"finitefield.org/portal/internal/portal/users"
)

const maxUserBodySize = 16 * 1024

var (
	errBodyTooLarge     = errors.New("request body too large")
	errEmptyBody        = errors.New("request body is required")
	errNoEditableFields = errors.New("no editable fields provided")
	errIDMismatch       = errors.New("body id does not match path")
)

// UserHandlers exposes GET and PUT on /api/users/{id}.
type UserHandlers struct {
	users users.Service
}

// NewUserHandlers constructs the handler set.
func NewUserHandlers(service users.Service) *UserHandlers {
	return &UserHandlers{users: service}
}

// Routes wires the user endpoints onto r.
func (h *UserHandlers) Routes(r chi.Router) {
	r.Get("/{id}", h.getUser)
	r.Put("/{id}", h.updateUser)
}

func (h *UserHandlers) getUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.users == nil {
		httpx.WriteError(ctx, w, httpx.NewError("user_service_unavailable", "user service is unavailable", http.StatusServiceUnavailable))
		return
	}

	id := strings.TrimSpace(chi.URLParam(r, "id"))
	caller, ok := custommw.UserFromContext(ctx)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}
	if caller.UID != id && !rbac.HasCapability(caller.Roles, rbac.CapUsersView) {
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "insufficient permissions", http.StatusForbidden))
		return
	}

	user, err := h.users.GetUser(ctx, id)
	if err != nil {
		writeUserError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, user)
}

func (h *UserHandlers) updateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.users == nil {
		httpx.WriteError(ctx, w, httpx.NewError("user_service_unavailable", "user service is unavailable", http.StatusServiceUnavailable))
		return
	}

	id := strings.TrimSpace(chi.URLParam(r, "id"))
	caller, ok := custommw.UserFromContext(ctx)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}
	self := caller.UID == id && rbac.HasCapability(caller.Roles, rbac.CapProfileSelf)
	if !self && !rbac.HasCapability(caller.Roles, rbac.CapUsersManage) {
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "insufficient permissions", http.StatusForbidden))
		return
	}

	body, err := readLimitedBody(r, maxUserBodySize)
	if err != nil {
		if errors.Is(err, errBodyTooLarge) {
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	req, err := parseUpdateRequest(body, id)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	updated, err := h.users.UpdateUser(ctx, req)
	if err != nil {
		writeUserError(ctx, w, err)
		return
	}
	custommw.RefreshSessionProfile(ctx, updated.ID, updated.Name, updated.Email)
	httpx.WriteJSON(w, http.StatusOK, updated)
}

type updateUserPayload struct {
	ID    *string `json:"id"`
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

func parseUpdateRequest(data []byte, id string) (users.UpdateRequest, error) {
	var payload updateUserPayload
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&payload); err != nil {
		return users.UpdateRequest{}, err
	}
	if payload.ID != nil && strings.TrimSpace(*payload.ID) != id {
		return users.UpdateRequest{}, errIDMismatch
	}
	if payload.Name == nil && payload.Email == nil {
		return users.UpdateRequest{}, errNoEditableFields
	}
	return users.UpdateRequest{ID: id, Name: payload.Name, Email: payload.Email}, nil
}

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r.Body == nil {
		return nil, errEmptyBody
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

func writeUserError(ctx context.Context, w http.ResponseWriter, err error) {
	var validation *users.ValidationError
	switch {
	case errors.Is(err, users.ErrNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("user_not_found", "user not found", http.StatusNotFound))
	case errors.As(err, &validation):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_user_field", validation.Message, http.StatusUnprocessableEntity).
			WithDetails(map[string]any{"field": validation.Field}))
	case errors.Is(err, users.ErrInvalid):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	default:
		observability.FromContext(ctx).Error("user service failure", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("user_service_unavailable", "user service is unavailable", http.StatusBadGateway))
	}
}
