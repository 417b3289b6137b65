package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/nucmed-tracker/internal/application"
)

type roleService interface {
	CreateRole(ctx context.Context, params application.CreateRoleParams) (application.Role, error)
	UpdateRole(ctx context.Context, params application.UpdateRoleParams) (application.Role, error)
	DeleteRole(ctx context.Context, principal application.Principal, roleID string) error
	ListRoles(ctx context.Context, principal application.Principal) ([]application.Role, error)
}

type RoleHandler struct {
	service   roleService
	responder responder
	logger    *slog.Logger
}

func NewRoleHandler(service roleService, logger *slog.Logger) *RoleHandler {
	base := defaultLogger(logger)
	return &RoleHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *RoleHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "RoleHandler", operation, attrs...)
}

func (h *RoleHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req roleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Create", "principal_id", principal.UserID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode role request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Create", "principal_id", principal.UserID)

	role, err := h.service.CreateRole(r.Context(), application.CreateRoleParams{
		Principal: principal,
		Input:     req.toInput(),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "role creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("role_id", role.ID).InfoContext(r.Context(), "role created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, roleResponse{Role: toRoleDTO(role)})
}

func (h *RoleHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	roleID, ok := RoleIDFromContext(r.Context())
	if !ok || strings.TrimSpace(roleID) == "" {
		h.log(r.Context(), "Update", "error_kind", "bad_request").ErrorContext(r.Context(), "missing role id for update")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidRoleID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req roleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Update", "principal_id", principal.UserID, "role_id", roleID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode role update", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Update", "principal_id", principal.UserID, "role_id", roleID)

	role, err := h.service.UpdateRole(r.Context(), application.UpdateRoleParams{
		Principal: principal,
		RoleID:    roleID,
		Input:     req.toInput(),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "role update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "role updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, roleResponse{Role: toRoleDTO(role)})
}

func (h *RoleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	roleID, ok := RoleIDFromContext(r.Context())
	if !ok || strings.TrimSpace(roleID) == "" {
		h.log(r.Context(), "Delete", "error_kind", "bad_request").ErrorContext(r.Context(), "missing role id for delete")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidRoleID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Delete", "principal_id", principal.UserID, "role_id", roleID)
	if err := h.service.DeleteRole(r.Context(), principal, roleID); err != nil {
		logger.ErrorContext(r.Context(), "role delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "role deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *RoleHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "List", "principal_id", principal.UserID)
	roles, err := h.service.ListRoles(r.Context(), principal)
	if err != nil {
		logger.ErrorContext(r.Context(), "role list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("result_count", len(roles)).InfoContext(r.Context(), "roles listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listRolesResponse{Roles: toRoleDTOs(roles)})
}

type roleRequest struct {
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}

func (r roleRequest) toInput() application.RoleInput {
	return application.RoleInput{
		Name:        strings.TrimSpace(r.Name),
		Permissions: r.Permissions,
	}
}

type roleResponse struct {
	Role roleDetailDTO `json:"role"`
}

type listRolesResponse struct {
	Roles []roleDetailDTO `json:"roles"`
}

type roleDetailDTO struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
}

func toRoleDTO(role application.Role) roleDetailDTO {
	return roleDetailDTO{
		ID:          role.ID,
		Name:        role.Name,
		Permissions: role.Permissions,
		CreatedAt:   role.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:   role.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func toRoleDTOs(roles []application.Role) []roleDetailDTO {
	if len(roles) == 0 {
		return nil
	}
	out := make([]roleDetailDTO, 0, len(roles))
	for _, role := range roles {
		out = append(out, toRoleDTO(role))
	}
	return out
}
