package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"idgate.org/internal/audit"
	"idgate.org/internal/auth"
)

type createRoleRequest struct {
	Name      string `json:"name"`
	IsDefault bool   `json:"is_default,omitempty"`
}

type updateRoleRequest struct {
	Name      *string `json:"name,omitempty"`
	IsDefault *bool   `json:"is_default,omitempty"`
}

type roleUsersRequest struct {
	UserIDs []string `json:"user_ids"`
}

type rolePermissionsRequest struct {
	PermissionIDs []string `json:"permission_ids"`
}

func (a *API) handleRoles(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		offset, limit, err := pagination(r)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		roles, err := a.svc.ListRoles(r.Context(), offset, limit)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"roles":  roles,
			"offset": offset,
			"limit":  limit,
		})
	case http.MethodPost:
		if !a.ensureAnyPermission(w, r, auth.PermManageRoles) {
			return
		}
		var req createRoleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		role, err := a.svc.CreateRole(r.Context(), req.Name, req.IsDefault)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "directory.role.create", map[string]any{
			"role_id": role.ID,
			"name":    role.Name,
		})
		w.Header().Set("Location", fmt.Sprintf("/v1/roles/%s", role.ID))
		writeJSON(w, http.StatusCreated, role)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleRoleResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/roles/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	switch {
	case len(parts) == 1:
		a.handleRoleByID(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "users":
		a.handleRoleUsers(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "permissions":
		a.handleRolePermissions(w, r, parts[0])
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) handleRoleByID(w http.ResponseWriter, r *http.Request, roleID string) {
	switch r.Method {
	case http.MethodGet:
		role, err := a.svc.GetRole(r.Context(), roleID)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, role)
	case http.MethodPatch:
		if !a.ensureAnyPermission(w, r, auth.PermManageRoles) {
			return
		}
		var req updateRoleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		role, err := a.svc.UpdateRole(r.Context(), roleID, auth.RoleUpdate{
			Name:      req.Name,
			IsDefault: req.IsDefault,
		})
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "directory.role.update", map[string]any{
			"role_id": roleID,
		})
		writeJSON(w, http.StatusOK, role)
	case http.MethodDelete:
		if !a.ensureAnyPermission(w, r, auth.PermManageRoles) {
			return
		}
		if err := a.svc.DeleteRole(r.Context(), roleID); err != nil {
			handleDomainError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "directory.role.delete", map[string]any{
			"role_id": roleID,
		})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch, http.MethodDelete)
	}
}

func (a *API) handleRoleUsers(w http.ResponseWriter, r *http.Request, roleID string) {
	switch r.Method {
	case http.MethodGet:
		users, err := a.svc.UsersOfRole(r.Context(), roleID)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"role_id": roleID,
			"users":   users,
		})
	case http.MethodPost:
		if !a.ensureAnyPermission(w, r, auth.PermManageRoles) {
			return
		}
		var req roleUsersRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if err := a.svc.AssignUsersToRole(r.Context(), roleID, req.UserIDs); err != nil {
			handleDomainError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "directory.role.assign_users", map[string]any{
			"role_id": roleID,
			"count":   len(req.UserIDs),
		})
		w.WriteHeader(http.StatusNoContent)
	case http.MethodDelete:
		if !a.ensureAnyPermission(w, r, auth.PermManageRoles) {
			return
		}
		var req roleUsersRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if err := a.svc.RemoveUsersFromRole(r.Context(), roleID, req.UserIDs); err != nil {
			handleDomainError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "directory.role.remove_users", map[string]any{
			"role_id": roleID,
			"count":   len(req.UserIDs),
		})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost, http.MethodDelete)
	}
}

func (a *API) handleRolePermissions(w http.ResponseWriter, r *http.Request, roleID string) {
	switch r.Method {
	case http.MethodGet:
		perms, err := a.svc.PermissionsOfRole(r.Context(), roleID)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"role_id":     roleID,
			"permissions": perms,
		})
	case http.MethodPost:
		if !a.ensureAnyPermission(w, r, auth.PermManagePermissions) {
			return
		}
		var req rolePermissionsRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if err := a.svc.GrantPermissionsToRole(r.Context(), roleID, req.PermissionIDs); err != nil {
			handleDomainError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "directory.role.grant_permissions", map[string]any{
			"role_id": roleID,
			"count":   len(req.PermissionIDs),
		})
		w.WriteHeader(http.StatusNoContent)
	case http.MethodDelete:
		if !a.ensureAnyPermission(w, r, auth.PermManagePermissions) {
			return
		}
		var req rolePermissionsRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if err := a.svc.RevokePermissionsFromRole(r.Context(), roleID, req.PermissionIDs); err != nil {
			handleDomainError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "directory.role.revoke_permissions", map[string]any{
			"role_id": roleID,
			"count":   len(req.PermissionIDs),
		})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost, http.MethodDelete)
	}
}
