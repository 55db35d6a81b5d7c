package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"idgate.org/internal/audit"
	"idgate.org/internal/auth"
)

type createPermissionRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type updatePermissionRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

func (a *API) handlePermissions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		offset, limit, err := pagination(r)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		perms, err := a.svc.ListPermissions(r.Context(), offset, limit)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"permissions": perms,
			"offset":      offset,
			"limit":       limit,
		})
	case http.MethodPost:
		if !a.ensureAnyPermission(w, r, auth.PermManagePermissions) {
			return
		}
		var req createPermissionRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		perm, err := a.svc.CreatePermission(r.Context(), req.Name, req.Description)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "directory.permission.create", map[string]any{
			"permission_id": perm.ID,
			"name":          perm.Name,
		})
		w.Header().Set("Location", fmt.Sprintf("/v1/permissions/%s", perm.ID))
		writeJSON(w, http.StatusCreated, perm)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handlePermissionResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/permissions/"), "/")
	if path == "" || strings.Contains(path, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	permissionID := path
	switch r.Method {
	case http.MethodGet:
		perm, err := a.svc.GetPermission(r.Context(), permissionID)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, perm)
	case http.MethodPatch:
		if !a.ensureAnyPermission(w, r, auth.PermManagePermissions) {
			return
		}
		var req updatePermissionRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		perm, err := a.svc.UpdatePermission(r.Context(), permissionID, auth.PermissionUpdate{
			Name:        req.Name,
			Description: req.Description,
		})
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "directory.permission.update", map[string]any{
			"permission_id": permissionID,
		})
		writeJSON(w, http.StatusOK, perm)
	case http.MethodDelete:
		if !a.ensureAnyPermission(w, r, auth.PermManagePermissions) {
			return
		}
		if err := a.svc.DeletePermission(r.Context(), permissionID); err != nil {
			handleDomainError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "directory.permission.delete", map[string]any{
			"permission_id": permissionID,
		})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch, http.MethodDelete)
	}
}
