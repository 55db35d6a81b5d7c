package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"idgate.org/internal/auth"
	"idgate.org/internal/obs"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/v1/auth/register",
	"/v1/auth/login",
	"/healthz",
	"/readyz",
	"/v1/info",
	"/metrics",
	"/openapi.yaml",
	"/",
}

// withAuth authenticates every non-public request and stores the resolved
// user plus the raw token in the request context. Revoked, malformed,
// expired and unknown-subject tokens are all rejected here; handlers behind
// this middleware can rely on UserFromContext succeeding.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			obs.ObserveDenial("unauthenticated")
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}

		user, err := a.svc.Authenticate(r.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrInactiveUser):
				obs.ObserveDenial("inactive")
				writeError(w, r, http.StatusBadRequest, err.Error())
			case errors.Is(err, auth.ErrUnauthenticated):
				obs.ObserveDenial("unauthenticated")
				w.Header().Set("WWW-Authenticate", "Bearer")
				writeError(w, r, http.StatusUnauthorized, err.Error())
			default:
				writeError(w, r, http.StatusInternalServerError, "authentication error")
			}
			return
		}

		ctx := auth.ContextWithUser(r.Context(), user)
		ctx = auth.ContextWithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ensureAnyPermission gates a handler on the caller holding at least one of
// the named permissions. Writes the error response itself and reports
// whether the request may proceed.
func (a *API) ensureAnyPermission(w http.ResponseWriter, r *http.Request, perms ...string) bool {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		obs.ObserveDenial("unauthenticated")
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeError(w, r, http.StatusUnauthorized, auth.ErrUnauthenticated.Error())
		return false
	}
	if err := a.svc.RequireAnyPermission(r.Context(), user.ID, perms); err != nil {
		if errors.Is(err, auth.ErrForbidden) {
			obs.ObserveDenial("forbidden")
			writeError(w, r, http.StatusForbidden, err.Error())
		} else {
			writeError(w, r, http.StatusInternalServerError, "authorization error")
		}
		return false
	}
	return true
}

// ensureAnyRole is the role-name variant of ensureAnyPermission.
func (a *API) ensureAnyRole(w http.ResponseWriter, r *http.Request, roles ...string) bool {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		obs.ObserveDenial("unauthenticated")
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeError(w, r, http.StatusUnauthorized, auth.ErrUnauthenticated.Error())
		return false
	}
	if err := a.svc.RequireAnyRole(r.Context(), user.ID, roles); err != nil {
		if errors.Is(err, auth.ErrForbidden) {
			obs.ObserveDenial("forbidden")
			writeError(w, r, http.StatusForbidden, err.Error())
		} else {
			writeError(w, r, http.StatusInternalServerError, "authorization error")
		}
		return false
	}
	return true
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
