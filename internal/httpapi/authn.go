package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"inventra.org/internal/auth"
	"inventra.org/internal/obs"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/auth/login",
	"/auth/register",
	"/auth/refresh",
	"/healthz",
	"/readyz",
	"/metrics",
}

// withAuth is the trust boundary: every protected request passes through it
// before any role or permission check runs. Identity is taken only from the
// verified token, never from client-supplied fields.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			obs.ObserveTokenValidation("missing")
			unauthorized(w, r, err.Error())
			return
		}

		claims, user, err := a.auth.Authenticate(r.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrTokenExpired):
				obs.ObserveTokenValidation("expired")
				unauthorized(w, r, "token expired")
			case errors.Is(err, auth.ErrTokenMissing), errors.Is(err, auth.ErrTokenInvalid):
				obs.ObserveTokenValidation("invalid")
				unauthorized(w, r, "invalid token")
			default:
				obs.ObserveTokenValidation("error")
				writeError(w, r, http.StatusInternalServerError, "authentication error")
			}
			return
		}
		obs.ObserveTokenValidation("ok")

		ctx := auth.ContextWithClaims(r.Context(), claims)
		ctx = auth.ContextWithUser(ctx, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// unauthorized writes the 401 family: "who are you" failures.
func unauthorized(w http.ResponseWriter, r *http.Request, msg string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="inventra"`)
	writeError(w, r, http.StatusUnauthorized, msg)
}

// roleAllowed is the pure role gate.
func roleAllowed(role auth.Role, allowed ...auth.Role) bool {
	for _, a := range allowed {
		if role == a {
			return true
		}
	}
	return false
}

// requireRole gates a handler on the caller's role. Missing identity yields
// 401; a valid identity outside the allowed set yields 403, so clients can
// tell "log in again" from "not permitted".
func (a *API) requireRole(w http.ResponseWriter, r *http.Request, allowed ...auth.Role) bool {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		unauthorized(w, r, "authentication required")
		return false
	}
	if !roleAllowed(claims.Role, allowed...) {
		writeError(w, r, http.StatusForbidden, "insufficient role")
		return false
	}
	return true
}

// RequireRole wraps a handler with the role gate. Used for admin-only routes.
func (a *API) RequireRole(allowed ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !a.requireRole(w, r, allowed...) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
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
