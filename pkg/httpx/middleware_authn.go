package httpx

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/slogx"
)

// Authenticate resolves a bearer token into an enriched request context.
// Any error is reported to the client as the same 401.
type Authenticate func(ctx context.Context, bearer string) (context.Context, error)

// AuthnMiddleware requires a valid bearer access token.
func AuthnMiddleware(authn Authenticate) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := BearerToken(r)
			if !ok {
				WriteBearerError(w)
				return
			}

			ctx, err := authn(r.Context(), raw)
			if err != nil {
				slogx.FromContext(r.Context()).Debug("bearer rejected", "err", err)
				WriteBearerError(w)
				return
			}

			ctx = slogx.With(ctx, "user_id", UserIDFromContext(ctx))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole lets the request through only if the authenticated role is one
// of roles. It must run after AuthnMiddleware.
func RequireRole(roles ...string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !slices.Contains(roles, RoleFromContext(r.Context())) {
				w.Header().Set("WWW-Authenticate", `Bearer error="insufficient_scope"`)
				WriteJSON(w, http.StatusForbidden, map[string]string{
					"error":             "insufficient_scope",
					"error_description": "caller lacks the required role",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// WriteBearerError writes an RFC 6750 invalid_token challenge. The description
// is fixed so callers cannot tell expired, malformed and forged tokens apart.
func WriteBearerError(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	WriteJSON(w, http.StatusUnauthorized, map[string]string{
		"error":             "invalid_token",
		"error_description": "the access token is invalid",
	})
}
