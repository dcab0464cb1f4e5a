package httpx_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/httpx"
	"github.com/stretchr/testify/require"
)

func TestChainOrder(t *testing.T) {
	var trail []string
	mark := func(name string) httpx.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				trail = append(trail, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := httpx.Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		trail = append(trail, "handler")
	}), mark("outer"), mark("inner"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, []string{"outer", "inner", "handler"}, trail)
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer abc", "abc", true},
		{"Bearer   abc  ", "abc", true},
		{"Bearer ", "", false},
		{"Basic abc", "", false},
		{"abc", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		got, ok := httpx.BearerToken(req)
		require.Equal(t, tt.ok, ok, tt.header)
		require.Equal(t, tt.want, got, tt.header)
	}
}

func TestAuthnMiddleware(t *testing.T) {
	authn := func(ctx context.Context, bearer string) (context.Context, error) {
		if bearer != "good" {
			return nil, errors.New("nope")
		}
		return httpx.WithSubject(ctx, "user-1", "admin"), nil
	}

	var gotUser, gotRole string
	h := httpx.Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = httpx.UserIDFromContext(r.Context())
		gotRole = httpx.RoleFromContext(r.Context())
	}), httpx.AuthnMiddleware(authn), httpx.RequireRole("admin"))

	for _, hdr := range []string{"", "Bearer bad", "Token good"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", hdr)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusUnauthorized, rec.Code, hdr)
		require.Equal(t, `Bearer error="invalid_token"`, rec.Header().Get("WWW-Authenticate"))
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "user-1", gotUser)
	require.Equal(t, "admin", gotRole)
}

func TestRequireRole_Forbidden(t *testing.T) {
	h := httpx.RequireRole("admin")(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(httpx.WithSubject(req.Context(), "user-1", "consumer"))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Contains(t, rec.Body.String(), "insufficient_scope")
}

func TestDecodeJSON(t *testing.T) {
	type body struct {
		Token string `json:"refresh_token"`
	}

	tests := []struct {
		name    string
		ctype   string
		payload string
		wantErr error
	}{
		{"ok", "application/json", `{"refresh_token":"x"}`, nil},
		{"ok with charset", "application/json; charset=utf-8", `{"refresh_token":"x"}`, nil},
		{"form", "application/x-www-form-urlencoded", `refresh_token=x`, httpx.ErrUnsupportedMediaType},
		{"unknown field", "application/json", `{"token":"x"}`, httpx.ErrBadBody},
		{"trailing", "application/json", `{"refresh_token":"x"}{}`, httpx.ErrBadBody},
		{"garbage", "application/json", `{`, httpx.ErrBadBody},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.payload))
			req.Header.Set("Content-Type", tt.ctype)

			var b body
			err := httpx.DecodeJSON(httptest.NewRecorder(), req, &b)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, "x", b.Token)
		})
	}
}
