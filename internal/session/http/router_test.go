package http_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/Devilair/Replit-Wolfinder-sub003/internal/session/domain"
	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/authsdk"
	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestIssue(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("returns a pair the access side accepts", func(t *testing.T) {
		t.Parallel()
		s := newServer(t)

		tokens, err := s.client.Issue(ctx, testIssueToken, authsdk.IssueRequest{
			UserID: "user-1",
			Role:   domain.RoleProfessional,
			Claims: map[string]string{"studio": "north"},
		})
		require.NoError(t, err)
		require.Equal(t, domain.TokenTypeBearer, tokens.TokenType)
		require.Equal(t, int(accessTTL.Seconds()), tokens.ExpiresIn)
		require.True(t, t0.Add(refreshTTL).Equal(tokens.RefreshExpiresAt))
		require.NotEmpty(t, tokens.FamilyID)

		me, err := s.client.WhoAmI(ctx, tokens.AccessToken)
		require.NoError(t, err)
		require.Equal(t, "user-1", me.UserID)
		require.Equal(t, domain.RoleProfessional, me.Role)
		require.Equal(t, "north", me.Claims["studio"])
		require.Equal(t, tokens.FamilyID, me.FamilyID)
	})

	t.Run("wrong issue token", func(t *testing.T) {
		t.Parallel()
		s := newServer(t)

		_, err := s.client.Issue(ctx, "not-the-token", authsdk.IssueRequest{UserID: "u", Role: "consumer"})
		requireOAuth2Error(t, err, authsdk.ErrInvalidClient)

		_, err = s.client.Issue(ctx, "", authsdk.IssueRequest{UserID: "u", Role: "consumer"})
		requireOAuth2Error(t, err, authsdk.ErrInvalidClient)
	})

	t.Run("identity without role", func(t *testing.T) {
		t.Parallel()
		s := newServer(t)

		_, err := s.client.Issue(ctx, testIssueToken, authsdk.IssueRequest{UserID: "u"})
		requireOAuth2Error(t, err, authsdk.ErrInvalidRequest)
	})

	t.Run("rate limited", func(t *testing.T) {
		t.Parallel()
		s := newServer(t)

		var last error
		for range 20 {
			_, last = s.client.Issue(ctx, testIssueToken, authsdk.IssueRequest{UserID: "u", Role: "consumer"})
		}
		var oe *authsdk.OAuth2Error
		require.ErrorAs(t, last, &oe)
		require.Equal(t, http.StatusTooManyRequests, oe.StatusCode)
		require.Equal(t, authsdk.ErrorCodeRateLimitExceeded, oe.Code)
	})
}

func TestRefresh(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("rotates and spends the old token", func(t *testing.T) {
		t.Parallel()
		s := newServer(t)
		first := s.issue(t, "user-1", domain.RoleConsumer)

		second, err := s.client.Refresh(ctx, first.RefreshToken)
		require.NoError(t, err)
		require.NotEqual(t, first.RefreshToken, second.RefreshToken)
		require.Equal(t, first.FamilyID, second.FamilyID)

		// replay: the family dies, including the legitimate successor
		_, err = s.client.Refresh(ctx, first.RefreshToken)
		requireOAuth2Error(t, err, authsdk.ErrInvalidGrant)

		_, err = s.client.Refresh(ctx, second.RefreshToken)
		requireOAuth2Error(t, err, authsdk.ErrInvalidGrant)
	})

	t.Run("expired token", func(t *testing.T) {
		t.Parallel()
		s := newServer(t)
		first := s.issue(t, "user-1", domain.RoleConsumer)

		s.clock.Advance(refreshTTL)
		_, err := s.client.Refresh(ctx, first.RefreshToken)
		requireOAuth2Error(t, err, authsdk.ErrInvalidGrant)
	})

	t.Run("store outage leaves the token usable", func(t *testing.T) {
		t.Parallel()
		s := newServer(t)
		first := s.issue(t, "user-1", domain.RoleConsumer)

		s.store.down.Store(true)
		_, err := s.client.Refresh(ctx, first.RefreshToken)
		requireOAuth2Error(t, err, authsdk.ErrTemporarilyUnavailable)

		s.store.down.Store(false)
		_, err = s.client.Refresh(ctx, first.RefreshToken)
		require.NoError(t, err)
	})

	t.Run("missing token", func(t *testing.T) {
		t.Parallel()
		s := newServer(t)

		_, err := s.client.Refresh(ctx, "")
		requireOAuth2Error(t, err, authsdk.ErrInvalidRequest)
	})

	t.Run("wrong content type", func(t *testing.T) {
		t.Parallel()
		s := newServer(t)

		resp, err := http.Post(s.srv.URL+"/v1/sessions/refresh", "text/plain", strings.NewReader(`{}`))
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
	})
}

// Every refusal must look identical on the wire, or the response itself
// tells an attacker whether a stolen token was ever valid.
func TestRefreshRejectionsAreIndistinguishable(t *testing.T) {
	t.Parallel()
	s := newServer(t)
	ctx := context.Background()

	post := func(token string) (int, string) {
		body := `{"refresh_token":"` + token + `"}`
		resp, err := http.Post(s.srv.URL+"/v1/sessions/refresh", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		defer resp.Body.Close()
		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, string(raw)
	}

	replayed := s.issue(t, "user-1", domain.RoleConsumer)
	_, err := s.client.Refresh(ctx, replayed.RefreshToken)
	require.NoError(t, err)

	revoked := s.issue(t, "user-2", domain.RoleConsumer)
	require.NoError(t, s.client.Logout(ctx, revoked.RefreshToken))

	expired := s.issue(t, "user-3", domain.RoleConsumer)

	unknown := cryptox.MustGenerateToken(cryptox.TokenSize256)

	wantCode, wantBody := post(unknown)
	require.Equal(t, http.StatusUnauthorized, wantCode)

	for name, token := range map[string]string{
		"replayed": replayed.RefreshToken,
		"revoked":  revoked.RefreshToken,
		"garbage":  "not-a-token",
	} {
		code, body := post(token)
		require.Equal(t, wantCode, code, name)
		require.Equal(t, wantBody, body, name)
	}

	s.clock.Advance(refreshTTL)
	code, body := post(expired.RefreshToken)
	require.Equal(t, wantCode, code)
	require.Equal(t, wantBody, body)
}

func TestLogout(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("ends the session", func(t *testing.T) {
		t.Parallel()
		s := newServer(t)
		tokens := s.issue(t, "user-1", domain.RoleConsumer)

		require.NoError(t, s.client.Logout(ctx, tokens.RefreshToken))
		_, err := s.client.Refresh(ctx, tokens.RefreshToken)
		requireOAuth2Error(t, err, authsdk.ErrInvalidGrant)

		// idempotent
		require.NoError(t, s.client.Logout(ctx, tokens.RefreshToken))
	})

	t.Run("unknown token is accepted", func(t *testing.T) {
		t.Parallel()
		s := newServer(t)

		require.NoError(t, s.client.Logout(ctx, cryptox.MustGenerateToken(cryptox.TokenSize256)))
		require.NoError(t, s.client.Logout(ctx, "garbage"))
	})

	t.Run("rotated token ends the successor too", func(t *testing.T) {
		t.Parallel()
		s := newServer(t)
		first := s.issue(t, "user-1", domain.RoleConsumer)
		second, err := s.client.Refresh(ctx, first.RefreshToken)
		require.NoError(t, err)

		require.NoError(t, s.client.Logout(ctx, first.RefreshToken))
		_, err = s.client.Refresh(ctx, second.RefreshToken)
		requireOAuth2Error(t, err, authsdk.ErrInvalidGrant)
	})

	t.Run("store outage is reported", func(t *testing.T) {
		t.Parallel()
		s := newServer(t)
		tokens := s.issue(t, "user-1", domain.RoleConsumer)

		s.store.down.Store(true)
		err := s.client.Logout(ctx, tokens.RefreshToken)
		requireOAuth2Error(t, err, authsdk.ErrTemporarilyUnavailable)
	})
}

func TestAuthenticatedRoutes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("end session only ends this device", func(t *testing.T) {
		t.Parallel()
		s := newServer(t)
		phone := s.issue(t, "user-1", domain.RoleConsumer)
		laptop := s.issue(t, "user-1", domain.RoleConsumer)

		out, err := s.client.EndSession(ctx, phone.AccessToken)
		require.NoError(t, err)
		require.EqualValues(t, 1, out.Revoked)

		_, err = s.client.Refresh(ctx, phone.RefreshToken)
		requireOAuth2Error(t, err, authsdk.ErrInvalidGrant)
		_, err = s.client.Refresh(ctx, laptop.RefreshToken)
		require.NoError(t, err)
	})

	t.Run("logout all ends every device", func(t *testing.T) {
		t.Parallel()
		s := newServer(t)
		phone := s.issue(t, "user-1", domain.RoleConsumer)
		laptop := s.issue(t, "user-1", domain.RoleConsumer)
		other := s.issue(t, "user-2", domain.RoleConsumer)

		out, err := s.client.LogoutAll(ctx, phone.AccessToken)
		require.NoError(t, err)
		require.EqualValues(t, 2, out.Revoked)

		_, err = s.client.Refresh(ctx, laptop.RefreshToken)
		requireOAuth2Error(t, err, authsdk.ErrInvalidGrant)
		_, err = s.client.Refresh(ctx, other.RefreshToken)
		require.NoError(t, err)
	})

	t.Run("access token outlives revocation until it expires", func(t *testing.T) {
		t.Parallel()
		s := newServer(t)
		tokens := s.issue(t, "user-1", domain.RoleConsumer)

		_, err := s.client.LogoutAll(ctx, tokens.AccessToken)
		require.NoError(t, err)

		_, err = s.client.WhoAmI(ctx, tokens.AccessToken)
		require.NoError(t, err)

		s.clock.Advance(accessTTL)
		_, err = s.client.WhoAmI(ctx, tokens.AccessToken)
		requireOAuth2Error(t, err, authsdk.ErrInvalidToken)
	})

	t.Run("missing or forged bearer", func(t *testing.T) {
		t.Parallel()
		s := newServer(t)

		req, err := http.NewRequest(http.MethodGet, s.srv.URL+"/v1/session", nil)
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		require.Equal(t, `Bearer error="invalid_token"`, resp.Header.Get("WWW-Authenticate"))

		tokens := s.issue(t, "user-1", domain.RoleConsumer)
		_, err = s.client.WhoAmI(ctx, tokens.AccessToken+"x")
		requireOAuth2Error(t, err, authsdk.ErrInvalidToken)

		// a refresh token is not an access token
		_, err = s.client.WhoAmI(ctx, tokens.RefreshToken)
		requireOAuth2Error(t, err, authsdk.ErrInvalidToken)
	})
}

func TestForceLogout(t *testing.T) {
	t.Parallel()
	s := newServer(t)
	ctx := context.Background()

	admin := s.issue(t, "admin-1", domain.RoleAdmin)
	victim := s.issue(t, "user-1", domain.RoleConsumer)
	s.issue(t, "user-1", domain.RoleConsumer)

	_, err := s.client.ForceLogout(ctx, victim.AccessToken, "admin-1")
	requireOAuth2Error(t, err, authsdk.ErrInsufficientRole)

	out, err := s.client.ForceLogout(ctx, admin.AccessToken, "user-1")
	require.NoError(t, err)
	require.EqualValues(t, 2, out.Revoked)

	_, err = s.client.Refresh(ctx, victim.RefreshToken)
	requireOAuth2Error(t, err, authsdk.ErrInvalidGrant)

	// the admin's own session is untouched
	_, err = s.client.Refresh(ctx, admin.RefreshToken)
	require.NoError(t, err)
}

func TestSessionAutoRefresh(t *testing.T) {
	t.Parallel()
	s := newServer(t)
	ctx := context.Background()

	tokens := s.issue(t, "user-1", domain.RoleConsumer)

	// a stale expiry forces a rotation before the first call
	session := s.client.NewSessionFromTokens(tokens.AccessToken, tokens.RefreshToken, t0.AddDate(-1, 0, 0))
	me, err := session.WhoAmI(ctx)
	require.NoError(t, err)
	require.Equal(t, "user-1", me.UserID)
	require.NotEqual(t, tokens.RefreshToken, session.RefreshToken())

	// the stored token was spent by the session
	_, err = s.client.Refresh(ctx, tokens.RefreshToken)
	requireOAuth2Error(t, err, authsdk.ErrInvalidGrant)

	// which ended the family, so the session cannot rotate any more
	err = session.Refresh(ctx)
	require.ErrorIs(t, err, authsdk.ErrInvalidGrant)
	_, err = session.WhoAmI(ctx)
	require.ErrorIs(t, err, authsdk.ErrSessionEnded)
}

func TestSystemRoutes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("jwks publishes the active key", func(t *testing.T) {
		t.Parallel()
		s := newServer(t)

		jwks, err := s.client.JWKS(ctx)
		require.NoError(t, err)
		require.Len(t, jwks.Keys, 1)
		require.Equal(t, s.keys.Signer().KID(), jwks.Keys[0].Kid)
	})

	t.Run("health", func(t *testing.T) {
		t.Parallel()
		s := newServer(t)

		live, err := s.client.Livez(ctx)
		require.NoError(t, err)
		require.Equal(t, "ok", live.Status)
		require.Equal(t, "test", live.Version)

		ready, err := s.client.Readyz(ctx)
		require.NoError(t, err)
		require.Equal(t, "ok", ready.Checks.Store)

		s.store.down.Store(true)
		ready, err = s.client.Readyz(ctx)
		requireOAuth2Error(t, err, authsdk.ErrTemporarilyUnavailable)
		require.Equal(t, "degraded", ready.Status)
		require.NotEqual(t, "ok", ready.Checks.Store)
		require.Equal(t, "ok", ready.Checks.Signer)
	})

	t.Run("metrics", func(t *testing.T) {
		t.Parallel()
		s := newServer(t)
		first := s.issue(t, "user-1", domain.RoleConsumer)
		_, err := s.client.Refresh(ctx, first.RefreshToken)
		require.NoError(t, err)
		_, err = s.client.Refresh(ctx, first.RefreshToken)
		require.Error(t, err)

		resp, err := http.Get(s.srv.URL + "/metrics")
		require.NoError(t, err)
		defer resp.Body.Close()
		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)

		require.Contains(t, string(raw), "sessiond_sessions_issued_total 1")
		require.Contains(t, string(raw), "sessiond_rotations_total 1")
		require.Contains(t, string(raw), "sessiond_breaches_total 1")
	})

	t.Run("swagger", func(t *testing.T) {
		t.Parallel()
		s := newServer(t)

		resp, err := http.Get(s.srv.URL + "/swagger/doc.json")
		require.NoError(t, err)
		defer resp.Body.Close()
		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.True(t, bytes.Contains(raw, []byte("/v1/sessions/refresh")))
	})
}
