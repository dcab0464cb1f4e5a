package service_test

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Devilair/Replit-Wolfinder-sub003/internal/session/domain"
	"github.com/Devilair/Replit-Wolfinder-sub003/internal/session/service"
	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/cryptox"
	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/slogx"
	"github.com/stretchr/testify/require"
)

func TestLogout(t *testing.T) {
	f := newFixture(t)
	p0 := f.issue(t, alice)

	require.NoError(t, f.revoker.Logout(f.ctx(), p0.RefreshToken))
	rec, err := f.mem.RefreshTokens().GetRefreshTokenByHash(f.ctx(), cryptox.FingerprintToken(p0.RefreshToken))
	require.NoError(t, err)
	require.Equal(t, domain.StateRevoked, rec.State(f.clock.Now()))

	// twice is fine
	require.NoError(t, f.revoker.Logout(f.ctx(), p0.RefreshToken))
}

func TestLogoutUnknownIsSilent(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.revoker.Logout(f.ctx(), ""))
	require.NoError(t, f.revoker.Logout(f.ctx(), "nope"))
	require.NoError(t, f.revoker.Logout(f.ctx(), cryptox.MustGenerateToken(service.RefreshTokenSize)))
}

func TestLogoutWithRotatedTokenEndsFamily(t *testing.T) {
	f := newFixture(t)
	p0 := f.issue(t, alice)
	p1, err := f.rotation.Rotate(f.ctx(), p0.RefreshToken)
	require.NoError(t, err)

	require.NoError(t, f.revoker.Logout(f.ctx(), p0.RefreshToken))

	_, err = f.rotation.Rotate(f.ctx(), p1.RefreshToken)
	requireReason(t, err, domain.RejectRevoked)
}

func TestLogoutStoreFailure(t *testing.T) {
	f := newFixture(t)
	p0 := f.issue(t, alice)

	f.store.failOn("RevokeRefreshToken", errBackendDown)
	require.ErrorIs(t, f.revoker.Logout(f.ctx(), p0.RefreshToken), service.ErrStoreUnavailable)
}

func TestLogoutAllSessions(t *testing.T) {
	f := newFixture(t)
	a1 := f.issue(t, alice)
	a2 := f.issue(t, alice)
	bob := f.issue(t, domain.Identity{UserID: "user-bob", Role: domain.RoleProfessional})

	// a consumed record is not counted, its successor is
	_, err := f.rotation.Rotate(f.ctx(), a2.RefreshToken)
	require.NoError(t, err)

	n, err := f.revoker.LogoutAllSessions(f.ctx(), alice.UserID)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	_, err = f.rotation.Rotate(f.ctx(), a1.RefreshToken)
	requireReason(t, err, domain.RejectRevoked)

	_, err = f.rotation.Rotate(f.ctx(), bob.RefreshToken)
	require.NoError(t, err)

	_, err = f.revoker.LogoutAllSessions(f.ctx(), "")
	require.ErrorIs(t, err, domain.ErrInvalidIdentity)
}

func TestForceLogoutAudits(t *testing.T) {
	f := newFixture(t)
	f.issue(t, alice)
	admin := domain.Identity{UserID: "user-admin", Role: domain.RoleAdmin}

	n, err := f.revoker.ForceLogout(f.ctx(), admin, alice.UserID)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	entry := findLog(t, f.logs.String(), "sessions force revoked")
	require.Equal(t, "user-admin", entry["actor_id"])
	require.Equal(t, alice.UserID, entry["user_id"])
	require.Equal(t, "admin", entry["reason"])
}

func TestRevokeFamily(t *testing.T) {
	f := newFixture(t)
	p0 := f.issue(t, alice)
	other := f.issue(t, alice)

	n, err := f.revoker.RevokeFamily(f.ctx(), p0.FamilyID)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	_, err = f.rotation.Rotate(f.ctx(), p0.RefreshToken)
	requireReason(t, err, domain.RejectRevoked)
	_, err = f.rotation.Rotate(f.ctx(), other.RefreshToken)
	require.NoError(t, err)
}

// Access tokens outlive revocation until they expire.
func TestAuthenticateIsStateless(t *testing.T) {
	f := newFixture(t)
	p0 := f.issue(t, alice)

	_, err := f.revoker.LogoutAllSessions(f.ctx(), alice.UserID)
	require.NoError(t, err)
	f.store.failOn("GetRefreshTokenByHash", errBackendDown)

	p, err := f.verifier.Authenticate(f.ctx(), p0.AccessToken)
	require.NoError(t, err)
	require.Equal(t, alice.UserID, p.UserID)
	require.Equal(t, domain.RoleConsumer, p.Role)
	require.True(t, t0.Add(accessTTL).Equal(p.ExpiresAt))
	require.NotEmpty(t, p.TokenID)
}

func TestAuthenticateFailuresAreUniform(t *testing.T) {
	f := newFixture(t)
	p0 := f.issue(t, alice)

	tampered := []byte(p0.AccessToken)
	tampered[len(tampered)/2] ^= 0x01

	cases := map[string]func() string{
		"empty":    func() string { return "" },
		"garbage":  func() string { return "not.a.jwt" },
		"tampered": func() string { return string(tampered) },
		"refresh":  func() string { return p0.RefreshToken },
		"expired": func() string {
			f.clock.Advance(accessTTL)
			return p0.AccessToken
		},
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.verifier.Authenticate(f.ctx(), tok())
			require.Equal(t, service.ErrUnauthenticated, err)
		})
	}
}

func TestHousekeeperPurges(t *testing.T) {
	f := newFixture(t)
	f.issue(t, alice)
	f.clock.Advance(time.Hour)
	f.issue(t, alice)

	h := service.NewHousekeeper(f.store, slogx.Discard(), time.Hour)
	h.Clock = f.clock
	h.Metrics = f.metrics

	n, err := h.RunOnce(f.ctx())
	require.NoError(t, err)
	require.Zero(t, n)

	f.clock.Advance(refreshTTL - time.Hour)
	n, err = h.RunOnce(f.ctx())
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	require.Contains(t, scrape(t, f), "sessiond_purged_records_total 1")

	f.store.failOn("PurgeExpired", errBackendDown)
	_, err = h.RunOnce(f.ctx())
	require.ErrorIs(t, err, errBackendDown)
}

func TestHousekeeperStartStop(t *testing.T) {
	f := newFixture(t)
	f.issue(t, alice)
	f.clock.Advance(refreshTTL)

	h := service.NewHousekeeper(f.store, slogx.Discard(), time.Hour)
	h.Clock = f.clock
	h.Start()
	h.Stop()
	h.Stop()

	// the startup sweep ran before Stop returned
	n, err := f.mem.RefreshTokens().PurgeExpired(f.ctx(), f.clock.Now())
	require.NoError(t, err)
	require.Zero(t, n)
}

func scrape(t *testing.T, f *fixture) string {
	t.Helper()
	rec := httptest.NewRecorder()
	f.metrics.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}
