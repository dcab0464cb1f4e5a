package http_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	sessionhttp "github.com/Devilair/Replit-Wolfinder-sub003/internal/session/http"
	"github.com/Devilair/Replit-Wolfinder-sub003/internal/session/domain"
	"github.com/Devilair/Replit-Wolfinder-sub003/internal/session/metrics"
	"github.com/Devilair/Replit-Wolfinder-sub003/internal/session/service"
	"github.com/Devilair/Replit-Wolfinder-sub003/internal/session/store"
	"github.com/Devilair/Replit-Wolfinder-sub003/internal/session/store/drivers/memory"
	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/authsdk"
	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/clockx"
	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/jwtx"
	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/slogx"
	"github.com/stretchr/testify/require"
)

const (
	testIssueToken = "issue-token-for-tests-0123456789abcdef"
	testIssuer     = "https://sessions.test"
	testAudience   = "wolfinder"
	accessTTL      = 15 * time.Minute
	refreshTTL     = 24 * time.Hour
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type server struct {
	clock   *clockx.Manual
	store   *outageStore
	keys    *jwtx.KeyRing
	metrics *metrics.Metrics
	srv     *httptest.Server
	client  *authsdk.Client
}

func newServer(t *testing.T) *server {
	t.Helper()

	keys, err := jwtx.NewEphemeralKeyRing(jwtx.KeyRingOptions{Algorithm: jwtx.AlgorithmEdDSA})
	require.NoError(t, err)

	clock := clockx.NewManual(t0)
	st := &outageStore{Store: memory.NewStore()}
	m := metrics.New()

	tokens := service.Tokens{
		Signer:     keys,
		Issuer:     testIssuer,
		Audience:   []string{testAudience},
		AccessTTL:  accessTTL,
		RefreshTTL: refreshTTL,
	}

	router := sessionhttp.NewRouter(keys.KeySet(), testIssueToken, "test", st, m, clock, slogx.Discard())
	router.Issuer = &service.CredentialIssuer{Store: st, Tokens: tokens, Clock: clock, Metrics: m}
	router.Rotation = &service.RotationEngine{Store: st, Tokens: tokens, Clock: clock, Metrics: m}
	router.Revocation = &service.RevocationService{Store: st, Clock: clock, Metrics: m}
	router.Verifier = service.NewAccessVerifier(keys.KeySet(), jwtx.VerifyOptions{
		Issuer:   testIssuer,
		Audience: testAudience,
		Now:      clock.Now,
	})
	router.ApplyRoutes()

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &server{
		clock:   clock,
		store:   st,
		keys:    keys,
		metrics: m,
		srv:     srv,
		client:  authsdk.NewClient(srv.URL),
	}
}

func (s *server) issue(t *testing.T, userID, role string) *authsdk.TokenResponse {
	t.Helper()
	tokens, err := s.client.Issue(context.Background(), testIssueToken, authsdk.IssueRequest{
		UserID: userID,
		Role:   role,
	})
	require.NoError(t, err)
	return tokens
}

func requireOAuth2Error(t *testing.T, err error, want *authsdk.OAuth2Error) {
	t.Helper()
	require.Error(t, err)
	var oe *authsdk.OAuth2Error
	require.ErrorAs(t, err, &oe)
	require.Equal(t, want.StatusCode, oe.StatusCode)
	require.Equal(t, want.Code, oe.Code)
}

// outageStore makes every read and write fail while down is set.
type outageStore struct {
	store.Store
	down atomic.Bool
}

var errOutage = errors.New("store outage")

func (o *outageStore) Ping(ctx context.Context) error {
	if o.down.Load() {
		return errOutage
	}
	return o.Store.Ping(ctx)
}

func (o *outageStore) RefreshTokens() store.RefreshTokens {
	if o.down.Load() {
		return downRepo{o.Store.RefreshTokens()}
	}
	return o.Store.RefreshTokens()
}

func (o *outageStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	if o.down.Load() {
		return errOutage
	}
	return o.Store.WithTx(ctx, fn)
}

type downRepo struct {
	store.RefreshTokens
}

func (downRepo) CreateRefreshToken(context.Context, domain.RefreshRecord) error {
	return errOutage
}

func (downRepo) GetRefreshTokenByHash(context.Context, string) (domain.RefreshRecord, error) {
	return domain.RefreshRecord{}, errOutage
}

func (downRepo) RevokeFamily(context.Context, string, time.Time) (int64, error) {
	return 0, errOutage
}

func (downRepo) RevokeAllForUser(context.Context, string, time.Time) (int64, error) {
	return 0, errOutage
}
