package service_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Devilair/Replit-Wolfinder-sub003/internal/session/domain"
	"github.com/Devilair/Replit-Wolfinder-sub003/internal/session/metrics"
	"github.com/Devilair/Replit-Wolfinder-sub003/internal/session/service"
	"github.com/Devilair/Replit-Wolfinder-sub003/internal/session/store"
	"github.com/Devilair/Replit-Wolfinder-sub003/internal/session/store/drivers/memory"
	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/clockx"
	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/jwtx"
	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/slogx"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

const (
	accessTTL  = 15 * time.Minute
	refreshTTL = 24 * time.Hour
)

var alice = domain.Identity{UserID: "user-alice", Role: domain.RoleConsumer, Claims: map[string]string{"plan": "pro"}}

type fixture struct {
	clock    *clockx.Manual
	mem      *memory.Store
	store    *failingStore
	signer   *flakySigner
	keys     *jwtx.KeyRing
	metrics  *metrics.Metrics
	issuer   *service.CredentialIssuer
	rotation *service.RotationEngine
	revoker  *service.RevocationService
	verifier *service.AccessVerifier
	logs     *lockedBuffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	keys, err := jwtx.NewEphemeralKeyRing(jwtx.KeyRingOptions{Algorithm: jwtx.AlgorithmEdDSA})
	require.NoError(t, err)

	clock := clockx.NewManual(t0)
	mem := memory.NewStore()
	fs := &failingStore{Store: mem, fail: map[string]error{}}
	signer := &flakySigner{inner: keys}
	m := metrics.New()

	tokens := service.Tokens{
		Signer:     signer,
		Issuer:     "https://sessions.test",
		Audience:   []string{"wolfinder"},
		AccessTTL:  accessTTL,
		RefreshTTL: refreshTTL,
	}

	return &fixture{
		clock:    clock,
		mem:      mem,
		store:    fs,
		signer:   signer,
		keys:     keys,
		metrics:  m,
		issuer:   &service.CredentialIssuer{Store: fs, Tokens: tokens, Clock: clock, Metrics: m},
		rotation: &service.RotationEngine{Store: fs, Tokens: tokens, Clock: clock, Metrics: m},
		revoker:  &service.RevocationService{Store: fs, Clock: clock, Metrics: m},
		verifier: service.NewAccessVerifier(keys.KeySet(), jwtx.VerifyOptions{
			Issuer:   "https://sessions.test",
			Audience: "wolfinder",
			Now:      clock.Now,
		}),
		logs: &lockedBuffer{},
	}
}

// ctx carries a JSON logger writing into f.logs.
func (f *fixture) ctx() context.Context {
	l := slog.New(slog.NewJSONHandler(f.logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return slogx.WithContext(context.Background(), l)
}

// lockedBuffer serializes writes from concurrent loggers.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *lockedBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}

func (f *fixture) issue(t *testing.T, id domain.Identity) *domain.TokenPair {
	t.Helper()
	pair, err := f.issuer.Issue(f.ctx(), id)
	require.NoError(t, err)
	return pair
}

func requireReason(t *testing.T, err error, want domain.RejectReason) {
	t.Helper()
	require.ErrorIs(t, err, service.ErrRejected)
	got, ok := service.RejectReasonOf(err)
	require.True(t, ok)
	require.Equal(t, want, got)
}

// flakySigner delegates to inner until failing is set.
type flakySigner struct {
	inner   service.Signer
	failing atomic.Bool
}

var errSignerDown = errors.New("signer down")

func (s *flakySigner) Sign(c jwtx.Claims) (string, error) {
	if s.failing.Load() {
		return "", errSignerDown
	}
	return s.inner.Sign(c)
}

// failingStore wraps a real store and fails named operations on demand.
// Operation names are the RefreshTokens method names plus "WithTx".
type failingStore struct {
	store.Store

	mu   sync.Mutex
	fail map[string]error

	// beforeTx runs at the start of WithTx; a non-nil error aborts it.
	beforeTx func(ctx context.Context) error
}

var errBackendDown = errors.New("backend down")

func (f *failingStore) failOn(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[op] = err
}

func (f *failingStore) heal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	clear(f.fail)
}

func (f *failingStore) err(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fail[op]
}

func (f *failingStore) RefreshTokens() store.RefreshTokens {
	return &failingRepo{RefreshTokens: f.Store.RefreshTokens(), f: f}
}

func (f *failingStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := f.err("WithTx"); err != nil {
		return err
	}
	f.mu.Lock()
	hook := f.beforeTx
	f.mu.Unlock()
	if hook != nil {
		if err := hook(ctx); err != nil {
			return err
		}
	}
	return f.Store.WithTx(ctx, func(tx store.Tx) error {
		return fn(failingTx{tx: tx, f: f})
	})
}

type failingTx struct {
	tx store.Tx
	f  *failingStore
}

func (t failingTx) RefreshTokens() store.RefreshTokens {
	return &failingRepo{RefreshTokens: t.tx.RefreshTokens(), f: t.f}
}

type failingRepo struct {
	store.RefreshTokens
	f *failingStore
}

func (r *failingRepo) CreateRefreshToken(ctx context.Context, rec domain.RefreshRecord) error {
	if err := r.f.err("CreateRefreshToken"); err != nil {
		return err
	}
	return r.RefreshTokens.CreateRefreshToken(ctx, rec)
}

func (r *failingRepo) GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshRecord, error) {
	if err := r.f.err("GetRefreshTokenByHash"); err != nil {
		return domain.RefreshRecord{}, err
	}
	return r.RefreshTokens.GetRefreshTokenByHash(ctx, hash)
}

func (r *failingRepo) MarkRefreshTokenUsed(ctx context.Context, hash string, at time.Time) error {
	if err := r.f.err("MarkRefreshTokenUsed"); err != nil {
		return err
	}
	return r.RefreshTokens.MarkRefreshTokenUsed(ctx, hash, at)
}

func (r *failingRepo) RevokeRefreshToken(ctx context.Context, hash string, at time.Time) error {
	if err := r.f.err("RevokeRefreshToken"); err != nil {
		return err
	}
	return r.RefreshTokens.RevokeRefreshToken(ctx, hash, at)
}

func (r *failingRepo) RevokeFamily(ctx context.Context, familyID string, at time.Time) (int64, error) {
	if err := r.f.err("RevokeFamily"); err != nil {
		return 0, err
	}
	return r.RefreshTokens.RevokeFamily(ctx, familyID, at)
}

func (r *failingRepo) RevokeAllForUser(ctx context.Context, userID string, at time.Time) (int64, error) {
	if err := r.f.err("RevokeAllForUser"); err != nil {
		return 0, err
	}
	return r.RefreshTokens.RevokeAllForUser(ctx, userID, at)
}

func (r *failingRepo) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	if err := r.f.err("PurgeExpired"); err != nil {
		return 0, err
	}
	return r.RefreshTokens.PurgeExpired(ctx, now)
}
