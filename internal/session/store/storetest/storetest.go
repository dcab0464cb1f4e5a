// Package storetest is the behavioural contract every store driver must pass.
// Driver packages call Run from their own tests with a factory for a fresh,
// migrated, empty store.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Devilair/Replit-Wolfinder-sub003/internal/session/domain"
	"github.com/Devilair/Replit-Wolfinder-sub003/internal/session/store"
	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/cryptox"
	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/idx"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// Factory returns a ready, empty store. Cleanup is the factory's job.
type Factory func(t *testing.T) store.Store

// base is millisecond aligned so every backend round-trips it exactly.
var base = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// Run executes the full contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("CreateAndGet", func(t *testing.T) { testCreateAndGet(t, newStore(t)) })
	t.Run("GetUnknown", func(t *testing.T) { testGetUnknown(t, newStore(t)) })
	t.Run("CreateDuplicate", func(t *testing.T) { testCreateDuplicate(t, newStore(t)) })
	t.Run("MarkUsed", func(t *testing.T) { testMarkUsed(t, newStore(t)) })
	t.Run("MarkUsedRace", func(t *testing.T) { testMarkUsedRace(t, newStore(t)) })
	t.Run("RevokeSingle", func(t *testing.T) { testRevokeSingle(t, newStore(t)) })
	t.Run("RevokeFamily", func(t *testing.T) { testRevokeFamily(t, newStore(t)) })
	t.Run("RevokeAllForUser", func(t *testing.T) { testRevokeAllForUser(t, newStore(t)) })
	t.Run("PurgeExpired", func(t *testing.T) { testPurgeExpired(t, newStore(t)) })
	t.Run("ListFamily", func(t *testing.T) { testListFamily(t, newStore(t)) })
	t.Run("TxCommit", func(t *testing.T) { testTxCommit(t, newStore(t)) })
	t.Run("TxRollback", func(t *testing.T) { testTxRollback(t, newStore(t)) })
	t.Run("TxRotationRace", func(t *testing.T) { testTxRotationRace(t, newStore(t)) })
}

// NewRecord builds a record in familyID for userID with a fresh token value.
// The raw value is returned alongside.
func NewRecord(familyID, userID string, prev idx.ID, issuedAt time.Time, ttl time.Duration) (domain.RefreshRecord, string) {
	raw := cryptox.MustGenerateToken(cryptox.TokenSize256)
	return domain.RefreshRecord{
		ID:         idx.NewAt(issuedAt),
		TokenHash:  cryptox.FingerprintToken(raw),
		FamilyID:   familyID,
		UserID:     userID,
		Role:       domain.RoleConsumer,
		Claims:     map[string]string{"tier": "gold"},
		PreviousID: prev,
		IssuedAt:   issuedAt,
		ExpiresAt:  issuedAt.Add(ttl),
	}, raw
}

func newFamily() string { return uuid.NewString() }

func mustCreate(t *testing.T, s store.Store, rec domain.RefreshRecord) {
	t.Helper()
	require.NoError(t, s.RefreshTokens().CreateRefreshToken(context.Background(), rec))
}

func mustGet(t *testing.T, s store.Store, hash string) domain.RefreshRecord {
	t.Helper()
	rec, err := s.RefreshTokens().GetRefreshTokenByHash(context.Background(), hash)
	require.NoError(t, err)
	return rec
}

func requireSameTime(t *testing.T, want time.Time, got *time.Time) {
	t.Helper()
	require.NotNil(t, got)
	require.True(t, want.Equal(*got), "want %s, got %s", want, *got)
}

func testCreateAndGet(t *testing.T, s store.Store) {
	ctx := context.Background()
	fam := newFamily()

	first, _ := NewRecord(fam, "user-1", idx.Zero, base, time.Hour)
	mustCreate(t, s, first)

	second, _ := NewRecord(fam, "user-1", first.ID, base.Add(time.Minute), time.Hour)
	second.Claims = nil
	second.Role = domain.RoleAdmin
	mustCreate(t, s, second)

	got := mustGet(t, s, first.TokenHash)
	require.Equal(t, first.ID, got.ID)
	require.Equal(t, first.TokenHash, got.TokenHash)
	require.Equal(t, fam, got.FamilyID)
	require.Equal(t, "user-1", got.UserID)
	require.Equal(t, domain.RoleConsumer, got.Role)
	require.Equal(t, map[string]string{"tier": "gold"}, got.Claims)
	require.True(t, got.PreviousID.IsZero())
	require.True(t, first.IssuedAt.Equal(got.IssuedAt))
	require.True(t, first.ExpiresAt.Equal(got.ExpiresAt))
	require.Nil(t, got.UsedAt)
	require.Nil(t, got.RevokedAt)

	got2, err := s.RefreshTokens().GetRefreshTokenByHash(ctx, second.TokenHash)
	require.NoError(t, err)
	require.Equal(t, first.ID, got2.PreviousID)
	require.Equal(t, domain.RoleAdmin, got2.Role)
	require.Empty(t, got2.Claims)
}

func testGetUnknown(t *testing.T, s store.Store) {
	_, err := s.RefreshTokens().GetRefreshTokenByHash(context.Background(), cryptox.FingerprintToken("nope"))
	require.ErrorIs(t, err, store.ErrNotFound)
}

func testCreateDuplicate(t *testing.T, s store.Store) {
	rec, _ := NewRecord(newFamily(), "user-1", idx.Zero, base, time.Hour)
	mustCreate(t, s, rec)

	err := s.RefreshTokens().CreateRefreshToken(context.Background(), rec)
	require.ErrorIs(t, err, store.ErrAlreadyExists)

	sameHash, _ := NewRecord(newFamily(), "user-2", idx.Zero, base, time.Hour)
	sameHash.TokenHash = rec.TokenHash
	err = s.RefreshTokens().CreateRefreshToken(context.Background(), sameHash)
	require.ErrorIs(t, err, store.ErrAlreadyExists)
}

func testMarkUsed(t *testing.T, s store.Store) {
	ctx := context.Background()
	repo := s.RefreshTokens()

	rec, _ := NewRecord(newFamily(), "user-1", idx.Zero, base, time.Hour)
	mustCreate(t, s, rec)

	at := base.Add(5 * time.Minute)
	require.NoError(t, repo.MarkRefreshTokenUsed(ctx, rec.TokenHash, at))
	requireSameTime(t, at, mustGet(t, s, rec.TokenHash).UsedAt)

	err := repo.MarkRefreshTokenUsed(ctx, rec.TokenHash, at.Add(time.Second))
	require.ErrorIs(t, err, store.ErrAlreadyUsed)
	requireSameTime(t, at, mustGet(t, s, rec.TokenHash).UsedAt)

	err = repo.MarkRefreshTokenUsed(ctx, cryptox.FingerprintToken("nope"), at)
	require.ErrorIs(t, err, store.ErrNotFound)

	revoked, _ := NewRecord(newFamily(), "user-1", idx.Zero, base, time.Hour)
	mustCreate(t, s, revoked)
	require.NoError(t, repo.RevokeRefreshToken(ctx, revoked.TokenHash, at))
	err = repo.MarkRefreshTokenUsed(ctx, revoked.TokenHash, at)
	require.ErrorIs(t, err, store.ErrRevoked)
	require.Nil(t, mustGet(t, s, revoked.TokenHash).UsedAt)
}

func testMarkUsedRace(t *testing.T, s store.Store) {
	rec, _ := NewRecord(newFamily(), "user-1", idx.Zero, base, time.Hour)
	mustCreate(t, s, rec)

	const n = 16
	errs := make([]error, n)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			errs[i] = s.RefreshTokens().MarkRefreshTokenUsed(context.Background(), rec.TokenHash, base.Add(time.Minute))
		}()
	}
	close(start)
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		require.ErrorIs(t, err, store.ErrAlreadyUsed)
	}
	require.Equal(t, 1, wins)
}

func testRevokeSingle(t *testing.T, s store.Store) {
	ctx := context.Background()
	repo := s.RefreshTokens()
	fam := newFamily()

	a, _ := NewRecord(fam, "user-1", idx.Zero, base, time.Hour)
	b, _ := NewRecord(newFamily(), "user-1", idx.Zero, base, time.Hour)
	mustCreate(t, s, a)
	mustCreate(t, s, b)

	at := base.Add(time.Minute)
	require.NoError(t, repo.RevokeRefreshToken(ctx, a.TokenHash, at))
	requireSameTime(t, at, mustGet(t, s, a.TokenHash).RevokedAt)

	// second revoke keeps the first timestamp
	require.NoError(t, repo.RevokeRefreshToken(ctx, a.TokenHash, at.Add(time.Hour)))
	requireSameTime(t, at, mustGet(t, s, a.TokenHash).RevokedAt)

	require.Nil(t, mustGet(t, s, b.TokenHash).RevokedAt, "other sessions stay live")

	err := repo.RevokeRefreshToken(ctx, cryptox.FingerprintToken("nope"), at)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func testRevokeFamily(t *testing.T, s store.Store) {
	ctx := context.Background()
	repo := s.RefreshTokens()
	fam, other := newFamily(), newFamily()

	r0, _ := NewRecord(fam, "user-1", idx.Zero, base, time.Hour)
	r1, _ := NewRecord(fam, "user-1", r0.ID, base.Add(time.Minute), time.Hour)
	r2, _ := NewRecord(fam, "user-1", r1.ID, base.Add(2*time.Minute), time.Hour)
	o0, _ := NewRecord(other, "user-1", idx.Zero, base, time.Hour)
	for _, rec := range []domain.RefreshRecord{r0, r1, r2, o0} {
		mustCreate(t, s, rec)
	}
	require.NoError(t, repo.MarkRefreshTokenUsed(ctx, r0.TokenHash, base.Add(time.Minute)))

	at := base.Add(10 * time.Minute)
	n, err := repo.RevokeFamily(ctx, fam, at)
	require.NoError(t, err)
	require.EqualValues(t, 2, n, "only unconsumed records are revoked")

	n, err = repo.RevokeFamily(ctx, fam, at)
	require.NoError(t, err)
	require.Zero(t, n)

	requireSameTime(t, at, mustGet(t, s, r1.TokenHash).RevokedAt)
	requireSameTime(t, at, mustGet(t, s, r2.TokenHash).RevokedAt)
	require.NotNil(t, mustGet(t, s, r0.TokenHash).UsedAt)
	require.Nil(t, mustGet(t, s, o0.TokenHash).RevokedAt)

	n, err = repo.RevokeFamily(ctx, newFamily(), at)
	require.NoError(t, err)
	require.Zero(t, n)
}

func testRevokeAllForUser(t *testing.T, s store.Store) {
	ctx := context.Background()
	repo := s.RefreshTokens()

	u1a, _ := NewRecord(newFamily(), "user-1", idx.Zero, base, time.Hour)
	u1b, _ := NewRecord(newFamily(), "user-1", idx.Zero, base, time.Hour)
	u2, _ := NewRecord(newFamily(), "user-2", idx.Zero, base, time.Hour)
	for _, rec := range []domain.RefreshRecord{u1a, u1b, u2} {
		mustCreate(t, s, rec)
	}

	n, err := repo.RevokeAllForUser(ctx, "user-1", base.Add(time.Minute))
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	require.NotNil(t, mustGet(t, s, u1a.TokenHash).RevokedAt)
	require.NotNil(t, mustGet(t, s, u1b.TokenHash).RevokedAt)
	require.Nil(t, mustGet(t, s, u2.TokenHash).RevokedAt)

	n, err = repo.RevokeAllForUser(ctx, "nobody", base)
	require.NoError(t, err)
	require.Zero(t, n)
}

func testPurgeExpired(t *testing.T, s store.Store) {
	ctx := context.Background()
	repo := s.RefreshTokens()
	now := base.Add(time.Hour)

	expired, _ := NewRecord(newFamily(), "user-1", idx.Zero, base, 30*time.Minute)
	edge, _ := NewRecord(newFamily(), "user-1", idx.Zero, base, time.Hour)
	live, _ := NewRecord(newFamily(), "user-1", idx.Zero, base, 2*time.Hour)
	for _, rec := range []domain.RefreshRecord{expired, edge, live} {
		mustCreate(t, s, rec)
	}

	n, err := repo.PurgeExpired(ctx, now)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	_, err = repo.GetRefreshTokenByHash(ctx, expired.TokenHash)
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = repo.GetRefreshTokenByHash(ctx, edge.TokenHash)
	require.ErrorIs(t, err, store.ErrNotFound)
	mustGet(t, s, live.TokenHash)

	n, err = repo.PurgeExpired(ctx, now)
	require.NoError(t, err)
	require.Zero(t, n)
}

func testListFamily(t *testing.T, s store.Store) {
	ctx := context.Background()
	fam := newFamily()

	r0, _ := NewRecord(fam, "user-1", idx.Zero, base, time.Hour)
	r1, _ := NewRecord(fam, "user-1", r0.ID, base.Add(time.Minute), time.Hour)
	r2, _ := NewRecord(fam, "user-1", r1.ID, base.Add(2*time.Minute), time.Hour)
	noise, _ := NewRecord(newFamily(), "user-1", idx.Zero, base, time.Hour)
	// inserted out of order on purpose
	for _, rec := range []domain.RefreshRecord{r2, noise, r0, r1} {
		mustCreate(t, s, rec)
	}

	got, err := s.RefreshTokens().ListFamily(ctx, fam)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, []idx.ID{r0.ID, r1.ID, r2.ID}, []idx.ID{got[0].ID, got[1].ID, got[2].ID})
	require.Equal(t, r1.ID, got[2].PreviousID)

	empty, err := s.RefreshTokens().ListFamily(ctx, newFamily())
	require.NoError(t, err)
	require.Empty(t, empty)
}

// rotateInTx is the write half of a rotation: consume parent, add successor.
func rotateInTx(ctx context.Context, s store.Store, parent domain.RefreshRecord, at time.Time) (domain.RefreshRecord, error) {
	next, _ := NewRecord(parent.FamilyID, parent.UserID, parent.ID, at, time.Hour)
	err := s.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.RefreshTokens().MarkRefreshTokenUsed(ctx, parent.TokenHash, at); err != nil {
			return err
		}
		return tx.RefreshTokens().CreateRefreshToken(ctx, next)
	})
	return next, err
}

func testTxCommit(t *testing.T, s store.Store) {
	ctx := context.Background()
	parent, _ := NewRecord(newFamily(), "user-1", idx.Zero, base, time.Hour)
	mustCreate(t, s, parent)

	at := base.Add(time.Minute)
	next, err := rotateInTx(ctx, s, parent, at)
	require.NoError(t, err)

	requireSameTime(t, at, mustGet(t, s, parent.TokenHash).UsedAt)
	got := mustGet(t, s, next.TokenHash)
	require.Equal(t, parent.ID, got.PreviousID)
}

func testTxRollback(t *testing.T, s store.Store) {
	ctx := context.Background()
	parent, _ := NewRecord(newFamily(), "user-1", idx.Zero, base, time.Hour)
	mustCreate(t, s, parent)

	boom := errors.New("boom")
	next, _ := NewRecord(parent.FamilyID, parent.UserID, parent.ID, base.Add(time.Minute), time.Hour)
	err := s.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.RefreshTokens().MarkRefreshTokenUsed(ctx, parent.TokenHash, base.Add(time.Minute)); err != nil {
			return err
		}
		if err := tx.RefreshTokens().CreateRefreshToken(ctx, next); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.Nil(t, mustGet(t, s, parent.TokenHash).UsedAt, "rollback must not consume the token")
	_, err = s.RefreshTokens().GetRefreshTokenByHash(ctx, next.TokenHash)
	require.ErrorIs(t, err, store.ErrNotFound)

	// the token is still consumable afterwards
	_, err = rotateInTx(ctx, s, parent, base.Add(2*time.Minute))
	require.NoError(t, err)
}

func testTxRotationRace(t *testing.T, s store.Store) {
	ctx := context.Background()
	parent, _ := NewRecord(newFamily(), "user-1", idx.Zero, base, time.Hour)
	mustCreate(t, s, parent)

	const n = 8
	errs := make([]error, n)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, errs[i] = rotateInTx(ctx, s, parent, base.Add(time.Minute))
		}()
	}
	close(start)
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		require.ErrorIs(t, err, store.ErrAlreadyUsed)
	}
	require.Equal(t, 1, wins)

	family, err := s.RefreshTokens().ListFamily(ctx, parent.FamilyID)
	require.NoError(t, err)
	require.Len(t, family, 2, "exactly one successor may exist")
}
