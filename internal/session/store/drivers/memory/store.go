// Package memory is an in-process RefreshTokenStore. It backs unit tests and
// single-node development; state is lost on restart.
package memory

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/Devilair/Replit-Wolfinder-sub003/internal/session/domain"
	"github.com/Devilair/Replit-Wolfinder-sub003/internal/session/store"
	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/idx"
)

// Store keeps records in maps guarded by one mutex. Transactions hold the
// mutex for their whole duration and undo their writes from a journal on
// rollback.
type Store struct {
	mu     sync.Mutex
	byHash map[string]*domain.RefreshRecord
	byID   map[idx.ID]string
	closed bool
}

var _ store.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		byHash: make(map[string]*domain.RefreshRecord),
		byID:   make(map[idx.ID]string),
	}
}

func (s *Store) RefreshTokens() store.RefreshTokens {
	return &repo{s: s}
}

func (s *Store) ApplyMigrations() error { return nil }

func (s *Store) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("memory: store closed")
	}
	return ctx.Err()
}

func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := &txStore{s: s}
	defer func() {
		if p := recover(); p != nil {
			t.rollback()
			panic(p)
		}
		if err != nil {
			t.rollback()
		}
	}()

	return fn(t)
}

type txStore struct {
	s       *Store
	journal []func()
}

func (t *txStore) RefreshTokens() store.RefreshTokens {
	return &repo{s: t.s, tx: t}
}

func (t *txStore) rollback() {
	for i := len(t.journal) - 1; i >= 0; i-- {
		t.journal[i]()
	}
	t.journal = nil
}

// repo serves both modes. Outside a transaction each call takes the lock;
// inside one the lock is already held by WithTx and writes are journaled.
type repo struct {
	s  *Store
	tx *txStore
}

func (r *repo) lock() func() {
	if r.tx != nil {
		return func() {}
	}
	r.s.mu.Lock()
	return r.s.mu.Unlock
}

func (r *repo) record(undo func()) {
	if r.tx != nil {
		r.tx.journal = append(r.tx.journal, undo)
	}
}

func (r *repo) CreateRefreshToken(ctx context.Context, rec domain.RefreshRecord) error {
	defer r.lock()()

	if _, ok := r.s.byHash[rec.TokenHash]; ok {
		return store.ErrAlreadyExists
	}
	if _, ok := r.s.byID[rec.ID]; ok {
		return store.ErrAlreadyExists
	}

	cp := clone(&rec)
	r.s.byHash[rec.TokenHash] = cp
	r.s.byID[rec.ID] = rec.TokenHash
	r.record(func() {
		delete(r.s.byHash, rec.TokenHash)
		delete(r.s.byID, rec.ID)
	})
	return nil
}

func (r *repo) GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshRecord, error) {
	defer r.lock()()

	rec, ok := r.s.byHash[hash]
	if !ok {
		return domain.RefreshRecord{}, store.ErrNotFound
	}
	return *clone(rec), nil
}

func (r *repo) MarkRefreshTokenUsed(ctx context.Context, hash string, at time.Time) error {
	defer r.lock()()

	rec, ok := r.s.byHash[hash]
	switch {
	case !ok:
		return store.ErrNotFound
	case rec.UsedAt != nil:
		return store.ErrAlreadyUsed
	case rec.RevokedAt != nil:
		return store.ErrRevoked
	}

	rec.UsedAt = &at
	r.record(func() { rec.UsedAt = nil })
	return nil
}

func (r *repo) RevokeRefreshToken(ctx context.Context, hash string, at time.Time) error {
	defer r.lock()()

	rec, ok := r.s.byHash[hash]
	if !ok {
		return store.ErrNotFound
	}
	r.revoke(rec, at)
	return nil
}

func (r *repo) RevokeFamily(ctx context.Context, familyID string, at time.Time) (int64, error) {
	defer r.lock()()
	return r.revokeWhere(at, func(rec *domain.RefreshRecord) bool { return rec.FamilyID == familyID }), nil
}

func (r *repo) RevokeAllForUser(ctx context.Context, userID string, at time.Time) (int64, error) {
	defer r.lock()()
	return r.revokeWhere(at, func(rec *domain.RefreshRecord) bool { return rec.UserID == userID }), nil
}

func (r *repo) revokeWhere(at time.Time, match func(*domain.RefreshRecord) bool) int64 {
	var n int64
	for _, rec := range r.s.byHash {
		if match(rec) && r.revoke(rec, at) {
			n++
		}
	}
	return n
}

func (r *repo) revoke(rec *domain.RefreshRecord, at time.Time) bool {
	if !store.Live(rec) {
		return false
	}
	rec.RevokedAt = &at
	r.record(func() { rec.RevokedAt = nil })
	return true
}

func (r *repo) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	defer r.lock()()

	var n int64
	for hash, rec := range r.s.byHash {
		if !rec.Expired(now) {
			continue
		}
		delete(r.s.byHash, hash)
		delete(r.s.byID, rec.ID)
		r.record(func() {
			r.s.byHash[hash] = rec
			r.s.byID[rec.ID] = hash
		})
		n++
	}
	return n, nil
}

func (r *repo) ListFamily(ctx context.Context, familyID string) ([]domain.RefreshRecord, error) {
	defer r.lock()()

	var out []domain.RefreshRecord
	for _, rec := range r.s.byHash {
		if rec.FamilyID == familyID {
			out = append(out, *clone(rec))
		}
	}
	slices.SortFunc(out, func(a, b domain.RefreshRecord) int { return idx.Compare(a.ID, b.ID) })
	return out, nil
}

func clone(rec *domain.RefreshRecord) *domain.RefreshRecord {
	cp := *rec
	cp.Claims = maps.Clone(rec.Claims)
	if rec.UsedAt != nil {
		t := *rec.UsedAt
		cp.UsedAt = &t
	}
	if rec.RevokedAt != nil {
		t := *rec.RevokedAt
		cp.RevokedAt = &t
	}
	return &cp
}
