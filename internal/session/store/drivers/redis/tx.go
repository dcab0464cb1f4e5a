package redis

import (
	"context"
	"time"

	"github.com/Devilair/Replit-Wolfinder-sub003/internal/session/domain"
	"github.com/Devilair/Replit-Wolfinder-sub003/internal/session/store"
	"github.com/redis/go-redis/v9"
)

type txStore struct {
	s      *Store
	rtx    *redis.Tx
	queued []func(redis.Pipeliner)
}

func (t *txStore) RefreshTokens() store.RefreshTokens { return &txRepo{t: t} }

type txRepo struct {
	t *txStore
}

func (r *txRepo) queue(fn func(redis.Pipeliner)) { r.t.queued = append(r.t.queued, fn) }

func (r *txRepo) CreateRefreshToken(ctx context.Context, rec domain.RefreshRecord) error {
	s, rtx := r.t.s, r.t.rtx
	recKey, idKey := s.recordKey(rec.TokenHash), s.idKey(rec.ID)

	if err := rtx.Watch(ctx, recKey, idKey).Err(); err != nil {
		return err
	}
	n, err := rtx.Exists(ctx, recKey, idKey).Result()
	if err != nil {
		return err
	}
	if n > 0 {
		return store.ErrAlreadyExists
	}

	fields, err := encodeFields(rec)
	if err != nil {
		return err
	}
	r.queue(func(pipe redis.Pipeliner) {
		pipe.HSet(ctx, recKey, fields...)
		pipe.Set(ctx, idKey, rec.TokenHash, 0)
		pipe.SAdd(ctx, s.familyKey(rec.FamilyID), rec.TokenHash)
		pipe.SAdd(ctx, s.userKey(rec.UserID), rec.TokenHash)
		pipe.ZAdd(ctx, s.expiryKey(), redis.Z{Score: float64(rec.ExpiresAt.UnixMilli()), Member: rec.TokenHash})
	})
	return nil
}

func (r *txRepo) GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshRecord, error) {
	key := r.t.s.recordKey(hash)
	if err := r.t.rtx.Watch(ctx, key).Err(); err != nil {
		return domain.RefreshRecord{}, err
	}
	return getRecord(ctx, r.t.rtx, key, hash)
}

// state watches key and reports whether it exists and which of used_at and
// revoked_at are set.
func (r *txRepo) state(ctx context.Context, key string) (exists, used, revoked bool, err error) {
	if err = r.t.rtx.Watch(ctx, key).Err(); err != nil {
		return
	}
	n, err := r.t.rtx.Exists(ctx, key).Result()
	if err != nil || n == 0 {
		return
	}
	vals, err := r.t.rtx.HMGet(ctx, key, fieldUsedAt, fieldRevokedAt).Result()
	if err != nil {
		return
	}
	return true, vals[0] != nil, vals[1] != nil, nil
}

func (r *txRepo) MarkRefreshTokenUsed(ctx context.Context, hash string, at time.Time) error {
	key := r.t.s.recordKey(hash)
	exists, used, revoked, err := r.state(ctx, key)
	switch {
	case err != nil:
		return err
	case !exists:
		return store.ErrNotFound
	case used:
		return store.ErrAlreadyUsed
	case revoked:
		return store.ErrRevoked
	}

	r.queue(func(pipe redis.Pipeliner) {
		pipe.HSet(ctx, key, fieldUsedAt, millis(at))
	})
	return nil
}

func (r *txRepo) RevokeRefreshToken(ctx context.Context, hash string, at time.Time) error {
	key := r.t.s.recordKey(hash)
	exists, used, revoked, err := r.state(ctx, key)
	switch {
	case err != nil:
		return err
	case !exists:
		return store.ErrNotFound
	case used || revoked:
		return nil
	}

	r.queue(func(pipe redis.Pipeliner) {
		pipe.HSet(ctx, key, fieldRevokedAt, millis(at))
	})
	return nil
}

func (r *txRepo) RevokeFamily(context.Context, string, time.Time) (int64, error) {
	return 0, store.ErrUnsupported
}

func (r *txRepo) RevokeAllForUser(context.Context, string, time.Time) (int64, error) {
	return 0, store.ErrUnsupported
}

func (r *txRepo) PurgeExpired(context.Context, time.Time) (int64, error) {
	return 0, store.ErrUnsupported
}

func (r *txRepo) ListFamily(ctx context.Context, familyID string) ([]domain.RefreshRecord, error) {
	return listFamily(ctx, r.t.s, r.t.rtx, familyID)
}
