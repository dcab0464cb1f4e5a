// Package redis is a RefreshTokenStore on Redis. Each record is a hash,
// indexed by family and user sets and an expiry sorted set. Single-key state
// changes run as Lua scripts; transactions use WATCH/MULTI/EXEC.
//
// The default key prefix carries a hash tag so every key lands in one slot
// and the multi-key scripts work on Redis Cluster.
package redis

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/Devilair/Replit-Wolfinder-sub003/internal/session/domain"
	"github.com/Devilair/Replit-Wolfinder-sub003/internal/session/store"
	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/idx"
	"github.com/redis/go-redis/v9"
)

const DefaultPrefix = "{sessiond}"

type Store struct {
	client redis.UniversalClient
	prefix string
}

var _ store.Store = (*Store)(nil)

// NewStore wraps client. An empty prefix means DefaultPrefix.
func NewStore(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{client: client, prefix: prefix + ":"}
}

func (s *Store) recordKey(hash string) string { return s.prefix + "rt:" + hash }
func (s *Store) idKey(id idx.ID) string { return s.prefix + "rtid:" + id.String() }
func (s *Store) familyKey(fid string) string { return s.prefix + "fam:" + fid }
func (s *Store) userKey(uid string) string { return s.prefix + "user:" + uid }
func (s *Store) expiryKey() string { return s.prefix + "exp" }

func (s *Store) ApplyMigrations() error { return nil }

func (s *Store) Ping(ctx context.Context) error { return s.client.Ping(ctx).Err() }

func (s *Store) Close() error { return s.client.Close() }

func (s *Store) RefreshTokens() store.RefreshTokens { return &repo{s: s} }

// WithTx runs fn against a WATCHed connection. Every record fn reads or
// writes is watched; writes are queued and sent in one MULTI/EXEC. If a
// watched key changed in the meantime nothing is applied and WithTx
// reports ErrAlreadyUsed.
//
// Reads inside fn see committed state only. Bulk revocation and purge are
// not available inside a transaction.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	err := s.client.Watch(ctx, func(rtx *redis.Tx) error {
		t := &txStore{s: s, rtx: rtx}
		if err := fn(t); err != nil {
			return err
		}
		if len(t.queued) == 0 {
			return nil
		}
		_, err := rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, q := range t.queued {
				q(pipe)
			}
			return nil
		})
		return err
	})
	if errors.Is(err, redis.TxFailedErr) {
		return store.ErrAlreadyUsed
	}
	return err
}

// repo runs outside a transaction.
type repo struct {
	s *Store
}

func (r *repo) CreateRefreshToken(ctx context.Context, rec domain.RefreshRecord) error {
	fields, err := encodeFields(rec)
	if err != nil {
		return err
	}

	keys := []string{
		r.s.recordKey(rec.TokenHash),
		r.s.idKey(rec.ID),
		r.s.familyKey(rec.FamilyID),
		r.s.userKey(rec.UserID),
		r.s.expiryKey(),
	}
	args := append([]any{rec.TokenHash, rec.ExpiresAt.UnixMilli()}, fields...)

	res, err := createLua.Run(ctx, r.s.client, keys, args...).Int64()
	if err != nil {
		return err
	}
	if res == scriptConflict {
		return store.ErrAlreadyExists
	}
	return nil
}

func (r *repo) GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshRecord, error) {
	return getRecord(ctx, r.s.client, r.s.recordKey(hash), hash)
}

func (r *repo) MarkRefreshTokenUsed(ctx context.Context, hash string, at time.Time) error {
	res, err := markUsedLua.Run(ctx, r.s.client, []string{r.s.recordKey(hash)}, at.UnixMilli()).Int64()
	if err != nil {
		return err
	}
	switch res {
	case scriptOK:
		return nil
	case scriptMissing:
		return store.ErrNotFound
	case scriptUsed:
		return store.ErrAlreadyUsed
	default:
		return store.ErrRevoked
	}
}

func (r *repo) RevokeRefreshToken(ctx context.Context, hash string, at time.Time) error {
	res, err := revokeLua.Run(ctx, r.s.client, []string{r.s.recordKey(hash)}, at.UnixMilli()).Int64()
	if err != nil {
		return err
	}
	if res == scriptMissing {
		return store.ErrNotFound
	}
	return nil
}

func (r *repo) RevokeFamily(ctx context.Context, familyID string, at time.Time) (int64, error) {
	return r.revokeSet(ctx, r.s.familyKey(familyID), at)
}

func (r *repo) RevokeAllForUser(ctx context.Context, userID string, at time.Time) (int64, error) {
	return r.revokeSet(ctx, r.s.userKey(userID), at)
}

func (r *repo) revokeSet(ctx context.Context, setKey string, at time.Time) (int64, error) {
	return revokeSetLua.Run(ctx, r.s.client, []string{setKey}, r.s.prefix+"rt:", at.UnixMilli()).Int64()
}

func (r *repo) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	return purgeLua.Run(ctx, r.s.client, []string{r.s.expiryKey()}, now.UnixMilli(), r.s.prefix).Int64()
}

func (r *repo) ListFamily(ctx context.Context, familyID string) ([]domain.RefreshRecord, error) {
	return listFamily(ctx, r.s, r.s.client, familyID)
}

func getRecord(ctx context.Context, c redis.Cmdable, key, hash string) (domain.RefreshRecord, error) {
	m, err := c.HGetAll(ctx, key).Result()
	if err != nil {
		return domain.RefreshRecord{}, err
	}
	if len(m) == 0 {
		return domain.RefreshRecord{}, store.ErrNotFound
	}
	return decodeFields(hash, m)
}

func listFamily(ctx context.Context, s *Store, c redis.Cmdable, familyID string) ([]domain.RefreshRecord, error) {
	hashes, err := c.SMembers(ctx, s.familyKey(familyID)).Result()
	if err != nil {
		return nil, err
	}

	cmds := make([]*redis.MapStringStringCmd, len(hashes))
	_, err = c.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, h := range hashes {
			cmds[i] = pipe.HGetAll(ctx, s.recordKey(h))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]domain.RefreshRecord, 0, len(hashes))
	for i, cmd := range cmds {
		m := cmd.Val()
		if len(m) == 0 {
			continue // purged
		}
		rec, err := decodeFields(hashes[i], m)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	slices.SortFunc(out, func(a, b domain.RefreshRecord) int { return idx.Compare(a.ID, b.ID) })
	return out, nil
}
