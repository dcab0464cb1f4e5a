package store

import (
	"context"
	"errors"
	"time"

	"github.com/Devilair/Replit-Wolfinder-sub003/internal/session/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")

	// ErrAlreadyUsed is the losing side of the mark-used compare-and-set.
	ErrAlreadyUsed = errors.New("store: refresh token already used")

	// ErrRevoked means the record was revoked before it could be consumed.
	ErrRevoked = errors.New("store: refresh token revoked")

	// ErrUnsupported is returned by drivers for operations they cannot run
	// in the requested mode.
	ErrUnsupported = errors.New("store: operation not supported")
)

// Store is the root data access interface implemented by every driver
// (memory, sqlite, postgres, redis). It hands out sub-repositories rather than
// flattening every method onto itself so transaction scoping stays explicit.
type Store interface {
	Repos

	// ApplyMigrations brings the schema up to date. A no-op for schemaless drivers.
	ApplyMigrations() error

	// WithTx runs fn in a transaction. fn returning nil commits; an error
	// rolls back every write fn made. A commit that loses to a concurrent
	// writer on the same refresh token fails with ErrAlreadyUsed.
	//
	// fn must only use tx, never the outer Store.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Ping checks the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases connections.
	Close() error
}

// Repos are the repositories available both inside and outside a transaction.
type Repos interface {
	RefreshTokens() RefreshTokens
}

// Tx is the transaction-scoped view handed to WithTx callbacks.
type Tx interface {
	Repos
}

// RefreshTokens persists refresh-token records. Records are addressed by the
// fingerprint of their opaque value; the raw value never reaches storage.
type RefreshTokens interface {
	// CreateRefreshToken inserts a record. Duplicate id or hash gives ErrAlreadyExists.
	CreateRefreshToken(ctx context.Context, rec domain.RefreshRecord) error

	// GetRefreshTokenByHash returns the record for a fingerprint, or ErrNotFound.
	GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshRecord, error)

	// MarkRefreshTokenUsed sets used_at if and only if the record is neither
	// used nor revoked, atomically. Of any number of concurrent callers for
	// one hash exactly one gets nil. The rest get ErrAlreadyUsed. Unknown
	// hashes give ErrNotFound, revoked records ErrRevoked.
	MarkRefreshTokenUsed(ctx context.Context, hash string, at time.Time) error

	// RevokeRefreshToken revokes one unconsumed record. Revoking twice is a
	// no-op; unknown hashes give ErrNotFound.
	RevokeRefreshToken(ctx context.Context, hash string, at time.Time) error

	// RevokeFamily revokes every unconsumed record sharing familyID and
	// reports how many it changed.
	RevokeFamily(ctx context.Context, familyID string, at time.Time) (int64, error)

	// RevokeAllForUser revokes every unconsumed record owned by userID.
	RevokeAllForUser(ctx context.Context, userID string, at time.Time) (int64, error)

	// PurgeExpired deletes records whose expiry is at or before now.
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)

	// ListFamily returns a family's records oldest first.
	ListFamily(ctx context.Context, familyID string) ([]domain.RefreshRecord, error)
}

// Live reports whether a record can still be revoked: neither consumed nor
// already revoked. Expiry is ignored; revoking an expired record is harmless.
func Live(rec *domain.RefreshRecord) bool {
	return rec.UsedAt == nil && rec.RevokedAt == nil
}
