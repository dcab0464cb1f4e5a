package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type queries struct {
	db DBTX
}

func newQueries(db DBTX) *queries { return &queries{db: db} }

type refreshTokenRow struct {
	ID         string
	TokenHash  string
	FamilyID   string
	UserID     string
	Role       string
	Claims     map[string]string
	PreviousID *string
	IssuedAt   time.Time
	ExpiresAt  time.Time
	UsedAt     *time.Time
	RevokedAt  *time.Time
}

const refreshTokenColumns = `id, token_hash, family_id, user_id, role, claims, previous_id,
	issued_at, expires_at, used_at, revoked_at`

func scanRefreshToken(row pgx.Row) (refreshTokenRow, error) {
	var r refreshTokenRow
	err := row.Scan(
		&r.ID, &r.TokenHash, &r.FamilyID, &r.UserID, &r.Role, &r.Claims, &r.PreviousID,
		&r.IssuedAt, &r.ExpiresAt, &r.UsedAt, &r.RevokedAt,
	)
	return r, err
}

const createRefreshToken = `INSERT INTO refresh_tokens (` + refreshTokenColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

func (q *queries) CreateRefreshToken(ctx context.Context, r refreshTokenRow) error {
	_, err := q.db.Exec(ctx, createRefreshToken,
		r.ID, r.TokenHash, r.FamilyID, r.UserID, r.Role, r.Claims, r.PreviousID,
		r.IssuedAt, r.ExpiresAt, r.UsedAt, r.RevokedAt,
	)
	return err
}

const getRefreshTokenByHash = `SELECT ` + refreshTokenColumns + `
FROM refresh_tokens WHERE token_hash = $1`

func (q *queries) GetRefreshTokenByHash(ctx context.Context, hash string) (refreshTokenRow, error) {
	return scanRefreshToken(q.db.QueryRow(ctx, getRefreshTokenByHash, hash))
}

const markRefreshTokenUsed = `UPDATE refresh_tokens SET used_at = $2
WHERE token_hash = $1 AND used_at IS NULL AND revoked_at IS NULL`

func (q *queries) MarkRefreshTokenUsed(ctx context.Context, hash string, at time.Time) (int64, error) {
	return q.execCount(ctx, markRefreshTokenUsed, hash, at)
}

const revokeRefreshToken = `UPDATE refresh_tokens SET revoked_at = $2
WHERE token_hash = $1 AND used_at IS NULL AND revoked_at IS NULL`

func (q *queries) RevokeRefreshToken(ctx context.Context, hash string, at time.Time) (int64, error) {
	return q.execCount(ctx, revokeRefreshToken, hash, at)
}

const revokeFamily = `UPDATE refresh_tokens SET revoked_at = $2
WHERE family_id = $1 AND used_at IS NULL AND revoked_at IS NULL`

func (q *queries) RevokeFamily(ctx context.Context, familyID string, at time.Time) (int64, error) {
	return q.execCount(ctx, revokeFamily, familyID, at)
}

const revokeAllForUser = `UPDATE refresh_tokens SET revoked_at = $2
WHERE user_id = $1 AND used_at IS NULL AND revoked_at IS NULL`

func (q *queries) RevokeAllForUser(ctx context.Context, userID string, at time.Time) (int64, error) {
	return q.execCount(ctx, revokeAllForUser, userID, at)
}

const deleteExpiredRefreshTokens = `DELETE FROM refresh_tokens WHERE expires_at <= $1`

func (q *queries) DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	return q.execCount(ctx, deleteExpiredRefreshTokens, now)
}

const listFamily = `SELECT ` + refreshTokenColumns + `
FROM refresh_tokens WHERE family_id = $1 ORDER BY id`

func (q *queries) ListFamily(ctx context.Context, familyID string) ([]refreshTokenRow, error) {
	rows, err := q.db.Query(ctx, listFamily, familyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []refreshTokenRow
	for rows.Next() {
		r, err := scanRefreshToken(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (q *queries) execCount(ctx context.Context, sql string, args ...any) (int64, error) {
	tag, err := q.db.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
