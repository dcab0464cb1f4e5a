package sqlite

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx, so the same queries run
// inside and outside a transaction.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

type queries struct {
	db DBTX
}

func newQueries(db DBTX) *queries { return &queries{db: db} }

// refreshTokenRow mirrors the refresh_tokens table.
type refreshTokenRow struct {
	ID         string
	TokenHash  string
	FamilyID   string
	UserID     string
	Role       string
	Claims     string
	PreviousID sql.NullString
	IssuedAt   int64
	ExpiresAt  int64
	UsedAt     sql.NullInt64
	RevokedAt  sql.NullInt64
}

const refreshTokenColumns = `id, token_hash, family_id, user_id, role, claims, previous_id,
	issued_at, expires_at, used_at, revoked_at`

func scanRefreshToken(sc interface{ Scan(...any) error }) (refreshTokenRow, error) {
	var r refreshTokenRow
	err := sc.Scan(
		&r.ID, &r.TokenHash, &r.FamilyID, &r.UserID, &r.Role, &r.Claims, &r.PreviousID,
		&r.IssuedAt, &r.ExpiresAt, &r.UsedAt, &r.RevokedAt,
	)
	return r, err
}

const createRefreshToken = `INSERT INTO refresh_tokens (` + refreshTokenColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *queries) CreateRefreshToken(ctx context.Context, r refreshTokenRow) error {
	_, err := q.db.ExecContext(ctx, createRefreshToken,
		r.ID, r.TokenHash, r.FamilyID, r.UserID, r.Role, r.Claims, r.PreviousID,
		r.IssuedAt, r.ExpiresAt, r.UsedAt, r.RevokedAt,
	)
	return err
}

const getRefreshTokenByHash = `SELECT ` + refreshTokenColumns + `
FROM refresh_tokens WHERE token_hash = ?`

func (q *queries) GetRefreshTokenByHash(ctx context.Context, hash string) (refreshTokenRow, error) {
	return scanRefreshToken(q.db.QueryRowContext(ctx, getRefreshTokenByHash, hash))
}

const markRefreshTokenUsed = `UPDATE refresh_tokens SET used_at = ?
WHERE token_hash = ? AND used_at IS NULL AND revoked_at IS NULL`

func (q *queries) MarkRefreshTokenUsed(ctx context.Context, hash string, at int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, markRefreshTokenUsed, at, hash)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const revokeRefreshToken = `UPDATE refresh_tokens SET revoked_at = ?
WHERE token_hash = ? AND used_at IS NULL AND revoked_at IS NULL`

func (q *queries) RevokeRefreshToken(ctx context.Context, hash string, at int64) (int64, error) {
	return q.execCount(ctx, revokeRefreshToken, at, hash)
}

const revokeFamily = `UPDATE refresh_tokens SET revoked_at = ?
WHERE family_id = ? AND used_at IS NULL AND revoked_at IS NULL`

func (q *queries) RevokeFamily(ctx context.Context, familyID string, at int64) (int64, error) {
	return q.execCount(ctx, revokeFamily, at, familyID)
}

const revokeAllForUser = `UPDATE refresh_tokens SET revoked_at = ?
WHERE user_id = ? AND used_at IS NULL AND revoked_at IS NULL`

func (q *queries) RevokeAllForUser(ctx context.Context, userID string, at int64) (int64, error) {
	return q.execCount(ctx, revokeAllForUser, at, userID)
}

const deleteExpiredRefreshTokens = `DELETE FROM refresh_tokens WHERE expires_at <= ?`

func (q *queries) DeleteExpiredRefreshTokens(ctx context.Context, now int64) (int64, error) {
	return q.execCount(ctx, deleteExpiredRefreshTokens, now)
}

const listFamily = `SELECT ` + refreshTokenColumns + `
FROM refresh_tokens WHERE family_id = ? ORDER BY id`

func (q *queries) ListFamily(ctx context.Context, familyID string) ([]refreshTokenRow, error) {
	rows, err := q.db.QueryContext(ctx, listFamily, familyID)
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

func (q *queries) execCount(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
