package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Devilair/Replit-Wolfinder-sub003/internal/session/domain"
	"github.com/Devilair/Replit-Wolfinder-sub003/internal/session/store"
	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/idx"
)

type refreshTokensRepo struct {
	q *queries
}

func (r *refreshTokensRepo) CreateRefreshToken(ctx context.Context, rec domain.RefreshRecord) error {
	row, err := toRow(rec)
	if err != nil {
		return err
	}
	return mapConstraint(r.q.CreateRefreshToken(ctx, row))
}

func (r *refreshTokensRepo) GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshRecord, error) {
	row, err := r.q.GetRefreshTokenByHash(ctx, hash)
	if err != nil {
		return domain.RefreshRecord{}, mapNotFound(err)
	}
	return fromRow(row)
}

func (r *refreshTokensRepo) MarkRefreshTokenUsed(ctx context.Context, hash string, at time.Time) error {
	n, err := r.q.MarkRefreshTokenUsed(ctx, hash, at.UnixMilli())
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	// Nothing matched; find out why.
	row, err := r.q.GetRefreshTokenByHash(ctx, hash)
	if err != nil {
		return mapNotFound(err)
	}
	if row.UsedAt.Valid {
		return store.ErrAlreadyUsed
	}
	return store.ErrRevoked
}

func (r *refreshTokensRepo) RevokeRefreshToken(ctx context.Context, hash string, at time.Time) error {
	n, err := r.q.RevokeRefreshToken(ctx, hash, at.UnixMilli())
	if err != nil || n > 0 {
		return err
	}
	if _, err := r.q.GetRefreshTokenByHash(ctx, hash); err != nil {
		return mapNotFound(err)
	}
	return nil
}

func (r *refreshTokensRepo) RevokeFamily(ctx context.Context, familyID string, at time.Time) (int64, error) {
	return r.q.RevokeFamily(ctx, familyID, at.UnixMilli())
}

func (r *refreshTokensRepo) RevokeAllForUser(ctx context.Context, userID string, at time.Time) (int64, error) {
	return r.q.RevokeAllForUser(ctx, userID, at.UnixMilli())
}

func (r *refreshTokensRepo) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	return r.q.DeleteExpiredRefreshTokens(ctx, now.UnixMilli())
}

func (r *refreshTokensRepo) ListFamily(ctx context.Context, familyID string) ([]domain.RefreshRecord, error) {
	rows, err := r.q.ListFamily(ctx, familyID)
	if err != nil {
		return nil, err
	}

	out := make([]domain.RefreshRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func toRow(rec domain.RefreshRecord) (refreshTokenRow, error) {
	claims := []byte("{}")
	if len(rec.Claims) > 0 {
		b, err := json.Marshal(rec.Claims)
		if err != nil {
			return refreshTokenRow{}, fmt.Errorf("sqlite: encode claims: %w", err)
		}
		claims = b
	}

	row := refreshTokenRow{
		ID:        rec.ID.String(),
		TokenHash: rec.TokenHash,
		FamilyID:  rec.FamilyID,
		UserID:    rec.UserID,
		Role:      rec.Role,
		Claims:    string(claims),
		IssuedAt:  rec.IssuedAt.UnixMilli(),
		ExpiresAt: rec.ExpiresAt.UnixMilli(),
		UsedAt:    toNullMillis(rec.UsedAt),
		RevokedAt: toNullMillis(rec.RevokedAt),
	}
	if !rec.PreviousID.IsZero() {
		row.PreviousID = sql.NullString{String: rec.PreviousID.String(), Valid: true}
	}
	return row, nil
}

func fromRow(row refreshTokenRow) (domain.RefreshRecord, error) {
	id, err := idx.Parse(row.ID)
	if err != nil {
		return domain.RefreshRecord{}, fmt.Errorf("sqlite: bad id %q: %w", row.ID, err)
	}

	rec := domain.RefreshRecord{
		ID:        id,
		TokenHash: row.TokenHash,
		FamilyID:  row.FamilyID,
		UserID:    row.UserID,
		Role:      row.Role,
		IssuedAt:  fromMillis(row.IssuedAt),
		ExpiresAt: fromMillis(row.ExpiresAt),
		UsedAt:    fromNullMillis(row.UsedAt),
		RevokedAt: fromNullMillis(row.RevokedAt),
	}

	if row.PreviousID.Valid {
		prev, err := idx.Parse(row.PreviousID.String)
		if err != nil {
			return domain.RefreshRecord{}, fmt.Errorf("sqlite: bad previous_id %q: %w", row.PreviousID.String, err)
		}
		rec.PreviousID = prev
	}

	if row.Claims != "" && row.Claims != "{}" {
		if err := json.Unmarshal([]byte(row.Claims), &rec.Claims); err != nil {
			return domain.RefreshRecord{}, fmt.Errorf("sqlite: decode claims: %w", err)
		}
	}
	return rec, nil
}

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func toNullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func fromNullMillis(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromMillis(n.Int64)
	return &t
}
