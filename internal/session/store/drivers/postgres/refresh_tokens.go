package postgres

import (
	"context"
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
	return mapConstraint(r.q.CreateRefreshToken(ctx, toRow(rec)))
}

func (r *refreshTokensRepo) GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshRecord, error) {
	row, err := r.q.GetRefreshTokenByHash(ctx, hash)
	if err != nil {
		return domain.RefreshRecord{}, mapNotFound(err)
	}
	return fromRow(row)
}

func (r *refreshTokensRepo) MarkRefreshTokenUsed(ctx context.Context, hash string, at time.Time) error {
	n, err := r.q.MarkRefreshTokenUsed(ctx, hash, at)
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	row, err := r.q.GetRefreshTokenByHash(ctx, hash)
	if err != nil {
		return mapNotFound(err)
	}
	if row.UsedAt != nil {
		return store.ErrAlreadyUsed
	}
	return store.ErrRevoked
}

func (r *refreshTokensRepo) RevokeRefreshToken(ctx context.Context, hash string, at time.Time) error {
	n, err := r.q.RevokeRefreshToken(ctx, hash, at)
	if err != nil || n > 0 {
		return err
	}
	if _, err := r.q.GetRefreshTokenByHash(ctx, hash); err != nil {
		return mapNotFound(err)
	}
	return nil
}

func (r *refreshTokensRepo) RevokeFamily(ctx context.Context, familyID string, at time.Time) (int64, error) {
	return r.q.RevokeFamily(ctx, familyID, at)
}

func (r *refreshTokensRepo) RevokeAllForUser(ctx context.Context, userID string, at time.Time) (int64, error) {
	return r.q.RevokeAllForUser(ctx, userID, at)
}

func (r *refreshTokensRepo) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	return r.q.DeleteExpiredRefreshTokens(ctx, now)
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

func toRow(rec domain.RefreshRecord) refreshTokenRow {
	claims := rec.Claims
	if claims == nil {
		claims = map[string]string{}
	}

	row := refreshTokenRow{
		ID:        rec.ID.String(),
		TokenHash: rec.TokenHash,
		FamilyID:  rec.FamilyID,
		UserID:    rec.UserID,
		Role:      rec.Role,
		Claims:    claims,
		IssuedAt:  rec.IssuedAt,
		ExpiresAt: rec.ExpiresAt,
		UsedAt:    rec.UsedAt,
		RevokedAt: rec.RevokedAt,
	}
	if !rec.PreviousID.IsZero() {
		prev := rec.PreviousID.String()
		row.PreviousID = &prev
	}
	return row
}

func fromRow(row refreshTokenRow) (domain.RefreshRecord, error) {
	id, err := idx.Parse(row.ID)
	if err != nil {
		return domain.RefreshRecord{}, fmt.Errorf("postgres: bad id %q: %w", row.ID, err)
	}

	rec := domain.RefreshRecord{
		ID:        id,
		TokenHash: row.TokenHash,
		FamilyID:  row.FamilyID,
		UserID:    row.UserID,
		Role:      row.Role,
		IssuedAt:  row.IssuedAt.UTC(),
		ExpiresAt: row.ExpiresAt.UTC(),
		UsedAt:    utcPtr(row.UsedAt),
		RevokedAt: utcPtr(row.RevokedAt),
	}
	if len(row.Claims) > 0 {
		rec.Claims = row.Claims
	}
	if row.PreviousID != nil {
		prev, err := idx.Parse(*row.PreviousID)
		if err != nil {
			return domain.RefreshRecord{}, fmt.Errorf("postgres: bad previous_id %q: %w", *row.PreviousID, err)
		}
		rec.PreviousID = prev
	}
	return rec, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
