package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Devilair/Replit-Wolfinder-sub003/internal/session/domain"
	"github.com/Devilair/Replit-Wolfinder-sub003/internal/session/metrics"
	"github.com/Devilair/Replit-Wolfinder-sub003/internal/session/store"
	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/clockx"
	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/cryptox"
	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/slogx"
)

// RotationEngine exchanges a refresh token for a new pair, consuming it.
//
// Every refresh value is single use. Presenting a consumed value again means
// two parties hold it, so the whole family is revoked and both lose the
// session. Expired values are a normal timeout and are only rejected.
type RotationEngine struct {
	Store   store.Store
	Tokens  Tokens
	Clock   clockx.Clock
	Metrics *metrics.Metrics
}

// Rotate consumes presented and returns its successor pair.
//
// Rejections match ErrRejected and carry a reason for logs. Storage failures
// match ErrStoreUnavailable and leave presented unconsumed.
func (e *RotationEngine) Rotate(ctx context.Context, presented string) (_ *domain.TokenPair, err error) {
	started := time.Now()
	now := clockOrSystem(e.Clock).Now()
	l := slogx.FromContext(ctx)

	defer func() {
		took := time.Since(started)
		if reason, ok := RejectReasonOf(err); ok {
			e.Metrics.Rejected(reason, took)
		} else if err == nil {
			e.Metrics.Rotated(took)
		}
	}()

	if !cryptox.WellFormedToken(presented, RefreshTokenSize) {
		l.Debug("refresh rejected", slog.String("reason", domain.RejectUnknown.String()))
		return nil, reject(domain.RejectUnknown)
	}
	hash := cryptox.FingerprintToken(presented)

	rec, err := e.Store.RefreshTokens().GetRefreshTokenByHash(ctx, hash)
	switch {
	case errors.Is(err, store.ErrNotFound):
		l.Debug("refresh rejected", slog.String("reason", domain.RejectUnknown.String()))
		return nil, reject(domain.RejectUnknown)
	case err != nil:
		l.Error("failed to load refresh token", slog.Any("error", err))
		return nil, unavailable("get refresh token", err)
	}

	if rec.Expired(now) {
		l.Debug("refresh rejected",
			slog.String("reason", domain.RejectExpired.String()),
			slog.String("family_id", rec.FamilyID),
			slog.String("user_id", rec.UserID),
		)
		return nil, reject(domain.RejectExpired)
	}
	if rec.UsedAt != nil {
		return nil, e.breach(ctx, rec, now)
	}
	if rec.RevokedAt != nil {
		l.Debug("refresh rejected",
			slog.String("reason", domain.RejectRevoked.String()),
			slog.String("family_id", rec.FamilyID),
		)
		return nil, reject(domain.RejectRevoked)
	}

	identity := rec.Identity()
	next, raw, err := e.Tokens.newRecord(identity, rec.FamilyID, rec.ID, now)
	if err != nil {
		return nil, err
	}

	err = e.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.RefreshTokens().MarkRefreshTokenUsed(ctx, hash, now); err != nil {
			return err
		}
		return tx.RefreshTokens().CreateRefreshToken(ctx, next)
	})
	switch {
	case errors.Is(err, store.ErrAlreadyUsed):
		// Lost the race to another holder of the same value, or (on stores
		// that detect any concurrent write) to a revocation.
		if fresh, gerr := e.Store.RefreshTokens().GetRefreshTokenByHash(ctx, hash); gerr == nil {
			rec = fresh
		}
		if rec.UsedAt == nil && rec.RevokedAt != nil {
			l.Debug("refresh rejected",
				slog.String("reason", domain.RejectRevoked.String()),
				slog.String("family_id", rec.FamilyID),
			)
			return nil, reject(domain.RejectRevoked)
		}
		return nil, e.breach(ctx, rec, now)
	case errors.Is(err, store.ErrRevoked):
		return nil, reject(domain.RejectRevoked)
	case errors.Is(err, store.ErrNotFound):
		return nil, reject(domain.RejectUnknown)
	case err != nil:
		l.Error("refresh rotation rolled back", slog.String("family_id", rec.FamilyID), slog.Any("error", err))
		return nil, unavailable("rotate refresh token", err)
	}

	access, accessExp, err := e.Tokens.signAccess(identity, rec.FamilyID, now)
	if err != nil {
		// The old value is consumed; without a usable successor the family
		// must not stay open.
		n, rerr := e.Store.RefreshTokens().RevokeFamily(ctx, rec.FamilyID, now)
		l.Error("access token signing failed after rotation, family revoked",
			slog.String("family_id", rec.FamilyID),
			slog.Int64("revoked", n),
			slog.Any("error", err),
			slog.Any("revoke_error", rerr),
		)
		if rerr != nil {
			return nil, unavailable("revoke family", errors.Join(err, rerr))
		}
		e.Metrics.Revoked(metrics.KindFamily, n)
		return nil, err
	}

	l.Debug("refresh token rotated",
		slog.String("family_id", rec.FamilyID),
		slog.String("user_id", rec.UserID),
		slog.String("record_id", next.ID.String()),
	)
	return pair(access, accessExp, raw, next), nil
}

// breach revokes rec's family after a replay. A failed revocation is
// reported as unavailable, never as a quiet rejection.
func (e *RotationEngine) breach(ctx context.Context, rec domain.RefreshRecord, now time.Time) error {
	l := slogx.FromContext(ctx)

	var firstUsed time.Time
	if rec.UsedAt != nil {
		firstUsed = *rec.UsedAt
	}
	attrs := []any{
		slog.String("family_id", rec.FamilyID),
		slog.String("user_id", rec.UserID),
		slog.String("record_id", rec.ID.String()),
		slog.Time("first_used_at", firstUsed),
		slog.Time("replayed_at", now),
	}

	n, err := e.Store.RefreshTokens().RevokeFamily(ctx, rec.FamilyID, now)
	if err != nil {
		l.Error("refresh token replay detected, family revocation failed", append(attrs, slog.Any("error", err))...)
		return unavailable("revoke family", err)
	}

	l.Warn("refresh token replay detected, family revoked", append(attrs, slog.Int64("revoked", n))...)
	e.Metrics.Revoked(metrics.KindBreach, n)
	return reject(domain.RejectBreach)
}
