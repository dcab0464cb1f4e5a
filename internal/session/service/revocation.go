package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Devilair/Replit-Wolfinder-sub003/internal/session/domain"
	"github.com/Devilair/Replit-Wolfinder-sub003/internal/session/metrics"
	"github.com/Devilair/Replit-Wolfinder-sub003/internal/session/store"
	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/clockx"
	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/cryptox"
	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/slogx"
)

// RevocationService ends sessions on request.
type RevocationService struct {
	Store   store.Store
	Clock   clockx.Clock
	Metrics *metrics.Metrics
}

// Logout revokes the record behind refreshToken so it has no successor.
// Unknown values are ignored. A value that was already rotated revokes its
// whole family, since the session it names lives on in the successor.
func (s *RevocationService) Logout(ctx context.Context, refreshToken string) error {
	if !cryptox.WellFormedToken(refreshToken, RefreshTokenSize) {
		return nil
	}
	now := clockOrSystem(s.Clock).Now()
	hash := cryptox.FingerprintToken(refreshToken)
	l := slogx.FromContext(ctx)

	rec, err := s.Store.RefreshTokens().GetRefreshTokenByHash(ctx, hash)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil
	case err != nil:
		return unavailable("get refresh token", err)
	}

	if rec.UsedAt != nil {
		n, err := s.Store.RefreshTokens().RevokeFamily(ctx, rec.FamilyID, now)
		if err != nil {
			return unavailable("revoke family", err)
		}
		s.Metrics.Revoked(metrics.KindFamily, n)
		l.Info("logout with rotated token, family revoked",
			slog.String("family_id", rec.FamilyID),
			slog.String("user_id", rec.UserID),
			slog.Int64("revoked", n),
		)
		return nil
	}

	err = s.Store.RefreshTokens().RevokeRefreshToken(ctx, hash, now)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil
	case err != nil:
		return unavailable("revoke refresh token", err)
	}

	if store.Live(&rec) {
		s.Metrics.Revoked(metrics.KindLogout, 1)
	}
	l.Info("logout",
		slog.String("family_id", rec.FamilyID),
		slog.String("user_id", rec.UserID),
	)
	return nil
}

// LogoutAllSessions revokes every live refresh record of userID.
func (s *RevocationService) LogoutAllSessions(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, domain.ErrInvalidIdentity
	}
	n, err := s.Store.RefreshTokens().RevokeAllForUser(ctx, userID, clockOrSystem(s.Clock).Now())
	if err != nil {
		return 0, unavailable("revoke all for user", err)
	}

	s.Metrics.Revoked(metrics.KindAllForUser, n)
	slogx.FromContext(ctx).Info("all sessions revoked",
		slog.String("user_id", userID),
		slog.Int64("revoked", n),
	)
	return n, nil
}

// ForceLogout is LogoutAllSessions on behalf of an administrator.
func (s *RevocationService) ForceLogout(ctx context.Context, actor domain.Identity, userID string) (int64, error) {
	if userID == "" {
		return 0, domain.ErrInvalidIdentity
	}
	n, err := s.Store.RefreshTokens().RevokeAllForUser(ctx, userID, clockOrSystem(s.Clock).Now())
	if err != nil {
		return 0, unavailable("revoke all for user", err)
	}

	s.Metrics.Revoked(metrics.KindAdmin, n)
	slogx.FromContext(ctx).Warn("sessions force revoked",
		slog.String("actor_id", actor.UserID),
		slog.String("user_id", userID),
		slog.String("reason", "admin"),
		slog.Int64("revoked", n),
	)
	return n, nil
}

// RevokeFamily ends one login (one device) by family id.
func (s *RevocationService) RevokeFamily(ctx context.Context, familyID string) (int64, error) {
	if familyID == "" {
		return 0, nil
	}
	n, err := s.Store.RefreshTokens().RevokeFamily(ctx, familyID, clockOrSystem(s.Clock).Now())
	if err != nil {
		return 0, unavailable("revoke family", err)
	}

	s.Metrics.Revoked(metrics.KindFamily, n)
	slogx.FromContext(ctx).Info("session revoked",
		slog.String("family_id", familyID),
		slog.Int64("revoked", n),
	)
	return n, nil
}
