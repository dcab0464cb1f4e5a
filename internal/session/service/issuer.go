package service

import (
	"context"
	"log/slog"

	"github.com/Devilair/Replit-Wolfinder-sub003/internal/session/domain"
	"github.com/Devilair/Replit-Wolfinder-sub003/internal/session/metrics"
	"github.com/Devilair/Replit-Wolfinder-sub003/internal/session/store"
	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/clockx"
	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/idx"
	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/slogx"
)

// CredentialIssuer starts sessions for identities the login flow has
// already authenticated.
type CredentialIssuer struct {
	Store   store.Store
	Tokens  Tokens
	Clock   clockx.Clock
	Metrics *metrics.Metrics
}

// Issue opens a new token family for id and returns its first pair.
func (s *CredentialIssuer) Issue(ctx context.Context, id domain.Identity) (*domain.TokenPair, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}

	now := clockOrSystem(s.Clock).Now()
	familyID, err := newFamilyID()
	if err != nil {
		return nil, err
	}

	// sign before persisting so a signing failure leaves nothing behind
	access, accessExp, err := s.Tokens.signAccess(id, familyID, now)
	if err != nil {
		return nil, err
	}

	rec, raw, err := s.Tokens.newRecord(id, familyID, idx.Zero, now)
	if err != nil {
		return nil, err
	}
	if err := s.Store.RefreshTokens().CreateRefreshToken(ctx, rec); err != nil {
		slogx.FromContext(ctx).Error("failed to store refresh token",
			slog.String("user_id", id.UserID), slog.Any("error", err))
		return nil, unavailable("create refresh token", err)
	}

	s.Metrics.SessionIssued()
	slogx.FromContext(ctx).Info("session issued",
		slog.String("user_id", id.UserID),
		slog.String("family_id", familyID),
		slog.String("record_id", rec.ID.String()),
	)
	return pair(access, accessExp, raw, rec), nil
}
