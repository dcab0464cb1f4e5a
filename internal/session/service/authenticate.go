package service

import (
	"context"
	"log/slog"

	"github.com/Devilair/Replit-Wolfinder-sub003/internal/session/domain"
	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/jwtx"
	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/slogx"
)

// AccessVerifier authenticates access tokens from their signature and
// claims alone. It has no store: revocation takes effect on access tokens
// only when they expire.
type AccessVerifier struct {
	Verifier *jwtx.Verifier
}

// NewAccessVerifier checks tokens against keys under opts.
func NewAccessVerifier(keys *jwtx.KeySet, opts jwtx.VerifyOptions) *AccessVerifier {
	return &AccessVerifier{Verifier: jwtx.NewVerifier(keys, opts)}
}

// Authenticate returns the principal a valid token proves. Every failure is
// ErrUnauthenticated; the cause only reaches the debug log.
func (v *AccessVerifier) Authenticate(ctx context.Context, accessToken string) (*domain.Principal, error) {
	claims, err := v.Verifier.Verify(accessToken)
	if err != nil {
		slogx.FromContext(ctx).Debug("access token rejected", slog.Any("error", err))
		return nil, ErrUnauthenticated
	}

	p := &domain.Principal{
		Identity: domain.Identity{
			UserID: claims.Subject,
			Role:   claims.Role,
			Claims: claims.Ext,
		},
		FamilyID:  claims.FamilyID,
		TokenID:   claims.ID,
		ExpiresAt: claims.Expiry(),
	}
	if err := p.Validate(); err != nil {
		slogx.FromContext(ctx).Debug("access token rejected", slog.Any("error", err))
		return nil, ErrUnauthenticated
	}
	return p, nil
}
