package http

import (
	"context"

	"github.com/Devilair/Replit-Wolfinder-sub003/internal/session/domain"
)

type principalKey struct{}

func withPrincipal(ctx context.Context, p *domain.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// principalFrom returns the principal the authn middleware stored. Handlers
// behind AuthnMiddleware can rely on it being set.
func principalFrom(ctx context.Context) (*domain.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*domain.Principal)
	return p, ok && p != nil
}
