package service

import (
	"fmt"
	"time"

	"github.com/Devilair/Replit-Wolfinder-sub003/internal/session/domain"
	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/clockx"
	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/cryptox"
	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/idx"
	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/jwtx"
	"github.com/google/uuid"
)

// RefreshTokenSize is the entropy of an opaque refresh token in bytes.
const RefreshTokenSize = cryptox.TokenSize256

// Signer is the part of jwtx.KeyRing the services need.
type Signer interface {
	Sign(jwtx.Claims) (string, error)
}

// Tokens holds what every credential-minting service shares.
type Tokens struct {
	Signer     Signer
	Issuer     string
	Audience   []string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

func (t Tokens) accessTTL() time.Duration {
	if t.AccessTTL <= 0 {
		return jwtx.DefaultAccessTokenTTL
	}
	return t.AccessTTL
}

func (t Tokens) refreshTTL() time.Duration {
	if t.RefreshTTL <= 0 {
		return jwtx.DefaultRefreshTokenTTL
	}
	return t.RefreshTTL
}

// newRecord mints an opaque refresh value and the record that stores its
// fingerprint. prev is idx.Zero for the first record of a family.
func (t Tokens) newRecord(id domain.Identity, familyID string, prev idx.ID, now time.Time) (domain.RefreshRecord, string, error) {
	raw, err := cryptox.GenerateToken(RefreshTokenSize)
	if err != nil {
		return domain.RefreshRecord{}, "", err
	}

	id = id.Clone()
	return domain.RefreshRecord{
		ID:         idx.NewAt(now),
		TokenHash:  cryptox.FingerprintToken(raw),
		FamilyID:   familyID,
		UserID:     id.UserID,
		Role:       id.Role,
		Claims:     id.Claims,
		PreviousID: prev,
		IssuedAt:   now,
		ExpiresAt:  now.Add(t.refreshTTL()),
	}, raw, nil
}

// signAccess returns a signed access token for id in familyID and its expiry.
func (t Tokens) signAccess(id domain.Identity, familyID string, now time.Time) (string, time.Time, error) {
	claims := jwtx.NewAccessClaims(jwtx.AccessClaimsParams{
		Issuer:   t.Issuer,
		Audience: t.Audience,
		Subject:  id.UserID,
		Role:     id.Role,
		FamilyID: familyID,
		Ext:      id.Claims,
		Now:      now,
		TTL:      t.accessTTL(),
	})

	token, err := t.Signer.Sign(claims)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("service: sign access token: %w", err)
	}
	return token, claims.Expiry(), nil
}

// pair assembles the client-facing result.
func pair(access string, accessExp time.Time, raw string, rec domain.RefreshRecord) *domain.TokenPair {
	return &domain.TokenPair{
		AccessToken:      access,
		RefreshToken:     raw,
		TokenType:        domain.TokenTypeBearer,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: rec.ExpiresAt,
		FamilyID:         rec.FamilyID,
	}
}

// newFamilyID returns a random (v4) UUID naming one login's chain.
func newFamilyID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("service: family id: %w", err)
	}
	return id.String(), nil
}

func clockOrSystem(c clockx.Clock) clockx.Clock {
	if c == nil {
		return clockx.System()
	}
	return c
}
