package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"maps"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default lifetimes. Services override both through configuration.
const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// Claims is the access-token payload. It is a snapshot of the identity at
// issue time plus the refresh family the token belongs to.
type Claims struct {
	jwt.RegisteredClaims

	// Role tag, e.g. "consumer", "professional", "admin".
	Role string `json:"role"`

	// FamilyID ties the access token to the refresh lineage it was minted from.
	FamilyID string `json:"fid"`

	// Ext carries opaque downstream claims copied from the identity.
	Ext map[string]string `json:"ext,omitempty"`
}

// AccessClaimsParams groups the inputs to NewAccessClaims.
type AccessClaimsParams struct {
	Issuer   string
	Audience []string
	Subject  string
	Role     string
	FamilyID string
	Ext      map[string]string
	Now      time.Time
	TTL      time.Duration
}

// NewAccessClaims builds claims valid for [Now, Now+TTL).
func NewAccessClaims(p AccessClaimsParams) Claims {
	var aud jwt.ClaimStrings
	if len(p.Audience) > 0 {
		aud = jwt.ClaimStrings(p.Audience)
	}

	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    p.Issuer,
			Subject:   p.Subject,
			Audience:  aud,
			IssuedAt:  jwt.NewNumericDate(p.Now),
			NotBefore: jwt.NewNumericDate(p.Now),
			ExpiresAt: jwt.NewNumericDate(p.Now.Add(p.TTL)),
			ID:        NewJTI(),
		},
		Role:     p.Role,
		FamilyID: p.FamilyID,
		Ext:      maps.Clone(p.Ext),
	}
}

// NewJTI returns 160 random bits as base64url for the "jti" claim.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// Validate is called by the jwt parser after the registered claims pass.
func (c Claims) Validate() error {
	if c.Subject == "" {
		return errors.New("jwtx: missing sub")
	}
	if c.FamilyID == "" {
		return errors.New("jwtx: missing fid")
	}
	return nil
}

// Expiry returns exp in UTC, or the zero time when absent.
func (c Claims) Expiry() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time.UTC()
}
