package domain

import (
	"time"

	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/idx"
)

const TokenTypeBearer = "Bearer"

// TokenPair is what issue and rotate hand back to the caller.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
	FamilyID         string    `json:"family_id"`
}

// RefreshRecord is one persisted refresh token.
//
// Records of one login form a chain: every record but the first points at
// the record it was rotated from through PreviousID, and all of them share
// FamilyID. The chain is stored flat and queried by family.
type RefreshRecord struct {
	ID         idx.ID
	TokenHash  string // cryptox.FingerprintToken of the opaque value
	FamilyID   string
	UserID     string
	Role       string
	Claims     map[string]string
	PreviousID idx.ID // idx.Zero for the first record of a family
	IssuedAt   time.Time
	ExpiresAt  time.Time
	UsedAt     *time.Time
	RevokedAt  *time.Time
}

// RecordState is the lifecycle position of a RefreshRecord.
type RecordState int

const (
	StateIssued RecordState = iota
	StateConsumed
	StateRevoked
	StateExpired
)

func (s RecordState) String() string {
	switch s {
	case StateIssued:
		return "issued"
	case StateConsumed:
		return "consumed"
	case StateRevoked:
		return "revoked"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// State reports the record's lifecycle state at now. Consumption wins over
// revocation because a revoked family still remembers which records were used.
func (r *RefreshRecord) State(now time.Time) RecordState {
	switch {
	case r.UsedAt != nil:
		return StateConsumed
	case r.RevokedAt != nil:
		return StateRevoked
	case r.Expired(now):
		return StateExpired
	default:
		return StateIssued
	}
}

// Expired is true once now reaches ExpiresAt.
func (r *RefreshRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// Identity rebuilds the identity snapshot the record was issued for.
func (r *RefreshRecord) Identity() Identity {
	return Identity{UserID: r.UserID, Role: r.Role, Claims: r.Claims}.Clone()
}
