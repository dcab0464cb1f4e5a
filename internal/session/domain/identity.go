package domain

import (
	"errors"
	"maps"
	"time"
)

// Well-known role tags. The core copies whatever role the identity provider
// hands it; these are the ones the HTTP surface checks for.
const (
	RoleConsumer     = "consumer"
	RoleProfessional = "professional"
	RoleAdmin        = "admin"
)

var ErrInvalidIdentity = errors.New("domain: identity needs a user id and a role")

// Identity is the already-authenticated subject supplied by the login flow.
// It is copied into tokens at issue time and never re-read from anywhere.
type Identity struct {
	UserID string            `json:"user_id"`
	Role   string            `json:"role"`
	Claims map[string]string `json:"claims,omitempty"`
}

func (i Identity) Validate() error {
	if i.UserID == "" || i.Role == "" {
		return ErrInvalidIdentity
	}
	return nil
}

// Clone returns a copy that shares no map with i.
func (i Identity) Clone() Identity {
	i.Claims = maps.Clone(i.Claims)
	return i
}

// Principal is what a verified access token proves.
type Principal struct {
	Identity
	FamilyID  string    `json:"family_id"`
	TokenID   string    `json:"token_id"`
	ExpiresAt time.Time `json:"expires_at"`
}
