package authsdk

import (
	"time"

	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/jwtx"
)

// ErrorResponse is the wire form of an error. Client code should use
// OAuth2Error instead.
type ErrorResponse struct {
	Error            string `json:"error" example:"invalid_grant"`
	ErrorDescription string `json:"error_description" example:"the refresh token is invalid"`
}

// ============================================================================
// Session Types
// ============================================================================

// IssueRequest is sent by the login flow once it has authenticated a user.
type IssueRequest struct {
	UserID string            `json:"user_id" example:"01J9Z6W8Q4M2H7YV3B5K0N1C2D"`
	Role   string            `json:"role" example:"consumer"`
	Claims map[string]string `json:"claims,omitempty"`
}

// RefreshRequest carries the refresh token to rotate.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// LogoutRequest carries the refresh token of the session to end.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// TokenResponse is returned by issue and refresh.
type TokenResponse struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type" example:"Bearer"`
	ExpiresIn        int       `json:"expires_in" example:"900"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
	FamilyID         string    `json:"family_id"`
}

// PrincipalResponse describes the caller of an authenticated request.
type PrincipalResponse struct {
	UserID    string            `json:"user_id"`
	Role      string            `json:"role"`
	Claims    map[string]string `json:"claims,omitempty"`
	FamilyID  string            `json:"family_id"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// RevokedResponse reports how many refresh tokens a revocation closed.
type RevokedResponse struct {
	Revoked int64 `json:"revoked" example:"3"`
}

// ============================================================================
// Health Types
// ============================================================================

// HealthResponse is returned by /livez and /readyz. Checks is only set by
// /readyz.
type HealthResponse struct {
	Status  string        `json:"status" example:"ok"`
	Uptime  string        `json:"uptime,omitempty" example:"1h23m45s"`
	Version string        `json:"version,omitempty"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks is the status of each dependency /readyz looks at.
type HealthChecks struct {
	Store  string `json:"store" example:"ok"`
	Signer string `json:"signer" example:"ok"`
}

// JWKSResponse is the public key set access tokens verify against.
type JWKSResponse jwtx.JWKS
