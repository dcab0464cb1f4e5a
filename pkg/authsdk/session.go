package authsdk

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// refreshBuffer refreshes the access token this long before it expires.
const refreshBuffer = 30 * time.Second

// ErrSessionEnded is returned by a Session after Logout or EndSession.
var ErrSessionEnded = errors.New("authsdk: session ended")

// Session holds one token pair and rotates it when the access token is about
// to expire.
//
// A refresh token is single use: presenting it twice is treated by the
// server as theft and ends the session. Session therefore serialises
// refreshes, and callers sharing a login must share the Session rather than
// copy its tokens.
type Session struct {
	client *Client

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	familyID     string
	expiresAt    time.Time
}

func newSession(client *Client, tokens *TokenResponse) *Session {
	s := &Session{client: client}
	s.store(tokens)
	return s
}

// store must be called with mu held for writing, or before s is shared.
func (s *Session) store(tokens *TokenResponse) {
	s.accessToken = tokens.AccessToken
	s.refreshToken = tokens.RefreshToken
	if tokens.FamilyID != "" {
		s.familyID = tokens.FamilyID
	}

	expiresAt := tokens.AccessExpiresAt
	if expiresAt.IsZero() {
		expiresAt = time.Now().Add(time.Duration(tokens.ExpiresIn) * time.Second)
	}
	s.expiresAt = expiresAt.Add(-refreshBuffer)
}

// getValidToken returns a usable access token, rotating the pair first if
// the current one is about to expire.
func (s *Session) getValidToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	if s.refreshToken == "" && s.accessToken == "" {
		s.mu.RUnlock()
		return "", ErrSessionEnded
	}
	if time.Now().Before(s.expiresAt) {
		token := s.accessToken
		s.mu.RUnlock()
		return token, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	// another goroutine may have refreshed while we waited
	if time.Now().Before(s.expiresAt) {
		return s.accessToken, nil
	}
	if s.refreshToken == "" {
		return "", ErrSessionEnded
	}

	tokens, err := s.client.Refresh(ctx, s.refreshToken)
	if err != nil {
		var oe *OAuth2Error
		if errors.As(err, &oe) && oe.Code == ErrorCodeInvalidGrant {
			s.clear()
		}
		return "", fmt.Errorf("failed to refresh token: %w", err)
	}
	s.store(tokens)
	return s.accessToken, nil
}

func (s *Session) clear() {
	s.accessToken = ""
	s.refreshToken = ""
	s.expiresAt = time.Time{}
}

// Refresh rotates the pair now, whatever the access token's expiry.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	s.expiresAt = time.Time{}
	s.mu.Unlock()

	_, err := s.getValidToken(ctx)
	return err
}

// WhoAmI returns the principal of this session.
func (s *Session) WhoAmI(ctx context.Context) (*PrincipalResponse, error) {
	token, err := s.getValidToken(ctx)
	if err != nil {
		return nil, err
	}
	return s.client.WhoAmI(ctx, token)
}

// Logout ends this session through its refresh token.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.refreshToken == "" {
		return ErrSessionEnded
	}
	if err := s.client.Logout(ctx, s.refreshToken); err != nil {
		return err
	}
	s.clear()
	return nil
}

// EndSession ends this session through its access token.
func (s *Session) EndSession(ctx context.Context) (*RevokedResponse, error) {
	token, err := s.getValidToken(ctx)
	if err != nil {
		return nil, err
	}
	out, err := s.client.EndSession(ctx, token)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.clear()
	s.mu.Unlock()
	return out, nil
}

// LogoutAll ends every session of this user, this one included.
func (s *Session) LogoutAll(ctx context.Context) (*RevokedResponse, error) {
	token, err := s.getValidToken(ctx)
	if err != nil {
		return nil, err
	}
	out, err := s.client.LogoutAll(ctx, token)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.clear()
	s.mu.Unlock()
	return out, nil
}

// ForceLogout ends every session of userID. The session must belong to an
// admin.
func (s *Session) ForceLogout(ctx context.Context, userID string) (*RevokedResponse, error) {
	token, err := s.getValidToken(ctx)
	if err != nil {
		return nil, err
	}
	return s.client.ForceLogout(ctx, token, userID)
}

// AccessToken returns the current access token without checking expiry.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// RefreshToken returns the current refresh token.
func (s *Session) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshToken
}

// FamilyID returns the id of the session family, if the server reported it.
func (s *Session) FamilyID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.familyID
}
