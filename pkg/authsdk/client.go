package authsdk

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// Client talks to a sessiond instance. It holds no credentials itself; each
// call takes the token it needs. Use NewSession for a caller that keeps its
// own token pair fresh.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Login issues a session for an already authenticated identity and wraps
// it in a Session.
func (c *Client) Login(ctx context.Context, issueToken string, req IssueRequest) (*Session, error) {
	tokens, err := c.Issue(ctx, issueToken, req)
	if err != nil {
		return nil, err
	}
	return newSession(c, tokens), nil
}

// NewSessionFromTokens resumes a session from a stored pair. The access
// token is refreshed on first use if it has already expired.
func (c *Client) NewSessionFromTokens(accessToken, refreshToken string, accessExpiresAt time.Time) *Session {
	return newSession(c, &TokenResponse{
		AccessToken:     accessToken,
		RefreshToken:    refreshToken,
		AccessExpiresAt: accessExpiresAt,
	})
}
