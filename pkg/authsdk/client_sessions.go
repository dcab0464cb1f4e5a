package authsdk

import (
	"context"
	"net/http"
	"net/url"
)

// Issue starts a new session family for req. issueToken is the shared
// secret that proves the caller is the login flow.
func (c *Client) Issue(ctx context.Context, issueToken string, req IssueRequest) (*TokenResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/sessions", issueToken, req)
	if err != nil {
		return nil, err
	}

	var tokens TokenResponse
	if err := decodeJSON(resp, &tokens, http.StatusCreated); err != nil {
		return nil, err
	}
	return &tokens, nil
}

// Refresh exchanges a refresh token for a new pair. The presented token is
// spent on success; presenting it again ends the whole session family.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/sessions/refresh", "", RefreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return nil, err
	}

	var tokens TokenResponse
	if err := decodeJSON(resp, &tokens, http.StatusOK); err != nil {
		return nil, err
	}
	return &tokens, nil
}

// Logout ends the session a refresh token belongs to. It succeeds for
// unknown tokens too.
func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/sessions/logout", "", LogoutRequest{RefreshToken: refreshToken})
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}

// LogoutAll ends every session of the user accessToken belongs to.
func (c *Client) LogoutAll(ctx context.Context, accessToken string) (*RevokedResponse, error) {
	return c.revoke(ctx, http.MethodPost, "/v1/sessions/logout-all", accessToken)
}

// EndSession ends only the session accessToken was issued for.
func (c *Client) EndSession(ctx context.Context, accessToken string) (*RevokedResponse, error) {
	return c.revoke(ctx, http.MethodDelete, "/v1/session", accessToken)
}

// ForceLogout ends every session of userID. accessToken must carry the
// admin role.
func (c *Client) ForceLogout(ctx context.Context, accessToken, userID string) (*RevokedResponse, error) {
	return c.revoke(ctx, http.MethodPost, "/v1/admin/users/"+url.PathEscape(userID)+"/logout", accessToken)
}

// WhoAmI returns the principal accessToken proves.
func (c *Client) WhoAmI(ctx context.Context, accessToken string) (*PrincipalResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/v1/session", accessToken, nil)
	if err != nil {
		return nil, err
	}

	var p PrincipalResponse
	if err := decodeJSON(resp, &p, http.StatusOK); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) revoke(ctx context.Context, method, path, accessToken string) (*RevokedResponse, error) {
	resp, err := c.doRequest(ctx, method, path, accessToken, nil)
	if err != nil {
		return nil, err
	}

	var out RevokedResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}
