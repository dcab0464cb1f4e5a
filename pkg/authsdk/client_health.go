package authsdk

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
)

// Livez checks if the service is alive.
func (c *Client) Livez(ctx context.Context) (*HealthResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/livez", "", nil)
	if err != nil {
		return nil, err
	}

	var health HealthResponse
	if err := decodeJSON(resp, &health, http.StatusOK); err != nil {
		return nil, err
	}
	return &health, nil
}

// Readyz checks if the service can take traffic. A degraded service still
// returns its HealthResponse, alongside an *OAuth2Error carrying the 503.
func (c *Client) Readyz(ctx context.Context) (*HealthResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/readyz", "", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var health HealthResponse
	if jerr := json.Unmarshal(body, &health); jerr != nil || health.Status == "" {
		return nil, parseErrorResponse(resp, body)
	}
	if resp.StatusCode != http.StatusOK {
		return &health, &OAuth2Error{
			StatusCode:  resp.StatusCode,
			Code:        ErrorCodeTemporarilyUnavailable,
			Description: "service is " + health.Status,
		}
	}
	return &health, nil
}
