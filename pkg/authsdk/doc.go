/*
Package authsdk is the Go client for sessiond, the session credential
service.

# Client vs Session

Client exposes every endpoint as a plain call taking the token it needs:

	client := authsdk.NewClient("https://sessions.example.com")

	// the login flow, after checking the password
	tokens, err := client.Issue(ctx, issueToken, authsdk.IssueRequest{
		UserID: user.ID,
		Role:   "consumer",
	})

	// later, from the device
	tokens, err = client.Refresh(ctx, tokens.RefreshToken)

Session wraps one token pair and keeps it fresh:

	session, err := client.Login(ctx, issueToken, req)
	me, err := session.WhoAmI(ctx) // rotates first if the access token is stale

# Refresh tokens are single use

Every successful Refresh consumes the presented refresh token and returns a
new one. Presenting a consumed token again is taken as evidence the token
was stolen: the server revokes every token descending from the same login
and answers invalid_grant. Keep only the newest refresh token, and share one
Session between goroutines instead of copying tokens around.

# Errors

Server errors decode into *OAuth2Error and match the predefined values with
errors.Is:

	_, err := client.Refresh(ctx, stale)
	switch {
	case errors.Is(err, authsdk.ErrInvalidGrant):
		// log in again
	case errors.Is(err, authsdk.ErrTemporarilyUnavailable):
		// retry with the same refresh token
	}

The server never says why a refresh token was refused; unknown, expired,
replayed and revoked tokens all get the same invalid_grant body.
*/
package authsdk
