package http

import (
	"net/http"
	"time"

	"github.com/Devilair/Replit-Wolfinder-sub003/internal/session/domain"
	"github.com/Devilair/Replit-Wolfinder-sub003/internal/session/service"
	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/authsdk"
	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/clockx"
	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/cryptox"
	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/httpx"
	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/slogx"
)

// IssueHandler serves POST /v1/sessions. Only the login flow may call it; it
// proves itself with the shared issue token.
type IssueHandler struct {
	Issuer     *service.CredentialIssuer
	IssueToken string
	Clock      clockx.Clock
}

// ServeHTTP godoc
//
//	@Summary		Issue a session
//	@Description	Starts a new session family for an identity the login flow has already authenticated.
//	@Description	Returns an access token and the family's first refresh token.
//	@Tags			Sessions
//	@Accept			json
//	@Produce		json
//	@Security		IssueToken
//	@Param			request	body		authsdk.IssueRequest	true	"Authenticated identity"
//	@Success		201		{object}	authsdk.TokenResponse
//	@Failure		400		{object}	authsdk.ErrorResponse	"invalid_request"
//	@Failure		401		{object}	authsdk.ErrorResponse	"invalid_client"
//	@Failure		503		{object}	authsdk.ErrorResponse	"temporarily_unavailable"
//	@Header			201		{string}	Cache-Control			"no-store"
//	@Router			/v1/sessions [post].
func (h *IssueHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	bearer, ok := httpx.BearerToken(r)
	if !ok || h.IssueToken == "" || !cryptox.ConstantTimeEqual(bearer, h.IssueToken) {
		slogx.FromContext(ctx).Warn("issue rejected: bad issue token")
		authsdk.ErrInvalidClient.WriteError(w)
		return
	}

	var req authsdk.IssueRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	pair, err := h.Issuer.Issue(ctx, domain.Identity{
		UserID: req.UserID,
		Role:   req.Role,
		Claims: req.Claims,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, tokenResponse(pair, clockOrSystem(h.Clock).Now()))
}

func tokenResponse(pair *domain.TokenPair, now time.Time) authsdk.TokenResponse {
	return authsdk.TokenResponse{
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		TokenType:        pair.TokenType,
		ExpiresIn:        max(int(pair.AccessExpiresAt.Sub(now).Seconds()), 0),
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshExpiresAt: pair.RefreshExpiresAt,
		FamilyID:         pair.FamilyID,
	}
}

func clockOrSystem(c clockx.Clock) clockx.Clock {
	if c == nil {
		return clockx.System()
	}
	return c
}
