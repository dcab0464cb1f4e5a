package http

import (
	"net/http"

	"github.com/Devilair/Replit-Wolfinder-sub003/internal/session/service"
	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/authsdk"
	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/httpx"
)

// LogoutHandler serves POST /v1/sessions/logout. Like RFC 7009 revocation it
// answers 204 whether or not the token was known, so it cannot be used to
// probe token validity.
type LogoutHandler struct {
	Revocation *service.RevocationService
}

// ServeHTTP godoc
//
//	@Summary		Log out with a refresh token
//	@Description	Revokes the session the refresh token belongs to. Unknown tokens are accepted silently.
//	@Tags			Sessions
//	@Accept			json
//	@Param			request	body	authsdk.LogoutRequest	true	"Refresh token"
//	@Success		204		"Session ended (or the token was unknown)"
//	@Failure		400		{object}	authsdk.ErrorResponse	"invalid_request"
//	@Failure		503		{object}	authsdk.ErrorResponse	"temporarily_unavailable"
//	@Router			/v1/sessions/logout [post].
func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req authsdk.LogoutRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	if req.RefreshToken == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	if err := h.Revocation.Logout(ctx, req.RefreshToken); err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}

// LogoutAllHandler serves POST /v1/sessions/logout-all.
type LogoutAllHandler struct {
	Revocation *service.RevocationService
}

// ServeHTTP godoc
//
//	@Summary		Log out everywhere
//	@Description	Revokes every session of the authenticated user. Outstanding access tokens stay valid until they expire.
//	@Tags			Sessions
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	authsdk.RevokedResponse
//	@Failure		401	{object}	authsdk.ErrorResponse	"invalid_token"
//	@Failure		503	{object}	authsdk.ErrorResponse	"temporarily_unavailable"
//	@Router			/v1/sessions/logout-all [post].
func (h *LogoutAllHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok := principalFrom(ctx)
	if !ok {
		httpx.WriteBearerError(w)
		return
	}

	n, err := h.Revocation.LogoutAllSessions(ctx, p.UserID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.RevokedResponse{Revoked: n})
}
