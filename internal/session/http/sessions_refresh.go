package http

import (
	"net/http"

	"github.com/Devilair/Replit-Wolfinder-sub003/internal/session/service"
	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/authsdk"
	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/clockx"
	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/httpx"
)

// RefreshHandler serves POST /v1/sessions/refresh.
type RefreshHandler struct {
	Rotation *service.RotationEngine
	Clock    clockx.Clock
}

// ServeHTTP godoc
//
//	@Summary		Rotate a refresh token
//	@Description	Consumes the presented refresh token and returns a new pair.
//	@Description	A refresh token is single use. Presenting one a second time revokes every token of its session family.
//	@Description	Unknown, expired, replayed and revoked tokens all get the same invalid_grant response.
//	@Tags			Sessions
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.RefreshRequest	true	"Refresh token"
//	@Success		200		{object}	authsdk.TokenResponse
//	@Failure		400		{object}	authsdk.ErrorResponse	"invalid_request"
//	@Failure		401		{object}	authsdk.ErrorResponse	"invalid_grant"
//	@Failure		503		{object}	authsdk.ErrorResponse	"temporarily_unavailable, the token was not consumed"
//	@Header			200		{string}	Cache-Control			"no-store"
//	@Router			/v1/sessions/refresh [post].
func (h *RefreshHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req authsdk.RefreshRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	if req.RefreshToken == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	pair, err := h.Rotation.Rotate(ctx, req.RefreshToken)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, tokenResponse(pair, clockOrSystem(h.Clock).Now()))
}
