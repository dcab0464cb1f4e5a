package http

import (
	"net/http"

	"github.com/Devilair/Replit-Wolfinder-sub003/internal/session/service"
	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/authsdk"
	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/httpx"
)

// ForceLogoutHandler serves POST /v1/admin/users/{id}/logout.
type ForceLogoutHandler struct {
	Revocation *service.RevocationService
}

// ServeHTTP godoc
//
//	@Summary		Force logout
//	@Description	Revokes every session of a user. Requires the admin role. The call is audit logged with the acting admin.
//	@Tags			Admin
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		string	true	"User ID"
//	@Success		200	{object}	authsdk.RevokedResponse
//	@Failure		401	{object}	authsdk.ErrorResponse	"invalid_token"
//	@Failure		403	{object}	authsdk.ErrorResponse	"insufficient_scope"
//	@Failure		503	{object}	authsdk.ErrorResponse	"temporarily_unavailable"
//	@Router			/v1/admin/users/{id}/logout [post].
func (h *ForceLogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := principalFrom(ctx)
	if !ok {
		httpx.WriteBearerError(w)
		return
	}

	userID := r.PathValue("id")
	if userID == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	n, err := h.Revocation.ForceLogout(ctx, actor.Identity, userID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.RevokedResponse{Revoked: n})
}
