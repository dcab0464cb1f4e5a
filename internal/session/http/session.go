package http

import (
	"net/http"

	"github.com/Devilair/Replit-Wolfinder-sub003/internal/session/service"
	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/authsdk"
	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/httpx"
)

// SessionHandler serves /v1/session, the session the presented access token
// belongs to.
type SessionHandler struct {
	Revocation *service.RevocationService
}

// HandleGet godoc
//
//	@Summary		Current session
//	@Description	Returns the principal the access token proves. Nothing is read from storage.
//	@Tags			Session
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	authsdk.PrincipalResponse
//	@Failure		401	{object}	authsdk.ErrorResponse	"invalid_token"
//	@Router			/v1/session [get].
func (h *SessionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r.Context())
	if !ok {
		httpx.WriteBearerError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.PrincipalResponse{
		UserID:    p.UserID,
		Role:      p.Role,
		Claims:    p.Claims,
		FamilyID:  p.FamilyID,
		ExpiresAt: p.ExpiresAt,
	})
}

// HandleDelete godoc
//
//	@Summary		End this session
//	@Description	Revokes the session family the access token was issued for, logging out this device only.
//	@Tags			Session
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	authsdk.RevokedResponse
//	@Failure		401	{object}	authsdk.ErrorResponse	"invalid_token"
//	@Failure		503	{object}	authsdk.ErrorResponse	"temporarily_unavailable"
//	@Router			/v1/session [delete].
func (h *SessionHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok := principalFrom(ctx)
	if !ok {
		httpx.WriteBearerError(w)
		return
	}

	n, err := h.Revocation.RevokeFamily(ctx, p.FamilyID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.RevokedResponse{Revoked: n})
}
