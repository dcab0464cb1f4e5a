package http

import (
	"net/http"

	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/authsdk"
	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/httpx"
	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/jwtx"
)

// JWKSHandler publishes the public keys access tokens verify against. HS256
// keys never appear here.
//
//	@Summary		Get JWKS
//	@Description	Returns the JSON Web Key Set used to verify access tokens.
//	@Tags			well-known
//	@Produce		json
//	@Success		200	{object}	authsdk.JWKSResponse	"The JSON Web Key Set"
//	@Router			/.well-known/jwks.json [get].
func JWKSHandler(keys *jwtx.KeySet) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, authsdk.JWKSResponse(keys.PublicJWKS()))
	}
}
