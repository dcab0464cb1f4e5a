package jwtx

import (
	"fmt"

	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/cryptox"
	"github.com/golang-jwt/jwt/v5"
)

const hs256KeyLen = 32

type hs256Signer struct {
	kid string
	key []byte
}

func newHS256Signer(kid string, secret []byte) (*hs256Signer, error) {
	if kid == "" {
		return nil, fmt.Errorf("jwtx: HS256 signer needs a kid")
	}
	key, err := cryptox.DeriveKey(secret, "sessiond/access/hs256/"+kid, hs256KeyLen)
	if err != nil {
		return nil, fmt.Errorf("jwtx: HS256 key: %w", err)
	}
	return &hs256Signer{kid: kid, key: key}, nil
}

func (s *hs256Signer) Alg() string    { return AlgorithmHS256 }
func (s *hs256Signer) KID() string    { return s.kid }
func (s *hs256Signer) VerifyKey() any { return s.key }

func (s *hs256Signer) Sign(claims Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	t.Header["kid"] = s.kid
	return t.SignedString(s.key)
}
