package jwtx

import (
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/cryptox"
	"github.com/golang-jwt/jwt/v5"
)

type eddsaSigner struct {
	kid string
	key ed25519.PrivateKey
	pub ed25519.PublicKey
}

func newEdDSASigner(kid string, pemKey []byte) (*eddsaSigner, error) {
	parsed, err := cryptox.ParsePrivateKeyPEM(pemKey)
	if err != nil {
		return nil, fmt.Errorf("jwtx: EdDSA key: %w", err)
	}

	key, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("jwtx: not an Ed25519 private key")
	}

	return &eddsaSigner{
		kid: kid,
		key: key,
		pub: key.Public().(ed25519.PublicKey),
	}, nil
}

func (s *eddsaSigner) Alg() string    { return AlgorithmEdDSA }
func (s *eddsaSigner) KID() string    { return s.kid }
func (s *eddsaSigner) VerifyKey() any { return s.pub }

func (s *eddsaSigner) Sign(claims Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	t.Header["kid"] = s.kid
	return t.SignedString(s.key)
}
