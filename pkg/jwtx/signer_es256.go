package jwtx

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"errors"
	"fmt"

	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/cryptox"
	"github.com/golang-jwt/jwt/v5"
)

type es256Signer struct {
	kid string
	key *ecdsa.PrivateKey
}

func newES256Signer(kid string, pemKey []byte) (*es256Signer, error) {
	parsed, err := cryptox.ParsePrivateKeyPEM(pemKey)
	if err != nil {
		return nil, fmt.Errorf("jwtx: ES256 key: %w", err)
	}

	key, ok := parsed.(*ecdsa.PrivateKey)
	if !ok {
		return nil, errors.New("jwtx: not an ECDSA private key")
	}
	if key.Curve != elliptic.P256() {
		return nil, fmt.Errorf("jwtx: ES256 needs P-256, got %s", key.Curve.Params().Name)
	}

	return &es256Signer{kid: kid, key: key}, nil
}

func (s *es256Signer) Alg() string    { return AlgorithmES256 }
func (s *es256Signer) KID() string    { return s.kid }
func (s *es256Signer) VerifyKey() any { return &s.key.PublicKey }

func (s *es256Signer) Sign(claims Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	t.Header["kid"] = s.kid
	return t.SignedString(s.key)
}
