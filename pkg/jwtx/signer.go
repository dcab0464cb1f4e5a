package jwtx

import (
	"fmt"

	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/cryptox"
)

// Supported signing algorithms.
const (
	AlgorithmEdDSA = "EdDSA"
	AlgorithmES256 = "ES256"
	AlgorithmHS256 = "HS256"
)

// Signer produces signed access tokens under a single key id.
type Signer interface {
	Alg() string
	KID() string
	Sign(Claims) (string, error)

	// VerifyKey is the key a Verifier needs for this signer's tokens: the
	// public half for asymmetric algorithms, the MAC key for HS256.
	VerifyKey() any
}

// NewSignerEdDSA loads an Ed25519 signer from a PKCS8 PEM key.
func NewSignerEdDSA(kid string, pemKey []byte) (Signer, error) {
	return newEdDSASigner(kid, pemKey)
}

// NewSignerES256 loads an ECDSA P-256 signer from a PKCS8 PEM key.
func NewSignerES256(kid string, pemKey []byte) (Signer, error) {
	return newES256Signer(kid, pemKey)
}

// NewSignerHS256 derives an HMAC key for kid from a server-held secret.
// The same secret and kid always give the same key, so replicas agree.
func NewSignerHS256(kid string, secret []byte) (Signer, error) {
	return newHS256Signer(kid, secret)
}

// GenerateSigner creates a signer for alg. Asymmetric algorithms get a fresh
// in-memory key pair; HS256 derives its key from secret. An empty kid is
// replaced by a random one.
func GenerateSigner(alg, kid string, secret []byte) (Signer, error) {
	if kid == "" {
		var err error
		if kid, err = NewKeyID(); err != nil {
			return nil, err
		}
	}

	switch alg {
	case AlgorithmEdDSA:
		pemKey, err := cryptox.GenerateEd25519Key()
		if err != nil {
			return nil, err
		}
		return NewSignerEdDSA(kid, pemKey)

	case AlgorithmES256:
		pemKey, err := cryptox.GenerateES256Key()
		if err != nil {
			return nil, err
		}
		return NewSignerES256(kid, pemKey)

	case AlgorithmHS256:
		return NewSignerHS256(kid, secret)

	default:
		return nil, fmt.Errorf("jwtx: unsupported algorithm %q (supported: EdDSA, ES256, HS256)", alg)
	}
}

// NewKeyID returns a random key id.
func NewKeyID() (string, error) {
	token, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return "", fmt.Errorf("jwtx: key id: %w", err)
	}
	return "sk-" + token, nil
}
