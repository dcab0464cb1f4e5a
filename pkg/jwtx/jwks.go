package jwtx

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
)

// JWK is a public key in JSON Web Key form (RFC 7517). Only the OKP (Ed25519)
// and EC (P-256) shapes are produced; symmetric keys are never published.
type JWK struct {
	Kty string `json:"kty"`
	Use string `json:"use,omitempty"`
	Alg string `json:"alg,omitempty"`
	Kid string `json:"kid,omitempty"`
	Crv string `json:"crv,omitempty"`
	X   string `json:"x,omitempty"`
	Y   string `json:"y,omitempty"`
}

// JWKS is a JSON Web Key Set.
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// publicJWK renders key as a JWK. ok is false for key types that must not be
// published, such as HMAC secrets.
func publicJWK(kid, alg string, key any) (JWK, bool) {
	switch pub := key.(type) {
	case ed25519.PublicKey:
		return JWK{
			Kty: "OKP",
			Use: "sig",
			Alg: alg,
			Kid: kid,
			Crv: "Ed25519",
			X:   base64.RawURLEncoding.EncodeToString(pub),
		}, true

	case *ecdsa.PublicKey:
		// coordinates are left padded to the 32 byte field size
		x := make([]byte, 32)
		y := make([]byte, 32)
		pub.X.FillBytes(x)
		pub.Y.FillBytes(y)
		return JWK{
			Kty: "EC",
			Use: "sig",
			Alg: alg,
			Kid: kid,
			Crv: "P-256",
			X:   base64.RawURLEncoding.EncodeToString(x),
			Y:   base64.RawURLEncoding.EncodeToString(y),
		}, true

	default:
		return JWK{}, false
	}
}

// parseJWK turns a published JWK back into a verification key and its alg.
func parseJWK(j JWK) (string, any, error) {
	switch j.Kty {
	case "OKP":
		if j.Crv != "Ed25519" {
			return "", nil, fmt.Errorf("jwtx: unsupported OKP curve %q", j.Crv)
		}
		xb, err := base64.RawURLEncoding.DecodeString(j.X)
		if err != nil {
			return "", nil, fmt.Errorf("jwtx: OKP x: %w", err)
		}
		if len(xb) != ed25519.PublicKeySize {
			return "", nil, errors.New("jwtx: invalid Ed25519 public key size")
		}
		return AlgorithmEdDSA, ed25519.PublicKey(xb), nil

	case "EC":
		if j.Crv != "P-256" {
			return "", nil, fmt.Errorf("jwtx: unsupported EC curve %q", j.Crv)
		}
		xb, err := base64.RawURLEncoding.DecodeString(j.X)
		if err != nil {
			return "", nil, fmt.Errorf("jwtx: EC x: %w", err)
		}
		yb, err := base64.RawURLEncoding.DecodeString(j.Y)
		if err != nil {
			return "", nil, fmt.Errorf("jwtx: EC y: %w", err)
		}
		pub := &ecdsa.PublicKey{
			Curve: elliptic.P256(),
			X:     new(big.Int).SetBytes(xb),
			Y:     new(big.Int).SetBytes(yb),
		}
		if !pub.Curve.IsOnCurve(pub.X, pub.Y) {
			return "", nil, errors.New("jwtx: EC point not on P-256")
		}
		return AlgorithmES256, pub, nil

	default:
		return "", nil, fmt.Errorf("jwtx: unsupported kty %q", j.Kty)
	}
}
