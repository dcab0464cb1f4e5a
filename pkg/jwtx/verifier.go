package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken wraps every verification failure. Callers facing the
// outside world should only ever look at this; the more specific causes
// below stay in the chain for logs.
var ErrInvalidToken = errors.New("jwtx: invalid token")

var (
	ErrMalformed    = errors.New("jwtx: malformed token")
	ErrAlgMismatch  = errors.New("jwtx: algorithm mismatch")
	ErrUnknownKID   = errors.New("jwtx: unknown kid")
	ErrInvalidSig   = errors.New("jwtx: invalid signature")
	ErrIssuer       = errors.New("jwtx: issuer mismatch")
	ErrAudience     = errors.New("jwtx: audience mismatch")
	ErrExpired      = errors.New("jwtx: token expired")
	ErrNotYetValid  = errors.New("jwtx: token not yet valid")
	ErrInvalidClaim = errors.New("jwtx: invalid claims")
)

// VerifyOptions captures what a token must satisfy beyond its signature.
type VerifyOptions struct {
	// Issuer the token must carry. Empty skips the check.
	Issuer string

	// Audience the token must contain. Empty skips the check.
	Audience string

	// Leeway tolerates clock skew on exp/nbf/iat. Zero means exp is strict.
	Leeway time.Duration

	// Now is the time source. Defaults to time.Now.
	Now func() time.Time
}

// Verifier checks signature and validity window of access tokens against a
// KeySet. It never touches storage.
type Verifier struct {
	keys   *KeySet
	parser *jwt.Parser
}

func NewVerifier(keys *KeySet, opts VerifyOptions) *Verifier {
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{AlgorithmEdDSA, AlgorithmES256, AlgorithmHS256}),
		jwt.WithTimeFunc(now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(opts.Leeway),
	}
	if opts.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(opts.Issuer))
	}
	if opts.Audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(opts.Audience))
	}

	return &Verifier{keys: keys, parser: jwt.NewParser(parserOpts...)}
}

// Verify returns the claims of a valid token. Any failure wraps ErrInvalidToken.
func (v *Verifier) Verify(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := v.parser.ParseWithClaims(tokenStr, claims, v.keyFor)
	if err != nil {
		return nil, fmt.Errorf("%w: %w (%w)", ErrInvalidToken, classify(err), err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, ErrInvalidClaim)
	}
	return claims, nil
}

func (v *Verifier) keyFor(t *jwt.Token) (any, error) {
	kid, _ := t.Header["kid"].(string)
	if kid == "" {
		return nil, ErrUnknownKID
	}

	vk, err := v.keys.lookup(kid)
	if err != nil {
		return nil, ErrUnknownKID
	}

	// the key decides the algorithm, never the token header
	if t.Method.Alg() != vk.alg {
		return nil, ErrAlgMismatch
	}
	return vk.key, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, ErrUnknownKID):
		return ErrUnknownKID
	case errors.Is(err, ErrAlgMismatch):
		return ErrAlgMismatch
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrInvalidSig
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet), errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return ErrNotYetValid
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return ErrIssuer
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return ErrAudience
	default:
		return ErrInvalidClaim
	}
}
