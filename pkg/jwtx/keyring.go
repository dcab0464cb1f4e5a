package jwtx

import (
	"errors"
	"fmt"
	"sync"
)

// KeyRing owns the active access-token signer and the KeySet used to verify
// tokens from it and from previously active signers.
//
// Rotating the signer never touches refresh tokens, which are opaque and
// stored server side. Tokens from a rotated-out key keep verifying until the
// key is retired, which should be no sooner than one access TTL later.
type KeyRing struct {
	mu     sync.RWMutex
	active Signer
	keys   *KeySet
}

// KeyRingOptions configures NewEphemeralKeyRing.
type KeyRingOptions struct {
	// Algorithm is one of AlgorithmEdDSA, AlgorithmES256, AlgorithmHS256.
	Algorithm string

	// KID names the first key. Empty picks a random id. For HS256 the kid is
	// part of the key derivation, so replicas sharing a secret must share it.
	KID string

	// Secret is the server-held HS256 secret. Ignored for other algorithms.
	Secret []byte
}

// NewKeyRing starts a ring with initial as the active signer.
func NewKeyRing(initial Signer) (*KeyRing, error) {
	if initial == nil {
		return nil, errors.New("jwtx: nil signer")
	}
	keys := NewKeySet()
	if err := keys.AddSigner(initial); err != nil {
		return nil, err
	}
	return &KeyRing{active: initial, keys: keys}, nil
}

// NewEphemeralKeyRing generates its first signer in memory. Asymmetric keys
// die with the process, which invalidates outstanding access tokens on
// restart but leaves refresh tokens usable.
func NewEphemeralKeyRing(opts KeyRingOptions) (*KeyRing, error) {
	signer, err := GenerateSigner(opts.Algorithm, opts.KID, opts.Secret)
	if err != nil {
		return nil, err
	}
	return NewKeyRing(signer)
}

// Signer returns the active signer.
func (r *KeyRing) Signer() Signer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// Sign signs claims with the active signer.
func (r *KeyRing) Sign(c Claims) (string, error) {
	return r.Signer().Sign(c)
}

// KeySet exposes the verification keys, including rotated-out ones.
func (r *KeyRing) KeySet() *KeySet { return r.keys }

// IsReady reports whether the ring can sign.
func (r *KeyRing) IsReady() bool {
	return r.Signer() != nil && r.keys.IsReady()
}

// Rotate makes next the active signer. The previous key stays verifiable.
func (r *KeyRing) Rotate(next Signer) error {
	if next == nil {
		return errors.New("jwtx: nil signer")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.keys.AddSigner(next); err != nil {
		return fmt.Errorf("jwtx: rotate: %w", err)
	}
	r.active = next
	return nil
}

// Retire removes a rotated-out key from verification. The active key cannot
// be retired.
func (r *KeyRing) Retire(kid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active != nil && r.active.KID() == kid {
		return fmt.Errorf("jwtx: cannot retire active key %q", kid)
	}
	if !r.keys.Remove(kid) {
		return fmt.Errorf("jwtx: %w: %q", ErrNoKey, kid)
	}
	return nil
}
