package jwtx

import (
	"errors"
	"slices"
	"sync"
)

var ErrNoKey = errors.New("jwtx: key not found")

type verifyKey struct {
	alg string
	key any
}

// KeySet holds verification keys by kid. The session service fills it from
// its own signers; other services can fill it from a fetched JWKS.
// Safe for concurrent use.
type KeySet struct {
	mu    sync.RWMutex
	keys  map[string]verifyKey
	order []string
}

func NewKeySet() *KeySet {
	return &KeySet{keys: make(map[string]verifyKey)}
}

// AddSigner registers the verification key of s.
func (k *KeySet) AddSigner(s Signer) error {
	return k.Add(s.KID(), s.Alg(), s.VerifyKey())
}

// Add registers key under kid for alg. Re-adding a kid replaces it.
func (k *KeySet) Add(kid, alg string, key any) error {
	if kid == "" {
		return errors.New("jwtx: empty kid")
	}
	if key == nil {
		return errors.New("jwtx: nil key")
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if _, exists := k.keys[kid]; !exists {
		k.order = append(k.order, kid)
	}
	k.keys[kid] = verifyKey{alg: alg, key: key}
	return nil
}

// Remove drops kid. Tokens signed under it stop verifying.
func (k *KeySet) Remove(kid string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, ok := k.keys[kid]; !ok {
		return false
	}
	delete(k.keys, kid)
	k.order = slices.DeleteFunc(k.order, func(s string) bool { return s == kid })
	return true
}

func (k *KeySet) lookup(kid string) (verifyKey, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	vk, ok := k.keys[kid]
	if !ok {
		return verifyKey{}, ErrNoKey
	}
	return vk, nil
}

// PublicJWKS lists the publishable keys in insertion order.
func (k *KeySet) PublicJWKS() JWKS {
	k.mu.RLock()
	defer k.mu.RUnlock()

	out := JWKS{Keys: []JWK{}}
	for _, kid := range k.order {
		vk := k.keys[kid]
		if j, ok := publicJWK(kid, vk.alg, vk.key); ok {
			out.Keys = append(out.Keys, j)
		}
	}
	return out
}

// ResetFromJWKS replaces every key with the contents of a fetched JWKS.
func (k *KeySet) ResetFromJWKS(set JWKS) error {
	keys := make(map[string]verifyKey, len(set.Keys))
	order := make([]string, 0, len(set.Keys))
	for _, j := range set.Keys {
		alg, key, err := parseJWK(j)
		if err != nil {
			return err
		}
		if j.Alg != "" && j.Alg != alg {
			return errors.New("jwtx: jwk alg does not match key type")
		}
		if _, dup := keys[j.Kid]; !dup {
			order = append(order, j.Kid)
		}
		keys[j.Kid] = verifyKey{alg: alg, key: key}
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	k.keys = keys
	k.order = order
	return nil
}

// IsReady reports whether at least one key is loaded.
func (k *KeySet) IsReady() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.keys) > 0
}

// KIDs returns the loaded key ids in insertion order.
func (k *KeySet) KIDs() []string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return slices.Clone(k.order)
}
