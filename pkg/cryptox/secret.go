package cryptox

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// MinSecretLen is the shortest server secret DeriveKey accepts.
const MinSecretLen = 32

var ErrWeakSecret = errors.New("cryptox: secret too short")

// DeriveKey expands a server-held secret into a length-byte key with
// HKDF-SHA256. Different info labels yield independent keys from one secret,
// so rotating to a new label (for example a new key id) gives a fresh MAC key
// without changing the configured secret.
func DeriveKey(secret []byte, info string, length int) ([]byte, error) {
	if len(secret) < MinSecretLen {
		return nil, fmt.Errorf("%w: need %d bytes, got %d", ErrWeakSecret, MinSecretLen, len(secret))
	}
	if length <= 0 {
		return nil, fmt.Errorf("cryptox: derived key length must be positive, got %d", length)
	}

	out := make([]byte, length)
	r := hkdf.New(sha256.New, secret, nil, []byte(info))
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("cryptox: hkdf expand: %w", err)
	}
	return out, nil
}

// ConstantTimeEqual compares two secrets without leaking the mismatch position.
func ConstantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
