package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// Token sizes in raw bytes, before base64url encoding.
const (
	// TokenSize128 is 128 bits of entropy (22 chars encoded). Used for key ids.
	TokenSize128 = 16
	// TokenSize256 is 256 bits of entropy (43 chars encoded). Refresh tokens use this.
	TokenSize256 = 32
	// TokenSize512 is 512 bits of entropy (86 chars encoded).
	TokenSize512 = 64
)

// FingerprintLen is the encoded length of a FingerprintToken result.
const FingerprintLen = 43

// GenerateToken returns size bytes from crypto/rand as unpadded base64url.
func GenerateToken(size int) (string, error) {
	if size <= 0 {
		return "", fmt.Errorf("cryptox: token size must be positive, got %d", size)
	}

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("cryptox: read random: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// MustGenerateToken is GenerateToken for init paths; it panics on failure.
func MustGenerateToken(size int) string {
	token, err := GenerateToken(size)
	if err != nil {
		panic(err)
	}
	return token
}

// WellFormedToken reports whether s looks like a GenerateToken(size) value.
// It lets callers drop garbage input before touching storage.
func WellFormedToken(s string, size int) bool {
	if len(s) != base64.RawURLEncoding.EncodedLen(size) {
		return false
	}
	_, err := base64.RawURLEncoding.DecodeString(s)
	return err == nil
}

// FingerprintToken is the SHA-256 of token as unpadded base64url (43 chars).
// Stores index opaque tokens by this value so the raw token is never persisted.
func FingerprintToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
