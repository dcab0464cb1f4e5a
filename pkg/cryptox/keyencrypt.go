package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

// sealInfo labels the HKDF expansion of the master secret, so the same
// secret used elsewhere never yields this AES key.
const sealInfo = "sessiond signing key at rest v1"

var ErrSealedKeyCorrupt = errors.New("cryptox: sealed key is corrupt or the master secret is wrong")

// SealPrivateKey encrypts a PEM private key with AES-256-GCM under a key
// derived from master. Output is [12-byte nonce][ciphertext][16-byte tag].
func SealPrivateKey(master, pemData []byte) ([]byte, error) {
	gcm, err := sealCipher(master)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("cryptox: generate nonce: %w", err)
	}
	return gcm.Seal(nonce, nonce, pemData, nil), nil
}

// OpenPrivateKey reverses SealPrivateKey. A wrong master secret or any
// tampering gives ErrSealedKeyCorrupt.
func OpenPrivateKey(master, sealed []byte) ([]byte, error) {
	gcm, err := sealCipher(master)
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(sealed) < nonceSize+gcm.Overhead() {
		return nil, ErrSealedKeyCorrupt
	}
	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrSealedKeyCorrupt
	}
	return plaintext, nil
}

func sealCipher(master []byte) (cipher.AEAD, error) {
	key, err := DeriveKey(master, sealInfo, 32)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cryptox: create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cryptox: create GCM: %w", err)
	}
	return gcm, nil
}
