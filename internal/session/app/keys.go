package app

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"

	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/cryptox"
	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/jwtx"
)

// defaultHS256KID is used when HS256 runs without SESSION_SIGNING_KID. The
// kid feeds the HMAC key derivation, so it has to be stable across restarts.
const defaultHS256KID = "hs-1"

// InitSigningKeys builds the key ring access tokens are signed with.
//
// Key sources, in order:
//   - HS256: the key is derived from SESSION_SIGNING_SECRET and the kid, so
//     every replica with the same secret signs and verifies alike.
//   - SESSION_SIGNING_KEY_FILE: a PKCS8 PEM key, opened with the master
//     secret first when SESSION_MASTER_KEY_FILE is set.
//   - Otherwise a fresh key pair lives only in memory. Access tokens stop
//     verifying on restart; refresh tokens keep working.
func InitSigningKeys(cfg Config, logger *slog.Logger) (*jwtx.KeyRing, error) {
	if cfg.SigningAlg == jwtx.AlgorithmHS256 {
		kid := cfg.SigningKID
		if kid == "" {
			kid = defaultHS256KID
		}
		signer, err := jwtx.NewSignerHS256(kid, []byte(cfg.SigningSecret))
		if err != nil {
			return nil, fmt.Errorf("hs256 signer: %w", err)
		}
		logger.Info("signing keys loaded", "algorithm", cfg.SigningAlg, "kid", kid, "source", "secret")
		return jwtx.NewKeyRing(signer)
	}

	if cfg.SigningKeyFile != "" {
		pemKey, err := loadSigningKey(cfg.SigningKeyFile, cfg.MasterKeyFile)
		if err != nil {
			return nil, err
		}

		kid := cfg.SigningKID
		if kid == "" {
			if kid, err = jwtx.NewKeyID(); err != nil {
				return nil, err
			}
		}

		var signer jwtx.Signer
		switch cfg.SigningAlg {
		case jwtx.AlgorithmES256:
			signer, err = jwtx.NewSignerES256(kid, pemKey)
		default:
			signer, err = jwtx.NewSignerEdDSA(kid, pemKey)
		}
		if err != nil {
			return nil, fmt.Errorf("load %s key from %s: %w", cfg.SigningAlg, cfg.SigningKeyFile, err)
		}

		logger.Info("signing keys loaded",
			"algorithm", cfg.SigningAlg,
			"kid", kid,
			"source", "file",
			"sealed", cfg.MasterKeyFile != "",
		)
		return jwtx.NewKeyRing(signer)
	}

	ring, err := jwtx.NewEphemeralKeyRing(jwtx.KeyRingOptions{
		Algorithm: cfg.SigningAlg,
		KID:       cfg.SigningKID,
	})
	if err != nil {
		return nil, fmt.Errorf("generate %s key: %w", cfg.SigningAlg, err)
	}

	logger.Warn("signing keys are ephemeral, access tokens will not survive a restart",
		"algorithm", cfg.SigningAlg,
		"kid", ring.Signer().KID(),
	)
	return ring, nil
}

func loadSigningKey(keyFile, masterFile string) ([]byte, error) {
	data, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("read signing key: %w", err)
	}
	if masterFile == "" {
		return data, nil
	}

	master, err := readMasterKey(masterFile)
	if err != nil {
		return nil, err
	}
	pemKey, err := cryptox.OpenPrivateKey(master, data)
	if err != nil {
		return nil, fmt.Errorf("open sealed signing key: %w", err)
	}
	return pemKey, nil
}

// readMasterKey ignores surrounding whitespace so a trailing newline from an
// editor or a mounted secret does not change the derived key.
func readMasterKey(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read master key: %w", err)
	}
	return bytes.TrimSpace(data), nil
}

// SealKeyFile generates a fresh key for alg and writes it to keyFile sealed
// under the secret in masterFile. It backs the keygen command.
func SealKeyFile(alg, keyFile, masterFile string) error {
	var (
		pemKey []byte
		err    error
	)
	switch alg {
	case jwtx.AlgorithmEdDSA:
		pemKey, err = cryptox.GenerateEd25519Key()
	case jwtx.AlgorithmES256:
		pemKey, err = cryptox.GenerateES256Key()
	default:
		return fmt.Errorf("keygen: unsupported algorithm %q (supported: EdDSA, ES256)", alg)
	}
	if err != nil {
		return err
	}

	out := pemKey
	if masterFile != "" {
		master, err := readMasterKey(masterFile)
		if err != nil {
			return err
		}
		if out, err = cryptox.SealPrivateKey(master, pemKey); err != nil {
			return err
		}
	}

	return os.WriteFile(keyFile, out, 0o600)
}
