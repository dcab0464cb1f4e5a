package jwtx_test

import (
	"testing"
	"time"

	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func TestKeyRing_RotateAndRetire(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	ring := newRing(t, jwtx.AlgorithmEdDSA)
	v := jwtx.NewVerifier(ring.KeySet(), jwtx.VerifyOptions{Now: func() time.Time { return now }})

	oldKid := ring.Signer().KID()
	oldTok, err := ring.Sign(newClaims(now, time.Minute))
	require.NoError(t, err)

	next, err := jwtx.GenerateSigner(jwtx.AlgorithmEdDSA, "", nil)
	require.NoError(t, err)
	require.NoError(t, ring.Rotate(next))
	require.Equal(t, next.KID(), ring.Signer().KID())

	newTok, err := ring.Sign(newClaims(now, time.Minute))
	require.NoError(t, err)

	// both generations verify during the overlap
	_, err = v.Verify(oldTok)
	require.NoError(t, err)
	_, err = v.Verify(newTok)
	require.NoError(t, err)

	require.Error(t, ring.Retire(next.KID()), "active key must not be retired")
	require.NoError(t, ring.Retire(oldKid))
	require.ErrorIs(t, ring.Retire(oldKid), jwtx.ErrNoKey)

	_, err = v.Verify(oldTok)
	require.ErrorIs(t, err, jwtx.ErrUnknownKID)
	_, err = v.Verify(newTok)
	require.NoError(t, err)
}

func TestKeyRing_HS256SharedSecretAgrees(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	a := newRing(t, jwtx.AlgorithmHS256)
	b := newRing(t, jwtx.AlgorithmHS256)

	tok, err := a.Sign(newClaims(now, time.Minute))
	require.NoError(t, err)

	// a second replica with the same secret and kid verifies it
	v := jwtx.NewVerifier(b.KeySet(), jwtx.VerifyOptions{Now: func() time.Time { return now }})
	_, err = v.Verify(tok)
	require.NoError(t, err)
}

func TestNewEphemeralKeyRing_Rejects(t *testing.T) {
	_, err := jwtx.NewEphemeralKeyRing(jwtx.KeyRingOptions{Algorithm: "RS512"})
	require.Error(t, err)

	_, err = jwtx.NewEphemeralKeyRing(jwtx.KeyRingOptions{Algorithm: jwtx.AlgorithmHS256, KID: "k1", Secret: []byte("short")})
	require.Error(t, err)

	_, err = jwtx.NewKeyRing(nil)
	require.Error(t, err)
}

func TestGenerateSigner_RandomKid(t *testing.T) {
	a, err := jwtx.GenerateSigner(jwtx.AlgorithmES256, "", nil)
	require.NoError(t, err)
	b, err := jwtx.GenerateSigner(jwtx.AlgorithmES256, "", nil)
	require.NoError(t, err)
	require.NotEqual(t, a.KID(), b.KID())
}
