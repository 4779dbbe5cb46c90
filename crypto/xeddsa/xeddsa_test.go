package xeddsa_test

import (
	"crypto/rand"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"

	"minimal-signal/crypto/dh25519"
	"minimal-signal/crypto/xeddsa"
)

func randomZ(t *testing.T) [64]byte {
	t.Helper()
	var z [64]byte
	_, err := io.ReadFull(rand.Reader, z[:])
	assert.NoError(t, err)
	return z
}

func TestSignVerifyRoundTrip(t *testing.T) {
	priv, err := dh25519.New()
	assert.NoError(t, err)
	pub, err := priv.Public()
	assert.NoError(t, err)

	msg := []byte("prekey bundle signature payload")
	sig, err := xeddsa.Sign(*priv, msg, randomZ(t))
	assert.NoError(t, err)

	assert.True(t, xeddsa.Verify(*pub, msg, sig))
}

func TestVerifyRejectsTamperedMessage(t *testing.T) {
	priv, err := dh25519.New()
	assert.NoError(t, err)
	pub, err := priv.Public()
	assert.NoError(t, err)

	sig, err := xeddsa.Sign(*priv, []byte("original"), randomZ(t))
	assert.NoError(t, err)

	assert.False(t, xeddsa.Verify(*pub, []byte("tampered"), sig))
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	priv, err := dh25519.New()
	assert.NoError(t, err)

	other, err := dh25519.New()
	assert.NoError(t, err)
	otherPub, err := other.Public()
	assert.NoError(t, err)

	msg := []byte("hello")
	sig, err := xeddsa.Sign(*priv, msg, randomZ(t))
	assert.NoError(t, err)

	assert.False(t, xeddsa.Verify(*otherPub, msg, sig))
}

func TestVerifyRejectsNonCanonicalScalar(t *testing.T) {
	priv, err := dh25519.New()
	assert.NoError(t, err)
	pub, err := priv.Public()
	assert.NoError(t, err)

	sig, err := xeddsa.Sign(*priv, []byte("hi"), randomZ(t))
	assert.NoError(t, err)

	sig[63] |= 0x80 // push s past 2^253
	assert.False(t, xeddsa.Verify(*pub, []byte("hi"), sig))
}

func TestCalculateKeyPairMatchesMontgomeryConversion(t *testing.T) {
	priv, err := dh25519.New()
	assert.NoError(t, err)
	pub, err := priv.Public()
	assert.NoError(t, err)

	fromPriv, err := xeddsa.CalculateKeyPair(*priv)
	assert.NoError(t, err)

	fromPub, err := xeddsa.MontgomeryToEdwards(*pub)
	assert.NoError(t, err)

	assert.Equal(t, fromPriv, fromPub)
}
