package ratchetbind

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"minimal-signal/crypto/dh25519"
	"minimal-signal/protocol/x3dh/bob"
)

func newBobBundle(t *testing.T, withOneTimePrekey bool) *bob.BobPrekeyBundle {
	t.Helper()

	identityKey, err := dh25519.New()
	assert.NoError(t, err)
	prekey, err := dh25519.New()
	assert.NoError(t, err)

	bundle := &bob.BobPrekeyBundle{
		IdentityKey: *identityKey,
		Prekey:      *prekey,
	}
	if withOneTimePrekey {
		otk, err := dh25519.New()
		assert.NoError(t, err)
		bundle.OneTimePrekey = otk
	}
	return bundle
}

func TestInitiateAndAcceptSessionEstablishMatchingRatchets(t *testing.T) {
	tests := []struct {
		name              string
		withOneTimePrekey bool
	}{
		{name: "with one-time prekey", withOneTimePrekey: true},
		{name: "without one-time prekey", withOneTimePrekey: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bobBundle := newBobBundle(t, tt.withOneTimePrekey)
			bobPublicBundle, err := bobBundle.ToPublicBundle(tt.withOneTimePrekey)
			assert.NoError(t, err)

			aliceIdentity, err := dh25519.New()
			assert.NoError(t, err)
			aliceIdentityPub, err := aliceIdentity.Public()
			assert.NoError(t, err)

			aliceSession, handshake, err := InitiateSession(*aliceIdentity, &bobPublicBundle)
			assert.NoError(t, err)
			assert.NotNil(t, aliceSession)
			assert.NotNil(t, handshake)

			bobSession, err := AcceptSession(bobBundle, handshake, *aliceIdentityPub)
			assert.NoError(t, err)
			assert.NotNil(t, bobSession)

			ad := []byte("shared associated data")
			header, ciphertext, err := aliceSession.Encrypt([]byte("hello bob"), ad, false)
			assert.NoError(t, err)

			plaintext, err := bobSession.Decrypt(*header, ciphertext, ad)
			assert.NoError(t, err)
			assert.Equal(t, "hello bob", string(plaintext))
		})
	}
}

func TestInitiateSessionRejectsTamperedPrekeySignature(t *testing.T) {
	bobBundle := newBobBundle(t, false)
	bobPublicBundle, err := bobBundle.ToPublicBundle(false)
	assert.NoError(t, err)
	bobPublicBundle.PrekeySig[0] ^= 0xff

	aliceIdentity, err := dh25519.New()
	assert.NoError(t, err)

	_, _, err = InitiateSession(*aliceIdentity, &bobPublicBundle)
	assert.Error(t, err)
}
