package bob

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"minimal-signal/crypto/dh25519"
	"minimal-signal/crypto/hkdf"
)

func generateBobKeys(t *testing.T, withOneTimePrekey bool) *BobPrekeyBundle {
	t.Helper()

	identityKey, err := dh25519.New()
	assert.NoError(t, err)
	prekey, err := dh25519.New()
	assert.NoError(t, err)

	bundle := &BobPrekeyBundle{
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

func generateAliceKeys(t *testing.T) (*ReceivedAliceKeyBundle, dh25519.PrivateKey, dh25519.PrivateKey) {
	t.Helper()

	identityKey, err := dh25519.New()
	assert.NoError(t, err)
	ephemeralKey, err := dh25519.New()
	assert.NoError(t, err)

	identityPubKey, err := identityKey.Public()
	assert.NoError(t, err)
	ephemeralPubKey, err := ephemeralKey.Public()
	assert.NoError(t, err)

	return &ReceivedAliceKeyBundle{
		IdentityKey:  *identityPubKey,
		EphemeralKey: *ephemeralPubKey,
	}, *identityKey, *ephemeralKey
}

func TestPerformKeyAgreement(t *testing.T) {
	tests := []struct {
		name              string
		withOneTimePrekey bool
	}{
		{name: "with one-time prekey", withOneTimePrekey: true},
		{name: "without one-time prekey", withOneTimePrekey: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bobBundle := generateBobKeys(t, tt.withOneTimePrekey)
			aliceBundle, aliceIdentityPriv, aliceEphemeralPriv := generateAliceKeys(t)

			sk, ad, err := PerformKeyAgreement(bobBundle, aliceBundle, tt.withOneTimePrekey)
			assert.NoError(t, err)
			assert.NotEmpty(t, ad)

			bobPrekeyPub, err := bobBundle.Prekey.Public()
			assert.NoError(t, err)
			bobIdentityPub, err := bobBundle.IdentityKey.Public()
			assert.NoError(t, err)

			dh1, _ := dh25519.GetSharedSecret(aliceIdentityPriv, *bobPrekeyPub)
			dh2, _ := dh25519.GetSharedSecret(aliceEphemeralPriv, *bobIdentityPub)
			dh3, _ := dh25519.GetSharedSecret(aliceEphemeralPriv, *bobPrekeyPub)

			combined := append([]byte{}, domainSeparatorF[:]...)
			combined = append(combined, dh1...)
			combined = append(combined, dh2...)
			combined = append(combined, dh3...)
			if tt.withOneTimePrekey {
				otkPub, err := bobBundle.OneTimePrekey.Public()
				assert.NoError(t, err)
				dh4, _ := dh25519.GetSharedSecret(aliceEphemeralPriv, *otkPub)
				combined = append(combined, dh4...)
			}

			derivedKey, err := hkdf.Expand(combined, hkdfSaltSK, hkdfInfoSK, 32)
			assert.NoError(t, err)
			assert.Equal(t, derivedKey, sk[:])
		})
	}
}
