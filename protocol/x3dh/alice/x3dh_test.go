package alice

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"minimal-signal/crypto/dh25519"
	"minimal-signal/crypto/hkdf"
	"minimal-signal/crypto/xeddsa"
)

type bobPrivKeys struct {
	IdentityPrivateKey dh25519.PrivateKey
	PrekeyPrivateKey   dh25519.PrivateKey
	OneTimePrivateKey  dh25519.PrivateKey
}

func generateBobKeys(t *testing.T, withOneTimePrekey bool) (*BobPublicPrekeyBundle, *bobPrivKeys) {
	t.Helper()

	identityKey, err := dh25519.New()
	assert.NoError(t, err)
	identityPubKey, err := identityKey.Public()
	assert.NoError(t, err)

	prekey, err := dh25519.New()
	assert.NoError(t, err)
	prekeyPubKey, err := prekey.Public()
	assert.NoError(t, err)

	var z [64]byte
	sig, err := xeddsa.Sign(*identityKey, prekeyPubKey[:], z)
	assert.NoError(t, err)

	bobKeys := &bobPrivKeys{
		IdentityPrivateKey: *identityKey,
		PrekeyPrivateKey:   *prekey,
	}
	bundle := &BobPublicPrekeyBundle{
		IdentityKey: *identityPubKey,
		Prekey:      *prekeyPubKey,
		PrekeySig:   sig,
	}

	if withOneTimePrekey {
		otk, err := dh25519.New()
		assert.NoError(t, err)
		otkPub, err := otk.Public()
		assert.NoError(t, err)
		bobKeys.OneTimePrivateKey = *otk
		bundle.OneTimePrekey = otkPub
	}

	return bundle, bobKeys
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
			bobBundle, bobKeys := generateBobKeys(t, tt.withOneTimePrekey)

			aliceIdKey, err := dh25519.New()
			assert.NoError(t, err)

			sk, ad, ephPubKey, err := PerformKeyAgreement(bobBundle, *aliceIdKey)
			assert.NoError(t, err)
			assert.NotEmpty(t, ad)
			assert.NotNil(t, ephPubKey)

			// Simulate Bob's side deriving the same SK.
			alicePubIDKey, err := aliceIdKey.Public()
			assert.NoError(t, err)

			dh1, _ := dh25519.GetSecret(&bobKeys.PrekeyPrivateKey, alicePubIDKey)
			dh2, _ := dh25519.GetSecret(&bobKeys.IdentityPrivateKey, ephPubKey)
			dh3, _ := dh25519.GetSecret(&bobKeys.PrekeyPrivateKey, ephPubKey)

			combined := append([]byte{}, domainSeparatorF[:]...)
			combined = append(combined, dh1...)
			combined = append(combined, dh2...)
			combined = append(combined, dh3...)
			if tt.withOneTimePrekey {
				dh4, _ := dh25519.GetSecret(&bobKeys.OneTimePrivateKey, ephPubKey)
				combined = append(combined, dh4...)
			}

			derivedKey, err := hkdf.Expand(combined, hkdfSaltSK, hkdfInfoSK, 32)
			assert.NoError(t, err)
			assert.Equal(t, derivedKey, sk[:])
		})
	}
}

func TestVerifyFailsOnTamperedSignature(t *testing.T) {
	bobBundle, _ := generateBobKeys(t, false)
	bobBundle.PrekeySig[0] ^= 0xff

	aliceIdKey, err := dh25519.New()
	assert.NoError(t, err)

	_, _, _, err = PerformKeyAgreement(bobBundle, *aliceIdKey)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}
