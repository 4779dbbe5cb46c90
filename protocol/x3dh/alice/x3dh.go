package alice

import (
	"minimal-signal/crypto/dh25519"
	"minimal-signal/crypto/hkdf"
)

// https://signal.org/docs/specifications/x3dh/
// Terminology:
// - Alice: sender
// - Bob: receiver

// domainSeparatorF is prepended to every DH combine before HKDF, per X3DH's
// domain-separation requirement protecting against cross-protocol attacks
// that might otherwise confuse this KDF input with another protocol's.
var domainSeparatorF = func() [32]byte {
	var f [32]byte
	for i := range f {
		f[i] = 0xFF
	}
	return f
}()

var hkdfSaltSK = make([]byte, 32) // zero-filled
var hkdfInfoSK = []byte("My super secret app")

// encodeKey implements X3DH's Encode(pk) = 0x00 || pk curve-identifier
// prefix (0x00 designates X25519/Curve25519).
func encodeKey(pk dh25519.PublicKey) []byte {
	out := make([]byte, 0, 33)
	out = append(out, 0x00)
	out = append(out, pk[:]...)
	return out
}

// PerformKeyAgreement runs Alice's side of X3DH against a fetched prekey
// bundle, returning the 32-byte shared secret SK, the associated data AD to
// bind into the first Double Ratchet message, and Alice's fresh ephemeral
// public key to send to Bob.
func PerformKeyAgreement(bob *BobPublicPrekeyBundle, aliceIdKey dh25519.PrivateKey) (sk [32]byte, ad []byte, ephPubKey *dh25519.PublicKey, err error) {
	alice := aliceKeyBundle{IdentityKey: aliceIdKey}

	// 1. Alice verifies Bob's signature.
	if err = bob.Verify(); err != nil {
		return sk, nil, nil, err
	}

	// 2. Alice generates an ephemeral key pair.
	ephKeyPtr, err := dh25519.New()
	if err != nil {
		return sk, nil, nil, err
	}
	alice.EphemeralKey = *ephKeyPtr

	ephPubKey, err = alice.EphemeralKey.Public()
	if err != nil {
		return sk, nil, nil, err
	}

	// 3. Alice computes DH1..DH4 and combines them with the domain separator.
	dh1, err := dh25519.GetSharedSecret(alice.IdentityKey, bob.Prekey)
	if err != nil {
		return sk, nil, nil, err
	}
	dh2, err := dh25519.GetSharedSecret(alice.EphemeralKey, bob.IdentityKey)
	if err != nil {
		return sk, nil, nil, err
	}
	dh3, err := dh25519.GetSharedSecret(alice.EphemeralKey, bob.Prekey)
	if err != nil {
		return sk, nil, nil, err
	}

	var dh4 []byte
	if bob.OneTimePrekey != nil {
		dh4, err = dh25519.GetSharedSecret(alice.EphemeralKey, *bob.OneTimePrekey)
		if err != nil {
			return sk, nil, nil, err
		}
	}

	combined := make([]byte, 0, 32+len(dh1)+len(dh2)+len(dh3)+len(dh4))
	combined = append(combined, domainSeparatorF[:]...)
	combined = append(combined, dh1...)
	combined = append(combined, dh2...)
	combined = append(combined, dh3...)
	combined = append(combined, dh4...)

	// 4. Alice derives SK via HKDF-SHA512.
	skBytes, err := hkdf.Expand(combined, hkdfSaltSK, hkdfInfoSK, 32)
	if err != nil {
		return sk, nil, nil, err
	}
	copy(sk[:], skBytes)

	aliceIdPub, err := alice.IdentityKey.Public()
	if err != nil {
		return sk, nil, nil, err
	}
	ad = append(encodeKey(*aliceIdPub), encodeKey(bob.IdentityKey)...)

	return sk, ad, ephPubKey, nil
}
