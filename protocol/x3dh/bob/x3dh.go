package bob

import (
	"minimal-signal/crypto/dh25519"
	"minimal-signal/crypto/hkdf"
)

// https://signal.org/docs/specifications/x3dh/
// Terminology:
// - Alice: sender
// - Bob: receiver

var domainSeparatorF = func() [32]byte {
	var f [32]byte
	for i := range f {
		f[i] = 0xFF
	}
	return f
}()

var hkdfSaltSK = make([]byte, 32) // zero-filled
var hkdfInfoSK = []byte("My super secret app")

func encodeKey(pk dh25519.PublicKey) []byte {
	out := make([]byte, 0, 33)
	out = append(out, 0x00)
	out = append(out, pk[:]...)
	return out
}

// PerformKeyAgreement runs Bob's side of X3DH, mirroring the DH combine
// Alice performed, once Bob knows whether his one-time prekey was consumed.
func PerformKeyAgreement(bob *BobPrekeyBundle, aliceBundle *ReceivedAliceKeyBundle, usedOneTimePrekey bool) (sk [32]byte, ad []byte, err error) {
	dh1, err := dh25519.GetSecret(&bob.Prekey, &aliceBundle.IdentityKey)
	if err != nil {
		return sk, nil, err
	}
	dh2, err := dh25519.GetSecret(&bob.IdentityKey, &aliceBundle.EphemeralKey)
	if err != nil {
		return sk, nil, err
	}
	dh3, err := dh25519.GetSecret(&bob.Prekey, &aliceBundle.EphemeralKey)
	if err != nil {
		return sk, nil, err
	}

	var dh4 []byte
	if usedOneTimePrekey && bob.OneTimePrekey != nil {
		dh4, err = dh25519.GetSecret(bob.OneTimePrekey, &aliceBundle.EphemeralKey)
		if err != nil {
			return sk, nil, err
		}
	}

	combined := make([]byte, 0, 32+len(dh1)+len(dh2)+len(dh3)+len(dh4))
	combined = append(combined, domainSeparatorF[:]...)
	combined = append(combined, dh1...)
	combined = append(combined, dh2...)
	combined = append(combined, dh3...)
	combined = append(combined, dh4...)

	skBytes, err := hkdf.Expand(combined, hkdfSaltSK, hkdfInfoSK, 32)
	if err != nil {
		return sk, nil, err
	}
	copy(sk[:], skBytes)

	bobIdPub, err := bob.IdentityKey.Public()
	if err != nil {
		return sk, nil, err
	}
	ad = append(encodeKey(aliceBundle.IdentityKey), encodeKey(*bobIdPub)...)

	return sk, ad, nil
}
