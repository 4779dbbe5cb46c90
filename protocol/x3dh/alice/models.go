package alice

import (
	"encoding/json"

	"minimal-signal/crypto/dh25519"
	"minimal-signal/crypto/xeddsa"
)

// BobPublicPrekeyBundle is the public prekey bundle Alice fetches from the
// server before starting a handshake with Bob.
type BobPublicPrekeyBundle struct {
	IdentityKey   dh25519.PublicKey
	Prekey        dh25519.PublicKey
	PrekeySig     [64]byte
	OneTimePrekey *dh25519.PublicKey `json:",omitempty"` // optional
}

type aliceKeyBundle struct {
	IdentityKey  dh25519.PrivateKey
	EphemeralKey dh25519.PrivateKey
}

// Verify checks bob's XEdDSA signature over his signed prekey, using his
// identity key (the same key used for DH) as the verification key.
func (bob BobPublicPrekeyBundle) Verify() error {
	if !xeddsa.Verify(bob.IdentityKey, bob.Prekey[:], bob.PrekeySig) {
		return ErrInvalidSignature
	}
	return nil
}

func (bob BobPublicPrekeyBundle) MarshalBinary() ([]byte, error) {
	return json.Marshal(bob)
}

func (bob *BobPublicPrekeyBundle) UnmarshalBinary(data []byte) error {
	return json.Unmarshal(data, bob)
}
