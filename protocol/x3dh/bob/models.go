package bob

import (
	"crypto/rand"
	"fmt"
	"io"

	"minimal-signal/crypto/dh25519"
	"minimal-signal/crypto/xeddsa"
	"minimal-signal/protocol/x3dh/alice"
)

// BobPrekeyBundle holds Bob's long-term identity key, his current signed
// prekey, and an optional one-time prekey — the private-key side of what
// gets published to the prekey server.
type BobPrekeyBundle struct {
	IdentityKey   dh25519.PrivateKey
	Prekey        dh25519.PrivateKey
	OneTimePrekey *dh25519.PrivateKey // optional
}

// ReceivedAliceKeyBundle is what Bob recovers from Alice's first message:
// her identity key and the fresh ephemeral key she generated for this
// handshake.
type ReceivedAliceKeyBundle struct {
	IdentityKey  dh25519.PublicKey
	EphemeralKey dh25519.PublicKey
}

// ToPublicBundle signs Bob's current prekey with XEdDSA (using his identity
// key) and returns the bundle Alice fetches from the prekey server.
func (bob *BobPrekeyBundle) ToPublicBundle(includeOneTimePrekey bool) (alice.BobPublicPrekeyBundle, error) {
	identityKeyPub, err := bob.IdentityKey.Public()
	if err != nil {
		return alice.BobPublicPrekeyBundle{}, fmt.Errorf("failed to get public identity key: %w", err)
	}

	prekeyPub, err := bob.Prekey.Public()
	if err != nil {
		return alice.BobPublicPrekeyBundle{}, fmt.Errorf("failed to get public prekey: %w", err)
	}

	var z [64]byte
	if _, err := io.ReadFull(rand.Reader, z[:]); err != nil {
		return alice.BobPublicPrekeyBundle{}, fmt.Errorf("failed to generate signature randomness: %w", err)
	}
	prekeySig, err := xeddsa.Sign(bob.IdentityKey, prekeyPub[:], z)
	if err != nil {
		return alice.BobPublicPrekeyBundle{}, fmt.Errorf("failed to sign prekey: %w", err)
	}

	bundle := alice.BobPublicPrekeyBundle{
		IdentityKey: *identityKeyPub,
		Prekey:      *prekeyPub,
		PrekeySig:   prekeySig,
	}

	if includeOneTimePrekey && bob.OneTimePrekey != nil {
		otkPub, err := bob.OneTimePrekey.Public()
		if err != nil {
			return alice.BobPublicPrekeyBundle{}, fmt.Errorf("failed to get public one-time prekey: %w", err)
		}
		bundle.OneTimePrekey = otkPub
	}

	return bundle, nil
}
