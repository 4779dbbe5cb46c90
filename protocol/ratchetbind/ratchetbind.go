// Package ratchetbind bridges an X3DH key agreement into a freshly
// initialized Double Ratchet session, owning bundle verification, ephemeral
// key generation, and the handshake-field bookkeeping each side needs so
// callers don't have to inline the X3DH/ratchet wiring themselves.
package ratchetbind

import (
	"fmt"

	"minimal-signal/common"
	"minimal-signal/crypto/dh25519"
	"minimal-signal/protocol/doubleratchet"
	"minimal-signal/protocol/x3dh/alice"
	"minimal-signal/protocol/x3dh/bob"
)

// InitiateSession runs the handshake initiator's side of X3DH against a
// fetched prekey bundle and returns a Double Ratchet session ready to
// encrypt, plus the handshake fields to attach to the first message sent.
func InitiateSession(selfIdentity dh25519.PrivateKey, peerBundle *alice.BobPublicPrekeyBundle) (*doubleratchet.Session, *common.X3DHHandshakeBundle, error) {
	sk, _, ephPub, err := alice.PerformKeyAgreement(peerBundle, selfIdentity)
	if err != nil {
		return nil, nil, fmt.Errorf("ratchetbind: x3dh handshake failed: %w", err)
	}

	session, err := doubleratchet.InitAlice(doubleratchet.RatchetKey(sk), peerBundle.Prekey)
	if err != nil {
		return nil, nil, fmt.Errorf("ratchetbind: failed to init ratchet: %w", err)
	}

	handshake := &common.X3DHHandshakeBundle{
		EphPubKey:     *ephPub,
		OneTimePubKey: peerBundle.OneTimePrekey,
	}
	return session, handshake, nil
}

// AcceptSession runs the responder's side of X3DH once the initiator's first
// message arrives, recovering the shared secret from the attached handshake
// fields and returning the matching Double Ratchet session.
func AcceptSession(self *bob.BobPrekeyBundle, handshake *common.X3DHHandshakeBundle, peerIdentity dh25519.PublicKey) (*doubleratchet.Session, error) {
	usedOneTimePrekey := handshake.OneTimePubKey != nil && self.OneTimePrekey != nil

	sk, _, err := bob.PerformKeyAgreement(self, &bob.ReceivedAliceKeyBundle{
		IdentityKey:  peerIdentity,
		EphemeralKey: handshake.EphPubKey,
	}, usedOneTimePrekey)
	if err != nil {
		return nil, fmt.Errorf("ratchetbind: x3dh handshake failed: %w", err)
	}

	prekeyPub, err := self.Prekey.Public()
	if err != nil {
		return nil, fmt.Errorf("ratchetbind: failed to derive prekey public key: %w", err)
	}

	session := doubleratchet.InitBob(doubleratchet.RatchetKey(sk), dh25519.Pair{Priv: self.Prekey, Pub: *prekeyPub})
	return session, nil
}
