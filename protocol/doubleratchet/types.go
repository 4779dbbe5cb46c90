package doubleratchet

import (
	"encoding/binary"

	"minimal-signal/crypto/dh25519"
)

type (
	// RatchetKey is a 32-byte root key or chain key.
	RatchetKey [32]byte
	// MsgKey is a 32-byte per-message key derived from a chain key.
	MsgKey [32]byte
	// MsgIndex counts messages sent/received within a single sending or
	// receiving chain.
	MsgIndex uint32
)

// MkSkippedKey indexes a skipped message key by the ratchet public key that
// was current when the key was skipped, plus the message index within that
// chain.
type MkSkippedKey struct {
	Pub dh25519.PublicKey
	N   MsgIndex
}

// Header is the per-message header: the sender's current ratchet public
// key, the length of the previous sending chain (for skipped-key recovery),
// and the message's index within the current sending chain.
type Header struct {
	RatchetPub dh25519.PublicKey
	Pn         MsgIndex
	N          MsgIndex
}

// Marshal encodes a header as a fixed-width byte sequence: the 32-byte
// ratchet public key followed by Pn and N as big-endian uint32s. Appended
// to the caller's associated data for ENCRYPT/DECRYPT.
func (h Header) Marshal() ([]byte, error) {
	buf := make([]byte, 32+4+4)
	copy(buf[:32], h.RatchetPub[:])
	binary.BigEndian.PutUint32(buf[32:36], uint32(h.Pn))
	binary.BigEndian.PutUint32(buf[36:40], uint32(h.N))
	return buf, nil
}
