package doubleratchethe

import (
	"encoding/binary"

	"minimal-signal/crypto/dh25519"
)

type (
	// RatchetKey is a 32-byte root key or chain key.
	RatchetKey [32]byte
	// MsgKey is a 32-byte per-message key derived from a chain key.
	MsgKey [32]byte
	// HeaderKey is a 32-byte key used to symmetrically encrypt a message
	// header so it no longer leaks the sender's current ratchet public key
	// in the clear.
	HeaderKey [32]byte
	// MsgIndex counts messages sent/received within a single sending or
	// receiving chain.
	MsgIndex uint32
)

// MkSkippedKey indexes a skipped message key by the header key in effect
// when it was skipped (since the ratchet public key itself is no longer
// visible before decryption) plus the message index within that chain.
type MkSkippedKey struct {
	Hk HeaderKey
	N  MsgIndex
}

// PlaintextHeader is the header as encrypted under the current header key.
// Unlike the plain Double Ratchet, the wire format never exposes this
// struct directly — only EncryptedHeader does.
type PlaintextHeader struct {
	RatchetPub dh25519.PublicKey
	Pn         MsgIndex
	N          MsgIndex
}

// Marshal encodes a header as a fixed-width byte sequence before header
// encryption: the 32-byte ratchet public key followed by Pn and N as
// big-endian uint32s.
func (h PlaintextHeader) Marshal() []byte {
	buf := make([]byte, 32+4+4)
	copy(buf[:32], h.RatchetPub[:])
	binary.BigEndian.PutUint32(buf[32:36], uint32(h.Pn))
	binary.BigEndian.PutUint32(buf[36:40], uint32(h.N))
	return buf
}

// UnmarshalPlaintextHeader decodes the fixed-width encoding Marshal produces.
func UnmarshalPlaintextHeader(buf []byte) (PlaintextHeader, error) {
	if len(buf) != 40 {
		return PlaintextHeader{}, ErrInvalidHeader
	}
	var h PlaintextHeader
	copy(h.RatchetPub[:], buf[:32])
	h.Pn = MsgIndex(binary.BigEndian.Uint32(buf[32:36]))
	h.N = MsgIndex(binary.BigEndian.Uint32(buf[36:40]))
	return h, nil
}

// EncryptedHeader is what actually travels on the wire: the header,
// encrypted under the sender's current header key, so an observer of the
// transport cannot recover the sender's ratchet public key or message
// index without already holding a header key.
type EncryptedHeader []byte
