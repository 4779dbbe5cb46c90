// Package hkdf wraps golang.org/x/crypto/hkdf with the buffer-sized calling
// convention used throughout the ratchet and handshake layers.
package hkdf

import (
	"hash"
	"io"

	"golang.org/x/crypto/hkdf"

	"minimal-signal/crypto"
)

// KDF reads len(buffer) bytes of HKDF(hash, keyMaterial, salt, info) output
// into buffer, returning the number of bytes read.
func KDF(hash func() hash.Hash, keyMaterial []byte, salt []byte, info []byte, buffer []byte) (int, error) {
	hkdfReader := hkdf.New(hash, keyMaterial, salt, info)
	return io.ReadFull(hkdfReader, buffer)
}

// Expand is KDF specialized to crypto.DefaultHashFunc (SHA-512), returning a
// freshly allocated buffer of the requested length.
func Expand(keyMaterial, salt, info []byte, length int) ([]byte, error) {
	buffer := make([]byte, length)
	if _, err := KDF(crypto.DefaultHashFunc, keyMaterial, salt, info, buffer); err != nil {
		return nil, err
	}
	return buffer, nil
}
