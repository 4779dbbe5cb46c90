// Package dh25519 implements Diffie-Hellman key pairs and the DH primitive
// over Curve25519, as used by the Double Ratchet's GENERATE_DH/DH functions
// and by X3DH.
package dh25519

import (
	"crypto/rand"
	"errors"
	"io"

	"golang.org/x/crypto/curve25519"
)

var (
	ErrInvalid             = errors.New("dh25519: invalid input")
	ErrInvalidSecretLength = errors.New("dh25519: invalid secret length")
)

type (
	// PrivateKey is a clamped X25519 scalar.
	PrivateKey [32]byte
	// PublicKey is an X25519 Montgomery u-coordinate.
	PublicKey [32]byte
	// Pair is a Diffie-Hellman key pair.
	Pair struct {
		Priv PrivateKey
		Pub  PublicKey
	}
)

// New generates a fresh, correctly clamped X25519 private key.
func New() (*PrivateKey, error) {
	var priv PrivateKey
	if _, err := io.ReadFull(rand.Reader, priv[:]); err != nil {
		return nil, err
	}
	// RFC 7748 clamping.
	priv[0] &= 248
	priv[31] &= 127
	priv[31] |= 64
	return &priv, nil
}

// GenerateDH returns a fresh Diffie-Hellman key pair.
func GenerateDH() (*Pair, error) {
	priv, err := New()
	if err != nil {
		return nil, err
	}
	pub, err := priv.Public()
	if err != nil {
		return nil, err
	}
	return &Pair{Priv: *priv, Pub: *pub}, nil
}

// Public derives the public key matching a private key.
func (priv *PrivateKey) Public() (*PublicKey, error) {
	pubBytes, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return nil, err
	}
	var pub PublicKey
	copy(pub[:], pubBytes)
	return &pub, nil
}

// GetSharedSecret performs the X25519 scalar multiplication DH(privKey, pubKey).
func GetSharedSecret(privKey PrivateKey, pubKey PublicKey) ([]byte, error) {
	secret, err := curve25519.X25519(privKey[:], pubKey[:])
	if err != nil {
		return nil, err
	}
	if len(secret) != 32 {
		return nil, ErrInvalidSecretLength
	}
	return secret, nil
}

// GetSecret is the pointer-argument form used by call sites that already
// hold key material by reference.
func GetSecret(privKey *PrivateKey, pubKey *PublicKey) ([]byte, error) {
	if privKey == nil || pubKey == nil {
		return nil, ErrInvalid
	}
	return GetSharedSecret(*privKey, *pubKey)
}

// Equals reports whether two public keys are the same point encoding.
func (pub *PublicKey) Equals(other *PublicKey) bool {
	if pub == nil || other == nil {
		return false
	}
	return *pub == *other
}
