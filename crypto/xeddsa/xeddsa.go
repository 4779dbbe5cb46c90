// Package xeddsa implements XEdDSA: signing and verification with X25519
// (Montgomery) key material by internally deriving a matching Ed25519
// scalar, per the algorithm described in Signal's XEdDSA/VXEdDSA
// specification. It is what lets an X3DH prekey bundle be signed with the
// same identity key used for Diffie-Hellman.
//
// The Montgomery<->Edwards conversions use filippo.io/edwards25519 and its
// field subpackage for canonical scalar/point/field-element arithmetic,
// mirroring the conversion code in other_examples' SAGE x25519 key material
// (which also pairs crypto/ecdh X25519 keys with filippo.io/edwards25519).
package xeddsa

import (
	"bytes"
	"crypto/sha512"
	"errors"

	"filippo.io/edwards25519"
	"filippo.io/edwards25519/field"
)

var (
	ErrInvalidSignatureLength = errors.New("xeddsa: signature must be 64 bytes")
	ErrInvalidKey             = errors.New("xeddsa: invalid key material")
)

// p, little-endian, is 2^255-19: the field modulus used to reject
// non-canonical point/scalar encodings.
var fieldModulusLE = [32]byte{
	0xed, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x7f,
}

// hashPrefix builds the 32-byte H_i domain-separation prefix: 0xFF
// everywhere except the first byte, which is 0xFF-i.
func hashPrefix(i byte) [32]byte {
	var p [32]byte
	for j := range p {
		p[j] = 0xFF
	}
	p[0] = 0xFF - i
	return p
}

func hashReduced(parts ...[]byte) (*edwards25519.Scalar, error) {
	h := sha512.New()
	for _, p := range parts {
		h.Write(p)
	}
	digest := h.Sum(nil)
	return edwards25519.NewScalar().SetUniformBytes(digest)
}

// isCanonicalFieldEncoding reports whether the low 255 bits of b (the sign
// bit in b[31] is ignored) encode a value strictly less than the field
// modulus 2^255-19.
func isCanonicalFieldEncoding(b []byte) bool {
	if len(b) != 32 {
		return false
	}
	var v [32]byte
	copy(v[:], b)
	v[31] &= 0x7F
	for i := 31; i >= 0; i-- {
		if v[i] != fieldModulusLE[i] {
			return v[i] < fieldModulusLE[i]
		}
	}
	return false // equal to the modulus: not canonical
}

// derive computes the Edwards signing key pair (A, a) from an X25519
// private scalar k, per §4.2:
//
//	E = k·B on Ed25519
//	A = compress(E) with the sign bit forced to 0
//	a = (E.x odd) ? -k mod q : k mod q
func derive(k [32]byte) (a *edwards25519.Scalar, A [32]byte, err error) {
	kScalar, err := edwards25519.NewScalar().SetBytesWithClamping(k[:])
	if err != nil {
		return nil, A, err
	}
	E := edwards25519.NewIdentityPoint().ScalarBaseMult(kScalar)
	encoded := E.Bytes()
	signBit := (encoded[31] >> 7) & 1

	a = kScalar
	if signBit == 1 {
		a = edwards25519.NewScalar().Negate(kScalar)
	}

	copy(A[:], encoded)
	A[31] &= 0x7F
	return a, A, nil
}

// MontgomeryToEdwards converts an X25519 public key (Montgomery u-coordinate)
// to the compressed Edwards point with sign bit forced to 0, i.e. the public
// half of the XEdDSA key pair derived from the matching private scalar.
// Callers use this to recover the signing public key from a DH public key.
func MontgomeryToEdwards(pub [32]byte) (A [32]byte, err error) {
	if !isCanonicalFieldEncoding(pub[:]) {
		return A, ErrInvalidKey
	}
	u := new(field.Element)
	if _, err := u.SetBytes(pub[:]); err != nil {
		return A, ErrInvalidKey
	}
	one := new(field.Element).One()
	uMinus1 := new(field.Element).Subtract(u, one)
	uPlus1 := new(field.Element).Add(u, one)
	uPlus1Inv := new(field.Element).Invert(uPlus1)
	y := new(field.Element).Multiply(uMinus1, uPlus1Inv)

	encoded := y.Bytes()
	encoded[31] &= 0x7F

	// Confirm the point is actually on the curve (rejects the remaining
	// off-curve u values SetBytes' field reduction alone wouldn't catch).
	if _, err := edwards25519.NewIdentityPoint().SetBytes(encoded); err != nil {
		return A, ErrInvalidKey
	}
	copy(A[:], encoded)
	return A, nil
}

// CalculateKeyPair returns the XEdDSA public signing key derived from an
// X25519 private scalar. It must equal MontgomeryToEdwards applied to the
// matching public key (the self-consistency property in spec.md §8.6).
func CalculateKeyPair(priv [32]byte) (A [32]byte, err error) {
	_, A, err = derive(priv)
	return A, err
}

// Sign produces an XEdDSA signature over M using the X25519 private scalar
// sk. Z must be 64 bytes of fresh randomness.
func Sign(sk [32]byte, M []byte, Z [64]byte) ([64]byte, error) {
	var sig [64]byte

	a, A, err := derive(sk)
	if err != nil {
		return sig, err
	}

	prefix1 := hashPrefix(1)
	r, err := hashReduced(prefix1[:], a.Bytes(), M, Z[:])
	if err != nil {
		return sig, err
	}
	R := edwards25519.NewIdentityPoint().ScalarBaseMult(r)
	Rbytes := R.Bytes()

	prefix0 := hashPrefix(0)
	h, err := hashReduced(prefix0[:], Rbytes, A[:], M)
	if err != nil {
		return sig, err
	}

	ha := edwards25519.NewScalar().Multiply(h, a)
	s := edwards25519.NewScalar().Add(r, ha)

	copy(sig[:32], Rbytes)
	copy(sig[32:], s.Bytes())
	return sig, nil
}

// Verify reports whether sig is a valid XEdDSA signature over M under the
// X25519 public key pk.
func Verify(pk [32]byte, M []byte, sig [64]byte) bool {
	s := sig[32:]
	if s[31]&0xE0 != 0 {
		// s >= 2^253
		return false
	}
	sScalar, err := edwards25519.NewScalar().SetCanonicalBytes(s)
	if err != nil {
		return false
	}

	R := sig[:32]
	if !isCanonicalFieldEncoding(R) {
		return false
	}
	Rpoint, err := edwards25519.NewIdentityPoint().SetBytes(R)
	if err != nil {
		return false
	}

	A, err := MontgomeryToEdwards(pk)
	if err != nil {
		return false
	}
	APoint, err := edwards25519.NewIdentityPoint().SetBytes(A[:])
	if err != nil {
		return false
	}

	prefix0 := hashPrefix(0)
	h, err := hashReduced(prefix0[:], R, A[:], M)
	if err != nil {
		return false
	}

	sB := edwards25519.NewIdentityPoint().ScalarBaseMult(sScalar)
	hA := edwards25519.NewIdentityPoint().ScalarMult(h, APoint)
	diff := edwards25519.NewIdentityPoint().Subtract(sB, hA)

	return bytes.Equal(diff.Bytes(), Rpoint.Bytes())
}
