package crypto

import "crypto/sha512"

var (
	// DefaultHashFunc backs every HKDF/HMAC invocation in the ratchet and
	// handshake layers. The Double Ratchet spec only requires a 256-bit
	// hash; this repo follows the X3DH/XEdDSA write-up and standardizes on
	// SHA-512 everywhere so a single buffer split (32/32, or 32/32/16)
	// serves both.
	DefaultHashFunc = sha512.New
)

const (
	// DefaultHashSize is the output size, in bytes, of DefaultHashFunc.
	DefaultHashSize = sha512.Size
)
