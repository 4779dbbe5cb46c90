package doubleratchet

import (
	hmac2 "crypto/hmac"

	"minimal-signal/crypto"
	"minimal-signal/crypto/aes256"
	"minimal-signal/crypto/dh25519"
	"minimal-signal/crypto/hkdf"
	"minimal-signal/crypto/hmac"
)

var (
	// HKDF info strings, one per derivation, matching the spec's named
	// constants exactly so independent implementations interoperate.
	HKDFInfoKDFRK   = []byte("app-specific-secret-key")
	HKDFInfoEncrypt = []byte("app-specific-encryption-key")

	// HKDFSaltEncrypt is ENCRYPT's fixed 80-byte zero salt (the length of
	// the expanded key material, not HKDF's hash-length default).
	HKDFSaltEncrypt = make([]byte, 80)
)

// doubleRatchetUtils is the interface defined in
// https://signal.org/docs/specifications/doubleratchet/#external-functions
type doubleRatchetUtils interface {
	// generateDH returns a new Diffie-Hellman key pair.
	generateDH() (*dh25519.Pair, error)

	// dh returns the output from the Diffie-Hellman calculation.
	dh(privKey dh25519.PrivateKey, pubKey dh25519.PublicKey) (*RatchetKey, error)

	// kdfRk returns a pair (32-byte root key, 32-byte chain key) as the
	// output of applying a KDF keyed by a 32-byte root key rk to a
	// Diffie-Hellman output dh_out.
	kdfRk(rk RatchetKey, dhOut RatchetKey) (rootKey *RatchetKey, chainKey *RatchetKey, err error)

	// kdfCk returns a pair (32-byte chain key, 32-byte message key) as the
	// output of applying a KDF keyed by a 32-byte chain key ck to some
	// constant.
	kdfCk(ck RatchetKey) (chainKey *RatchetKey, messageKey *MsgKey, err error)

	// encrypt returns the AEAD encryption of plaintext with message key mk.
	encrypt(mk MsgKey, plaintext []byte, associatedData []byte) (ciphertext []byte, err error)

	// decrypt returns the AEAD decryption of ciphertext with message key mk.
	decrypt(mk MsgKey, ciphertext []byte, associatedData []byte) (plaintext []byte, err error)
}

// doubleRatchetUtilsImpl implements the doubleRatchetUtils interface.
// Defined in https://signal.org/docs/specifications/doubleratchet/#recommended-cryptographic-algorithms
type doubleRatchetUtilsImpl struct{}

func newDoubleRatchetUtils() doubleRatchetUtils {
	return &doubleRatchetUtilsImpl{}
}

func (dr *doubleRatchetUtilsImpl) generateDH() (*dh25519.Pair, error) {
	return dh25519.GenerateDH()
}

func (dr *doubleRatchetUtilsImpl) dh(privKey dh25519.PrivateKey, pubKey dh25519.PublicKey) (*RatchetKey, error) {
	secret, err := dh25519.GetSharedSecret(privKey, pubKey)
	if err != nil {
		return nil, err
	}
	if len(secret) != 32 {
		return nil, ErrInvalidSecretLength
	}
	var secret32 [32]byte
	copy(secret32[:], secret)
	return (*RatchetKey)(&secret32), nil
}

// kdfRk implements KDF_RK: HKDF-SHA512 keyed by the DH output, salted with
// the current root key, info="app-specific-secret-key", split into (rk', ck).
func (dr *doubleRatchetUtilsImpl) kdfRk(rk RatchetKey, dhOut RatchetKey) (*RatchetKey, *RatchetKey, error) {
	buffer := make([]byte, 64)
	if n, err := hkdf.KDF(crypto.DefaultHashFunc, dhOut[:], rk[:], HKDFInfoKDFRK, buffer); err != nil {
		return nil, nil, err
	} else if n != 64 {
		return nil, nil, ErrInvalidSecretLength
	}
	var rootKey32 [32]byte
	var chainKey32 [32]byte
	copy(rootKey32[:], buffer[:32])
	copy(chainKey32[:], buffer[32:])
	return (*RatchetKey)(&rootKey32), (*RatchetKey)(&chainKey32), nil
}

// kdfCk implements KDF_CK: HMAC-SHA512(ck, 0x01) -> message key,
// HMAC-SHA512(ck, 0x02) -> next chain key.
func (dr *doubleRatchetUtilsImpl) kdfCk(ck RatchetKey) (*RatchetKey, *MsgKey, error) {
	messageKey := hmac.Hash(crypto.DefaultHashFunc, ck[:], []byte{0x01})
	chainKey := hmac.Hash(crypto.DefaultHashFunc, ck[:], []byte{0x02})
	if len(messageKey) < 32 || len(chainKey) < 32 {
		return nil, nil, ErrInvalidSecretLength
	}
	var chainKey32 [32]byte
	var messageKey32 [32]byte
	copy(chainKey32[:], chainKey[:32])
	copy(messageKey32[:], messageKey[:32])
	return (*RatchetKey)(&chainKey32), (*MsgKey)(&messageKey32), nil
}

// encrypt implements ENCRYPT: HKDF-SHA512(mk, salt=80 zero bytes,
// info="app-specific-encryption-key") -> enc_key(32) || auth_key(32) ||
// iv(16); AES-256-CBC, then an HMAC-SHA512 tag over associatedData||
// ciphertext appended to the ciphertext.
func (dr *doubleRatchetUtilsImpl) encrypt(mk MsgKey, plaintext []byte, associatedData []byte) ([]byte, error) {
	key := make([]byte, 80)
	if n, err := hkdf.KDF(crypto.DefaultHashFunc, mk[:], HKDFSaltEncrypt, HKDFInfoEncrypt, key); err != nil {
		return nil, err
	} else if n != 80 {
		return nil, ErrInvalidSecretLength
	}

	var encKey [32]byte
	var authKey [32]byte
	var iv [16]byte
	copy(encKey[:], key[:32])
	copy(authKey[:], key[32:64])
	copy(iv[:], key[64:])

	ciphertext, err := aes256.Encrypt(plaintext, encKey, iv)
	if err != nil {
		return nil, err
	}

	tag := hmac.Hash(crypto.DefaultHashFunc, authKey[:], append(associatedData, ciphertext...))
	return append(ciphertext, tag...), nil
}

func (dr *doubleRatchetUtilsImpl) decrypt(mk MsgKey, ciphertext []byte, associatedData []byte) ([]byte, error) {
	if len(ciphertext) < crypto.DefaultHashSize {
		return nil, ErrInvalidTag
	}
	body := ciphertext[:len(ciphertext)-crypto.DefaultHashSize]
	tag := ciphertext[len(ciphertext)-crypto.DefaultHashSize:]

	key := make([]byte, 80)
	if n, err := hkdf.KDF(crypto.DefaultHashFunc, mk[:], HKDFSaltEncrypt, HKDFInfoEncrypt, key); err != nil {
		return nil, err
	} else if n != 80 {
		return nil, ErrInvalidSecretLength
	}

	var encKey [32]byte
	var authKey [32]byte
	var iv [16]byte
	copy(encKey[:], key[:32])
	copy(authKey[:], key[32:64])
	copy(iv[:], key[64:])

	expectedTag := hmac.Hash(crypto.DefaultHashFunc, authKey[:], append(associatedData, body...))
	if !hmac2.Equal(tag, expectedTag) {
		return nil, ErrInvalidTag
	}

	return aes256.Decrypt(body, encKey, iv)
}
