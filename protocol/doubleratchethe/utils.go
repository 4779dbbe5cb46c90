package doubleratchethe

import (
	hmac2 "crypto/hmac"

	"minimal-signal/crypto"
	"minimal-signal/crypto/aes256"
	"minimal-signal/crypto/dh25519"
	"minimal-signal/crypto/hkdf"
	"minimal-signal/crypto/hmac"
)

var (
	// HKDFInfoKDFRKHE shares KDF_RK's info string: KDF_RK_HE is KDF_RK with
	// an extra header key carved off the expanded output, not a separate
	// derivation.
	HKDFInfoKDFRKHE = []byte("app-specific-secret-key")
	HKDFInfoEncrypt = []byte("app-specific-encryption-key")
	HKDFInfoHeader  = []byte("app-specific-header-encryption-key")

	// HKDFSaltEncrypt is ENCRYPT's fixed 80-byte zero salt.
	HKDFSaltEncrypt = make([]byte, 80)
)

type doubleRatchetUtils interface {
	generateDH() (*dh25519.Pair, error)
	dh(privKey dh25519.PrivateKey, pubKey dh25519.PublicKey) (*RatchetKey, error)

	// kdfRkHe is KDF_RK_HE: like KDF_RK but additionally returns the next
	// header key for the chain being rotated into.
	kdfRkHe(rk RatchetKey, dhOut RatchetKey) (rootKey *RatchetKey, chainKey *RatchetKey, nextHeaderKey *HeaderKey, err error)

	kdfCk(ck RatchetKey) (chainKey *RatchetKey, messageKey *MsgKey, err error)

	encrypt(mk MsgKey, plaintext []byte, associatedData []byte) (ciphertext []byte, err error)
	decrypt(mk MsgKey, ciphertext []byte, associatedData []byte) (plaintext []byte, err error)

	// hencrypt/hdecrypt implement HENCRYPT/HDECRYPT: unauthenticated
	// AES-256-CBC of the header bytes under a header key. The header is
	// covered by the message's own authentication tag once both are
	// concatenated as associated data, so it needs no MAC of its own.
	hencrypt(hk HeaderKey, header PlaintextHeader) (EncryptedHeader, error)
	hdecrypt(hk HeaderKey, encHeader EncryptedHeader) (*PlaintextHeader, error)
}

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

// kdfRkHe implements KDF_RK_HE: HKDF-SHA512 keyed by the DH output, salted
// with the current root key, info="app-specific-secret-key" (same as
// KDF_RK), expanded to 96 bytes and split into (rk', ck, next header key).
func (dr *doubleRatchetUtilsImpl) kdfRkHe(rk RatchetKey, dhOut RatchetKey) (*RatchetKey, *RatchetKey, *HeaderKey, error) {
	buffer := make([]byte, 96)
	if n, err := hkdf.KDF(crypto.DefaultHashFunc, dhOut[:], rk[:], HKDFInfoKDFRKHE, buffer); err != nil {
		return nil, nil, nil, err
	} else if n != 96 {
		return nil, nil, nil, ErrInvalidSecretLength
	}
	var rootKey32, chainKey32 [32]byte
	var nhk32 [32]byte
	copy(rootKey32[:], buffer[:32])
	copy(chainKey32[:], buffer[32:64])
	copy(nhk32[:], buffer[64:96])
	return (*RatchetKey)(&rootKey32), (*RatchetKey)(&chainKey32), (*HeaderKey)(&nhk32), nil
}

func (dr *doubleRatchetUtilsImpl) kdfCk(ck RatchetKey) (*RatchetKey, *MsgKey, error) {
	messageKey := hmac.Hash(crypto.DefaultHashFunc, ck[:], []byte{0x01})
	chainKey := hmac.Hash(crypto.DefaultHashFunc, ck[:], []byte{0x02})
	if len(messageKey) < 32 || len(chainKey) < 32 {
		return nil, nil, ErrInvalidSecretLength
	}
	var chainKey32, messageKey32 [32]byte
	copy(chainKey32[:], chainKey[:32])
	copy(messageKey32[:], messageKey[:32])
	return (*RatchetKey)(&chainKey32), (*MsgKey)(&messageKey32), nil
}

func (dr *doubleRatchetUtilsImpl) encrypt(mk MsgKey, plaintext []byte, associatedData []byte) ([]byte, error) {
	key := make([]byte, 80)
	if n, err := hkdf.KDF(crypto.DefaultHashFunc, mk[:], HKDFSaltEncrypt, HKDFInfoEncrypt, key); err != nil {
		return nil, err
	} else if n != 80 {
		return nil, ErrInvalidSecretLength
	}

	var encKey, authKey [32]byte
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

	var encKey, authKey [32]byte
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

// hencrypt implements HENCRYPT: HKDF-SHA512(hk,
// info="app-specific-header-encryption-key", len 48) -> enc_key(32) ||
// iv(16), AES-256-CBC over the marshaled header. No separate tag: the
// header ciphertext is folded into the message's associated data and so is
// covered by the message's own authentication tag.
func (dr *doubleRatchetUtilsImpl) hencrypt(hk HeaderKey, header PlaintextHeader) (EncryptedHeader, error) {
	key := make([]byte, 48)
	if n, err := hkdf.KDF(crypto.DefaultHashFunc, hk[:], nil, HKDFInfoHeader, key); err != nil {
		return nil, err
	} else if n != 48 {
		return nil, ErrInvalidSecretLength
	}
	var encKey [32]byte
	var iv [16]byte
	copy(encKey[:], key[:32])
	copy(iv[:], key[32:])

	ct, err := aes256.Encrypt(header.Marshal(), encKey, iv)
	if err != nil {
		return nil, err
	}
	return EncryptedHeader(ct), nil
}

func (dr *doubleRatchetUtilsImpl) hdecrypt(hk HeaderKey, encHeader EncryptedHeader) (*PlaintextHeader, error) {
	key := make([]byte, 48)
	if n, err := hkdf.KDF(crypto.DefaultHashFunc, hk[:], nil, HKDFInfoHeader, key); err != nil {
		return nil, err
	} else if n != 48 {
		return nil, ErrInvalidSecretLength
	}
	var encKey [32]byte
	var iv [16]byte
	copy(encKey[:], key[:32])
	copy(iv[:], key[32:])

	plain, err := aes256.Decrypt(encHeader, encKey, iv)
	if err != nil {
		return nil, ErrHeaderDecryptFailed
	}
	header, err := UnmarshalPlaintextHeader(plain)
	if err != nil {
		return nil, ErrHeaderDecryptFailed
	}
	return &header, nil
}
