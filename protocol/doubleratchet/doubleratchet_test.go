package doubleratchet

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"minimal-signal/crypto/dh25519"
)

func TestDoubleRatchet(t *testing.T) {
	type testCase struct {
		name              string
		associatedData    []byte
		aliceMessage      []byte
		bobMessage        []byte
		tamperMessage     bool
		expectDecryptFail bool
	}

	testCases := []testCase{
		{
			name:              "successful ratchet message exchange",
			associatedData:    []byte("test associated data"),
			aliceMessage:      []byte("Hello, Bob!"),
			bobMessage:        []byte("Hi, Alice!"),
			tamperMessage:     false,
			expectDecryptFail: false,
		},
		{
			name:              "decrypt failure with tampered message",
			associatedData:    []byte("test associated data"),
			aliceMessage:      []byte("Hello, Bob!"),
			bobMessage:        []byte("Hi, Alice!"),
			tamperMessage:     true,
			expectDecryptFail: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var sk RatchetKey
			for i := range sk {
				sk[i] = byte(i + 1)
			}

			bobPair, err := dh25519.GenerateDH()
			assert.NoError(t, err)

			aliceRatchet, err := InitAlice(sk, bobPair.Pub)
			assert.NoError(t, err)

			bobRatchet := InitBob(sk, *bobPair)

			header, aliceCiphertext, err := aliceRatchet.Encrypt(tc.aliceMessage, tc.associatedData, false)
			assert.NoError(t, err)

			if tc.tamperMessage {
				aliceCiphertext[0] ^= 0xff
			}

			plaintext, err := bobRatchet.Decrypt(*header, aliceCiphertext, tc.associatedData)
			if tc.expectDecryptFail {
				assert.Error(t, err, "Decryption should have failed due to tampered message")
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.aliceMessage, plaintext)

			header2, aliceCiphertext2, err := aliceRatchet.Encrypt([]byte("Second message from Alice"), tc.associatedData, false)
			assert.NoError(t, err)
			plaintext2, err := bobRatchet.Decrypt(*header2, aliceCiphertext2, tc.associatedData)
			assert.NoError(t, err)
			assert.Equal(t, []byte("Second message from Alice"), plaintext2)

			headerBob, bobCiphertext, err := bobRatchet.Encrypt(tc.bobMessage, tc.associatedData, false)
			assert.NoError(t, err)
			plaintextBob, err := aliceRatchet.Decrypt(*headerBob, bobCiphertext, tc.associatedData)
			assert.NoError(t, err)
			assert.Equal(t, tc.bobMessage, plaintextBob)

			headerAliceNoRatchet, aliceCiphertextNoRatchet, err := aliceRatchet.Encrypt([]byte("Third message without DH ratchet"), tc.associatedData, false)
			assert.NoError(t, err)
			plaintextAliceNoRatchet, err := bobRatchet.Decrypt(*headerAliceNoRatchet, aliceCiphertextNoRatchet, tc.associatedData)
			assert.NoError(t, err)
			assert.Equal(t, []byte("Third message without DH ratchet"), plaintextAliceNoRatchet)

			headerAliceRatchet, aliceCiphertextRatchet, err := aliceRatchet.Encrypt([]byte("Fourth message with DH ratchet"), tc.associatedData, true)
			assert.NoError(t, err)
			plaintextAliceRatchet, err := bobRatchet.Decrypt(*headerAliceRatchet, aliceCiphertextRatchet, tc.associatedData)
			assert.NoError(t, err)
			assert.Equal(t, []byte("Fourth message with DH ratchet"), plaintextAliceRatchet)

			headerBobRatchet, bobCiphertextRatchet, err := bobRatchet.Encrypt([]byte("Bob's second message with DH ratchet"), tc.associatedData, true)
			assert.NoError(t, err)
			plaintextBobRatchet, err := aliceRatchet.Decrypt(*headerBobRatchet, bobCiphertextRatchet, tc.associatedData)
			assert.NoError(t, err)
			assert.Equal(t, []byte("Bob's second message with DH ratchet"), plaintextBobRatchet)

			headerAliceNoRatchet2, aliceCiphertextNoRatchet2, err := aliceRatchet.Encrypt([]byte("Fifth message without DH ratchet"), tc.associatedData, false)
			assert.NoError(t, err)
			plaintextAliceNoRatchet2, err := bobRatchet.Decrypt(*headerAliceNoRatchet2, aliceCiphertextNoRatchet2, tc.associatedData)
			assert.NoError(t, err)
			assert.Equal(t, []byte("Fifth message without DH ratchet"), plaintextAliceNoRatchet2)
		})
	}
}

func TestSkippedMessagesAreDecryptableOutOfOrder(t *testing.T) {
	var sk RatchetKey
	for i := range sk {
		sk[i] = byte(i + 7)
	}

	bobPair, err := dh25519.GenerateDH()
	assert.NoError(t, err)

	alice, err := InitAlice(sk, bobPair.Pub)
	assert.NoError(t, err)
	bob := InitBob(sk, *bobPair)

	ad := []byte("out of order test")

	h1, c1, err := alice.Encrypt([]byte("one"), ad, false)
	assert.NoError(t, err)
	h2, c2, err := alice.Encrypt([]byte("two"), ad, false)
	assert.NoError(t, err)
	h3, c3, err := alice.Encrypt([]byte("three"), ad, false)
	assert.NoError(t, err)

	p3, err := bob.Decrypt(*h3, c3, ad)
	assert.NoError(t, err)
	assert.Equal(t, []byte("three"), p3)

	p1, err := bob.Decrypt(*h1, c1, ad)
	assert.NoError(t, err)
	assert.Equal(t, []byte("one"), p1)

	p2, err := bob.Decrypt(*h2, c2, ad)
	assert.NoError(t, err)
	assert.Equal(t, []byte("two"), p2)
}

func TestSkippingTooManyKeysFails(t *testing.T) {
	var sk RatchetKey
	for i := range sk {
		sk[i] = byte(i + 3)
	}

	bobPair, err := dh25519.GenerateDH()
	assert.NoError(t, err)

	alice, err := InitAlice(sk, bobPair.Pub)
	assert.NoError(t, err)
	bob := InitBob(sk, *bobPair)

	var last *Header
	var lastCt []byte
	for i := 0; i < MaxSkip+2; i++ {
		h, c, err := alice.Encrypt([]byte("msg"), nil, false)
		assert.NoError(t, err)
		last, lastCt = h, c
	}

	_, err = bob.Decrypt(*last, lastCt, nil)
	assert.ErrorIs(t, err, ErrSkippingTooManyKeys)
}

func TestDHRatchetSendAndReceiveChain(t *testing.T) {
	aliceDHPair, err := dh25519.GenerateDH()
	assert.NoError(t, err)

	bobDHPair, err := dh25519.GenerateDH()
	assert.NoError(t, err)

	var randomRootKey RatchetKey
	for i := range randomRootKey {
		randomRootKey[i] = byte(i)
	}

	utils := newDoubleRatchetUtils()

	aliceState := &State{
		Dhs:       *aliceDHPair,
		Dhr:       &bobDHPair.Pub,
		Rk:        randomRootKey,
		MkSkipped: make(map[MkSkippedKey]*MsgKey),
	}

	bobState := &State{
		Dhs:       *bobDHPair,
		Dhr:       &aliceDHPair.Pub,
		Rk:        randomRootKey,
		MkSkipped: make(map[MkSkippedKey]*MsgKey),
	}

	err = dhRatchetSendChain(aliceState, utils)
	assert.NoError(t, err)

	header := Header{
		RatchetPub: aliceState.Dhs.Pub,
	}
	err = dhRatchetReceiveChain(bobState, &header, utils)
	assert.NoError(t, err)

	assert.Equal(t, aliceState.Rk, bobState.Rk, "Root keys should match after DH ratchet")
	assert.Equal(t, aliceState.Cks, bobState.Ckr, "Alice's send chain key should match Bob's receive chain key")
	assert.Equal(t, aliceState.Dhs.Pub, *bobState.Dhr, "Bob's received public key should match Alice's new DH public key")
}
