package doubleratchethe

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"minimal-signal/crypto/dh25519"
)

func setupSessions(t *testing.T) (*Session, *Session) {
	t.Helper()

	var sk RatchetKey
	for i := range sk {
		sk[i] = byte(i + 1)
	}
	var hka, nhkb HeaderKey
	for i := range hka {
		hka[i] = byte(200 + i)
	}
	for i := range nhkb {
		nhkb[i] = byte(100 + i)
	}

	bobPair, err := dh25519.GenerateDH()
	assert.NoError(t, err)

	alice, err := InitAlice(sk, bobPair.Pub, hka, nhkb)
	assert.NoError(t, err)
	bob := InitBob(sk, *bobPair, hka, nhkb)

	return alice, bob
}

func TestHeaderEncryptedRatchetRoundTrip(t *testing.T) {
	alice, bob := setupSessions(t)
	ad := []byte("associated data")

	h1, c1, err := alice.Encrypt([]byte("hello bob"), ad, false)
	assert.NoError(t, err)
	p1, err := bob.Decrypt(h1, c1, ad)
	assert.NoError(t, err)
	assert.Equal(t, []byte("hello bob"), p1)

	// Bob's Decrypt of h1/c1 already performed a DH ratchet step (a new DH
	// epoch is detected from the header, not forced), so his first reply
	// must not force a second one — that would rotate HKs past what Alice's
	// NHKr is waiting for and desynchronize the header-key ladder.
	hb, cb, err := bob.Encrypt([]byte("hi alice"), ad, false)
	assert.NoError(t, err)
	pb, err := alice.Decrypt(hb, cb, ad)
	assert.NoError(t, err)
	assert.Equal(t, []byte("hi alice"), pb)

	h2, c2, err := alice.Encrypt([]byte("second message"), ad, true)
	assert.NoError(t, err)
	p2, err := bob.Decrypt(h2, c2, ad)
	assert.NoError(t, err)
	assert.Equal(t, []byte("second message"), p2)
}

func TestHeaderEncryptedOutOfOrderDelivery(t *testing.T) {
	alice, bob := setupSessions(t)
	ad := []byte("ooo")

	h1, c1, err := alice.Encrypt([]byte("one"), ad, false)
	assert.NoError(t, err)
	h2, c2, err := alice.Encrypt([]byte("two"), ad, false)
	assert.NoError(t, err)

	p2, err := bob.Decrypt(h2, c2, ad)
	assert.NoError(t, err)
	assert.Equal(t, []byte("two"), p2)

	p1, err := bob.Decrypt(h1, c1, ad)
	assert.NoError(t, err)
	assert.Equal(t, []byte("one"), p1)
}

func TestHeaderEncryptedTamperedCiphertextFails(t *testing.T) {
	alice, bob := setupSessions(t)
	ad := []byte("tamper")

	h1, c1, err := alice.Encrypt([]byte("hello"), ad, false)
	assert.NoError(t, err)
	c1[0] ^= 0xff

	_, err = bob.Decrypt(h1, c1, ad)
	assert.Error(t, err)
}
