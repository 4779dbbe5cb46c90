// Package doubleratchet implements the Double Ratchet algorithm: a per-session
// state machine combining a symmetric-key ratchet (KDF chains) with a
// Diffie-Hellman ratchet, producing forward secrecy and post-compromise
// security for each message exchanged after an X3DH (or equivalent) handshake
// establishes the initial shared secret.
package doubleratchet

import (
	"minimal-signal/crypto/dh25519"
)

// MaxSkip bounds how many message keys a single chain will derive and store
// ahead of the next expected index before giving up — a cap on memory spent
// absorbing out-of-order or dropped messages.
const MaxSkip = 32

// State holds the full Double Ratchet state for one peer relationship.
type State struct {
	Dhs dh25519.Pair
	Dhr *dh25519.PublicKey

	Rk  RatchetKey
	Cks *RatchetKey
	Ckr *RatchetKey

	Ns MsgIndex
	Nr MsgIndex
	Pn MsgIndex

	MkSkipped map[MkSkippedKey]*MsgKey
}

// clone returns a deep copy of the state, used so a ratchet step can be
// attempted and rolled back atomically on failure without corrupting the
// live session.
func (s *State) clone() *State {
	cp := *s
	if s.Dhr != nil {
		dhr := *s.Dhr
		cp.Dhr = &dhr
	}
	if s.Cks != nil {
		cks := *s.Cks
		cp.Cks = &cks
	}
	if s.Ckr != nil {
		ckr := *s.Ckr
		cp.Ckr = &ckr
	}
	cp.MkSkipped = make(map[MkSkippedKey]*MsgKey, len(s.MkSkipped))
	for k, v := range s.MkSkipped {
		mk := *v
		cp.MkSkipped[k] = &mk
	}
	return &cp
}

// wipe zeroes the key material in a discarded state so it doesn't linger in
// memory once superseded.
func (s *State) wipe() {
	if s == nil {
		return
	}
	for i := range s.Dhs.Priv {
		s.Dhs.Priv[i] = 0
	}
	for i := range s.Rk {
		s.Rk[i] = 0
	}
	if s.Cks != nil {
		for i := range s.Cks {
			s.Cks[i] = 0
		}
	}
	if s.Ckr != nil {
		for i := range s.Ckr {
			s.Ckr[i] = 0
		}
	}
	for _, mk := range s.MkSkipped {
		for i := range mk {
			mk[i] = 0
		}
	}
}

// Session is a Double Ratchet session bound to one peer.
type Session struct {
	state *State
	utils doubleRatchetUtils
}

// InitAlice initializes a session for the handshake initiator, given the
// X3DH shared secret sk and the responder's current ratchet public key.
func InitAlice(sk RatchetKey, peerRatchetPub dh25519.PublicKey) (*Session, error) {
	utils := newDoubleRatchetUtils()

	dhs, err := utils.generateDH()
	if err != nil {
		return nil, err
	}

	state := &State{
		Dhs:       *dhs,
		Dhr:       &peerRatchetPub,
		Rk:        sk,
		MkSkipped: make(map[MkSkippedKey]*MsgKey),
	}

	if err := dhRatchetSendChain(state, utils); err != nil {
		return nil, err
	}

	return &Session{state: state, utils: utils}, nil
}

// InitBob initializes a session for the handshake responder, given the X3DH
// shared secret sk and the responder's own ratchet key pair (normally its
// signed prekey).
func InitBob(sk RatchetKey, selfPair dh25519.Pair) *Session {
	return &Session{
		state: &State{
			Dhs:       selfPair,
			Rk:        sk,
			MkSkipped: make(map[MkSkippedKey]*MsgKey),
		},
		utils: newDoubleRatchetUtils(),
	}
}

// Encrypt ratchets the sending chain forward by one message, optionally
// forcing a fresh DH ratchet step first. It returns the message header and
// ciphertext to send.
func (s *Session) Encrypt(plaintext, associatedData []byte, advanceDHRatchet bool) (*Header, []byte, error) {
	if advanceDHRatchet || s.state.Cks == nil {
		if err := s.ratchetSend(); err != nil {
			return nil, nil, err
		}
	}

	ck, mk, err := s.utils.kdfCk(*s.state.Cks)
	if err != nil {
		return nil, nil, err
	}

	header := Header{
		RatchetPub: s.state.Dhs.Pub,
		Pn:         s.state.Pn,
		N:          s.state.Ns,
	}

	headerBytes, err := header.Marshal()
	if err != nil {
		return nil, nil, err
	}
	fullAD := append(append([]byte{}, associatedData...), headerBytes...)

	ciphertext, err := s.utils.encrypt(*mk, plaintext, fullAD)
	if err != nil {
		return nil, nil, err
	}

	s.state.Cks = ck
	s.state.Ns++
	return &header, ciphertext, nil
}

// Decrypt processes an incoming message, transparently handling skipped
// messages and DH ratchet steps. The session is only mutated if decryption
// succeeds in full; any failure rolls back to the pre-call state.
func (s *Session) Decrypt(header Header, ciphertext, associatedData []byte) ([]byte, error) {
	tmp := s.state.clone()

	if plaintext, err := trySkippedMessageKeys(tmp, header, ciphertext, associatedData, s.utils); err != nil {
		return nil, err
	} else if plaintext != nil {
		s.state.wipe()
		s.state = tmp
		return plaintext, nil
	}

	if tmp.Dhr == nil || !tmp.Dhr.Equals(&header.RatchetPub) {
		if err := skipMessageKeys(tmp, tmp.Nr, header.Pn, s.utils); err != nil {
			return nil, err
		}
		if err := dhRatchetReceiveChain(tmp, &header, s.utils); err != nil {
			return nil, err
		}
		if err := dhRatchetGenerate(tmp, s.utils); err != nil {
			return nil, err
		}
		if err := dhRatchetSendChain(tmp, s.utils); err != nil {
			return nil, err
		}
	}

	if err := skipMessageKeys(tmp, tmp.Nr, header.N, s.utils); err != nil {
		return nil, err
	}

	ck, mk, err := s.utils.kdfCk(*tmp.Ckr)
	if err != nil {
		return nil, err
	}

	headerBytes, err := header.Marshal()
	if err != nil {
		return nil, err
	}
	fullAD := append(append([]byte{}, associatedData...), headerBytes...)

	plaintext, err := s.utils.decrypt(*mk, ciphertext, fullAD)
	if err != nil {
		return nil, err
	}

	tmp.Ckr = ck
	tmp.Nr++

	s.state.wipe()
	s.state = tmp
	return plaintext, nil
}

func (s *Session) ratchetSend() error {
	if err := dhRatchetGenerate(s.state, s.utils); err != nil {
		return err
	}
	return dhRatchetSendChain(s.state, s.utils)
}

// dhRatchetGenerate replaces the local DH ratchet key pair, resetting the
// send-chain message counter (the previous chain's length is recorded in Pn
// for the receiver's skipped-key bookkeeping).
func dhRatchetGenerate(state *State, utils doubleRatchetUtils) error {
	dhs, err := utils.generateDH()
	if err != nil {
		return err
	}
	state.Pn = state.Ns
	state.Ns = 0
	state.Dhs = *dhs
	return nil
}

// dhRatchetSendChain derives a fresh root key and sending chain key from the
// current DH keys, per KDF_RK(RK, DH(DHs, DHr)).
func dhRatchetSendChain(state *State, utils doubleRatchetUtils) error {
	if state.Dhr == nil {
		return ErrNoReceivingChain
	}
	dhOut, err := utils.dh(state.Dhs.Priv, *state.Dhr)
	if err != nil {
		return err
	}
	rk, ck, err := utils.kdfRk(state.Rk, *dhOut)
	if err != nil {
		return err
	}
	state.Rk = *rk
	state.Cks = ck
	return nil
}

// dhRatchetReceiveChain derives a fresh root key and receiving chain key
// after adopting the peer's new ratchet public key from header.
func dhRatchetReceiveChain(state *State, header *Header, utils doubleRatchetUtils) error {
	peerPub := header.RatchetPub
	state.Dhr = &peerPub
	state.Nr = 0

	dhOut, err := utils.dh(state.Dhs.Priv, *state.Dhr)
	if err != nil {
		return err
	}
	rk, ck, err := utils.kdfRk(state.Rk, *dhOut)
	if err != nil {
		return err
	}
	state.Rk = *rk
	state.Ckr = ck
	return nil
}

// skipMessageKeys advances the receiving chain from currentN up to (but not
// including) until, storing each derived message key for later out-of-order
// delivery. Bounded by MaxSkip.
func skipMessageKeys(state *State, currentN, until MsgIndex, utils doubleRatchetUtils) error {
	if state.Ckr == nil {
		return nil
	}
	if until < currentN {
		return nil
	}
	if until-currentN > MaxSkip {
		return ErrSkippingTooManyKeys
	}
	for state.Nr < until {
		ck, mk, err := utils.kdfCk(*state.Ckr)
		if err != nil {
			return err
		}
		if state.Dhr == nil {
			return ErrNoReceivingChain
		}
		key := MkSkippedKey{Pub: *state.Dhr, N: state.Nr}
		state.MkSkipped[key] = mk
		state.Ckr = ck
		state.Nr++
	}
	return nil
}

// trySkippedMessageKeys attempts to decrypt with a previously stored skipped
// message key, returning (nil, nil) when no matching key is stored.
func trySkippedMessageKeys(state *State, header Header, ciphertext, associatedData []byte, utils doubleRatchetUtils) ([]byte, error) {
	key := MkSkippedKey{Pub: header.RatchetPub, N: header.N}
	mk, ok := state.MkSkipped[key]
	if !ok {
		return nil, nil
	}

	headerBytes, err := header.Marshal()
	if err != nil {
		return nil, err
	}
	fullAD := append(append([]byte{}, associatedData...), headerBytes...)

	plaintext, err := utils.decrypt(*mk, ciphertext, fullAD)
	if err != nil {
		return nil, err
	}
	delete(state.MkSkipped, key)
	return plaintext, nil
}
