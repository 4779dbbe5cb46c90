// Package doubleratchethe implements the Double Ratchet algorithm with
// header encryption: message headers (the sender's ratchet public key, and
// the send/skip counters) are themselves symmetrically encrypted under a
// rotating header key, so a passive observer of the transport cannot link
// messages to a ratchet epoch or count them, only the endpoints can.
package doubleratchethe

import (
	"minimal-signal/crypto/dh25519"
)

// MaxSkip bounds how many message keys a single chain will derive and store
// ahead of the next expected index before giving up.
const MaxSkip = 32

// State holds the full header-encrypted Double Ratchet state for one peer
// relationship.
type State struct {
	Dhs dh25519.Pair
	Dhr *dh25519.PublicKey

	Rk  RatchetKey
	Cks *RatchetKey
	Ckr *RatchetKey

	Ns MsgIndex
	Nr MsgIndex
	Pn MsgIndex

	HKs  *HeaderKey
	HKr  *HeaderKey
	NHKs *HeaderKey
	NHKr *HeaderKey

	MkSkipped map[MkSkippedKey]*MsgKey
}

func (s *State) clone() *State {
	cp := *s
	if s.Dhr != nil {
		v := *s.Dhr
		cp.Dhr = &v
	}
	if s.Cks != nil {
		v := *s.Cks
		cp.Cks = &v
	}
	if s.Ckr != nil {
		v := *s.Ckr
		cp.Ckr = &v
	}
	if s.HKs != nil {
		v := *s.HKs
		cp.HKs = &v
	}
	if s.HKr != nil {
		v := *s.HKr
		cp.HKr = &v
	}
	if s.NHKs != nil {
		v := *s.NHKs
		cp.NHKs = &v
	}
	if s.NHKr != nil {
		v := *s.NHKr
		cp.NHKr = &v
	}
	cp.MkSkipped = make(map[MkSkippedKey]*MsgKey, len(s.MkSkipped))
	for k, v := range s.MkSkipped {
		mk := *v
		cp.MkSkipped[k] = &mk
	}
	return &cp
}

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
	zero := func(p *RatchetKey) {
		if p != nil {
			for i := range p {
				p[i] = 0
			}
		}
	}
	zero(s.Cks)
	zero(s.Ckr)
	for _, mk := range s.MkSkipped {
		for i := range mk {
			mk[i] = 0
		}
	}
}

// Session is a header-encrypted Double Ratchet session bound to one peer.
type Session struct {
	state *State
	utils doubleRatchetUtils
}

// InitAlice initializes the handshake initiator's session. sharedHKa is the
// header key Alice will use to encrypt her own headers until she next
// ratchets; sharedNHKb is the header key she expects Bob's first ratcheted
// reply to use. Both are supplied by the caller alongside SK; the X3DH
// packages in this repository derive SK only, not header keys.
func InitAlice(sk RatchetKey, peerRatchetPub dh25519.PublicKey, sharedHKa, sharedNHKb HeaderKey) (*Session, error) {
	utils := newDoubleRatchetUtils()

	dhs, err := utils.generateDH()
	if err != nil {
		return nil, err
	}

	hka := sharedHKa
	nhkb := sharedNHKb
	state := &State{
		Dhs:       *dhs,
		Dhr:       &peerRatchetPub,
		Rk:        sk,
		HKs:       &hka,
		NHKr:      &nhkb,
		MkSkipped: make(map[MkSkippedKey]*MsgKey),
	}

	if err := dhRatchetSendChain(state, utils); err != nil {
		return nil, err
	}

	return &Session{state: state, utils: utils}, nil
}

// InitBob initializes the handshake responder's session with the same
// shared header keys Alice was given. Bob has no current receiving header
// key yet — sharedHKa is only anticipated (NHKr), since Alice's first
// message necessarily carries the first DH ratchet epoch Bob will ever see.
// sharedNHKb is what Bob promotes to his own sending header key on his
// first ratchet step.
func InitBob(sk RatchetKey, selfPair dh25519.Pair, sharedHKa, sharedNHKb HeaderKey) *Session {
	hka := sharedHKa
	nhkb := sharedNHKb
	return &Session{
		state: &State{
			Dhs:       selfPair,
			Rk:        sk,
			NHKr:      &hka,
			NHKs:      &nhkb,
			MkSkipped: make(map[MkSkippedKey]*MsgKey),
		},
		utils: newDoubleRatchetUtils(),
	}
}

// Encrypt ratchets the sending chain forward by one message, returning the
// encrypted header and ciphertext to send.
func (s *Session) Encrypt(plaintext, associatedData []byte, advanceDHRatchet bool) (EncryptedHeader, []byte, error) {
	if advanceDHRatchet || s.state.Cks == nil {
		if err := s.ratchetSend(); err != nil {
			return nil, nil, err
		}
	}

	ck, mk, err := s.utils.kdfCk(*s.state.Cks)
	if err != nil {
		return nil, nil, err
	}

	header := PlaintextHeader{
		RatchetPub: s.state.Dhs.Pub,
		Pn:         s.state.Pn,
		N:          s.state.Ns,
	}
	encHeader, err := s.utils.hencrypt(*s.state.HKs, header)
	if err != nil {
		return nil, nil, err
	}

	fullAD := append(append([]byte{}, associatedData...), encHeader...)
	ciphertext, err := s.utils.encrypt(*mk, plaintext, fullAD)
	if err != nil {
		return nil, nil, err
	}

	s.state.Cks = ck
	s.state.Ns++
	return encHeader, ciphertext, nil
}

// Decrypt processes an incoming message. It first tries every header key it
// already knows (skipped entries, then the current receiving header key,
// then the anticipated next receiving header key) to recover the header
// without leaking ratchet epoch information to anyone else. The session is
// only mutated if decryption succeeds in full.
func (s *Session) Decrypt(encHeader EncryptedHeader, ciphertext, associatedData []byte) ([]byte, error) {
	tmp := s.state.clone()
	fullAD := append(append([]byte{}, associatedData...), encHeader...)

	if plaintext, err := tryDecryptWithSkippedHeader(tmp, encHeader, ciphertext, fullAD, s.utils); err != nil {
		return nil, err
	} else if plaintext != nil {
		s.state.wipe()
		s.state = tmp
		return plaintext, nil
	}

	header, isNewEpoch, err := decryptHeader(tmp, encHeader, s.utils)
	if err != nil {
		return nil, err
	}

	if isNewEpoch {
		var currentHKr HeaderKey
		if tmp.HKr != nil {
			currentHKr = *tmp.HKr
		}
		if err := skipMessageKeys(tmp, currentHKr, tmp.Nr, header.Pn, s.utils); err != nil {
			return nil, err
		}
		tmp.HKr = tmp.NHKr
		if err := dhRatchetReceiveChain(tmp, header.RatchetPub, s.utils); err != nil {
			return nil, err
		}
		if err := dhRatchetGenerate(tmp, s.utils); err != nil {
			return nil, err
		}
		tmp.HKs = tmp.NHKs
		if err := dhRatchetSendChain(tmp, s.utils); err != nil {
			return nil, err
		}
	}

	if err := skipMessageKeys(tmp, *tmp.HKr, tmp.Nr, header.N, s.utils); err != nil {
		return nil, err
	}

	ck, mk, err := s.utils.kdfCk(*tmp.Ckr)
	if err != nil {
		return nil, err
	}

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
	if s.state.NHKs != nil {
		s.state.HKs = s.state.NHKs
	}
	return dhRatchetSendChain(s.state, s.utils)
}

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

func dhRatchetSendChain(state *State, utils doubleRatchetUtils) error {
	if state.Dhr == nil {
		return ErrNoReceivingChain
	}
	dhOut, err := utils.dh(state.Dhs.Priv, *state.Dhr)
	if err != nil {
		return err
	}
	rk, ck, nhk, err := utils.kdfRkHe(state.Rk, *dhOut)
	if err != nil {
		return err
	}
	state.Rk = *rk
	state.Cks = ck
	state.NHKs = nhk
	return nil
}

func dhRatchetReceiveChain(state *State, peerRatchetPub dh25519.PublicKey, utils doubleRatchetUtils) error {
	state.Dhr = &peerRatchetPub
	state.Nr = 0

	dhOut, err := utils.dh(state.Dhs.Priv, *state.Dhr)
	if err != nil {
		return err
	}
	rk, ck, nhk, err := utils.kdfRkHe(state.Rk, *dhOut)
	if err != nil {
		return err
	}
	state.Rk = *rk
	state.Ckr = ck
	state.NHKr = nhk
	return nil
}

// decryptHeader tries the current receiving header key, then the
// anticipated next one, reporting whether the header indicates a new DH
// ratchet epoch.
func decryptHeader(state *State, encHeader EncryptedHeader, utils doubleRatchetUtils) (*PlaintextHeader, bool, error) {
	if state.HKr != nil {
		if header, err := utils.hdecrypt(*state.HKr, encHeader); err == nil {
			return header, false, nil
		}
	}
	if state.NHKr != nil {
		if header, err := utils.hdecrypt(*state.NHKr, encHeader); err == nil {
			return header, true, nil
		}
	}
	return nil, false, ErrHeaderDecryptFailed
}

func skipMessageKeys(state *State, hk HeaderKey, currentN, until MsgIndex, utils doubleRatchetUtils) error {
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
		key := MkSkippedKey{Hk: hk, N: state.Nr}
		state.MkSkipped[key] = mk
		state.Ckr = ck
		state.Nr++
	}
	return nil
}

// tryDecryptWithSkippedHeader trials every header key recorded against
// skipped message keys, returning (nil, nil) when none matches.
func tryDecryptWithSkippedHeader(state *State, encHeader EncryptedHeader, ciphertext, fullAD []byte, utils doubleRatchetUtils) ([]byte, error) {
	tried := make(map[HeaderKey]bool)
	for key := range state.MkSkipped {
		if tried[key.Hk] {
			continue
		}
		tried[key.Hk] = true

		header, err := utils.hdecrypt(key.Hk, encHeader)
		if err != nil {
			continue
		}
		lookup := MkSkippedKey{Hk: key.Hk, N: header.N}
		mk, ok := state.MkSkipped[lookup]
		if !ok {
			continue
		}
		plaintext, err := utils.decrypt(*mk, ciphertext, fullAD)
		if err != nil {
			return nil, err
		}
		delete(state.MkSkipped, lookup)
		return plaintext, nil
	}
	return nil, nil
}
