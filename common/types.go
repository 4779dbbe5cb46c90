package common

import (
	"minimal-signal/crypto/dh25519"
	"minimal-signal/protocol/doubleratchet"
)

// MessageBundle struct for sending/receiving JSON
type MessageBundle struct {
	From      string               `json:"from" validate:"required"`
	To        string               `json:"to" validate:"required"`
	Message   []byte               `json:"message" validate:"required"`
	Header    doubleratchet.Header `json:"header" validate:"required"`
	AD        []byte               `json:"ad" validate:"required"`
	Handshake *X3DHHandshakeBundle `json:"handshake,omitempty"`
}

// X3DHHandshakeBundle is sent in Alice's first message, carrying the fields
// Bob needs to recover the X3DH shared secret she derived.
type X3DHHandshakeBundle struct {
	EphPubKey     dh25519.PublicKey  `json:"eph_pub_key" validate:"required"`
	OneTimePubKey *dh25519.PublicKey `json:"one_time_pub_key" validate:"required"`
}
