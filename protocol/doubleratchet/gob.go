package doubleratchet

import (
	"bytes"
	"encoding/gob"
)

// GobEncode serializes a session's state for persistence (e.g. the chat
// client's Redis-backed save/load). The utils implementation is not
// persisted — it carries no state of its own and is rebuilt on decode.
func (s *Session) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s.state); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GobDecode restores a session previously serialized with GobEncode.
func (s *Session) GobDecode(data []byte) error {
	var state State
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&state); err != nil {
		return err
	}
	s.state = &state
	s.utils = newDoubleRatchetUtils()
	return nil
}
