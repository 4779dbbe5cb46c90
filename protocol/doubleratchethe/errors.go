package doubleratchethe

import "errors"

var (
	ErrInvalidSecretLength = errors.New("invalid secret length")
	ErrInvalidTag          = errors.New("invalid tag")
	ErrInvalidHeader       = errors.New("invalid header encoding")
	ErrHeaderDecryptFailed = errors.New("header could not be decrypted with any known header key")
	ErrSkippingTooManyKeys = errors.New("skipping too many message keys")
	ErrNoReceivingChain    = errors.New("no receiving chain established yet")
)
