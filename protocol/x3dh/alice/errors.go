package alice

import "errors"

var ErrInvalidSignature = errors.New("x3dh: bob's prekey signature is invalid")
