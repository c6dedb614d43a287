package verifier

import "errors"

var errInvalidKeySize = errors.New("wallet address is not a 32-byte public key")
