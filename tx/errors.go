package tx

import "errors"

var (
	// ErrUnknownStrategy indicates an unrecognized selection strategy value.
	ErrUnknownStrategy = errors.New("tx: unknown selection strategy")

	// ErrUnbalanced indicates the conservation invariant does not hold.
	ErrUnbalanced = errors.New("tx: value not conserved")

	// ErrEncode indicates the transaction body could not be encoded.
	ErrEncode = errors.New("tx: encode failed")

	// ErrDecode indicates a transaction body could not be decoded.
	ErrDecode = errors.New("tx: decode failed")

	// ErrEntropy indicates the system entropy source failed.
	ErrEntropy = errors.New("tx: entropy source failed")
)
