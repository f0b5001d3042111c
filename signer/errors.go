package signer

import "errors"

var (
	// ErrInvalidKey indicates the key material could not be parsed.
	ErrInvalidKey = errors.New("signer: invalid key material")

	// ErrUnknownKey indicates no key is registered under the handle.
	ErrUnknownKey = errors.New("signer: unknown key handle")

	// ErrSigningFailed indicates signature production failed.
	ErrSigningFailed = errors.New("signer: signing failed")

	// ErrInvalidWitness indicates a witness failed verification.
	ErrInvalidWitness = errors.New("signer: invalid witness")
)
