package params

import "errors"

var (
	// ErrZeroPerByteFee indicates the per-byte fee coefficient is zero,
	// which would make fees independent of transaction size.
	ErrZeroPerByteFee = errors.New("params: per-byte fee coefficient must be positive")

	// ErrZeroMaxTxSize indicates the maximum transaction size is zero.
	ErrZeroMaxTxSize = errors.New("params: max transaction size must be positive")

	// ErrZeroMinUTXO indicates the minimum UTXO value is zero, which would
	// disable dust protection entirely.
	ErrZeroMinUTXO = errors.New("params: minimum UTXO value must be positive")

	// ErrZeroItemCost indicates one of the per-item size costs is zero.
	ErrZeroItemCost = errors.New("params: per-item size costs must be positive")
)
