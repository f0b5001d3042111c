// Package params holds the protocol-level parameters the transaction engine
// consumes: the linear fee coefficients, the per-item size costs, and the
// minimum UTXO value. Parameters are versionable at runtime through a Source,
// so a fee quote always reflects the latest published snapshot.
package params

// FeeParameters are the protocol constants driving fee computation and
// change policy. The fee for a transaction of estimated size s bytes is
// MinFeeA + MinFeeB*s.
type FeeParameters struct {
	// MinFeeA is the constant term of the linear fee formula.
	MinFeeA uint64 `json:"min_fee_a"`

	// MinFeeB is the per-byte term of the linear fee formula.
	MinFeeB uint64 `json:"min_fee_b"`

	// MaxTxSize is the maximum serialized transaction size accepted by
	// the ledger, in bytes.
	MaxTxSize uint64 `json:"max_tx_size"`

	// MinUTXOValue is the smallest base value an output may carry.
	// Change below this threshold is dust.
	MinUTXOValue uint64 `json:"min_utxo_value"`

	// BaseOverhead is the fixed structural size of an empty transaction.
	BaseOverhead uint64 `json:"base_overhead"`

	// InputCost is the serialized size contributed by one input.
	InputCost uint64 `json:"input_cost"`

	// OutputCost is the serialized size contributed by one output.
	OutputCost uint64 `json:"output_cost"`

	// WitnessCost is the serialized size contributed by one witness.
	// The size model assumes one witness per input.
	WitnessCost uint64 `json:"witness_cost"`
}

// Default returns the parameter set used when no Source override is present.
func Default() FeeParameters {
	return FeeParameters{
		MinFeeA:      155381,
		MinFeeB:      44,
		MaxTxSize:    16384,
		MinUTXOValue: 1000000,
		BaseOverhead: 200,
		InputCost:    150,
		OutputCost:   100,
		WitnessCost:  100,
	}
}
