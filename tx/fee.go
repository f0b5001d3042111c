package tx

import "github.com/utxoforge/libledger-go/params"

// EstimateSize returns the structural size estimate used by the fee model:
// a fixed overhead plus per-input, per-output, and per-witness costs (one
// witness assumed per input) plus the metadata byte length.
func EstimateSize(p params.FeeParameters, numInputs, numOutputs, metadataLen int) uint64 {
	return p.BaseOverhead +
		uint64(numInputs)*p.InputCost +
		uint64(numOutputs)*p.OutputCost +
		uint64(numInputs)*p.WitnessCost +
		uint64(metadataLen)
}

// EstimateFee returns the fee in base units for a transaction with the given
// shape under the linear fee schedule fee = MinFeeA + MinFeeB*size.
//
// EstimateFee is pure: identical arguments always produce identical quotes,
// and it is monotonic in each of its shape arguments.
func EstimateFee(p params.FeeParameters, numInputs, numOutputs, metadataLen int) uint64 {
	return p.MinFeeA + p.MinFeeB*EstimateSize(p, numInputs, numOutputs, metadataLen)
}

// CalculateFee derives the shape of an already-built transaction and returns
// its fee under the current parameters.
func CalculateFee(p params.FeeParameters, t *Transaction) uint64 {
	return EstimateFee(p, len(t.Inputs), len(t.Outputs), t.Metadata.Size())
}
