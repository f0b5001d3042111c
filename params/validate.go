package params

// Validate checks that all parameter values are within acceptable ranges
// and returns the first error encountered, or nil if valid.
//
// MinFeeA may be zero (a purely size-proportional fee schedule is legal),
// but the per-byte term, the per-item costs, the size ceiling, and the
// dust threshold must all be positive.
func Validate(p FeeParameters) error {
	if p.MinFeeB == 0 {
		return ErrZeroPerByteFee
	}
	if p.MaxTxSize == 0 {
		return ErrZeroMaxTxSize
	}
	if p.MinUTXOValue == 0 {
		return ErrZeroMinUTXO
	}
	if p.BaseOverhead == 0 || p.InputCost == 0 || p.OutputCost == 0 || p.WitnessCost == 0 {
		return ErrZeroItemCost
	}
	return nil
}
