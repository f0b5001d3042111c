package tx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utxoforge/libledger-go/params"
)

func TestEstimateFeeLinearModel(t *testing.T) {
	p := params.Default()

	// size = 200 + 2*150 + 2*100 + 2*100 + 50 = 950
	size := EstimateSize(p, 2, 2, 50)
	assert.Equal(t, uint64(950), size)

	fee := EstimateFee(p, 2, 2, 50)
	assert.Equal(t, p.MinFeeA+p.MinFeeB*950, fee)
}

func TestEstimateFeeReproducible(t *testing.T) {
	p := params.Default()
	first := EstimateFee(p, 3, 2, 128)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, EstimateFee(p, 3, 2, 128))
	}
}

func TestEstimateFeeMonotonic(t *testing.T) {
	p := params.Default()

	base := EstimateFee(p, 1, 1, 0)
	assert.LessOrEqual(t, base, EstimateFee(p, 2, 1, 0), "more inputs must not lower the fee")
	assert.LessOrEqual(t, base, EstimateFee(p, 1, 2, 0), "more outputs must not lower the fee")
	assert.LessOrEqual(t, base, EstimateFee(p, 1, 1, 1), "more metadata must not lower the fee")

	// Monotonic across a grid of shapes.
	for i := 1; i < 5; i++ {
		for o := 1; o < 5; o++ {
			for m := 0; m < 200; m += 50 {
				assert.LessOrEqual(t,
					EstimateFee(p, i, o, m),
					EstimateFee(p, i+1, o+1, m+1))
			}
		}
	}
}

func TestCalculateFeeDerivesShape(t *testing.T) {
	p := params.Default()
	tr := &Transaction{
		Inputs:   []Input{{TxID: "a"}, {TxID: "b"}},
		Outputs:  []Output{{Address: "addr_test1dest", Value: 1}},
		Metadata: &Metadata{JSON: `{"k":"v"}`},
	}
	require.Equal(t, EstimateFee(p, 2, 1, tr.Metadata.Size()), CalculateFee(p, tr))
}

func TestCalculateFeeNilMetadata(t *testing.T) {
	p := params.Default()
	tr := &Transaction{Inputs: []Input{{TxID: "a"}}, Outputs: []Output{{Value: 1}}}
	assert.Equal(t, EstimateFee(p, 1, 1, 0), CalculateFee(p, tr))
}

func TestEstimateFeeUsesLatestParameters(t *testing.T) {
	p := params.Default()
	before := EstimateFee(p, 1, 1, 0)

	p.MinFeeB *= 2
	after := EstimateFee(p, 1, 1, 0)
	assert.Greater(t, after, before)
}
