package tx

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"sort"
)

// Strategy selects the order in which candidate UTXOs are considered.
type Strategy int

const (
	// LargestFirst considers candidates by descending base value.
	LargestFirst Strategy = iota

	// SmallestFirst considers candidates by ascending base value.
	SmallestFirst

	// Random shuffles candidates uniformly using a cryptographically
	// sound source. Non-deterministic, used to reduce chain
	// fingerprinting of the wallet's selection behavior.
	Random

	// OptimalFee minimizes the resulting input count for the target.
	// Fewer, larger inputs produce a smaller transaction and therefore a
	// lower fee, so this is implemented as LargestFirst.
	OptimalFee
)

// String returns the human-readable strategy name.
func (s Strategy) String() string {
	switch s {
	case LargestFirst:
		return "largest_first"
	case SmallestFirst:
		return "smallest_first"
	case Random:
		return "random"
	case OptimalFee:
		return "optimal_fee"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// Select accumulates UTXOs from available, in strategy order, until the
// accumulated base value reaches target AND the accumulated token amounts
// cover every entry of requiredTokens. It appends each visited candidate to
// the result and stops at the first candidate that satisfies both conditions.
//
// If the candidate list is exhausted without satisfying the conditions, the
// full list is returned without error; callers detect that case with
// Sufficient and must treat it as insufficient funds.
//
// A zero target with no required tokens still selects one UTXO when any is
// available, so fee-only constructions always have an input to spend.
//
// Select has no side effects. It is deterministic for every strategy except
// Random: ties in base value are broken by outpoint identity.
func Select(available []UTXO, target uint64, requiredTokens map[string]uint64, strategy Strategy) ([]UTXO, error) {
	if len(available) == 0 {
		return nil, nil
	}

	candidates := make([]UTXO, len(available))
	copy(candidates, available)

	switch strategy {
	case LargestFirst, OptimalFee:
		sort.Slice(candidates, func(i, j int) bool {
			if candidates[i].Value != candidates[j].Value {
				return candidates[i].Value > candidates[j].Value
			}
			return candidates[i].Outpoint() < candidates[j].Outpoint()
		})
	case SmallestFirst:
		sort.Slice(candidates, func(i, j int) bool {
			if candidates[i].Value != candidates[j].Value {
				return candidates[i].Value < candidates[j].Value
			}
			return candidates[i].Outpoint() < candidates[j].Outpoint()
		})
	case Random:
		if err := shuffle(candidates); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownStrategy, int(strategy))
	}

	var (
		selected    []UTXO
		accumulated uint64
		tokens      = make(map[string]uint64)
	)
	for _, u := range candidates {
		selected = append(selected, u)
		accumulated += u.Value
		for asset, amount := range u.Tokens {
			tokens[asset] += amount
		}
		if accumulated >= target && tokensCovered(tokens, requiredTokens) {
			break
		}
	}
	return selected, nil
}

// Sufficient reports whether selected covers target and requiredTokens.
func Sufficient(selected []UTXO, target uint64, requiredTokens map[string]uint64) bool {
	var accumulated uint64
	tokens := make(map[string]uint64)
	for _, u := range selected {
		accumulated += u.Value
		for asset, amount := range u.Tokens {
			tokens[asset] += amount
		}
	}
	return accumulated >= target && tokensCovered(tokens, requiredTokens)
}

func tokensCovered(have, want map[string]uint64) bool {
	for asset, amount := range want {
		if have[asset] < amount {
			return false
		}
	}
	return true
}

// shuffle performs a Fisher-Yates shuffle driven by crypto/rand.
func shuffle(utxos []UTXO) error {
	for i := len(utxos) - 1; i > 0; i-- {
		j, err := cryptoIntn(i + 1)
		if err != nil {
			return err
		}
		utxos[i], utxos[j] = utxos[j], utxos[i]
	}
	return nil
}

// cryptoIntn returns a uniform random int in [0, n) from crypto/rand.
func cryptoIntn(n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("%w: invalid bound %d", ErrEntropy, n)
	}
	max := uint64(n)
	// Rejection sampling to avoid modulo bias.
	limit := (^uint64(0) / max) * max
	var buf [8]byte
	for {
		if _, err := rand.Read(buf[:]); err != nil {
			return 0, fmt.Errorf("%w: %w", ErrEntropy, err)
		}
		v := binary.BigEndian.Uint64(buf[:])
		if v < limit {
			return int(v % max), nil
		}
	}
}
