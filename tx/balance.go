package tx

// WalletBalance is the spendable position of an address, derived by folding
// its UTXO set. It is computed on demand, never stored.
type WalletBalance struct {
	Total     uint64            `json:"total"`
	Available uint64            `json:"available"`
	Tokens    map[string]uint64 `json:"tokens,omitempty"`
	UTXOs     []UTXO            `json:"utxos"`
}

// BalanceOf folds utxos into a WalletBalance for address. UTXOs owned by
// other addresses are skipped.
func BalanceOf(address string, utxos []UTXO) WalletBalance {
	b := WalletBalance{Tokens: make(map[string]uint64)}
	for _, u := range utxos {
		if u.Address != address {
			continue
		}
		b.Total += u.Value
		b.Available += u.Value
		for asset, amount := range u.Tokens {
			b.Tokens[asset] += amount
		}
		b.UTXOs = append(b.UTXOs, u)
	}
	return b
}
