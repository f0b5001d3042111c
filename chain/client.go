// Package chain defines the ledger node client the engine consumes: the UTXO
// set for an address, transaction submission, and confirmation status. The
// engine depends only on the Client interface; the JSON-RPC implementation in
// this package is one way to satisfy it.
package chain

import (
	"context"

	"github.com/utxoforge/libledger-go/tx"
)

// Client is the narrow node surface the engine needs. Implementations must
// be safe for concurrent use.
type Client interface {
	// GetUTXOs returns the current unspent outputs owned by address.
	GetUTXOs(ctx context.Context, address string) ([]tx.UTXO, error)

	// SubmitTx submits a signed transaction encoding to the network and
	// returns the node-assigned transaction hash. A rejection is returned
	// as an error wrapping ErrBroadcastRejected with the node's reason.
	SubmitTx(ctx context.Context, signedTx []byte) (string, error)

	// IsConfirmed reports whether the transaction with the given hash is
	// final on the ledger.
	IsConfirmed(ctx context.Context, txHash string) (bool, error)
}
