package chain

import "errors"

var (
	// ErrConnectionFailed indicates the client could not reach the node.
	ErrConnectionFailed = errors.New("chain: connection failed")

	// ErrInvalidResponse indicates the node returned a malformed or
	// unexpected response.
	ErrInvalidResponse = errors.New("chain: invalid response")

	// ErrBroadcastRejected indicates the node declined the submitted
	// transaction.
	ErrBroadcastRejected = errors.New("chain: broadcast rejected")

	// ErrTxNotFound indicates the node has no record of the transaction.
	ErrTxNotFound = errors.New("chain: transaction not found")

	// ErrNoEndpoint indicates no RPC endpoint could be resolved for the
	// requested network.
	ErrNoEndpoint = errors.New("chain: no RPC endpoint configured")
)
