package chain

import (
	"context"

	"github.com/utxoforge/libledger-go/tx"
)

// MockClient is a test double for Client. All function fields must be set
// before the corresponding method is called.
type MockClient struct {
	GetUTXOsFn    func(ctx context.Context, address string) ([]tx.UTXO, error)
	SubmitTxFn    func(ctx context.Context, signedTx []byte) (string, error)
	IsConfirmedFn func(ctx context.Context, txHash string) (bool, error)
}

// Compile-time interface check.
var _ Client = (*MockClient)(nil)

func (m *MockClient) GetUTXOs(ctx context.Context, address string) ([]tx.UTXO, error) {
	return m.GetUTXOsFn(ctx, address)
}

func (m *MockClient) SubmitTx(ctx context.Context, signedTx []byte) (string, error) {
	return m.SubmitTxFn(ctx, signedTx)
}

func (m *MockClient) IsConfirmed(ctx context.Context, txHash string) (bool, error) {
	return m.IsConfirmedFn(ctx, txHash)
}
