package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/utxoforge/libledger-go/chain"
	"github.com/utxoforge/libledger-go/params"
	"github.com/utxoforge/libledger-go/tx"
)

const (
	testSender   = "addr_test1sender"
	testReceiver = "addr_test1receiver"
)

// stubSigner produces a fake but structurally valid witness whose signer key
// equals the key handle, which keeps multisig membership checks easy to
// drive in tests.
type stubSigner struct{}

func (stubSigner) Sign(_ context.Context, _ []byte, keyHandle string) (tx.Witness, error) {
	return tx.Witness{SignerKey: keyHandle, Signature: []byte("sig:" + keyHandle)}, nil
}

// failSigner always errors.
type failSigner struct{}

func (failSigner) Sign(context.Context, []byte, string) (tx.Witness, error) {
	return tx.Witness{}, fmt.Errorf("signer unavailable")
}

func testParamsSource(t *testing.T) *params.Static {
	t.Helper()
	s, err := params.NewStatic(params.Default())
	require.NoError(t, err)
	return s
}

// walletClient returns a MockClient serving a fixed UTXO set for testSender,
// accepting every submission, and reporting nothing confirmed.
func walletClient(t *testing.T, utxos []tx.UTXO) *chain.MockClient {
	t.Helper()
	return &chain.MockClient{
		GetUTXOsFn: func(_ context.Context, address string) ([]tx.UTXO, error) {
			if address == testSender {
				return utxos, nil
			}
			return nil, nil
		},
		SubmitTxFn: func(context.Context, []byte) (string, error) {
			return "nodehash", nil
		},
		IsConfirmedFn: func(context.Context, string) (bool, error) {
			return false, nil
		},
	}
}

func newTestEngine(t *testing.T, client chain.Client, opts Options) *Engine {
	t.Helper()
	e, err := New(client, stubSigner{}, testParamsSource(t), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

// defaultWallet is the two-UTXO fixture used by the payment scenarios:
// 10M and 5M base units, the smaller one carrying native tokens.
func defaultWallet(t *testing.T) []tx.UTXO {
	t.Helper()
	return []tx.UTXO{
		{TxID: "aaaa", OutputIndex: 0, Address: testSender, Value: 10_000_000},
		{TxID: "bbbb", OutputIndex: 1, Address: testSender, Value: 5_000_000,
			Tokens: map[string]uint64{"policy1.token1": 500}},
	}
}

// buildSignedPayment builds and signs a payment ready for submission.
func buildSignedPayment(t *testing.T, e *Engine, amount uint64) *tx.Transaction {
	t.Helper()
	built, err := e.BuildPayment(context.Background(), PaymentIntent{
		From: testSender, To: testReceiver, Amount: amount, Context: "device-7",
	})
	require.NoError(t, err)
	require.NoError(t, e.Sign(context.Background(), built.ID, "key-1"))
	return built
}
