package engine

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utxoforge/libledger-go/chain"
	"github.com/utxoforge/libledger-go/tx"
)

func TestSubmitTransitionsToSubmitted(t *testing.T) {
	var submitted [][]byte
	client := walletClient(t, defaultWallet(t))
	client.SubmitTxFn = func(_ context.Context, signedTx []byte) (string, error) {
		submitted = append(submitted, signedTx)
		return "nodehash-1", nil
	}
	e := newTestEngine(t, client, Options{})

	built := buildSignedPayment(t, e, 2_000_000)

	status, err := e.Submit(context.Background(), built.ID)
	require.NoError(t, err)
	assert.Equal(t, tx.Submitted, status)

	got, err := e.Transaction(built.ID)
	require.NoError(t, err)
	assert.Equal(t, tx.Submitted, got.Status)
	assert.Equal(t, "nodehash-1", got.NodeHash)
	assert.False(t, got.SubmittedAt.IsZero())

	// The signed encoding is what goes over the wire.
	require.Len(t, submitted, 1)
	assert.Equal(t, got.SignedBody, submitted[0])

	assert.Equal(t, uint64(1), e.Statistics().TotalTransactions)
}

func TestSubmitUnsignedRefused(t *testing.T) {
	e := newTestEngine(t, walletClient(t, defaultWallet(t)), Options{})

	built, err := e.BuildPayment(context.Background(), PaymentIntent{
		From: testSender, To: testReceiver, Amount: 2_000_000,
	})
	require.NoError(t, err)

	_, err = e.Submit(context.Background(), built.ID)
	require.ErrorIs(t, err, ErrUnsignedTransaction)

	status, err := e.Status(built.ID)
	require.NoError(t, err)
	assert.Equal(t, tx.Pending, status)
}

func TestSubmitUnsignedAllowed(t *testing.T) {
	client := walletClient(t, defaultWallet(t))
	e := newTestEngine(t, client, Options{AllowUnsignedSubmit: true})

	built, err := e.BuildPayment(context.Background(), PaymentIntent{
		From: testSender, To: testReceiver, Amount: 2_000_000,
	})
	require.NoError(t, err)

	status, err := e.Submit(context.Background(), built.ID)
	require.NoError(t, err)
	assert.Equal(t, tx.Submitted, status)
}

func TestSubmitRejectedThenCancelRefused(t *testing.T) {
	client := walletClient(t, defaultWallet(t))
	client.SubmitTxFn = func(context.Context, []byte) (string, error) {
		return "", errors.New("mempool full")
	}
	e := newTestEngine(t, client, Options{})

	built := buildSignedPayment(t, e, 2_000_000)

	status, err := e.Submit(context.Background(), built.ID)
	require.ErrorIs(t, err, ErrSubmissionRejected)
	assert.Equal(t, tx.Failed, status)

	got, err := e.Transaction(built.ID)
	require.NoError(t, err)
	assert.Equal(t, tx.Failed, got.Status)
	assert.Equal(t, "mempool full", got.Err)

	// Failed is terminal: no local cancellation afterwards.
	_, err = e.Cancel(built.ID)
	require.ErrorIs(t, err, ErrInvalidStateTransition)

	// Nor a second submission.
	_, err = e.Submit(context.Background(), built.ID)
	require.ErrorIs(t, err, ErrInvalidStateTransition)

	assert.Equal(t, uint64(1), e.Statistics().FailedTransactions)
}

func TestSubmitConnectionFailureKeepsPending(t *testing.T) {
	client := walletClient(t, defaultWallet(t))
	reachable := false
	client.SubmitTxFn = func(context.Context, []byte) (string, error) {
		if !reachable {
			return "", fmt.Errorf("%w: dial tcp: connection refused", chain.ErrConnectionFailed)
		}
		return "nodehash", nil
	}
	e := newTestEngine(t, client, Options{})

	built := buildSignedPayment(t, e, 2_000_000)

	// The node was never reached: not a rejection, so no Failed state.
	status, err := e.Submit(context.Background(), built.ID)
	require.ErrorIs(t, err, chain.ErrConnectionFailed)
	assert.NotErrorIs(t, err, ErrSubmissionRejected)
	assert.Equal(t, tx.Pending, status)
	assert.Equal(t, uint64(0), e.Statistics().FailedTransactions)

	// A retry once the node is back succeeds.
	reachable = true
	status, err = e.Submit(context.Background(), built.ID)
	require.NoError(t, err)
	assert.Equal(t, tx.Submitted, status)
}

func TestSubmitUnknownTransaction(t *testing.T) {
	e := newTestEngine(t, walletClient(t, defaultWallet(t)), Options{})

	_, err := e.Submit(context.Background(), "no-such-id")
	require.ErrorIs(t, err, ErrUnknownTransaction)
}

func TestPollStatusConfirms(t *testing.T) {
	var confirmedID atomic.Value
	client := walletClient(t, defaultWallet(t))
	client.IsConfirmedFn = func(_ context.Context, txHash string) (bool, error) {
		return txHash == "nodehash", nil
	}
	e := newTestEngine(t, client, Options{
		OnConfirmation: func(txID string, confirmed bool) {
			if confirmed {
				confirmedID.Store(txID)
			}
		},
	})

	built := buildSignedPayment(t, e, 2_000_000)
	_, err := e.Submit(context.Background(), built.ID)
	require.NoError(t, err)

	status, err := e.PollStatus(context.Background(), built.ID)
	require.NoError(t, err)
	assert.Equal(t, tx.Confirmed, status)

	got, err := e.Transaction(built.ID)
	require.NoError(t, err)
	assert.Equal(t, tx.Confirmed, got.Status)
	assert.False(t, got.ConfirmedAt.IsZero())

	assert.Equal(t, built.ID, confirmedID.Load())

	stats := e.Statistics()
	assert.Equal(t, uint64(1), stats.ConfirmedTransactions)
	assert.Equal(t, built.Fee, stats.TotalFeesPaid)
	assert.Equal(t, built.TotalOutput(), stats.TotalValueMoved)
	assert.Equal(t, uint64(0), stats.PendingTransactions)
}

func TestPollStatusNotYetConfirmed(t *testing.T) {
	e := newTestEngine(t, walletClient(t, defaultWallet(t)), Options{})

	built := buildSignedPayment(t, e, 2_000_000)
	_, err := e.Submit(context.Background(), built.ID)
	require.NoError(t, err)

	status, err := e.PollStatus(context.Background(), built.ID)
	require.NoError(t, err)
	assert.Equal(t, tx.Submitted, status)
}

func TestPollStatusIdempotentOnTerminal(t *testing.T) {
	var polls atomic.Int32
	client := walletClient(t, defaultWallet(t))
	client.IsConfirmedFn = func(context.Context, string) (bool, error) {
		polls.Add(1)
		return true, nil
	}
	e := newTestEngine(t, client, Options{})

	built := buildSignedPayment(t, e, 2_000_000)
	_, err := e.Submit(context.Background(), built.ID)
	require.NoError(t, err)

	_, err = e.PollStatus(context.Background(), built.ID)
	require.NoError(t, err)

	// Polls after confirmation never hit the node again.
	for i := 0; i < 3; i++ {
		status, err := e.PollStatus(context.Background(), built.ID)
		require.NoError(t, err)
		assert.Equal(t, tx.Confirmed, status)
	}
	assert.Equal(t, int32(1), polls.Load())

	// Confirmed counters accumulate once.
	assert.Equal(t, uint64(1), e.Statistics().ConfirmedTransactions)
}

func TestPollStatusConcurrentPollersConfirmOnce(t *testing.T) {
	// Hold both pollers inside the node query so each observes the
	// transaction as Submitted before either transitions it.
	var inFlight sync.WaitGroup
	inFlight.Add(2)
	client := walletClient(t, defaultWallet(t))
	client.IsConfirmedFn = func(context.Context, string) (bool, error) {
		inFlight.Done()
		inFlight.Wait()
		return true, nil
	}
	var callbacks atomic.Int32
	e := newTestEngine(t, client, Options{
		OnConfirmation: func(string, bool) { callbacks.Add(1) },
	})

	built := buildSignedPayment(t, e, 2_000_000)
	_, err := e.Submit(context.Background(), built.ID)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, err := e.PollStatus(context.Background(), built.ID)
			assert.NoError(t, err)
			assert.Equal(t, tx.Confirmed, status)
		}()
	}
	wg.Wait()

	// The confirmation side effects run exactly once.
	stats := e.Statistics()
	assert.Equal(t, uint64(1), stats.ConfirmedTransactions)
	assert.Equal(t, built.Fee, stats.TotalFeesPaid)
	assert.Equal(t, built.TotalOutput(), stats.TotalValueMoved)
	assert.Equal(t, uint64(0), stats.PendingTransactions)
	assert.Equal(t, int32(1), callbacks.Load())
}

func TestPollStatusPendingIsNoOp(t *testing.T) {
	e := newTestEngine(t, walletClient(t, defaultWallet(t)), Options{})

	built, err := e.BuildPayment(context.Background(), PaymentIntent{
		From: testSender, To: testReceiver, Amount: 2_000_000,
	})
	require.NoError(t, err)

	status, err := e.PollStatus(context.Background(), built.ID)
	require.NoError(t, err)
	assert.Equal(t, tx.Pending, status)
}

func TestPollStatusNodeErrorLeavesStateUnchanged(t *testing.T) {
	client := walletClient(t, defaultWallet(t))
	client.IsConfirmedFn = func(context.Context, string) (bool, error) {
		return false, chain.ErrConnectionFailed
	}
	e := newTestEngine(t, client, Options{})

	built := buildSignedPayment(t, e, 2_000_000)
	_, err := e.Submit(context.Background(), built.ID)
	require.NoError(t, err)

	status, err := e.PollStatus(context.Background(), built.ID)
	require.ErrorIs(t, err, chain.ErrConnectionFailed)
	assert.Equal(t, tx.Submitted, status)
}

func TestConfirmationInvalidatesSpenderUTXOs(t *testing.T) {
	var fetches atomic.Int32
	client := walletClient(t, defaultWallet(t))
	inner := client.GetUTXOsFn
	client.GetUTXOsFn = func(ctx context.Context, address string) ([]tx.UTXO, error) {
		fetches.Add(1)
		return inner(ctx, address)
	}
	client.IsConfirmedFn = func(context.Context, string) (bool, error) { return true, nil }
	e := newTestEngine(t, client, Options{})

	built := buildSignedPayment(t, e, 2_000_000)
	before := fetches.Load()

	// A cached read does not hit the node.
	_, err := e.UTXOs(context.Background(), testSender)
	require.NoError(t, err)
	assert.Equal(t, before, fetches.Load())

	_, err = e.Submit(context.Background(), built.ID)
	require.NoError(t, err)
	_, err = e.PollStatus(context.Background(), built.ID)
	require.NoError(t, err)

	// Confirmation spent the sender's outputs; the next read refetches.
	_, err = e.UTXOs(context.Background(), testSender)
	require.NoError(t, err)
	assert.Equal(t, before+1, fetches.Load())
}

func TestCancelPending(t *testing.T) {
	e := newTestEngine(t, walletClient(t, defaultWallet(t)), Options{})

	built, err := e.BuildPayment(context.Background(), PaymentIntent{
		From: testSender, To: testReceiver, Amount: 2_000_000,
	})
	require.NoError(t, err)

	status, err := e.Cancel(built.ID)
	require.NoError(t, err)
	assert.Equal(t, tx.Cancelled, status)

	// Terminal states are immutable.
	_, err = e.Cancel(built.ID)
	require.ErrorIs(t, err, ErrInvalidStateTransition)
	_, err = e.Submit(context.Background(), built.ID)
	require.ErrorIs(t, err, ErrInvalidStateTransition)

	assert.Equal(t, uint64(1), e.Statistics().CancelledTransactions)
}

func TestCancelSubmittedRefused(t *testing.T) {
	e := newTestEngine(t, walletClient(t, defaultWallet(t)), Options{})

	built := buildSignedPayment(t, e, 2_000_000)
	_, err := e.Submit(context.Background(), built.ID)
	require.NoError(t, err)

	status, err := e.Cancel(built.ID)
	require.ErrorIs(t, err, ErrInvalidStateTransition)
	assert.Equal(t, tx.Submitted, status)
}

func TestWaitForConfirmationSucceeds(t *testing.T) {
	var polls atomic.Int32
	client := walletClient(t, defaultWallet(t))
	client.IsConfirmedFn = func(context.Context, string) (bool, error) {
		// Confirm on the third poll.
		return polls.Add(1) >= 3, nil
	}
	e := newTestEngine(t, client, Options{PollInterval: 5 * time.Millisecond})

	built := buildSignedPayment(t, e, 2_000_000)
	_, err := e.Submit(context.Background(), built.ID)
	require.NoError(t, err)

	status, err := e.WaitForConfirmation(context.Background(), built.ID, time.Second)
	require.NoError(t, err)
	assert.Equal(t, tx.Confirmed, status)
	assert.GreaterOrEqual(t, polls.Load(), int32(3))
}

func TestWaitForConfirmationTimesOut(t *testing.T) {
	e := newTestEngine(t, walletClient(t, defaultWallet(t)), Options{PollInterval: 5 * time.Millisecond})

	built := buildSignedPayment(t, e, 2_000_000)
	_, err := e.Submit(context.Background(), built.ID)
	require.NoError(t, err)

	status, err := e.WaitForConfirmation(context.Background(), built.ID, 30*time.Millisecond)
	require.ErrorIs(t, err, ErrConfirmationTimeout)
	assert.Equal(t, tx.Submitted, status)

	// The transaction is untouched by the timeout and may still confirm.
	got, err := e.Status(built.ID)
	require.NoError(t, err)
	assert.Equal(t, tx.Submitted, got)
}

func TestWaitForConfirmationContextCancelled(t *testing.T) {
	e := newTestEngine(t, walletClient(t, defaultWallet(t)), Options{PollInterval: 5 * time.Millisecond})

	built := buildSignedPayment(t, e, 2_000_000)
	_, err := e.Submit(context.Background(), built.ID)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.WaitForConfirmation(ctx, built.ID, time.Second)
	require.ErrorIs(t, err, context.Canceled)
}

func TestWaitForConfirmationRidesOutTransientErrors(t *testing.T) {
	var polls atomic.Int32
	client := walletClient(t, defaultWallet(t))
	client.IsConfirmedFn = func(context.Context, string) (bool, error) {
		switch polls.Add(1) {
		case 1, 2:
			return false, chain.ErrConnectionFailed
		default:
			return true, nil
		}
	}
	e := newTestEngine(t, client, Options{PollInterval: 5 * time.Millisecond})

	built := buildSignedPayment(t, e, 2_000_000)
	_, err := e.Submit(context.Background(), built.ID)
	require.NoError(t, err)

	status, err := e.WaitForConfirmation(context.Background(), built.ID, time.Second)
	require.NoError(t, err)
	assert.Equal(t, tx.Confirmed, status)
}

func TestWaitForConfirmationUnknownTransaction(t *testing.T) {
	e := newTestEngine(t, walletClient(t, defaultWallet(t)), Options{PollInterval: 5 * time.Millisecond})

	_, err := e.WaitForConfirmation(context.Background(), hex.EncodeToString([]byte("nope")), time.Second)
	require.ErrorIs(t, err, ErrUnknownTransaction)
}
