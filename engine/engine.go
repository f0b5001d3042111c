// Package engine turns spend intents into fee-correct, signable transactions
// under UTXO accounting and tracks them to confirmation or failure.
//
// An Engine is constructed with explicit handles to its three collaborators:
// a chain.Client for the UTXO set, submission, and confirmation status; a
// Signer producing witnesses; and a params.Source supplying the current fee
// parameters. It keeps no global state and supports concurrent callers.
package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/utxoforge/libledger-go/chain"
	"github.com/utxoforge/libledger-go/params"
	"github.com/utxoforge/libledger-go/tx"
)

// Signer produces one witness over a transaction body per signing key.
// The key handle is opaque to the engine.
type Signer interface {
	Sign(ctx context.Context, message []byte, keyHandle string) (tx.Witness, error)
}

// DustPolicy decides what happens when a change output would fall below the
// protocol's minimum UTXO value.
type DustPolicy int

const (
	// DustToFee absorbs undersized change into the fee. The default.
	DustToFee DustPolicy = iota

	// DustReject fails the build with ErrDustChange instead.
	DustReject
)

// Options tune engine behavior. The zero value is usable.
type Options struct {
	// Strategy is the process-wide default UTXO selection strategy.
	Strategy tx.Strategy

	// TTLWindow is the validity window added to the build time to form a
	// transaction's absolute TTL. Defaults to one hour.
	TTLWindow time.Duration

	// PollInterval is the confirmation polling cadence used by
	// WaitForConfirmation. Defaults to one second.
	PollInterval time.Duration

	// DustPolicy governs undersized change. Defaults to DustToFee.
	DustPolicy DustPolicy

	// AllowUnsignedSubmit permits submitting transactions without
	// witnesses (unsigned metadata probes). Off by default.
	AllowUnsignedSubmit bool

	// ArchivePath, when non-empty, opens a bbolt archive at that path and
	// persists every transaction that reaches a terminal state.
	ArchivePath string

	// RetainTerminal keeps terminal transactions in the in-memory table
	// after archiving. Without an archive they are always retained.
	RetainTerminal bool

	// OnConfirmation, when set, is invoked after a transaction reaches
	// Confirmed (true) or Failed (false). Called outside engine locks.
	OnConfirmation func(txID string, confirmed bool)
}

const (
	defaultTTLWindow    = time.Hour
	defaultPollInterval = time.Second
)

// Engine is the transaction construction and lifecycle engine.
type Engine struct {
	client chain.Client
	signer Signer
	params params.Source
	opts   Options

	strategy atomic.Int32

	utxos   *utxoStore
	table   *txTable
	stats   *statsCollector
	archive *boltArchive

	// submitMu serializes submissions so a transaction cannot be handed to
	// the node twice by racing callers.
	submitMu sync.Mutex
}

// New constructs an Engine. client and source are required; signer may be
// nil if witnesses are only ever attached through AddWitness.
func New(client chain.Client, signer Signer, source params.Source, opts Options) (*Engine, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	if source == nil {
		return nil, ErrNilParamSource
	}
	if opts.TTLWindow <= 0 {
		opts.TTLWindow = defaultTTLWindow
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}

	e := &Engine{
		client: client,
		signer: signer,
		params: source,
		opts:   opts,
		utxos:  newUTXOStore(client),
		table:  newTxTable(),
		stats:  newStatsCollector(),
	}
	e.strategy.Store(int32(opts.Strategy))

	if opts.ArchivePath != "" {
		a, err := openBoltArchive(opts.ArchivePath)
		if err != nil {
			return nil, err
		}
		e.archive = a
	}
	return e, nil
}

// Close releases the archive, if any. The engine must not be used after
// Close.
func (e *Engine) Close() error {
	if e.archive != nil {
		return e.archive.Close()
	}
	return nil
}

// SetSelectionStrategy changes the process-wide default selection strategy.
func (e *Engine) SetSelectionStrategy(s tx.Strategy) {
	e.strategy.Store(int32(s))
}

// SelectionStrategy returns the current default selection strategy.
func (e *Engine) SelectionStrategy() tx.Strategy {
	return tx.Strategy(e.strategy.Load())
}

// UTXOs returns the known unspent outputs for address, refreshing from the
// node when the cached set is empty.
func (e *Engine) UTXOs(ctx context.Context, address string) ([]tx.UTXO, error) {
	return e.utxos.get(ctx, address)
}

// RefreshUTXOs re-fetches the UTXO set for address from the node.
// Concurrent refreshes for the same address share one network call.
func (e *Engine) RefreshUTXOs(ctx context.Context, address string) error {
	_, err := e.utxos.refresh(ctx, address)
	return err
}

// Balance folds the current UTXO set of address into a WalletBalance.
func (e *Engine) Balance(ctx context.Context, address string) (tx.WalletBalance, error) {
	utxos, err := e.utxos.get(ctx, address)
	if err != nil {
		return tx.WalletBalance{}, err
	}
	return tx.BalanceOf(address, utxos), nil
}

// Transaction returns a snapshot of the tracked transaction with the given
// id.
func (e *Engine) Transaction(txID string) (*tx.Transaction, error) {
	return e.table.get(txID)
}

// Status returns the current lifecycle state of a tracked transaction.
func (e *Engine) Status(txID string) (tx.Status, error) {
	t, err := e.table.get(txID)
	if err != nil {
		return 0, err
	}
	return t.Status, nil
}

// PendingTransactions returns snapshots of all transactions that are not yet
// terminal, ordered by creation time.
func (e *Engine) PendingTransactions() []*tx.Transaction {
	return e.table.filter(func(t *tx.Transaction) bool {
		return !t.Status.Terminal()
	})
}

// TransactionsByContext returns snapshots of all tracked transactions built
// with the given originating context tag, ordered by creation time.
func (e *Engine) TransactionsByContext(tag string) []*tx.Transaction {
	return e.table.filter(func(t *tx.Transaction) bool {
		return t.Context == tag
	})
}

// Statistics returns a consistent snapshot of the engine counters.
func (e *Engine) Statistics() Stats {
	return e.stats.snapshot()
}

// ResetStatistics zeroes all counters and running averages.
func (e *Engine) ResetStatistics() {
	e.stats.reset()
}

// ArchivedTransaction loads a terminal transaction from the archive.
func (e *Engine) ArchivedTransaction(txID string) (*tx.Transaction, error) {
	if e.archive == nil {
		return nil, ErrNoArchive
	}
	return e.archive.get(txID)
}
