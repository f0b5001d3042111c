package engine

import "errors"

var (
	// ErrInsufficientFunds indicates selection could not meet the target
	// value and/or the required token amounts. Recoverable: the caller can
	// top up, reduce the amount, or wait for new UTXOs.
	ErrInsufficientFunds = errors.New("engine: insufficient funds")

	// ErrNoUTXOs indicates the address has no known spendable outputs,
	// even after a refresh.
	ErrNoUTXOs = errors.New("engine: no UTXOs available")

	// ErrInvalidIntent indicates a malformed build request. A programming
	// error: surfaced immediately, never retried.
	ErrInvalidIntent = errors.New("engine: invalid intent")

	// ErrSubmissionRejected indicates the ledger node declined the
	// transaction. The node's reason is recorded verbatim on the
	// transaction and the state transitions to Failed.
	ErrSubmissionRejected = errors.New("engine: submission rejected")

	// ErrInvalidStateTransition indicates an illegal lifecycle transition
	// was attempted. The transaction state is left unchanged.
	ErrInvalidStateTransition = errors.New("engine: invalid state transition")

	// ErrConfirmationTimeout indicates a confirmation wait elapsed while
	// the transaction was still pending on-chain. Not terminal: the
	// transaction may yet confirm.
	ErrConfirmationTimeout = errors.New("engine: confirmation timeout")

	// ErrUnknownTransaction indicates no transaction with the given id is
	// tracked.
	ErrUnknownTransaction = errors.New("engine: unknown transaction")

	// ErrUnsignedTransaction indicates a submit was attempted with no
	// witnesses attached.
	ErrUnsignedTransaction = errors.New("engine: transaction has no witnesses")

	// ErrMultisigIncomplete indicates a multisig transaction does not yet
	// carry the required number of member witnesses.
	ErrMultisigIncomplete = errors.New("engine: multisig threshold not met")

	// ErrNotMultisig indicates a multisig-only operation was invoked on a
	// transaction without a signer policy.
	ErrNotMultisig = errors.New("engine: not a multisig transaction")

	// ErrNoSigner indicates the engine was constructed without a Signer.
	ErrNoSigner = errors.New("engine: no signer configured")

	// ErrDustChange indicates the change output would fall below the
	// protocol minimum and the engine is configured to reject rather than
	// absorb dust.
	ErrDustChange = errors.New("engine: change below minimum UTXO value")

	// ErrNoArchive indicates no archive path was configured.
	ErrNoArchive = errors.New("engine: archive not configured")

	// ErrNilClient indicates the engine was constructed without a ledger
	// node client.
	ErrNilClient = errors.New("engine: nil chain client")

	// ErrNilParamSource indicates the engine was constructed without a
	// protocol parameter source.
	ErrNilParamSource = errors.New("engine: nil parameter source")
)
