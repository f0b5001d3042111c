package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/utxoforge/libledger-go/chain"
	"github.com/utxoforge/libledger-go/tx"
)

// Submit hands a Pending transaction to the ledger node. On acceptance the
// state transitions to Submitted; on rejection it transitions to Failed with
// the node's reason recorded verbatim. A connection failure leaves the
// transaction Pending, since the node never saw it. Submit itself never
// retries: retry policy is the caller's decision.
//
// A transaction must carry at least one witness (and, for multisig, meet its
// policy threshold) unless the engine allows unsigned submission.
func (e *Engine) Submit(ctx context.Context, txID string) (tx.Status, error) {
	e.submitMu.Lock()
	defer e.submitMu.Unlock()

	t, err := e.table.get(txID)
	if err != nil {
		return 0, err
	}
	switch {
	case t.Status.Terminal():
		return t.Status, fmt.Errorf("%w: submit on %s transaction",
			ErrInvalidStateTransition, t.Status)
	case t.Status != tx.Pending:
		return t.Status, fmt.Errorf("%w: submit on %s transaction",
			ErrInvalidStateTransition, t.Status)
	}

	if !e.opts.AllowUnsignedSubmit {
		if len(t.Witnesses) == 0 {
			return t.Status, ErrUnsignedTransaction
		}
		if t.Policy != nil && countMemberWitnesses(t) < t.Policy.Required {
			return t.Status, fmt.Errorf("%w: have %d of %d member witnesses",
				ErrMultisigIncomplete, countMemberWitnesses(t), t.Policy.Required)
		}
	}

	payload := t.SignedBody
	if len(payload) == 0 {
		payload = t.RawBody
	}
	hash, submitErr := e.client.SubmitTx(ctx, payload)

	if errors.Is(submitErr, chain.ErrConnectionFailed) {
		// The node was never reached, so the transaction was not
		// rejected. It stays Pending and the caller may retry.
		log.Warnf("submission of %s did not reach the node: %v", txID, submitErr)
		return tx.Pending, submitErr
	}
	if submitErr != nil {
		updated, err := e.table.update(txID, func(rec *tx.Transaction) error {
			if rec.Status != tx.Pending {
				return fmt.Errorf("%w: transaction no longer pending",
					ErrInvalidStateTransition)
			}
			rec.Status = tx.Failed
			rec.Err = submitErr.Error()
			return nil
		})
		if err != nil {
			return updated.Status, err
		}
		e.stats.recordFailed()
		e.finishTerminal(updated, false)
		log.Warnf("submission of %s rejected: %v", txID, submitErr)
		return tx.Failed, fmt.Errorf("%w: %w", ErrSubmissionRejected, submitErr)
	}

	updated, err := e.table.update(txID, func(rec *tx.Transaction) error {
		if rec.Status != tx.Pending {
			return fmt.Errorf("%w: transaction no longer pending",
				ErrInvalidStateTransition)
		}
		rec.Status = tx.Submitted
		rec.NodeHash = hash
		rec.SubmittedAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		return updated.Status, err
	}
	e.stats.recordSubmitted()
	log.Infof("submitted transaction %s (node hash %s)", txID, hash)
	return tx.Submitted, nil
}

// PollStatus asks the node whether a Submitted transaction is now final and
// transitions it to Confirmed when it is. Polling a transaction in any other
// state is a no-op returning the current state, so polling is idempotent.
func (e *Engine) PollStatus(ctx context.Context, txID string) (tx.Status, error) {
	t, err := e.table.get(txID)
	if err != nil {
		return 0, err
	}
	if t.Status != tx.Submitted {
		return t.Status, nil
	}

	hash := t.NodeHash
	if hash == "" {
		hash = t.ID
	}
	confirmed, err := e.client.IsConfirmed(ctx, hash)
	if err != nil {
		// Leave state unchanged; the caller may poll again.
		return t.Status, err
	}
	if !confirmed {
		return tx.Submitted, nil
	}

	// Only the poller that performs the transition runs the one-shot side
	// effects; a racing poller sees the record already Confirmed.
	var transitioned bool
	updated, err := e.table.update(txID, func(rec *tx.Transaction) error {
		if rec.Status != tx.Submitted {
			// Another poller already transitioned it.
			return nil
		}
		rec.Status = tx.Confirmed
		rec.ConfirmedAt = time.Now().UTC()
		transitioned = true
		return nil
	})
	if err != nil {
		return updated.Status, err
	}
	if transitioned {
		latency := updated.ConfirmedAt.Sub(updated.SubmittedAt)
		e.stats.recordConfirmed(latency, updated.Fee, updated.TotalOutput())
		e.spenderUTXOsChanged(updated)
		e.finishTerminal(updated, true)
		log.Infof("transaction %s confirmed after %s", txID, latency)
	}
	return updated.Status, nil
}

// WaitForConfirmation polls at the engine's poll interval until the
// transaction reaches a terminal state, the timeout elapses, or ctx is
// cancelled. On timeout the transaction state is left unchanged -- it may
// still confirm later -- and ErrConfirmationTimeout is returned alongside
// the last observed state so callers can distinguish "still pending" from
// terminal outcomes.
func (e *Engine) WaitForConfirmation(ctx context.Context, txID string, timeout time.Duration) (tx.Status, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	ticker := time.NewTicker(e.opts.PollInterval)
	defer ticker.Stop()

	// Poll immediately to avoid the initial ticker delay.
	status, err := e.PollStatus(ctx, txID)
	if err != nil && !isTransient(err) {
		return status, err
	}
	if status.Terminal() {
		return status, nil
	}

	for {
		select {
		case <-ctx.Done():
			return status, ctx.Err()

		case <-deadline.C:
			log.Warnf("confirmation wait for %s timed out after %s", txID, timeout)
			return status, fmt.Errorf("%w: %s after %s", ErrConfirmationTimeout, txID, timeout)

		case <-ticker.C:
			status, err = e.PollStatus(ctx, txID)
			if err != nil && !isTransient(err) {
				return status, err
			}
			if status.Terminal() {
				return status, nil
			}
		}
	}
}

// Cancel transitions a Pending transaction to Cancelled. A transaction
// already handed to the network cannot be locally cancelled, and terminal
// transactions are immutable; both cases return ErrInvalidStateTransition
// with the state unchanged.
func (e *Engine) Cancel(txID string) (tx.Status, error) {
	updated, err := e.table.update(txID, func(rec *tx.Transaction) error {
		if rec.Status != tx.Pending {
			return fmt.Errorf("%w: cancel on %s transaction",
				ErrInvalidStateTransition, rec.Status)
		}
		rec.Status = tx.Cancelled
		return nil
	})
	if err != nil {
		if updated != nil {
			return updated.Status, err
		}
		return 0, err
	}
	e.stats.recordCancelled()
	e.finishTerminal(updated, false)
	log.Infof("cancelled transaction %s", txID)
	return tx.Cancelled, nil
}

// finishTerminal archives a terminal transaction and applies the retention
// policy, then fires the confirmation callback for Confirmed/Failed.
func (e *Engine) finishTerminal(t *tx.Transaction, confirmed bool) {
	if e.archive != nil {
		if err := e.archive.put(t); err != nil {
			log.Errorf("archiving transaction %s: %v", t.ID, err)
		} else if !e.opts.RetainTerminal {
			e.table.remove(t.ID)
		}
	}
	if e.opts.OnConfirmation != nil && t.Status != tx.Cancelled {
		e.opts.OnConfirmation(t.ID, confirmed)
	}
}

// spenderUTXOsChanged invalidates the cached UTXO sets of every address that
// funded the transaction; their outputs are spent once it confirms.
func (e *Engine) spenderUTXOsChanged(t *tx.Transaction) {
	seen := make(map[string]bool)
	for _, in := range t.Inputs {
		if addr := in.UTXO.Address; addr != "" && !seen[addr] {
			seen[addr] = true
			e.utxos.invalidate(addr)
		}
	}
}

// isTransient reports whether a poll error should keep the wait loop alive
// rather than abort it. Node unavailability is transient; an unknown
// transaction is not.
func isTransient(err error) bool {
	return !errors.Is(err, ErrUnknownTransaction)
}
