package engine

import (
	"context"
	"fmt"

	"github.com/utxoforge/libledger-go/tx"
)

// Sign produces a witness over the transaction body with the configured
// Signer and appends it. The signed encoding is recorded alongside the
// unsigned one; both are retained for audit. Only Pending transactions may
// be signed.
func (e *Engine) Sign(ctx context.Context, txID, keyHandle string) error {
	if e.signer == nil {
		return ErrNoSigner
	}

	// Read the body outside the table lock; signing may be slow (remote
	// or hardware-backed signers).
	snapshot, err := e.table.get(txID)
	if err != nil {
		return err
	}
	if snapshot.Status != tx.Pending {
		return fmt.Errorf("%w: cannot sign %s transaction", ErrInvalidStateTransition, snapshot.Status)
	}

	w, err := e.signer.Sign(ctx, snapshot.RawBody, keyHandle)
	if err != nil {
		return err
	}
	return e.attachWitness(txID, w)
}

// AddWitness appends an externally produced witness (hardware wallet, remote
// co-signer) without invoking the Signer.
func (e *Engine) AddWitness(txID string, w tx.Witness) error {
	if w.SignerKey == "" || len(w.Signature) == 0 {
		return fmt.Errorf("%w: incomplete witness", ErrInvalidIntent)
	}
	return e.attachWitness(txID, w)
}

func (e *Engine) attachWitness(txID string, w tx.Witness) error {
	_, err := e.table.update(txID, func(t *tx.Transaction) error {
		if t.Status != tx.Pending {
			return fmt.Errorf("%w: cannot witness %s transaction",
				ErrInvalidStateTransition, t.Status)
		}
		t.Witnesses = append(t.Witnesses, w)
		signed, err := t.EncodeSigned()
		if err != nil {
			t.Witnesses = t.Witnesses[:len(t.Witnesses)-1]
			return err
		}
		t.SignedBody = signed
		return nil
	})
	if err != nil {
		return err
	}
	log.Debugf("attached witness from %s to transaction %s", w.SignerKey, txID)
	return nil
}

// MultisigReady reports whether the transaction's multisig policy threshold
// is met: the number of distinct witnesses whose declared signer belongs to
// the policy's signer set has reached the required count. Duplicate
// witnesses from the same member count once.
func (e *Engine) MultisigReady(txID string) (bool, error) {
	t, err := e.table.get(txID)
	if err != nil {
		return false, err
	}
	if t.Policy == nil {
		return false, fmt.Errorf("%w: %s", ErrNotMultisig, txID)
	}
	return countMemberWitnesses(t) >= t.Policy.Required, nil
}

// countMemberWitnesses counts distinct policy-member signers among the
// attached witnesses.
func countMemberWitnesses(t *tx.Transaction) uint32 {
	seen := make(map[string]bool)
	var n uint32
	for _, w := range t.Witnesses {
		if seen[w.SignerKey] || !t.Policy.Member(w.SignerKey) {
			continue
		}
		seen[w.SignerKey] = true
		n++
	}
	return n
}
