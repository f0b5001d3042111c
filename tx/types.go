// Package tx defines the transaction data model shared by the engine: UTXOs,
// inputs, outputs, metadata, and the Transaction aggregate, together with the
// pure UTXO selection and fee estimation functions that operate on them.
//
// Everything in this package is side-effect free. Addresses are opaque string
// identifiers; amounts are base-unit uint64 values; native tokens are carried
// as asset-id keyed amounts alongside the base value of an output.
package tx

import (
	"fmt"
	"time"
)

// UTXO is an unspent transaction output. Its identity is (TxID, OutputIndex);
// it is immutable once observed and disappears from the UTXO set when a
// transaction spending it confirms.
type UTXO struct {
	TxID        string            `json:"txid"`
	OutputIndex uint32            `json:"output_index"`
	Address     string            `json:"address"`
	Value       uint64            `json:"value"` // base units
	Tokens      map[string]uint64 `json:"tokens,omitempty"`
	DatumHash   string            `json:"datum_hash,omitempty"`
}

// Outpoint returns the canonical "txid:index" identity string.
func (u UTXO) Outpoint() string {
	return fmt.Sprintf("%s:%d", u.TxID, u.OutputIndex)
}

// Input references a UTXO being spent. The UTXO snapshot is copied at
// selection time so total computation never re-queries the store.
type Input struct {
	TxID        string `json:"txid"`
	OutputIndex uint32 `json:"output_index"`
	UTXO        UTXO   `json:"utxo"`
}

// Output is a destination for value within a transaction.
type Output struct {
	Address   string            `json:"address"`
	Value     uint64            `json:"value"`
	Tokens    map[string]uint64 `json:"tokens,omitempty"`
	Datum     string            `json:"datum,omitempty"`
	ScriptRef string            `json:"script_ref,omitempty"`
}

// Metadata is free-form labeled data attached to a transaction. It
// contributes to the serialized size and therefore to the fee.
type Metadata struct {
	Labels map[string]string `json:"labels,omitempty"`
	JSON   string            `json:"json,omitempty"`
	Binary []byte            `json:"binary,omitempty"`
}

// Size returns the byte length the metadata contributes to the size model.
func (m *Metadata) Size() int {
	if m == nil {
		return 0
	}
	n := len(m.JSON) + len(m.Binary)
	for k, v := range m.Labels {
		n += len(k) + len(v)
	}
	return n
}

// Witness is a signature plus the identity of the signer that produced it.
type Witness struct {
	// SignerKey is the hex-encoded compressed public key of the signer.
	SignerKey string `json:"signer_key"`

	// Signature holds the DER-encoded signature bytes over the
	// transaction body.
	Signature []byte `json:"signature"`
}

// Kind identifies the intent a transaction was built for.
type Kind int

const (
	Payment Kind = iota
	TokenTransfer
	MetadataOnly
	ContractCall
	Multisig
)

// String returns the human-readable kind name.
func (k Kind) String() string {
	switch k {
	case Payment:
		return "payment"
	case TokenTransfer:
		return "token_transfer"
	case MetadataOnly:
		return "metadata"
	case ContractCall:
		return "contract_call"
	case Multisig:
		return "multisig"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Status is a transaction's lifecycle state.
type Status int

const (
	Pending Status = iota
	Submitted
	Confirmed
	Failed
	Cancelled
)

// String returns the human-readable status name.
func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Submitted:
		return "submitted"
	case Confirmed:
		return "confirmed"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Terminal reports whether s is a terminal state. Terminal transactions are
// immutable and retained only for history and statistics.
func (s Status) Terminal() bool {
	return s == Confirmed || s == Failed || s == Cancelled
}

// MultisigPolicy names the signer set and the signature threshold a
// multisig transaction must meet before it may be submitted.
type MultisigPolicy struct {
	// Signers holds the hex-encoded public keys allowed to witness the
	// transaction.
	Signers []string `json:"signers"`

	// Required is the number of distinct member witnesses needed.
	Required uint32 `json:"required"`
}

// Member reports whether key belongs to the signer set.
func (p *MultisigPolicy) Member(key string) bool {
	for _, s := range p.Signers {
		if s == key {
			return true
		}
	}
	return false
}

// Transaction is the aggregate root tracked through the lifecycle
// Pending -> Submitted -> {Confirmed, Failed} (or Pending -> Cancelled).
//
// For a well-formed built transaction the conservation invariant holds:
// the input base values equal the output base values plus the fee, and for
// every asset id the input token totals equal the output token totals.
type Transaction struct {
	ID     string `json:"id"`
	Kind   Kind   `json:"kind"`
	Status Status `json:"status"`

	Inputs  []Input  `json:"inputs"`
	Outputs []Output `json:"outputs"`
	Fee     uint64   `json:"fee"`
	TTL     uint64   `json:"ttl"` // absolute expiry, unix seconds

	Metadata  *Metadata       `json:"metadata,omitempty"`
	Witnesses []Witness       `json:"witnesses,omitempty"`
	Policy    *MultisigPolicy `json:"policy,omitempty"`

	// RawBody is the unsigned body encoding; SignedBody additionally
	// carries the witnesses. Both are retained for audit.
	RawBody    []byte `json:"raw_body,omitempty"`
	SignedBody []byte `json:"signed_body,omitempty"`

	// NodeHash is the hash assigned by the ledger node at submission.
	NodeHash string `json:"node_hash,omitempty"`

	CreatedAt   time.Time `json:"created_at"`
	SubmittedAt time.Time `json:"submitted_at,omitzero"`
	ConfirmedAt time.Time `json:"confirmed_at,omitzero"`

	// Context is an opaque caller-supplied tag identifying the actor the
	// transaction was built for.
	Context string `json:"context,omitempty"`

	// Err records the failure reason verbatim once the transaction fails.
	Err string `json:"error,omitempty"`
}

// TotalInput returns the sum of the input base values.
func (t *Transaction) TotalInput() uint64 {
	var sum uint64
	for _, in := range t.Inputs {
		sum += in.UTXO.Value
	}
	return sum
}

// TotalOutput returns the sum of the output base values.
func (t *Transaction) TotalOutput() uint64 {
	var sum uint64
	for _, out := range t.Outputs {
		sum += out.Value
	}
	return sum
}

// InputTokens returns the per-asset totals carried by the inputs.
func (t *Transaction) InputTokens() map[string]uint64 {
	totals := make(map[string]uint64)
	for _, in := range t.Inputs {
		for asset, amount := range in.UTXO.Tokens {
			totals[asset] += amount
		}
	}
	return totals
}

// OutputTokens returns the per-asset totals carried by the outputs.
func (t *Transaction) OutputTokens() map[string]uint64 {
	totals := make(map[string]uint64)
	for _, out := range t.Outputs {
		for asset, amount := range out.Tokens {
			totals[asset] += amount
		}
	}
	return totals
}

// VerifyBalance checks the conservation invariant and returns a descriptive
// error on the first violation found.
func (t *Transaction) VerifyBalance() error {
	in, out := t.TotalInput(), t.TotalOutput()
	if in != out+t.Fee {
		return fmt.Errorf("%w: inputs %d != outputs %d + fee %d",
			ErrUnbalanced, in, out, t.Fee)
	}
	inTok, outTok := t.InputTokens(), t.OutputTokens()
	for asset, amount := range inTok {
		if outTok[asset] != amount {
			return fmt.Errorf("%w: asset %q inputs %d != outputs %d",
				ErrUnbalanced, asset, amount, outTok[asset])
		}
	}
	for asset, amount := range outTok {
		if inTok[asset] != amount {
			return fmt.Errorf("%w: asset %q inputs %d != outputs %d",
				ErrUnbalanced, asset, inTok[asset], amount)
		}
	}
	return nil
}

// Clone returns a deep copy. Readers of the transaction table receive clones
// so a concurrent lifecycle transition can never be observed half-applied.
func (t *Transaction) Clone() *Transaction {
	c := *t
	c.Inputs = make([]Input, len(t.Inputs))
	for i, in := range t.Inputs {
		in.UTXO.Tokens = cloneTokens(in.UTXO.Tokens)
		c.Inputs[i] = in
	}
	c.Outputs = make([]Output, len(t.Outputs))
	for i, out := range t.Outputs {
		out.Tokens = cloneTokens(out.Tokens)
		c.Outputs[i] = out
	}
	if t.Metadata != nil {
		m := Metadata{JSON: t.Metadata.JSON}
		if t.Metadata.Labels != nil {
			m.Labels = make(map[string]string, len(t.Metadata.Labels))
			for k, v := range t.Metadata.Labels {
				m.Labels[k] = v
			}
		}
		m.Binary = append([]byte(nil), t.Metadata.Binary...)
		c.Metadata = &m
	}
	c.Witnesses = make([]Witness, len(t.Witnesses))
	for i, w := range t.Witnesses {
		w.Signature = append([]byte(nil), w.Signature...)
		c.Witnesses[i] = w
	}
	if t.Policy != nil {
		p := MultisigPolicy{
			Signers:  append([]string(nil), t.Policy.Signers...),
			Required: t.Policy.Required,
		}
		c.Policy = &p
	}
	c.RawBody = append([]byte(nil), t.RawBody...)
	c.SignedBody = append([]byte(nil), t.SignedBody...)
	return &c
}

func cloneTokens(tokens map[string]uint64) map[string]uint64 {
	if tokens == nil {
		return nil
	}
	c := make(map[string]uint64, len(tokens))
	for k, v := range tokens {
		c[k] = v
	}
	return c
}
