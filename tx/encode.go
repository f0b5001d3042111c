package tx

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// body is the canonical encodable view of a transaction: the fields that are
// fixed at construction time. Lifecycle state, timestamps, and witnesses are
// excluded so the unsigned encoding is stable for the transaction's lifetime.
type body struct {
	Kind     Kind            `json:"kind"`
	Inputs   []Input         `json:"inputs"`
	Outputs  []Output        `json:"outputs"`
	Fee      uint64          `json:"fee"`
	TTL      uint64          `json:"ttl"`
	Metadata *Metadata       `json:"metadata,omitempty"`
	Policy   *MultisigPolicy `json:"policy,omitempty"`
}

// signedBody is the audit encoding retained after signing: the unsigned body
// plus the witnesses present at encoding time.
type signedBody struct {
	Body      json.RawMessage `json:"body"`
	Witnesses []Witness       `json:"witnesses"`
}

// EncodeBody returns the canonical unsigned body encoding. Token maps encode
// with sorted keys, so the encoding is deterministic for a given transaction.
func (t *Transaction) EncodeBody() ([]byte, error) {
	b, err := json.Marshal(body{
		Kind:     t.Kind,
		Inputs:   t.Inputs,
		Outputs:  t.Outputs,
		Fee:      t.Fee,
		TTL:      t.TTL,
		Metadata: t.Metadata,
		Policy:   t.Policy,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncode, err)
	}
	return b, nil
}

// EncodeSigned returns the body encoding wrapped with the current witnesses.
func (t *Transaction) EncodeSigned() ([]byte, error) {
	raw := t.RawBody
	if len(raw) == 0 {
		var err error
		if raw, err = t.EncodeBody(); err != nil {
			return nil, err
		}
	}
	b, err := json.Marshal(signedBody{Body: raw, Witnesses: t.Witnesses})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncode, err)
	}
	return b, nil
}

// DecodeBody reconstructs the construction-time fields of a transaction from
// an unsigned body encoding. Lifecycle state is reset to Pending.
func DecodeBody(data []byte) (*Transaction, error) {
	var b body
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return &Transaction{
		Kind:     b.Kind,
		Status:   Pending,
		Inputs:   b.Inputs,
		Outputs:  b.Outputs,
		Fee:      b.Fee,
		TTL:      b.TTL,
		Metadata: b.Metadata,
		Policy:   b.Policy,
		RawBody:  append([]byte(nil), data...),
	}, nil
}

// NewTxID derives a transaction id from the encoded body and a random salt.
// The salt keeps ids unique even for byte-identical bodies built in the same
// instant; the id is assigned once at construction and never changes.
func NewTxID(encodedBody []byte) (string, error) {
	var salt [8]byte
	if _, err := rand.Read(salt[:]); err != nil {
		return "", fmt.Errorf("%w: %w", ErrEntropy, err)
	}
	h, err := blake2b.New256(nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrEncode, err)
	}
	h.Write(encodedBody)
	h.Write(salt[:])
	return hex.EncodeToString(h.Sum(nil)), nil
}
