package engine

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/utxoforge/libledger-go/params"
	"github.com/utxoforge/libledger-go/tx"
)

// PaymentIntent requests a simple base-value payment.
type PaymentIntent struct {
	From    string
	To      string
	Amount  uint64
	Context string // opaque originating-context tag
}

// TokenTransferIntent requests a native token transfer. The primary output
// carries the tokens on top of the protocol minimum base value.
type TokenTransferIntent struct {
	From    string
	To      string
	Tokens  map[string]uint64 // asset id -> amount
	Context string
}

// MetadataIntent requests a metadata-only transaction: one input, spent back
// to the sender minus the fee, carrying the metadata blob.
type MetadataIntent struct {
	From     string
	Metadata tx.Metadata
	Context  string
}

// ContractCallIntent requests a payment to a contract-identified destination,
// recording the called function and its serialized parameters as transaction
// metadata.
type ContractCallIntent struct {
	From       string
	Contract   string
	Function   string
	Parameters []string
	Amount     uint64
	Context    string
}

// MultisigIntent requests a payment that may only be submitted once
// Required distinct witnesses from Signers have been attached.
type MultisigIntent struct {
	From     string
	To       string
	Amount   uint64
	Signers  []string // hex-encoded member public keys
	Required uint32
	Context  string
}

// BuildPayment constructs an unsigned payment transaction in Pending status.
//
// The selection target is the amount plus a provisional one-input fee; the
// fee is recomputed once after selection with the actual input count and the
// change output absorbs the difference. The recomputation is deliberately not
// iterated to a fixed point: in the rare boundary case where the recomputed
// fee exceeds the provisional margin, the build fails with
// ErrInsufficientFunds rather than under-paying.
func (e *Engine) BuildPayment(ctx context.Context, in PaymentIntent) (*tx.Transaction, error) {
	if in.From == "" || in.To == "" {
		return nil, fmt.Errorf("%w: empty address", ErrInvalidIntent)
	}
	if in.Amount == 0 {
		return nil, fmt.Errorf("%w: zero amount", ErrInvalidIntent)
	}
	return e.buildValueTransfer(ctx, tx.Payment, in.From, in.To, in.Amount, nil, nil, in.Context)
}

// BuildTokenTransfer constructs an unsigned token transfer. Selection must
// cover the requested token amounts as well as the minimum base value the
// primary output carries; per-asset change is computed for every asset
// present in the inputs.
func (e *Engine) BuildTokenTransfer(ctx context.Context, in TokenTransferIntent) (*tx.Transaction, error) {
	if in.From == "" || in.To == "" {
		return nil, fmt.Errorf("%w: empty address", ErrInvalidIntent)
	}
	if len(in.Tokens) == 0 {
		return nil, fmt.Errorf("%w: no tokens requested", ErrInvalidIntent)
	}
	for asset, amount := range in.Tokens {
		if amount == 0 {
			return nil, fmt.Errorf("%w: zero amount for asset %q", ErrInvalidIntent, asset)
		}
	}

	utxos, err := e.spendable(ctx, in.From)
	if err != nil {
		return nil, err
	}
	p := e.params.Current()

	provisional := tx.EstimateFee(p, 1, 2, 0)
	if p.MinUTXOValue > math.MaxUint64-provisional {
		return nil, fmt.Errorf("%w: minimum output value %d overflows the selection target",
			ErrInsufficientFunds, p.MinUTXOValue)
	}
	target := p.MinUTXOValue + provisional
	selected, err := tx.Select(utxos, target, in.Tokens, e.SelectionStrategy())
	if err != nil {
		return nil, err
	}
	if !tx.Sufficient(selected, target, in.Tokens) {
		return nil, fmt.Errorf("%w: cannot cover %d base units and requested tokens",
			ErrInsufficientFunds, target)
	}

	inputs, totalIn, inTokens := makeInputs(selected)
	fee := tx.EstimateFee(p, len(inputs), 2, 0)

	primary := tx.Output{Address: in.To, Value: p.MinUTXOValue, Tokens: copyTokens(in.Tokens)}
	outputs := []tx.Output{primary}

	changeTokens := make(map[string]uint64)
	for asset, have := range inTokens {
		sent := in.Tokens[asset]
		if have < sent {
			// Sufficient already verified coverage; reaching here is a defect.
			return nil, fmt.Errorf("%w: asset %q short by %d", ErrInvalidIntent, asset, sent-have)
		}
		if left := have - sent; left > 0 {
			changeTokens[asset] = left
		}
	}

	if totalIn < primary.Value {
		return nil, fmt.Errorf("%w: need %d base units, have %d",
			ErrInsufficientFunds, primary.Value, totalIn)
	}
	margin := totalIn - primary.Value
	if margin < fee {
		return nil, fmt.Errorf("%w: recomputed fee %d exceeds selected margin %d",
			ErrInsufficientFunds, fee, margin)
	}
	outputs, fee, err = e.applyChange(p, outputs, in.From, margin-fee, changeTokens, fee)
	if err != nil {
		return nil, err
	}

	t := &tx.Transaction{
		Kind:    tx.TokenTransfer,
		Status:  tx.Pending,
		Inputs:  inputs,
		Outputs: outputs,
		Fee:     fee,
		TTL:     e.ttl(),
		Context: in.Context,
	}
	return e.finalize(t)
}

// BuildMetadata constructs a metadata-only transaction: exactly one input,
// returned to the sender minus the fee, with the metadata attached. Tokens
// carried by the chosen input ride along on the self output.
func (e *Engine) BuildMetadata(ctx context.Context, in MetadataIntent) (*tx.Transaction, error) {
	if in.From == "" {
		return nil, fmt.Errorf("%w: empty address", ErrInvalidIntent)
	}
	md := in.Metadata
	if md.Size() == 0 {
		return nil, fmt.Errorf("%w: empty metadata", ErrInvalidIntent)
	}

	utxos, err := e.spendable(ctx, in.From)
	if err != nil {
		return nil, err
	}
	p := e.params.Current()

	// A zero target selects a single strategy-preferred UTXO.
	selected, err := tx.Select(utxos, 0, nil, e.SelectionStrategy())
	if err != nil {
		return nil, err
	}
	u := selected[0]

	fee := tx.EstimateFee(p, 1, 1, md.Size())
	if u.Value < fee {
		return nil, fmt.Errorf("%w: input %d cannot cover fee %d",
			ErrInsufficientFunds, u.Value, fee)
	}

	t := &tx.Transaction{
		Kind:   tx.MetadataOnly,
		Status: tx.Pending,
		Inputs: []tx.Input{{TxID: u.TxID, OutputIndex: u.OutputIndex, UTXO: u}},
		Outputs: []tx.Output{{
			Address: in.From,
			Value:   u.Value - fee,
			Tokens:  copyTokens(u.Tokens),
		}},
		Fee:      fee,
		TTL:      e.ttl(),
		Metadata: &md,
		Context:  in.Context,
	}
	return e.finalize(t)
}

// BuildContractCall constructs a payment to a contract destination with the
// call recorded as transaction metadata. The metadata contributes to the fee
// but not to the value-accounting invariant.
func (e *Engine) BuildContractCall(ctx context.Context, in ContractCallIntent) (*tx.Transaction, error) {
	if in.From == "" || in.Contract == "" {
		return nil, fmt.Errorf("%w: empty address", ErrInvalidIntent)
	}
	if in.Function == "" {
		return nil, fmt.Errorf("%w: empty function name", ErrInvalidIntent)
	}
	if in.Amount == 0 {
		return nil, fmt.Errorf("%w: zero amount", ErrInvalidIntent)
	}

	md := &tx.Metadata{Labels: map[string]string{
		"contract":   in.Contract,
		"function":   in.Function,
		"parameters": strings.Join(in.Parameters, ","),
	}}
	return e.buildValueTransfer(ctx, tx.ContractCall, in.From, in.Contract, in.Amount, md, nil, in.Context)
}

// BuildMultisigPayment constructs a payment carrying a multisig policy. The
// transaction becomes eligible for submission only once the policy threshold
// of distinct member witnesses is met.
func (e *Engine) BuildMultisigPayment(ctx context.Context, in MultisigIntent) (*tx.Transaction, error) {
	if in.From == "" || in.To == "" {
		return nil, fmt.Errorf("%w: empty address", ErrInvalidIntent)
	}
	if in.Amount == 0 {
		return nil, fmt.Errorf("%w: zero amount", ErrInvalidIntent)
	}
	if in.Required == 0 {
		return nil, fmt.Errorf("%w: zero signature threshold", ErrInvalidIntent)
	}
	if len(in.Signers) == 0 {
		return nil, fmt.Errorf("%w: empty signer set", ErrInvalidIntent)
	}
	if int(in.Required) > len(in.Signers) {
		return nil, fmt.Errorf("%w: threshold %d exceeds %d signers",
			ErrInvalidIntent, in.Required, len(in.Signers))
	}
	seen := make(map[string]bool, len(in.Signers))
	for _, s := range in.Signers {
		if s == "" {
			return nil, fmt.Errorf("%w: empty signer key", ErrInvalidIntent)
		}
		if seen[s] {
			return nil, fmt.Errorf("%w: duplicate signer %q", ErrInvalidIntent, s)
		}
		seen[s] = true
	}

	policy := &tx.MultisigPolicy{
		Signers:  append([]string(nil), in.Signers...),
		Required: in.Required,
	}
	return e.buildValueTransfer(ctx, tx.Multisig, in.From, in.To, in.Amount, nil, policy, in.Context)
}

// buildValueTransfer is the shared payment skeleton: select against the
// amount plus a provisional fee, recompute the fee once with the actual
// input count, emit the primary output, and route the remainder (base value
// and any tokens that rode in on the inputs) back to the sender as change.
func (e *Engine) buildValueTransfer(ctx context.Context, kind tx.Kind, from, to string,
	amount uint64, md *tx.Metadata, policy *tx.MultisigPolicy, tag string) (*tx.Transaction, error) {

	utxos, err := e.spendable(ctx, from)
	if err != nil {
		return nil, err
	}
	p := e.params.Current()

	provisional := tx.EstimateFee(p, 1, 2, md.Size())
	if amount > math.MaxUint64-provisional {
		return nil, fmt.Errorf("%w: amount %d overflows the selection target",
			ErrInsufficientFunds, amount)
	}
	target := amount + provisional
	selected, err := tx.Select(utxos, target, nil, e.SelectionStrategy())
	if err != nil {
		return nil, err
	}
	if !tx.Sufficient(selected, target, nil) {
		return nil, fmt.Errorf("%w: need %d base units, have %d",
			ErrInsufficientFunds, target, sumValues(selected))
	}

	inputs, totalIn, inTokens := makeInputs(selected)
	fee := tx.EstimateFee(p, len(inputs), 2, md.Size())

	// Compare against the margin rather than amount+fee so the check cannot
	// wrap.
	if totalIn < amount {
		return nil, fmt.Errorf("%w: need %d base units, have %d",
			ErrInsufficientFunds, amount, totalIn)
	}
	margin := totalIn - amount
	if margin < fee {
		return nil, fmt.Errorf("%w: recomputed fee %d exceeds selected margin %d",
			ErrInsufficientFunds, fee, margin)
	}
	outputs := []tx.Output{{Address: to, Value: amount}}
	outputs, fee, err = e.applyChange(p, outputs, from, margin-fee, inTokens, fee)
	if err != nil {
		return nil, err
	}

	t := &tx.Transaction{
		Kind:     kind,
		Status:   tx.Pending,
		Inputs:   inputs,
		Outputs:  outputs,
		Fee:      fee,
		TTL:      e.ttl(),
		Metadata: md,
		Policy:   policy,
		Context:  tag,
	}
	return e.finalize(t)
}

// applyChange appends a change output for changeBase and changeTokens, or
// applies the dust policy when the base change is below the protocol
// minimum. A change output carrying tokens is always emitted regardless of
// its base value: token conservation outweighs the dust rule.
func (e *Engine) applyChange(p params.FeeParameters, outputs []tx.Output, changeAddr string,
	changeBase uint64, changeTokens map[string]uint64, fee uint64) ([]tx.Output, uint64, error) {

	if len(changeTokens) == 0 {
		changeTokens = nil
	}

	switch {
	case changeTokens != nil:
		outputs = append(outputs, tx.Output{
			Address: changeAddr,
			Value:   changeBase,
			Tokens:  copyTokens(changeTokens),
		})
	case changeBase >= p.MinUTXOValue:
		outputs = append(outputs, tx.Output{Address: changeAddr, Value: changeBase})
	case changeBase > 0:
		if e.opts.DustPolicy == DustReject {
			return nil, 0, fmt.Errorf("%w: change %d below minimum %d",
				ErrDustChange, changeBase, p.MinUTXOValue)
		}
		// Absorb the dust into the fee rather than emit an
		// unspendably small output.
		log.Debugf("absorbing %d dust change into fee", changeBase)
		fee += changeBase
	}
	return outputs, fee, nil
}

// spendable returns the sender's UTXO set, refreshing once when the cached
// set is empty.
func (e *Engine) spendable(ctx context.Context, address string) ([]tx.UTXO, error) {
	utxos, err := e.utxos.get(ctx, address)
	if err != nil {
		return nil, err
	}
	if len(utxos) == 0 {
		if utxos, err = e.utxos.refresh(ctx, address); err != nil {
			return nil, err
		}
	}
	if len(utxos) == 0 {
		return nil, fmt.Errorf("%w: address %s", ErrNoUTXOs, address)
	}
	return utxos, nil
}

// finalize stamps identity and timestamps, re-checks conservation, and
// registers the transaction with the table.
func (e *Engine) finalize(t *tx.Transaction) (*tx.Transaction, error) {
	if err := t.VerifyBalance(); err != nil {
		// A builder emitting an unbalanced transaction is a logic
		// defect; fail loudly instead of letting it reach the node.
		return nil, fmt.Errorf("%w: %w", ErrInvalidIntent, err)
	}

	body, err := t.EncodeBody()
	if err != nil {
		return nil, err
	}
	id, err := tx.NewTxID(body)
	if err != nil {
		return nil, err
	}
	t.ID = id
	t.RawBody = body
	t.CreatedAt = time.Now().UTC()

	e.table.insert(t)
	e.stats.recordBuilt()
	log.Infof("built %s transaction %s: %d inputs, %d outputs, fee %d",
		t.Kind, t.ID, len(t.Inputs), len(t.Outputs), t.Fee)
	return t.Clone(), nil
}

func (e *Engine) ttl() uint64 {
	return uint64(time.Now().Add(e.opts.TTLWindow).Unix())
}

func makeInputs(selected []tx.UTXO) ([]tx.Input, uint64, map[string]uint64) {
	inputs := make([]tx.Input, len(selected))
	var total uint64
	tokens := make(map[string]uint64)
	for i, u := range selected {
		inputs[i] = tx.Input{TxID: u.TxID, OutputIndex: u.OutputIndex, UTXO: u}
		total += u.Value
		for asset, amount := range u.Tokens {
			tokens[asset] += amount
		}
	}
	return inputs, total, tokens
}

func sumValues(utxos []tx.UTXO) uint64 {
	var sum uint64
	for _, u := range utxos {
		sum += u.Value
	}
	return sum
}

func copyTokens(tokens map[string]uint64) map[string]uint64 {
	if len(tokens) == 0 {
		return nil
	}
	c := make(map[string]uint64, len(tokens))
	for k, v := range tokens {
		c[k] = v
	}
	return c
}
