// Package signer provides a local in-process signer producing witnesses from
// held private keys. It satisfies the engine's Signer interface; deployments
// with hardware wallets or remote co-signers supply their own implementation
// and feed witnesses in through the engine's AddWitness path instead.
package signer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"

	"github.com/utxoforge/libledger-go/tx"
)

// Local holds private keys by opaque handle and signs transaction bodies
// with them. Safe for concurrent use.
type Local struct {
	mu   sync.RWMutex
	keys map[string]*ec.PrivateKey
}

// New returns an empty Local signer.
func New() *Local {
	return &Local{keys: make(map[string]*ec.PrivateKey)}
}

// ImportKey registers a private key under handle. The key material is
// accepted as WIF or as a raw hex-encoded scalar. Re-importing a handle
// replaces the previous key.
func (l *Local) ImportKey(handle, key string) error {
	if handle == "" {
		return fmt.Errorf("%w: empty handle", ErrInvalidKey)
	}
	priv, err := parseKey(key)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.keys[handle] = priv
	return nil
}

// Sign hashes message with SHA-256 and signs the digest with the key
// registered under keyHandle, returning a witness carrying the DER
// signature and the signer's compressed public key.
func (l *Local) Sign(_ context.Context, message []byte, keyHandle string) (tx.Witness, error) {
	l.mu.RLock()
	priv, ok := l.keys[keyHandle]
	l.mu.RUnlock()
	if !ok {
		return tx.Witness{}, fmt.Errorf("%w: %q", ErrUnknownKey, keyHandle)
	}

	digest := sha256.Sum256(message)
	sig, err := priv.Sign(digest[:])
	if err != nil {
		return tx.Witness{}, fmt.Errorf("%w: %w", ErrSigningFailed, err)
	}
	return tx.Witness{
		SignerKey: hex.EncodeToString(priv.PubKey().Compressed()),
		Signature: sig.Serialize(),
	}, nil
}

// PublicKey returns the hex-encoded compressed public key registered under
// handle, for declaring multisig signer sets.
func (l *Local) PublicKey(handle string) (string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	priv, ok := l.keys[handle]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKey, handle)
	}
	return hex.EncodeToString(priv.PubKey().Compressed()), nil
}

// VerifyWitness checks that w's signature is valid for message under the
// public key w declares.
func VerifyWitness(message []byte, w tx.Witness) error {
	keyBytes, err := hex.DecodeString(w.SignerKey)
	if err != nil {
		return fmt.Errorf("%w: signer key: %w", ErrInvalidWitness, err)
	}
	pub, err := ec.PublicKeyFromBytes(keyBytes)
	if err != nil {
		return fmt.Errorf("%w: signer key: %w", ErrInvalidWitness, err)
	}
	sig, err := ec.ParseSignature(w.Signature)
	if err != nil {
		return fmt.Errorf("%w: signature: %w", ErrInvalidWitness, err)
	}
	digest := sha256.Sum256(message)
	if !sig.Verify(digest[:], pub) {
		return fmt.Errorf("%w: signature does not verify", ErrInvalidWitness)
	}
	return nil
}

// parseKey accepts WIF first, then raw hex.
func parseKey(key string) (*ec.PrivateKey, error) {
	if priv, err := ec.PrivateKeyFromWif(key); err == nil {
		return priv, nil
	}
	priv, err := ec.PrivateKeyFromHex(key)
	if err != nil {
		return nil, fmt.Errorf("%w: not WIF or hex", ErrInvalidKey)
	}
	return priv, nil
}
