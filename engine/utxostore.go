package engine

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/utxoforge/libledger-go/chain"
	"github.com/utxoforge/libledger-go/tx"
)

// utxoStore caches the known UTXO set per address. Refreshes for different
// addresses proceed independently; concurrent refreshes for the same address
// are collapsed into a single network call by the singleflight group, so a
// reader can never observe a half-updated set and the node is never asked
// twice for the same thing at once.
type utxoStore struct {
	client chain.Client
	group  singleflight.Group

	mu     sync.RWMutex
	byAddr map[string][]tx.UTXO
}

func newUTXOStore(client chain.Client) *utxoStore {
	return &utxoStore{
		client: client,
		byAddr: make(map[string][]tx.UTXO),
	}
}

// get returns the cached set for address, refreshing first when the cache is
// empty.
func (s *utxoStore) get(ctx context.Context, address string) ([]tx.UTXO, error) {
	s.mu.RLock()
	cached, ok := s.byAddr[address]
	s.mu.RUnlock()
	if ok {
		return cloneUTXOs(cached), nil
	}
	return s.refresh(ctx, address)
}

// refresh fetches the UTXO set for address from the node and replaces the
// cached set atomically.
func (s *utxoStore) refresh(ctx context.Context, address string) ([]tx.UTXO, error) {
	v, err, _ := s.group.Do(address, func() (interface{}, error) {
		utxos, err := s.client.GetUTXOs(ctx, address)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.byAddr[address] = utxos
		s.mu.Unlock()
		log.Debugf("refreshed %d UTXOs for address %s", len(utxos), address)
		return utxos, nil
	})
	if err != nil {
		return nil, err
	}
	return cloneUTXOs(v.([]tx.UTXO)), nil
}

// invalidate drops the cached set for address, forcing the next read to hit
// the node. Called after a transaction spending that address confirms.
func (s *utxoStore) invalidate(address string) {
	s.mu.Lock()
	delete(s.byAddr, address)
	s.mu.Unlock()
}

func cloneUTXOs(utxos []tx.UTXO) []tx.UTXO {
	out := make([]tx.UTXO, len(utxos))
	for i, u := range utxos {
		if u.Tokens != nil {
			tokens := make(map[string]uint64, len(u.Tokens))
			for k, v := range u.Tokens {
				tokens[k] = v
			}
			u.Tokens = tokens
		}
		out[i] = u
	}
	return out
}
