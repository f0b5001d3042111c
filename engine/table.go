package engine

import (
	"fmt"
	"sort"
	"sync"

	"github.com/utxoforge/libledger-go/tx"
)

// txTable is the tracked-transaction map. All reads hand out deep clones, so
// a caller can never observe a record mid-transition; all mutations run under
// the table lock via update.
type txTable struct {
	mu  sync.RWMutex
	txs map[string]*tx.Transaction
}

func newTxTable() *txTable {
	return &txTable{txs: make(map[string]*tx.Transaction)}
}

func (tb *txTable) insert(t *tx.Transaction) {
	tb.mu.Lock()
	tb.txs[t.ID] = t
	tb.mu.Unlock()
}

func (tb *txTable) get(txID string) (*tx.Transaction, error) {
	tb.mu.RLock()
	defer tb.mu.RUnlock()
	t, ok := tb.txs[txID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTransaction, txID)
	}
	return t.Clone(), nil
}

// update applies fn to the live record under the table lock. fn returning an
// error leaves the record otherwise committed as mutated by fn; fn must not
// mutate on the error path. The returned transaction is a clone taken after
// fn ran.
func (tb *txTable) update(txID string, fn func(*tx.Transaction) error) (*tx.Transaction, error) {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	t, ok := tb.txs[txID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTransaction, txID)
	}
	if err := fn(t); err != nil {
		return t.Clone(), err
	}
	return t.Clone(), nil
}

func (tb *txTable) remove(txID string) {
	tb.mu.Lock()
	delete(tb.txs, txID)
	tb.mu.Unlock()
}

// filter returns clones of all records matching pred, ordered by creation
// time (ties broken by id for determinism).
func (tb *txTable) filter(pred func(*tx.Transaction) bool) []*tx.Transaction {
	tb.mu.RLock()
	var out []*tx.Transaction
	for _, t := range tb.txs {
		if pred(t) {
			out = append(out, t.Clone())
		}
	}
	tb.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
