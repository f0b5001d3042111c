package engine

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"

	"github.com/utxoforge/libledger-go/tx"
)

var bucketArchive = []byte("transactions")

// boltArchive persists terminal transactions in a bbolt database keyed by
// transaction id, so history survives process restarts and the in-memory
// table can evict terminal entries.
type boltArchive struct {
	db *bbolt.DB
}

// openBoltArchive opens or creates the bbolt database at dbPath. The parent
// directory is created if it does not exist.
func openBoltArchive(dbPath string) (*boltArchive, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("engine: create archive directory: %w", err)
	}
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("engine: open archive db: %w", err)
	}

	err = db.Update(func(btx *bbolt.Tx) error {
		_, err := btx.CreateBucketIfNotExists(bucketArchive)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("engine: create archive bucket: %w", err)
	}
	return &boltArchive{db: db}, nil
}

// Close closes the underlying database.
func (a *boltArchive) Close() error { return a.db.Close() }

// put stores a transaction snapshot keyed by its id.
func (a *boltArchive) put(t *tx.Transaction) error {
	data, err := encodeGob(t)
	if err != nil {
		return fmt.Errorf("engine: encode archived transaction: %w", err)
	}
	return a.db.Update(func(btx *bbolt.Tx) error {
		return btx.Bucket(bucketArchive).Put([]byte(t.ID), data)
	})
}

// get loads an archived transaction by id.
func (a *boltArchive) get(txID string) (*tx.Transaction, error) {
	var data []byte
	err := a.db.View(func(btx *bbolt.Tx) error {
		v := btx.Bucket(bucketArchive).Get([]byte(txID))
		if v == nil {
			return fmt.Errorf("%w: %s", ErrUnknownTransaction, txID)
		}
		data = append(data, v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	var t tx.Transaction
	if err := decodeGob(data, &t); err != nil {
		return nil, fmt.Errorf("engine: decode archived transaction: %w", err)
	}
	return &t, nil
}

// encodeGob serializes a value using gob encoding.
func encodeGob(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeGob deserializes gob-encoded data into a value.
func decodeGob(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}
