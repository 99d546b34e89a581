package cache

import (
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Badger is a Store backed by a badger database.
// Expiry has one second resolution.
type Badger struct {
	db *badger.DB
}

var _ Store = (*Badger)(nil)

// OpenBadger opens a badger-backed store in dir.
// An empty dir keeps the whole database in memory.
func OpenBadger(dir string) (*Badger, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("couldn't open badger cache: %w", err)
	}
	return &Badger{db: db}, nil
}

// Close closes the underlying database.
func (b *Badger) Close() error {
	return b.db.Close()
}

// Get returns the value stored for key.
func (b *Badger) Get(key string) ([]byte, bool) {
	var v []byte
	err := b.db.View(func(txn *badger.Txn) error {
		it, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		v, err = it.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, false
	}
	return v, true
}

// Put stores value under key for ttl.
func (b *Badger) Put(key string, value []byte, ttl time.Duration) error {
	return b.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), value)
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
}

// Has reports whether key holds an unexpired value.
func (b *Badger) Has(key string) bool {
	_, ok := b.Get(key)
	return ok
}

// Forget removes key.
func (b *Badger) Forget(key string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// Pull removes key and returns its value.
func (b *Badger) Pull(key string) ([]byte, bool) {
	var v []byte
	err := b.db.Update(func(txn *badger.Txn) error {
		it, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		v, err = it.ValueCopy(nil)
		if err != nil {
			return err
		}
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return nil, false
	}
	return v, true
}
