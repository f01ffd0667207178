package cache

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
	gocache "github.com/patrickmn/go-cache"
)

// KV is the persistence the cache writes through to. Writes are
// last-write-wins per key.
type KV interface {
	// Get returns the value for key and whether it exists.
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Delete(keys ...string) error
	// Scan calls fn for every key starting with prefix.
	Scan(prefix string, fn func(key string, value []byte) error) error
	Close() error
}

// BadgerKV persists cache entries in a Badger database.
type BadgerKV struct {
	db *badger.DB
}

// OpenBadgerKV opens a Badger-backed KV at path. An empty path keeps
// everything in memory.
func OpenBadgerKV(path string) (*BadgerKV, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil // Disable Badger's internal logging

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache db: %w", err)
	}
	return &BadgerKV{db: db}, nil
}

// Get implements KV.
func (kv *BadgerKV) Get(key string) ([]byte, bool, error) {
	var value []byte
	err := kv.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Set implements KV.
func (kv *BadgerKV) Set(key string, value []byte) error {
	return kv.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

// Delete implements KV.
func (kv *BadgerKV) Delete(keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return kv.db.Update(func(txn *badger.Txn) error {
		for _, key := range keys {
			if err := txn.Delete([]byte(key)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Scan implements KV.
func (kv *BadgerKV) Scan(prefix string, fn func(key string, value []byte) error) error {
	return kv.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(string(item.Key()), value); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close implements KV.
func (kv *BadgerKV) Close() error {
	return kv.db.Close()
}

// MemoryKV keeps entries in process memory. Entries never expire on their
// own; age is judged by the cache from the entry timestamp.
type MemoryKV struct {
	items *gocache.Cache
}

// NewMemoryKV returns an empty in-memory KV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{items: gocache.New(gocache.NoExpiration, 0)}
}

// Get implements KV.
func (kv *MemoryKV) Get(key string) ([]byte, bool, error) {
	v, ok := kv.items.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, _ := v.([]byte)
	return b, true, nil
}

// Set implements KV.
func (kv *MemoryKV) Set(key string, value []byte) error {
	kv.items.Set(key, append([]byte(nil), value...), gocache.NoExpiration)
	return nil
}

// Delete implements KV.
func (kv *MemoryKV) Delete(keys ...string) error {
	for _, key := range keys {
		kv.items.Delete(key)
	}
	return nil
}

// Scan implements KV.
func (kv *MemoryKV) Scan(prefix string, fn func(key string, value []byte) error) error {
	for key, item := range kv.items.Items() {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		b, _ := item.Object.([]byte)
		if err := fn(key, b); err != nil {
			return err
		}
	}
	return nil
}

// Close implements KV.
func (kv *MemoryKV) Close() error {
	kv.items.Flush()
	return nil
}
