package kv

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

// PebbleOptions configures a pebble-backed store.
type PebbleOptions struct {
	// Path is the data directory. Empty opens an in-memory store.
	Path string
	// CacheSize is the block cache size in bytes. Zero keeps pebble's default.
	CacheSize int64
}

// Pebble implements Store on top of cockroachdb/pebble.
type Pebble struct {
	db     *pebble.DB
	locks  *KeyLocks
	closed bool
	mu     sync.RWMutex
}

var _ Store = (*Pebble)(nil)

// OpenPebble opens (or creates) a pebble store.
func OpenPebble(opts PebbleOptions) (*Pebble, error) {
	po := &pebble.Options{}
	if opts.Path == "" {
		po.FS = vfs.NewMem()
	}
	if opts.CacheSize > 0 {
		cache := pebble.NewCache(opts.CacheSize)
		defer cache.Unref()
		po.Cache = cache
	}

	db, err := pebble.Open(opts.Path, po)
	if err != nil {
		return nil, fmt.Errorf("open pebble store: %w", err)
	}

	return &Pebble{db: db, locks: NewKeyLocks()}, nil
}

func pebbleWriteOptions(opts WriteOptions) *pebble.WriteOptions {
	if opts.Sync {
		return pebble.Sync
	}
	return pebble.NoSync
}

func (p *Pebble) Get(key []byte) ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return nil, ErrClosed
	}
	return p.get(key)
}

func (p *Pebble) get(key []byte) ([]byte, error) {
	value, closer, err := p.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	result := make([]byte, len(value))
	copy(result, value)
	return result, nil
}

// Put waits for a concurrent Create on the same key to finish, so an
// overwrite never lands between its existence check and its write.
func (p *Pebble) Put(key, value []byte, opts WriteOptions) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrClosed
	}

	p.locks.Lock(key)
	defer p.locks.Unlock(key)
	return p.db.Set(key, value, pebbleWriteOptions(opts))
}

// Create holds the key's lock across the existence check and the write, so
// two creators racing on one key cannot both observe it absent.
func (p *Pebble) Create(key, value []byte, opts WriteOptions) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrClosed
	}

	if !p.locks.TryLock(key) {
		return ErrLocked
	}
	defer p.locks.Unlock(key)

	_, err := p.get(key)
	switch {
	case err == nil:
		return ErrExists
	case !errors.Is(err, ErrNotFound):
		return err
	}

	return p.db.Set(key, value, pebbleWriteOptions(opts))
}

func (p *Pebble) Delete(key []byte, opts WriteOptions) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrClosed
	}

	p.locks.Lock(key)
	defer p.locks.Unlock(key)
	return p.db.Delete(key, pebbleWriteOptions(opts))
}

func (p *Pebble) NewIterator(opts IterOptions) (Iterator, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return nil, ErrClosed
	}

	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: opts.LowerBound,
		UpperBound: opts.UpperBound,
	})
	if err != nil {
		return nil, fmt.Errorf("create iterator: %w", err)
	}
	return &pebbleIterator{iter: iter, reverse: opts.Reverse}, nil
}

// Close closes the store. Closing twice is a no-op.
func (p *Pebble) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	return p.db.Close()
}

type pebbleIterator struct {
	iter    *pebble.Iterator
	reverse bool
	started bool
}

func (it *pebbleIterator) Next() bool {
	if !it.started {
		it.started = true
		if it.reverse {
			return it.iter.Last()
		}
		return it.iter.First()
	}
	if it.reverse {
		return it.iter.Prev()
	}
	return it.iter.Next()
}

func (it *pebbleIterator) Key() []byte {
	key := it.iter.Key()
	result := make([]byte, len(key))
	copy(result, key)
	return result
}

func (it *pebbleIterator) Value() ([]byte, error) {
	if !it.iter.Valid() {
		return nil, ErrIteratorInvalid
	}

	val, err := it.iter.ValueAndErr()
	if err != nil {
		return nil, fmt.Errorf("read iterator value: %w", err)
	}

	result := make([]byte, len(val))
	copy(result, val)
	return result, nil
}

func (it *pebbleIterator) Error() error {
	return it.iter.Error()
}

func (it *pebbleIterator) Close() error {
	return it.iter.Close()
}
