package kv

// Store is an ordered, durable key-value store.
type Store interface {
	// Get returns the value at key, or ErrNotFound.
	Get(key []byte) ([]byte, error)
	// Put writes value at key unconditionally. It is ordered against a
	// concurrent Create on the same key, never interleaved with it.
	Put(key, value []byte, opts WriteOptions) error
	// Create writes value at key only if the key is absent.
	// Returns ErrExists when occupied and ErrLocked under contention.
	Create(key, value []byte, opts WriteOptions) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(key []byte, opts WriteOptions) error
	// NewIterator opens a raw cursor over [LowerBound, UpperBound).
	NewIterator(opts IterOptions) (Iterator, error)
	Close() error
}

// WriteOptions carries per-write durability hints.
type WriteOptions struct {
	// Sync requests the write be flushed to stable storage before returning.
	Sync bool
}

// IterOptions bounds an iterator. Nil bounds are open.
type IterOptions struct {
	LowerBound []byte // inclusive
	UpperBound []byte // exclusive
	Reverse    bool
}

// Iterator provides sequential access over a range of key-value pairs.
// Iterators are not safe for concurrent use and must be closed after use.
type Iterator interface {
	// Next advances to the next pair. The first call positions the iterator
	// at the first pair in iteration order. Returns false when exhausted or
	// on failure; check Error to tell them apart.
	Next() bool
	// Key returns a copy of the current key.
	Key() []byte
	// Value returns a copy of the current value.
	Value() ([]byte, error)
	// Error returns the error that stopped iteration, if any.
	Error() error
	Close() error
}
