package store

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/perstore/internal/ir"
	"github.com/roach88/perstore/internal/kv"
	"github.com/roach88/perstore/internal/retry"
	"github.com/roach88/perstore/internal/testutil"
)

type engine struct {
	name string
	open func(t *testing.T) kv.Store
}

var engines = []engine{
	{
		name: "pebble",
		open: func(t *testing.T) kv.Store {
			db, err := kv.OpenPebble(kv.PebbleOptions{})
			require.NoError(t, err)
			t.Cleanup(func() { db.Close() })
			return db
		},
	},
	{
		name: "sqlite",
		open: func(t *testing.T) kv.Store {
			db, err := kv.OpenSQLite(filepath.Join(t.TempDir(), "records.db"))
			require.NoError(t, err)
			t.Cleanup(func() { db.Close() })
			return db
		},
	},
}

func forEachEngine(t *testing.T, fn func(t *testing.T, db kv.Store)) {
	for _, e := range engines {
		t.Run(e.name, func(t *testing.T) {
			fn(t, e.open(t))
		})
	}
}

func fastRetry(attempts int) retry.Policy {
	return retry.Policy{
		MaxAttempts:     attempts,
		InitialInterval: 50 * time.Microsecond,
		MaxInterval:     time.Millisecond,
		Multiplier:      2,
	}
}

func newTestStore(t *testing.T, db kv.Store, opts Options) *Store {
	t.Helper()
	if opts.IDGenerator == nil {
		opts.IDGenerator = testutil.NewSequenceGenerator("rec")
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = fastRetry(20)
	}
	s, err := New(db, opts)
	require.NoError(t, err)
	return s
}

func rec(pairs ...ir.IRPair) ir.IRObject {
	return ir.NewIRObjectFromPairs(pairs...)
}

// lockingStore reports the first lockedFor creates as lock conflicts, then
// fails with createErr if set, then delegates.
type lockingStore struct {
	kv.Store

	mu        sync.Mutex
	lockedFor int
	createErr error
	creates   int
}

func (s *lockingStore) Create(key, value []byte, opts kv.WriteOptions) error {
	s.mu.Lock()
	s.creates++
	n := s.creates
	s.mu.Unlock()

	if n <= s.lockedFor {
		return kv.ErrLocked
	}
	if s.createErr != nil {
		return s.createErr
	}
	return s.Store.Create(key, value, opts)
}

func (s *lockingStore) Creates() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creates
}

// failingIterStore hands out iterators that fail after failAfter pairs.
type failingIterStore struct {
	kv.Store
	failAfter int
	err       error
}

func (s *failingIterStore) NewIterator(opts kv.IterOptions) (kv.Iterator, error) {
	it, err := s.Store.NewIterator(opts)
	if err != nil {
		return nil, err
	}
	return &failingIter{Iterator: it, failAfter: s.failAfter, err: s.err}, nil
}

type failingIter struct {
	kv.Iterator
	n, failAfter int
	err          error
	failed       bool
}

func (it *failingIter) Next() bool {
	if it.n >= it.failAfter {
		it.failed = true
		return false
	}
	it.n++
	return it.Iterator.Next()
}

func (it *failingIter) Error() error {
	if it.failed {
		return it.err
	}
	return it.Iterator.Error()
}
