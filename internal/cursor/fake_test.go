package cursor

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/perstore/internal/codec"
	"github.com/roach88/perstore/internal/ir"
	"github.com/roach88/perstore/internal/kv"
)

type rawPair struct {
	key, value []byte
}

func fakePairs(t *testing.T, n int) []rawPair {
	t.Helper()
	c, err := codec.New("")
	require.NoError(t, err)

	pairs := make([]rawPair, n)
	for i := range pairs {
		key, err := c.EncodeKey(ir.IRInt(i + 1))
		require.NoError(t, err)
		val, err := c.EncodeValue(ir.NewIRObjectFromPairs(ir.O("id", ir.IRInt(i+1))))
		require.NoError(t, err)
		pairs[i] = rawPair{key: key, value: val}
	}
	return pairs
}

// fakeStore hands out a single scripted iterator.
type fakeStore struct {
	pairs    []rawPair
	failAt   int // Next fails once this many pairs were yielded; 0 disables
	failErr  error
	closeErr error
	gate     chan struct{} // when set, Next blocks on it after gateAt pairs
	gateAt   int

	iter *fakeIterator
}

var _ kv.Store = (*fakeStore)(nil)

func (f *fakeStore) codec(t *testing.T) *codec.Codec {
	c, err := codec.New("")
	require.NoError(t, err)
	return c
}

func (f *fakeStore) NewIterator(kv.IterOptions) (kv.Iterator, error) {
	f.iter = &fakeIterator{store: f, pos: -1}
	return f.iter, nil
}

func (f *fakeStore) Get([]byte) ([]byte, error)                { return nil, kv.ErrNotFound }
func (f *fakeStore) Put(_, _ []byte, _ kv.WriteOptions) error    { return errors.New("read-only") }
func (f *fakeStore) Create(_, _ []byte, _ kv.WriteOptions) error { return errors.New("read-only") }
func (f *fakeStore) Delete([]byte, kv.WriteOptions) error        { return errors.New("read-only") }
func (f *fakeStore) Close() error                                { return nil }

type fakeIterator struct {
	store    *fakeStore
	pos      int
	err      error
	released atomic.Bool
}

func (it *fakeIterator) Next() bool {
	f := it.store
	next := it.pos + 1
	if f.gate != nil && next == f.gateAt {
		<-f.gate
	}
	if f.failAt > 0 && next == f.failAt {
		it.err = f.failErr
		return false
	}
	if next >= len(f.pairs) {
		return false
	}
	it.pos = next
	return true
}

func (it *fakeIterator) Key() []byte { return it.store.pairs[it.pos].key }

func (it *fakeIterator) Value() ([]byte, error) {
	if it.pos < 0 || it.pos >= len(it.store.pairs) {
		return nil, kv.ErrIteratorInvalid
	}
	return it.store.pairs[it.pos].value, nil
}

func (it *fakeIterator) Error() error { return it.err }

func (it *fakeIterator) Close() error {
	it.released.Store(true)
	return it.store.closeErr
}
