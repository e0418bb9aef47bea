package cursor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/multierr"

	"github.com/roach88/perstore/internal/ir"
	"github.com/roach88/perstore/internal/kv"
	"github.com/roach88/perstore/internal/log"
)

// DefaultReadAhead is the number of decoded pairs buffered between the
// iterator and the consumer.
const DefaultReadAhead = 16

// ErrConsumed is returned by ForEach and Read on a cursor that has already
// been consumed.
var ErrConsumed = errors.New("cursor: already consumed")

// Decoder turns raw pairs back into identifiers and records.
type Decoder interface {
	DecodeKey(raw []byte) (ir.IRValue, error)
	DecodeValue(raw []byte) (ir.IRObject, error)
}

// Pair is one decoded key/value pair.
type Pair struct {
	Key   ir.IRValue
	Value ir.IRObject
}

// Options bounds the range a cursor covers.
type Options struct {
	LowerBound []byte // inclusive, nil for open
	UpperBound []byte // exclusive, nil for open
	Reverse    bool
	ReadAhead  int // defaults to DefaultReadAhead
}

// Receiver is called once per pair, in key order. Returning an error ends
// the stream with that error.
type Receiver func(Pair) error

type item struct {
	pair Pair
	err  error
}

// Cursor is a live, single-use iteration session bound to one raw iterator.
type Cursor struct {
	iter      kv.Iterator
	dec       Decoder
	readAhead int

	closing   chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	started bool
	closed  bool

	// written by the producer before it closes its output channel
	releaseErr error
	delivered  int
}

// Open opens a raw iterator on db and wraps it in a Cursor. The cursor owns
// the iterator: it is released when the stream ends, or by Close if the
// cursor is never consumed.
func Open(db kv.Store, dec Decoder, opts Options) (*Cursor, error) {
	if db == nil {
		return nil, errors.New("cursor: nil store")
	}

	iter, err := db.NewIterator(kv.IterOptions{
		LowerBound: opts.LowerBound,
		UpperBound: opts.UpperBound,
		Reverse:    opts.Reverse,
	})
	if err != nil {
		return nil, fmt.Errorf("open iterator: %w", err)
	}

	readAhead := opts.ReadAhead
	if readAhead <= 0 {
		readAhead = DefaultReadAhead
	}

	return &Cursor{
		iter:      iter,
		dec:       dec,
		readAhead: readAhead,
		closing:   make(chan struct{}),
	}, nil
}

// Close ends the stream. It is idempotent and safe to call concurrently with
// ForEach, including from the receiver. If the cursor was never consumed the
// iterator is released here and its error, if any, is returned.
func (c *Cursor) Close() error {
	c.closeOnce.Do(func() { close(c.closing) })

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if !c.started {
		// Nobody will run the producer; release the iterator ourselves.
		c.started = true
		return c.iter.Close()
	}

	log.Cursor.Debug().Msg("cursor closed before exhaustion")
	return nil
}

// Closed reports whether Close has been called.
func (c *Cursor) Closed() bool {
	select {
	case <-c.closing:
		return true
	default:
		return false
	}
}

// begin claims the cursor for one consumption. done is true when the cursor
// was closed before consumption started.
func (c *Cursor) begin() (done bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return true, nil
	}
	if c.started {
		return false, ErrConsumed
	}
	c.started = true
	return false, nil
}

// ForEach delivers every pair to fn in key order and blocks until the stream
// ends. It returns nil when the iterator is exhausted or the cursor is
// closed, the iterator or decode error on failure, fn's error if fn fails,
// and ctx.Err() on cancellation.
func (c *Cursor) ForEach(ctx context.Context, fn Receiver) error {
	if err := ctx.Err(); err != nil {
		return multierr.Append(err, c.Close())
	}

	done, err := c.begin()
	if done || err != nil {
		return err
	}

	out := make(chan item, c.readAhead)
	go c.produce(out)

	var streamErr error
	cancelled := ctx.Done()

	for {
		select {
		case <-cancelled:
			cancelled = nil
			if streamErr == nil {
				streamErr = ctx.Err()
			}
			c.Close()

		case it, ok := <-out:
			if !ok {
				return multierr.Append(streamErr, c.releaseErr)
			}
			// Late results after close or failure are drained, not delivered.
			if streamErr != nil || c.Closed() {
				continue
			}
			if it.err != nil {
				streamErr = it.err
				continue
			}
			if err := fn(it.pair); err != nil {
				streamErr = err
				c.Close()
				continue
			}
			c.delivered++
		}
	}
}

// Read collects every pair into a slice. On close it returns the pairs
// delivered so far; on failure it returns no pairs.
func (c *Cursor) Read(ctx context.Context) ([]Pair, error) {
	var pairs []Pair
	err := c.ForEach(ctx, func(p Pair) error {
		pairs = append(pairs, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pairs, nil
}

// Delivered returns how many pairs the receiver accepted. Only meaningful
// after ForEach has returned.
func (c *Cursor) Delivered() int {
	return c.delivered
}

// produce is the pull loop. It owns the iterator and releases it before
// closing out, so a consumer that sees out closed knows the iterator is gone.
func (c *Cursor) produce(out chan<- item) {
	defer close(out)
	defer func() { c.releaseErr = c.iter.Close() }()

	for {
		select {
		case <-c.closing:
			return
		default:
		}

		if !c.iter.Next() {
			if err := c.iter.Error(); err != nil {
				c.send(out, item{err: fmt.Errorf("iterate: %w", err)})
			}
			return
		}

		pair, err := c.decode()
		if err != nil {
			c.send(out, item{err: err})
			return
		}
		if !c.send(out, item{pair: pair}) {
			return
		}
	}
}

func (c *Cursor) decode() (Pair, error) {
	key, err := c.dec.DecodeKey(c.iter.Key())
	if err != nil {
		return Pair{}, fmt.Errorf("decode key: %w", err)
	}
	raw, err := c.iter.Value()
	if err != nil {
		return Pair{}, fmt.Errorf("read value: %w", err)
	}
	value, err := c.dec.DecodeValue(raw)
	if err != nil {
		return Pair{}, fmt.Errorf("decode value for key %s: %w", ir.String(key), err)
	}
	return Pair{Key: key, Value: value}, nil
}

func (c *Cursor) send(out chan<- item, it item) bool {
	select {
	case out <- it:
		return true
	case <-c.closing:
		return false
	}
}
