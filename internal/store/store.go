package store

import (
	"context"
	"errors"
	"time"

	"github.com/roach88/perstore/internal/codec"
	"github.com/roach88/perstore/internal/cursor"
	"github.com/roach88/perstore/internal/ident"
	"github.com/roach88/perstore/internal/ir"
	"github.com/roach88/perstore/internal/kv"
	"github.com/roach88/perstore/internal/log"
	"github.com/roach88/perstore/internal/retry"
)

// DefaultIDProperty is the record field holding the identifier.
const DefaultIDProperty = "id"

// Options configures a Store. The zero value is usable.
type Options struct {
	// IDProperty names the identifier field. Defaults to "id".
	IDProperty string
	// Namespace confines the store to keys under this prefix, so several
	// stores can share one kv database. Empty uses the whole keyspace.
	Namespace string
	// IDGenerator creates identifiers for records without one. Defaults to
	// ident.UUIDv7Generator.
	IDGenerator ident.Generator
	// Retry governs NoOverwrite puts under lock contention. A zero
	// MaxAttempts selects retry.Default. Retryable is always kv.IsLocked.
	Retry retry.Policy
	// ReadAhead is the cursor buffer size for queries.
	ReadAhead int
}

// Store is a record store over a kv.Store. It is safe for concurrent use.
type Store struct {
	db         kv.Store
	codec      *codec.Codec
	idProperty string
	ids        ident.Generator
	retry      retry.Policy
	readAhead  int
}

// New creates a Store over db. The caller keeps ownership of db.
func New(db kv.Store, opts Options) (*Store, error) {
	if db == nil {
		return nil, ErrNoDatabase
	}

	c, err := codec.New(opts.Namespace)
	if err != nil {
		return nil, err
	}

	s := &Store{
		db:         db,
		codec:      c,
		idProperty: opts.IDProperty,
		ids:        opts.IDGenerator,
		retry:      opts.Retry,
		readAhead:  opts.ReadAhead,
	}
	if s.idProperty == "" {
		s.idProperty = DefaultIDProperty
	}
	if s.ids == nil {
		s.ids = ident.UUIDv7Generator{}
	}
	if s.retry.MaxAttempts == 0 {
		s.retry = retry.Default(kv.IsLocked)
	}
	s.retry.Retryable = kv.IsLocked
	if s.retry.OnRetry == nil {
		s.retry.OnRetry = func(next int, err error, delay time.Duration) {
			log.Store.Debug().
				Err(err).
				Int("attempt", next).
				Dur("delay", delay).
				Msg("lock conflict, retrying create")
		}
	}
	if s.readAhead <= 0 {
		s.readAhead = cursor.DefaultReadAhead
	}
	return s, nil
}

// IDProperty returns the identifier field name.
func (s *Store) IDProperty() string {
	return s.idProperty
}

// Namespace returns the key namespace, "" for the default one.
func (s *Store) Namespace() string {
	return s.codec.Namespace()
}

// Get returns the record stored under id. A missing record is reported as
// found == false with no error.
func (s *Store) Get(ctx context.Context, id ir.IRValue) (rec ir.IRObject, found bool, err error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	key, err := s.codec.EncodeKey(id)
	if err != nil {
		return nil, false, newInvalidRecordError(id, err)
	}

	raw, err := s.db.Get(key)
	if kv.IsNotFound(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	rec, err = s.codec.DecodeValue(raw)
	if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

// PutOptions controls a single Put.
type PutOptions struct {
	// ID, when non-nil, is written into the record's identifier field,
	// replacing any value there.
	ID ir.IRValue
	// NoOverwrite fails the put with ALREADY_EXISTS if the key is occupied.
	NoOverwrite bool
	// Sync asks the kv store to flush before returning.
	Sync bool
}

// ResolveID determines the identifier for rec and returns a copy of rec with
// that identifier set. The input record is never modified.
//
// Order of precedence:
//  1. explicit, when non-nil
//  2. the record's own non-null identifier field
//  3. gen.Generate()
func ResolveID(rec ir.IRObject, idProperty string, explicit ir.IRValue, gen ident.Generator) (ir.IRObject, ir.IRValue) {
	out := rec.Clone()
	if out == nil {
		out = ir.IRObject{}
	}

	var id ir.IRValue
	switch {
	case explicit != nil:
		id = explicit
	case hasIdentifier(out, idProperty):
		id = out[idProperty]
	default:
		id = gen.Generate()
	}

	out[idProperty] = id
	return out, id
}

func hasIdentifier(rec ir.IRObject, idProperty string) bool {
	return ir.KindOf(rec[idProperty]) > ir.KindNull
}

// Put writes rec and returns its identifier.
func (s *Store) Put(ctx context.Context, rec ir.IRObject, opts PutOptions) (ir.IRValue, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	generated := opts.ID == nil && !hasIdentifier(rec, s.idProperty)

	resolved, id := ResolveID(rec, s.idProperty, opts.ID, s.ids)
	if generated {
		log.Store.Debug().Str("id", ir.String(id)).Msg("generated identifier")
	}

	key, err := s.codec.EncodeKey(id)
	if err != nil {
		return nil, newInvalidRecordError(id, err)
	}
	value, err := s.codec.EncodeValue(resolved)
	if err != nil {
		return nil, newInvalidRecordError(id, err)
	}

	wopts := kv.WriteOptions{Sync: opts.Sync}

	if !opts.NoOverwrite {
		if err := s.db.Put(key, value, wopts); err != nil {
			return nil, err
		}
		return id, nil
	}

	if err := s.create(ctx, id, key, value, wopts); err != nil {
		return nil, err
	}
	return id, nil
}

// create performs a create-if-absent write, retrying lock conflicts.
func (s *Store) create(ctx context.Context, id ir.IRValue, key, value []byte, wopts kv.WriteOptions) error {
	err := s.retry.Do(ctx, func(int) error {
		return s.db.Create(key, value, wopts)
	})

	switch {
	case err == nil:
		return nil
	case errors.Is(err, kv.ErrExists):
		return newAlreadyExistsError(id, err)
	case errors.Is(err, retry.ErrExhausted):
		return newLockConflictError(id, err)
	default:
		return err
	}
}

// DeleteOptions controls a single Delete.
type DeleteOptions struct {
	Sync bool
}

// Delete removes the record stored under id. Deleting a missing record
// succeeds.
func (s *Store) Delete(ctx context.Context, id ir.IRValue, opts DeleteOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key, err := s.codec.EncodeKey(id)
	if err != nil {
		return newInvalidRecordError(id, err)
	}
	return s.db.Delete(key, kv.WriteOptions{Sync: opts.Sync})
}
