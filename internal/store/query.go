package store

import (
	"context"
	"errors"

	"github.com/roach88/perstore/internal/cursor"
	"github.com/roach88/perstore/internal/ir"
	"github.com/roach88/perstore/internal/log"
	"github.com/roach88/perstore/internal/queryir"
	"github.com/roach88/perstore/internal/querymatch"
	"github.com/roach88/perstore/internal/rql"
)

// QueryOptions controls a single query.
type QueryOptions struct {
	// Operators resolves non-built-in calls in the query. "limit" is
	// reserved and cannot be replaced.
	Operators map[string]querymatch.Operator
	// Parameters are bound to $1, $2, ... in order.
	Parameters []ir.IRValue
}

// Query parses query text and starts streaming its matches. Blank text
// matches every record. The returned Results must be consumed or closed.
func (s *Store) Query(ctx context.Context, query string, opts QueryOptions) (*Results, error) {
	q, err := rql.Parse(query)
	if err != nil {
		return nil, newInvalidQueryError(err)
	}
	return s.QueryIR(ctx, q, opts)
}

// QueryIR is Query for an already-built query.
func (s *Store) QueryIR(ctx context.Context, q queryir.Query, opts QueryOptions) (*Results, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := querymatch.NewCompiler()
	for name, op := range opts.Operators {
		c.Operators[name] = op
	}
	c.Parameters = opts.Parameters

	plan, err := c.Compile(q)
	if err != nil {
		return nil, newInvalidQueryError(err)
	}
	for _, w := range plan.Warnings {
		log.Store.Warn().Str("query", q.String()).Msg(w)
	}
	if plan.Window != nil {
		log.Store.Debug().
			Int64("count", plan.Window.Count).
			Int64("start", plan.Window.Start).
			Msg("query window")
	}

	lower, upper := s.codec.Bounds()
	cur, err := cursor.Open(s.db, s.codec, cursor.Options{
		LowerBound: lower,
		UpperBound: upper,
		ReadAhead:  s.readAhead,
	})
	if err != nil {
		return nil, err
	}

	return &Results{cur: cur, plan: plan}, nil
}

// Results is a live query stream. It can be consumed once, by ForEach or All.
type Results struct {
	cur  *cursor.Cursor
	plan *querymatch.Plan

	skipped   int64
	delivered int64
}

// ForEach calls fn with each matching record in key order until the
// matches run out, the limit window is satisfied, Close is called, or fn
// returns an error. Closing is not an error. A failing iterator is reported
// as ITERATOR_FAILURE; fn's own error is returned unchanged.
func (r *Results) ForEach(ctx context.Context, fn func(ir.IRObject) error) error {
	w := r.plan.Window
	if w != nil && w.Count == 0 {
		return r.cur.Close()
	}

	var callerErr error
	err := r.cur.ForEach(ctx, func(p cursor.Pair) error {
		ok, err := r.plan.Match(p.Value)
		if err != nil {
			callerErr = err
			return err
		}
		if !ok {
			return nil
		}

		if w != nil && r.skipped < w.Start {
			r.skipped++
			return nil
		}

		if err := fn(p.Value); err != nil {
			callerErr = err
			return err
		}
		r.delivered++

		if w != nil && r.delivered >= w.Count {
			log.Cursor.Debug().Int64("delivered", r.delivered).Msg("limit reached, closing cursor")
			return r.cur.Close()
		}
		return nil
	})

	log.Cursor.Debug().
		Int("scanned", r.cur.Delivered()).
		Int64("skipped", r.skipped).
		Int64("delivered", r.delivered).
		Msg("query stream ended")

	switch {
	case err == nil:
		return nil
	case callerErr != nil && errors.Is(err, callerErr):
		return err
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		return err
	case errors.Is(err, cursor.ErrConsumed):
		return err
	default:
		return newIteratorFailureError(err)
	}
}

// All collects every match. On failure no records are returned.
func (r *Results) All(ctx context.Context) ([]ir.IRObject, error) {
	var out []ir.IRObject
	err := r.ForEach(ctx, func(rec ir.IRObject) error {
		out = append(out, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Close stops the stream. It may be called from inside ForEach's callback
// and is idempotent.
func (r *Results) Close() error {
	return r.cur.Close()
}

// Window returns the limit window in effect, or nil.
func (r *Results) Window() *querymatch.Window {
	return r.plan.Window
}

// Warnings returns validation warnings for the query.
func (r *Results) Warnings() []string {
	return r.plan.Warnings
}

// Delivered returns how many records ForEach has handed out.
func (r *Results) Delivered() int64 {
	return r.delivered
}

// Scanned returns how many stored records were read before the stream
// ended, matching or not.
func (r *Results) Scanned() int {
	return r.cur.Delivered()
}

// Skipped returns how many matches were dropped by the window's start.
func (r *Results) Skipped() int64 {
	return r.skipped
}
