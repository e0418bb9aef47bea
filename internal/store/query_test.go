package store

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/perstore/internal/cursor"
	"github.com/roach88/perstore/internal/ir"
	"github.com/roach88/perstore/internal/kv"
	"github.com/roach88/perstore/internal/queryir"
	"github.com/roach88/perstore/internal/querymatch"
	"github.com/roach88/perstore/internal/rql"
)

// seed stores records with ids 1..n, each with a parity field.
func seed(t *testing.T, s *Store, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		parity := "odd"
		if i%2 == 0 {
			parity = "even"
		}
		_, err := s.Put(context.Background(), rec(
			ir.O("id", ir.IRInt(i)),
			ir.O("parity", ir.IRString(parity)),
		), PutOptions{})
		require.NoError(t, err)
	}
}

func ids(recs []ir.IRObject) []ir.IRValue {
	out := make([]ir.IRValue, 0, len(recs))
	for _, r := range recs {
		out = append(out, r["id"])
	}
	return out
}

func intIDs(from, to int) []ir.IRValue {
	out := []ir.IRValue{}
	for i := from; i <= to; i++ {
		out = append(out, ir.IRInt(i))
	}
	return out
}

func runQuery(t *testing.T, s *Store, query string, opts QueryOptions) []ir.IRObject {
	t.Helper()
	res, err := s.Query(context.Background(), query, opts)
	require.NoError(t, err)
	all, err := res.All(context.Background())
	require.NoError(t, err)
	return all
}

func TestQuery_FilterAndLimit(t *testing.T) {
	forEachEngine(t, func(t *testing.T, db kv.Store) {
		s := newTestStore(t, db, Options{})
		ctx := context.Background()
		for _, v := range []string{"one", "two", "three"} {
			n := map[string]int{"one": 1, "two": 2, "three": 3}[v]
			_, err := s.Put(ctx, rec(ir.O("id", ir.IRInt(n)), ir.O("value", ir.IRString(v))), PutOptions{})
			require.NoError(t, err)
		}

		got := runQuery(t, s, "id>0&limit(2)", QueryOptions{})
		assert.Equal(t, []ir.IRObject{
			rec(ir.O("id", ir.IRInt(1)), ir.O("value", ir.IRString("one"))),
			rec(ir.O("id", ir.IRInt(2)), ir.O("value", ir.IRString("two"))),
		}, got)
	})
}

func TestQuery_Window(t *testing.T) {
	forEachEngine(t, func(t *testing.T, db kv.Store) {
		s := newTestStore(t, db, Options{})
		seed(t, s, 10)

		tests := []struct {
			query string
			want  []ir.IRValue
		}{
			{"", intIDs(1, 10)},
			{"limit(3)", intIDs(1, 3)},
			{"limit(3,2)", intIDs(3, 5)},
			{"limit(3,8)", intIDs(9, 10)},
			{"limit(3,10)", intIDs(1, 0)},
			{"limit(3,50)", intIDs(1, 0)},
			{"limit(100)", intIDs(1, 10)},
			{"limit(0)", intIDs(1, 0)},
			{"limit(0,4)", intIDs(1, 0)},
			{"limit(1)&limit(5)", intIDs(1, 1)},
			{"parity=even&limit(2,1)", []ir.IRValue{ir.IRInt(4), ir.IRInt(6)}},
			{"parity=odd", []ir.IRValue{ir.IRInt(1), ir.IRInt(3), ir.IRInt(5), ir.IRInt(7), ir.IRInt(9)}},
			{"id>=8", intIDs(8, 10)},
			{"id>100", intIDs(1, 0)},
		}

		for _, tt := range tests {
			t.Run(tt.query, func(t *testing.T) {
				assert.Equal(t, tt.want, ids(runQuery(t, s, tt.query, QueryOptions{})))
			})
		}
	})
}

func TestQuery_StopsReadingOnceWindowIsFull(t *testing.T) {
	forEachEngine(t, func(t *testing.T, db kv.Store) {
		s := newTestStore(t, db, Options{})
		seed(t, s, 12)

		tests := []struct {
			query       string
			wantScanned int
		}{
			{"", 12},
			{"limit(0)", 0},
			{"limit(1)", 1},
			{"limit(2,1)", 3},
			{"parity=even&limit(2)", 4},
			{"id>10&limit(5)", 12},
		}
		for _, tt := range tests {
			t.Run(tt.query, func(t *testing.T) {
				res, err := s.Query(context.Background(), tt.query, QueryOptions{})
				require.NoError(t, err)
				_, err = res.All(context.Background())
				require.NoError(t, err)
				assert.Equal(t, tt.wantScanned, res.Scanned())
			})
		}
	})
}

func TestQuery_WindowSize(t *testing.T) {
	db, err := kv.OpenPebble(kv.PebbleOptions{})
	require.NoError(t, err)
	defer db.Close()

	const total = 12
	s := newTestStore(t, db, Options{})
	seed(t, s, total)

	for count := 0; count <= total+2; count += 3 {
		for start := 0; start <= total+2; start += 4 {
			t.Run(fmt.Sprintf("count=%d,start=%d", count, start), func(t *testing.T) {
				res, err := s.Query(context.Background(), fmt.Sprintf("limit(%d,%d)", count, start), QueryOptions{})
				require.NoError(t, err)
				got, err := res.All(context.Background())
				require.NoError(t, err)

				want := max(0, min(count, total-start))
				assert.Len(t, got, want)
				assert.Equal(t, int64(want), res.Delivered())
				if want > 0 {
					assert.Equal(t, ir.IRInt(start+1), got[0]["id"])
				}
			})
		}
	}
}

func TestQuery_LimitStopsEvaluation(t *testing.T) {
	db, err := kv.OpenPebble(kv.PebbleOptions{})
	require.NoError(t, err)
	defer db.Close()

	s := newTestStore(t, db, Options{})
	seed(t, s, 50)

	var evaluated atomic.Int64
	counted := func(ir.IRObject, []ir.IRValue) (bool, error) {
		evaluated.Add(1)
		return true, nil
	}

	res, err := s.Query(context.Background(), "counted()&limit(2)", QueryOptions{
		Operators: map[string]querymatch.Operator{"counted": counted},
	})
	require.NoError(t, err)
	got, err := res.All(context.Background())
	require.NoError(t, err)

	assert.Len(t, got, 2)
	assert.Equal(t, int64(2), evaluated.Load(), "records past the window are never matched")
}

func TestQuery_CloseInsideForEach(t *testing.T) {
	forEachEngine(t, func(t *testing.T, db kv.Store) {
		s := newTestStore(t, db, Options{})
		seed(t, s, 20)

		res, err := s.Query(context.Background(), "", QueryOptions{})
		require.NoError(t, err)

		var seen []ir.IRValue
		err = res.ForEach(context.Background(), func(r ir.IRObject) error {
			seen = append(seen, r["id"])
			if len(seen) == 3 {
				return res.Close()
			}
			return nil
		})
		assert.NoError(t, err, "closing is not an error")
		assert.Equal(t, intIDs(1, 3), seen)
		assert.NoError(t, res.Close(), "close is idempotent")
	})
}

func TestQuery_CloseBeforeConsume(t *testing.T) {
	db, err := kv.OpenPebble(kv.PebbleOptions{})
	require.NoError(t, err)
	defer db.Close()

	s := newTestStore(t, db, Options{})
	seed(t, s, 5)

	res, err := s.Query(context.Background(), "", QueryOptions{})
	require.NoError(t, err)
	require.NoError(t, res.Close())

	got, err := res.All(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, got)
}

func TestQuery_ConsumedTwice(t *testing.T) {
	db, err := kv.OpenPebble(kv.PebbleOptions{})
	require.NoError(t, err)
	defer db.Close()

	s := newTestStore(t, db, Options{})
	seed(t, s, 2)

	res, err := s.Query(context.Background(), "", QueryOptions{})
	require.NoError(t, err)
	_, err = res.All(context.Background())
	require.NoError(t, err)

	_, err = res.All(context.Background())
	assert.ErrorIs(t, err, cursor.ErrConsumed)
	assert.False(t, IsIteratorFailure(err))
}

func TestQuery_Parameters(t *testing.T) {
	forEachEngine(t, func(t *testing.T, db kv.Store) {
		s := newTestStore(t, db, Options{})
		seed(t, s, 10)

		got := runQuery(t, s, "id>$1&parity=$2&limit($3)", QueryOptions{
			Parameters: []ir.IRValue{ir.IRInt(3), ir.IRString("even"), ir.IRInt(2)},
		})
		assert.Equal(t, []ir.IRValue{ir.IRInt(4), ir.IRInt(6)}, ids(got))
	})
}

func TestQuery_CustomOperator(t *testing.T) {
	db, err := kv.OpenPebble(kv.PebbleOptions{})
	require.NoError(t, err)
	defer db.Close()

	s := newTestStore(t, db, Options{})
	seed(t, s, 10)

	divisible := func(r ir.IRObject, args []ir.IRValue) (bool, error) {
		n, ok := r["id"].(ir.IRInt)
		d, dok := args[0].(ir.IRInt)
		if !ok || !dok || d == 0 {
			return false, nil
		}
		return n%d == 0, nil
	}

	got := runQuery(t, s, "divisible(3)", QueryOptions{
		Operators: map[string]querymatch.Operator{"divisible": divisible},
	})
	assert.Equal(t, []ir.IRValue{ir.IRInt(3), ir.IRInt(6), ir.IRInt(9)}, ids(got))
}

func TestQuery_OperatorErrorPassesThrough(t *testing.T) {
	db, err := kv.OpenPebble(kv.PebbleOptions{})
	require.NoError(t, err)
	defer db.Close()

	s := newTestStore(t, db, Options{})
	seed(t, s, 3)

	boom := errors.New("operator failed")
	res, err := s.Query(context.Background(), "explode()", QueryOptions{
		Operators: map[string]querymatch.Operator{
			"explode": func(ir.IRObject, []ir.IRValue) (bool, error) { return false, boom },
		},
	})
	require.NoError(t, err)

	_, err = res.All(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, CodeOf(err))
}

func TestQuery_LimitCannotBeOverridden(t *testing.T) {
	db, err := kv.OpenPebble(kv.PebbleOptions{})
	require.NoError(t, err)
	defer db.Close()

	s := newTestStore(t, db, Options{})
	seed(t, s, 5)

	got := runQuery(t, s, "limit(2)", QueryOptions{
		Operators: map[string]querymatch.Operator{
			"limit": func(ir.IRObject, []ir.IRValue) (bool, error) { return false, nil },
		},
	})
	assert.Len(t, got, 2)
}

func TestQuery_InvalidQuery(t *testing.T) {
	db, err := kv.OpenPebble(kv.PebbleOptions{})
	require.NoError(t, err)
	defer db.Close()

	s := newTestStore(t, db, Options{})

	tests := []struct {
		name    string
		query   string
		opts    QueryOptions
		wantErr error
	}{
		{name: "syntax", query: "id=(1"},
		{name: "unknown operator", query: "sort(id)", wantErr: querymatch.ErrUnknownOperator},
		{name: "missing parameter", query: "id=$2", opts: QueryOptions{Parameters: []ir.IRValue{ir.IRInt(1)}}, wantErr: querymatch.ErrMissingParameter},
		{name: "negative limit", query: "limit(-1)", wantErr: querymatch.ErrInvalidLimit},
		{name: "string limit", query: "limit(abc)", wantErr: querymatch.ErrInvalidLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.Query(context.Background(), tt.query, tt.opts)
			assert.Nil(t, res)
			assert.True(t, IsInvalidQuery(err), "got %v", err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}

	t.Run("parse error position", func(t *testing.T) {
		_, err := s.Query(context.Background(), "id=(1", QueryOptions{})
		var perr *rql.ParseError
		assert.ErrorAs(t, err, &perr)
	})
}

func TestQuery_IteratorFailure(t *testing.T) {
	base, err := kv.OpenPebble(kv.PebbleOptions{})
	require.NoError(t, err)
	defer base.Close()

	boom := errors.New("corrupt block")
	db := &failingIterStore{Store: base, failAfter: 3, err: boom}
	s := newTestStore(t, db, Options{})
	seed(t, s, 10)

	res, err := s.Query(context.Background(), "", QueryOptions{})
	require.NoError(t, err)

	var seen int
	err = res.ForEach(context.Background(), func(ir.IRObject) error {
		seen++
		return nil
	})
	require.Error(t, err)
	assert.True(t, IsIteratorFailure(err))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, seen, "pairs before the failure are still delivered")
}

func TestQuery_ReceiverErrorUnchanged(t *testing.T) {
	forEachEngine(t, func(t *testing.T, db kv.Store) {
		s := newTestStore(t, db, Options{})
		seed(t, s, 5)

		res, err := s.Query(context.Background(), "", QueryOptions{})
		require.NoError(t, err)

		stop := errors.New("stop here")
		var seen int
		err = res.ForEach(context.Background(), func(ir.IRObject) error {
			seen++
			if seen == 2 {
				return stop
			}
			return nil
		})
		assert.ErrorIs(t, err, stop)
		assert.Empty(t, CodeOf(err))
		assert.Equal(t, 2, seen, "no records after the receiver fails")
	})
}

func TestQuery_ContextCancelledMidStream(t *testing.T) {
	db, err := kv.OpenPebble(kv.PebbleOptions{})
	require.NoError(t, err)
	defer db.Close()

	s := newTestStore(t, db, Options{})
	seed(t, s, 50)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	res, err := s.Query(ctx, "", QueryOptions{})
	require.NoError(t, err)

	var seen int
	err = res.ForEach(ctx, func(ir.IRObject) error {
		seen++
		if seen == 1 {
			cancel()
		}
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, IsIteratorFailure(err))
}

func TestQuery_KeyOrder(t *testing.T) {
	forEachEngine(t, func(t *testing.T, db kv.Store) {
		s := newTestStore(t, db, Options{})
		ctx := context.Background()

		for _, id := range []ir.IRValue{
			ir.IRString("b"), ir.IRInt(10), ir.IRInt(-3), ir.IRString("a"), ir.IRInt(2), ir.IRString("aa"),
		} {
			_, err := s.Put(ctx, rec(ir.O("id", id)), PutOptions{})
			require.NoError(t, err)
		}

		got := runQuery(t, s, "", QueryOptions{})
		assert.Equal(t, []ir.IRValue{
			ir.IRInt(-3), ir.IRInt(2), ir.IRInt(10),
			ir.IRString("a"), ir.IRString("aa"), ir.IRString("b"),
		}, ids(got))
	})
}

func TestQueryIR(t *testing.T) {
	db, err := kv.OpenPebble(kv.PebbleOptions{})
	require.NoError(t, err)
	defer db.Close()

	s := newTestStore(t, db, Options{})
	seed(t, s, 6)

	q := queryir.Query{Filter: queryir.And{Predicates: []queryir.Predicate{
		queryir.Compare{Op: queryir.OpEq, Field: "parity", Value: queryir.Lit(ir.IRString("odd"))},
		queryir.Limit{Count: queryir.Lit(ir.IRInt(2)), Start: queryir.Lit(ir.IRInt(1))},
	}}}

	res, err := s.QueryIR(context.Background(), q, QueryOptions{})
	require.NoError(t, err)
	require.NotNil(t, res.Window())
	assert.Equal(t, int64(2), res.Window().Count)
	assert.Equal(t, int64(1), res.Window().Start)

	got, err := res.All(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []ir.IRValue{ir.IRInt(3), ir.IRInt(5)}, ids(got))
	assert.Equal(t, int64(1), res.Skipped())
}

func TestQuery_Warnings(t *testing.T) {
	db, err := kv.OpenPebble(kv.PebbleOptions{})
	require.NoError(t, err)
	defer db.Close()

	s := newTestStore(t, db, Options{})

	res, err := s.Query(context.Background(), "limit(1)&limit(2)", QueryOptions{})
	require.NoError(t, err)
	defer res.Close()
	assert.NotEmpty(t, res.Warnings())
}
