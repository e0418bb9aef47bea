package harness

import (
	"context"
	"fmt"

	"github.com/roach88/perstore/internal/ident"
	"github.com/roach88/perstore/internal/ir"
	"github.com/roach88/perstore/internal/kv"
	"github.com/roach88/perstore/internal/log"
	"github.com/roach88/perstore/internal/store"
	"github.com/roach88/perstore/internal/testutil"
)

// Harness executes one scenario against its own store.
type Harness struct {
	store *store.Store
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Setup failures and malformed values are returned as errors; failed
// expectations are reported in the Result.
func Run(scenario *Scenario) (*Result, error) {
	db, err := kv.OpenPebble(kv.PebbleOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer db.Close()

	gen, err := generatorFor(scenario)
	if err != nil {
		return nil, err
	}

	st, err := store.New(db, store.Options{
		IDProperty:  scenario.IDProperty,
		Namespace:   scenario.Namespace,
		IDGenerator: gen,
	})
	if err != nil {
		return nil, err
	}

	h := &Harness{store: st}
	ctx := context.Background()

	if err := h.executeSetup(ctx, scenario.Setup); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		ev, err := h.executeStep(ctx, i, step, result)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		result.AddTrace(ev)
	}

	log.Root.Debug().
		Str("scenario", scenario.Name).
		Bool("pass", result.Pass).
		Int("steps", len(scenario.Steps)).
		Msg("scenario finished")

	return result, nil
}

func generatorFor(scenario *Scenario) (ident.Generator, error) {
	if len(scenario.IDs) == 0 {
		return testutil.NewSequenceGenerator("rec"), nil
	}
	ids := make([]ir.IRValue, len(scenario.IDs))
	for i, raw := range scenario.IDs {
		v, err := ir.FromAny(raw)
		if err != nil {
			return nil, fmt.Errorf("ids[%d]: %w", i, err)
		}
		ids[i] = v
	}
	return ident.NewFixedGenerator(ids...), nil
}

func (h *Harness) executeSetup(ctx context.Context, setup Setup) (err error) {
	defer func() {
		// A FixedGenerator panics once its identifiers run out.
		if r := recover(); r != nil {
			err = fmt.Errorf("identifier generator: %v", r)
		}
	}()

	for i, raw := range setup.Records {
		rec, err := ir.ObjectFromAny(raw)
		if err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		if _, err := h.store.Put(ctx, rec, store.PutOptions{}); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}
	return nil
}

// executeStep runs one step, records its outcome and checks its expect
// block. The returned error is reserved for scenario data that cannot be
// converted.
func (h *Harness) executeStep(ctx context.Context, index int, step Step, result *Result) (ev TraceEvent, err error) {
	ev = TraceEvent{Step: index, Op: step.Operation()}
	out := outcome{}

	defer func() {
		// A FixedGenerator panics once its identifiers run out.
		if r := recover(); r != nil {
			out = outcome{err: fmt.Errorf("identifier generator: %v", r)}
			ev.Error = errorCode(out.err)
			result.AddError(fmt.Sprintf("step %d (%s): %v", index, ev.Op, out.err))
		}
	}()

	switch {
	case step.Put != nil:
		ev.Input, out, err = h.put(ctx, step.Put)
	case step.Get != nil:
		ev.Input, out, err = h.get(ctx, step.Get)
	case step.Delete != nil:
		ev.Input, out, err = h.delete(ctx, step.Delete)
	case step.Query != nil:
		ev.Input, out, err = h.query(ctx, step.Query)
	}
	if err != nil {
		return ev, err
	}

	ev.Output = out.output()
	if out.err != nil {
		ev.Error = errorCode(out.err)
	}

	for _, msg := range checkExpect(step.Expect, out) {
		result.AddError(fmt.Sprintf("step %d (%s): %s", index, ev.Op, msg))
	}
	return ev, nil
}

// outcome is what a step produced.
type outcome struct {
	id      ir.IRValue
	record  ir.IRObject
	found   bool
	records []ir.IRObject
	isGet   bool
	isQuery bool
	err     error
}

func (o outcome) output() any {
	switch {
	case o.err != nil:
		return nil
	case o.isGet:
		if !o.found {
			return ir.IRNull{}
		}
		return o.record
	case o.isQuery:
		arr := make(ir.IRArray, len(o.records))
		for i, r := range o.records {
			arr[i] = r
		}
		return arr
	case o.id != nil:
		return o.id
	default:
		return nil
	}
}

func (h *Harness) put(ctx context.Context, p *PutStep) (map[string]any, outcome, error) {
	rec, err := ir.ObjectFromAny(p.Record)
	if err != nil {
		return nil, outcome{}, fmt.Errorf("put.record: %w", err)
	}
	input := map[string]any{"record": rec}

	opts := store.PutOptions{NoOverwrite: p.NoOverwrite, Sync: p.Sync}
	if p.ID != nil {
		id, err := ir.FromAny(p.ID)
		if err != nil {
			return nil, outcome{}, fmt.Errorf("put.id: %w", err)
		}
		opts.ID = id
		input["id"] = id
	}
	if p.NoOverwrite {
		input["no_overwrite"] = true
	}

	id, err := h.store.Put(ctx, rec, opts)
	return input, outcome{id: id, err: err}, nil
}

func (h *Harness) get(ctx context.Context, g *GetStep) (map[string]any, outcome, error) {
	id, err := ir.FromAny(g.ID)
	if err != nil {
		return nil, outcome{}, fmt.Errorf("get.id: %w", err)
	}
	rec, found, err := h.store.Get(ctx, id)
	return map[string]any{"id": id}, outcome{record: rec, found: found, isGet: true, err: err}, nil
}

func (h *Harness) delete(ctx context.Context, d *DeleteStep) (map[string]any, outcome, error) {
	id, err := ir.FromAny(d.ID)
	if err != nil {
		return nil, outcome{}, fmt.Errorf("delete.id: %w", err)
	}
	err = h.store.Delete(ctx, id, store.DeleteOptions{Sync: d.Sync})
	return map[string]any{"id": id}, outcome{err: err}, nil
}

func (h *Harness) query(ctx context.Context, q *QueryStep) (map[string]any, outcome, error) {
	input := map[string]any{"rql": q.RQL}

	var params []ir.IRValue
	if len(q.Params) > 0 {
		arr := make(ir.IRArray, len(q.Params))
		for i, raw := range q.Params {
			v, err := ir.FromAny(raw)
			if err != nil {
				return nil, outcome{}, fmt.Errorf("query.params[%d]: %w", i, err)
			}
			arr[i] = v
		}
		params = arr
		input["params"] = arr
	}

	res, err := h.store.Query(ctx, q.RQL, store.QueryOptions{Parameters: params})
	if err != nil {
		return input, outcome{isQuery: true, err: err}, nil
	}
	recs, err := res.All(ctx)
	return input, outcome{records: recs, isQuery: true, err: err}, nil
}

// errorCode reports a store error by its code and anything else by its
// message.
func errorCode(err error) string {
	if code := store.CodeOf(err); code != "" {
		return string(code)
	}
	return err.Error()
}
