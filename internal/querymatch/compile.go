// Package querymatch compiles a queryir.Query into an in-memory record
// matcher plus the skip/take window named by its limit directive.
package querymatch

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/perstore/internal/ir"
	"github.com/roach88/perstore/internal/queryir"
)

var (
	ErrUnknownOperator  = errors.New("querymatch: unknown operator")
	ErrMissingParameter = errors.New("querymatch: missing parameter")
	ErrInvalidLimit     = errors.New("querymatch: invalid limit")
)

// Matcher reports whether a record satisfies the compiled query.
type Matcher func(rec ir.IRObject) (bool, error)

// Operator implements a caller-registered call. Args are the call's
// arguments with parameters already substituted.
type Operator func(rec ir.IRObject, args []ir.IRValue) (bool, error)

// Window is the skip/take range taken from a limit directive.
type Window struct {
	Count int64 // matches to deliver after skipping
	Start int64 // matches to skip
	// MaxCount is carried for callers that report it; it does not affect
	// delivery. nil when omitted.
	MaxCount *int64
}

// Plan is the result of compiling a query.
type Plan struct {
	Match Matcher
	// Window is nil when the query has no limit directive.
	Window *Window
	// Warnings are suspicious but legal constructs, from queryir.Validate.
	Warnings []string
}

// Compiler compiles queries against a set of operators and parameters.
type Compiler struct {
	// Operators resolves calls that are not built in. "limit" is reserved and
	// never looked up here.
	Operators map[string]Operator
	// Parameters are substituted for $1, $2, ... in order.
	Parameters []ir.IRValue
}

// NewCompiler creates a Compiler with no operators or parameters.
func NewCompiler() *Compiler {
	return &Compiler{Operators: make(map[string]Operator)}
}

// Compile builds the matcher and extracts the window of the first limit
// directive in source order. Later limits are ignored.
func (c *Compiler) Compile(q queryir.Query) (*Plan, error) {
	match, err := c.compilePredicate(q.Filter)
	if err != nil {
		return nil, err
	}

	plan := &Plan{
		Match:    match,
		Warnings: queryir.Validate(q).Warnings,
	}

	if limits := queryir.Limits(q); len(limits) > 0 {
		w, err := c.window(limits[0])
		if err != nil {
			return nil, err
		}
		plan.Window = w
	}
	return plan, nil
}

func (c *Compiler) window(l queryir.Limit) (*Window, error) {
	count, err := c.limitArg(l.Count, "count")
	if err != nil {
		return nil, err
	}
	w := &Window{Count: count}

	if l.Start != nil {
		if w.Start, err = c.limitArg(l.Start, "start"); err != nil {
			return nil, err
		}
	}
	if l.MaxCount != nil {
		maxCount, err := c.limitArg(l.MaxCount, "maxCount")
		if err != nil {
			return nil, err
		}
		w.MaxCount = &maxCount
	}
	return w, nil
}

func (c *Compiler) limitArg(o queryir.Operand, name string) (int64, error) {
	v, err := c.resolve(o)
	if err != nil {
		return 0, err
	}
	n, ok := v.(ir.IRInt)
	if !ok {
		return 0, fmt.Errorf("%w: %s must be an integer, got %s", ErrInvalidLimit, name, ir.String(v))
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: %s must not be negative, got %d", ErrInvalidLimit, name, n)
	}
	return int64(n), nil
}

func (c *Compiler) resolve(o queryir.Operand) (ir.IRValue, error) {
	switch v := o.(type) {
	case queryir.Literal:
		return v.Value, nil
	case queryir.Param:
		if v.Index < 1 || v.Index > len(c.Parameters) {
			return nil, fmt.Errorf("%w: $%d (have %d)", ErrMissingParameter, v.Index, len(c.Parameters))
		}
		return c.Parameters[v.Index-1], nil
	default:
		return nil, fmt.Errorf("unsupported operand type: %T", o)
	}
}

func matchAll(ir.IRObject) (bool, error) { return true, nil }

func (c *Compiler) compilePredicate(p queryir.Predicate) (Matcher, error) {
	switch pred := p.(type) {
	case nil:
		return matchAll, nil
	case queryir.Compare:
		return c.compileCompare(pred)
	case queryir.In:
		return c.compileIn(pred)
	case queryir.Contains:
		return c.compileContains(pred)
	case queryir.Exists:
		field := pred.Field
		return func(rec ir.IRObject) (bool, error) {
			v, ok := rec.Lookup(field)
			if !ok {
				return false, nil
			}
			_, isNull := v.(ir.IRNull)
			return !isNull, nil
		}, nil
	case queryir.And:
		return c.compileAnd(pred)
	case queryir.Or:
		return c.compileOr(pred)
	case queryir.Not:
		inner, err := c.compilePredicate(pred.Predicate)
		if err != nil {
			return nil, err
		}
		return func(rec ir.IRObject) (bool, error) {
			ok, err := inner(rec)
			return !ok, err
		}, nil
	case queryir.Limit:
		// directives never filter
		return matchAll, nil
	case queryir.Call:
		return c.compileCall(pred)
	default:
		return nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func (c *Compiler) compileCompare(cmp queryir.Compare) (Matcher, error) {
	want, err := c.resolve(cmp.Value)
	if err != nil {
		return nil, err
	}
	field, op := cmp.Field, cmp.Op

	switch op {
	case queryir.OpEq:
		return func(rec ir.IRObject) (bool, error) {
			got, ok := rec.Lookup(field)
			return ok && ir.Equal(got, want), nil
		}, nil
	case queryir.OpNe:
		return func(rec ir.IRObject) (bool, error) {
			got, ok := rec.Lookup(field)
			return !ok || !ir.Equal(got, want), nil
		}, nil
	case queryir.OpLt, queryir.OpLe, queryir.OpGt, queryir.OpGe:
		return func(rec ir.IRObject) (bool, error) {
			got, ok := rec.Lookup(field)
			if !ok {
				return false, nil
			}
			n, comparable := ir.Compare(got, want)
			if !comparable {
				return false, nil
			}
			switch op {
			case queryir.OpLt:
				return n < 0, nil
			case queryir.OpLe:
				return n <= 0, nil
			case queryir.OpGt:
				return n > 0, nil
			default:
				return n >= 0, nil
			}
		}, nil
	default:
		return nil, fmt.Errorf("%w: comparison %q", ErrUnknownOperator, op)
	}
}

func (c *Compiler) compileIn(in queryir.In) (Matcher, error) {
	set := make([]ir.IRValue, len(in.Values))
	for i, o := range in.Values {
		v, err := c.resolve(o)
		if err != nil {
			return nil, err
		}
		set[i] = v
	}
	field, negate := in.Field, in.Negate

	return func(rec ir.IRObject) (bool, error) {
		got, ok := rec.Lookup(field)
		found := false
		if ok {
			for _, v := range set {
				if ir.Equal(got, v) {
					found = true
					break
				}
			}
		}
		return found != negate, nil
	}, nil
}

func (c *Compiler) compileContains(ct queryir.Contains) (Matcher, error) {
	want, err := c.resolve(ct.Value)
	if err != nil {
		return nil, err
	}
	field := ct.Field

	return func(rec ir.IRObject) (bool, error) {
		got, ok := rec.Lookup(field)
		if !ok {
			return false, nil
		}
		switch g := got.(type) {
		case ir.IRArray:
			for _, elem := range g {
				if ir.Equal(elem, want) {
					return true, nil
				}
			}
		case ir.IRString:
			if s, ok := want.(ir.IRString); ok {
				return strings.Contains(string(g), string(s)), nil
			}
		}
		return false, nil
	}, nil
}

func (c *Compiler) compileAnd(and queryir.And) (Matcher, error) {
	subs, err := c.compileAll(and.Predicates)
	if err != nil {
		return nil, err
	}
	return func(rec ir.IRObject) (bool, error) {
		for _, m := range subs {
			ok, err := m(rec)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	}, nil
}

func (c *Compiler) compileOr(or queryir.Or) (Matcher, error) {
	subs, err := c.compileAll(or.Predicates)
	if err != nil {
		return nil, err
	}
	return func(rec ir.IRObject) (bool, error) {
		for _, m := range subs {
			ok, err := m(rec)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	}, nil
}

func (c *Compiler) compileAll(preds []queryir.Predicate) ([]Matcher, error) {
	subs := make([]Matcher, len(preds))
	for i, p := range preds {
		m, err := c.compilePredicate(p)
		if err != nil {
			return nil, err
		}
		subs[i] = m
	}
	return subs, nil
}

func (c *Compiler) compileCall(call queryir.Call) (Matcher, error) {
	op, ok := c.Operators[call.Name]
	if !ok || op == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOperator, call.Name)
	}

	args := make([]ir.IRValue, len(call.Args))
	for i, o := range call.Args {
		v, err := c.resolve(o)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	name := call.Name

	return func(rec ir.IRObject) (bool, error) {
		ok, err := op(rec, args)
		if err != nil {
			return false, fmt.Errorf("operator %s: %w", name, err)
		}
		return ok, nil
	}, nil
}
