package rql

import (
	"github.com/roach88/perstore/internal/ir"
	"github.com/roach88/perstore/internal/queryir"
)

var compareOps = map[string]queryir.CompareOp{
	"eq": queryir.OpEq,
	"ne": queryir.OpNe,
	"lt": queryir.OpLt,
	"le": queryir.OpLe,
	"gt": queryir.OpGt,
	"ge": queryir.OpGe,
}

func toPredicate(n node) (queryir.Predicate, error) {
	switch n.kind {
	case nodePred:
		return n.pred, nil
	case nodeCall:
		return callToPredicate(n)
	case nodeArray:
		// (a=1,b=2) in predicate position is a conjunction
		preds := make([]queryir.Predicate, len(n.args))
		for i, a := range n.args {
			pred, err := toPredicate(a)
			if err != nil {
				return nil, err
			}
			preds[i] = pred
		}
		return queryir.And{Predicates: preds}, nil
	default:
		return nil, errorf(n.pos, "expected a condition, found value %q", n.word)
	}
}

func callToPredicate(n node) (queryir.Predicate, error) {
	switch n.name {
	case "and", "or":
		preds := make([]queryir.Predicate, len(n.args))
		for i, a := range n.args {
			pred, err := toPredicate(a)
			if err != nil {
				return nil, err
			}
			preds[i] = pred
		}
		if n.name == "and" {
			return queryir.And{Predicates: preds}, nil
		}
		return queryir.Or{Predicates: preds}, nil

	case "not":
		if len(n.args) != 1 {
			return nil, errorf(n.pos, "not takes 1 argument, got %d", len(n.args))
		}
		pred, err := toPredicate(n.args[0])
		if err != nil {
			return nil, err
		}
		return queryir.Not{Predicate: pred}, nil

	case "eq", "ne", "lt", "le", "gt", "ge":
		field, value, err := fieldAndValue(n)
		if err != nil {
			return nil, err
		}
		return queryir.Compare{Op: compareOps[n.name], Field: field, Value: value}, nil

	case "contains":
		field, value, err := fieldAndValue(n)
		if err != nil {
			return nil, err
		}
		return queryir.Contains{Field: field, Value: value}, nil

	case "in", "out":
		if len(n.args) < 1 {
			return nil, errorf(n.pos, "%s needs a field", n.name)
		}
		field, err := fieldName(n.args[0])
		if err != nil {
			return nil, err
		}
		rest := n.args[1:]
		if len(rest) == 1 && rest[0].kind == nodeArray {
			rest = rest[0].args
		}
		values := make([]queryir.Operand, len(rest))
		for i, a := range rest {
			v, err := toOperand(a)
			if err != nil {
				return nil, err
			}
			values[i] = v
		}
		return queryir.In{Field: field, Values: values, Negate: n.name == "out"}, nil

	case "exists":
		if len(n.args) != 1 {
			return nil, errorf(n.pos, "exists takes 1 argument, got %d", len(n.args))
		}
		field, err := fieldName(n.args[0])
		if err != nil {
			return nil, err
		}
		return queryir.Exists{Field: field}, nil

	case "limit":
		if len(n.args) < 1 || len(n.args) > 3 {
			return nil, errorf(n.pos, "limit takes 1 to 3 arguments, got %d", len(n.args))
		}
		ops := make([]queryir.Operand, 3)
		for i, a := range n.args {
			v, err := toOperand(a)
			if err != nil {
				return nil, err
			}
			ops[i] = v
		}
		return queryir.Limit{Count: ops[0], Start: ops[1], MaxCount: ops[2]}, nil

	default:
		args := make([]queryir.Operand, len(n.args))
		for i, a := range n.args {
			v, err := toOperand(a)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
		return queryir.Call{Name: n.name, Args: args}, nil
	}
}

func fieldAndValue(n node) (string, queryir.Operand, error) {
	if len(n.args) != 2 {
		return "", nil, errorf(n.pos, "%s takes 2 arguments, got %d", n.name, len(n.args))
	}
	field, err := fieldName(n.args[0])
	if err != nil {
		return "", nil, err
	}
	value, err := toOperand(n.args[1])
	if err != nil {
		return "", nil, err
	}
	return field, value, nil
}

// fieldName takes the source text of a value as a field path, so that
// numeric-looking fields ("0") stay names.
func fieldName(n node) (string, error) {
	if n.kind != nodeValue {
		return "", errorf(n.pos, "expected a field name")
	}
	if _, isParam := n.value.(queryir.Param); isParam {
		return "", errorf(n.pos, "field name cannot be a parameter")
	}
	if lit, ok := n.value.(queryir.Literal); ok {
		if s, ok := lit.Value.(ir.IRString); ok {
			return string(s), nil
		}
	}
	return n.word, nil
}

func toOperand(n node) (queryir.Operand, error) {
	switch n.kind {
	case nodeValue:
		return n.value, nil
	case nodeArray:
		arr := make(ir.IRArray, len(n.args))
		for i, a := range n.args {
			v, err := toOperand(a)
			if err != nil {
				return nil, err
			}
			lit, ok := v.(queryir.Literal)
			if !ok {
				return nil, errorf(a.pos, "parameters are not allowed inside array literals")
			}
			arr[i] = lit.Value
		}
		return queryir.Lit(arr), nil
	default:
		return nil, errorf(n.pos, "expected a value, found a condition")
	}
}
