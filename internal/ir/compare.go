package ir

import (
	"cmp"
	"strings"
)

// Kind names the dynamic type of a value.
type Kind uint8

const (
	KindAbsent Kind = iota
	KindNull
	KindBool
	KindInt
	KindString
	KindArray
	KindObject
)

// KindOf returns the kind of v. A nil IRValue is KindAbsent.
func KindOf(v IRValue) Kind {
	switch v.(type) {
	case IRNull:
		return KindNull
	case IRBool:
		return KindBool
	case IRInt:
		return KindInt
	case IRString:
		return KindString
	case IRArray:
		return KindArray
	case IRObject:
		return KindObject
	default:
		return KindAbsent
	}
}

// Equal reports deep equality. Values of different kinds are never equal.
func Equal(a, b IRValue) bool {
	switch x := a.(type) {
	case nil:
		return b == nil
	case IRNull:
		_, ok := b.(IRNull)
		return ok
	case IRString:
		y, ok := b.(IRString)
		return ok && x == y
	case IRInt:
		y, ok := b.(IRInt)
		return ok && x == y
	case IRBool:
		y, ok := b.(IRBool)
		return ok && x == y
	case IRArray:
		y, ok := b.(IRArray)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case IRObject:
		y, ok := b.(IRObject)
		if !ok || len(x) != len(y) {
			return false
		}
		for k, xv := range x {
			yv, ok := y[k]
			if !ok || !Equal(xv, yv) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Compare orders two scalars of the same kind. ok is false when the values
// are not comparable (different kinds, or arrays/objects/null).
func Compare(a, b IRValue) (c int, ok bool) {
	switch x := a.(type) {
	case IRInt:
		y, isInt := b.(IRInt)
		if !isInt {
			return 0, false
		}
		return cmp.Compare(x, y), true
	case IRString:
		y, isString := b.(IRString)
		if !isString {
			return 0, false
		}
		return strings.Compare(string(x), string(y)), true
	case IRBool:
		y, isBool := b.(IRBool)
		if !isBool {
			return 0, false
		}
		switch {
		case x == y:
			return 0, true
		case !bool(x):
			return -1, true
		default:
			return 1, true
		}
	default:
		return 0, false
	}
}

// Lookup resolves a dotted field path ("address.city") against an object.
// The second return is false when any segment is missing.
func (obj IRObject) Lookup(path string) (IRValue, bool) {
	var cur IRValue = obj
	for _, seg := range strings.Split(path, ".") {
		o, isObj := cur.(IRObject)
		if !isObj {
			return nil, false
		}
		v, found := o[seg]
		if !found {
			return nil, false
		}
		cur = v
	}
	return cur, true
}
