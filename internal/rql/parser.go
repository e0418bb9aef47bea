package rql

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/roach88/perstore/internal/ir"
	"github.com/roach88/perstore/internal/queryir"
)

// Parse parses query text. Blank text yields a query matching everything.
func Parse(input string) (queryir.Query, error) {
	toks, err := lex(input)
	if err != nil {
		return queryir.Query{}, err
	}

	p := &parser{toks: toks}
	if p.peek().kind == tokEOF {
		return queryir.Query{}, nil
	}

	n, err := p.parseOr(true)
	if err != nil {
		return queryir.Query{}, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return queryir.Query{}, errorf(t.pos, "unexpected %s", describe(t))
	}

	pred, err := toPredicate(n)
	if err != nil {
		return queryir.Query{}, err
	}
	return queryir.Query{Filter: pred}, nil
}

// MustParse is like Parse but panics on error. For tests and constants.
func MustParse(input string) queryir.Query {
	q, err := Parse(input)
	if err != nil {
		panic(err)
	}
	return q
}

type nodeKind int

const (
	nodeValue nodeKind = iota // literal or parameter
	nodeArray                 // (a,b,...)
	nodeCall                  // name(args...)
	nodePred                  // already-built predicate
)

type node struct {
	kind  nodeKind
	pos   int
	name  string
	args  []node
	value queryir.Operand
	word  string // raw word for values, used as field names
	pred  queryir.Predicate
}

type parser struct {
	toks []token
	i    int
}

func (p *parser) peek() token {
	return p.toks[p.i]
}

func (p *parser) peekAt(offset int) token {
	if p.i+offset >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.i+offset]
}

func (p *parser) next() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

func (p *parser) expect(kind tokenKind) (token, error) {
	t := p.next()
	if t.kind != kind {
		return t, errorf(t.pos, "expected %s, found %s", kind, describe(t))
	}
	return t, nil
}

func describe(t token) string {
	switch t.kind {
	case tokWord, tokOp:
		return strconv.Quote(t.text)
	case tokString:
		return "string " + strconv.Quote(t.text)
	default:
		return t.kind.String()
	}
}

// parseOr parses a disjunction. At the top level ',' conjoins; inside call
// arguments it separates arguments instead.
func (p *parser) parseOr(top bool) (node, error) {
	first, err := p.parseAnd(top)
	if err != nil {
		return node{}, err
	}
	if p.peek().kind != tokPipe {
		return first, nil
	}

	preds := []node{first}
	for p.peek().kind == tokPipe {
		p.next()
		n, err := p.parseAnd(top)
		if err != nil {
			return node{}, err
		}
		preds = append(preds, n)
	}
	return combine(first.pos, preds, false)
}

func (p *parser) parseAnd(top bool) (node, error) {
	first, err := p.parseAtom()
	if err != nil {
		return node{}, err
	}

	isSep := func(k tokenKind) bool { return k == tokAmp || (top && k == tokComma) }
	if !isSep(p.peek().kind) {
		return first, nil
	}

	preds := []node{first}
	for isSep(p.peek().kind) {
		p.next()
		n, err := p.parseAtom()
		if err != nil {
			return node{}, err
		}
		preds = append(preds, n)
	}
	return combine(first.pos, preds, true)
}

func combine(pos int, nodes []node, and bool) (node, error) {
	preds := make([]queryir.Predicate, len(nodes))
	for i, n := range nodes {
		pred, err := toPredicate(n)
		if err != nil {
			return node{}, err
		}
		preds[i] = pred
	}
	if and {
		return node{kind: nodePred, pos: pos, pred: queryir.And{Predicates: preds}}, nil
	}
	return node{kind: nodePred, pos: pos, pred: queryir.Or{Predicates: preds}}, nil
}

// parseAtom parses a group or array, a call, a comparison, or a bare value.
func (p *parser) parseAtom() (node, error) {
	t := p.peek()

	switch t.kind {
	case tokLParen:
		return p.parseParens()
	case tokWord, tokString:
		if t.kind == tokWord && p.peekAt(1).kind == tokLParen {
			return p.parseCall()
		}
		lhs, err := p.parseValue()
		if err != nil {
			return node{}, err
		}
		if p.peek().kind == tokOp {
			return p.parseComparison(lhs)
		}
		return lhs, nil
	default:
		return node{}, errorf(t.pos, "unexpected %s", describe(t))
	}
}

// parseParens parses "(x, y, ...)". A single element that is a predicate is
// a group; anything else is an array.
func (p *parser) parseParens() (node, error) {
	open := p.next()

	var elems []node
	if p.peek().kind != tokRParen {
		for {
			n, err := p.parseOr(false)
			if err != nil {
				return node{}, err
			}
			elems = append(elems, n)
			if p.peek().kind != tokComma {
				break
			}
			p.next()
		}
	}
	if _, err := p.expect(tokRParen); err != nil {
		return node{}, err
	}

	if len(elems) == 1 && (elems[0].kind == nodePred || elems[0].kind == nodeCall) {
		return elems[0], nil
	}
	return node{kind: nodeArray, pos: open.pos, args: elems}, nil
}

func (p *parser) parseCall() (node, error) {
	name := p.next()
	p.next() // (

	call := node{kind: nodeCall, pos: name.pos, name: name.text}
	if p.peek().kind != tokRParen {
		for {
			n, err := p.parseOr(false)
			if err != nil {
				return node{}, err
			}
			call.args = append(call.args, n)
			if p.peek().kind != tokComma {
				break
			}
			p.next()
		}
	}
	if _, err := p.expect(tokRParen); err != nil {
		return node{}, err
	}
	return call, nil
}

// parseComparison parses the operator and right-hand side after a field.
func (p *parser) parseComparison(field node) (node, error) {
	opTok := p.next()

	var name string
	switch opTok.text {
	case "=":
		// field=name=value
		if p.peek().kind == tokWord && p.peekAt(1).kind == tokOp && p.peekAt(1).text == "=" {
			name = p.next().text
			p.next()
		} else {
			name = "eq"
		}
	case "==":
		name = "eq"
	case "!=":
		name = "ne"
	case "<":
		name = "lt"
	case "<=":
		name = "le"
	case ">":
		name = "gt"
	case ">=":
		name = "ge"
	default:
		return node{}, errorf(opTok.pos, "unknown operator %q", opTok.text)
	}

	var rhs node
	var err error
	if p.peek().kind == tokLParen {
		rhs, err = p.parseParens()
	} else {
		rhs, err = p.parseValue()
	}
	if err != nil {
		return node{}, err
	}

	return node{kind: nodeCall, pos: field.pos, name: name, args: []node{field, rhs}}, nil
}

// parseValue parses a single word or quoted string.
func (p *parser) parseValue() (node, error) {
	t := p.next()
	switch t.kind {
	case tokString:
		return node{kind: nodeValue, pos: t.pos, word: t.text, value: queryir.Lit(ir.IRString(t.text))}, nil
	case tokWord:
		v, err := parseWord(t)
		if err != nil {
			return node{}, err
		}
		word, uerr := url.PathUnescape(t.text)
		if uerr != nil {
			word = t.text
		}
		return node{kind: nodeValue, pos: t.pos, word: word, value: v}, nil
	default:
		return node{}, errorf(t.pos, "expected a value, found %s", describe(t))
	}
}

func parseWord(t token) (queryir.Operand, error) {
	w := t.text

	if strings.HasPrefix(w, "$") {
		idx, err := strconv.Atoi(w[1:])
		if err != nil || idx < 1 {
			return nil, errorf(t.pos, "invalid parameter reference %q", w)
		}
		return queryir.Param{Index: idx}, nil
	}

	if typ, raw, ok := strings.Cut(w, ":"); ok {
		val, err := url.PathUnescape(raw)
		if err != nil {
			return nil, errorf(t.pos, "invalid escape in %q", w)
		}
		switch typ {
		case "string":
			return queryir.Lit(ir.IRString(val)), nil
		case "number":
			n, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return nil, errorf(t.pos, "%q is not an integer", val)
			}
			return queryir.Lit(ir.IRInt(n)), nil
		case "boolean":
			b, err := strconv.ParseBool(val)
			if err != nil {
				return nil, errorf(t.pos, "%q is not a boolean", val)
			}
			return queryir.Lit(ir.IRBool(b)), nil
		}
		// Unknown prefixes are part of the word ("urn:x").
	}

	switch w {
	case "true":
		return queryir.Lit(ir.IRBool(true)), nil
	case "false":
		return queryir.Lit(ir.IRBool(false)), nil
	case "null":
		return queryir.Lit(ir.IRNull{}), nil
	}

	if n, err := strconv.ParseInt(w, 10, 64); err == nil {
		return queryir.Lit(ir.IRInt(n)), nil
	}

	s, err := url.PathUnescape(w)
	if err != nil {
		return nil, errorf(t.pos, "invalid escape in %q", w)
	}
	return queryir.Lit(ir.IRString(s)), nil
}
