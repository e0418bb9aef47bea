package queryir

// Walk visits p and its descendants in pre-order, left to right. Returning
// false from fn stops descent into that node's children.
func Walk(p Predicate, fn func(Predicate) bool) {
	if p == nil || !fn(p) {
		return
	}
	switch n := p.(type) {
	case And:
		for _, c := range n.Predicates {
			Walk(c, fn)
		}
	case Or:
		for _, c := range n.Predicates {
			Walk(c, fn)
		}
	case Not:
		Walk(n.Predicate, fn)
	}
}

// Limits returns every Limit directive in source order.
func Limits(q Query) []Limit {
	var out []Limit
	Walk(q.Filter, func(p Predicate) bool {
		if l, ok := p.(Limit); ok {
			out = append(out, l)
		}
		return true
	})
	return out
}

// Params returns the highest parameter index referenced by q, or 0.
func Params(q Query) int {
	highest := 0
	visit := func(o Operand) {
		if p, ok := o.(Param); ok && p.Index > highest {
			highest = p.Index
		}
	}
	Walk(q.Filter, func(p Predicate) bool {
		switch n := p.(type) {
		case Compare:
			visit(n.Value)
		case In:
			for _, v := range n.Values {
				visit(v)
			}
		case Contains:
			visit(n.Value)
		case Call:
			for _, a := range n.Args {
				visit(a)
			}
		case Limit:
			visit(n.Count)
			visit(n.Start)
			visit(n.MaxCount)
		}
		return true
	})
	return highest
}
