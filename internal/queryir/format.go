package queryir

import (
	"strconv"
	"strings"

	"github.com/roach88/perstore/internal/ir"
)

// String renders the query in call notation; parsing the result yields an
// equivalent query. An empty filter renders as "".
func (q Query) String() string {
	if q.Filter == nil {
		return ""
	}
	var b strings.Builder
	writePredicate(&b, q.Filter)
	return b.String()
}

func writePredicate(b *strings.Builder, p Predicate) {
	switch n := p.(type) {
	case Compare:
		writeCall(b, string(n.Op), fieldArg(n.Field), n.Value)
	case In:
		name := "in"
		if n.Negate {
			name = "out"
		}
		b.WriteString(name)
		b.WriteByte('(')
		b.WriteString(escapeWord(n.Field))
		b.WriteString(",(")
		for i, v := range n.Values {
			if i > 0 {
				b.WriteByte(',')
			}
			writeOperand(b, v)
		}
		b.WriteString("))")
	case Contains:
		writeCall(b, "contains", fieldArg(n.Field), n.Value)
	case Exists:
		writeCall(b, "exists", fieldArg(n.Field))
	case And:
		writeGroup(b, "and", n.Predicates)
	case Or:
		writeGroup(b, "or", n.Predicates)
	case Not:
		b.WriteString("not(")
		writePredicate(b, n.Predicate)
		b.WriteByte(')')
	case Call:
		writeCall(b, n.Name, n.Args...)
	case Limit:
		args := []Operand{n.Count}
		if n.Start != nil || n.MaxCount != nil {
			start := n.Start
			if start == nil {
				start = Lit(ir.IRInt(0))
			}
			args = append(args, start)
		}
		if n.MaxCount != nil {
			args = append(args, n.MaxCount)
		}
		writeCall(b, "limit", args...)
	}
}

// fieldArg renders a field name as a bare-word operand.
func fieldArg(field string) Operand {
	return Lit(ir.IRString(field))
}

func writeGroup(b *strings.Builder, name string, preds []Predicate) {
	b.WriteString(name)
	b.WriteByte('(')
	for i, p := range preds {
		if i > 0 {
			b.WriteByte(',')
		}
		writePredicate(b, p)
	}
	b.WriteByte(')')
}

func writeCall(b *strings.Builder, name string, args ...Operand) {
	b.WriteString(name)
	b.WriteByte('(')
	for i, a := range args {
		if i > 0 {
			b.WriteByte(',')
		}
		writeOperand(b, a)
	}
	b.WriteByte(')')
}

func writeOperand(b *strings.Builder, o Operand) {
	switch v := o.(type) {
	case Param:
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(v.Index))
	case Literal:
		writeValue(b, v.Value)
	}
}

func writeValue(b *strings.Builder, v ir.IRValue) {
	switch val := v.(type) {
	case ir.IRInt:
		b.WriteString(strconv.FormatInt(int64(val), 10))
	case ir.IRBool:
		b.WriteString(strconv.FormatBool(bool(val)))
	case ir.IRNull:
		b.WriteString("null")
	case ir.IRString:
		s := string(val)
		if needsTypedString(s) {
			b.WriteString("string:")
		}
		b.WriteString(escapeWord(s))
	case ir.IRArray:
		b.WriteByte('(')
		for i, elem := range val {
			if i > 0 {
				b.WriteByte(',')
			}
			writeValue(b, elem)
		}
		b.WriteByte(')')
	}
}

// needsTypedString reports whether a bare word would be read back as
// something other than this string.
func needsTypedString(s string) bool {
	switch s {
	case "true", "false", "null", "":
		return true
	}
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}

const hexDigits = "0123456789ABCDEF"

// escapeWord percent-encodes every byte outside [A-Za-z0-9._~-], which
// covers all query syntax characters.
func escapeWord(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9',
			c == '.', c == '_', c == '~', c == '-':
			b.WriteByte(c)
		default:
			b.WriteByte('%')
			b.WriteByte(hexDigits[c>>4])
			b.WriteByte(hexDigits[c&0x0f])
		}
	}
	return b.String()
}
