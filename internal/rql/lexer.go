package rql

import (
	"fmt"
	"strings"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokWord
	tokString
	tokLParen
	tokRParen
	tokAmp
	tokPipe
	tokComma
	tokOp // = == != < <= > >=
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of query"
	case tokWord:
		return "word"
	case tokString:
		return "string"
	case tokLParen:
		return "'('"
	case tokRParen:
		return "')'"
	case tokAmp:
		return "'&'"
	case tokPipe:
		return "'|'"
	case tokComma:
		return "','"
	case tokOp:
		return "operator"
	default:
		return fmt.Sprintf("token(%d)", int(k))
	}
}

type token struct {
	kind tokenKind
	text string
	pos  int
}

// ParseError reports a syntax error at a byte offset of the query text.
type ParseError struct {
	Pos int
	Msg string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("rql: position %d: %s", e.Pos, e.Msg)
}

func errorf(pos int, format string, args ...any) *ParseError {
	return &ParseError{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

const wordStops = "()&|,=<>!\"' \t\r\n"

func lex(input string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(input) {
		c := input[i]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			i++
		case c == '(':
			toks = append(toks, token{tokLParen, "(", i})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")", i})
			i++
		case c == '&':
			toks = append(toks, token{tokAmp, "&", i})
			i++
		case c == '|':
			toks = append(toks, token{tokPipe, "|", i})
			i++
		case c == ',':
			toks = append(toks, token{tokComma, ",", i})
			i++
		case c == '=' || c == '<' || c == '>' || c == '!':
			op := string(c)
			if i+1 < len(input) && input[i+1] == '=' && c != '=' {
				op += "="
			} else if c == '=' && i+1 < len(input) && input[i+1] == '=' {
				op = "=="
			}
			if op == "!" {
				return nil, errorf(i, "'!' must be followed by '='")
			}
			toks = append(toks, token{tokOp, op, i})
			i += len(op)
		case c == '"' || c == '\'':
			s, n, err := lexString(input[i:])
			if err != nil {
				return nil, errorf(i, "%v", err)
			}
			toks = append(toks, token{tokString, s, i})
			i += n
		default:
			start := i
			for i < len(input) && !strings.ContainsRune(wordStops, rune(input[i])) {
				i++
			}
			toks = append(toks, token{tokWord, input[start:i], start})
		}
	}
	toks = append(toks, token{tokEOF, "", len(input)})
	return toks, nil
}

// lexString reads a quoted string starting at s[0] and returns its value and
// the number of bytes consumed. Backslash escapes the next byte.
func lexString(s string) (string, int, error) {
	quote := s[0]
	var b strings.Builder
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			if i+1 >= len(s) {
				return "", 0, fmt.Errorf("unterminated string")
			}
			i++
			b.WriteByte(s[i])
		case quote:
			return b.String(), i + 1, nil
		default:
			b.WriteByte(s[i])
		}
	}
	return "", 0, fmt.Errorf("unterminated string")
}
