// Package codec translates between record identifiers and records and the
// raw byte pairs held by the kv layer.
//
// Identifier keys are encoded so that bytewise order matches natural order:
//
//	int:    0x01 | 8-byte big-endian with the sign bit flipped
//	string: 0x02 | raw UTF-8 bytes
//
// All integers sort before all strings. Every key starts with a namespace
// header "namespace 0x00"; the default namespace is the bare 0x00 byte. Since
// a namespace never contains NUL, Bounds returns a closed range covering
// exactly one namespace, the default one included.
//
// Record values are JSON objects with sorted keys.
package codec

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/perstore/internal/ir"
)

const (
	tagInt    byte = 0x01
	tagString byte = 0x02

	namespaceSep byte = 0x00
)

var (
	ErrUnsupportedKey = errors.New("codec: identifier must be an integer or a string")
	ErrMalformedKey   = errors.New("codec: malformed key")
	ErrForeignKey     = errors.New("codec: key outside namespace")
	ErrBadNamespace   = errors.New("codec: namespace must not contain NUL bytes")
)

// Codec encodes keys and values for one namespace.
type Codec struct {
	prefix []byte
}

// New creates a codec. An empty namespace selects the default namespace.
func New(namespace string) (*Codec, error) {
	if bytes.IndexByte([]byte(namespace), namespaceSep) >= 0 {
		return nil, ErrBadNamespace
	}
	prefix := make([]byte, 0, len(namespace)+1)
	prefix = append(prefix, namespace...)
	prefix = append(prefix, namespaceSep)
	return &Codec{prefix: prefix}, nil
}

// Namespace returns the namespace the codec was created with.
func (c *Codec) Namespace() string {
	return string(c.prefix[:len(c.prefix)-1])
}

// Bounds returns the [lower, upper) key range of the namespace.
func (c *Codec) Bounds() (lower, upper []byte) {
	lower = bytes.Clone(c.prefix)
	upper = bytes.Clone(c.prefix)
	upper[len(upper)-1] = namespaceSep + 1
	return lower, upper
}

// EncodeKey encodes an identifier.
func (c *Codec) EncodeKey(id ir.IRValue) ([]byte, error) {
	key := make([]byte, 0, len(c.prefix)+9)
	key = append(key, c.prefix...)

	switch v := id.(type) {
	case ir.IRInt:
		key = append(key, tagInt)
		key = binary.BigEndian.AppendUint64(key, uint64(v)^(1<<63))
	case ir.IRString:
		key = append(key, tagString)
		key = append(key, string(v)...)
	default:
		return nil, fmt.Errorf("%w: got %T", ErrUnsupportedKey, id)
	}
	return key, nil
}

// DecodeKey recovers the identifier from an encoded key.
func (c *Codec) DecodeKey(raw []byte) (ir.IRValue, error) {
	if !bytes.HasPrefix(raw, c.prefix) {
		return nil, ErrForeignKey
	}
	body := raw[len(c.prefix):]
	if len(body) == 0 {
		return nil, ErrMalformedKey
	}

	switch body[0] {
	case tagInt:
		if len(body) != 9 {
			return nil, fmt.Errorf("%w: integer key has %d payload bytes", ErrMalformedKey, len(body)-1)
		}
		return ir.IRInt(int64(binary.BigEndian.Uint64(body[1:]) ^ (1 << 63))), nil
	case tagString:
		return ir.IRString(body[1:]), nil
	default:
		return nil, fmt.Errorf("%w: unknown tag 0x%02x", ErrMalformedKey, body[0])
	}
}

// EncodeValue encodes a record.
func (c *Codec) EncodeValue(rec ir.IRObject) ([]byte, error) {
	if rec == nil {
		rec = ir.IRObject{}
	}
	data, err := rec.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return data, nil
}

// DecodeValue decodes a record.
func (c *Codec) DecodeValue(raw []byte) (ir.IRObject, error) {
	var rec ir.IRObject
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}
