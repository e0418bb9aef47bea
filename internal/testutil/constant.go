package testutil

import "github.com/roach88/perstore/internal/ir"

// ConstantGenerator returns the same identifier every time. Tests use it to
// force generated identifiers to collide.
//
// Thread-safety: ConstantGenerator is stateless and safe for concurrent use.
type ConstantGenerator struct {
	id ir.IRValue
}

// NewConstantGenerator creates a generator that always returns id. A nil id
// defaults to "constant-id".
func NewConstantGenerator(id ir.IRValue) *ConstantGenerator {
	if id == nil {
		id = ir.IRString("constant-id")
	}
	return &ConstantGenerator{id: id}
}

// Generate returns the fixed identifier.
func (g *ConstantGenerator) Generate() ir.IRValue {
	return g.id
}
