// Package ident generates record identifiers.
package ident

import (
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/perstore/internal/ir"
)

// Generator produces identifiers for records stored without one.
type Generator interface {
	Generate() ir.IRValue
}

// UUIDv7Generator generates time-sortable UUIDv7 identifiers.
//
// UUIDv7 embeds a timestamp in the most significant bits. Because string
// identifiers are stored in byte order, records with generated identifiers
// are iterated in roughly creation order.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 in hyphenated form
// ("01890a5d-ac96-774b-bcce-b302099a8057").
//
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() ir.IRValue {
	return ir.IRString(uuid.Must(uuid.NewV7()).String())
}

// FixedGenerator returns predetermined identifiers in order.
//
// Thread-safety: FixedGenerator is safe for concurrent use via internal mutex.
type FixedGenerator struct {
	mu  sync.Mutex
	ids []ir.IRValue
	idx int
}

// NewFixedGenerator creates a generator that returns ids in order.
//
// Example:
//
//	gen := NewFixedGenerator(ir.IRString("a"), ir.IRInt(2))
//	gen.Generate() // "a"
//	gen.Generate() // 2
//	gen.Generate() // panic: all identifiers exhausted
func NewFixedGenerator(ids ...ir.IRValue) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

// Generate returns the next predetermined identifier.
//
// Panics if all identifiers have been consumed, so a test that writes more
// records than it planned for fails loudly.
func (g *FixedGenerator) Generate() ir.IRValue {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic("FixedGenerator: all identifiers exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}

// Remaining returns how many identifiers are left.
func (g *FixedGenerator) Remaining() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.ids) - g.idx
}
