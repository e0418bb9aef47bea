package testutil

import (
	"fmt"
	"sync"

	"github.com/roach88/perstore/internal/ir"
)

// SequenceGenerator hands out "<prefix>-1", "<prefix>-2", ... identifiers.
//
// Unlike ident.FixedGenerator it never runs out, and it can be reset so the
// same test scenario produces identical identifiers on every run.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type SequenceGenerator struct {
	mu     sync.Mutex
	prefix string
	seq    int64
}

// NewSequenceGenerator creates a generator starting at 1. An empty prefix
// defaults to "rec".
func NewSequenceGenerator(prefix string) *SequenceGenerator {
	if prefix == "" {
		prefix = "rec"
	}
	return &SequenceGenerator{prefix: prefix}
}

// Generate returns the next identifier.
func (g *SequenceGenerator) Generate() ir.IRValue {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return ir.IRString(fmt.Sprintf("%s-%d", g.prefix, g.seq))
}

// Count returns how many identifiers have been generated.
func (g *SequenceGenerator) Count() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seq
}

// Reset restarts the sequence at 1.
func (g *SequenceGenerator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq = 0
}
