// Package queryir is the intermediate representation of record queries.
//
// A Query is a tree of predicates evaluated against one record at a time.
// The query parser (internal/rql) produces it and the matcher compiler
// (internal/querymatch) consumes it:
//
//	[query text] → [Query IR] → [Matcher + Window]
//
// SEALED INTERFACES:
//
// Predicate and Operand are sealed interfaces using the marker method pattern.
// Only types in this package implement them, so compilers can switch
// exhaustively:
//
//	switch p := pred.(type) {
//	case Compare:
//	    // field <op> value
//	case And:
//	    // conjunction
//	...
//	}
//
// DIRECTIVES:
//
// Limit is a directive, not a filter. It never rejects a record; it describes
// the skip/take window the executor applies to matches. It may appear
// anywhere in the tree. Only the first Limit in source order (pre-order,
// left to right) is honored; Validate reports the rest.
//
// VALUES:
//
// Literals are ir.IRValue, so there are no floats. Parameters ($1, $2, ...)
// are placeholders resolved against the caller's parameter list when the
// query is compiled.
package queryir
