// Package harness runs record-store scenarios written in YAML.
//
// A scenario seeds records, then executes put, get, delete and query steps
// against a fresh in-memory store, checking each step's expect block. Every
// step is recorded in a trace whose canonical JSON form can be compared to
// a golden file:
//
//	name: limit-window
//	description: limit(2) stops after two matches
//	setup:
//	  records:
//	    - {id: 1, value: one}
//	    - {id: 2, value: two}
//	    - {id: 3, value: three}
//	steps:
//	  - query: {rql: "id>0&limit(2)"}
//	    expect:
//	      count: 2
//
// Identifiers generated during a scenario come from the ids list when one is
// given, otherwise from a sequence ("rec-1", "rec-2", ...), so traces are
// deterministic.
package harness
