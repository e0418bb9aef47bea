// Package ir provides the value model for stored records.
//
// A record is an IRObject: a map of field names to IRValue elements. The
// value types are sealed so every consumer (codec, query matcher, CLI
// output) can switch exhaustively over them.
//
// Key design constraints:
//   - NO float types anywhere - numbers are int64 so key encoding and
//     comparisons stay exact
//   - IRNull is an explicit value; a Go nil IRValue means "absent"
//   - ir imports nothing internal; every other package may import it
package ir
