// Package cursor streams decoded records out of a raw kv iterator.
//
// A Cursor is single-shot: it is consumed by exactly one call to ForEach or
// Read. A producer goroutine pulls pairs from the iterator one at a time and
// hands them to the consumer through a small read-ahead buffer, so memory
// use is bounded regardless of the size of the range.
//
// # Cancellation
//
// Close ends the stream at once and may be called from any goroutine,
// including from inside the receiver passed to ForEach. Pairs already in
// flight when Close is called are discarded, never delivered. Closing is not
// an error: ForEach returns nil after Close. Cancelling the context passed to
// ForEach or Read behaves like Close except that ctx.Err() is returned.
//
// Whatever ends the stream, ForEach and Read return only after the raw
// iterator has been released.
package cursor
