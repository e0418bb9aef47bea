// Package store persists records in an ordered key-value store.
//
// A record is an ir.IRObject whose identifier lives in one of its own fields
// (IDProperty, "id" by default). Records are stored under an
// order-preserving encoding of that identifier, so queries see them in
// identifier order: integers ascending, then strings bytewise.
//
// # Writes
//
// Put resolves the identifier (explicit option, then the record's own field,
// then a freshly generated one), writes the record and returns the
// identifier. With NoOverwrite the write is create-if-absent: an occupied key
// fails with ALREADY_EXISTS, while lock contention from a concurrent creator
// is retried under the store's retry policy and surfaces as LOCK_CONFLICT
// only once the policy gives up. Unconditional puts are a single attempt.
//
// # Queries
//
// Query compiles query text to a matcher, opens a cursor over the store's
// namespace and streams matching records in key order. A limit(count, start)
// directive skips the first start matches, delivers count more and then
// closes the cursor, so the rest of the range is never read.
//
// # Errors
//
// Store-level failures are *Error values with a Code. Missing keys are not
// errors: Get reports them through its bool result and Delete ignores them.
// All other errors from the kv layer are returned as they are.
package store
