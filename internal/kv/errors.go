package kv

import "errors"

var (
	ErrClosed          = errors.New("kv: store is closed")
	ErrNotFound        = errors.New("kv: key not found")
	ErrExists          = errors.New("kv: key already exists")
	ErrLocked          = errors.New("kv: key is locked by another writer")
	ErrIteratorInvalid = errors.New("kv: iterator is not positioned")
)

// IsNotFound reports whether err is a missing-key condition.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsLocked reports whether err is transient write contention.
func IsLocked(err error) bool {
	return errors.Is(err, ErrLocked)
}
