// Package cache abstracts the shared key-value store used for cross-process
// task signaling: task ownership registration and stop flags, both written
// with a time-to-live. The store is the only cross-instance shared mutable
// state in the execution core; all access is atomic get/set with TTL.
package cache

import "context"

// ErrNotFound is returned by Get when the key is absent or expired.
var ErrNotFound = &NotFoundError{}

// NotFoundError indicates a cache miss.
type NotFoundError struct{ Key string }

func (e *NotFoundError) Error() string {
	if e.Key == "" {
		return "cache: key not found"
	}
	return "cache: key not found: " + e.Key
}

// Is lets callers match any NotFoundError against ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}

// Store is the minimal TTL key-value contract required by the queue
// manager. Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the value for key or ErrNotFound on a miss.
	Get(ctx context.Context, key string) (string, error)

	// SetEx atomically sets key to value with the given TTL in seconds.
	SetEx(ctx context.Context, key, value string, ttlSeconds int) error
}
