// Package status exports errors produced by the hashcache package.
//
// NOTE: a cache miss is not an error and has no sentinel here.
package status

import "github.com/oneconcern/hashlink/pkg/errors"

var (
	// ErrNoDir indicates that no directory was configured to persist the cache
	ErrNoDir = errors.New("hash cache directory is required")

	// ErrUnknownBackend indicates an invalid cache backend name
	ErrUnknownBackend = errors.New("unknown hash cache backend")

	// ErrUnknownPolicy indicates an invalid identity policy name
	ErrUnknownPolicy = errors.New("unknown identity policy")

	// ErrCorruptEntry indicates a persisted cache entry that cannot be decoded
	ErrCorruptEntry = errors.New("corrupt hash cache entry")

	// ErrClosed indicates an operation on a closed cache
	ErrClosed = errors.New("hash cache is closed")
)
