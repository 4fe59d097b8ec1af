// Package status exports errors produced by the hasher package.
package status

import "github.com/oneconcern/hashlink/pkg/errors"

var (
	// ErrUnknownAlgorithm indicates a hash algorithm name that is not supported
	ErrUnknownAlgorithm = errors.New("unknown hash algorithm")
)
