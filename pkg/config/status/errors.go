// Package status declares error constants returned by the config package.
package status

import "github.com/oneconcern/hashlink/pkg/errors"

var (
	// ErrInvalidSettings indicates a configuration that cannot be used
	ErrInvalidSettings = errors.New("invalid settings")

	// ErrNoCacheDir indicates that no cache directory could be determined from the environment
	ErrNoCacheDir = errors.New("cannot determine cache directory: neither XDG_CACHE_HOME nor HOME is set")
)
