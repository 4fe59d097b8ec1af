// Package status exports errors produced by the reconcile package.
package status

import "github.com/oneconcern/hashlink/pkg/errors"

var (
	// ErrCollision indicates a store entry with the same digest but different content
	ErrCollision = errors.New("digest collision: content differs")

	// ErrDuplicate indicates a distinct store entry with identical content, when duplicates are forbidden
	ErrDuplicate = errors.New("target exists as a distinct file")

	// ErrNotRegular indicates that a source or target is not a regular file
	ErrNotRegular = errors.New("not a regular file")

	// ErrUnknownPolicy indicates an invalid reconciliation policy name
	ErrUnknownPolicy = errors.New("unknown reconciliation policy")
)
