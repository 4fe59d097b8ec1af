package reconcile

import (
	"fmt"

	"github.com/oneconcern/hashlink/pkg/reconcile/status"
)

// CollisionError is returned when a store entry is found at the address of a source file,
// but with a different content. This is either a digest collision or a corrupted store entry.
//
// Neither file is modified.
type CollisionError struct {
	Source string
	Target string
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("%v: %s and %s", status.ErrCollision, e.Source, e.Target)
}

// Is matches status.ErrCollision
func (e *CollisionError) Is(target error) bool {
	return target == status.ErrCollision
}

// DuplicateError is returned by the Forbid policy when the store entry is a distinct
// file with the same content as the source.
type DuplicateError struct {
	Source string
	Target string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%v: %s exists but is a different file than %s", status.ErrDuplicate, e.Target, e.Source)
}

// Is matches status.ErrDuplicate
func (e *DuplicateError) Is(target error) bool {
	return target == status.ErrDuplicate
}
