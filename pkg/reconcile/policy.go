package reconcile

import (
	"fmt"
	"strings"

	"github.com/oneconcern/hashlink/pkg/reconcile/status"
)

// Policy decides what happens when a store target already exists as a distinct
// file with the same content as the source.
//
// Whatever the policy, source and target end up sharing one inode. The policy decides
// which inode survives, and with it the permissions, ownership and other hard links
// carried by that inode.
type Policy uint8

const (
	// Strict replaces the source with a hard link to the store entry: the store inode survives
	Strict Policy = iota

	// Merge replaces the store entry with a hard link to the source: the source inode survives
	Merge

	// Forbid refuses to reconcile distinct files and reports a DuplicateError
	Forbid
)

var policyNames = map[Policy]string{
	Strict: "strict",
	Merge:  "merge",
	Forbid: "forbid",
}

func (p Policy) String() string {
	if n, ok := policyNames[p]; ok {
		return n
	}
	return fmt.Sprintf("policy(%d)", p)
}

// ParsePolicy maps a configuration string to a Policy
func ParsePolicy(name string) (Policy, error) {
	for p, n := range policyNames {
		if strings.EqualFold(n, name) {
			return p, nil
		}
	}
	return Strict, status.ErrUnknownPolicy.Wrapf("%q", name)
}

// Outcome tells what the reconciler did
type Outcome uint8

const (
	// Stored means the target was absent and has been created as a hard link to the source
	Stored Outcome = iota + 1

	// AlreadyLinked means source and target were already the same file: nothing was done
	AlreadyLinked

	// Relinked means a duplicate was found and one of the two names now links to the other's inode
	Relinked
)

func (o Outcome) String() string {
	switch o {
	case Stored:
		return "stored"
	case AlreadyLinked:
		return "already-linked"
	case Relinked:
		return "relinked"
	default:
		return "unknown"
	}
}
