// Copyright © 2018 One Concern

// Package status declares error constants returned by the walk package.
package status

import "github.com/oneconcern/hashlink/pkg/errors"

var (
	// ErrRootNotFound indicates that no store root was found up to the root of the file system
	ErrRootNotFound = errors.New("store root not found")
)
