// Copyright © 2018 One Concern

// Package walk produces the paths of files to be indexed, and locates the store root.
package walk

import (
	"os"
	"path/filepath"

	"github.com/oneconcern/hashlink/pkg/walk/status"
	"github.com/spf13/afero"
)

type (
	// Func is called on every file produced by a walk. Returning an error stops the walk.
	Func func(path string, info os.FileInfo) error

	// ErrFunc is called on a path which could not be read. Returning nil skips that path
	// and resumes the walk.
	ErrFunc func(path string, err error) error
)

// Files calls fn on every regular file under dir, in lexical order.
//
// Symbolic links are not followed. Directories listed in skip are not entered.
// The walk stops on the first path which cannot be read.
func Files(fs afero.Fs, dir string, fn Func, skip ...string) error {
	return Walk(fs, dir, fn, nil, skip...)
}

// Walk is like Files, but hands unreadable paths over to onErr.
//
// A nil onErr stops the walk on the first error.
func Walk(fs afero.Fs, dir string, fn Func, onErr ErrFunc, skip ...string) error {
	skipped := make(map[string]struct{}, len(skip))
	for _, s := range skip {
		skipped[filepath.Clean(s)] = struct{}{}
	}

	return afero.Walk(fs, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if onErr == nil {
				return err
			}
			return onErr(path, err)
		}
		if info.IsDir() {
			if _, ok := skipped[filepath.Clean(path)]; ok {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		return fn(path, info)
	})
}

// Paths calls fn on every path of a list: directories are expanded with Files,
// anything else is passed as is.
func Paths(fs afero.Fs, paths []string, fn Func, skip ...string) error {
	for _, path := range paths {
		info, err := lstat(fs, path)
		if err != nil {
			return err
		}
		if info.IsDir() {
			if err := Files(fs, path, fn, skip...); err != nil {
				return err
			}
			continue
		}
		if err := fn(path, info); err != nil {
			return err
		}
	}
	return nil
}

// FindRoot looks for a directory called name, starting from start and up to the root of the file system.
//
// When start is a file, the search starts from its parent directory.
func FindRoot(fs afero.Fs, start, name string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}

	info, err := fs.Stat(dir)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		dir = filepath.Dir(dir)
	}

	for {
		candidate := filepath.Join(dir, name)
		info, err := fs.Stat(candidate)
		switch {
		case err == nil && info.IsDir():
			return candidate, nil
		case err != nil && !os.IsNotExist(err):
			return "", err
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", status.ErrRootNotFound.Wrapf("no %q directory above %s", name, start)
		}
		dir = parent
	}
}

func lstat(fs afero.Fs, path string) (os.FileInfo, error) {
	if lst, ok := fs.(afero.Lstater); ok {
		info, _, err := lst.LstatIfPossible(path)
		return info, err
	}
	return fs.Stat(path)
}
