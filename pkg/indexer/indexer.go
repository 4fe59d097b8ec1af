// Package indexer adds files to a content-addressed store.
//
// Each file is hashed, its address in the store is derived from the digest and the file
// name, then the file and its store entry are reconciled into a single inode.
package indexer

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/oneconcern/hashlink/pkg/address"
	"github.com/oneconcern/hashlink/pkg/hasher"
	"github.com/oneconcern/hashlink/pkg/reconcile"
	"github.com/oneconcern/hashlink/pkg/walk"
	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type (
	// Digester computes the digest of a file
	Digester interface {
		Digest(path string) (string, error)
	}

	// Linker makes a file and its store entry the same inode
	Linker interface {
		Reconcile(src, dst string) (reconcile.Outcome, error)
	}

	// Observer is notified before and after a file is processed
	Observer func(Event)

	// Event describes the progress on a single file.
	//
	// Before processing, only Path is set. Once done, either Result or Err is set.
	Event struct {
		Path   string
		Done   bool
		Result Result
		Err    error
	}

	// Result of adding a file to the store
	Result struct {
		Path    string
		Digest  string
		Target  string
		Outcome reconcile.Outcome
		Size    int64
	}

	// Stats sums up the work done by an indexer
	Stats struct {
		Stored            int
		AlreadyLinked     int
		Relinked          int
		Failed            int
		BytesDeduplicated int64 // size of files replaced by a link to identical content
	}
)

// Files returns the number of files processed
func (s Stats) Files() int {
	return s.Stored + s.AlreadyLinked + s.Relinked + s.Failed
}

// Indexer adds files to the store located at its root directory
type Indexer struct {
	root      string
	digester  Digester
	linker    Linker
	observer  Observer
	keepGoing bool
	fs        afero.Fs
	l         *zap.Logger

	mx    sync.Mutex
	stats Stats
}

// New indexer for the store located at root
func New(root string, opts ...Option) *Indexer {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	ix := &Indexer{
		root:     root,
		digester: hasher.New(),
		linker:   reconcile.New(),
		fs:       afero.NewOsFs(),
		l:        zap.NewNop(),
	}
	for _, apply := range opts {
		apply(ix)
	}
	return ix
}

// Root of the store
func (ix *Indexer) Root() string {
	return ix.root
}

// Stats returns a summary of the files processed so far
func (ix *Indexer) Stats() Stats {
	ix.mx.Lock()
	defer ix.mx.Unlock()
	return ix.stats
}

// AddFile adds a single file to the store.
//
// The file is hashed, then linked to its address in the store.
func (ix *Indexer) AddFile(path string) (Result, error) {
	ix.notify(Event{Path: path})

	res, err := ix.addFile(path)
	ix.record(res, err)
	ix.notify(Event{Path: path, Done: true, Result: res, Err: err})

	return res, err
}

func (ix *Indexer) addFile(path string) (Result, error) {
	res := Result{Path: path}

	info, err := os.Lstat(path)
	if err != nil {
		return res, fmt.Errorf("adding %s: %w", path, err)
	}
	res.Size = info.Size()

	res.Digest, err = ix.digester.Digest(path)
	if err != nil {
		return res, err
	}

	res.Target = filepath.Join(ix.root, address.Path(res.Digest, filepath.Base(path)))

	res.Outcome, err = ix.linker.Reconcile(path, res.Target)
	if err != nil {
		return res, err
	}

	ix.l.Debug("added",
		zap.String("path", path),
		zap.String("digest", res.Digest),
		zap.Stringer("outcome", res.Outcome),
	)
	return res, nil
}

// AddDirectory adds all regular files under dir to the store. The store itself is skipped.
//
// When keeping going, unreadable subdirectories are skipped and reported in the returned error.
func (ix *Indexer) AddDirectory(dir string) error {
	var errs error
	onErr := func(path string, err error) error {
		err = fmt.Errorf("walking %s: %w", path, err)
		if !ix.keepGoing {
			return err
		}
		ix.l.Warn("skipped unreadable path", zap.String("path", path), zap.Error(err))
		errs = multierr.Append(errs, err)
		return nil
	}

	err := walk.Walk(ix.fs, dir, func(path string, _ os.FileInfo) error {
		_, err := ix.AddFile(path)
		if err != nil && ix.keepGoing {
			errs = multierr.Append(errs, err)
			return nil
		}
		return err
	}, onErr, ix.skipped(dir)...)

	return multierr.Append(errs, err)
}

// AddAll adds files and directories to the store
func (ix *Indexer) AddAll(paths []string) error {
	var errs error
	for _, path := range paths {
		var err error
		info, statErr := os.Stat(path)
		if statErr == nil && info.IsDir() {
			err = ix.AddDirectory(path)
		} else {
			_, err = ix.AddFile(path)
		}

		if err == nil {
			continue
		}
		if !ix.keepGoing {
			return err
		}
		errs = multierr.Append(errs, err)
	}
	return errs
}

// skipped returns the store root as it appears when walking dir
func (ix *Indexer) skipped(dir string) []string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return []string{ix.root}
	}
	rel, err := filepath.Rel(abs, ix.root)
	if err != nil {
		return []string{ix.root}
	}
	return []string{ix.root, filepath.Join(dir, rel)}
}

func (ix *Indexer) notify(e Event) {
	if ix.observer != nil {
		ix.observer(e)
	}
}

func (ix *Indexer) record(res Result, err error) {
	ix.mx.Lock()
	defer ix.mx.Unlock()
	if err != nil {
		ix.stats.Failed++
		return
	}
	switch res.Outcome {
	case reconcile.Stored:
		ix.stats.Stored++
	case reconcile.AlreadyLinked:
		ix.stats.AlreadyLinked++
	case reconcile.Relinked:
		ix.stats.Relinked++
		ix.stats.BytesDeduplicated += res.Size
	}
}
