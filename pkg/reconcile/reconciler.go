// Package reconcile makes a source file and its store target resolve to a single inode.
//
// Reconcile evaluates an ordered decision table:
//
//  1. target absent: the target is created as a hard link to the source
//  2. target present and same inode as the source: nothing to do
//  3. target present, distinct inode, byte-identical content: one name is replaced
//     by a hard link to the other, as decided by the Policy
//  4. target present, distinct inode, different content: CollisionError
//
// Content equality is always established by a full comparison of both files. A matching
// digest is only trusted to place a file in the store, never to merge two inodes.
package reconcile

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	units "github.com/docker/go-units"
	"github.com/oneconcern/hashlink/internal/rand"
	"github.com/oneconcern/hashlink/pkg/reconcile/status"
	"go.uber.org/zap"
)

const (
	defaultDirPerm = 0o755
	compareBufSize = 64 * units.KiB
	tmpLinkPrefix  = ".hashlink-"
)

// Option configures a Reconciler
type Option func(*Reconciler)

// WithPolicy sets the reconciliation policy for duplicates. Defaults to Strict.
func WithPolicy(p Policy) Option {
	return func(r *Reconciler) {
		r.policy = p
	}
}

// WithLogger sets a logger for the reconciler
func WithLogger(l *zap.Logger) Option {
	return func(r *Reconciler) {
		if l != nil {
			r.l = l
		}
	}
}

// WithDirPerm sets the permissions of shard directories created in the store
func WithDirPerm(mode os.FileMode) Option {
	return func(r *Reconciler) {
		r.dirPerm = mode
	}
}

// Reconciler links source files to their store targets
type Reconciler struct {
	policy  Policy
	dirPerm os.FileMode
	l       *zap.Logger
}

// New builds a Reconciler
func New(opts ...Option) *Reconciler {
	r := &Reconciler{
		policy:  Strict,
		dirPerm: defaultDirPerm,
		l:       zap.NewNop(),
	}
	for _, apply := range opts {
		apply(r)
	}
	return r
}

// Policy used by this reconciler
func (r *Reconciler) Policy() Policy {
	return r.policy
}

// Reconcile makes src and dst the same inode, or fails without modifying anything.
func (r *Reconciler) Reconcile(src, dst string) (Outcome, error) {
	srcInfo, err := os.Lstat(src)
	if err != nil {
		return 0, fmt.Errorf("stat source: %w", err)
	}
	if !srcInfo.Mode().IsRegular() {
		return 0, status.ErrNotRegular.Wrapf("source %s", src)
	}

	dstInfo, err := os.Lstat(dst)
	switch {
	case os.IsNotExist(err):
		return r.store(src, dst)
	case err != nil:
		return 0, fmt.Errorf("stat target: %w", err)
	case !dstInfo.Mode().IsRegular():
		return 0, status.ErrNotRegular.Wrapf("target %s", dst)
	}

	if os.SameFile(srcInfo, dstInfo) {
		r.l.Debug("already stored", zap.String("source", src), zap.String("target", dst))
		return AlreadyLinked, nil
	}

	same, err := sameContent(src, dst, srcInfo.Size(), dstInfo.Size())
	if err != nil {
		return 0, err
	}
	if !same {
		return 0, &CollisionError{Source: src, Target: dst}
	}

	switch r.policy {
	case Strict:
		r.l.Info("replacing source with link to store", zap.String("source", src), zap.String("target", dst))
		if err := replaceWithLink(dst, src); err != nil {
			return 0, err
		}
	case Merge:
		r.l.Info("replacing store entry with link to source", zap.String("source", src), zap.String("target", dst))
		if err := replaceWithLink(src, dst); err != nil {
			return 0, err
		}
	default:
		return 0, &DuplicateError{Source: src, Target: dst}
	}
	return Relinked, nil
}

func (r *Reconciler) store(src, dst string) (Outcome, error) {
	r.l.Info("storing", zap.String("source", src), zap.String("target", dst))
	if err := os.MkdirAll(filepath.Dir(dst), r.dirPerm); err != nil {
		return 0, fmt.Errorf("creating store directory: %w", err)
	}
	if err := os.Link(src, dst); err != nil {
		return 0, fmt.Errorf("linking to store: %w", err)
	}
	return Stored, nil
}

// replaceWithLink makes victim a hard link to keep's inode.
//
// The new link is created under a temporary name in the victim's directory, then renamed over
// the victim: the victim's path always resolves to one of the two (identical) inodes.
func replaceWithLink(keep, victim string) error {
	tmp := filepath.Join(filepath.Dir(victim), tmpLinkPrefix+rand.LetterString(12))
	if err := os.Link(keep, tmp); err != nil {
		return fmt.Errorf("linking %s: %w", keep, err)
	}
	if err := os.Rename(tmp, victim); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replacing %s: %w", victim, err)
	}
	return nil
}

// sameContent compares two files byte for byte.
//
// Files of different sizes are known to differ without reading them.
func sameContent(a, b string, sizeA, sizeB int64) (bool, error) {
	if sizeA != sizeB {
		return false, nil
	}

	fa, err := os.Open(a)
	if err != nil {
		return false, fmt.Errorf("opening for comparison: %w", err)
	}
	defer fa.Close()

	fb, err := os.Open(b)
	if err != nil {
		return false, fmt.Errorf("opening for comparison: %w", err)
	}
	defer fb.Close()

	bufA := make([]byte, compareBufSize)
	bufB := make([]byte, compareBufSize)
	for {
		na, errA := io.ReadFull(fa, bufA)
		nb, errB := io.ReadFull(fb, bufB)
		if !bytes.Equal(bufA[:na], bufB[:nb]) {
			return false, nil
		}

		endA, endB := isEOF(errA), isEOF(errB)
		if errA != nil && !endA {
			return false, fmt.Errorf("reading %s: %w", a, errA)
		}
		if errB != nil && !endB {
			return false, fmt.Errorf("reading %s: %w", b, errB)
		}
		if endA || endB {
			return endA == endB, nil
		}
	}
}

func isEOF(err error) bool {
	return err == io.EOF || err == io.ErrUnexpectedEOF
}
