package indexer

import (
	"go.uber.org/zap"
)

// Option configures an Indexer
type Option func(*Indexer)

// WithDigester sets the way digests are computed, e.g. backed by a hash cache.
// Defaults to a SHA-256 hasher.
func WithDigester(d Digester) Option {
	return func(ix *Indexer) {
		if d != nil {
			ix.digester = d
		}
	}
}

// WithLinker sets the way files are linked to the store. Defaults to a reconciler with the Strict policy.
func WithLinker(l Linker) Option {
	return func(ix *Indexer) {
		if l != nil {
			ix.linker = l
		}
	}
}

// WithObserver registers a function notified before and after each file is processed
func WithObserver(o Observer) Option {
	return func(ix *Indexer) {
		ix.observer = o
	}
}

// WithKeepGoing continues a batch past failed files. All errors are reported at the end.
func WithKeepGoing(enabled bool) Option {
	return func(ix *Indexer) {
		ix.keepGoing = enabled
	}
}

// WithLogger sets a logger for the indexer
func WithLogger(l *zap.Logger) Option {
	return func(ix *Indexer) {
		if l != nil {
			ix.l = l
		}
	}
}
