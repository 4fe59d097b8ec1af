package hashcache

import (
	"sync/atomic"

	"go.uber.org/zap"
)

// Digester computes the digest of a file
type Digester interface {
	Digest(path string) (string, error)
}

// DigesterOption configures a CachingDigester
type DigesterOption func(*CachingDigester)

// WithDigesterLogger sets a logger for the caching digester
func WithDigesterLogger(l *zap.Logger) DigesterOption {
	return func(d *CachingDigester) {
		if l != nil {
			d.l = l
		}
	}
}

// CachingDigester serves digests from a Cache, and falls back to computing them on a miss
type CachingDigester struct {
	cache  Cache
	hasher Digester
	l      *zap.Logger

	hits, misses uint64
}

// NewDigester builds a Digester backed by a cache
func NewDigester(cache Cache, hasher Digester, opts ...DigesterOption) *CachingDigester {
	d := &CachingDigester{
		cache:  cache,
		hasher: hasher,
		l:      zap.NewNop(),
	}
	for _, apply := range opts {
		apply(d)
	}
	return d
}

// Digest returns the digest of the file at path.
//
// A computed digest is only cached if the file was not modified while it was being hashed.
func (d *CachingDigester) Digest(path string) (string, error) {
	before, err := Stat(path)
	if err != nil {
		return "", err
	}

	digest, found, err := d.cache.Lookup(before)
	if err != nil {
		return "", err
	}
	if found {
		atomic.AddUint64(&d.hits, 1)
		d.l.Debug("hash cache hit", zap.String("path", before.Path), zap.String("digest", digest))
		return digest, nil
	}
	atomic.AddUint64(&d.misses, 1)

	digest, err = d.hasher.Digest(path)
	if err != nil {
		return "", err
	}

	after, err := Stat(path)
	if err != nil {
		return "", err
	}
	if after != before {
		d.l.Warn("file changed while hashing, digest not cached", zap.String("path", before.Path))
		return digest, nil
	}

	if err := d.cache.Store(before, digest); err != nil {
		return "", err
	}
	return digest, nil
}

// Hits returns the number of digests served from the cache
func (d *CachingDigester) Hits() uint64 {
	return atomic.LoadUint64(&d.hits)
}

// Misses returns the number of digests computed
func (d *CachingDigester) Misses() uint64 {
	return atomic.LoadUint64(&d.misses)
}
