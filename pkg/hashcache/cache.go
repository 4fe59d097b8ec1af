// Package hashcache persists file digests, so unchanged files are not hashed again.
//
// An entry is only returned when the file identity recorded alongside the digest still
// matches the file on disk, according to the identity Policy of the cache.
//
// Several persistence backends are available:
//   - SQLite (default): a single hash.db file
//   - Badger: a badger key-value store
//   - Pebble: a pebble key-value store
//
// Any backend may be loaded eagerly into memory when the cache is opened.
package hashcache

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/oneconcern/hashlink/pkg/hashcache/status"
	"go.uber.org/zap"
)

// Cache knows about digests previously computed for file identities
type Cache interface {
	// Lookup returns the digest stored for this identity, if any
	Lookup(Identity) (string, bool, error)

	// Store records a digest for this identity, evicting any conflicting entry
	Store(Identity, string) error

	Close() error
}

// Entry is a cached digest with the identity it was computed for
type Entry struct {
	Identity
	Digest string `json:"hexdigest"`
}

// iterable caches may enumerate all their entries for the policy they've been opened with
type iterable interface {
	Cache
	each(func(Entry) error) error
}

// Backend selects the persistence layer of the cache
type Backend uint8

const (
	// SQLite persists entries in a sqlite database
	SQLite Backend = iota
	// Badger persists entries in a badger store
	Badger
	// Pebble persists entries in a pebble store
	Pebble
)

var backendNames = map[Backend]string{
	SQLite: "sqlite",
	Badger: "badger",
	Pebble: "pebble",
}

func (b Backend) String() string {
	if n, ok := backendNames[b]; ok {
		return n
	}
	return fmt.Sprintf("backend(%d)", b)
}

// ParseBackend maps a configuration string to a Backend
func ParseBackend(name string) (Backend, error) {
	for b, n := range backendNames {
		if strings.EqualFold(n, name) {
			return b, nil
		}
	}
	return SQLite, status.ErrUnknownBackend.Wrapf("%q", name)
}

// location of the backend's storage, relative to the cache directory
func (b Backend) location(namespace string) string {
	base := "hash"
	if namespace != "" {
		base += "-" + namespace
	}
	switch b {
	case Badger:
		return base + ".badger"
	case Pebble:
		return base + ".pebble"
	default:
		return base + ".db"
	}
}

type settings struct {
	dir       string
	namespace string
	backend   Backend
	policy    Policy
	eager     bool
	l         *zap.Logger
}

// Option configures the hash cache
type Option func(*settings)

// WithDir sets the directory holding the cache files. This option is required.
func WithDir(dir string) Option {
	return func(s *settings) {
		s.dir = dir
	}
}

// WithNamespace segregates caches in the same directory, e.g. caches of digests computed
// with different hash algorithms
func WithNamespace(namespace string) Option {
	return func(s *settings) {
		s.namespace = namespace
	}
}

// WithBackend selects the persistence layer. Defaults to SQLite.
func WithBackend(b Backend) Option {
	return func(s *settings) {
		s.backend = b
	}
}

// WithPolicy selects the identity policy. Defaults to InodeStat.
func WithPolicy(p Policy) Option {
	return func(s *settings) {
		s.policy = p
	}
}

// WithEagerLoad loads all entries in memory when opening the cache.
//
// Lookups are then served from memory. Stores are written through to the backend.
func WithEagerLoad(enabled bool) Option {
	return func(s *settings) {
		s.eager = enabled
	}
}

// WithLogger sets a logger for the cache and its backend
func WithLogger(l *zap.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.l = l
		}
	}
}

// Open a hash cache, creating its storage if needed
func Open(opts ...Option) (Cache, error) {
	s := settings{
		backend: SQLite,
		policy:  InodeStat,
		l:       zap.NewNop(),
	}
	for _, apply := range opts {
		apply(&s)
	}
	if s.dir == "" {
		return nil, status.ErrNoDir
	}
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating hash cache directory: %w", err)
	}

	location := filepath.Join(s.dir, s.backend.location(s.namespace))
	s.l.Debug("opening hash cache",
		zap.Stringer("backend", s.backend),
		zap.Stringer("policy", s.policy),
		zap.String("location", location),
		zap.Bool("eager", s.eager),
	)

	var (
		c   iterable
		err error
	)
	switch s.backend {
	case SQLite:
		c, err = openSQLite(location, s.policy)
	case Badger:
		var kv kvStore
		kv, err = openBadger(location, s.l)
		if err == nil {
			c = newKVCache(kv, s.policy)
		}
	case Pebble:
		var kv kvStore
		kv, err = openPebble(location, s.l)
		if err == nil {
			c = newKVCache(kv, s.policy)
		}
	default:
		return nil, status.ErrUnknownBackend.Wrapf("%v", s.backend)
	}
	if err != nil {
		return nil, fmt.Errorf("opening %v hash cache at %s: %w", s.backend, location, err)
	}

	if !s.eager {
		return c, nil
	}
	e, err := newEagerCache(c, s.policy)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	s.l.Debug("hash cache loaded", zap.Int("entries", e.Len()))
	return e, nil
}
