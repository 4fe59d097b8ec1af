package hashcache

import (
	"sync"

	"github.com/oneconcern/hashlink/pkg/hashcache/status"
)

// eagerCache serves lookups from memory, and writes through to some persistent cache
type eagerCache struct {
	mx      sync.RWMutex
	backing iterable
	policy  Policy
	entries map[string]Entry  // by policy key
	paths   map[string]string // path -> policy key, for the inode policy
}

func newEagerCache(backing iterable, policy Policy) (*eagerCache, error) {
	e := &eagerCache{
		backing: backing,
		policy:  policy,
		entries: make(map[string]Entry),
		paths:   make(map[string]string),
	}

	if err := backing.each(func(entry Entry) error {
		e.remember(entry)
		return nil
	}); err != nil {
		return nil, err
	}

	return e, nil
}

// Len returns the number of entries held in memory
func (e *eagerCache) Len() int {
	e.mx.RLock()
	defer e.mx.RUnlock()
	return len(e.entries)
}

func (e *eagerCache) Lookup(id Identity) (string, bool, error) {
	e.mx.RLock()
	defer e.mx.RUnlock()
	if e.entries == nil {
		return "", false, status.ErrClosed
	}

	entry, ok := e.entries[e.policy.key(id)]
	if !ok || !e.policy.matches(entry.Identity, id) {
		return "", false, nil
	}
	return entry.Digest, true, nil
}

func (e *eagerCache) Store(id Identity, digest string) error {
	if err := e.backing.Store(id, digest); err != nil {
		return err
	}

	e.mx.Lock()
	defer e.mx.Unlock()
	if e.entries == nil {
		return status.ErrClosed
	}
	e.remember(Entry{Identity: id, Digest: digest})
	return nil
}

// remember applies the same eviction rules as the persistent caches
func (e *eagerCache) remember(entry Entry) {
	key := e.policy.key(entry.Identity)

	if e.policy == InodeStat {
		if previous, ok := e.paths[entry.Path]; ok && previous != key {
			delete(e.entries, previous)
		}
		if reused, ok := e.entries[key]; ok && reused.Path != entry.Path {
			delete(e.paths, reused.Path)
		}
		e.paths[entry.Path] = key
	}

	e.entries[key] = entry
}

func (e *eagerCache) Close() error {
	e.mx.Lock()
	defer e.mx.Unlock()
	if e.entries == nil {
		return nil
	}
	e.entries = nil
	e.paths = nil
	return e.backing.Close()
}
