package hashcache

import (
	"bytes"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/oneconcern/hashlink/pkg/errors"
	"github.com/oneconcern/hashlink/pkg/hashcache/status"
)

type (
	// kvStore provides an abstraction of what the hash cache expects
	// from some underlying KV store implementation.
	kvStore interface {
		// Get the value for a key. Returns errKeyNotFound when the key is absent.
		Get([]byte) ([]byte, error)
		// Apply sets and deletes keys atomically
		Apply(kvBatch) error
		// Prefix returns an iterator over all keys starting with some prefix
		Prefix([]byte) kvIterator
		// Close the DB
		Close() error
	}

	// kvIterator provides a simplified abstraction for some KV iterator
	kvIterator interface {
		Next() bool
		Item() ([]byte, []byte, error)
		Close() error
	}

	kvBatch struct {
		sets    []kvPair
		deletes [][]byte
	}

	kvPair struct {
		key, value []byte
	}
)

var (
	errKeyNotFound = errors.New("key not found")

	json = jsoniter.ConfigCompatibleWithStandardLibrary
)

func (b *kvBatch) set(key, value []byte) {
	b.sets = append(b.sets, kvPair{key: key, value: value})
}

func (b *kvBatch) delete(key []byte) {
	b.deletes = append(b.deletes, key)
}

// Key layout:
//
//	r:<policy key>  -> JSON entry
//	x:<path>        -> policy key of the inode entry for this path (inode policy only)
const (
	rowPrefix       = "r:"
	pathIndexPrefix = "x:"
)

// kvCache implements the hash cache over a key-value store
type kvCache struct {
	mx     sync.Mutex
	kv     kvStore
	policy Policy
}

func newKVCache(kv kvStore, policy Policy) *kvCache {
	return &kvCache{kv: kv, policy: policy}
}

func (c *kvCache) rowKey(id Identity) []byte {
	return []byte(rowPrefix + c.policy.key(id))
}

func pathIndexKey(path string) []byte {
	return []byte(pathIndexPrefix + path)
}

func (c *kvCache) get(key []byte) (Entry, bool, error) {
	val, err := c.kv.Get(key)
	if errors.Is(err, errKeyNotFound) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}

	var e Entry
	if err := json.Unmarshal(val, &e); err != nil {
		return Entry{}, false, status.ErrCorruptEntry.Wrap(err)
	}
	return e, true, nil
}

func (c *kvCache) Lookup(id Identity) (string, bool, error) {
	c.mx.Lock()
	defer c.mx.Unlock()
	if c.kv == nil {
		return "", false, status.ErrClosed
	}

	e, found, err := c.get(c.rowKey(id))
	if err != nil || !found {
		return "", false, err
	}
	if !c.policy.matches(e.Identity, id) {
		return "", false, nil
	}
	return e.Digest, true, nil
}

func (c *kvCache) Store(id Identity, digest string) error {
	c.mx.Lock()
	defer c.mx.Unlock()
	if c.kv == nil {
		return status.ErrClosed
	}

	val, err := json.Marshal(Entry{Identity: id, Digest: digest})
	if err != nil {
		return err
	}

	var batch kvBatch
	key := c.rowKey(id)

	if c.policy == InodeStat {
		// evict the entry previously stored for this path, if it was another inode
		indexKey := pathIndexKey(id.Path)
		previous, err := c.kv.Get(indexKey)
		switch {
		case err == nil && !bytes.Equal(previous, key):
			batch.delete(previous)
		case err != nil && !errors.Is(err, errKeyNotFound):
			return err
		}

		// evict the path index of a reused inode
		e, found, err := c.get(key)
		if err != nil && !errors.Is(err, status.ErrCorruptEntry) {
			return err
		}
		if found && e.Path != id.Path {
			batch.delete(pathIndexKey(e.Path))
		}

		batch.set(indexKey, key)
	}

	batch.set(key, val)
	return c.kv.Apply(batch)
}

func (c *kvCache) each(fn func(Entry) error) error {
	c.mx.Lock()
	defer c.mx.Unlock()
	if c.kv == nil {
		return status.ErrClosed
	}

	iterator := c.kv.Prefix([]byte(rowPrefix + c.policy.keyPrefix()))
	defer func() {
		_ = iterator.Close()
	}()

	for iterator.Next() {
		_, val, err := iterator.Item()
		if err != nil {
			return err
		}
		var e Entry
		if err := json.Unmarshal(val, &e); err != nil {
			return status.ErrCorruptEntry.Wrap(err)
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

func (c *kvCache) Close() error {
	c.mx.Lock()
	defer c.mx.Unlock()
	if c.kv == nil {
		return nil
	}
	err := c.kv.Close()
	c.kv = nil
	return err
}
