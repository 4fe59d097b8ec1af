package hashcache

import (
	"errors"
	"fmt"
	"os"

	"github.com/cockroachdb/pebble"
	"go.uber.org/zap"
)

type (
	// kvPebble provides a KV store implementation based on cockroachdb/pebble
	kvPebble struct {
		*pebble.DB
	}

	kvPebbleIterator struct {
		isFirst  bool
		iterator *pebble.Iterator
	}
)

func (kv *kvPebble) Get(key []byte) ([]byte, error) {
	val, closer, err := kv.DB.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, errKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = closer.Close()
	}()

	dest := make([]byte, len(val))
	copy(dest, val)

	return dest, nil
}

func (kv *kvPebble) Apply(batch kvBatch) error {
	b := kv.DB.NewBatch()
	defer func() {
		_ = b.Close()
	}()

	for _, key := range batch.deletes {
		if err := b.Delete(key, nil); err != nil {
			return err
		}
	}
	for _, pair := range batch.sets {
		if err := b.Set(pair.key, pair.value, nil); err != nil {
			return err
		}
	}

	return b.Commit(pebble.Sync)
}

func (kv *kvPebble) Prefix(prefix []byte) kvIterator {
	return &kvPebbleIterator{
		isFirst: true,
		iterator: kv.DB.NewIter(&pebble.IterOptions{
			LowerBound: prefix,
			UpperBound: prefixUpperBound(prefix),
		}),
	}
}

// prefixUpperBound returns the smallest key greater than all keys starting with prefix
func prefixUpperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}

	return nil // no upper bound
}

func (i *kvPebbleIterator) Next() bool {
	if i.isFirst {
		i.isFirst = false

		return i.iterator.First()
	}

	return i.iterator.Next()
}

func (i *kvPebbleIterator) Item() ([]byte, []byte, error) {
	k, v := i.iterator.Key(), i.iterator.Value()

	key := make([]byte, len(k))
	copy(key, k)
	value := make([]byte, len(v))
	copy(value, v)

	return key, value, nil
}

func (i *kvPebbleIterator) Close() error {
	return i.iterator.Close()
}

func openPebble(pth string, l *zap.Logger) (*kvPebble, error) {
	err := os.MkdirAll(pth, 0700)
	if err != nil {
		return nil, fmt.Errorf("open KV: mkdir: %w", err)
	}

	options := &pebble.Options{
		Logger: l.WithOptions(zap.IncreaseLevel(zap.WarnLevel)).Sugar(),
	}
	options.EnsureDefaults()

	db, err := pebble.Open(pth, options)
	if err != nil {
		return nil, fmt.Errorf("open KV: %w", err)
	}

	return &kvPebble{DB: db}, nil
}
