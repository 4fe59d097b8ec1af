package hashcache

import (
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dgraph-io/badger/v3"
	"github.com/oneconcern/hashlink/pkg/errors"
	"go.uber.org/zap"
)

const (
	badgerRetryInterval = 10 * time.Millisecond
	badgerMaxRetries    = 50
)

type (
	// kvBadger provides a KV store implementation based on dgraph-io/badger/v3
	kvBadger struct {
		*badger.DB
	}

	kvBadgerIterator struct {
		isFirst  bool
		prefix   []byte
		txn      *badger.Txn
		iterator *badger.Iterator
	}

	// badgerLogger routes badger logs to zap
	badgerLogger struct {
		*zap.SugaredLogger
	}
)

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.Warnf(format, args...)
}

func (kv *kvBadger) Get(key []byte) ([]byte, error) {
	var value []byte
	err := kv.DB.View(func(txn *badger.Txn) error {
		item, e := txn.Get(key)
		if e != nil {
			return e
		}
		value, e = item.ValueCopy(nil)

		return e
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, errKeyNotFound
	}

	return value, err
}

func (kv *kvBadger) Apply(batch kvBatch) error {
	return backoff.Retry(func() error {
		err := kv.DB.Update(func(txn *badger.Txn) error {
			for _, key := range batch.deletes {
				if e := txn.Delete(key); e != nil {
					return e
				}
			}
			for _, pair := range batch.sets {
				if e := txn.Set(pair.key, pair.value); e != nil {
					return e
				}
			}

			return nil
		})
		if err != nil && !errors.Is(err, badger.ErrConflict) {
			return backoff.Permanent(err)
		}

		return err // retry on conflict
	},
		backoff.WithMaxRetries(backoff.NewConstantBackOff(badgerRetryInterval), badgerMaxRetries),
	)
}

func (kv *kvBadger) Prefix(prefix []byte) kvIterator {
	txn := kv.DB.NewTransaction(false)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	iterator := txn.NewIterator(opts)

	return &kvBadgerIterator{
		isFirst:  true,
		prefix:   prefix,
		txn:      txn,
		iterator: iterator,
	}
}

func (i *kvBadgerIterator) Next() bool {
	if i.isFirst {
		i.iterator.Seek(i.prefix)
		i.isFirst = false

		return i.iterator.ValidForPrefix(i.prefix)
	}

	i.iterator.Next()

	return i.iterator.ValidForPrefix(i.prefix)
}

func (i *kvBadgerIterator) Item() ([]byte, []byte, error) {
	key := i.iterator.Item().KeyCopy(nil)
	val, err := i.iterator.Item().ValueCopy(nil)

	return key, val, err
}

func (i *kvBadgerIterator) Close() error {
	i.iterator.Close()
	i.txn.Discard()

	return nil
}

func openBadger(pth string, l *zap.Logger) (*kvBadger, error) {
	err := os.MkdirAll(pth, 0700)
	if err != nil {
		return nil, fmt.Errorf("open KV: mkdir: %w", err)
	}

	db, err := badger.Open(
		badger.DefaultOptions(pth).
			WithLogger(badgerLogger{SugaredLogger: l.Sugar()}).
			WithLoggingLevel(badger.WARNING).
			WithNumVersionsToKeep(1),
	)
	if err != nil {
		return nil, fmt.Errorf("open KV: %w", err)
	}

	return &kvBadger{DB: db}, nil
}
