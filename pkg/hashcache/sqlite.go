package hashcache

import (
	"database/sql"
	"fmt"
	"net/url"
	"sync"

	"github.com/oneconcern/hashlink/pkg/hashcache/status"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

const sqliteBusyTimeoutMS = 5000

// one table per identity policy, so a cache file may be reused when switching policies
type sqlSchema struct {
	create string
	lookup string
	store  string
	each   string
}

var sqlSchemas = map[Policy]sqlSchema{
	PathStat: {
		create: `CREATE TABLE IF NOT EXISTS path_cache (
			path TEXT NOT NULL PRIMARY KEY,
			device INTEGER NOT NULL,
			inode INTEGER NOT NULL,
			mtime INTEGER NOT NULL,
			size INTEGER NOT NULL,
			hexdigest TEXT NOT NULL
		)`,
		lookup: `SELECT hexdigest FROM path_cache WHERE path = ? AND mtime = ? AND size = ?`,
		store:  `INSERT OR REPLACE INTO path_cache (path, device, inode, mtime, size, hexdigest) VALUES (?, ?, ?, ?, ?, ?)`,
		each:   `SELECT path, device, inode, mtime, size, hexdigest FROM path_cache`,
	},
	InodeStat: {
		create: `CREATE TABLE IF NOT EXISTS inode_cache (
			path TEXT NOT NULL,
			device INTEGER NOT NULL,
			inode INTEGER NOT NULL,
			mtime INTEGER NOT NULL,
			size INTEGER NOT NULL,
			hexdigest TEXT NOT NULL,
			CONSTRAINT path_unique UNIQUE (path),
			CONSTRAINT inode_unique UNIQUE (device, inode)
		)`,
		lookup: `SELECT hexdigest FROM inode_cache WHERE device = ? AND inode = ? AND mtime = ? AND size = ?`,
		// REPLACE removes every row conflicting on either unique constraint
		store: `INSERT OR REPLACE INTO inode_cache (path, device, inode, mtime, size, hexdigest) VALUES (?, ?, ?, ?, ?, ?)`,
		each:  `SELECT path, device, inode, mtime, size, hexdigest FROM inode_cache`,
	},
}

type sqlCache struct {
	mx     sync.Mutex
	db     *sql.DB
	policy Policy
	schema sqlSchema
}

// sqliteDSN builds a URI filename: characters such as '?' or '#' in path are escaped
func sqliteDSN(path string) string {
	escaped := (&url.URL{Path: path}).EscapedPath()
	return fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)", escaped, sqliteBusyTimeoutMS)
}

func openSQLite(path string, policy Policy) (*sqlCache, error) {
	schema, ok := sqlSchemas[policy]
	if !ok {
		return nil, status.ErrUnknownPolicy.Wrapf("%v", policy)
	}

	db, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, err
	}
	// a single writer: concurrent indexers serialize on the database lock
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema.create); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating hash cache schema: %w", err)
	}

	return &sqlCache{
		db:     db,
		policy: policy,
		schema: schema,
	}, nil
}

// sqlite integers are signed: device and inode numbers are stored with their bits preserved
func toSQLInt(u uint64) int64 {
	return int64(u) //#nosec
}

func (c *sqlCache) Lookup(id Identity) (string, bool, error) {
	c.mx.Lock()
	defer c.mx.Unlock()
	if c.db == nil {
		return "", false, status.ErrClosed
	}

	var row *sql.Row
	if c.policy == PathStat {
		row = c.db.QueryRow(c.schema.lookup, id.Path, id.ModTime, id.Size)
	} else {
		row = c.db.QueryRow(c.schema.lookup, toSQLInt(id.Device), toSQLInt(id.Inode), id.ModTime, id.Size)
	}

	var digest string
	switch err := row.Scan(&digest); err {
	case nil:
		return digest, true, nil
	case sql.ErrNoRows:
		return "", false, nil
	default:
		return "", false, fmt.Errorf("looking up hash cache: %w", err)
	}
}

func (c *sqlCache) Store(id Identity, digest string) error {
	c.mx.Lock()
	defer c.mx.Unlock()
	if c.db == nil {
		return status.ErrClosed
	}

	_, err := c.db.Exec(c.schema.store,
		id.Path, toSQLInt(id.Device), toSQLInt(id.Inode), id.ModTime, id.Size, digest,
	)
	if err != nil {
		return fmt.Errorf("storing in hash cache: %w", err)
	}
	return nil
}

func (c *sqlCache) each(fn func(Entry) error) error {
	c.mx.Lock()
	defer c.mx.Unlock()
	if c.db == nil {
		return status.ErrClosed
	}

	rows, err := c.db.Query(c.schema.each)
	if err != nil {
		return fmt.Errorf("loading hash cache: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			e             Entry
			device, inode int64
		)
		if err := rows.Scan(&e.Path, &device, &inode, &e.ModTime, &e.Size, &e.Digest); err != nil {
			return status.ErrCorruptEntry.Wrap(err)
		}
		e.Device, e.Inode = uint64(device), uint64(inode) //#nosec
		if err := fn(e); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (c *sqlCache) Close() error {
	c.mx.Lock()
	defer c.mx.Unlock()
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}
