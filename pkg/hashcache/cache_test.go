package hashcache

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/oneconcern/hashlink/pkg/hashcache/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	digestA = "8bc36727b5aa2a78e730bfd393836b246c4d565e4dc3e4f413df26e26656bb53"
	digestB = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
)

type cacheCase struct {
	backend Backend
	eager   bool
}

func (c cacheCase) String() string {
	if c.eager {
		return c.backend.String() + "-eager"
	}
	return c.backend.String()
}

func allCacheCases() []cacheCase {
	cases := make([]cacheCase, 0, 6)
	for _, b := range []Backend{SQLite, Badger, Pebble} {
		cases = append(cases, cacheCase{backend: b}, cacheCase{backend: b, eager: true})
	}
	return cases
}

func openTestCache(t testing.TB, dir string, c cacheCase, policy Policy) Cache {
	t.Helper()
	cache, err := Open(WithDir(dir), WithBackend(c.backend), WithPolicy(policy), WithEagerLoad(c.eager))
	require.NoError(t, err)
	return cache
}

func testIdentity(path string, ino uint64) Identity {
	return Identity{
		Path:    path,
		Device:  42,
		Inode:   ino,
		ModTime: 1_600_000_000_123_456_789,
		Size:    25,
	}
}

func TestOpenRequiresDir(t *testing.T) {
	_, err := Open()
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrNoDir))
}

func TestCacheRoundTrip(t *testing.T) {
	for _, toPin := range allCacheCases() {
		tc := toPin
		for _, policy := range []Policy{InodeStat, PathStat} {
			p := policy
			t.Run(fmt.Sprintf("%v/%v", tc, p), func(t *testing.T) {
				cache := openTestCache(t, t.TempDir(), tc, p)
				defer func() { require.NoError(t, cache.Close()) }()

				id := testIdentity("/data/tmp", 1001)

				_, found, err := cache.Lookup(id)
				require.NoError(t, err)
				assert.False(t, found)

				require.NoError(t, cache.Store(id, digestA))
				digest, found, err := cache.Lookup(id)
				require.NoError(t, err)
				require.True(t, found)
				assert.Equal(t, digestA, digest)

				modified := id
				modified.ModTime++
				_, found, err = cache.Lookup(modified)
				require.NoError(t, err)
				assert.False(t, found, "a modified file must not hit the cache")

				resized := id
				resized.Size++
				_, found, err = cache.Lookup(resized)
				require.NoError(t, err)
				assert.False(t, found, "a resized file must not hit the cache")

				// storing again for the same key replaces the entry
				require.NoError(t, cache.Store(modified, digestB))
				digest, found, err = cache.Lookup(modified)
				require.NoError(t, err)
				require.True(t, found)
				assert.Equal(t, digestB, digest)
				_, found, err = cache.Lookup(id)
				require.NoError(t, err)
				assert.False(t, found)
			})
		}
	}
}

func TestCachePersists(t *testing.T) {
	for _, toPin := range allCacheCases() {
		tc := toPin
		t.Run(tc.String(), func(t *testing.T) {
			dir := t.TempDir()
			id := testIdentity("/data/tmp", 1001)
			// device and inode numbers use the full unsigned range
			large := Identity{Path: "/data/large", Device: math.MaxUint64, Inode: math.MaxUint64 - 1, ModTime: 1, Size: 2}

			cache := openTestCache(t, dir, tc, InodeStat)
			require.NoError(t, cache.Store(id, digestA))
			require.NoError(t, cache.Store(large, digestB))
			require.NoError(t, cache.Close())

			cache = openTestCache(t, dir, tc, InodeStat)
			defer func() { require.NoError(t, cache.Close()) }()

			digest, found, err := cache.Lookup(id)
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, digestA, digest)

			digest, found, err = cache.Lookup(large)
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, digestB, digest)
		})
	}
}

func TestCachePoliciesAreIndependent(t *testing.T) {
	for _, toPin := range allCacheCases() {
		tc := toPin
		t.Run(tc.String(), func(t *testing.T) {
			dir := t.TempDir()
			id := testIdentity("/data/tmp", 1001)

			cache := openTestCache(t, dir, tc, InodeStat)
			require.NoError(t, cache.Store(id, digestA))
			require.NoError(t, cache.Close())

			cache = openTestCache(t, dir, tc, PathStat)
			defer func() { require.NoError(t, cache.Close()) }()
			_, found, err := cache.Lookup(id)
			require.NoError(t, err)
			assert.False(t, found)
		})
	}
}

func TestPathStatIgnoresInode(t *testing.T) {
	for _, toPin := range allCacheCases() {
		tc := toPin
		t.Run(tc.String(), func(t *testing.T) {
			cache := openTestCache(t, t.TempDir(), tc, PathStat)
			defer func() { require.NoError(t, cache.Close()) }()

			require.NoError(t, cache.Store(testIdentity("/data/tmp", 1001), digestA))

			digest, found, err := cache.Lookup(testIdentity("/data/tmp", 2002))
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, digestA, digest)

			_, found, err = cache.Lookup(testIdentity("/data/other", 1001))
			require.NoError(t, err)
			assert.False(t, found)
		})
	}
}

func TestInodeStatEvictions(t *testing.T) {
	for _, toPin := range allCacheCases() {
		tc := toPin
		t.Run(tc.String(), func(t *testing.T) {
			dir := t.TempDir()
			cache := openTestCache(t, dir, tc, InodeStat)

			// the same inode under another path hits the cache
			first := testIdentity("/data/a", 1001)
			require.NoError(t, cache.Store(first, digestA))
			digest, found, err := cache.Lookup(testIdentity("/data/renamed", 1001))
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, digestA, digest)

			// a path pointing to a new inode evicts the entry of the former inode
			replaced := testIdentity("/data/a", 2002)
			require.NoError(t, cache.Store(replaced, digestB))
			_, found, err = cache.Lookup(first)
			require.NoError(t, err)
			assert.False(t, found)

			// a reused inode evicts the entry of its former path
			reused := testIdentity("/data/b", 2002)
			require.NoError(t, cache.Store(reused, digestA))
			digest, found, err = cache.Lookup(replaced)
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, digestA, digest)

			// storing for the evicted path does not disturb the entry of the reused inode
			require.NoError(t, cache.Store(testIdentity("/data/a", 3003), digestB))
			digest, found, err = cache.Lookup(reused)
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, digestA, digest)
			require.NoError(t, cache.Close())

			// evictions are persisted
			cache = openTestCache(t, dir, tc, InodeStat)
			defer func() { require.NoError(t, cache.Close()) }()
			_, found, err = cache.Lookup(first)
			require.NoError(t, err)
			assert.False(t, found)
			digest, found, err = cache.Lookup(reused)
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, digestA, digest)
			digest, found, err = cache.Lookup(testIdentity("/data/a", 3003))
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, digestB, digest)
		})
	}
}

func TestClosedCache(t *testing.T) {
	for _, toPin := range allCacheCases() {
		tc := toPin
		t.Run(tc.String(), func(t *testing.T) {
			cache := openTestCache(t, t.TempDir(), tc, InodeStat)
			require.NoError(t, cache.Store(testIdentity("/data/tmp", 1), digestA))
			require.NoError(t, cache.Close())
			require.NoError(t, cache.Close())

			// a closed cache fails rather than reporting a miss
			digest, found, err := cache.Lookup(testIdentity("/data/tmp", 1))
			assert.True(t, errors.Is(err, status.ErrClosed))
			assert.False(t, found)
			assert.Empty(t, digest)
			err = cache.Store(testIdentity("/data/tmp", 1), digestA)
			assert.True(t, errors.Is(err, status.ErrClosed))
		})
	}
}

func TestNamespaceLocation(t *testing.T) {
	dir := t.TempDir()
	cache, err := Open(WithDir(dir), WithNamespace("blake3"))
	require.NoError(t, err)
	require.NoError(t, cache.Close())

	_, err = os.Stat(filepath.Join(dir, "hash-blake3.db"))
	assert.NoError(t, err)

	cache, err = Open(WithDir(dir), WithBackend(Pebble))
	require.NoError(t, err)
	require.NoError(t, cache.Close())

	info, err := os.Stat(filepath.Join(dir, "hash.pebble"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestSQLiteSpecialCharsInDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a?b#c%20 d")
	id := testIdentity("/data/tmp", 1001)

	cache, err := Open(WithDir(dir))
	require.NoError(t, err)
	require.NoError(t, cache.Store(id, digestA))
	require.NoError(t, cache.Close())

	_, err = os.Stat(filepath.Join(dir, "hash.db"))
	require.NoError(t, err)

	cache, err = Open(WithDir(dir))
	require.NoError(t, err)
	defer func() { require.NoError(t, cache.Close()) }()
	digest, found, err := cache.Lookup(id)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, digestA, digest)
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t,
		"file:/tmp/a%3Fb%23c%2520%20d/hash.db?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)",
		sqliteDSN("/tmp/a?b#c%20 d/hash.db"),
	)
}

func TestParseBackendAndPolicy(t *testing.T) {
	for _, b := range []Backend{SQLite, Badger, Pebble} {
		got, err := ParseBackend(b.String())
		require.NoError(t, err)
		assert.Equal(t, b, got)
	}
	_, err := ParseBackend("bolt")
	assert.True(t, errors.Is(err, status.ErrUnknownBackend))

	for _, p := range []Policy{InodeStat, PathStat} {
		got, err := ParsePolicy(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
	_, err = ParsePolicy("mtime")
	assert.True(t, errors.Is(err, status.ErrUnknownPolicy))
}
