package hashcache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/oneconcern/hashlink/pkg/hasher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingDigester struct {
	calls int
	inner Digester
}

func (c *countingDigester) Digest(path string) (string, error) {
	c.calls++
	return c.inner.Digest(path)
}

func TestStat(t *testing.T) {
	dir := t.TempDir()
	pth := filepath.Join(dir, "tmp")
	require.NoError(t, os.WriteFile(pth, []byte("Philosophastra Illustrans"), 0o600))

	id, err := Stat(pth)
	require.NoError(t, err)
	assert.Equal(t, pth, id.Path)
	assert.EqualValues(t, 25, id.Size)
	assert.NotZero(t, id.Inode)

	info, err := os.Stat(pth)
	require.NoError(t, err)
	assert.Equal(t, info.ModTime().UnixNano(), id.ModTime)

	// a hard link shares the inode, under another path
	linked := filepath.Join(dir, "linked")
	require.NoError(t, os.Link(pth, linked))
	other, err := Stat(linked)
	require.NoError(t, err)
	assert.Equal(t, id.Inode, other.Inode)
	assert.Equal(t, id.Device, other.Device)
	assert.NotEqual(t, id.Path, other.Path)

	_, err = Stat(filepath.Join(dir, "missing"))
	require.Error(t, err)
	assert.True(t, os.IsNotExist(err))
}

func TestCachingDigester(t *testing.T) {
	for _, toPin := range []Policy{InodeStat, PathStat} {
		policy := toPin
		t.Run(policy.String(), func(t *testing.T) {
			dir := t.TempDir()
			pth := filepath.Join(dir, "tmp")
			require.NoError(t, os.WriteFile(pth, []byte("Philosophastra Illustrans"), 0o600))

			cache, err := Open(WithDir(filepath.Join(dir, "cache")), WithPolicy(policy))
			require.NoError(t, err)
			defer func() { require.NoError(t, cache.Close()) }()

			inner := &countingDigester{inner: hasher.New()}
			d := NewDigester(cache, inner)

			digest, err := d.Digest(pth)
			require.NoError(t, err)
			assert.Equal(t, digestA, digest)
			assert.Equal(t, 1, inner.calls)

			digest, err = d.Digest(pth)
			require.NoError(t, err)
			assert.Equal(t, digestA, digest)
			assert.Equal(t, 1, inner.calls, "expected a cache hit")
			assert.EqualValues(t, 1, d.Hits())
			assert.EqualValues(t, 1, d.Misses())

			// new content, new modification time
			require.NoError(t, os.WriteFile(pth, nil, 0o600))
			later := time.Now().Add(time.Hour)
			require.NoError(t, os.Chtimes(pth, later, later))

			digest, err = d.Digest(pth)
			require.NoError(t, err)
			assert.Equal(t, digestB, digest)
			assert.Equal(t, 2, inner.calls)
		})
	}
}

func TestCachingDigesterMissingFile(t *testing.T) {
	cache, err := Open(WithDir(t.TempDir()))
	require.NoError(t, err)
	defer func() { require.NoError(t, cache.Close()) }()

	_, err = NewDigester(cache, hasher.New()).Digest(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.True(t, os.IsNotExist(err))
}
