package config

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/oneconcern/hashlink/pkg/config/status"
	"github.com/oneconcern/hashlink/pkg/hashcache"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func TestCacheDir(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/xdg/cache")
	t.Setenv("HOME", "/home/pictus")
	dir, err := CacheDir()
	require.NoError(t, err)
	assert.Equal(t, "/xdg/cache/hashlink", dir)

	t.Setenv("XDG_CACHE_HOME", "")
	dir, err = CacheDir()
	require.NoError(t, err)
	assert.Equal(t, "/home/pictus/.cache/hashlink", dir)

	t.Setenv("HOME", "")
	_, err = CacheDir()
	assert.True(t, errors.Is(err, status.ErrNoCacheDir))
}

func TestDefaultsAreValid(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/xdg/cache")
	d := Defaults()
	require.NoError(t, d.Validate())
	assert.Equal(t, "hash", d.Store)
	assert.Equal(t, "strict", d.Policy)
	assert.Equal(t, "sha256", d.Algorithm)
	assert.Equal(t, "sqlite", d.Cache.Backend)
	assert.Equal(t, "inode", d.Cache.Identity)
	assert.Equal(t, "/xdg/cache/hashlink", d.Cache.Dir)
}

func TestValidateReportsAllErrors(t *testing.T) {
	s := Settings{
		Store:     "a/b",
		Policy:    "overwrite",
		Algorithm: "md5",
		LogLevel:  "chatty",
		Cache: CacheSettings{
			Backend:  "bolt",
			Identity: "mtime",
		},
	}
	err := s.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrInvalidSettings))
	assert.Len(t, multierr.Errors(err), 7)

	// cache settings are not checked when the cache is disabled
	s.Cache.Disabled = true
	assert.Len(t, multierr.Errors(s.Validate()), 4)
}

func TestLoad(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/xdg/cache")
	v := viper.New()
	RegisterDefaults(v)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(`
policy: merge
algorithm: blake3
cache:
  backend: pebble
  identity: path
  eager: true
`)))

	s, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "hash", s.Store)
	assert.Equal(t, "merge", s.Policy)
	assert.True(t, s.Cache.Eager)
	assert.Equal(t, "/xdg/cache/hashlink", s.Cache.Dir)

	backend, err := s.CacheBackend()
	require.NoError(t, err)
	assert.Equal(t, hashcache.Pebble, backend)

	opts, err := s.CacheOptions()
	require.NoError(t, err)
	assert.Len(t, opts, 5, "a namespace is expected for a non-default algorithm")

	// options are usable to open a cache
	s.Cache.Dir = filepath.Join(t.TempDir(), "cache")
	s.Cache.Backend = "sqlite"
	opts, err = s.CacheOptions()
	require.NoError(t, err)
	cache, err := hashcache.Open(opts...)
	require.NoError(t, err)
	require.NoError(t, cache.Close())
	assert.FileExists(t, filepath.Join(s.Cache.Dir, "hash-blake3.db"))
}

func TestLoadInvalid(t *testing.T) {
	v := viper.New()
	RegisterDefaults(v)
	v.Set("policy", "overwrite")
	_, err := Load(v)
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrInvalidSettings))
}
