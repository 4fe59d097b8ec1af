// Package config resolves the settings of hashlink.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/oneconcern/hashlink/pkg/config/status"
	"github.com/oneconcern/hashlink/pkg/dlogger"
	"github.com/oneconcern/hashlink/pkg/hashcache"
	"github.com/oneconcern/hashlink/pkg/hasher"
	"github.com/oneconcern/hashlink/pkg/reconcile"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

const (
	// AppName is used to name the cache directory, config file and environment prefix
	AppName = "hashlink"

	// DefaultStore is the name of the store root directory
	DefaultStore = "hash"
)

// CacheDir returns the directory holding the hash cache.
//
// This is $XDG_CACHE_HOME/hashlink, or $HOME/.cache/hashlink when XDG_CACHE_HOME is not set.
func CacheDir() (string, error) {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName), nil
	}
	if home := os.Getenv("HOME"); home != "" {
		return filepath.Join(home, ".cache", AppName), nil
	}
	return "", status.ErrNoCacheDir
}

// Settings describes the configuration of hashlink
type Settings struct {
	Store     string        `json:"store" yaml:"store"`         // name of the store root directory
	Policy    string        `json:"policy" yaml:"policy"`       // how duplicates are reconciled
	Algorithm string        `json:"algorithm" yaml:"algorithm"` // content hash
	LogLevel  string        `json:"loglevel" yaml:"loglevel"`
	Cache     CacheSettings `json:"cache" yaml:"cache"`
}

// CacheSettings describes the hash cache
type CacheSettings struct {
	Dir      string `json:"dir" yaml:"dir"`
	Backend  string `json:"backend" yaml:"backend"`
	Identity string `json:"identity" yaml:"identity"`
	Eager    bool   `json:"eager" yaml:"eager"`
	Disabled bool   `json:"disabled" yaml:"disabled"`
}

// Defaults returns the default settings. The cache directory is left empty when it cannot be
// determined from the environment.
func Defaults() Settings {
	dir, _ := CacheDir()
	return Settings{
		Store:     DefaultStore,
		Policy:    reconcile.Strict.String(),
		Algorithm: hasher.SHA256.String(),
		LogLevel:  dlogger.LogLevelInfo,
		Cache: CacheSettings{
			Dir:      dir,
			Backend:  hashcache.SQLite.String(),
			Identity: hashcache.InodeStat.String(),
		},
	}
}

// RegisterDefaults sets default values for all settings keys
func RegisterDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("store", d.Store)
	v.SetDefault("policy", d.Policy)
	v.SetDefault("algorithm", d.Algorithm)
	v.SetDefault("loglevel", d.LogLevel)
	v.SetDefault("cache.dir", d.Cache.Dir)
	v.SetDefault("cache.backend", d.Cache.Backend)
	v.SetDefault("cache.identity", d.Cache.Identity)
	v.SetDefault("cache.eager", d.Cache.Eager)
	v.SetDefault("cache.disabled", d.Cache.Disabled)
}

// Load settings from viper, then validate them
func Load(v *viper.Viper) (*Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, status.ErrInvalidSettings.Wrap(err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate settings. All invalid settings are reported.
func (s Settings) Validate() error {
	var errs error

	if s.Store == "" || strings.ContainsRune(s.Store, filepath.Separator) || s.Store == "." || s.Store == ".." {
		errs = multierr.Append(errs, status.ErrInvalidSettings.Wrapf("store must be a plain directory name, got %q", s.Store))
	}
	if _, err := s.ReconcilePolicy(); err != nil {
		errs = multierr.Append(errs, status.ErrInvalidSettings.Wrap(err))
	}
	if _, err := s.HashAlgorithm(); err != nil {
		errs = multierr.Append(errs, status.ErrInvalidSettings.Wrap(err))
	}
	switch s.LogLevel {
	case dlogger.LogLevelDebug, dlogger.LogLevelInfo, dlogger.LogLevelWarn, dlogger.LogLevelError, dlogger.LogLevelNone:
	default:
		errs = multierr.Append(errs, status.ErrInvalidSettings.Wrapf("unknown log level %q", s.LogLevel))
	}

	if s.Cache.Disabled {
		return errs
	}
	if s.Cache.Dir == "" {
		errs = multierr.Append(errs, status.ErrInvalidSettings.Wrapf("cache.dir is required when the cache is enabled"))
	}
	if _, err := s.CacheBackend(); err != nil {
		errs = multierr.Append(errs, status.ErrInvalidSettings.Wrap(err))
	}
	if _, err := s.CacheIdentity(); err != nil {
		errs = multierr.Append(errs, status.ErrInvalidSettings.Wrap(err))
	}

	return errs
}

// ReconcilePolicy returns the configured reconciliation policy
func (s Settings) ReconcilePolicy() (reconcile.Policy, error) {
	return reconcile.ParsePolicy(s.Policy)
}

// HashAlgorithm returns the configured hash algorithm
func (s Settings) HashAlgorithm() (hasher.Algorithm, error) {
	return hasher.ParseAlgorithm(s.Algorithm)
}

// CacheBackend returns the configured cache backend
func (s Settings) CacheBackend() (hashcache.Backend, error) {
	return hashcache.ParseBackend(s.Cache.Backend)
}

// CacheIdentity returns the configured cache identity policy
func (s Settings) CacheIdentity() (hashcache.Policy, error) {
	return hashcache.ParsePolicy(s.Cache.Identity)
}

// CacheOptions translates the cache settings into options to open the hash cache.
//
// Caches of digests computed with different algorithms are kept apart.
func (s Settings) CacheOptions() ([]hashcache.Option, error) {
	backend, err := s.CacheBackend()
	if err != nil {
		return nil, err
	}
	identity, err := s.CacheIdentity()
	if err != nil {
		return nil, err
	}
	algo, err := s.HashAlgorithm()
	if err != nil {
		return nil, err
	}
	opts := []hashcache.Option{
		hashcache.WithDir(s.Cache.Dir),
		hashcache.WithBackend(backend),
		hashcache.WithPolicy(identity),
		hashcache.WithEagerLoad(s.Cache.Eager),
	}
	if algo != hasher.SHA256 {
		opts = append(opts, hashcache.WithNamespace(algo.String()))
	}
	return opts, nil
}
