// Copyright © 2018 One Concern

package cmd

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/oneconcern/hashlink/internal"
	"github.com/oneconcern/hashlink/pkg/config"
	"github.com/oneconcern/hashlink/pkg/dlogger"
	"github.com/oneconcern/hashlink/pkg/hashcache"
	"github.com/oneconcern/hashlink/pkg/hasher"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	// exit code when no store root could be located
	exitRootNotFound = 2
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "hashlink",
	Short: "hashlink adds files to a directory organized by content hash",
	Long: `hashlink adds files to a content-addressed store: a directory, usually called "hash",
where each file is hard linked under a path derived from the digest of its content.

Identical files end up sharing a single inode. Digests of unchanged files are kept in a cache,
so they are not computed again.
`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if hashlinkFlags.root.cpuProf == "" {
			return
		}
		stop, err := internal.StartCPUProfile(hashlinkFlags.root.cpuProf)
		if err != nil {
			wrapFatalln("cpu profiling", err)
			return
		}
		stopCPUProfile = stop
	},
	// upstream api note:  *PostRun functions aren't called in case of a panic() in Run
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if stopCPUProfile != nil {
			if err := stopCPUProfile(); err != nil {
				log.Println("cpu profiling:", err)
			}
			stopCPUProfile = nil
		}
		if hashlinkFlags.root.memProf != "" {
			if err := internal.WriteMemProfile(hashlinkFlags.root.memProf); err != nil {
				log.Println("memory profiling:", err)
			}
		}
	},
}

var stopCPUProfile func() error

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	log.SetFlags(0)
	cobra.OnInitialize(initConfig)

	bindings := map[string]string{
		"store":          addStoreFlag(rootCmd),
		"algorithm":      addAlgorithmFlag(rootCmd),
		"loglevel":       addLogLevel(rootCmd),
		"cache.disabled": addNoCacheFlag(rootCmd),
	}
	addProfilingFlags(rootCmd)
	for key, flag := range bindings {
		if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			wrapFatalln("bind flag", err)
			return
		}
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	config.RegisterDefaults(viper.GetViper())
	if os.Getenv("HASHLINK_CONFIG") != "" {
		// Use config file from the environment.
		viper.SetConfigFile(os.Getenv("HASHLINK_CONFIG"))
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.hashlink")
		viper.AddConfigPath("/etc/hashlink")
		viper.SetConfigName(config.AppName)
	}

	viper.SetEnvPrefix(config.AppName)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		log.Println("Using config file:", viper.ConfigFileUsed())
	}
}

// loadSettings returns the effective settings, or exits
func loadSettings() *config.Settings {
	settings, err := config.Load(viper.GetViper())
	if err != nil {
		wrapFatalln("invalid configuration", err)
		return nil
	}
	return settings
}

// newDigester builds the digester configured by the settings.
//
// The returned closer releases the hash cache, if any.
func newDigester(settings *config.Settings, logger *zap.Logger) (hashcache.Digester, func(), error) {
	algo, err := settings.HashAlgorithm()
	if err != nil {
		return nil, nil, err
	}
	h := hasher.New(hasher.WithAlgorithm(algo))
	if settings.Cache.Disabled {
		logger.Debug("hash cache disabled")
		return h, func() {}, nil
	}

	opts, err := settings.CacheOptions()
	if err != nil {
		return nil, nil, err
	}
	cache, err := hashcache.Open(append(opts, hashcache.WithLogger(logger))...)
	if err != nil {
		return nil, nil, err
	}
	d := hashcache.NewDigester(cache, h, hashcache.WithDigesterLogger(logger))
	closer := func() {
		logger.Debug("hash cache usage", zap.Uint64("hits", d.Hits()), zap.Uint64("misses", d.Misses()))
		internal.LogMemStats(logger)
		if err := cache.Close(); err != nil {
			logger.Warn("closing hash cache", zap.Error(err))
		}
	}
	return d, closer, nil
}

func mustGetLogger(settings *config.Settings) *zap.Logger {
	logger, err := dlogger.GetConsoleLogger(settings.LogLevel)
	if err != nil {
		wrapFatalln("failed to set log level", err)
		return nil
	}
	return logger
}
