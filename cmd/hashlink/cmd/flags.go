// Copyright © 2018 One Concern

package cmd

import (
	"github.com/oneconcern/hashlink/pkg/config"
	"github.com/oneconcern/hashlink/pkg/dlogger"
	"github.com/oneconcern/hashlink/pkg/hasher"
	"github.com/oneconcern/hashlink/pkg/reconcile"
	"github.com/spf13/cobra"
)

type flagsT struct {
	root struct {
		store     string
		algorithm string
		logLevel  string
		noCache   bool
		cpuProf   string
		memProf   string
	}
	add struct {
		policy    string
		keepGoing bool
	}
}

var hashlinkFlags = flagsT{}

func addStoreFlag(cmd *cobra.Command) string {
	store := "store"
	cmd.PersistentFlags().StringVar(&hashlinkFlags.root.store, store, config.DefaultStore,
		"The name of the store root directory, looked up from the first path argument and its parents")
	return store
}

func addAlgorithmFlag(cmd *cobra.Command) string {
	algorithm := "algorithm"
	cmd.PersistentFlags().StringVar(&hashlinkFlags.root.algorithm, algorithm, hasher.SHA256.String(),
		"The content hash algorithm: sha256, blake2b, blake3")
	return algorithm
}

func addLogLevel(cmd *cobra.Command) string {
	loglevel := "loglevel"
	cmd.PersistentFlags().StringVar(&hashlinkFlags.root.logLevel, loglevel, dlogger.LogLevelInfo,
		"The logging level. Levels by increasing order of verbosity: none, error, warn, info, debug")
	return loglevel
}

func addNoCacheFlag(cmd *cobra.Command) string {
	noCache := "no-cache"
	cmd.PersistentFlags().BoolVar(&hashlinkFlags.root.noCache, noCache, false,
		"Compute all digests, without using or updating the hash cache")
	return noCache
}

func addPolicyFlag(cmd *cobra.Command) string {
	policy := "policy"
	cmd.Flags().StringVar(&hashlinkFlags.add.policy, policy, reconcile.Strict.String(),
		`How a file is reconciled with an identical, distinct store entry:
  strict: the file is replaced by a link to the store entry
  merge: the store entry is replaced by a link to the file
  forbid: fail`)
	return policy
}

func addKeepGoingFlag(cmd *cobra.Command) string {
	keepGoing := "keep-going"
	cmd.Flags().BoolVar(&hashlinkFlags.add.keepGoing, keepGoing, false,
		"Continue past failed files, then report all failures")
	return keepGoing
}

func addProfilingFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&hashlinkFlags.root.cpuProf, "cpuprof", "", "Write a CPU profile to this file")
	cmd.PersistentFlags().StringVar(&hashlinkFlags.root.memProf, "memprof", "",
		"Write heap and allocs profiles to files with this prefix, when the command completes")
}
