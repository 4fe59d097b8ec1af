package cmd

import (
	"fmt"

	units "github.com/docker/go-units"
	"github.com/oneconcern/hashlink/pkg/indexer"
	"github.com/oneconcern/hashlink/pkg/reconcile"
	"github.com/oneconcern/hashlink/pkg/walk"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var addCmd = &cobra.Command{
	Use:   "add FILES_OR_DIRS...",
	Short: "Add files to the store",
	Long: `Add files and directories to the store.

The store root is located from the first argument: this is the closest directory named after --store,
in the directory of this argument or any of its parents.

Every file is linked to its content address in the store. A file with the same content as an existing
store entry is reconciled with it as per --policy: both end up as the same inode.
`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		settings := loadSettings()
		if settings == nil {
			return
		}
		logger := mustGetLogger(settings)
		if logger == nil {
			return
		}
		policy, err := settings.ReconcilePolicy()
		if err != nil {
			wrapFatalln("reconciliation policy", err)
			return
		}

		root, err := walk.FindRoot(afero.NewOsFs(), args[0], settings.Store)
		if err != nil {
			wrapFatalWithCodef(exitRootNotFound, "cannot locate store: %v", err)
			return
		}
		logger.Info("found store root", zap.String("root", root))

		digester, closeCache, err := newDigester(settings, logger)
		if err != nil {
			wrapFatalln("hash cache", err)
			return
		}
		defer closeCache()

		ix := indexer.New(root,
			indexer.WithDigester(digester),
			indexer.WithLinker(reconcile.New(reconcile.WithPolicy(policy), reconcile.WithLogger(logger))),
			indexer.WithObserver(logObserver(logger)),
			indexer.WithKeepGoing(hashlinkFlags.add.keepGoing),
			indexer.WithLogger(logger),
		)
		err = ix.AddAll(args)

		stats := ix.Stats()
		_, _ = fmt.Fprintf(cmd.OutOrStdout(),
			"%d stored, %d already linked, %d relinked, %d failed (%s deduplicated)\n",
			stats.Stored, stats.AlreadyLinked, stats.Relinked, stats.Failed,
			units.HumanSize(float64(stats.BytesDeduplicated)),
		)
		if err != nil {
			wrapFatalln("add", err)
			return
		}
	},
}

func logObserver(logger *zap.Logger) indexer.Observer {
	return func(e indexer.Event) {
		switch {
		case !e.Done:
			logger.Info("adding", zap.String("path", e.Path))
		case e.Err != nil:
			logger.Error("failed", zap.String("path", e.Path), zap.Error(e.Err))
		}
	}
}

func init() {
	if err := viper.BindPFlag("policy", addCmd.Flags().Lookup(addPolicyFlag(addCmd))); err != nil {
		wrapFatalln("bind flag", err)
		return
	}
	addKeepGoingFlag(addCmd)

	rootCmd.AddCommand(addCmd)
}
