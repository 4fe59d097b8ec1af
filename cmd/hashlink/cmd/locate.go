package cmd

import (
	"fmt"

	"github.com/oneconcern/hashlink/pkg/walk"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var locateCmd = &cobra.Command{
	Use:   "root [PATH]",
	Short: "Print the store root",
	Long: `Print the store root located from PATH (defaults to the current directory).

This is the closest directory named after --store, in PATH or any of its parents.
`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		settings := loadSettings()
		if settings == nil {
			return
		}

		start := "."
		if len(args) > 0 {
			start = args[0]
		}
		root, err := walk.FindRoot(afero.NewOsFs(), start, settings.Store)
		if err != nil {
			wrapFatalWithCodef(exitRootNotFound, "cannot locate store: %v", err)
			return
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), root)
	},
}

func init() {
	rootCmd.AddCommand(locateCmd)
}
