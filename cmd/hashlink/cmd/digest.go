package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/oneconcern/hashlink/pkg/address"
	"github.com/oneconcern/hashlink/pkg/walk"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var digestCmd = &cobra.Command{
	Use:   "digest FILES_OR_DIRS...",
	Short: "Print the digest and content address of files",
	Long: `Print the digest and content address of files, without modifying the store.

Each line reads: <digest>  <address>  <path>, where the address is relative to the store root.
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

		digester, closeCache, err := newDigester(settings, logger)
		if err != nil {
			wrapFatalln("hash cache", err)
			return
		}
		defer closeCache()

		out := cmd.OutOrStdout()
		err = walk.Paths(afero.NewOsFs(), args, func(path string, _ os.FileInfo) error {
			digest, e := digester.Digest(path)
			if e != nil {
				return e
			}
			_, e = fmt.Fprintf(out, "%s  %s  %s\n", digest, address.Path(digest, filepath.Base(path)), path)
			return e
		})
		if err != nil {
			wrapFatalln("digest", err)
			return
		}
	},
}

func init() {
	rootCmd.AddCommand(digestCmd)
}
