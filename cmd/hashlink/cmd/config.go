package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"
)

// configCmd prints the effective configuration
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long: `Print the effective configuration as YAML.

Settings are resolved from flags, then HASHLINK_* environment variables, then the configuration
file (hashlink.yaml in the current directory, $HOME/.hashlink or /etc/hashlink, or the file
designated by HASHLINK_CONFIG), then defaults.
`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		settings := loadSettings()
		if settings == nil {
			return
		}
		b, err := yaml.Marshal(settings)
		if err != nil {
			wrapFatalln("failed to marshal configuration", err)
			return
		}
		_, _ = fmt.Fprint(cmd.OutOrStdout(), string(b))
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
