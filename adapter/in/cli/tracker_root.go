// Package cli provides the command-line interface of the tracker server.
package cli

import (
	"github.com/spf13/cobra"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "tracker",
	Short: "Referrer and UTM attribution tracker",
	Long: `Captures where a visitor came from (UTM tags, ad click IDs, referrer)
and hands the attribution to the site's forms.

Without a subcommand the HTTP server is started.`,
	SilenceUsage: true,
	RunE:         runServe,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("tracker version %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
