// Command lifelens analyzes journal entries for themes, weekly mood trends,
// day-of-week patterns and unusual entries.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:   "lifelens",
	Short: "Behavioral pattern analysis for personal journals",
	Long: `lifelens reads dated journal entries (diary text, voice transcripts,
image captions), groups them into themes, tracks mood week by week, looks for
day-of-week patterns and flags entries that stand out.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the lifelens version",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("lifelens version %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.AddCommand(
		analyzeCmd,
		submitCmd,
		runsCmd,
		cacheCmd,
		serveCmd,
		stopCmd,
		statusCmd,
		configCmd,
		versionCmd,
	)
}

func main() {
	if err := run(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}

func run() error {
	return rootCmd.Execute()
}
