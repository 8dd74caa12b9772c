// Suggestd is a personalized product suggestion daemon.
//
// It serves a recommendation API over two vector collections (user profiles
// and catalog items) and a predictive suggestion pipeline that decides when a
// conversation warrants a product suggestion.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// configPath is the --config flag value, empty means the default location.
var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "suggestd",
	Short: "Personalized product suggestion daemon",
	Long: `suggestd serves personalized product recommendations and predictive
conversational suggestions backed by a vector store.

Examples:
  # Start the daemon with the default configuration
  suggestd serve

  # Start with an explicit configuration file
  suggestd serve --config /etc/suggestd/config.yaml`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("suggestd by Fyrsmith Labs\n")
		fmt.Printf("Version:    %s\n", version)
		fmt.Printf("Commit:     %s\n", gitCommit)
		fmt.Printf("Build Date: %s\n", buildDate)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to configuration file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(versionCmd)
}
