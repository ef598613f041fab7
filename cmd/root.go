// Package cmd implements the sitesync command-line interface: one subcommand
// per pipeline stage plus tenant management and the cron scheduler.
package cmd

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	cmdapply "github.com/northvine/sitesync/cmd/apply"
	cmdorchestrate "github.com/northvine/sitesync/cmd/orchestrate"
	cmdscan "github.com/northvine/sitesync/cmd/scan"
	cmdscheduler "github.com/northvine/sitesync/cmd/scheduler"
	cmdtenants "github.com/northvine/sitesync/cmd/tenants"
)

var (
	// cfgFile holds the path to the configuration file.
	cfgFile string

	// debug enables debug logging for all commands.
	debug bool

	rootCmd = &cobra.Command{
		Use:   "sitesync",
		Short: "Keep tenant search indexes in sync with their websites",
		Long: `sitesync tracks the sitemaps of configured tenant websites, fetches
changed pages through the crawl engine, and applies the results to each
tenant's search index.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command.
func Execute() error {
	// Load .env early so the config layer sees its variables.
	_ = godotenv.Load()

	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is ./config.yaml or ./config/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("sitesync version %s\n", version())
		},
	})

	rootCmd.AddCommand(cmdscan.Command())
	rootCmd.AddCommand(cmdorchestrate.Command())
	rootCmd.AddCommand(cmdapply.Command())
	rootCmd.AddCommand(cmdscheduler.Command())
	rootCmd.AddCommand(cmdtenants.Command())
}

func version() string {
	if v := os.Getenv("SITESYNC_VERSION"); v != "" {
		return v
	}
	return "dev"
}
