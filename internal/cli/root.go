package cmd

import (
	"github.com/spf13/cobra"

	"github.com/rohmanhakim/connector-etl/internal/logging"
)

var (
	cfgFile  string
	logLevel string
	logJSON  bool
)

// exitCode is set by subcommands that need a non-zero exit without a
// cobra-level error (lock-busy, fatal-init).
var exitCode int

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "connector",
	Short: "Content-crawl ETL connector for file shares and web sites.",
	Long: `connector ingests documents from file shares and web sites and
publishes them into a downstream search index.

One invocation runs a single crawl (full or incremental) through the
Extract/Transform/Publish pipeline and exits; --daemon keeps the process
resident and fires runs on the configured schedule.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(logging.Params{Level: logLevel, JSON: logJSON})
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately. It returns the process exit code instead of calling
// os.Exit itself, so main stays the only exit point.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		return 1
	}
	return exitCode
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "emit JSON log lines")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(pingCmd)
}
