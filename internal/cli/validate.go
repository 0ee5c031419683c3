package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rohmanhakim/connector-etl/internal/config"
	"github.com/rohmanhakim/connector-etl/internal/runctl"
	"github.com/rohmanhakim/connector-etl/internal/urimatch"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and start-URI reachability without crawling.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "config invalid: %s\n", err)
			exitCode = runctl.ExitFatalInit
			return nil
		}

		matcher := urimatch.New()
		if lerr := matcher.LoadStart(cfg.CrawlStartFile); lerr != nil {
			fmt.Fprintf(os.Stderr, "start rules unreadable: %s\n", lerr)
			exitCode = runctl.ExitFatalInit
			return nil
		}
		if cfg.CrawlFollowFile != "" {
			if lerr := matcher.LoadFollow(cfg.CrawlFollowFile); lerr != nil {
				fmt.Fprintf(os.Stderr, "follow rules unreadable: %s\n", lerr)
				exitCode = runctl.ExitFatalInit
				return nil
			}
		}
		if cfg.CrawlIgnoreFile != "" {
			if lerr := matcher.LoadIgnore(cfg.CrawlIgnoreFile); lerr != nil {
				fmt.Fprintf(os.Stderr, "ignore rules invalid: %s\n", lerr)
				exitCode = runctl.ExitFatalInit
				return nil
			}
		}
		if verr := matcher.ValidateStarts(cmd.Context()); verr != nil {
			fmt.Fprintf(os.Stderr, "start unreachable: %s\n", verr)
			exitCode = runctl.ExitFatalInit
			return nil
		}

		fmt.Printf("configuration valid, %d start entries reachable\n", len(matcher.Starts()))
		return nil
	},
}
