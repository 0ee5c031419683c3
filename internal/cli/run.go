package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rohmanhakim/connector-etl/internal/adminhttp"
	"github.com/rohmanhakim/connector-etl/internal/build"
	"github.com/rohmanhakim/connector-etl/internal/config"
	"github.com/rohmanhakim/connector-etl/internal/logging"
	"github.com/rohmanhakim/connector-etl/internal/pipeline"
	"github.com/rohmanhakim/connector-etl/internal/runctl"
)

var (
	runFull        bool
	runIncremental bool
	runDaemon      bool
	adminAddr      string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one crawl, or stay resident with --daemon.",
	Long: `run executes a single crawl invocation. Without --full or
--incremental the service timer decides which type (if any) is due.
With --daemon the process stays resident, serves /admin/ping and
/metrics, and fires crawl runs whenever the timer says one is due.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if runFull && runIncremental {
			return fmt.Errorf("--full and --incremental are mutually exclusive")
		}

		cfg, err := config.Load(cfgFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			exitCode = runctl.ExitFatalInit
			return nil
		}

		logger := logging.L()
		controller := runctl.NewController(buildDeps(cfg, logger))

		if runDaemon {
			runAsDaemon(cmd.Context(), controller, logger)
			return nil
		}

		force := pipeline.CrawlType("")
		if runFull {
			force = pipeline.CrawlFull
		}
		if runIncremental {
			force = pipeline.CrawlIncremental
		}

		result := controller.Run(cmd.Context(), force)
		if result.NotDue {
			logger.Info("no crawl due, nothing to do")
		}
		exitCode = result.ExitCode
		return nil
	},
}

// runAsDaemon serves the admin surface and fires timer-decided runs on a
// fixed one-minute tick.
func runAsDaemon(ctx context.Context, controller *runctl.Controller, logger *zap.Logger) {
	gatherer := prometheus.GathererFunc(func() ([]*dto.MetricFamily, error) {
		if agg := controller.Aggregator(); agg != nil {
			return agg.Registry().Gather()
		}
		return nil, nil
	})

	server := adminhttp.New(adminhttp.Params{
		AppName: rootCmd.Use,
		Version: build.FullVersion(),
		Addr:    adminAddr,
	}, gatherer)
	go func() {
		if err := server.Start(); err != nil {
			logger.Warn("admin http server stopped", zap.Error(err))
		}
	}()

	scheduler := cron.New()
	scheduler.AddFunc("@every 1m", func() {
		result := controller.Run(ctx, "")
		if result.NotDue {
			return
		}
		logger.Info("scheduled run finished",
			zap.String("crawl_type", string(result.CrawlType)),
			zap.Int("exit_code", result.ExitCode),
			zap.Bool("aborted", result.Aborted),
		)
	})
	scheduler.Start()

	<-ctx.Done()
	scheduler.Stop()
	server.Shutdown(context.Background())
}

func init() {
	runCmd.Flags().BoolVar(&runFull, "full", false, "force a full crawl")
	runCmd.Flags().BoolVar(&runIncremental, "incremental", false, "force an incremental crawl")
	runCmd.Flags().BoolVar(&runDaemon, "daemon", false, "stay resident and run on the configured schedule")
	runCmd.Flags().StringVar(&adminAddr, "admin-addr", ":8080", "admin http listen address (daemon mode)")
}
