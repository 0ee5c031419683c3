package runctl

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rohmanhakim/connector-etl/internal/config"
	"github.com/rohmanhakim/connector-etl/internal/extract"
	"github.com/rohmanhakim/connector-etl/internal/mail"
	"github.com/rohmanhakim/connector-etl/internal/metadata"
	"github.com/rohmanhakim/connector-etl/internal/metrics"
	"github.com/rohmanhakim/connector-etl/internal/pipeline"
	"github.com/rohmanhakim/connector-etl/internal/publish"
	"github.com/rohmanhakim/connector-etl/internal/searchindex"
	"github.com/rohmanhakim/connector-etl/internal/staging"
	"github.com/rohmanhakim/connector-etl/internal/svctimer"
	"github.com/rohmanhakim/connector-etl/internal/urimatch"
	"github.com/rohmanhakim/connector-etl/pkg/failure"
	"github.com/rohmanhakim/connector-etl/pkg/fileutil"
	"github.com/rohmanhakim/connector-etl/pkg/retry"
	"github.com/rohmanhakim/connector-etl/pkg/timeutil"
)

/*
Responsibilities

- Own the CrawlActive.lck lock file: exactly one run per work directory
- Load URI rules and the service-tracker snapshot, decide full vs
  incremental, spin up the Running-phase pipeline
- Report the outcome: metrics summary, mail on fatal or abort, tracker
  advance rules, lock release

The controller is single-threaded for its own state; only the worker
pools inside the Running phase are concurrent.
*/

// Deps is everything one controller invocation needs. BuildExtractors
// lets tests substitute source adapters without faking a filesystem or a
// web server.
type Deps struct {
	Config          config.Config
	Logger          *zap.Logger
	MetadataSink    metadata.MetadataSink
	Index           searchindex.Index
	Notifier        OutcomeNotifier
	Timer           *svctimer.Timer
	Transformer     DocumentTransformer
	BuildExtractors func(matcher *urimatch.Matcher) []extract.Extractor

	Now func() time.Time
}

// Controller drives one crawl run through the lifecycle machine.
type Controller struct {
	deps         Deps
	state        State
	aggregator   *metrics.Aggregator
	runStartedAt time.Time
}

// NewController builds a Controller in Idle.
func NewController(deps Deps) *Controller {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Controller{deps: deps, state: StateIdle}
}

// State reports the controller's current lifecycle state.
func (c *Controller) State() State {
	return c.state
}

// Aggregator exposes the current run's metrics aggregator (nil before
// the first run), for the admin HTTP /metrics endpoint.
func (c *Controller) Aggregator() *metrics.Aggregator {
	return c.aggregator
}

// Run executes one crawl. force selects the crawl type explicitly; empty
// means "ask the service timer", and a run where neither type is due
// returns NotDue without crawling.
func (c *Controller) Run(ctx context.Context, force pipeline.CrawlType) RunResult {
	cfg := c.deps.Config
	runID := uuid.NewString()
	c.runStartedAt = time.Now()
	logger := c.deps.Logger.With(zap.String("run_id", runID))

	lockPath := filepath.Join(cfg.WorkDir, LockFileName)
	trackerPath := filepath.Join(cfg.WorkDir, TrackerFileName)

	// Locking
	c.state = StateLocking
	if err := fileutil.TryLock(lockPath, []byte(runID)); err != nil {
		c.state = StateIdle
		exitCode := ExitFatalInit
		var lockErr failure.ClassifiedError = err
		var fileErr *fileutil.FileError
		if asFileError(err, &fileErr) && fileErr.Cause == fileutil.ErrCauseLockBusy {
			exitCode = ExitLockBusy
			lockErr = failure.Wrap(failure.KindLockBusy, "crawl lock already held", err)
			logger.Warn("lock busy, another run is in progress", zap.String("lock", lockPath))
		}
		c.notify(logger, mail.RunOutcome{
			Connector: c.connectorName(),
			CrawlType: string(force),
			Success:   false,
			LastError: lockErr.Error(),
		})
		return RunResult{ExitCode: exitCode, Err: lockErr}
	}
	defer fileutil.Unlock(lockPath)

	// Loading
	c.state = StateLoading
	matcher, tracker, loadErr := c.load(ctx, trackerPath)
	if loadErr != nil {
		c.state = StateIdle
		logger.Error("loading failed", zap.Error(loadErr))
		c.notify(logger, mail.RunOutcome{
			Connector: c.connectorName(),
			CrawlType: string(force),
			Success:   false,
			LastError: loadErr.Error(),
		})
		return RunResult{ExitCode: ExitFatalInit, Err: loadErr}
	}

	// Starting
	c.state = StateStarting
	crawlType, due := c.selectCrawlType(force, tracker)
	if !due {
		c.state = StateIdle
		logger.Info("no crawl type due, skipping run")
		return RunResult{ExitCode: ExitOK, NotDue: true}
	}
	logger.Info("starting crawl", zap.String("crawl_type", string(crawlType)))

	run := pipeline.NewCrawlRun(runID, crawlType, cfg.PublishMax)
	run.LastFullAt = tracker.LastFullServiceTs
	run.LastIncrementalAt = tracker.LastIncrementalServiceTs

	area, stageErr := staging.Open(filepath.Join(cfg.WorkDir, stagingDirName))
	if stageErr != nil {
		c.state = StateIdle
		logger.Error("staging open failed", zap.Error(stageErr))
		c.notify(logger, mail.RunOutcome{
			Connector: c.connectorName(),
			CrawlType: string(crawlType),
			Success:   false,
			LastError: stageErr.Error(),
		})
		return RunResult{ExitCode: ExitFatalInit, Err: stageErr}
	}
	defer area.Close()

	c.aggregator = metrics.NewAggregator()
	publisher := publish.New(c.deps.Index, c.deps.MetadataSink, publish.Thresholds{
		BatchDocCount:  cfg.PublishBatch,
		CommitDocCount: cfg.PublishCommit,
		MaxDocCount:    cfg.PublishMax,
	}, retryParamFromConfig(cfg))

	crawl := &crawlPipeline{
		run:              run,
		extractors:       c.deps.BuildExtractors(matcher),
		transformer:      c.deps.Transformer,
		publisher:        publisher,
		area:             area,
		aggregator:       c.aggregator,
		logger:           logger,
		queueLen:         cfg.QueueLength,
		transformThreads: cfg.TransformThreads,
		publishThreads:   cfg.PublishThreads,
		flushTimeout:     cfg.Timeout,
	}

	// Running → Flushing happens inside runAll; the publisher's residual
	// flush is deadline-bounded there.
	c.state = StateRunning
	result := crawl.runAll(ctx)
	c.state = StateFlushing

	// Reporting
	c.state = StateReporting
	stats := publisher.Stats()
	c.report(logger, crawlType, result, stats)

	// Unlocking
	c.state = StateUnlocking
	advanced := c.advanceTracker(logger, tracker, trackerPath, crawlType, result, publisher)
	c.state = StateIdle

	return RunResult{
		ExitCode:        ExitOK,
		CrawlType:       crawlType,
		Aborted:         result.Aborted,
		BudgetHit:       result.BudgetHit,
		TrackerAdvanced: advanced,
		PublishStats:    stats,
		Err:             result.FatalErr,
	}
}

// load reads URI rule files, validates start reachability, and loads the
// tracker snapshot (whose absence is not an error: first run).
func (c *Controller) load(ctx context.Context, trackerPath string) (*urimatch.Matcher, ServiceTracker, failure.ClassifiedError) {
	cfg := c.deps.Config
	matcher := urimatch.New()
	matcher.SetInsecureTLS(cfg.InsecureTLS)

	if err := matcher.LoadStart(cfg.CrawlStartFile); err != nil {
		return nil, ServiceTracker{}, err
	}
	if cfg.CrawlFollowFile != "" {
		if err := matcher.LoadFollow(cfg.CrawlFollowFile); err != nil {
			return nil, ServiceTracker{}, err
		}
	}
	if cfg.CrawlIgnoreFile != "" {
		if err := matcher.LoadIgnore(cfg.CrawlIgnoreFile); err != nil {
			return nil, ServiceTracker{}, err
		}
	}
	if err := matcher.ValidateStarts(ctx); err != nil {
		return nil, ServiceTracker{}, err
	}

	return matcher, LoadTracker(trackerPath), nil
}

// selectCrawlType applies the timer's decision; full wins when both are
// due.
func (c *Controller) selectCrawlType(force pipeline.CrawlType, tracker ServiceTracker) (pipeline.CrawlType, bool) {
	if force != "" {
		return force, true
	}
	if c.deps.Timer == nil {
		return pipeline.CrawlFull, true
	}
	if c.deps.Timer.IsTimeForFullService(tracker.LastFullServiceTs) {
		return pipeline.CrawlFull, true
	}
	if c.deps.Timer.IsTimeForIncrementalService(tracker.LastIncrementalServiceTs) {
		return pipeline.CrawlIncremental, true
	}
	return "", false
}

// report writes the summary file and sends mail on fatal or abort
// outcomes. A budget-capped run is reported as success-with-cap.
func (c *Controller) report(logger *zap.Logger, crawlType pipeline.CrawlType, result pipelineResult, stats publish.Stats) {
	summaryPath := filepath.Join(c.deps.Config.WorkDir, SummaryFileName)
	if f, err := os.Create(summaryPath); err == nil {
		c.aggregator.WriteSummary(f)
		f.Close()
	} else {
		logger.Warn("summary write failed", zap.Error(err))
	}

	if finalizer, ok := c.deps.MetadataSink.(metadata.CrawlFinalizer); ok {
		snapshot := c.aggregator.Snapshot()
		totalErrors := 0
		for _, phase := range snapshot {
			totalErrors += phase.Errors
		}
		finalizer.RecordFinalCrawlStats(stats.Submitted, totalErrors, 0, time.Since(c.runStartedAt))
	}

	logger.Info("crawl finished",
		zap.String("crawl_type", string(crawlType)),
		zap.Int("accepted", stats.Accepted),
		zap.Int("submitted", stats.Submitted),
		zap.Int("failed", stats.Failed),
		zap.Int("discarded", stats.Discarded),
		zap.Int("commits", stats.Commits),
		zap.Bool("aborted", result.Aborted),
		zap.Bool("budget_hit", result.BudgetHit),
	)

	if result.FatalErr == nil && !result.Aborted {
		return
	}

	outcome := mail.RunOutcome{
		Connector:  c.connectorName(),
		CrawlType:  string(crawlType),
		Success:    result.BudgetHit && result.FatalErr == nil,
		ErrorItems: c.aggregator.ErrorItems(),
	}
	if result.FatalErr != nil {
		outcome.LastError = result.FatalErr.Error()
	} else if result.BudgetHit {
		outcome.LastError = failure.New(failure.KindBudgetExceeded, "document budget reached").Error()
	}
	c.notify(logger, outcome)
}

// advanceTracker: success advances, fatal does not, abort advances
// only when at least one commit succeeded.
func (c *Controller) advanceTracker(logger *zap.Logger, tracker ServiceTracker, trackerPath string, crawlType pipeline.CrawlType, result pipelineResult, publisher *publish.Publisher) bool {
	fatal := result.FatalErr != nil && !result.BudgetHit
	switch {
	case fatal:
		return false
	case result.Aborted && !publisher.CommittedAny():
		return false
	}

	next := tracker.Advance(crawlType == pipeline.CrawlFull, c.deps.Now())
	if err := next.Save(trackerPath); err != nil {
		logger.Error("service tracker save failed", zap.Error(err))
		return false
	}
	return true
}

func (c *Controller) notify(logger *zap.Logger, outcome mail.RunOutcome) {
	if c.deps.Notifier == nil {
		return
	}
	if err := c.deps.Notifier.NotifyRunOutcome(outcome); err != nil {
		logger.Warn("outcome mail not sent", zap.Error(err))
	}
}

func (c *Controller) connectorName() string {
	if c.deps.Config.Mail.AppName != "" {
		return c.deps.Config.Mail.AppName
	}
	return "connector"
}

func asFileError(err failure.ClassifiedError, target **fileutil.FileError) bool {
	fe, ok := err.(*fileutil.FileError)
	if !ok {
		return false
	}
	*target = fe
	return true
}

func retryParamFromConfig(cfg config.Config) retry.RetryParam {
	return retry.NewRetryParam(
		cfg.BackoffInitialDuration,
		cfg.Jitter,
		cfg.RandomSeed,
		cfg.MaxAttempt,
		timeutil.NewBackoffParam(cfg.BackoffInitialDuration, cfg.BackoffMultiplier, cfg.BackoffMaxDuration),
	)
}
