package cmd

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/rohmanhakim/connector-etl/internal/assets"
	"github.com/rohmanhakim/connector-etl/internal/build"
	"github.com/rohmanhakim/connector-etl/internal/config"
	"github.com/rohmanhakim/connector-etl/internal/extract"
	"github.com/rohmanhakim/connector-etl/internal/extract/fileshare"
	"github.com/rohmanhakim/connector-etl/internal/extract/web"
	"github.com/rohmanhakim/connector-etl/internal/extractor"
	"github.com/rohmanhakim/connector-etl/internal/mail"
	"github.com/rohmanhakim/connector-etl/internal/metadata"
	"github.com/rohmanhakim/connector-etl/internal/runctl"
	"github.com/rohmanhakim/connector-etl/internal/searchindex"
	"github.com/rohmanhakim/connector-etl/internal/svctimer"
	"github.com/rohmanhakim/connector-etl/internal/transform"
	"github.com/rohmanhakim/connector-etl/internal/urimatch"
	"github.com/rohmanhakim/connector-etl/pkg/hashutil"
	"github.com/rohmanhakim/connector-etl/pkg/retry"
	"github.com/rohmanhakim/connector-etl/pkg/timeutil"
)

// buildDeps wires the production dependency graph for one controller.
func buildDeps(cfg config.Config, logger *zap.Logger) runctl.Deps {
	recorder := metadata.NewRecorder("connector", logger)

	retryParam := retry.NewRetryParam(
		cfg.BackoffInitialDuration,
		cfg.Jitter,
		cfg.RandomSeed,
		cfg.MaxAttempt,
		timeutil.NewBackoffParam(cfg.BackoffInitialDuration, cfg.BackoffMultiplier, cfg.BackoffMaxDuration),
	)

	resolver := assets.NewLocalResolver(&recorder, &http.Client{Timeout: cfg.Timeout}, cfg.UserAgent)

	transformer := transform.New(&recorder, &resolver, transform.Params{
		Rules: transform.Rules{
			FieldMap:      cfg.Transform.FieldMap,
			DeleteFields:  cfg.Transform.DeleteFields,
			BagCopyPrefix: cfg.Transform.BagCopyPrefix,
		},
		ExtractParam: extractor.NewExtractParam(cfg.Extract.BodySpecificityBias, cfg.Extract.LinkDensityThreshold),
		Archive: transform.ArchiveParam{
			Enabled:       cfg.Transform.ArchiveDir != "",
			Dir:           cfg.Transform.ArchiveDir,
			ResolveAssets: cfg.Transform.ResolveAssets,
			AppVersion:    build.FullVersion(),
		},
		RetryParam: retryParam,
		UserAgent:  cfg.UserAgent,
		HashAlgo:   hashutil.HashAlgoBLAKE3,
	})

	return runctl.Deps{
		Config:       cfg,
		Logger:       logger,
		MetadataSink: &recorder,
		Index:        searchindex.NewHTTPIndex(cfg.SearchIndexURL, cfg.Timeout),
		Notifier:     mail.New(cfg.Mail),
		Timer:        svctimer.New(cfg.RunFullInterval, cfg.RunIncrementalInterval),
		Transformer:  transformer,
		BuildExtractors: func(matcher *urimatch.Matcher) []extract.Extractor {
			return []extract.Extractor{
				fileshare.New(matcher, &recorder),
				web.New(matcher, &recorder, web.Params{
					UserAgent:     cfg.UserAgent,
					MaxDepth:      cfg.MaxDepth,
					JsAware:       cfg.JsAware,
					PoliteMs:      time.Duration(cfg.PolitenessMs) * time.Millisecond,
					GovernorRPS:   cfg.GovernorRPS,
					GovernorBurst: cfg.ExtractThreads,
					RetryParam:    retryParam,
				}),
			}
		},
	}
}
