package logging

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	base     *zap.Logger
	baseOnce sync.Once
)

// Params configures the process-wide logger. JSON is used for anything
// other than local interactive runs, since log output is expected to be
// scraped by whatever is supervising the connector.
type Params struct {
	Level      string // debug|info|warn|error
	JSON       bool
	OutputPath string // empty means stderr
}

// Init builds the process-wide zap.Logger exactly once. Subsequent calls
// are no-ops; callers that need a distinctly configured logger should use
// New directly instead.
func Init(p Params) *zap.Logger {
	baseOnce.Do(func() {
		base = New(p)
	})
	return base
}

// L returns the process-wide logger, falling back to a sane default
// (info level, console encoding) if Init was never called — useful for
// package-level loggers created before main() runs config.
func L() *zap.Logger {
	if base == nil {
		return New(Params{Level: "info"})
	}
	return base
}

// New builds a standalone zap.Logger from Params without touching the
// process-wide singleton. The run controller uses this to build a
// per-run logger tagged with the run id.
func New(p Params) *zap.Logger {
	level := parseLevel(p.Level)

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if p.JSON {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	} else {
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	}

	sink := zapcore.AddSync(os.Stderr)
	if p.OutputPath != "" {
		f, err := os.OpenFile(p.OutputPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err == nil {
			sink = zapcore.NewMultiWriteSyncer(zapcore.AddSync(os.Stderr), zapcore.AddSync(f))
		}
	}

	core := zapcore.NewCore(encoder, sink, level)
	return zap.New(core, zap.AddCaller())
}

func parseLevel(raw string) zapcore.Level {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(raw)); err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

// WithRun returns a child logger tagged with the run's correlation id, the
// way every log line emitted during a single crawl run should be.
func WithRun(logger *zap.Logger, runID string) *zap.Logger {
	return logger.With(zap.String("run_id", runID))
}
