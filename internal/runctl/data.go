package runctl

import (
	"context"

	"github.com/rohmanhakim/connector-etl/internal/mail"
	"github.com/rohmanhakim/connector-etl/internal/pipeline"
	"github.com/rohmanhakim/connector-etl/internal/publish"
	"github.com/rohmanhakim/connector-etl/pkg/failure"
)

// State is the run controller's position in its lifecycle machine.
type State string

const (
	StateIdle      State = "Idle"
	StateLocking   State = "Locking"
	StateLoading   State = "Loading"
	StateStarting  State = "Starting"
	StateRunning   State = "Running"
	StateFlushing  State = "Flushing"
	StateReporting State = "Reporting"
	StateUnlocking State = "Unlocking"
)

// Well-known file names inside the work directory.
const (
	LockFileName    = "CrawlActive.lck"
	TrackerFileName = "service-tracker.xml"
	SummaryFileName = "crawl-summary.txt"
	stagingDirName  = "staging"
)

// Exit codes surfaced to the operating system.
const (
	ExitOK        = 0
	ExitFatalInit = 1
	ExitLockBusy  = 2
)

// RunResult is everything one controller invocation reports back to the
// CLI.
type RunResult struct {
	ExitCode        int
	CrawlType       pipeline.CrawlType
	NotDue          bool
	Aborted         bool
	BudgetHit       bool
	TrackerAdvanced bool
	PublishStats    publish.Stats
	Err             failure.ClassifiedError
}

// OutcomeNotifier is the controller-facing slice of the mail notifier.
type OutcomeNotifier interface {
	NotifyRunOutcome(outcome mail.RunOutcome) failure.ClassifiedError
}

// DocumentTransformer is the controller-facing slice of the Transformer
// (C4); tests inject faults through it.
type DocumentTransformer interface {
	Apply(ctx context.Context, doc *pipeline.Document) failure.ClassifiedError
}
