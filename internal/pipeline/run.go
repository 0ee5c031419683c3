package pipeline

import (
	"sync/atomic"
	"time"
)

// CrawlType distinguishes a full crawl (every start URI re-walked) from
// an incremental one (only items modified since the last incremental
// run).
type CrawlType string

const (
	CrawlFull        CrawlType = "Full"
	CrawlIncremental CrawlType = "Incremental"
)

// CrawlRun is the per-invocation context threaded through C3-C6: it
// carries the abort flag every worker checks on each loop iteration, and
// the document budget the Publisher enforces.
type CrawlRun struct {
	RunID             string
	CrawlType         CrawlType
	StartedAt         time.Time
	LastFullAt        time.Time
	LastIncrementalAt time.Time
	DocumentBudget    int

	abortRequested atomic.Bool
}

// NewCrawlRun starts a run context for the given type and budget.
func NewCrawlRun(runID string, crawlType CrawlType, budget int) *CrawlRun {
	return &CrawlRun{
		RunID:          runID,
		CrawlType:      crawlType,
		StartedAt:      time.Now(),
		DocumentBudget: budget,
	}
}

// RequestAbort sets the abort flag. Idempotent: calling it more than once
// has no further effect.
func (r *CrawlRun) RequestAbort() {
	r.abortRequested.Store(true)
}

// AbortRequested reports whether the run has been asked to abort. Workers
// must check this on every loop iteration and on every wake from a
// blocked put/take.
func (r *CrawlRun) AbortRequested() bool {
	return r.abortRequested.Load()
}
