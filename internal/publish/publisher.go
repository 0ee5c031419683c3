package publish

import (
	"context"
	"sync"
	"time"

	"github.com/rohmanhakim/connector-etl/internal/metadata"
	"github.com/rohmanhakim/connector-etl/internal/pipeline"
	"github.com/rohmanhakim/connector-etl/internal/searchindex"
	"github.com/rohmanhakim/connector-etl/pkg/failure"
	"github.com/rohmanhakim/connector-etl/pkg/retry"
	"github.com/rohmanhakim/connector-etl/pkg/timeutil"
)

/*
Responsibilities

- Buffer documents until the batch threshold, submit each batch as one
  idempotent update
- Request a commit every commit-threshold documents and once at finish
- Enforce the per-run document budget: past it, documents are discarded
  and the caller must broadcast CrawlAbort upstream

Batches are retried once on transient errors; commits are retried twice
with linear backoff. A batch that fails both attempts marks every doc in
it as Publish-failed and the run continues.
*/

// Thresholds are the three publisher limits.
type Thresholds struct {
	BatchDocCount  int // submit when reached, default 100
	CommitDocCount int // commit when reached, default 1000
	MaxDocCount    int // hard per-run bound, default 500000
}

// DefaultThresholds mirrors the documented defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{BatchDocCount: 100, CommitDocCount: 1000, MaxDocCount: 500000}
}

// Outcome is what happened to one document handed to Add: buffered for a
// later batch, part of a submitted batch, or discarded by the budget.
type Outcome int

const (
	OutcomeBuffered Outcome = iota
	OutcomeSubmitted
	OutcomeDiscarded
)

// Stats is a point-in-time snapshot of publisher counters.
type Stats struct {
	Accepted  int
	Submitted int
	Failed    int
	Discarded int
	Commits   int
}

// Publisher is the C5 phase. It is safe for a pool of Publish workers to
// share one value.
type Publisher struct {
	index        searchindex.Index
	thresholds   Thresholds
	retryParam   retry.RetryParam
	metadataSink metadata.MetadataSink

	mu           sync.Mutex
	buffer       []*pipeline.Document
	sinceCommit  int
	accepted     int
	submitted    int
	failed       []string
	discarded    int
	commits      int
	committedAny bool
}

// New builds a Publisher over the given index client.
func New(index searchindex.Index, metadataSink metadata.MetadataSink, thresholds Thresholds, retryParam retry.RetryParam) *Publisher {
	if thresholds.BatchDocCount <= 0 {
		thresholds.BatchDocCount = DefaultThresholds().BatchDocCount
	}
	if thresholds.CommitDocCount <= 0 {
		thresholds.CommitDocCount = DefaultThresholds().CommitDocCount
	}
	if thresholds.MaxDocCount <= 0 {
		thresholds.MaxDocCount = DefaultThresholds().MaxDocCount
	}
	return &Publisher{
		index:        index,
		thresholds:   thresholds,
		retryParam:   retryParam,
		metadataSink: metadataSink,
	}
}

// Add hands one document to the publisher. Past the document budget the
// document is discarded and a BudgetExceeded error is returned; the
// caller is responsible for broadcasting CrawlAbort upstream.
func (p *Publisher) Add(ctx context.Context, doc *pipeline.Document) (Outcome, failure.ClassifiedError) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.accepted >= p.thresholds.MaxDocCount {
		p.discarded++
		return OutcomeDiscarded, &PublishError{
			Cause:   ErrCauseBudgetExceeded,
			DocIDs:  []string{doc.NSDId},
			Message: "document budget reached, discarding",
		}
	}

	p.accepted++
	p.buffer = append(p.buffer, doc)

	if len(p.buffer) < p.thresholds.BatchDocCount {
		return OutcomeBuffered, nil
	}
	return OutcomeSubmitted, p.flushLocked(ctx)
}

// Finish submits the residual batch and issues the final commit, the
// CrawlFinish path.
func (p *Publisher) Finish(ctx context.Context) failure.ClassifiedError {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.buffer) > 0 {
		if err := p.flushLocked(ctx); err != nil {
			return err
		}
	}
	return p.commitLocked(ctx)
}

// Stats returns a snapshot of the publisher's counters.
func (p *Publisher) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Accepted:  p.accepted,
		Submitted: p.submitted,
		Failed:    len(p.failed),
		Discarded: p.discarded,
		Commits:   p.commits,
	}
}

// FailedDocIDs returns the ids of documents whose batch failed both
// submission attempts, for the mail report's error listing.
func (p *Publisher) FailedDocIDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.failed...)
}

// CommittedAny reports whether at least one commit succeeded; on abort
// the service tracker advances only if it did.
func (p *Publisher) CommittedAny() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.committedAny
}

// BudgetReached reports whether the per-run document bound has been hit.
func (p *Publisher) BudgetReached() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.accepted >= p.thresholds.MaxDocCount
}

// flushLocked submits the buffered batch, retried once on transient
// errors. Both attempts failing marks every doc in the batch as failed
// and returns a recoverable PublishError. Callers hold p.mu.
func (p *Publisher) flushLocked(ctx context.Context) failure.ClassifiedError {
	batch := p.buffer
	p.buffer = nil
	if len(batch) == 0 {
		return nil
	}

	batchParam := p.retryParam
	batchParam.MaxAttempts = 2

	result := retry.Retry(batchParam, func() (struct{}, failure.ClassifiedError) {
		return struct{}{}, p.index.UpsertBatch(ctx, batch)
	})
	if result.IsFailure() {
		ids := make([]string, 0, len(batch))
		for _, doc := range batch {
			ids = append(ids, doc.NSDId)
		}
		p.failed = append(p.failed, ids...)
		p.recordBatchFailure(ids, result.Err())
		return &PublishError{Cause: ErrCauseBatchFailed, DocIDs: ids, Message: result.Err().Error()}
	}

	p.submitted += len(batch)
	p.sinceCommit += len(batch)

	if p.sinceCommit >= p.thresholds.CommitDocCount {
		return p.commitLocked(ctx)
	}
	return nil
}

// commitLocked requests a commit, retried twice with linear backoff: with
// three attempts and a multiplier of 2 the two waits are d and 2d, d being
// the configured initial backoff (each capped at the configured maximum).
// Callers hold p.mu.
func (p *Publisher) commitLocked(ctx context.Context) failure.ClassifiedError {
	commitParam := p.retryParam
	commitParam.MaxAttempts = 3
	commitParam.BackoffParam = timeutil.NewBackoffParam(
		commitParam.BackoffParam.InitialDuration(), 2.0, commitParam.BackoffParam.MaxDuration(),
	)

	result := retry.Retry(commitParam, func() (struct{}, failure.ClassifiedError) {
		return struct{}{}, p.index.Commit(ctx)
	})
	if result.IsFailure() {
		return &PublishError{Cause: ErrCauseCommitFailed, Message: result.Err().Error()}
	}
	p.commits++
	p.committedAny = true
	p.sinceCommit = 0
	return nil
}

func (p *Publisher) recordBatchFailure(ids []string, err failure.ClassifiedError) {
	attrs := make([]metadata.Attribute, 0, len(ids))
	for _, id := range ids {
		attrs = append(attrs, metadata.NewAttr(metadata.AttrDocID, id))
	}
	p.metadataSink.RecordError(time.Now(), "publish", "Publisher.flush",
		metadata.CauseNetworkFailure, err.Error(), attrs)
}
