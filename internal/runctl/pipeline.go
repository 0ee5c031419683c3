package runctl

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rohmanhakim/connector-etl/internal/extract"
	"github.com/rohmanhakim/connector-etl/internal/metrics"
	"github.com/rohmanhakim/connector-etl/internal/pipeline"
	"github.com/rohmanhakim/connector-etl/internal/publish"
	"github.com/rohmanhakim/connector-etl/internal/queue"
	"github.com/rohmanhakim/connector-etl/internal/staging"
	"github.com/rohmanhakim/connector-etl/pkg/failure"
)

/*
The Running phase: three worker pools joined by two bounded queues, plus
a metrics tap.

	extractors ──q1──▶ transform pool ──q2──▶ publish pool ──tap──▶ aggregator

Queue items carry doc ids and phase times only; materialized documents
travel Extract→Transform through the staging area and Transform→Publish
through an in-memory handoff keyed by id. Sentinels bracket the stream
on every pipe.
*/

// docHandoff hands materialized documents from the transform pool to the
// publish pool. Take removes, so each document is delivered exactly once.
type docHandoff struct {
	mu   sync.Mutex
	docs map[string]*pipeline.Document
}

func newDocHandoff() *docHandoff {
	return &docHandoff{docs: make(map[string]*pipeline.Document)}
}

func (h *docHandoff) put(doc *pipeline.Document) {
	h.mu.Lock()
	h.docs[doc.NSDId] = doc
	h.mu.Unlock()
}

func (h *docHandoff) take(nsdID string) *pipeline.Document {
	h.mu.Lock()
	defer h.mu.Unlock()
	doc := h.docs[nsdID]
	delete(h.docs, nsdID)
	return doc
}

// stagingSink is the extract.Sink implementation: stage the body, stamp
// the Extract leg's phase time, enqueue the item.
type stagingSink struct {
	area *staging.Area
	out  *queue.Queue
	run  *pipeline.CrawlRun
}

func (s *stagingSink) Stage(ctx context.Context, doc *pipeline.Document) failure.ClassifiedError {
	if s.run.AbortRequested() {
		return failure.New(failure.KindAborted, "staging rejected: abort requested")
	}
	if err := s.area.Put(doc); err != nil {
		return err
	}
	ms := time.Now().UnixMilli() - doc.ArrivalAt
	if ms < 0 {
		ms = 0
	}
	return s.out.Put(queue.Encode(doc.NSDId, []queue.PhaseTime{{Phase: "extract", Millis: ms}}))
}

// crawlPipeline owns everything the Running state spins up.
type crawlPipeline struct {
	run         *pipeline.CrawlRun
	extractors  []extract.Extractor
	transformer DocumentTransformer
	publisher   *publish.Publisher
	area        *staging.Area
	aggregator  *metrics.Aggregator
	logger      *zap.Logger

	queueLen         int
	transformThreads int
	publishThreads   int
	flushTimeout     time.Duration

	q1      *queue.Queue
	q2      *queue.Queue
	tap     *queue.Queue
	handoff *docHandoff

	mu        sync.Mutex
	fatalErr  failure.ClassifiedError
	budgetHit bool
}

type pipelineResult struct {
	Aborted   bool
	BudgetHit bool
	FatalErr  failure.ClassifiedError
}

// runAll drives the three pools to completion and returns once every
// queue has drained past its terminal sentinel.
func (p *crawlPipeline) runAll(ctx context.Context) pipelineResult {
	p.q1 = queue.New(p.queueLen)
	p.q2 = queue.New(p.queueLen)
	p.tap = queue.New(p.queueLen)
	p.handoff = newDocHandoff()

	if p.transformThreads < 1 {
		p.transformThreads = 1
	}
	if p.publishThreads < 1 {
		p.publishThreads = 1
	}

	var tapWg sync.WaitGroup
	tapWg.Add(1)
	go func() {
		defer tapWg.Done()
		p.drainTap()
	}()

	var publishWg sync.WaitGroup
	publishDone := make(chan struct{})
	for i := 0; i < p.publishThreads; i++ {
		publishWg.Add(1)
		go func() {
			defer publishWg.Done()
			p.publishWorker(ctx)
		}()
	}
	go func() {
		publishWg.Wait()
		p.finishPublisher(ctx)
		p.tap.PutSentinel(queue.SentinelCrawlFinish)
		close(publishDone)
	}()

	var transformWg sync.WaitGroup
	for i := 0; i < p.transformThreads; i++ {
		transformWg.Add(1)
		go func() {
			defer transformWg.Done()
			p.transformWorker(ctx)
		}()
	}
	transformDone := make(chan struct{})
	go func() {
		transformWg.Wait()
		if p.run.AbortRequested() {
			p.q2.PutSentinel(queue.SentinelCrawlAbort)
		} else {
			p.q2.PutSentinel(queue.SentinelCrawlFinish)
		}
		close(transformDone)
	}()

	p.runExtractors(ctx)

	<-transformDone
	<-publishDone
	tapWg.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	return pipelineResult{
		Aborted:   p.run.AbortRequested(),
		BudgetHit: p.budgetHit,
		FatalErr:  p.fatalErr,
	}
}

// runExtractors emits CrawlStart, drives every source adapter, then
// closes the stream with CrawlFinish (or CrawlAbort on fatal source
// failure).
func (p *crawlPipeline) runExtractors(ctx context.Context) {
	p.q1.PutSentinel(queue.SentinelCrawlStart)

	sink := &stagingSink{area: p.area, out: p.q1, run: p.run}

	var wg sync.WaitGroup
	for _, ex := range p.extractors {
		wg.Add(1)
		go func(ex extract.Extractor) {
			defer wg.Done()
			if err := ex.Run(ctx, p.run, sink); err != nil {
				// a fatal error observed after the run is already aborting
				// is just the abort echoing back; only the first cause counts
				if err.Severity() == failure.SeverityFatal && !p.run.AbortRequested() {
					p.recordFatal(err)
					p.run.RequestAbort()
				}
				p.logger.Warn("extractor finished with error", zap.Error(err))
			}
		}(ex)
	}
	wg.Wait()

	if p.run.AbortRequested() {
		p.q1.PutSentinel(queue.SentinelCrawlAbort)
		return
	}
	p.q1.PutSentinel(queue.SentinelCrawlFinish)
}

func (p *crawlPipeline) transformWorker(ctx context.Context) {
	for {
		item, ok := p.q1.Take()
		if !ok {
			return
		}
		switch item {
		case queue.SentinelCrawlStart:
			p.q2.PutSentinel(queue.SentinelCrawlStart)
			continue
		case queue.SentinelCrawlFinish, queue.SentinelCrawlAbort:
			// re-broadcast so sibling workers see it too, then exit;
			// the pool supervisor forwards the terminal sentinel to q2
			p.q1.PutSentinel(item)
			return
		}
		if p.run.AbortRequested() {
			continue // discard pending local work, keep draining to the sentinel
		}

		docID, _ := queue.Decode(item)
		doc, err := p.area.Take(docID)
		if err != nil {
			p.aggregator.ObserveError("transform", item)
			continue
		}

		started := time.Now()
		if err := p.transformer.Apply(ctx, doc); err != nil {
			p.aggregator.ObserveError("transform", item)
			continue
		}
		p.handoff.put(doc)

		item = queue.AppendPhase(item, "transform", time.Since(started).Milliseconds())
		if err := p.q2.Put(item); err != nil {
			p.handoff.take(doc.NSDId)
			continue
		}
	}
}

func (p *crawlPipeline) publishWorker(ctx context.Context) {
	for {
		item, ok := p.q2.Take()
		if !ok {
			return
		}
		switch item {
		case queue.SentinelCrawlStart:
			continue
		case queue.SentinelCrawlFinish, queue.SentinelCrawlAbort:
			p.q2.PutSentinel(item)
			return
		}
		if p.run.AbortRequested() && p.budgetReached() {
			continue
		}

		docID, _ := queue.Decode(item)
		doc := p.handoff.take(docID)
		if doc == nil {
			p.aggregator.ObserveError("publish", item)
			continue
		}

		started := time.Now()
		_, err := p.publisher.Add(ctx, doc)
		if err != nil {
			var pubErr *publish.PublishError
			if asPublishError(err, &pubErr) && pubErr.Cause == publish.ErrCauseBudgetExceeded {
				p.noteBudgetHit()
				p.broadcastAbort()
				continue
			}
			p.aggregator.ObserveError("publish", item)
			continue
		}

		item = queue.AppendPhase(item, "publish", time.Since(started).Milliseconds())
		if err := p.tap.Put(item); err != nil {
			p.aggregator.ObserveItem(item)
		}
	}
}

// finishPublisher submits the residual batch and final commit, bounded
// by the flush deadline.
func (p *crawlPipeline) finishPublisher(ctx context.Context) {
	flushCtx := ctx
	if p.flushTimeout > 0 {
		var cancel context.CancelFunc
		flushCtx, cancel = context.WithTimeout(ctx, p.flushTimeout)
		defer cancel()
	}

	done := make(chan failure.ClassifiedError, 1)
	go func() { done <- p.publisher.Finish(flushCtx) }()

	select {
	case err := <-done:
		if err != nil && err.Severity() == failure.SeverityFatal {
			p.recordFatal(err)
		}
	case <-flushCtx.Done():
		p.recordFatal(failure.New(failure.KindFlushTimeout, "publisher residual flush exceeded deadline"))
	}
}

func (p *crawlPipeline) drainTap() {
	for {
		item, ok := p.tap.Take()
		if !ok {
			return
		}
		if queue.IsSentinel(item) {
			if item != queue.SentinelCrawlStart {
				return
			}
			continue
		}
		p.aggregator.ObserveItem(item)
	}
}

// broadcastAbort flips the run's abort flag and pushes CrawlAbort through
// both queues so every blocked worker wakes up and exits.
func (p *crawlPipeline) broadcastAbort() {
	p.run.RequestAbort()
	p.q1.Abort()
	p.q2.Abort()
	p.q1.PutSentinel(queue.SentinelCrawlAbort)
}

func (p *crawlPipeline) recordFatal(err failure.ClassifiedError) {
	p.mu.Lock()
	if p.fatalErr == nil {
		p.fatalErr = err
	}
	p.mu.Unlock()
}

func (p *crawlPipeline) noteBudgetHit() {
	p.mu.Lock()
	p.budgetHit = true
	p.mu.Unlock()
}

func (p *crawlPipeline) budgetReached() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.budgetHit
}

func asPublishError(err failure.ClassifiedError, target **publish.PublishError) bool {
	pe, ok := err.(*publish.PublishError)
	if !ok {
		return false
	}
	*target = pe
	return true
}
