package publish_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohmanhakim/connector-etl/internal/metadata"
	"github.com/rohmanhakim/connector-etl/internal/pipeline"
	"github.com/rohmanhakim/connector-etl/internal/publish"
	"github.com/rohmanhakim/connector-etl/internal/searchindex"
	"github.com/rohmanhakim/connector-etl/pkg/failure"
	"github.com/rohmanhakim/connector-etl/pkg/retry"
	"github.com/rohmanhakim/connector-etl/pkg/timeutil"
)

// fakeIndex records upserts and lets tests fail the first N calls.
type fakeIndex struct {
	mu            sync.Mutex
	upserts       [][]string
	commits       int
	failUpserts   int
	failCommits   int
	retryableFail bool
}

func (f *fakeIndex) UpsertBatch(ctx context.Context, docs []*pipeline.Document) failure.ClassifiedError {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpserts > 0 {
		f.failUpserts--
		return &searchindex.IndexError{Cause: searchindex.ErrCauseUnreachable, Message: "down", Retryable: f.retryableFail}
	}
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.NSDId)
	}
	f.upserts = append(f.upserts, ids)
	return nil
}

func (f *fakeIndex) Commit(ctx context.Context) failure.ClassifiedError {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCommits > 0 {
		f.failCommits--
		return &searchindex.IndexError{Cause: searchindex.ErrCauseCommitFailed, Message: "down", Retryable: true}
	}
	f.commits++
	return nil
}

func (f *fakeIndex) SchemaFragment(field searchindex.FieldSchema) string { return "" }

func (f *fakeIndex) totalUpserted() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, batch := range f.upserts {
		n += len(batch)
	}
	return n
}

func fastRetryParam() retry.RetryParam {
	return retry.NewRetryParam(0, 0, 1, 2, timeutil.NewBackoffParam(time.Millisecond, 1.0, time.Millisecond))
}

func newPublisher(index searchindex.Index, th publish.Thresholds) *publish.Publisher {
	return publish.New(index, &metadata.NoopSink{}, th, fastRetryParam())
}

func docN(id string) *pipeline.Document {
	return pipeline.NewDocument(id, pipeline.TypeText, id)
}

func TestBatchSubmitsAtThreshold(t *testing.T) {
	index := &fakeIndex{}
	pub := newPublisher(index, publish.Thresholds{BatchDocCount: 3, CommitDocCount: 100, MaxDocCount: 100})

	ctx := context.Background()
	for _, id := range []string{"a", "b"} {
		outcome, err := pub.Add(ctx, docN(id))
		require.Nil(t, err)
		assert.Equal(t, publish.OutcomeBuffered, outcome)
	}

	outcome, err := pub.Add(ctx, docN("c"))
	require.Nil(t, err)
	assert.Equal(t, publish.OutcomeSubmitted, outcome)

	require.Len(t, index.upserts, 1)
	assert.Equal(t, []string{"a", "b", "c"}, index.upserts[0])
	assert.Equal(t, 0, index.commits, "commit threshold not reached yet")
}

func TestCommitEveryCommitThreshold(t *testing.T) {
	index := &fakeIndex{}
	pub := newPublisher(index, publish.Thresholds{BatchDocCount: 2, CommitDocCount: 4, MaxDocCount: 100})

	ctx := context.Background()
	for _, id := range []string{"a", "b", "c", "d"} {
		_, err := pub.Add(ctx, docN(id))
		require.Nil(t, err)
	}

	assert.Equal(t, 4, index.totalUpserted())
	assert.Equal(t, 1, index.commits)
	assert.True(t, pub.CommittedAny())
}

func TestFinishFlushesResidualAndCommits(t *testing.T) {
	index := &fakeIndex{}
	pub := newPublisher(index, publish.Thresholds{BatchDocCount: 100, CommitDocCount: 1000, MaxDocCount: 100})

	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		_, err := pub.Add(ctx, docN(id))
		require.Nil(t, err)
	}
	require.Nil(t, pub.Finish(ctx))

	assert.Equal(t, 3, index.totalUpserted())
	assert.Equal(t, 1, index.commits)
}

func TestTransientBatchFailureIsRetriedOnce(t *testing.T) {
	index := &fakeIndex{failUpserts: 1, retryableFail: true}
	pub := newPublisher(index, publish.Thresholds{BatchDocCount: 2, CommitDocCount: 100, MaxDocCount: 100})

	ctx := context.Background()
	_, err := pub.Add(ctx, docN("a"))
	require.Nil(t, err)
	_, err = pub.Add(ctx, docN("b"))
	require.Nil(t, err, "first failure retried, second attempt succeeds")

	assert.Equal(t, 2, index.totalUpserted())
	assert.Empty(t, pub.FailedDocIDs())
}

func TestSecondBatchFailureMarksDocsFailedAndContinues(t *testing.T) {
	index := &fakeIndex{failUpserts: 2, retryableFail: true}
	pub := newPublisher(index, publish.Thresholds{BatchDocCount: 2, CommitDocCount: 100, MaxDocCount: 100})

	ctx := context.Background()
	_, err := pub.Add(ctx, docN("a"))
	require.Nil(t, err)
	_, err = pub.Add(ctx, docN("b"))
	require.NotNil(t, err)
	assert.Equal(t, failure.SeverityRecoverable, err.Severity())
	assert.ElementsMatch(t, []string{"a", "b"}, pub.FailedDocIDs())

	// next batch goes through untouched
	_, err = pub.Add(ctx, docN("c"))
	require.Nil(t, err)
	_, err = pub.Add(ctx, docN("d"))
	require.Nil(t, err)
	assert.Equal(t, 2, index.totalUpserted())
}

func TestBudgetDiscardsAndReportsExceeded(t *testing.T) {
	index := &fakeIndex{}
	pub := newPublisher(index, publish.Thresholds{BatchDocCount: 2, CommitDocCount: 100, MaxDocCount: 4})

	ctx := context.Background()
	for _, id := range []string{"a", "b", "c", "d"} {
		_, err := pub.Add(ctx, docN(id))
		require.Nil(t, err)
	}
	assert.True(t, pub.BudgetReached())

	outcome, err := pub.Add(ctx, docN("e"))
	assert.Equal(t, publish.OutcomeDiscarded, outcome)
	require.NotNil(t, err)

	var pubErr *publish.PublishError
	require.ErrorAs(t, err, &pubErr)
	assert.Equal(t, publish.ErrCauseBudgetExceeded, pubErr.Cause)

	stats := pub.Stats()
	assert.Equal(t, 4, stats.Accepted)
	assert.Equal(t, 1, stats.Discarded)
}

func TestCommitRetriedTwice(t *testing.T) {
	index := &fakeIndex{failCommits: 2}
	pub := newPublisher(index, publish.Thresholds{BatchDocCount: 1, CommitDocCount: 1, MaxDocCount: 100})

	_, err := pub.Add(context.Background(), docN("a"))
	require.Nil(t, err, "two commit failures then success on the third attempt")
	assert.Equal(t, 1, index.commits)
}
